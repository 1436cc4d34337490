package estimate

import (
	"sort"

	"github.com/cloudmeter/volcost/internal/pricing"
)

// Permutation describes one of the eleven supported pricing configurations:
// base tier crossed with encryption mode and cool-access mode, plus the
// flexible-throughput tier. The set is fixed and enumerable; instances are
// looked up from the static table, never persisted.
type Permutation struct {
	ID               int
	BaseTier         pricing.Tier
	DoubleEncryption bool
	CoolAccess       bool
	IsFlexible       bool
}

// permutations is the closed variant table. Double encryption and cool access
// are mutually exclusive, and the flexible tier has no double-encryption mode.
var permutations = map[int]Permutation{
	1:  {ID: 1, BaseTier: pricing.TierStandard},
	2:  {ID: 2, BaseTier: pricing.TierStandard, DoubleEncryption: true},
	3:  {ID: 3, BaseTier: pricing.TierStandard, CoolAccess: true},
	4:  {ID: 4, BaseTier: pricing.TierPremium},
	5:  {ID: 5, BaseTier: pricing.TierPremium, DoubleEncryption: true},
	6:  {ID: 6, BaseTier: pricing.TierPremium, CoolAccess: true},
	7:  {ID: 7, BaseTier: pricing.TierUltra},
	8:  {ID: 8, BaseTier: pricing.TierUltra, DoubleEncryption: true},
	9:  {ID: 9, BaseTier: pricing.TierUltra, CoolAccess: true},
	10: {ID: 10, BaseTier: pricing.TierFlexible, IsFlexible: true},
	11: {ID: 11, BaseTier: pricing.TierFlexible, IsFlexible: true, CoolAccess: true},
}

// PermutationByID looks up a pricing configuration by its identifier (1..11).
func PermutationByID(id int) (Permutation, bool) {
	p, ok := permutations[id]
	return p, ok
}

// Permutations returns all supported configurations ordered by ID.
func Permutations() []Permutation {
	out := make([]Permutation, 0, len(permutations))
	for _, p := range permutations {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// includedThroughputPerTiB is the MiB/s of throughput bundled per provisioned
// TiB for the capacity-priced tiers. Cool access reduces the bundled rate for
// premium and ultra; standard keeps its full rate.
var includedThroughputPerTiB = map[pricing.Tier]struct{ regular, cool float64 }{
	pricing.TierStandard: {regular: 16, cool: 16},
	pricing.TierPremium:  {regular: 64, cool: 36},
	pricing.TierUltra:    {regular: 128, cool: 68},
}

// flexibleBaseThroughputMiBps is the flat throughput bundled with a flexible
// pool regardless of its size. Throughput above this is billed separately.
const flexibleBaseThroughputMiBps = 128.0

// IncludedThroughputMiBps returns the throughput bundled with the given
// billed capacity under a permutation. For flexible pools this is the flat
// base; for the other tiers it scales per provisioned TiB.
func IncludedThroughputMiBps(p Permutation, capacityGiB float64) float64 {
	if p.IsFlexible {
		return flexibleBaseThroughputMiBps
	}
	rates, ok := includedThroughputPerTiB[p.BaseTier]
	if !ok {
		return 0
	}
	rate := rates.regular
	if p.CoolAccess {
		rate = rates.cool
	}
	return capacityGiB / 1024 * rate
}
