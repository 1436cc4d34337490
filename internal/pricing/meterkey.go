package pricing

import (
	"fmt"
	"strings"
)

// Facet names the billing concept a meter charges for. Together with the tier
// and the encryption mode it uniquely identifies a unit price, so distinct
// billing concepts never collide on one key.
type Facet string

const (
	FacetCapacity      Facet = "capacity"
	FacetCoolCapacity  Facet = "cool-capacity"
	FacetCoolTiering   Facet = "cool-tiering"
	FacetCoolRetrieval Facet = "cool-retrieval"
	FacetThroughput    Facet = "throughput"
	FacetSnapshot      Facet = "snapshot"
	FacetBackup        Facet = "backup"
)

// MeterKey is the semantic identity of a meter within one region.
//
// Callers never hand-construct keys from meter display names. Raw names are
// parsed exactly once, during cache population, via ParseMeterName; everywhere
// else keys are built from known facets.
type MeterKey struct {
	Tier             Tier
	Facet            Facet
	DoubleEncryption bool
}

// String renders the key in its canonical, deterministic form,
// e.g. "premium/capacity" or "standard/capacity/double".
func (k MeterKey) String() string {
	if k.DoubleEncryption {
		return fmt.Sprintf("%s/%s/double", k.Tier, k.Facet)
	}
	return fmt.Sprintf("%s/%s", k.Tier, k.Facet)
}

// CapacityKey returns the capacity meter key for a tier and encryption mode.
func CapacityKey(tier Tier, doubleEncryption bool) MeterKey {
	return MeterKey{Tier: tier, Facet: FacetCapacity, DoubleEncryption: doubleEncryption}
}

// FacetKey returns the key for a non-capacity facet of a tier. Facets other
// than capacity are never double-encryption priced.
func FacetKey(tier Tier, facet Facet) MeterKey {
	return MeterKey{Tier: tier, Facet: facet}
}

// ParseMeterName maps an upstream meter display name to its semantic key via
// case-insensitive substring matching. Returns false for meters that carry no
// recognizable tier or facet; those are skipped during population rather than
// mis-classified.
func ParseMeterName(name string) (MeterKey, bool) {
	lower := strings.ToLower(name)

	tier, ok := parseTier(lower)
	if !ok {
		return MeterKey{}, false
	}

	facet, ok := parseFacet(lower)
	if !ok {
		return MeterKey{}, false
	}

	key := MeterKey{Tier: tier, Facet: facet}
	if facet == FacetCapacity && strings.Contains(lower, "double") {
		key.DoubleEncryption = true
	}
	return key, true
}

func parseTier(lower string) (Tier, bool) {
	switch {
	case strings.Contains(lower, "flexible"):
		return TierFlexible, true
	case strings.Contains(lower, "ultra"):
		return TierUltra, true
	case strings.Contains(lower, "premium"):
		return TierPremium, true
	case strings.Contains(lower, "standard"):
		return TierStandard, true
	default:
		return "", false
	}
}

// parseFacet resolves the cost facet of a meter name. Order matters: tiering
// and retrieval meters also contain "cool", and cool capacity meters also
// contain "capacity", so the more specific markers are checked first.
func parseFacet(lower string) (Facet, bool) {
	switch {
	case strings.Contains(lower, "tiering"):
		return FacetCoolTiering, true
	case strings.Contains(lower, "retrieval"):
		return FacetCoolRetrieval, true
	case strings.Contains(lower, "cool"):
		return FacetCoolCapacity, true
	case strings.Contains(lower, "throughput"):
		return FacetThroughput, true
	case strings.Contains(lower, "snapshot"):
		return FacetSnapshot, true
	case strings.Contains(lower, "backup"):
		return FacetBackup, true
	case strings.Contains(lower, "capacity"):
		return FacetCapacity, true
	default:
		return "", false
	}
}
