package pricing

import "time"

// Tier identifies a capacity-pool service level. Flexible is the
// throughput-decoupled level; the other three include throughput in the
// per-TiB capacity price.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
	TierUltra    Tier = "ultra"
	TierFlexible Tier = "flexible"
)

// MeterPrice is one resolved unit price for a (region, meter key) pair.
//
// Entries are value objects: a price is created during cache population and
// never mutated afterwards. A refresh that finds a newer price supersedes the
// old entry rather than rewriting it in place, so concurrent readers always
// observe a fully constructed value.
type MeterPrice struct {
	Region          string    `json:"region"`
	MeterKey        string    `json:"meterKey"`
	UnitPrice       float64   `json:"unitPrice"`
	UnitOfMeasure   string    `json:"unitOfMeasure"`
	Currency        string    `json:"currency"`
	SourceMeterName string    `json:"sourceMeterName"`
	FetchedAt       time.Time `json:"fetchedAt"`
	ExpiresAt       time.Time `json:"expiresAt"`
}

// Valid reports whether the entry carries a usable price. Zero-priced entries
// are a known symptom of an incomplete upstream snapshot and must never be
// served as a hit, or they would silently produce $0 cost lines downstream.
func (p MeterPrice) Valid() bool {
	return p.UnitPrice > 0
}

// Expired reports whether the entry's durable TTL has passed at time now.
func (p MeterPrice) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
