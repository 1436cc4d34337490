package estimate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudmeter/volcost/internal/pricing"
)

// Minimum billable capacities, enforced before pricing. The shortfall is
// recorded as a component note, never silently hidden.
const (
	MinCapacityGiB           = 50.0
	MinCapacityCoolAccessGiB = 2400.0
)

// Inputs are the sizing quantities for one calculation. Optional quantities
// are zero when absent; the engine adds the corresponding component only when
// the quantity is present and positive.
type Inputs struct {
	ProvisionedCapacityGiB   float64
	HotCapacityGiB           float64
	CoolCapacityGiB          float64
	DataTieredToCoolGiB      float64
	DataRetrievedFromCoolGiB float64
	RequiredThroughputMiBps  float64
	SnapshotCapacityGiB      float64
	BackupCapacityGiB        float64
	BillingPeriodHours       float64
}

// Request describes one estimate to compute.
type Request struct {
	ResourceID    string
	Region        string
	PermutationID int
	PeriodStart   time.Time
	PeriodEnd     time.Time
	Inputs        Inputs
}

// PriceSource resolves unit prices. Implemented by pricing.Cache; tests
// substitute fakes.
type PriceSource interface {
	Resolve(ctx context.Context, region string, key pricing.MeterKey) (pricing.MeterPrice, bool)
}

// Engine computes itemized retail cost estimates for the eleven supported
// pricing configurations. It never assumes a price is available: each missing
// price degrades that one component to omitted-plus-warning rather than
// failing the calculation.
type Engine struct {
	prices PriceSource
	logger zerolog.Logger
}

// NewEngine creates a cost formula engine over the given price source.
func NewEngine(prices PriceSource, logger zerolog.Logger) *Engine {
	return &Engine{prices: prices, logger: logger}
}

// strategyFunc computes the component list for one pricing configuration.
// Every variant shares this signature so the dispatch table stays closed.
type strategyFunc func(e *Engine, ctx context.Context, est *CostEstimate, perm Permutation, in Inputs)

// strategies maps every permutation ID to its calculation. The table must
// cover the full permutation set; the unit tests enforce exhaustiveness so a
// twelfth variant cannot be silently unhandled.
var strategies = map[int]strategyFunc{
	1:  (*Engine).calculateRegular,
	2:  (*Engine).calculateRegular,
	3:  (*Engine).calculateCoolAccess,
	4:  (*Engine).calculateRegular,
	5:  (*Engine).calculateRegular,
	6:  (*Engine).calculateCoolAccess,
	7:  (*Engine).calculateRegular,
	8:  (*Engine).calculateRegular,
	9:  (*Engine).calculateCoolAccess,
	10: (*Engine).calculateFlexible,
	11: (*Engine).calculateFlexibleCool,
}

// Calculate builds the retail cost estimate for a request.
func (e *Engine) Calculate(ctx context.Context, req Request) (*CostEstimate, error) {
	start := time.Now()
	perm, ok := PermutationByID(req.PermutationID)
	if !ok {
		return nil, fmt.Errorf("unknown pricing permutation %d", req.PermutationID)
	}
	strategy, ok := strategies[perm.ID]
	if !ok {
		return nil, fmt.Errorf("no calculation strategy for permutation %d", perm.ID)
	}

	in := req.Inputs
	if in.BillingPeriodHours <= 0 {
		in.BillingPeriodHours = req.PeriodEnd.Sub(req.PeriodStart).Hours()
	}

	est := &CostEstimate{
		ResourceID:  req.ResourceID,
		Region:      req.Region,
		Permutation: perm.ID,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		Currency:    "USD",
		TraceID:     uuid.New().String(),
	}

	strategy(e, ctx, est, perm, in)
	e.addSnapshotBackup(ctx, est, perm, in)

	e.logger.Info().
		Str("trace_id", est.TraceID).
		Str("resource_id", req.ResourceID).
		Str("region", req.Region).
		Int("permutation", perm.ID).
		Int("components", len(est.Components)).
		Int("warnings", len(est.Warnings)).
		Float64("total", est.Total()).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("cost estimate calculated")
	return est, nil
}

// calculateRegular covers the capacity-priced tiers without cool access
// (variants 1, 2, 4, 5, 7, 8). Double encryption only changes which capacity
// meter prices the pool.
func (e *Engine) calculateRegular(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	billed, note := clampCapacity(in.ProvisionedCapacityGiB, MinCapacityGiB)
	key := pricing.CapacityKey(perm.BaseTier, perm.DoubleEncryption)

	e.addCapacityComponent(ctx, est, key, ComponentCapacity, billed, in.BillingPeriodHours,
		capacityDescription(perm), appendNote(note, includedThroughputNote(perm, billed)))
}

// calculateCoolAccess covers variants 3, 6 and 9: hot and cool capacity are
// priced separately, and moving data between the portions carries its own
// per-GiB charges.
func (e *Engine) calculateCoolAccess(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	hot, cool := in.HotCapacityGiB, in.CoolCapacityGiB
	if hot == 0 && cool == 0 {
		hot = in.ProvisionedCapacityGiB
	}
	hot, note := clampCoolCapacity(hot, cool)

	e.addCapacityComponent(ctx, est, pricing.CapacityKey(perm.BaseTier, false), ComponentCapacity,
		hot, in.BillingPeriodHours, "Hot capacity", appendNote(note, includedThroughputNote(perm, hot+cool)))

	if cool > 0 {
		e.addCapacityComponent(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetCoolCapacity),
			ComponentCoolCapacity, cool, in.BillingPeriodHours, "Cool capacity", "")
	}
	e.addDataMovement(ctx, est, perm, in)
}

// calculateFlexible covers variant 10: capacity pricing plus separately billed
// throughput above the flat 128 MiB/s base.
func (e *Engine) calculateFlexible(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	billed, note := clampCapacity(in.ProvisionedCapacityGiB, MinCapacityGiB)

	e.addCapacityComponent(ctx, est, pricing.CapacityKey(perm.BaseTier, false), ComponentCapacity,
		billed, in.BillingPeriodHours, capacityDescription(perm), appendNote(note, includedThroughputNote(perm, billed)))
	e.addThroughputAboveBase(ctx, est, perm, in)
}

// calculateFlexibleCool covers variant 11: the flexible tier with cool access.
func (e *Engine) calculateFlexibleCool(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	hot, cool := in.HotCapacityGiB, in.CoolCapacityGiB
	if hot == 0 && cool == 0 {
		hot = in.ProvisionedCapacityGiB
	}
	hot, note := clampCoolCapacity(hot, cool)

	e.addCapacityComponent(ctx, est, pricing.CapacityKey(perm.BaseTier, false), ComponentCapacity,
		hot, in.BillingPeriodHours, "Hot capacity", appendNote(note, includedThroughputNote(perm, hot+cool)))

	if cool > 0 {
		e.addCapacityComponent(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetCoolCapacity),
			ComponentCoolCapacity, cool, in.BillingPeriodHours, "Cool capacity", "")
	}
	e.addDataMovement(ctx, est, perm, in)
	e.addThroughputAboveBase(ctx, est, perm, in)
}

// addThroughputAboveBase bills the throughput requirement beyond the flexible
// base. When the requirement is at or below the base no component is added at
// all; zero-cost lines are never emitted.
func (e *Engine) addThroughputAboveBase(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	extra := in.RequiredThroughputMiBps - flexibleBaseThroughputMiBps
	if extra <= 0 {
		return
	}
	price, ok := e.resolve(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetThroughput))
	if !ok {
		return
	}
	est.AddComponent(CostComponent{
		Type:         ComponentThroughput,
		Description:  "Throughput above base",
		Quantity:     extra,
		Unit:         "MiB/s",
		UnitPrice:    price.UnitPrice,
		BillingHours: in.BillingPeriodHours,
		Cost:         extra * price.UnitPrice * in.BillingPeriodHours,
		IsEstimated:  true,
		Notes:        fmt.Sprintf("base %.0f MiB/s included", flexibleBaseThroughputMiBps),
	})
}

// addDataMovement adds tiering and retrieval charges for cool-access pools.
// Components appear only when the corresponding moved-data quantity is
// present and positive.
func (e *Engine) addDataMovement(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	if in.DataTieredToCoolGiB > 0 {
		if price, ok := e.resolve(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetCoolTiering)); ok {
			est.AddComponent(CostComponent{
				Type:        ComponentCoolTiering,
				Description: "Data tiered to cool",
				Quantity:    in.DataTieredToCoolGiB,
				Unit:        "GiB",
				UnitPrice:   price.UnitPrice,
				Cost:        in.DataTieredToCoolGiB * price.UnitPrice,
				IsEstimated: true,
			})
		}
	}
	if in.DataRetrievedFromCoolGiB > 0 {
		if price, ok := e.resolve(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetCoolRetrieval)); ok {
			est.AddComponent(CostComponent{
				Type:        ComponentCoolRetrieval,
				Description: "Data retrieved from cool",
				Quantity:    in.DataRetrievedFromCoolGiB,
				Unit:        "GiB",
				UnitPrice:   price.UnitPrice,
				Cost:        in.DataRetrievedFromCoolGiB * price.UnitPrice,
				IsEstimated: true,
			})
		}
	}
}

// addSnapshotBackup adds snapshot and backup capacity charges common to all
// variants, when those quantities are reported.
func (e *Engine) addSnapshotBackup(ctx context.Context, est *CostEstimate, perm Permutation, in Inputs) {
	if in.SnapshotCapacityGiB > 0 {
		e.addCapacityComponent(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetSnapshot),
			ComponentSnapshot, in.SnapshotCapacityGiB, in.BillingPeriodHours, "Snapshot capacity", "")
	}
	if in.BackupCapacityGiB > 0 {
		e.addCapacityComponent(ctx, est, pricing.FacetKey(perm.BaseTier, pricing.FacetBackup),
			ComponentBackup, in.BackupCapacityGiB, in.BillingPeriodHours, "Backup capacity", "")
	}
}

// addCapacityComponent prices quantity × unit price × hours for a meter,
// degrading to a warning when the price is missing.
func (e *Engine) addCapacityComponent(ctx context.Context, est *CostEstimate, key pricing.MeterKey,
	componentType ComponentType, quantityGiB, hours float64, description, notes string) {
	if quantityGiB <= 0 {
		return
	}
	price, ok := e.resolve(ctx, est, key)
	if !ok {
		return
	}
	est.AddComponent(CostComponent{
		Type:         componentType,
		Description:  description,
		Quantity:     quantityGiB,
		Unit:         "GiB",
		UnitPrice:    price.UnitPrice,
		BillingHours: hours,
		Cost:         quantityGiB * price.UnitPrice * hours,
		IsEstimated:  true,
		Notes:        notes,
	})
}

// resolve looks up a price and records the degradation when it is missing.
func (e *Engine) resolve(ctx context.Context, est *CostEstimate, key pricing.MeterKey) (pricing.MeterPrice, bool) {
	price, ok := e.prices.Resolve(ctx, est.Region, key)
	if !ok {
		msg := fmt.Sprintf("no price available for %s in %s; component omitted", key, est.Region)
		est.Warn(msg)
		e.logger.Warn().
			Str("trace_id", est.TraceID).
			Str("region", est.Region).
			Str("meter_key", key.String()).
			Msg("missing price; omitting cost component")
		return pricing.MeterPrice{}, false
	}
	return price, true
}

// clampCapacity enforces a minimum billable capacity and reports the
// shortfall note when the clamp applied.
func clampCapacity(provisionedGiB, minGiB float64) (float64, string) {
	if provisionedGiB >= minGiB {
		return provisionedGiB, ""
	}
	return minGiB, fmt.Sprintf("provisioned %.0f GiB below %.0f GiB minimum; billed at minimum", provisionedGiB, minGiB)
}

// clampCoolCapacity enforces the cool-access minimum across the hot and cool
// portions together, growing the hot portion to cover any shortfall.
func clampCoolCapacity(hotGiB, coolGiB float64) (float64, string) {
	total := hotGiB + coolGiB
	if total >= MinCapacityCoolAccessGiB {
		return hotGiB, ""
	}
	shortfall := MinCapacityCoolAccessGiB - total
	return hotGiB + shortfall, fmt.Sprintf("provisioned %.0f GiB below %.0f GiB cool-access minimum; billed at minimum", total, MinCapacityCoolAccessGiB)
}

func capacityDescription(perm Permutation) string {
	if perm.DoubleEncryption {
		return "Provisioned capacity (double encryption)"
	}
	return "Provisioned capacity"
}

func includedThroughputNote(perm Permutation, capacityGiB float64) string {
	return fmt.Sprintf("includes %.4g MiB/s throughput", IncludedThroughputMiBps(perm, capacityGiB))
}

func appendNote(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "; " + b
	}
}
