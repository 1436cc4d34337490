package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/cloudmeter/volcost/internal/estimate"
)

// Options configure one reconciliation run.
type Options struct {
	// Scope is the billing query scope (a subscription identifier).
	Scope string

	// MeterLevel requests full meter-level replacement of the retail
	// components. When false only a single actual total is applied and the
	// retail components are rescaled to it.
	MeterLevel bool
}

// Result carries the reconciled estimate and any metadata recovered from the
// billing rows.
type Result struct {
	Estimate *estimate.CostEstimate
	Metadata VolumeMetadata
}

// Reconciler overlays retail cost estimates with actual billing aggregates.
type Reconciler struct {
	billing BillingClient
	logger  zerolog.Logger
}

// NewReconciler creates a reconciler over the given billing client.
func NewReconciler(billing BillingClient, logger zerolog.Logger) *Reconciler {
	return &Reconciler{billing: billing, logger: logger}
}

// Reconcile transitions a retail estimate to a reconciled one. The input is
// returned in all cases; when no actual data is available the retail
// components pass through untouched with a not-applied reason recorded.
//
// The transition is idempotent: rerunning against the same actual data yields
// the same result, whether the components were replaced or rescaled.
func (r *Reconciler) Reconcile(ctx context.Context, est *estimate.CostEstimate, opts Options) (Result, error) {
	// Billing is recorded at the parent resource (the capacity pool or the
	// storage account), not the leaf.
	queryID := ParentBillingResourceID(est.ResourceID)

	rows, err := r.billing.QueryActualCosts(ctx, opts.Scope, queryID, est.PeriodStart, est.PeriodEnd)
	if err != nil {
		est.ActualCostsApplied = false
		est.NotAppliedReason = "billing query failed"
		r.logger.Warn().
			Str("trace_id", est.TraceID).
			Str("resource_id", queryID).
			Err(err).
			Msg("billing aggregator unavailable; keeping retail estimate")
		return Result{Estimate: est}, nil
	}

	if len(rows) == 0 {
		est.ActualCostsApplied = false
		est.NotAppliedReason = "no meter data"
		r.logger.Debug().
			Str("trace_id", est.TraceID).
			Str("resource_id", queryID).
			Msg("no actual billing rows for period")
		return Result{Estimate: est}, nil
	}

	for i := range rows {
		rows[i].ComponentType = ClassifyMeter(rows[i].Meter, rows[i].MeterSubcategory)
	}

	var meta VolumeMetadata
	if opts.MeterLevel {
		meta = r.replaceWithMeterGroups(est, rows)
	} else {
		r.rescaleToActualTotal(est, rows)
	}

	// The provenance note is added once so rerunning with the same actual
	// data reproduces the same estimate.
	if !est.ActualCostsApplied {
		est.Warn(fmt.Sprintf("reconciled against actual billing (%d meters, period %s to %s)",
			est.MeterCount,
			est.PeriodStart.Format(time.DateOnly),
			est.PeriodEnd.Format(time.DateOnly)))
	}
	est.ActualCostsApplied = true
	est.NotAppliedReason = ""

	r.logger.Info().
		Str("trace_id", est.TraceID).
		Str("resource_id", queryID).
		Bool("meter_level", opts.MeterLevel).
		Int("meter_count", est.MeterCount).
		Float64("total", est.Total()).
		Msg("actual costs applied")
	return Result{Estimate: est, Metadata: meta}, nil
}

// replaceWithMeterGroups swaps the retail components for one component per
// (meter, subcategory) group summed across the period.
func (r *Reconciler) replaceWithMeterGroups(est *estimate.CostEstimate, rows []MeterCostEntry) VolumeMetadata {
	groups := lo.GroupBy(rows, func(e MeterCostEntry) string {
		return e.Meter + "|" + e.MeterSubcategory
	})

	keys := lo.Keys(groups)
	sort.Strings(keys)

	components := make([]estimate.CostComponent, 0, len(keys))
	for _, key := range keys {
		group := groups[key]
		first := group[0]
		components = append(components, estimate.CostComponent{
			Type:        first.ComponentType,
			Description: meterDescription(first),
			Quantity:    lo.SumBy(group, func(e MeterCostEntry) float64 { return e.Quantity }),
			Cost:        lo.SumBy(group, func(e MeterCostEntry) float64 { return e.Cost }),
			IsEstimated: false,
			Notes:       "from actual billing",
		})
	}

	est.ReplaceComponents(components)
	est.MeterCount = len(keys)
	return ExtractVolumeMetadata(rows)
}

// rescaleToActualTotal scales the retail components so their sum matches the
// actual billed total, preserving relative proportions. When the retail total
// is not positive there is nothing meaningful to scale; the components are
// replaced by a single actual-billed line instead.
func (r *Reconciler) rescaleToActualTotal(est *estimate.CostEstimate, rows []MeterCostEntry) {
	actualTotal := lo.SumBy(rows, func(e MeterCostEntry) float64 { return e.Cost })
	retailTotal := est.Total()

	meters := lo.UniqBy(rows, func(e MeterCostEntry) string {
		return e.Meter + "|" + e.MeterSubcategory
	})
	est.MeterCount = len(meters)

	if retailTotal <= 0 {
		est.ReplaceComponents([]estimate.CostComponent{{
			Type:        estimate.ComponentActual,
			Description: "Actual billed cost",
			Cost:        actualTotal,
			IsEstimated: false,
			Notes:       "retail estimate was empty; actual total applied directly",
		}})
		return
	}

	est.ScaleComponents(actualTotal / retailTotal)
}

func meterDescription(e MeterCostEntry) string {
	if e.MeterSubcategory == "" {
		return e.Meter
	}
	return fmt.Sprintf("%s (%s)", e.Meter, e.MeterSubcategory)
}
