package reconcile

import (
	"context"
	"time"

	"github.com/cloudmeter/volcost/internal/estimate"
)

// MeterCostEntry is one actual-billing row: one (resource, meter, day)
// aggregate from the billing collaborator. ComponentType is derived by the
// meter classifier, never supplied by the source.
type MeterCostEntry struct {
	ResourceID       string
	Meter            string
	MeterSubcategory string
	Cost             float64
	CostUSD          float64
	Currency         string
	UsageDate        time.Time
	Quantity         float64
	ComponentType    estimate.ComponentType
}

// VolumeMetadata is secondary metadata recovered from billing meter text.
type VolumeMetadata struct {
	Redundancy      string  `json:"redundancy,omitempty"`
	ServiceTier     string  `json:"serviceTier,omitempty"`
	Protocol        string  `json:"protocol,omitempty"`
	AvgDailyOpsRate float64 `json:"avgDailyOpsRate,omitempty"`
}

// BillingClient queries the external billing aggregator for actual cost rows
// at daily granularity, grouped by meter and subcategory.
type BillingClient interface {
	QueryActualCosts(ctx context.Context, scope, resourceID string, from, to time.Time) ([]MeterCostEntry, error)
}
