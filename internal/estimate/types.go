package estimate

import (
	"time"

	"github.com/goccy/go-json"
)

// ComponentType is the semantic cost category of a line item.
type ComponentType string

const (
	ComponentCapacity      ComponentType = "capacity"
	ComponentCoolCapacity  ComponentType = "cool_capacity"
	ComponentCoolTiering   ComponentType = "cool_tiering"
	ComponentCoolRetrieval ComponentType = "cool_retrieval"
	ComponentThroughput    ComponentType = "throughput"
	ComponentSnapshot      ComponentType = "snapshot"
	ComponentBackup        ComponentType = "backup"
	ComponentTransactions  ComponentType = "transactions"
	ComponentEgress        ComponentType = "egress"
	ComponentIngress       ComponentType = "ingress"
	ComponentReplication   ComponentType = "replication"
	ComponentDiskOps       ComponentType = "disk_ops"
	ComponentOther         ComponentType = "other"
	ComponentActual        ComponentType = "actual"
)

// CostComponent is one itemized cost line within an estimate.
// IsEstimated is true for lines derived from retail prices and false for
// lines derived from (or rescaled by) actual billing.
type CostComponent struct {
	Type         ComponentType `json:"type"`
	Description  string        `json:"description"`
	Quantity     float64       `json:"quantity"`
	Unit         string        `json:"unit"`
	UnitPrice    float64       `json:"unitPrice"`
	BillingHours float64       `json:"billingHours,omitempty"`
	Cost         float64       `json:"cost"`
	IsEstimated  bool          `json:"isEstimated"`
	Notes        string        `json:"notes,omitempty"`
}

// CostEstimate is the itemized cost breakdown for one resource over one
// billing period.
//
// Components are append-only during the build; after the estimate is
// finalized only the reconciler's ReplaceComponents and ScaleComponents
// transitions touch them. The total is never cached: it is recomputed from
// the current components on every read so it cannot drift out of sync.
type CostEstimate struct {
	ResourceID  string    `json:"resourceId"`
	Region      string    `json:"region"`
	Permutation int       `json:"permutation"`
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	Currency    string    `json:"currency"`
	TraceID     string    `json:"traceId"`

	Components []CostComponent `json:"components"`
	Warnings   []string        `json:"warnings,omitempty"`

	// Reconciliation provenance.
	ActualCostsApplied bool   `json:"actualCostsApplied"`
	MeterCount         int    `json:"meterCount,omitempty"`
	NotAppliedReason   string `json:"notAppliedReason,omitempty"`
}

// Total is the sum of the current components' costs.
func (e *CostEstimate) Total() float64 {
	var total float64
	for _, c := range e.Components {
		total += c.Cost
	}
	return total
}

// AddComponent appends a line item. Zero-cost components are dropped rather
// than added; an omitted line carries no information a warning doesn't.
func (e *CostEstimate) AddComponent(c CostComponent) {
	if c.Cost <= 0 {
		return
	}
	e.Components = append(e.Components, c)
}

// Warn records a non-fatal degradation of the estimate.
func (e *CostEstimate) Warn(msg string) {
	e.Warnings = append(e.Warnings, msg)
}

// ReplaceComponents swaps the full component list, as the reconciler does
// when meter-level actuals are available.
func (e *CostEstimate) ReplaceComponents(components []CostComponent) {
	e.Components = components
}

// ScaleComponents multiplies every component's cost by factor in place,
// preserving relative proportions and descriptions, and marks the lines as
// no longer estimated. Used for coarse reconciliation against a single
// actual total.
func (e *CostEstimate) ScaleComponents(factor float64) {
	for i := range e.Components {
		e.Components[i].Cost *= factor
		e.Components[i].IsEstimated = false
	}
}

// MarshalJSON emits the estimate with its computed total attached, so
// serialized output can never carry a total out of sync with the components.
func (e *CostEstimate) MarshalJSON() ([]byte, error) {
	type alias CostEstimate
	return json.Marshal(struct {
		*alias
		Total float64 `json:"total"`
	}{
		alias: (*alias)(e),
		Total: e.Total(),
	})
}
