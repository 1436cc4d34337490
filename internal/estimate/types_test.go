package estimate

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostEstimateTotalRecomputed(t *testing.T) {
	est := &CostEstimate{}
	assert.Zero(t, est.Total())

	est.AddComponent(CostComponent{Type: ComponentCapacity, Cost: 30})
	est.AddComponent(CostComponent{Type: ComponentSnapshot, Cost: 20})
	assert.InDelta(t, 50, est.Total(), 1e-9)

	est.ScaleComponents(1.2)
	assert.InDelta(t, 60, est.Total(), 1e-9)
	for _, c := range est.Components {
		assert.False(t, c.IsEstimated)
	}

	est.ReplaceComponents([]CostComponent{{Type: ComponentActual, Cost: 42}})
	assert.InDelta(t, 42, est.Total(), 1e-9)
}

func TestAddComponentDropsZeroCost(t *testing.T) {
	est := &CostEstimate{}
	est.AddComponent(CostComponent{Type: ComponentThroughput, Cost: 0})
	est.AddComponent(CostComponent{Type: ComponentCapacity, Cost: -1})
	assert.Empty(t, est.Components)
}

func TestCostEstimateMarshalIncludesTotal(t *testing.T) {
	est := &CostEstimate{ResourceID: "r1", Currency: "USD"}
	est.AddComponent(CostComponent{Type: ComponentCapacity, Cost: 14.616})

	raw, err := json.Marshal(est)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.InDelta(t, 14.616, decoded["total"].(float64), 1e-9)
	assert.Equal(t, "r1", decoded["resourceId"])
}
