package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// daysFrom builds a daily series starting at start with the given values.
func daysFrom(start time.Time, values ...float64) []Point {
	series := make([]Point, len(values))
	for i, v := range values {
		series[i] = Point{Date: start.AddDate(0, 0, i), Value: v}
	}
	return series
}

func TestWeekdayWeekendSplit(t *testing.T) {
	// Monday 2026-08-03 through Sunday 2026-08-09.
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	series := daysFrom(monday, 100, 100, 100, 100, 100, 40, 40)

	split := WeekdayWeekendSplit(series)
	assert.InDelta(t, 100, split.WeekdayAvg, 1e-9)
	assert.InDelta(t, 40, split.WeekendAvg, 1e-9)
	assert.Equal(t, 5, split.WeekdayCount)
	assert.Equal(t, 2, split.WeekendCount)
}

// With no weekend points the weekend average falls back to the weekday
// average, never to zero.
func TestWeekdayWeekendSplitWeekendFallback(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	series := daysFrom(monday, 80, 90, 100) // Mon-Wed only

	split := WeekdayWeekendSplit(series)
	assert.Equal(t, 0, split.WeekendCount)
	assert.InDelta(t, 90, split.WeekdayAvg, 1e-9)
	assert.InDelta(t, 90, split.WeekendAvg, 1e-9)
}

func TestWeekdayWeekendSplitEmpty(t *testing.T) {
	split := WeekdayWeekendSplit(nil)
	assert.Zero(t, split.WeekdayAvg)
	assert.Zero(t, split.WeekendAvg)
}

func TestSteadyStateDetectsStepChange(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	// Older half averages 100, newer half 135: a 35% change against a 20%
	// threshold. The value must re-baseline on the last 3 days only.
	series := daysFrom(start, 100, 100, 100, 135, 130, 135, 140)

	result := SteadyState(series, 7, 0.20)
	require.True(t, result.Changed)
	assert.Equal(t, start.AddDate(0, 0, 3), result.ChangeDate)
	assert.InDelta(t, (130.0+135+140)/3, result.Value, 1e-9)
	assert.Equal(t, 3, result.SampleDaysUsed)
}

func TestSteadyStateStableSeries(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	series := daysFrom(start, 100, 102, 98, 101, 99, 100, 100)

	result := SteadyState(series, 7, 0.20)
	assert.False(t, result.Changed)
	assert.InDelta(t, 100, result.Value, 1)
	assert.Equal(t, 7, result.SampleDaysUsed)
}

func TestSteadyStateRestrictsToLookback(t *testing.T) {
	start := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	// Ancient spike outside the 7-day lookback must not trigger detection.
	values := []float64{1000, 1000, 100, 100, 100, 100, 100, 100, 100, 100}
	series := daysFrom(start, values...)

	result := SteadyState(series, 7, 0.20)
	assert.False(t, result.Changed)
	assert.InDelta(t, 100, result.Value, 1e-9)
	assert.Equal(t, 7, result.SampleDaysUsed)
}

func TestSteadyStateTooFewPoints(t *testing.T) {
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	result := SteadyState(daysFrom(start, 42), 30, 0.20)
	assert.False(t, result.Changed)
	assert.InDelta(t, 42, result.Value, 1e-9)
	assert.Equal(t, 1, result.SampleDaysUsed)

	result = SteadyState(nil, 30, 0.20)
	assert.False(t, result.Changed)
	assert.Zero(t, result.Value)
	assert.Zero(t, result.SampleDaysUsed)
}

func TestConfidenceScore(t *testing.T) {
	tests := []struct {
		name          string
		sampleDays    int
		hasChange     bool
		weekendPoints int
		pointCount    int
		want          int
	}{
		{name: "everything favorable", sampleDays: 30, hasChange: false, weekendPoints: 8, pointCount: 30, want: 100},
		{name: "bare minimum data", sampleDays: 1, hasChange: true, weekendPoints: 0, pointCount: 1, want: 50},
		{name: "week of data no change", sampleDays: 7, hasChange: false, weekendPoints: 2, pointCount: 7, want: 90},
		{name: "change detected costs ten", sampleDays: 7, hasChange: true, weekendPoints: 2, pointCount: 7, want: 80},
		{name: "no weekend coverage", sampleDays: 14, hasChange: false, weekendPoints: 1, pointCount: 14, want: 87},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(tt.sampleDays, tt.hasChange, tt.weekendPoints, tt.pointCount)
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
			assert.LessOrEqual(t, got, 100)
		})
	}
}

// The score is monotonic in sample size: more days never lowers it.
func TestConfidenceMonotonicInSampleDays(t *testing.T) {
	prev := 0
	for days := 0; days <= 40; days++ {
		got := Confidence(days, false, 2, days)
		assert.GreaterOrEqual(t, got, prev, "days=%d", days)
		prev = got
	}
}

func TestMonthlyProjection(t *testing.T) {
	split := Split{WeekdayAvg: 100, WeekendAvg: 40}
	// (100*5 + 40*2) / 7 = 82.857... per day
	assert.InDelta(t, 82.857142857*30, MonthlyProjection(split, 30), 1e-6)
}

func TestNormalizeCombines(t *testing.T) {
	monday := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	series := daysFrom(monday, 100, 100, 100, 100, 100, 40, 40)

	m := Normalize(series, 30, DefaultChangeThreshold)
	assert.InDelta(t, 100, m.WeekdayAvg, 1e-9)
	assert.InDelta(t, 40, m.WeekendAvg, 1e-9)
	assert.Equal(t, 7, m.SampleDays)
	assert.Positive(t, m.ConfidenceScore)
	assert.LessOrEqual(t, m.ConfidenceScore, 100)
}
