// Package metrics normalizes noisy daily telemetry into stable sizing and
// cost inputs: weekday/weekend-weighted averages, steady-state detection
// after a step change, and a bounded data-quality confidence score.
package metrics

import "time"

// DefaultChangeThreshold is the relative difference between the older and
// newer half of a window that counts as a step change.
const DefaultChangeThreshold = 0.20

// rebaselineDays is the hard re-baselining window used after a detected
// change. A provisioning change (a capacity resize, say) would otherwise
// pollute a 30-day average with stale pre-change data.
const rebaselineDays = 3

// Point is one daily telemetry sample.
type Point struct {
	Date  time.Time
	Value float64
}

// Split holds the weekday/weekend partition of a daily series.
type Split struct {
	WeekdayAvg   float64
	WeekendAvg   float64
	WeekdayCount int
	WeekendCount int
}

// SteadyStateResult reports the representative value of a series after
// excluding a recent step change.
type SteadyStateResult struct {
	Value          float64
	Changed        bool
	ChangeDate     time.Time
	SampleDaysUsed int
}

// NormalizedMetric is the full derived view of one series. It is recomputed
// on every call; callers persist the derived sizing numbers, not this
// intermediate.
type NormalizedMetric struct {
	WeekdayAvg          float64   `json:"weekdayAvg"`
	WeekendAvg          float64   `json:"weekendAvg"`
	WeekdayCount        int       `json:"weekdayCount"`
	WeekendCount        int       `json:"weekendCount"`
	SteadyStateValue    float64   `json:"steadyStateValue"`
	ChangedDuringWindow bool      `json:"changedDuringWindow"`
	ChangeDate          time.Time `json:"changeDate,omitempty"`
	SampleDays          int       `json:"sampleDays"`
	ConfidenceScore     int       `json:"confidenceScore"`
}

// WeekdayWeekendSplit partitions a series by calendar day-of-week and
// averages each partition. When no weekend points exist the weekend average
// falls back to the weekday average, never to zero, so a downstream weighted
// projection is not artificially depressed for weekend-light datasets.
func WeekdayWeekendSplit(series []Point) Split {
	var split Split
	var weekdaySum, weekendSum float64

	for _, p := range series {
		switch p.Date.Weekday() {
		case time.Saturday, time.Sunday:
			weekendSum += p.Value
			split.WeekendCount++
		default:
			weekdaySum += p.Value
			split.WeekdayCount++
		}
	}

	if split.WeekdayCount > 0 {
		split.WeekdayAvg = weekdaySum / float64(split.WeekdayCount)
	}
	if split.WeekendCount > 0 {
		split.WeekendAvg = weekendSum / float64(split.WeekendCount)
	} else {
		split.WeekendAvg = split.WeekdayAvg
	}
	return split
}

// SteadyState restricts the series to the most recent lookbackDays points,
// compares the older half's average against the newer half's, and flags a
// change when the relative difference exceeds changeThreshold. On a change
// the representative value is recomputed from only the last three days.
// Fewer than two points in the window yields the best available average with
// no change detection attempted.
//
// The series must be ordered by date ascending.
func SteadyState(series []Point, lookbackDays int, changeThreshold float64) SteadyStateResult {
	if changeThreshold <= 0 {
		changeThreshold = DefaultChangeThreshold
	}

	window := series
	if lookbackDays > 0 && len(window) > lookbackDays {
		window = window[len(window)-lookbackDays:]
	}

	if len(window) < 2 {
		return SteadyStateResult{
			Value:          average(window),
			SampleDaysUsed: len(window),
		}
	}

	half := len(window) / 2
	olderAvg := average(window[:half])
	newerAvg := average(window[half:])

	if olderAvg != 0 && relDiff(newerAvg, olderAvg) > changeThreshold {
		recent := window
		if len(recent) > rebaselineDays {
			recent = recent[len(recent)-rebaselineDays:]
		}
		return SteadyStateResult{
			Value:          average(recent),
			Changed:        true,
			ChangeDate:     window[half].Date,
			SampleDaysUsed: len(recent),
		}
	}

	return SteadyStateResult{
		Value:          average(window),
		SampleDaysUsed: len(window),
	}
}

// Confidence scores how trustworthy a projection built on this data is, on a
// 0..100 scale. Base 50, plus bounded bonuses for sample size, stability,
// weekend coverage and raw point volume.
//
// This is a deliberately simple monotonic heuristic, not a statistical
// confidence interval; treat the weights as a calibration knob.
func Confidence(sampleDays int, hasChange bool, weekendPoints, pointCount int) int {
	score := 50

	// Sample-size tiers, up to 30.
	switch {
	case sampleDays >= 30:
		score += 30
	case sampleDays >= 21:
		score += 25
	case sampleDays >= 14:
		score += 20
	case sampleDays >= 7:
		score += 15
	case sampleDays >= 3:
		score += 10
	}

	if !hasChange {
		score += 10
	}
	if weekendPoints >= 2 {
		score += 10
	}

	// Raw data-point volume, up to 10.
	switch {
	case pointCount >= 30:
		score += 10
	case pointCount >= 14:
		score += 7
	case pointCount >= 7:
		score += 5
	case pointCount >= 3:
		score += 2
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

// MonthlyProjection projects a weekday/weekend split across a month of the
// given length, weighting by the 5:2 weekday-to-weekend ratio.
func MonthlyProjection(split Split, daysInMonth int) float64 {
	avgDaily := (split.WeekdayAvg*5 + split.WeekendAvg*2) / 7
	return avgDaily * float64(daysInMonth)
}

// Normalize computes the full derived view for one series.
func Normalize(series []Point, lookbackDays int, changeThreshold float64) NormalizedMetric {
	split := WeekdayWeekendSplit(series)
	steady := SteadyState(series, lookbackDays, changeThreshold)

	return NormalizedMetric{
		WeekdayAvg:          split.WeekdayAvg,
		WeekendAvg:          split.WeekendAvg,
		WeekdayCount:        split.WeekdayCount,
		WeekendCount:        split.WeekendCount,
		SteadyStateValue:    steady.Value,
		ChangedDuringWindow: steady.Changed,
		ChangeDate:          steady.ChangeDate,
		SampleDays:          steady.SampleDaysUsed,
		ConfidenceScore:     Confidence(len(series), steady.Changed, split.WeekendCount, len(series)),
	}
}

func average(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func relDiff(newer, older float64) float64 {
	d := (newer - older) / older
	if d < 0 {
		return -d
	}
	return d
}
