package analytics

import (
	"math"
	"sort"
	"time"
)

// Rolling and correlation defaults used by the dashboards.
const (
	DefaultRollingWindow     = 4
	DefaultRollingMinPeriods = 2
	DefaultMaxLag            = 3
	MinCorrelationPoints     = 4
	OutcomeSmoothingWindow   = 3
)

// WeekStart returns the Monday 00:00 UTC that starts t's week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// WeekBucket groups the records whose timestamps fall in one week.
type WeekBucket[T any] struct {
	Week  time.Time
	Items []T
}

// BucketByWeek assigns each record to the Monday-start UTC week containing
// its timestamp. Records for which timestamp reports false are skipped.
// Buckets are returned in ascending week order and keep records in input
// order.
func BucketByWeek[T any](records []T, timestamp func(T) (time.Time, bool)) []WeekBucket[T] {
	index := make(map[int64]int)
	var buckets []WeekBucket[T]

	for _, r := range records {
		ts, ok := timestamp(r)
		if !ok {
			continue
		}
		week := WeekStart(ts)
		key := week.Unix()
		i, seen := index[key]
		if !seen {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, WeekBucket[T]{Week: week})
		}
		buckets[i].Items = append(buckets[i].Items, r)
	}

	sort.SliceStable(buckets, func(i, j int) bool { return buckets[i].Week.Before(buckets[j].Week) })
	return buckets
}

// WeeklyPoint is one value of a weekly series.
type WeeklyPoint struct {
	Week  time.Time `json:"x"`
	Value float64   `json:"y"`
}

// Series reduces each bucket to a single value.
func Series[T any](buckets []WeekBucket[T], reduce func([]T) float64) []WeeklyPoint {
	out := make([]WeeklyPoint, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, WeeklyPoint{Week: b.Week, Value: reduce(b.Items)})
	}
	return out
}

// RollingAverage is a trailing mean over the last window points of an
// ascending series. Points with fewer than minPeriods values in their window
// are dropped rather than zero-filled.
func RollingAverage(series []WeeklyPoint, window, minPeriods int) []WeeklyPoint {
	if window <= 0 {
		window = DefaultRollingWindow
	}
	if minPeriods <= 0 {
		minPeriods = 1
	}

	out := make([]WeeklyPoint, 0, len(series))
	for i := range series {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		if i-lo+1 < minPeriods {
			continue
		}
		var sum float64
		for _, p := range series[lo : i+1] {
			sum += p.Value
		}
		out = append(out, WeeklyPoint{Week: series[i].Week, Value: sum / float64(i-lo+1)})
	}
	return out
}

// MinMaxNormalize rescales values to [0, 1]. When every value is equal each
// maps to 0.5.
func MinMaxNormalize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	for i, v := range values {
		if hi == lo {
			out[i] = 0.5
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// LagCorrelation is the effort/grade correlation at one lag. Correlation is
// nil when fewer than MinCorrelationPoints weeks align or either side is
// constant.
type LagCorrelation struct {
	Lag         int      `json:"lag"`
	Correlation *float64 `json:"correlation"`
	Points      int      `json:"points"`
}

// CorrelateAtLags shifts the effort series forward by 0..maxLag weeks,
// inner-joins it with the grade series on week and computes the Pearson
// correlation of each alignment.
func CorrelateAtLags(effort, grade []WeeklyPoint, maxLag int) []LagCorrelation {
	if maxLag < 0 {
		maxLag = 0
	}

	grades := make(map[int64]float64, len(grade))
	for _, p := range grade {
		grades[WeekStart(p.Week).Unix()] = p.Value
	}

	out := make([]LagCorrelation, 0, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		var xs, ys []float64
		for _, e := range effort {
			shifted := WeekStart(e.Week).AddDate(0, 0, 7*lag)
			g, ok := grades[shifted.Unix()]
			if !ok {
				continue
			}
			xs = append(xs, e.Value)
			ys = append(ys, g)
		}

		lc := LagCorrelation{Lag: lag, Points: len(xs)}
		if len(xs) >= MinCorrelationPoints {
			if r, ok := Pearson(xs, ys); ok {
				lc.Correlation = &r
			}
		}
		out = append(out, lc)
	}
	return out
}

// Pearson returns the sample correlation coefficient of x and y. ok is false
// for mismatched or short inputs and for zero variance.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if n != len(y) || n < 2 {
		return 0, false
	}

	mx, my := mean(x), mean(y)
	var sxy, sxx, syy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// EffortOutcomeRecord is a finished assignment with its study time and grade.
type EffortOutcomeRecord struct {
	FinishedAt    *time.Time
	ActualMinutes *float64
	Grade         *float64
}

// EffortOutcomePoint pairs cumulative study minutes with an outcome.
type EffortOutcomePoint struct {
	Effort  float64 `json:"effort"`
	Outcome float64 `json:"outcome"`
}

// CumulativeEffortOutcome orders complete records by finish time, keeps a
// running total of minutes and pairs it with each grade. With at least
// OutcomeSmoothingWindow points the outcome axis is smoothed by a trailing
// mean and rounded to one decimal; the effort axis is left untouched.
func CumulativeEffortOutcome(records []EffortOutcomeRecord) []EffortOutcomePoint {
	complete := make([]EffortOutcomeRecord, 0, len(records))
	for _, r := range records {
		if r.FinishedAt == nil || r.ActualMinutes == nil || r.Grade == nil {
			continue
		}
		complete = append(complete, r)
	}
	sort.SliceStable(complete, func(i, j int) bool { return complete[i].FinishedAt.Before(*complete[j].FinishedAt) })

	points := make([]EffortOutcomePoint, 0, len(complete))
	var effort float64
	for _, r := range complete {
		effort += *r.ActualMinutes
		points = append(points, EffortOutcomePoint{Effort: effort, Outcome: *r.Grade})
	}

	if len(points) < OutcomeSmoothingWindow {
		return points
	}

	smoothed := make([]EffortOutcomePoint, len(points))
	for i := range points {
		lo := i - OutcomeSmoothingWindow + 1
		if lo < 0 {
			lo = 0
		}
		var sum float64
		for _, p := range points[lo : i+1] {
			sum += p.Outcome
		}
		smoothed[i] = EffortOutcomePoint{
			Effort:  points[i].Effort,
			Outcome: round(sum/float64(i-lo+1), 1),
		}
	}
	return smoothed
}
