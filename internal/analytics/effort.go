package analytics

import (
	"time"

	"github.com/google/uuid"
)

// EffortRatio is actual/expected rounded to 2 decimals, or nil when
// expected is zero.
func EffortRatio(actual, expected float64) *float64 {
	if expected == 0 {
		return nil
	}
	r := round(actual/expected, 2)
	return &r
}

// EffortScore rates effort on a 0–100 bell around the expected amount:
//
//	score = max(0, 100 − 40·(ratio − 1)²)
//
// rounded to one decimal. It is nil when no ratio exists.
func EffortScore(actual, expected float64) *float64 {
	ratio := EffortRatio(actual, expected)
	if ratio == nil {
		return nil
	}
	d := *ratio - 1
	s := 100 - 40*d*d
	if s < 0 {
		s = 0
	}
	s = round(s, 1)
	return &s
}

// ClassAmount attributes an amount (minutes, grade points) to a class.
type ClassAmount struct {
	ClassID uuid.UUID
	Amount  float64
}

// ShareByClass returns each class's fraction of the total, rounded to 3
// decimals. Non-positive amounts are ignored; an empty total gives an empty
// map.
func ShareByClass(items []ClassAmount) map[uuid.UUID]float64 {
	totals := make(map[uuid.UUID]float64)
	var total float64
	for _, it := range items {
		if it.Amount <= 0 {
			continue
		}
		totals[it.ClassID] += it.Amount
		total += it.Amount
	}

	out := make(map[uuid.UUID]float64, len(totals))
	if total == 0 {
		return out
	}
	for id, v := range totals {
		out[id] = round(v/total, 3)
	}
	return out
}

// StabilityRecord is the slice of an assignment that feeds the performance
// stability index.
type StabilityRecord struct {
	CreatedAt  time.Time
	DueAt      *time.Time
	FinishedAt *time.Time
	Grade      *float64
	Completed  bool
}

// PSI penalty weights.
const (
	psiVolatilityWeight = 0.5
	psiLateWeight       = 0.3
	psiIncompleteWeight = 0.2
)

// PerformanceStability computes a weekly index (0–100, higher is steadier)
// from grade volatility, late-submission rate and incomplete ratio:
//
//	PSI = 100·(1 − (0.5·norm(std) + 0.3·norm(late) + 0.2·norm(incomplete)))
//
// Weeks are keyed by creation time; each component is min-max normalized
// across weeks.
func PerformanceStability(records []StabilityRecord) []WeeklyPoint {
	buckets := BucketByWeek(records, func(r StabilityRecord) (time.Time, bool) {
		return r.CreatedAt, !r.CreatedAt.IsZero()
	})
	if len(buckets) == 0 {
		return nil
	}

	stds := make([]float64, len(buckets))
	lates := make([]float64, len(buckets))
	incompletes := make([]float64, len(buckets))

	for i, b := range buckets {
		var grades []float64
		var completed, late, incomplete int
		for _, r := range b.Items {
			if r.Grade != nil {
				grades = append(grades, *r.Grade)
			}
			if r.Completed {
				completed++
				if r.FinishedAt != nil && r.DueAt != nil && r.FinishedAt.After(*r.DueAt) {
					late++
				}
			} else {
				incomplete++
			}
		}
		stds[i] = sampleStd(grades)
		if completed > 0 {
			lates[i] = float64(late) / float64(completed)
		}
		incompletes[i] = float64(incomplete) / float64(len(b.Items))
	}

	stdN := MinMaxNormalize(stds)
	lateN := MinMaxNormalize(lates)
	incN := MinMaxNormalize(incompletes)

	out := make([]WeeklyPoint, len(buckets))
	for i, b := range buckets {
		penalty := psiVolatilityWeight*stdN[i] + psiLateWeight*lateN[i] + psiIncompleteWeight*incN[i]
		out[i] = WeeklyPoint{Week: b.Week, Value: round(100*(1-penalty), 1)}
	}
	return out
}

// ComponentSample is one assignment's risk components tagged with a time.
type ComponentSample struct {
	At     time.Time
	Values Components
}

// WeeklyComponents is the mean of each component over a week.
type WeeklyComponents struct {
	Week   time.Time
	Values Components
}

// AverageComponentsByWeek groups samples by week and averages each
// component present in the week. Samples missing a component do not count
// towards that component's mean.
func AverageComponentsByWeek(samples []ComponentSample) []WeeklyComponents {
	buckets := BucketByWeek(samples, func(s ComponentSample) (time.Time, bool) {
		return s.At, !s.At.IsZero()
	})

	out := make([]WeeklyComponents, 0, len(buckets))
	for _, b := range buckets {
		sums := make(Components)
		counts := make(map[Component]int)
		for _, s := range b.Items {
			for c, v := range s.Values {
				sums[c] += v
				counts[c]++
			}
		}
		avg := make(Components, len(sums))
		for c, v := range sums {
			avg[c] = v / float64(counts[c])
		}
		out = append(out, WeeklyComponents{Week: b.Week, Values: avg})
	}
	return out
}
