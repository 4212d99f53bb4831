package analytics

import "math"

// MinHistoryForEstimate is the number of historical records required before
// the estimators trust history over the per-type base values.
const MinHistoryForEstimate = 6

var baseMinutesByType = map[string]int{
	AssignmentQuiz:         90,
	AssignmentHomework:     75,
	AssignmentLabReport:    180,
	AssignmentReading:      90,
	AssignmentWriting:      240,
	AssignmentPresentation: 240,
	AssignmentProject:      210,
	AssignmentTest:         210,
	AssignmentExam:         360,
	AssignmentOther:        180,
}

var baseDifficultyByType = map[string]int{
	AssignmentQuiz:         4,
	AssignmentReading:      4,
	AssignmentPresentation: 7,
	AssignmentLabReport:    7,
	AssignmentWriting:      8,
	AssignmentHomework:     3,
	AssignmentProject:      7,
	AssignmentTest:         8,
	AssignmentExam:         9,
	AssignmentOther:        5,
}

const (
	defaultBaseMinutes    = 120
	defaultBaseDifficulty = 5

	minutesBaseWeight    = 0.35
	difficultyBaseWeight = 0.4
)

// HistoricalRecord is a completed assignment projected for estimation.
// Measurements are optional; records missing the one being estimated are
// skipped.
type HistoricalRecord struct {
	Descriptor
	ActualMinutes *float64
	Difficulty    *float64
	Grade         *float64
}

// BaseMinutes returns the default expected minutes for an assignment type.
func BaseMinutes(assignmentType string) int {
	if v, ok := baseMinutesByType[assignmentType]; ok {
		return v
	}
	return defaultBaseMinutes
}

// BaseDifficulty returns the default 1–10 difficulty for an assignment type.
func BaseDifficulty(assignmentType string) int {
	if v, ok := baseDifficultyByType[assignmentType]; ok {
		return v
	}
	return defaultBaseDifficulty
}

// EstimateMinutes predicts the minutes an assignment will take.
//
// With fewer than MinHistoryForEstimate records the type's base value is
// returned unchanged. Otherwise
//
//	est = 0.35·base + 0.65·Σ(wᵢ·minutesᵢ)/Σwᵢ,  wᵢ = CompositeSimilarity(target, pastᵢ)
//
// rounded to the nearest minute.
func EstimateMinutes(target Descriptor, history []HistoricalRecord) int {
	base := BaseMinutes(target.AssignmentType)

	avg, ok := weightedHistory(target, history, func(r HistoricalRecord) *float64 { return r.ActualMinutes })
	if !ok {
		return base
	}
	return int(math.Round(minutesBaseWeight*float64(base) + (1-minutesBaseWeight)*avg))
}

// EstimateDifficulty predicts a 1–10 difficulty using the same weighting as
// EstimateMinutes with a 0.4/0.6 blend, clamped to [1, 10].
func EstimateDifficulty(target Descriptor, history []HistoricalRecord) int {
	base := BaseDifficulty(target.AssignmentType)

	avg, ok := weightedHistory(target, history, func(r HistoricalRecord) *float64 { return r.Difficulty })
	if !ok {
		return base
	}
	est := difficultyBaseWeight*float64(base) + (1-difficultyBaseWeight)*avg
	return int(math.Round(math.Min(10, math.Max(1, est))))
}

// weightedHistory returns the similarity-weighted mean of value over the
// history. ok is false when history is too short or no weight accrues.
func weightedHistory(target Descriptor, history []HistoricalRecord, value func(HistoricalRecord) *float64) (float64, bool) {
	if len(history) < MinHistoryForEstimate {
		return 0, false
	}

	var sum, total float64
	for _, past := range history {
		v := value(past)
		if v == nil {
			continue
		}
		w := CompositeSimilarity(target, past.Descriptor)
		sum += w * *v
		total += w
	}

	if total == 0 {
		return 0, false
	}
	return sum / total, true
}
