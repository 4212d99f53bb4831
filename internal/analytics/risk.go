package analytics

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DefaultUrgencyTau is the urgency decay constant in days.
const DefaultUrgencyTau = 7.0

// Deadline proximity buckets, in display order.
const (
	BucketOverdue   = "Overdue"
	BucketZeroTwo   = "0-2 days"
	BucketThreeFive = "3-5 days"
	BucketSixTen    = "6-10 days"
	BucketTenPlus   = "10+ days"
)

// ProximityBuckets lists every bucket label from most to least urgent.
var ProximityBuckets = []string{BucketOverdue, BucketZeroTwo, BucketThreeFive, BucketSixTen, BucketTenPlus}

// Default bounds for HistoricalRisk.
const (
	HistoryMinGrade = 50.0
	HistoryMaxGrade = 100.0
)

// DaysUntilDue returns the fractional number of days from now until due.
// Negative values mean the deadline has passed.
func DaysUntilDue(due, now time.Time) float64 {
	return due.Sub(now).Hours() / 24
}

// Urgency is 1 for overdue work, otherwise exp(−days/tau). A non-positive
// tau falls back to DefaultUrgencyTau.
func Urgency(daysUntilDue, tau float64) float64 {
	if daysUntilDue < 0 {
		return 1.0
	}
	if tau <= 0 {
		tau = DefaultUrgencyTau
	}
	return math.Exp(-daysUntilDue / tau)
}

// ProximityBucket maps days-until-due to a fixed human-readable bucket.
func ProximityBucket(daysUntilDue float64) string {
	switch {
	case daysUntilDue < 0:
		return BucketOverdue
	case daysUntilDue <= 2:
		return BucketZeroTwo
	case daysUntilDue <= 5:
		return BucketThreeFive
	case daysUntilDue <= 10:
		return BucketSixTen
	default:
		return BucketTenPlus
	}
}

// WorkloadOverlap normalizes the number of concurrently active assignments
// against the busiest period seen: min(1, active/maxSeen), or 0 when
// maxSeen is 0.
func WorkloadOverlap(activeCount, maxSeen int) float64 {
	if maxSeen <= 0 {
		return 0
	}
	return math.Min(1, float64(activeCount)/float64(maxSeen))
}

// HistoricalRisk inverts a rolling grade into a risk in [0, 1]:
//
//	1 − clamp((grade − min) / (max − min), 0, 1)
//
// A nil grade carries no signal and scores 0.
func HistoricalRisk(rollingGrade *float64, minGrade, maxGrade float64) float64 {
	if rollingGrade == nil || math.IsNaN(*rollingGrade) || maxGrade <= minGrade {
		return 0
	}
	norm := (*rollingGrade - minGrade) / (maxGrade - minGrade)
	return 1 - clamp01(norm)
}

// Component names a risk signal.
type Component string

const (
	TimePressure      Component = "time_pressure"
	DeadlineProximity Component = "deadline_proximity"
	Difficulty        Component = "difficulty"
	History           Component = "history"
	Overlap           Component = "overlap"
)

// AllComponents lists every recognized component.
var AllComponents = []Component{TimePressure, DeadlineProximity, Difficulty, History, Overlap}

// KnownComponent reports whether c is a recognized risk component.
func KnownComponent(c Component) bool {
	for _, k := range AllComponents {
		if k == c {
			return true
		}
	}
	return false
}

// Components holds per-signal values in [0, 1]. Missing keys count as 0.
type Components map[Component]float64

// WeightSet is a named set of component weights.
type WeightSet struct {
	Name    string
	Weights map[Component]float64
}

// Preset names.
const (
	PresetAssignment  = "assignment"
	PresetComposition = "composition"
)

// AssignmentWeights is the five-component preset used for per-assignment
// risk.
var AssignmentWeights = WeightSet{
	Name: PresetAssignment,
	Weights: map[Component]float64{
		TimePressure:      0.30,
		DeadlineProximity: 0.20,
		Difficulty:        0.20,
		History:           0.20,
		Overlap:           0.10,
	},
}

// CompositionWeights is the four-component preset used for the weekly
// stacked risk view.
var CompositionWeights = WeightSet{
	Name: PresetComposition,
	Weights: map[Component]float64{
		TimePressure: 0.35,
		Difficulty:   0.25,
		Overlap:      0.20,
		History:      0.20,
	},
}

// WeightPreset returns the preset registered under name.
func WeightPreset(name string) (WeightSet, error) {
	switch name {
	case PresetAssignment:
		return AssignmentWeights, nil
	case PresetComposition:
		return CompositionWeights, nil
	}
	return WeightSet{}, fmt.Errorf("analytics: unknown risk weight preset %q", name)
}

// Validate checks that every weight names a known component and is
// non-negative.
func (w WeightSet) Validate() error {
	if len(w.Weights) == 0 {
		return fmt.Errorf("analytics: weight set %q is empty", w.Name)
	}
	for c, v := range w.Weights {
		if !KnownComponent(c) {
			return fmt.Errorf("analytics: weight set %q: unknown component %q", w.Name, c)
		}
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("analytics: weight set %q: negative weight for %q", w.Name, c)
		}
	}
	return nil
}

// Components returns the weighted components in a stable order.
func (w WeightSet) Components() []Component {
	out := make([]Component, 0, len(w.Weights))
	for _, c := range AllComponents {
		if _, ok := w.Weights[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RiskResult is an explainable risk score.
type RiskResult struct {
	TotalRisk float64               `json:"total_risk"`
	Breakdown map[Component]float64 `json:"breakdown"`
}

// ComputeRisk weights each component and reports the contributions. Every
// component present in either the input or the weight set appears in the
// breakdown; contributions are rounded to 3 decimals and TotalRisk is their
// sum. Input values are clamped to [0, 1].
func ComputeRisk(c Components, w WeightSet) RiskResult {
	keys := make(map[Component]struct{}, len(c)+len(w.Weights))
	for k := range c {
		keys[k] = struct{}{}
	}
	for k := range w.Weights {
		keys[k] = struct{}{}
	}

	ordered := make([]Component, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i] < ordered[j] })

	res := RiskResult{Breakdown: make(map[Component]float64, len(ordered))}
	var total float64
	for _, k := range ordered {
		contribution := round(w.Weights[k]*clamp01(c[k]), 3)
		res.Breakdown[k] = contribution
		total += contribution
	}
	res.TotalRisk = round(total, 3)
	return res
}
