package analytics

import (
	"testing"
	"time"
)

// monday is the start of a reference week.
var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func week(n int) time.Time { return monday.AddDate(0, 0, 7*n) }

func TestWeekStart(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC), monday},
		{"sunday night", time.Date(2024, 1, 7, 23, 59, 0, 0, time.UTC), monday},
		{"monday midnight", time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), week(1)},
		{"offset zone crosses back", time.Date(2024, 1, 8, 1, 0, 0, 0, plus2), monday},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := WeekStart(tc.in)
			if !got.Equal(tc.want) {
				t.Errorf("WeekStart(%v) = %v, want %v", tc.in, got, tc.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("WeekStart returned location %v, want UTC", got.Location())
			}
		})
	}
}

func TestBucketByWeek(t *testing.T) {
	type rec struct {
		at   time.Time
		name string
	}
	records := []rec{
		{week(2).Add(time.Hour), "c1"},
		{week(0).Add(48 * time.Hour), "a1"},
		{time.Time{}, "skipped"},
		{week(2).Add(72 * time.Hour), "c2"},
		{week(0), "a2"},
	}

	buckets := BucketByWeek(records, func(r rec) (time.Time, bool) { return r.at, !r.at.IsZero() })
	if len(buckets) != 2 {
		t.Fatalf("got %d buckets, want 2", len(buckets))
	}
	if !buckets[0].Week.Equal(week(0)) || !buckets[1].Week.Equal(week(2)) {
		t.Fatalf("weeks = %v, %v", buckets[0].Week, buckets[1].Week)
	}
	if buckets[0].Items[0].name != "a1" || buckets[0].Items[1].name != "a2" {
		t.Errorf("first bucket order = %v", buckets[0].Items)
	}
	if buckets[1].Items[0].name != "c1" || buckets[1].Items[1].name != "c2" {
		t.Errorf("second bucket order = %v", buckets[1].Items)
	}
}

func TestRollingAverage(t *testing.T) {
	series := make([]WeeklyPoint, 5)
	for i := range series {
		series[i] = WeeklyPoint{Week: week(i), Value: float64(10 * (i + 1))}
	}

	got := RollingAverage(series, DefaultRollingWindow, DefaultRollingMinPeriods)
	want := []float64{15, 20, 25, 35}
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d", len(got), len(want))
	}
	for i, w := range want {
		assertFloat(t, "rolling", got[i].Value, w)
		if !got[i].Week.Equal(week(i + 1)) {
			t.Errorf("point %d week = %v, want %v", i, got[i].Week, week(i+1))
		}
	}
}

func TestRollingAverageShortSeries(t *testing.T) {
	got := RollingAverage([]WeeklyPoint{{Week: week(0), Value: 80}}, 4, 2)
	if len(got) != 0 {
		t.Errorf("expected no points below minPeriods, got %v", got)
	}
}

func TestMinMaxNormalize(t *testing.T) {
	for _, v := range MinMaxNormalize([]float64{5, 5, 5}) {
		assertFloat(t, "constant", v, 0.5)
	}

	got := MinMaxNormalize([]float64{0, 5, 10})
	for i, want := range []float64{0, 0.5, 1} {
		assertFloat(t, "spread", got[i], want)
	}

	if out := MinMaxNormalize(nil); len(out) != 0 {
		t.Errorf("MinMaxNormalize(nil) = %v", out)
	}
}

func TestCorrelateAtLags(t *testing.T) {
	var effort, grades []WeeklyPoint
	for i := 0; i < 6; i++ {
		effort = append(effort, WeeklyPoint{Week: week(i), Value: float64(i + 1)})
		grades = append(grades, WeeklyPoint{Week: week(i), Value: float64(10 * (i + 1))})
	}

	got := CorrelateAtLags(effort, grades, DefaultMaxLag)
	if len(got) != DefaultMaxLag+1 {
		t.Fatalf("got %d lags, want %d", len(got), DefaultMaxLag+1)
	}

	wantPoints := []int{6, 5, 4, 3}
	for i, lc := range got {
		if lc.Lag != i {
			t.Errorf("lag %d reported as %d", i, lc.Lag)
		}
		if lc.Points != wantPoints[i] {
			t.Errorf("lag %d points = %d, want %d", i, lc.Points, wantPoints[i])
		}
	}
	for _, lc := range got[:3] {
		if lc.Correlation == nil {
			t.Fatalf("lag %d correlation is nil", lc.Lag)
		}
		assertFloat(t, "correlation", *lc.Correlation, 1.0)
	}
	if got[3].Correlation != nil {
		t.Errorf("lag 3 with %d points should be nil, got %v", got[3].Points, *got[3].Correlation)
	}
}

func TestCorrelateAtLagsConstantSeries(t *testing.T) {
	var effort, grades []WeeklyPoint
	for i := 0; i < 5; i++ {
		effort = append(effort, WeeklyPoint{Week: week(i), Value: 60})
		grades = append(grades, WeeklyPoint{Week: week(i), Value: float64(70 + i)})
	}
	got := CorrelateAtLags(effort, grades, 0)
	if got[0].Correlation != nil {
		t.Errorf("constant effort should give nil correlation, got %v", *got[0].Correlation)
	}
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3, 4}, []float64{8, 6, 4, 2})
	if !ok {
		t.Fatal("Pearson reported not ok")
	}
	assertFloat(t, "anti-correlated", r, -1)

	if _, ok := Pearson([]float64{1, 2}, []float64{1}); ok {
		t.Error("mismatched lengths should not be ok")
	}
}

func TestCumulativeEffortOutcome(t *testing.T) {
	t1 := monday.Add(24 * time.Hour)
	t2 := monday.Add(48 * time.Hour)
	t3 := monday.Add(72 * time.Hour)

	records := []EffortOutcomeRecord{
		{FinishedAt: &t3, ActualMinutes: ptr(90), Grade: ptr(70)},
		{FinishedAt: &t1, ActualMinutes: ptr(60), Grade: ptr(80)},
		{FinishedAt: &t2, ActualMinutes: ptr(45)},
		{FinishedAt: &t2, ActualMinutes: ptr(30), Grade: ptr(90)},
	}

	got := CumulativeEffortOutcome(records)
	want := []EffortOutcomePoint{
		{Effort: 60, Outcome: 80},
		{Effort: 90, Outcome: 85},
		{Effort: 180, Outcome: 80},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d points, want %d", len(got), len(want))
	}
	for i := range want {
		assertFloat(t, "effort", got[i].Effort, want[i].Effort)
		assertFloat(t, "outcome", got[i].Outcome, want[i].Outcome)
	}
}

func TestCumulativeEffortOutcomeUnsmoothed(t *testing.T) {
	t1 := monday
	t2 := monday.Add(time.Hour)
	got := CumulativeEffortOutcome([]EffortOutcomeRecord{
		{FinishedAt: &t1, ActualMinutes: ptr(20), Grade: ptr(60)},
		{FinishedAt: &t2, ActualMinutes: ptr(40), Grade: ptr(100)},
	})
	if len(got) != 2 {
		t.Fatalf("got %d points, want 2", len(got))
	}
	assertFloat(t, "second outcome", got[1].Outcome, 100)
	assertFloat(t, "second effort", got[1].Effort, 60)
}
