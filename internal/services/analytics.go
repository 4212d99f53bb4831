package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/models"
)

// Data thresholds below which effort charts report empty.
const (
	MinStudySessions         = 10
	MinAssignmentsWithGrades = 5
	minMarginalReturnPoints  = 3
	minLagObservations       = 4

	defaultAssignmentMinutes    = 60
	defaultAssignmentDifficulty = 3

	minBubbleRadius = 5.0
	maxBubbleRadius = 20.0

	gradeBoundPadding = 3.0

	DefaultRiskLimit = 10
	MaxRiskLimit     = 50

	RiskModeRiskiest = "riskiest"
	RiskModeLatest   = "latest"

	overallSeriesLabel = "Overall Average"
)

// Cache keys for individual charts.
const (
	chartDeadlineProximity   = "deadline_proximity"
	chartRiskBreakdown       = "risk_breakdown"
	chartRiskComposition     = "risk_composition"
	chartUrgencyRisk         = "urgency_risk"
	chartGradeTrend          = "grade_trend"
	chartStability           = "stability"
	chartLagCorrelation      = "lag_correlation"
	chartMarginalReturns     = "marginal_returns"
	chartEffortAllocation    = "effort_allocation"
	chartOutcomeContribution = "outcome_contribution"
	chartSpentVsExpected     = "spent_vs_expected"
	chartOverview            = "overview"
)

// AnalyticsStore is the read side the dashboards are computed from.
type AnalyticsStore interface {
	ListClasses(ctx context.Context, userID uuid.UUID) ([]*models.Class, error)
	ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.Assignment, error)
	ListCompletedSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
}

// AnalyticsOptions selects risk weights and urgency decay.
type AnalyticsOptions struct {
	BreakdownWeights   analytics.WeightSet
	CompositionWeights analytics.WeightSet
	UrgencyTau         float64
}

func DefaultAnalyticsOptions() AnalyticsOptions {
	return AnalyticsOptions{
		BreakdownWeights:   analytics.AssignmentWeights,
		CompositionWeights: analytics.CompositionWeights,
		UrgencyTau:         analytics.DefaultUrgencyTau,
	}
}

// AnalyticsOptionsFor resolves preset names into options.
func AnalyticsOptionsFor(breakdownPreset, compositionPreset string, urgencyTau float64) (AnalyticsOptions, error) {
	breakdown, err := analytics.WeightPreset(breakdownPreset)
	if err != nil {
		return AnalyticsOptions{}, err
	}
	composition, err := analytics.WeightPreset(compositionPreset)
	if err != nil {
		return AnalyticsOptions{}, err
	}
	return AnalyticsOptions{
		BreakdownWeights:   breakdown,
		CompositionWeights: composition,
		UrgencyTau:         urgencyTau,
	}, nil
}

type AnalyticsService struct {
	store AnalyticsStore
	cache *ChartCache
	opts  AnalyticsOptions
	now   func() time.Time
}

// NewAnalyticsService builds the dashboard service. cache may be nil.
func NewAnalyticsService(store AnalyticsStore, cache *ChartCache, opts AnalyticsOptions) *AnalyticsService {
	if opts.UrgencyTau <= 0 {
		opts.UrgencyTau = analytics.DefaultUrgencyTau
	}
	if len(opts.BreakdownWeights.Weights) == 0 {
		opts.BreakdownWeights = analytics.AssignmentWeights
	}
	if len(opts.CompositionWeights.Weights) == 0 {
		opts.CompositionWeights = analytics.CompositionWeights
	}
	return &AnalyticsService{
		store: store,
		cache: cache,
		opts:  opts,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// studyData is one consistent snapshot of a user's records.
type studyData struct {
	now         time.Time
	classes     []*models.Class
	classByID   map[uuid.UUID]*models.Class
	assignments []*models.Assignment
	sessions    []*models.StudySession
}

func (s *AnalyticsService) load(ctx context.Context, userID uuid.UUID) (*studyData, error) {
	return loadStudyData(ctx, s.store, userID, s.now())
}

func loadStudyData(ctx context.Context, store AnalyticsStore, userID uuid.UUID, now time.Time) (*studyData, error) {
	d := &studyData{now: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		classes, err := store.ListClasses(gctx, userID)
		if err != nil {
			return fmt.Errorf("list classes: %w", err)
		}
		d.classes = classes
		return nil
	})
	g.Go(func() error {
		assignments, err := store.ListAssignments(gctx, userID)
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		d.assignments = assignments
		return nil
	})
	g.Go(func() error {
		sessions, err := store.ListCompletedSessions(gctx, userID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		d.sessions = sessions
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load analytics data: %w", err)
	}

	d.classByID = make(map[uuid.UUID]*models.Class, len(d.classes))
	for _, c := range d.classes {
		d.classByID[c.ID] = c
	}
	return d, nil
}

func (d *studyData) className(id uuid.UUID) (string, *string) {
	if c, ok := d.classByID[id]; ok {
		return c.Name, c.Color
	}
	return "", nil
}

func (d *studyData) incomplete() []*models.Assignment {
	out := make([]*models.Assignment, 0, len(d.assignments))
	for _, a := range d.assignments {
		if !a.IsCompleted {
			out = append(out, a)
		}
	}
	return out
}

func (d *studyData) gradedCount() int {
	n := 0
	for _, a := range d.assignments {
		if a.Grade != nil {
			n++
		}
	}
	return n
}

// minutesByAssignment sums completed session minutes per assignment.
func (d *studyData) minutesByAssignment() map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64)
	for _, s := range d.sessions {
		if s.AssignmentID == nil || s.DurationMinutes == nil {
			continue
		}
		out[*s.AssignmentID] += float64(*s.DurationMinutes)
	}
	return out
}

func (s *AnalyticsService) urgency(due *time.Time, now time.Time) float64 {
	if due == nil {
		return 0
	}
	return analytics.Urgency(analytics.DaysUntilDue(*due, now), s.opts.UrgencyTau)
}

func estimatedMinutes(a *models.Assignment) int {
	if a.EstimatedMinutes != nil {
		return *a.EstimatedMinutes
	}
	return defaultAssignmentMinutes
}

func difficultyOrDefault(a *models.Assignment) float64 {
	if a.Difficulty != nil {
		return float64(*a.Difficulty)
	}
	return defaultAssignmentDifficulty
}

func breakdownToStrings(b map[analytics.Component]float64) map[string]float64 {
	out := make(map[string]float64, len(b))
	for k, v := range b {
		out[string(k)] = v
	}
	return out
}

func componentNames(cs []analytics.Component) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

// DeadlineProximity counts incomplete work by time left until due.
func (s *AnalyticsService) DeadlineProximity(ctx context.Context, userID uuid.UUID) (*models.DeadlineProximityChart, error) {
	return cached(ctx, s.cache, userID, chartDeadlineProximity, func() (*models.DeadlineProximityChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.deadlineProximity(d), nil
	})
}

func (s *AnalyticsService) deadlineProximity(d *studyData) *models.DeadlineProximityChart {
	chart := &models.DeadlineProximityChart{
		Labels:  analytics.ProximityBuckets,
		Counts:  make([]int, len(analytics.ProximityBuckets)),
		Minutes: make([]int, len(analytics.ProximityBuckets)),
	}

	index := make(map[string]int, len(analytics.ProximityBuckets))
	for i, b := range analytics.ProximityBuckets {
		index[b] = i
	}

	found := 0
	for _, a := range d.incomplete() {
		if a.DueAt == nil {
			continue
		}
		found++
		i := index[analytics.ProximityBucket(analytics.DaysUntilDue(*a.DueAt, d.now))]
		chart.Counts[i]++
		chart.Minutes[i] += estimatedMinutes(a)
	}

	if found == 0 {
		chart.Empty = true
		chart.Message = "No upcoming assignments with deadlines"
	}
	return chart
}

// assignmentRisks scores each incomplete assignment with the breakdown
// preset. Difficulty is normalized across the set and overlap is each
// estimate relative to the largest.
func (s *AnalyticsService) assignmentRisks(d *studyData) []models.AssignmentRisk {
	pending := d.incomplete()
	if len(pending) == 0 {
		return nil
	}

	difficulties := make([]float64, len(pending))
	maxMinutes := 0
	for i, a := range pending {
		difficulties[i] = difficultyOrDefault(a)
		if m := estimatedMinutes(a); m > maxMinutes {
			maxMinutes = m
		}
	}
	difficultyNorm := analytics.MinMaxNormalize(difficulties)

	out := make([]models.AssignmentRisk, 0, len(pending))
	for i, a := range pending {
		urgency := s.urgency(a.DueAt, d.now)
		minutes := estimatedMinutes(a)

		overlap := 0.0
		if maxMinutes > 0 {
			overlap = math.Min(1, math.Max(0, float64(minutes)/float64(maxMinutes)))
		}

		components := analytics.Components{
			analytics.TimePressure:      urgency,
			analytics.DeadlineProximity: urgency,
			analytics.Difficulty:        difficultyNorm[i],
			analytics.Overlap:           overlap,
			analytics.History:           analytics.HistoricalRisk(a.Grade, analytics.HistoryMinGrade, analytics.HistoryMaxGrade),
		}
		result := analytics.ComputeRisk(components, s.opts.BreakdownWeights)

		name, color := d.className(a.ClassID)
		out = append(out, models.AssignmentRisk{
			AssignmentID:     a.ID,
			Title:            a.Title,
			ClassID:          a.ClassID,
			ClassName:        name,
			Color:            color,
			DueAt:            a.DueAt,
			CreatedAt:        a.CreatedAt,
			EstimatedMinutes: minutes,
			Urgency:          analytics.Round(urgency, 3),
			TotalRisk:        result.TotalRisk,
			Breakdown:        breakdownToStrings(result.Breakdown),
		})
	}
	return out
}

// NormalizeRiskQuery applies defaults to a breakdown query and reports
// invalid values as field errors.
func NormalizeRiskQuery(mode string, limit int) (string, int, map[string]string) {
	fieldErrors := make(map[string]string)
	if mode == "" {
		mode = RiskModeRiskiest
	}
	if mode != RiskModeRiskiest && mode != RiskModeLatest {
		fieldErrors["mode"] = "Mode must be riskiest or latest"
	}
	if limit == 0 {
		limit = DefaultRiskLimit
	}
	if limit < 1 || limit > MaxRiskLimit {
		fieldErrors["limit"] = fmt.Sprintf("Limit must be between 1 and %d", MaxRiskLimit)
	}
	return mode, limit, fieldErrors
}

// RiskBreakdown lists the riskiest or most recent incomplete assignments
// with per-component contributions.
func (s *AnalyticsService) RiskBreakdown(ctx context.Context, userID uuid.UUID, mode string, limit int) (*models.RiskBreakdownChart, error) {
	mode, limit, fieldErrors := NormalizeRiskQuery(mode, limit)
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	key := fmt.Sprintf("%s:%s:%d", chartRiskBreakdown, mode, limit)
	return cached(ctx, s.cache, userID, key, func() (*models.RiskBreakdownChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.riskBreakdown(d, mode, limit), nil
	})
}

func (s *AnalyticsService) riskBreakdown(d *studyData, mode string, limit int) *models.RiskBreakdownChart {
	chart := &models.RiskBreakdownChart{
		Mode:        mode,
		Preset:      s.opts.BreakdownWeights.Name,
		Components:  componentNames(s.opts.BreakdownWeights.Components()),
		Assignments: []models.AssignmentRisk{},
	}

	risks := s.assignmentRisks(d)
	if len(risks) == 0 {
		chart.Empty = true
		chart.Message = "No incomplete assignments"
		return chart
	}

	if mode == RiskModeLatest {
		sort.SliceStable(risks, func(i, j int) bool { return risks[i].CreatedAt.After(risks[j].CreatedAt) })
	} else {
		sort.SliceStable(risks, func(i, j int) bool { return risks[i].TotalRisk > risks[j].TotalRisk })
	}
	if len(risks) > limit {
		risks = risks[:limit]
	}
	chart.Assignments = risks
	return chart
}

// RiskComposition shows the weekly mean of each weighted risk component,
// bucketed by assignment creation week.
func (s *AnalyticsService) RiskComposition(ctx context.Context, userID uuid.UUID) (*models.RiskCompositionChart, error) {
	return cached(ctx, s.cache, userID, chartRiskComposition, func() (*models.RiskCompositionChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.riskComposition(d), nil
	})
}

func (s *AnalyticsService) riskComposition(d *studyData) *models.RiskCompositionChart {
	weights := s.opts.CompositionWeights
	chart := &models.RiskCompositionChart{Preset: weights.Name, Series: []models.ComponentSeries{}}

	if len(d.assignments) == 0 {
		chart.Empty = true
		chart.Message = "No assignments yet"
		return chart
	}

	buckets := analytics.BucketByWeek(d.assignments, func(a *models.Assignment) (time.Time, bool) {
		return a.CreatedAt, !a.CreatedAt.IsZero()
	})

	// Weekly incomplete counts drive overlap; weekly mean grades drive
	// history.
	activeByWeek := make(map[int64]int, len(buckets))
	gradeByWeek := make(map[int64]*float64, len(buckets))
	maxActive := 0
	for _, b := range buckets {
		active := 0
		var grades []float64
		for _, a := range b.Items {
			if !a.IsCompleted {
				active++
			}
			if a.Grade != nil {
				grades = append(grades, *a.Grade)
			}
		}
		key := b.Week.Unix()
		activeByWeek[key] = active
		if active > maxActive {
			maxActive = active
		}
		if len(grades) > 0 {
			avg := analytics.Mean(grades)
			gradeByWeek[key] = &avg
		}
	}

	difficulties := make([]float64, len(d.assignments))
	for i, a := range d.assignments {
		difficulties[i] = difficultyOrDefault(a)
	}
	difficultyNorm := analytics.MinMaxNormalize(difficulties)

	samples := make([]analytics.ComponentSample, 0, len(d.assignments))
	for i, a := range d.assignments {
		if a.CreatedAt.IsZero() {
			continue
		}
		key := analytics.WeekStart(a.CreatedAt).Unix()
		urgency := s.urgency(a.DueAt, d.now)
		samples = append(samples, analytics.ComponentSample{
			At: a.CreatedAt,
			Values: analytics.Components{
				analytics.TimePressure:      urgency,
				analytics.DeadlineProximity: urgency,
				analytics.Difficulty:        difficultyNorm[i],
				analytics.Overlap:           analytics.WorkloadOverlap(activeByWeek[key], maxActive),
				analytics.History:           analytics.HistoricalRisk(gradeByWeek[key], analytics.HistoryMinGrade, analytics.HistoryMaxGrade),
			},
		})
	}

	weekly := analytics.AverageComponentsByWeek(samples)
	if len(weekly) == 0 {
		chart.Empty = true
		chart.Message = "Insufficient data"
		return chart
	}

	for _, c := range weights.Components() {
		series := models.ComponentSeries{Component: string(c), Points: make([]analytics.WeeklyPoint, 0, len(weekly))}
		for _, w := range weekly {
			series.Points = append(series.Points, analytics.WeeklyPoint{
				Week:  w.Week,
				Value: analytics.Round(w.Values[c]*weights.Weights[c], 3),
			})
		}
		chart.Series = append(chart.Series, series)
	}
	return chart
}

// UrgencyRisk plots each incomplete assignment by urgency and total risk,
// sized by remaining work.
func (s *AnalyticsService) UrgencyRisk(ctx context.Context, userID uuid.UUID) (*models.UrgencyRiskChart, error) {
	return cached(ctx, s.cache, userID, chartUrgencyRisk, func() (*models.UrgencyRiskChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return s.urgencyRisk(d), nil
	})
}

func (s *AnalyticsService) urgencyRisk(d *studyData) *models.UrgencyRiskChart {
	chart := &models.UrgencyRiskChart{Points: []models.UrgencyRiskPoint{}}

	pending := d.incomplete()
	if len(pending) == 0 {
		chart.Empty = true
		chart.Message = "No incomplete assignments"
		return chart
	}

	difficulties := make([]float64, len(pending))
	var grades []float64
	for i, a := range pending {
		difficulties[i] = difficultyOrDefault(a)
		if a.Grade != nil {
			grades = append(grades, *a.Grade)
		}
	}
	difficultyNorm := analytics.MinMaxNormalize(difficulties)

	overlap := analytics.WorkloadOverlap(len(pending), len(pending))
	history := 0.0
	if len(grades) > 0 {
		avg := analytics.Mean(grades)
		history = analytics.HistoricalRisk(&avg, analytics.HistoryMinGrade, analytics.HistoryMaxGrade)
	}

	for i, a := range pending {
		urgency := s.urgency(a.DueAt, d.now)
		result := analytics.ComputeRisk(analytics.Components{
			analytics.TimePressure:      urgency,
			analytics.DeadlineProximity: urgency,
			analytics.Difficulty:        difficultyNorm[i],
			analytics.Overlap:           overlap,
			analytics.History:           history,
		}, s.opts.BreakdownWeights)

		minutes := estimatedMinutes(a)
		name, color := d.className(a.ClassID)
		chart.Points = append(chart.Points, models.UrgencyRiskPoint{
			AssignmentID:     a.ID,
			Title:            a.Title,
			ClassName:        name,
			Color:            color,
			Urgency:          analytics.Round(urgency, 3),
			Risk:             analytics.Round(result.TotalRisk, 3),
			Radius:           math.Max(minBubbleRadius, math.Min(maxBubbleRadius, float64(minutes)/10)),
			EstimatedMinutes: minutes,
		})
	}
	return chart
}

// GradeTrend is the rolling weekly grade per class plus an overall line.
func (s *AnalyticsService) GradeTrend(ctx context.Context, userID uuid.UUID) (*models.GradeTrendChart, error) {
	return cached(ctx, s.cache, userID, chartGradeTrend, func() (*models.GradeTrendChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return gradeTrend(d), nil
	})
}

func roundSeries(points []analytics.WeeklyPoint, places int) []analytics.WeeklyPoint {
	for i := range points {
		points[i].Value = analytics.Round(points[i].Value, places)
	}
	return points
}

func meanGrade(items []*models.Assignment) float64 {
	grades := make([]float64, 0, len(items))
	for _, a := range items {
		grades = append(grades, *a.Grade)
	}
	return analytics.Mean(grades)
}

func gradeTrend(d *studyData) *models.GradeTrendChart {
	chart := &models.GradeTrendChart{Series: []models.ClassSeries{}, YMin: 0, YMax: 100}

	byClass := make(map[uuid.UUID][]*models.Assignment)
	var graded []*models.Assignment
	for _, a := range d.assignments {
		if a.Grade == nil || a.FinishedAt == nil {
			continue
		}
		graded = append(graded, a)
		byClass[a.ClassID] = append(byClass[a.ClassID], a)
	}
	if len(graded) == 0 {
		chart.Empty = true
		chart.Message = "No graded assignments yet"
		return chart
	}

	finished := func(a *models.Assignment) (time.Time, bool) { return *a.FinishedAt, true }

	// Overall line averages the per-class weekly means.
	classWeekly := make(map[int64][]float64)
	weekOf := make(map[int64]time.Time)

	classIDs := make([]uuid.UUID, 0, len(byClass))
	for id := range byClass {
		classIDs = append(classIDs, id)
	}
	sort.Slice(classIDs, func(i, j int) bool {
		ni, _ := d.className(classIDs[i])
		nj, _ := d.className(classIDs[j])
		if ni != nj {
			return ni < nj
		}
		return classIDs[i].String() < classIDs[j].String()
	})

	for _, id := range classIDs {
		weekly := analytics.Series(analytics.BucketByWeek(byClass[id], finished), meanGrade)
		for _, p := range weekly {
			key := p.Week.Unix()
			classWeekly[key] = append(classWeekly[key], p.Value)
			weekOf[key] = p.Week
		}

		rolling := analytics.RollingAverage(weekly, analytics.DefaultRollingWindow, analytics.DefaultRollingMinPeriods)
		if len(rolling) < 2 {
			continue
		}
		name, color := d.className(id)
		classID := id
		chart.Series = append(chart.Series, models.ClassSeries{
			ClassID: &classID,
			Label:   name,
			Color:   color,
			Points:  roundSeries(rolling, 1),
		})
	}

	overall := make([]analytics.WeeklyPoint, 0, len(classWeekly))
	for key, values := range classWeekly {
		overall = append(overall, analytics.WeeklyPoint{Week: weekOf[key], Value: analytics.Mean(values)})
	}
	sort.Slice(overall, func(i, j int) bool { return overall[i].Week.Before(overall[j].Week) })
	if rolling := analytics.RollingAverage(overall, analytics.DefaultRollingWindow, analytics.DefaultRollingMinPeriods); len(rolling) > 0 {
		chart.Series = append(chart.Series, models.ClassSeries{Label: overallSeriesLabel, Points: roundSeries(rolling, 1)})
	}

	first := true
	var lo, hi float64
	for _, series := range chart.Series {
		for _, p := range series.Points {
			if first {
				lo, hi = p.Value, p.Value
				first = false
				continue
			}
			lo = math.Min(lo, p.Value)
			hi = math.Max(hi, p.Value)
		}
	}
	if !first {
		chart.YMin = math.Max(0, lo-gradeBoundPadding)
		chart.YMax = math.Min(100, hi+gradeBoundPadding)
	}
	return chart
}

// Stability is the weekly performance stability index.
func (s *AnalyticsService) Stability(ctx context.Context, userID uuid.UUID) (*models.StabilityChart, error) {
	return cached(ctx, s.cache, userID, chartStability, func() (*models.StabilityChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return stability(d), nil
	})
}

func stability(d *studyData) *models.StabilityChart {
	chart := &models.StabilityChart{Points: []analytics.WeeklyPoint{}}
	if len(d.assignments) == 0 {
		chart.Empty = true
		chart.Message = "No assignments yet"
		return chart
	}

	records := make([]analytics.StabilityRecord, 0, len(d.assignments))
	for _, a := range d.assignments {
		records = append(records, analytics.StabilityRecord{
			CreatedAt:  a.CreatedAt,
			DueAt:      a.DueAt,
			FinishedAt: a.FinishedAt,
			Grade:      a.Grade,
			Completed:  a.IsCompleted,
		})
	}

	points := analytics.PerformanceStability(records)
	if len(points) == 0 {
		chart.Empty = true
		chart.Message = "Insufficient data"
		return chart
	}
	chart.Points = points
	return chart
}

// LagCorrelation correlates weekly study minutes with weekly grades at
// lags of 0..3 weeks, per class. Classes are evaluated in parallel.
func (s *AnalyticsService) LagCorrelation(ctx context.Context, userID uuid.UUID) (*models.LagCorrelationChart, error) {
	return cached(ctx, s.cache, userID, chartLagCorrelation, func() (*models.LagCorrelationChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return lagCorrelation(ctx, d)
	})
}

func lagLabels() []string {
	labels := make([]string, analytics.DefaultMaxLag+1)
	for i := range labels {
		labels[i] = fmt.Sprintf("Lag %d", i)
	}
	return labels
}

func classLag(d *studyData, class *models.Class) *models.ClassLagCorrelation {
	var sessions []*models.StudySession
	for _, s := range d.sessions {
		if s.ClassID == class.ID && s.DurationMinutes != nil {
			sessions = append(sessions, s)
		}
	}
	var graded []*models.Assignment
	for _, a := range d.assignments {
		if a.ClassID == class.ID && a.Grade != nil && a.FinishedAt != nil {
			graded = append(graded, a)
		}
	}
	if len(sessions) < minLagObservations || len(graded) < minLagObservations {
		return nil
	}

	effort := analytics.Series(
		analytics.BucketByWeek(sessions, func(s *models.StudySession) (time.Time, bool) { return s.StartedAt, true }),
		func(items []*models.StudySession) float64 {
			var total float64
			for _, s := range items {
				total += float64(*s.DurationMinutes)
			}
			return total
		},
	)
	grades := analytics.Series(
		analytics.BucketByWeek(graded, func(a *models.Assignment) (time.Time, bool) { return *a.FinishedAt, true }),
		meanGrade,
	)

	lags := analytics.CorrelateAtLags(effort, grades, analytics.DefaultMaxLag)
	for _, l := range lags {
		if l.Correlation != nil {
			return &models.ClassLagCorrelation{ClassID: class.ID, ClassName: class.Name, Lags: lags}
		}
	}
	return nil
}

func lagCorrelation(ctx context.Context, d *studyData) (*models.LagCorrelationChart, error) {
	chart := &models.LagCorrelationChart{LagLabels: lagLabels(), Classes: []models.ClassLagCorrelation{}}
	if len(d.classes) == 0 {
		chart.Empty = true
		chart.Message = "No classes yet"
		return chart, nil
	}

	results := make([]*models.ClassLagCorrelation, len(d.classes))
	g, gctx := errgroup.WithContext(ctx)
	for i, class := range d.classes {
		i, class := i, class
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = classLag(d, class)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		if r != nil {
			chart.Classes = append(chart.Classes, *r)
		}
	}
	if len(chart.Classes) == 0 {
		chart.Empty = true
		chart.Message = "Insufficient data for correlation analysis"
	}
	return chart, nil
}

// MarginalReturns plots cumulative study minutes against grades over time.
func (s *AnalyticsService) MarginalReturns(ctx context.Context, userID uuid.UUID) (*models.MarginalReturnsChart, error) {
	return cached(ctx, s.cache, userID, chartMarginalReturns, func() (*models.MarginalReturnsChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return marginalReturns(d), nil
	})
}

func marginalReturns(d *studyData) *models.MarginalReturnsChart {
	chart := &models.MarginalReturnsChart{Points: []analytics.EffortOutcomePoint{}}
	if d.gradedCount() < MinAssignmentsWithGrades {
		chart.Empty = true
		chart.Message = fmt.Sprintf("Need at least %d graded assignments", MinAssignmentsWithGrades)
		return chart
	}

	minutes := d.minutesByAssignment()
	var records []analytics.EffortOutcomeRecord
	for _, a := range d.assignments {
		if !a.IsCompleted || a.Grade == nil || a.FinishedAt == nil {
			continue
		}
		spent := minutes[a.ID]
		if spent <= 0 {
			continue
		}
		records = append(records, analytics.EffortOutcomeRecord{FinishedAt: a.FinishedAt, ActualMinutes: &spent, Grade: a.Grade})
	}
	if len(records) < minMarginalReturnPoints {
		chart.Empty = true
		chart.Message = "Insufficient data for curve"
		return chart
	}

	chart.Points = analytics.CumulativeEffortOutcome(records)
	return chart
}

func shareSlices(d *studyData, shares map[uuid.UUID]float64) []models.ClassShare {
	out := make([]models.ClassShare, 0, len(shares))
	for id, share := range shares {
		name, color := d.className(id)
		out = append(out, models.ClassShare{ClassID: id, ClassName: name, Color: color, Share: share})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Share != out[j].Share {
			return out[i].Share > out[j].Share
		}
		return out[i].ClassName < out[j].ClassName
	})
	return out
}

// EffortAllocation is each class's share of completed study minutes.
func (s *AnalyticsService) EffortAllocation(ctx context.Context, userID uuid.UUID) (*models.ShareChart, error) {
	return cached(ctx, s.cache, userID, chartEffortAllocation, func() (*models.ShareChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return effortAllocation(d), nil
	})
}

func effortAllocation(d *studyData) *models.ShareChart {
	chart := &models.ShareChart{Slices: []models.ClassShare{}}
	if len(d.sessions) < MinStudySessions {
		chart.Empty = true
		chart.Message = fmt.Sprintf("Need at least %d study sessions", MinStudySessions)
		return chart
	}

	items := make([]analytics.ClassAmount, 0, len(d.sessions))
	for _, s := range d.sessions {
		if s.DurationMinutes != nil {
			items = append(items, analytics.ClassAmount{ClassID: s.ClassID, Amount: float64(*s.DurationMinutes)})
		}
	}
	shares := analytics.ShareByClass(items)
	if len(shares) == 0 {
		chart.Empty = true
		chart.Message = "No data available"
		return chart
	}
	chart.Slices = shareSlices(d, shares)
	return chart
}

// OutcomeContribution is each class's share of total grade points.
func (s *AnalyticsService) OutcomeContribution(ctx context.Context, userID uuid.UUID) (*models.ShareChart, error) {
	return cached(ctx, s.cache, userID, chartOutcomeContribution, func() (*models.ShareChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return outcomeContribution(d), nil
	})
}

func outcomeContribution(d *studyData) *models.ShareChart {
	chart := &models.ShareChart{Slices: []models.ClassShare{}}
	if d.gradedCount() < MinAssignmentsWithGrades {
		chart.Empty = true
		chart.Message = fmt.Sprintf("Need at least %d graded assignments", MinAssignmentsWithGrades)
		return chart
	}

	items := make([]analytics.ClassAmount, 0, len(d.assignments))
	for _, a := range d.assignments {
		if a.Grade != nil {
			items = append(items, analytics.ClassAmount{ClassID: a.ClassID, Amount: *a.Grade})
		}
	}
	shares := analytics.ShareByClass(items)
	if len(shares) == 0 {
		chart.Empty = true
		chart.Message = "No data available"
		return chart
	}
	chart.Slices = shareSlices(d, shares)
	return chart
}

// SpentVsExpected compares completed study minutes with the estimated
// minutes still outstanding, per class.
func (s *AnalyticsService) SpentVsExpected(ctx context.Context, userID uuid.UUID) (*models.SpentVsExpectedChart, error) {
	return cached(ctx, s.cache, userID, chartSpentVsExpected, func() (*models.SpentVsExpectedChart, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return spentVsExpected(d), nil
	})
}

func spentVsExpected(d *studyData) *models.SpentVsExpectedChart {
	chart := &models.SpentVsExpectedChart{Classes: []models.ClassTime{}}
	if len(d.sessions) < MinStudySessions || d.gradedCount() < MinAssignmentsWithGrades {
		chart.Empty = true
		chart.Message = fmt.Sprintf("Need at least %d study sessions and %d graded assignments", MinStudySessions, MinAssignmentsWithGrades)
		return chart
	}
	if len(d.classes) == 0 {
		chart.Empty = true
		chart.Message = "No classes found"
		return chart
	}

	actual := make(map[uuid.UUID]int)
	for _, s := range d.sessions {
		if s.DurationMinutes != nil {
			actual[s.ClassID] += *s.DurationMinutes
		}
	}

	history := buildHistory(d, uuid.Nil)
	expected := make(map[uuid.UUID]int)
	for _, a := range d.incomplete() {
		if a.EstimatedMinutes != nil {
			expected[a.ClassID] += *a.EstimatedMinutes
			continue
		}
		if len(history) < analytics.MinHistoryForEstimate {
			continue
		}
		class, ok := d.classByID[a.ClassID]
		if !ok {
			continue
		}
		target := analytics.Descriptor{ClassType: class.ClassType, AssignmentType: analytics.AssignmentOther, ClassID: class.ID}
		expected[a.ClassID] += analytics.EstimateMinutes(target, history)
	}

	for _, c := range d.classes {
		a, hasActual := actual[c.ID]
		e, hasExpected := expected[c.ID]
		if !hasActual && !hasExpected {
			continue
		}
		chart.Classes = append(chart.Classes, models.ClassTime{
			ClassID:         c.ID,
			ClassName:       c.Name,
			ActualMinutes:   a,
			ExpectedMinutes: e,
			EffortScore:     analytics.EffortScore(float64(a), float64(e)),
		})
	}
	if len(chart.Classes) == 0 {
		chart.Empty = true
		chart.Message = "No data available"
	}
	return chart
}

// buildHistory turns completed assignments other than exclude into
// estimator history. Actual minutes come from the completed sessions linked
// to each assignment.
func buildHistory(d *studyData, exclude uuid.UUID) []analytics.HistoricalRecord {
	minutes := d.minutesByAssignment()

	history := make([]analytics.HistoricalRecord, 0)
	for _, a := range d.assignments {
		if !a.IsCompleted || a.ID == exclude {
			continue
		}
		class, ok := d.classByID[a.ClassID]
		if !ok {
			continue
		}

		record := analytics.HistoricalRecord{
			Descriptor: analytics.Descriptor{ClassType: class.ClassType, AssignmentType: a.AssignmentType, ClassID: class.ID},
			Grade:      a.Grade,
		}
		if spent, ok := minutes[a.ID]; ok && spent > 0 {
			v := spent
			record.ActualMinutes = &v
		}
		if a.Difficulty != nil {
			v := float64(*a.Difficulty)
			record.Difficulty = &v
		}
		if record.ActualMinutes == nil && record.Difficulty == nil {
			continue
		}
		history = append(history, record)
	}
	return history
}

// Overview computes every chart from one snapshot, in parallel.
func (s *AnalyticsService) Overview(ctx context.Context, userID uuid.UUID) (*models.AnalyticsOverview, error) {
	return cached(ctx, s.cache, userID, chartOverview, func() (*models.AnalyticsOverview, error) {
		d, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}

		out := &models.AnalyticsOverview{}
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { out.DeadlineProximity = s.deadlineProximity(d); return nil })
		g.Go(func() error { out.RiskBreakdown = s.riskBreakdown(d, RiskModeRiskiest, DefaultRiskLimit); return nil })
		g.Go(func() error { out.RiskComposition = s.riskComposition(d); return nil })
		g.Go(func() error { out.UrgencyRisk = s.urgencyRisk(d); return nil })
		g.Go(func() error { out.GradeTrend = gradeTrend(d); return nil })
		g.Go(func() error { out.Stability = stability(d); return nil })
		g.Go(func() error {
			lag, err := lagCorrelation(gctx, d)
			out.LagCorrelation = lag
			return err
		})
		g.Go(func() error { out.MarginalReturns = marginalReturns(d); return nil })
		g.Go(func() error { out.EffortAllocation = effortAllocation(d); return nil })
		g.Go(func() error { out.OutcomeContribution = outcomeContribution(d); return nil })
		g.Go(func() error { out.SpentVsExpected = spentVsExpected(d); return nil })
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("failed to build overview: %w", err)
		}
		return out, nil
	})
}

// ScoreRisk weighs ad-hoc components against a named preset. Component
// values must lie in [0, 1].
func (s *AnalyticsService) ScoreRisk(req models.RiskScoreRequest) (*analytics.RiskResult, error) {
	fieldErrors := make(map[string]string)

	weights := s.opts.BreakdownWeights
	if req.Preset != "" {
		preset, err := analytics.WeightPreset(req.Preset)
		if err != nil {
			fieldErrors["preset"] = "Unknown risk preset"
		} else {
			weights = preset
		}
	}

	if len(req.Components) == 0 {
		fieldErrors["components"] = "At least one component is required"
	}
	components := make(analytics.Components, len(req.Components))
	for name, v := range req.Components {
		c := analytics.Component(name)
		switch {
		case !analytics.KnownComponent(c):
			fieldErrors["components."+name] = "Unknown risk component"
		case math.IsNaN(v) || v < 0 || v > 1:
			fieldErrors["components."+name] = "Value must be between 0 and 1"
		default:
			components[c] = v
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	result := analytics.ComputeRisk(components, weights)
	return &result, nil
}
