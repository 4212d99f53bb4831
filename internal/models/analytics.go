package models

import (
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/analytics"
)

// ChartStatus is embedded in every chart payload. Sparse history yields
// Empty with a Message rather than an error.
type ChartStatus struct {
	Empty   bool   `json:"empty"`
	Message string `json:"message,omitempty"`
}

type DeadlineProximityChart struct {
	ChartStatus
	Labels  []string `json:"labels"`
	Counts  []int    `json:"counts"`
	Minutes []int    `json:"minutes"`
}

type AssignmentRisk struct {
	AssignmentID     uuid.UUID          `json:"assignment_id"`
	Title            string             `json:"title"`
	ClassID          uuid.UUID          `json:"class_id"`
	ClassName        string             `json:"class_name"`
	Color            *string            `json:"color"`
	DueAt            *time.Time         `json:"due_at"`
	CreatedAt        time.Time          `json:"created_at"`
	EstimatedMinutes int                `json:"estimated_minutes"`
	Urgency          float64            `json:"urgency"`
	TotalRisk        float64            `json:"total_risk"`
	Breakdown        map[string]float64 `json:"breakdown"`
}

type RiskBreakdownChart struct {
	ChartStatus
	Mode        string           `json:"mode"`
	Preset      string           `json:"preset"`
	Components  []string         `json:"components"`
	Assignments []AssignmentRisk `json:"assignments"`
}

type ComponentSeries struct {
	Component string                  `json:"component"`
	Points    []analytics.WeeklyPoint `json:"data"`
}

type RiskCompositionChart struct {
	ChartStatus
	Preset string            `json:"preset"`
	Series []ComponentSeries `json:"series"`
}

type UrgencyRiskPoint struct {
	AssignmentID     uuid.UUID `json:"assignment_id"`
	Title            string    `json:"label"`
	ClassName        string    `json:"class_name"`
	Color            *string   `json:"color"`
	Urgency          float64   `json:"x"`
	Risk             float64   `json:"y"`
	Radius           float64   `json:"r"`
	EstimatedMinutes int       `json:"estimated_minutes"`
}

type UrgencyRiskChart struct {
	ChartStatus
	Points []UrgencyRiskPoint `json:"points"`
}

// ClassSeries is a weekly series for one class; ClassID is nil for the
// all-classes line.
type ClassSeries struct {
	ClassID *uuid.UUID              `json:"class_id,omitempty"`
	Label   string                  `json:"label"`
	Color   *string                 `json:"color"`
	Points  []analytics.WeeklyPoint `json:"data"`
}

type GradeTrendChart struct {
	ChartStatus
	Series []ClassSeries `json:"series"`
	YMin   float64       `json:"y_min"`
	YMax   float64       `json:"y_max"`
}

type StabilityChart struct {
	ChartStatus
	Points []analytics.WeeklyPoint `json:"points"`
}

type ClassLagCorrelation struct {
	ClassID   uuid.UUID                  `json:"class_id"`
	ClassName string                     `json:"class_name"`
	Lags      []analytics.LagCorrelation `json:"lags"`
}

type LagCorrelationChart struct {
	ChartStatus
	LagLabels []string              `json:"lag_labels"`
	Classes   []ClassLagCorrelation `json:"classes"`
}

type MarginalReturnsChart struct {
	ChartStatus
	Points []analytics.EffortOutcomePoint `json:"points"`
}

type ClassShare struct {
	ClassID   uuid.UUID `json:"class_id"`
	ClassName string    `json:"class_name"`
	Color     *string   `json:"color"`
	Share     float64   `json:"value"`
}

// ShareChart backs both the effort-allocation and outcome-contribution
// donuts. Slices are ordered by share, largest first.
type ShareChart struct {
	ChartStatus
	Slices []ClassShare `json:"slices"`
}

type ClassTime struct {
	ClassID         uuid.UUID `json:"class_id"`
	ClassName       string    `json:"class_name"`
	ActualMinutes   int       `json:"actual"`
	ExpectedMinutes int       `json:"expected"`
	EffortScore     *float64  `json:"effort_score"`
}

type SpentVsExpectedChart struct {
	ChartStatus
	Classes []ClassTime `json:"classes"`
}

type AnalyticsOverview struct {
	DeadlineProximity   *DeadlineProximityChart `json:"deadline_proximity"`
	RiskBreakdown       *RiskBreakdownChart     `json:"risk_breakdown"`
	RiskComposition     *RiskCompositionChart   `json:"risk_composition"`
	UrgencyRisk         *UrgencyRiskChart       `json:"urgency_risk"`
	GradeTrend          *GradeTrendChart        `json:"grade_trend"`
	Stability           *StabilityChart         `json:"stability"`
	LagCorrelation      *LagCorrelationChart    `json:"lag_correlation"`
	MarginalReturns     *MarginalReturnsChart   `json:"marginal_returns"`
	EffortAllocation    *ShareChart             `json:"effort_allocation"`
	OutcomeContribution *ShareChart             `json:"outcome_contribution"`
	SpentVsExpected     *SpentVsExpectedChart   `json:"spent_vs_expected"`
}

// RiskScoreRequest scores ad-hoc components against a named preset.
type RiskScoreRequest struct {
	Components map[string]float64 `json:"components"`
	Preset     string             `json:"preset"`
}
