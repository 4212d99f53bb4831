package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/models"
)

type analyticsReader interface {
	Overview(ctx context.Context, userID uuid.UUID) (*models.AnalyticsOverview, error)
	DeadlineProximity(ctx context.Context, userID uuid.UUID) (*models.DeadlineProximityChart, error)
	RiskBreakdown(ctx context.Context, userID uuid.UUID, mode string, limit int) (*models.RiskBreakdownChart, error)
	RiskComposition(ctx context.Context, userID uuid.UUID) (*models.RiskCompositionChart, error)
	UrgencyRisk(ctx context.Context, userID uuid.UUID) (*models.UrgencyRiskChart, error)
	GradeTrend(ctx context.Context, userID uuid.UUID) (*models.GradeTrendChart, error)
	Stability(ctx context.Context, userID uuid.UUID) (*models.StabilityChart, error)
	LagCorrelation(ctx context.Context, userID uuid.UUID) (*models.LagCorrelationChart, error)
	MarginalReturns(ctx context.Context, userID uuid.UUID) (*models.MarginalReturnsChart, error)
	EffortAllocation(ctx context.Context, userID uuid.UUID) (*models.ShareChart, error)
	OutcomeContribution(ctx context.Context, userID uuid.UUID) (*models.ShareChart, error)
	SpentVsExpected(ctx context.Context, userID uuid.UUID) (*models.SpentVsExpectedChart, error)
	ScoreRisk(req models.RiskScoreRequest) (*analytics.RiskResult, error)
}

type AnalyticsHandler struct {
	analytics analyticsReader
}

func NewAnalyticsHandler(a analyticsReader) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: a}
}

// serveChart writes one user-scoped chart.
func serveChart[T any](w http.ResponseWriter, r *http.Request, load func(context.Context, uuid.UUID) (*T, error)) {
	chart, err := load(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.Overview)
}

func (h *AnalyticsHandler) DeadlineProximity(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.DeadlineProximity)
}

func (h *AnalyticsHandler) RiskBreakdown(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"limit": "Limit must be a number"}, r))
		return
	}
	mode := r.URL.Query().Get("mode")

	serveChart(w, r, func(ctx context.Context, userID uuid.UUID) (*models.RiskBreakdownChart, error) {
		return h.analytics.RiskBreakdown(ctx, userID, mode, limit)
	})
}

func (h *AnalyticsHandler) RiskComposition(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.RiskComposition)
}

func (h *AnalyticsHandler) UrgencyRisk(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.UrgencyRisk)
}

func (h *AnalyticsHandler) GradeTrend(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.GradeTrend)
}

func (h *AnalyticsHandler) Stability(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.Stability)
}

func (h *AnalyticsHandler) LagCorrelation(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.LagCorrelation)
}

func (h *AnalyticsHandler) MarginalReturns(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.MarginalReturns)
}

func (h *AnalyticsHandler) EffortAllocation(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.EffortAllocation)
}

func (h *AnalyticsHandler) OutcomeContribution(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.OutcomeContribution)
}

func (h *AnalyticsHandler) SpentVsExpected(w http.ResponseWriter, r *http.Request) {
	serveChart(w, r, h.analytics.SpentVsExpected)
}

// ScoreRisk weighs caller-supplied components; nothing is read from the
// store.
func (h *AnalyticsHandler) ScoreRisk(w http.ResponseWriter, r *http.Request) {
	var req models.RiskScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	result, err := h.analytics.ScoreRisk(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
