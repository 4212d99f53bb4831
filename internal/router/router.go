package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyplan-backend/internal/handlers"
	"studyplan-backend/internal/middleware"
)

// Handlers groups everything New mounts.
type Handlers struct {
	Sessions    *handlers.StudySessionHandler
	Analytics   *handlers.AnalyticsHandler
	Estimates   *handlers.EstimateHandler
	Jobs        *handlers.JobHandler
	Preferences *handlers.PreferencesHandler
	WebSocket   http.HandlerFunc
}

func New(
	jwtAuth *middleware.JWTAuth,
	h Handlers,
	sessionStartLimiter *middleware.RateLimiter,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Study Session Routes ────
		r.Route("/study-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(sessionStartLimiter.Middleware).Post("/", h.Sessions.Start)
			r.Get("/", h.Sessions.List)
			r.Get("/active", h.Sessions.Active)
			r.Get("/due", h.Sessions.Due)
			r.Get("/collision", h.Sessions.Collision)
			r.With(sessionStartLimiter.Middleware).Post("/{id}/start", h.Sessions.Activate)
			r.Post("/{id}/end", h.Sessions.End)
			r.Post("/{id}/cancel", h.Sessions.Cancel)
			r.Post("/{id}/reschedule", h.Sessions.Reschedule)
		})

		// ──── Analytics Routes ────
		r.Route("/analytics", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(chimiddleware.Timeout(20 * time.Second))
			r.Get("/overview", h.Analytics.Overview)
			r.Get("/deadline-proximity", h.Analytics.DeadlineProximity)
			r.Get("/risk-breakdown", h.Analytics.RiskBreakdown)
			r.Get("/risk-composition", h.Analytics.RiskComposition)
			r.Get("/urgency-risk", h.Analytics.UrgencyRisk)
			r.Get("/grade-trend", h.Analytics.GradeTrend)
			r.Get("/stability", h.Analytics.Stability)
			r.Get("/lag-correlation", h.Analytics.LagCorrelation)
			r.Get("/marginal-returns", h.Analytics.MarginalReturns)
			r.Get("/effort-allocation", h.Analytics.EffortAllocation)
			r.Get("/outcome-contribution", h.Analytics.OutcomeContribution)
			r.Get("/spent-vs-expected", h.Analytics.SpentVsExpected)
			r.Post("/risk", h.Analytics.ScoreRisk)
		})

		// ──── Estimate Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/assignments/{id}/estimate", h.Estimates.Get)
			r.Post("/estimates/backfill", h.Estimates.Backfill)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", h.Jobs.GetJob)
		})

		// ──── Preference Routes ────
		r.Route("/preferences", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/classes", h.Preferences.GetClasses)
			r.Put("/classes", h.Preferences.UpdateClasses)
			r.Get("/assignments", h.Preferences.GetAssignments)
			r.Put("/assignments", h.Preferences.UpdateAssignments)
		})

		// ──── WebSocket ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}
