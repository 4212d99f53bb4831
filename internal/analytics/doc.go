// Package analytics holds the pure scoring functions behind the study
// dashboards: assignment similarity, expected-effort estimation, risk
// scoring and weekly time-series aggregation.
//
// Nothing in this package touches storage or the clock. Callers pass in
// the records and the reference time; results are deterministic for a
// given input, so functions may be called concurrently.
//
// Sparse history is a normal state for a new user. Estimators fall back to
// per-type base values and aggregators return empty or nil results rather
// than errors.
package analytics
