package legs

//LegMonitorResults holds everything one polling round changed.
//ActiveLegs contains only the legs whose state differed from the prior round,
//CompletedLegs contains legs finalized or backfilled this round
type LegMonitorResults struct {
	ActiveLegs       []*Leg             `json:"active_legs"`
	CompletedLegs    []*Leg             `json:"completed_legs"`
	ForecastOutcomes []*ForecastOutcome `json:"forecast_outcomes"`
}
