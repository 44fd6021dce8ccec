package monitor

import (
	"log"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/OpenFerryTools/ferrycast/business/data/schedule"
)

//tickEvent is the coarse lifecycle classification of one vessel tick. Every other
//decision, arrive dock, depart dock, key change, is a secondary event detected by
//comparing the constructed next state against the prior state
type tickEvent int

const (
	//FirstSighting no active leg exists for the vessel
	FirstSighting tickEvent = iota
	//LegBoundary the vessel's origin dock changed, ending one leg and starting another
	LegBoundary
	//InLegUpdate the origin dock is unchanged
	InLegUpdate
)

//String implements Stringer interface for tickEvent
func (e tickEvent) String() string {
	switch e {
	case FirstSighting:
		return "FirstSighting"
	case LegBoundary:
		return "LegBoundary"
	case InLegUpdate:
		return "InLegUpdate"
	}
	return "Unknown"
}

//classifyTick performs the three way lifecycle split for one vessel tick
func classifyTick(priorLeg *legs.Leg, sample *PositionSample) tickEvent {
	if priorLeg == nil {
		return FirstSighting
	}
	if priorLeg.OriginDockId != sample.OriginDockId {
		return LegBoundary
	}
	return InLegUpdate
}

//scheduleIndex looks up published sailings for identity enrichment
type scheduleIndex interface {
	PublishedLegFor(vehicleId string, originDockId string, scheduledDeparture time.Time) (*schedule.PublishedLeg, error)
}

//tickResult is one vessel's contribution to the round's write plan
type tickResult struct {
	vehicleId string
	event     tickEvent
	//nextLeg is the complete constructed next state for the vessel's active leg
	nextLeg *legs.Leg
	//completedLeg is the finalized prior leg, set only on LegBoundary
	completedLeg *legs.Leg
	//backfillDeparture is set when this tick observed the vessel depart, it actualizes
	//the depart next slots on the vessel's previously completed leg
	backfillDeparture *time.Time
	outcomes          []*legs.ForecastOutcome
	//changed is false when nextLeg is field for field identical to the prior state
	//(ignoring sample time), in which case the tick produces no write at all
	changed bool
}

//legReducer builds the next intended leg state for one vessel tick and drives the
//forecast slot lifecycle. One reducer serves all vessels; it holds no per vessel state,
//so reducer runs for different vessels may run concurrently
type legReducer struct {
	log        *log.Logger
	schedules  scheduleIndex
	forecaster *forecastOrchestrator
}

func makeLegReducer(log *log.Logger, schedules scheduleIndex, forecaster *forecastOrchestrator) *legReducer {
	return &legReducer{
		log:        log,
		schedules:  schedules,
		forecaster: forecaster,
	}
}

//reduceTick classifies the tick, constructs the next state, and applies the forecast
//lifecycle for one vessel's position sample. priorLeg is the stored active leg, nil if
//the vessel has none. reduceTick is pure with respect to priorLeg: running it twice on
//the same inputs produces the same result
func (r *legReducer) reduceTick(priorLeg *legs.Leg, sample *PositionSample) *tickResult {
	event := classifyTick(priorLeg, sample)
	result := tickResult{
		vehicleId: sample.VehicleId,
		event:     event,
	}

	var completed *legs.Leg
	var next *legs.Leg
	switch event {
	case FirstSighting:
		next = r.buildNextLeg(nil, nil, sample)
	case LegBoundary:
		//finalize the prior leg first, then build the new leg with predecessor
		//context copied from the finalized leg
		completed = priorLeg.Clone()
		completed.Finalize(sample.SampleTime)
		result.outcomes = append(result.outcomes, r.forecaster.finalizeLeg(completed)...)
		next = r.buildNextLeg(nil, completed, sample)
	case InLegUpdate:
		next = r.buildNextLeg(priorLeg, nil, sample)
	}

	//key change invalidation: a leg whose identity shifted mid flight (destination or
	//schedule discovered late) re-predicts its open slots under the new key
	if event == InLegUpdate && legKeyChanged(priorLeg, next) {
		r.forecaster.invalidateOpenSlots(next)
	}

	//forecast attempts are level triggered: a slot the service could not price on the
	//tick its event fired, or whose required context completed later, is attempted
	//again every following tick until it fills. predictSlot never overwrites and
	//Actualize never reapplies, so a stable tick still diffs to a no-op
	if next.AtDock {
		r.forecaster.onAtDock(next)
	}
	if next.ActualDepartureTime != nil {
		result.outcomes = append(result.outcomes, r.forecaster.onDeparted(next)...)
	}
	//the backfill stays edge triggered, only the tick that observed the departure
	//patches the vessel's previously completed leg
	if departDockEvent(priorLeg, next, event) {
		result.backfillDeparture = copyTime(next.ActualDepartureTime)
	}

	result.nextLeg = next
	result.completedLeg = completed
	result.changed = event != InLegUpdate || !priorLeg.Equivalent(next)
	return &result
}

//departDockEvent is true when this tick is the first to carry a departure time for the leg
func departDockEvent(priorLeg *legs.Leg, next *legs.Leg, event tickEvent) bool {
	if next.ActualDepartureTime == nil {
		return false
	}
	if event != InLegUpdate {
		return true
	}
	return priorLeg.ActualDepartureTime == nil
}

func legKeyChanged(priorLeg *legs.Leg, next *legs.Leg) bool {
	if priorLeg.LegKey == nil || next.LegKey == nil {
		return false
	}
	return *priorLeg.LegKey != *next.LegKey
}
