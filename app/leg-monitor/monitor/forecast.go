package monitor

import (
	"log"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
)

//tripContext carries everything the forecast service needs to price one slot: leg
//identity, predecessor timing, and schedule adherence
type tripContext struct {
	VehicleId              string    `json:"vehicle_id"`
	OriginDockId           string    `json:"origin_dock_id"`
	DestinationDockId      string    `json:"destination_dock_id"`
	ScheduledDeparture     time.Time `json:"scheduled_departure"`
	PrevOriginDockId       string    `json:"prev_origin_dock_id"`
	PrevScheduledDeparture time.Time `json:"prev_scheduled_departure"`
	PrevActualDeparture    time.Time `json:"prev_actual_departure"`
	At                     time.Time `json:"at"`
}

//prediction is the forecast service's answer for one slot
type prediction struct {
	//PredictedMinutes is the offset in minutes from the slot's anchor time
	PredictedMinutes  float64
	MeanAbsoluteError float64
	StdDev            float64
}

//predictor produces predictions for a forecast slot, returning nil when the service has
//no coverage for the route
type predictor interface {
	predict(ctx *tripContext, slotName string) (*prediction, error)
}

//forecastOrchestrator drives the slot lifecycle Empty -> Predicted -> Actualized for a
//leg's five forecast slots. All slot transitions in the repository happen here, driven
//by the secondary events the reducer detects
type forecastOrchestrator struct {
	log       *log.Logger
	predictor predictor
}

func makeForecastOrchestrator(log *log.Logger, predictor predictor) *forecastOrchestrator {
	return &forecastOrchestrator{
		log:       log,
		predictor: predictor,
	}
}

//requiredContext assembles the tripContext for leg, or returns false when any required
//field is missing. A missing field is not an error, the forecast attempt is silently
//suppressed and may succeed on a later tick. Forecasts that depend on predecessor
//context are never computed for a vessel's first observed leg, which has none
func requiredContext(leg *legs.Leg) (*tripContext, bool) {
	if leg.DestinationDockId == nil ||
		leg.PrevOriginDockId == nil ||
		leg.ScheduledDepartureTime == nil ||
		leg.PrevScheduledDeparture == nil ||
		leg.PrevActualDeparture == nil {
		return nil, false
	}
	return &tripContext{
		VehicleId:              leg.VehicleId,
		OriginDockId:           leg.OriginDockId,
		DestinationDockId:      *leg.DestinationDockId,
		ScheduledDeparture:     *leg.ScheduledDepartureTime,
		PrevOriginDockId:       *leg.PrevOriginDockId,
		PrevScheduledDeparture: *leg.PrevScheduledDeparture,
		PrevActualDeparture:    *leg.PrevActualDeparture,
		At:                     leg.SampleTime,
	}, true
}

//onAtDock computes the dock side forecasts for the upcoming sailing. Called on every
//tick the vessel is at its origin dock, so a slot the service could not price earlier
//is attempted again until it fills
func (f *forecastOrchestrator) onAtDock(leg *legs.Leg) {
	ctx, ok := requiredContext(leg)
	if !ok {
		return
	}
	f.predictSlot(leg, ctx, legs.SlotDockArriveNext)
	f.predictSlot(leg, ctx, legs.SlotDockDepartNext)
}

//onDeparted computes the at sea forecasts once the vessel's departure is known, then
//actualizes every slot that departure resolves. Called on every tick after the
//departure is observed; returns outcome records only for slots newly actualized by
//this tick
func (f *forecastOrchestrator) onDeparted(leg *legs.Leg) []*legs.ForecastOutcome {
	if ctx, ok := requiredContext(leg); ok {
		f.predictSlot(leg, ctx, legs.SlotDockDepartCurrent)
		f.predictSlot(leg, ctx, legs.SlotSeaArriveNext)
		f.predictSlot(leg, ctx, legs.SlotSeaDepartNext)
	}

	if leg.ActualDepartureTime == nil {
		return nil
	}
	return f.actualizeSlots(leg, *leg.ActualDepartureTime, legs.SlotDockDepartCurrent)
}

//finalizeLeg actualizes the arrival slots on a leg that just completed. The leg's end
//time is the observed outcome both arrival forecasts predicted
func (f *forecastOrchestrator) finalizeLeg(completed *legs.Leg) []*legs.ForecastOutcome {
	if completed.LegEndTime == nil {
		return nil
	}
	return f.actualizeSlots(completed, *completed.LegEndTime,
		legs.SlotDockArriveNext, legs.SlotSeaArriveNext)
}

//invalidateOpenSlots clears predicted but not yet actualized slots after the leg's key
//changed, so they are re-predicted under the new identity. Actualized slots are never
//cleared and an actual is never overwritten
func (f *forecastOrchestrator) invalidateOpenSlots(leg *legs.Leg) {
	for _, name := range legs.SlotNames {
		slot := leg.Forecasts.Get(name)
		if slot != nil && !slot.Actualized() {
			leg.Forecasts.Clear(name)
		}
	}
}

//predictSlot fills the named slot if it is still empty. A failed service call degrades
//to a missing forecast for this tick, logged and retried on the next tick; a service
//response with no coverage leaves the slot empty without logging
func (f *forecastOrchestrator) predictSlot(leg *legs.Leg, ctx *tripContext, slotName string) {
	if leg.Forecasts.Get(slotName) != nil {
		return
	}
	anchor := slotAnchor(leg, slotName)
	if anchor == nil {
		return
	}
	pred, err := f.predictor.predict(ctx, slotName)
	if err != nil {
		f.log.Printf("forecast %s unavailable for vessel %s, error: %v", slotName, leg.VehicleId, err)
		return
	}
	if pred == nil {
		return
	}
	leg.Forecasts.Set(slotName, makeForecastSlot(*anchor, pred))
}

//actualizeSlots records actual against each named slot that holds an open prediction
//and serializes the newly actualized slots into outcome records
func (f *forecastOrchestrator) actualizeSlots(leg *legs.Leg,
	actual time.Time,
	slotNames ...string) []*legs.ForecastOutcome {

	var outcomes []*legs.ForecastOutcome
	for _, name := range slotNames {
		slot := leg.Forecasts.Get(name)
		if !slot.Actualize(actual) {
			continue
		}
		if outcome := legs.MakeForecastOutcome(leg, name, slot); outcome != nil {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}

//slotAnchor returns the time a slot's predicted offset is measured from. Dock slots are
//anchored on the scheduled departure, sea slots on the observed departure
func slotAnchor(leg *legs.Leg, slotName string) *time.Time {
	switch slotName {
	case legs.SlotDockDepartCurrent, legs.SlotDockArriveNext, legs.SlotDockDepartNext:
		return leg.ScheduledDepartureTime
	case legs.SlotSeaArriveNext, legs.SlotSeaDepartNext:
		return leg.ActualDepartureTime
	}
	return nil
}

//makeForecastSlot converts a service prediction into a slot record. The prediction band
//is the point prediction widened by the reported mean absolute error
func makeForecastSlot(anchor time.Time, pred *prediction) *legs.ForecastSlot {
	predicted := anchor.Add(minutesDuration(pred.PredictedMinutes))
	return &legs.ForecastSlot{
		MinTime:           predicted.Add(-minutesDuration(pred.MeanAbsoluteError)),
		PredictedTime:     predicted,
		MaxTime:           predicted.Add(minutesDuration(pred.MeanAbsoluteError)),
		MeanAbsoluteError: pred.MeanAbsoluteError,
		StdDev:            pred.StdDev,
	}
}

func minutesDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
