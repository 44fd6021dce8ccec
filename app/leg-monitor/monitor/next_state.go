package monitor

import (
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
)

//buildNextLeg constructs the complete next intended state for a vessel from its prior
//active leg and the latest sample. priorLeg is nil on a first sighting and on a leg
//boundary, where the new leg starts fresh; predecessor is the just finalized leg at a
//boundary and supplies the predecessor context fields, copied once and never mutated
//mid-leg.
//buildNextLeg never mutates priorLeg
func (r *legReducer) buildNextLeg(priorLeg *legs.Leg, predecessor *legs.Leg, sample *PositionSample) *legs.Leg {
	next := legs.Leg{
		VehicleId:    sample.VehicleId,
		OriginDockId: sample.OriginDockId,
		LegStartTime: sample.SampleTime,
		AtDock:       sample.AtDock,
		InService:    sample.InService,
		SampleTime:   sample.SampleTime,
	}

	if priorLeg != nil {
		next.LegStartTime = priorLeg.LegStartTime
		next.PrevOriginDockId = priorLeg.PrevOriginDockId
		next.PrevScheduledDeparture = priorLeg.PrevScheduledDeparture
		next.PrevActualDeparture = priorLeg.PrevActualDeparture
		next.Forecasts = priorLeg.Forecasts.Clone()
	} else if predecessor != nil {
		origin := predecessor.OriginDockId
		next.PrevOriginDockId = &origin
		next.PrevScheduledDeparture = copyTime(predecessor.ScheduledDepartureTime)
		next.PrevActualDeparture = copyTime(predecessor.ActualDepartureTime)
	}

	//never let a transient missing value in the feed erase a known one
	next.ScheduledDepartureTime = preferSample(sample.ScheduledDepartureTime, priorScheduledDeparture(priorLeg))
	next.EstimatedArrival = preferSample(sample.EstimatedArrival, priorEstimatedArrival(priorLeg))
	next.ActualDepartureTime = r.resolveActualDeparture(priorLeg, sample)
	next.DestinationDockId = r.resolveDestination(priorLeg, sample, next.ScheduledDepartureTime)

	next.LegKey = legs.BuildLegKey(next.VehicleId, next.OriginDockId, next.DestinationDockId,
		next.ScheduledDepartureTime)
	next.RecalculateDurations()
	return &next
}

//resolveActualDeparture applies the departure inference and null overwrite rules.
//When this tick observed the vessel leave the dock and the feed carries no departure
//time, the sample time of the tick that saw the flip is the best available value
func (r *legReducer) resolveActualDeparture(priorLeg *legs.Leg, sample *PositionSample) *time.Time {
	departedThisTick := priorLeg != nil && priorLeg.AtDock && !sample.AtDock
	if departedThisTick && priorLeg.ActualDepartureTime == nil {
		if sample.ActualDepartureTime != nil {
			return copyTime(sample.ActualDepartureTime)
		}
		at := sample.SampleTime
		return &at
	}
	if sample.ActualDepartureTime != nil {
		return copyTime(sample.ActualDepartureTime)
	}
	if priorLeg != nil {
		return copyTime(priorLeg.ActualDepartureTime)
	}
	return nil
}

//resolveDestination applies the destination fallback chain: the feed's value, then a
//published schedule lookup, then the prior leg's value. The prior value is never
//consulted across a leg boundary since the old leg's destination is the new leg's
//origin, which is wrong
func (r *legReducer) resolveDestination(priorLeg *legs.Leg,
	sample *PositionSample,
	scheduledDeparture *time.Time) *string {

	if sample.DestinationDockId != nil {
		return copyStr(sample.DestinationDockId)
	}

	destinationKnown := priorLeg != nil && priorLeg.DestinationDockId != nil
	if sample.AtDock && !destinationKnown && scheduledDeparture != nil {
		published, err := r.schedules.PublishedLegFor(sample.VehicleId, sample.OriginDockId, *scheduledDeparture)
		if err != nil {
			//lookup failure degrades this tick, retried next round
			r.log.Printf("schedule lookup failed for vessel %s at %s, error: %v",
				sample.VehicleId, sample.OriginDockId, err)
		} else if published != nil {
			destination := published.DestinationDockId
			return &destination
		}
	}

	if priorLeg != nil {
		return copyStr(priorLeg.DestinationDockId)
	}
	return nil
}

//preferSample returns the sample's value unless it is missing, falling back to the prior value
func preferSample(sampleValue *time.Time, priorValue *time.Time) *time.Time {
	if sampleValue != nil {
		return copyTime(sampleValue)
	}
	return copyTime(priorValue)
}

func priorScheduledDeparture(priorLeg *legs.Leg) *time.Time {
	if priorLeg == nil {
		return nil
	}
	return priorLeg.ScheduledDepartureTime
}

func priorEstimatedArrival(priorLeg *legs.Leg) *time.Time {
	if priorLeg == nil {
		return nil
	}
	return priorLeg.EstimatedArrival
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
