// Package legs provides the ferry leg model and related CRUD functionality
package legs

import (
	"fmt"
	"math"
	"time"
)

// Leg describes one vessel's movement from an origin dock to a destination dock.
// A vessel has at most one active Leg at a time, keyed by VehicleId. When the vessel
// is next seen at a different origin dock the Leg is finalized and archived, and a new
// active Leg takes its place.
type Leg struct {
	VehicleId string `db:"vehicle_id" json:"vehicle_id"`
	//OriginDockId is the dock the vessel is traveling from, always known once the leg exists
	OriginDockId string `db:"origin_dock_id" json:"origin_dock_id"`
	//DestinationDockId may be nil until reported by the feed or resolved from the published schedule
	DestinationDockId *string `db:"destination_dock_id" json:"destination_dock_id"`
	//LegKey identifies the leg against the published schedule, nil while any of its inputs are unknown
	LegKey *string `db:"leg_key" json:"leg_key"`

	//LegStartTime is when the vessel was first seen at the origin dock
	LegStartTime           time.Time  `db:"leg_start_time" json:"leg_start_time"`
	ScheduledDepartureTime *time.Time `db:"scheduled_departure_time" json:"scheduled_departure_time"`
	//ActualDepartureTime is nil until the vessel is observed leaving the dock
	ActualDepartureTime *time.Time `db:"actual_departure_time" json:"actual_departure_time"`
	EstimatedArrival    *time.Time `db:"estimated_arrival" json:"estimated_arrival"`
	//LegEndTime is set once, when the leg is finalized
	LegEndTime *time.Time `db:"leg_end_time" json:"leg_end_time"`

	//durations in minutes, one decimal
	DockMinutes           *float64 `db:"dock_minutes" json:"dock_minutes"`
	TransitMinutes        *float64 `db:"transit_minutes" json:"transit_minutes"`
	TotalMinutes          *float64 `db:"total_minutes" json:"total_minutes"`
	DepartureDelayMinutes *float64 `db:"departure_delay_minutes" json:"departure_delay_minutes"`

	//predecessor context, copied once when the previous leg is finalized, never mutated mid-leg
	PrevOriginDockId       *string    `db:"prev_origin_dock_id" json:"prev_origin_dock_id"`
	PrevScheduledDeparture *time.Time `db:"prev_scheduled_departure" json:"prev_scheduled_departure"`
	PrevActualDeparture    *time.Time `db:"prev_actual_departure" json:"prev_actual_departure"`

	AtDock    bool `db:"at_dock" json:"at_dock"`
	InService bool `db:"in_service" json:"in_service"`
	//SampleTime is the time of the position sample this leg state was built from.
	//It is excluded from Equivalent comparisons
	SampleTime time.Time `db:"sample_time" json:"sample_time"`

	Forecasts ForecastSlots `db:"forecasts" json:"forecasts"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// BuildLegKey derives the schedule enriched leg key. Returns nil unless vehicleId,
// originDockId, destinationDockId and scheduledDeparture are all known
func BuildLegKey(vehicleId string,
	originDockId string,
	destinationDockId *string,
	scheduledDeparture *time.Time) *string {

	if vehicleId == "" || originDockId == "" || destinationDockId == nil || scheduledDeparture == nil {
		return nil
	}
	key := fmt.Sprintf("%s|%s|%s|%s", vehicleId, originDockId, *destinationDockId,
		scheduledDeparture.UTC().Format("200601021504"))
	return &key
}

// MinutesBetween returns the minutes from start to end rounded to one decimal.
// Negative when end precedes start
func MinutesBetween(start time.Time, end time.Time) float64 {
	return RoundMinutes(end.Sub(start).Minutes())
}

// RoundMinutes rounds a minute duration to one decimal
func RoundMinutes(minutes float64) float64 {
	return math.Round(minutes*10) / 10
}

// RecalculateDurations refreshes DockMinutes and DepartureDelayMinutes from the leg's
// current departure fields. TransitMinutes and TotalMinutes are only produced by Finalize
func (l *Leg) RecalculateDurations() {
	if l.ActualDepartureTime != nil {
		dock := MinutesBetween(l.LegStartTime, *l.ActualDepartureTime)
		l.DockMinutes = &dock
		if l.ScheduledDepartureTime != nil {
			delay := MinutesBetween(*l.ScheduledDepartureTime, *l.ActualDepartureTime)
			l.DepartureDelayMinutes = &delay
		}
	}
}

// Finalize marks the leg completed at endTime and computes its transit and total durations
func (l *Leg) Finalize(endTime time.Time) {
	l.LegEndTime = &endTime
	total := MinutesBetween(l.LegStartTime, endTime)
	l.TotalMinutes = &total
	if l.ActualDepartureTime != nil {
		transit := MinutesBetween(*l.ActualDepartureTime, endTime)
		l.TransitMinutes = &transit
	}
}

// Clone returns a deep copy of the leg, safe to mutate without affecting the original
func (l *Leg) Clone() *Leg {
	clone := *l
	clone.DestinationDockId = cloneStr(l.DestinationDockId)
	clone.LegKey = cloneStr(l.LegKey)
	clone.ScheduledDepartureTime = cloneTime(l.ScheduledDepartureTime)
	clone.ActualDepartureTime = cloneTime(l.ActualDepartureTime)
	clone.EstimatedArrival = cloneTime(l.EstimatedArrival)
	clone.LegEndTime = cloneTime(l.LegEndTime)
	clone.DockMinutes = cloneFloat(l.DockMinutes)
	clone.TransitMinutes = cloneFloat(l.TransitMinutes)
	clone.TotalMinutes = cloneFloat(l.TotalMinutes)
	clone.DepartureDelayMinutes = cloneFloat(l.DepartureDelayMinutes)
	clone.PrevOriginDockId = cloneStr(l.PrevOriginDockId)
	clone.PrevScheduledDeparture = cloneTime(l.PrevScheduledDeparture)
	clone.PrevActualDeparture = cloneTime(l.PrevActualDeparture)
	clone.Forecasts = l.Forecasts.Clone()
	return &clone
}

// Equivalent returns true when other carries the same persistent state as l.
// SampleTime and CreatedAt are volatile and excluded, so a tick that changes nothing
// else produces an equivalent leg and no write
func (l *Leg) Equivalent(other *Leg) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.VehicleId == other.VehicleId &&
		l.OriginDockId == other.OriginDockId &&
		strEqual(l.DestinationDockId, other.DestinationDockId) &&
		strEqual(l.LegKey, other.LegKey) &&
		l.LegStartTime.Equal(other.LegStartTime) &&
		timeEqual(l.ScheduledDepartureTime, other.ScheduledDepartureTime) &&
		timeEqual(l.ActualDepartureTime, other.ActualDepartureTime) &&
		timeEqual(l.EstimatedArrival, other.EstimatedArrival) &&
		timeEqual(l.LegEndTime, other.LegEndTime) &&
		floatEqual(l.DockMinutes, other.DockMinutes) &&
		floatEqual(l.TransitMinutes, other.TransitMinutes) &&
		floatEqual(l.TotalMinutes, other.TotalMinutes) &&
		floatEqual(l.DepartureDelayMinutes, other.DepartureDelayMinutes) &&
		strEqual(l.PrevOriginDockId, other.PrevOriginDockId) &&
		timeEqual(l.PrevScheduledDeparture, other.PrevScheduledDeparture) &&
		timeEqual(l.PrevActualDeparture, other.PrevActualDeparture) &&
		l.AtDock == other.AtDock &&
		l.InService == other.InService &&
		l.Forecasts.Equal(other.Forecasts)
}

// String implements Stringer for logging
func (l *Leg) String() string {
	destination := "unknown"
	if l.DestinationDockId != nil {
		destination = *l.DestinationDockId
	}
	key := "unknown"
	if l.LegKey != nil {
		key = *l.LegKey
	}
	return fmt.Sprintf("Leg{vessel:%s %s->%s key:%s atDock:%t}",
		l.VehicleId, l.OriginDockId, destination, key, l.AtDock)
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func strEqual(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func timeEqual(a *time.Time, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func floatEqual(a *float64, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
