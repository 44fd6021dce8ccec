package legs

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// slot names, one per forecast lifecycle moment on a leg
const (
	SlotDockDepartCurrent = "dock_depart_current"
	SlotDockArriveNext    = "dock_arrive_next"
	SlotDockDepartNext    = "dock_depart_next"
	SlotSeaArriveNext     = "sea_arrive_next"
	SlotSeaDepartNext     = "sea_depart_next"
)

// SlotNames lists every forecast slot in a stable order
var SlotNames = []string{
	SlotDockDepartCurrent,
	SlotDockArriveNext,
	SlotDockDepartNext,
	SlotSeaArriveNext,
	SlotSeaDepartNext,
}

// ForecastSlot is one prediction made for a leg. Actual and the delta fields remain nil
// until the real outcome is observed and the slot is actualized
type ForecastSlot struct {
	MinTime           time.Time  `json:"min_time"`
	PredictedTime     time.Time  `json:"predicted_time"`
	MaxTime           time.Time  `json:"max_time"`
	MeanAbsoluteError float64    `json:"mean_absolute_error"`
	StdDev            float64    `json:"std_dev"`
	Actual            *time.Time `json:"actual,omitempty"`
	DeltaTotalMinutes *float64   `json:"delta_total_minutes,omitempty"`
	DeltaRangeMinutes *float64   `json:"delta_range_minutes,omitempty"`
}

// Actualized returns true once the real outcome has been recorded against this slot
func (f *ForecastSlot) Actualized() bool {
	return f != nil && f.Actual != nil
}

// Actualize records the observed outcome against the prediction and computes its deltas.
// An already actualized slot is never overwritten, so re-applying the same outcome is a
// no-op. Returns true if the slot changed
func (f *ForecastSlot) Actualize(actual time.Time) bool {
	if f == nil || f.Actual != nil {
		return false
	}
	at := actual
	f.Actual = &at
	deltaTotal := MinutesBetween(f.PredictedTime, actual)
	f.DeltaTotalMinutes = &deltaTotal
	deltaRange := 0.0
	if actual.Before(f.MinTime) {
		deltaRange = MinutesBetween(f.MinTime, actual)
	} else if actual.After(f.MaxTime) {
		deltaRange = MinutesBetween(f.MaxTime, actual)
	}
	f.DeltaRangeMinutes = &deltaRange
	return true
}

// Equal compares two slots field for field
func (f *ForecastSlot) Equal(other *ForecastSlot) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.MinTime.Equal(other.MinTime) &&
		f.PredictedTime.Equal(other.PredictedTime) &&
		f.MaxTime.Equal(other.MaxTime) &&
		f.MeanAbsoluteError == other.MeanAbsoluteError &&
		f.StdDev == other.StdDev &&
		timeEqual(f.Actual, other.Actual) &&
		floatEqual(f.DeltaTotalMinutes, other.DeltaTotalMinutes) &&
		floatEqual(f.DeltaRangeMinutes, other.DeltaRangeMinutes)
}

func (f *ForecastSlot) clone() *ForecastSlot {
	if f == nil {
		return nil
	}
	clone := *f
	clone.Actual = cloneTime(f.Actual)
	clone.DeltaTotalMinutes = cloneFloat(f.DeltaTotalMinutes)
	clone.DeltaRangeMinutes = cloneFloat(f.DeltaRangeMinutes)
	return &clone
}

// ForecastSlots holds a leg's forecast slots keyed by slot name. A missing key means the
// slot is empty. Stored in the database as a single jsonb column
type ForecastSlots map[string]*ForecastSlot

// Get returns the named slot or nil when empty
func (s ForecastSlots) Get(name string) *ForecastSlot {
	if s == nil {
		return nil
	}
	return s[name]
}

// Set stores slot under name, replacing any existing prediction
func (s *ForecastSlots) Set(name string, slot *ForecastSlot) {
	if *s == nil {
		*s = make(ForecastSlots)
	}
	(*s)[name] = slot
}

// Clear removes the named slot
func (s ForecastSlots) Clear(name string) {
	delete(s, name)
}

// Clone returns a deep copy
func (s ForecastSlots) Clone() ForecastSlots {
	if s == nil {
		return nil
	}
	clone := make(ForecastSlots, len(s))
	for name, slot := range s {
		clone[name] = slot.clone()
	}
	return clone
}

// Equal compares slot maps by slot name and content
func (s ForecastSlots) Equal(other ForecastSlots) bool {
	if len(s) != len(other) {
		return false
	}
	for name, slot := range s {
		if !slot.Equal(other[name]) {
			return false
		}
	}
	return true
}

// Value implements driver.Valuer, marshalling slots to jsonb
func (s ForecastSlots) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner, unmarshalling slots from jsonb
func (s *ForecastSlots) Scan(src interface{}) error {
	if src == nil {
		*s = nil
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unable to scan type %T into ForecastSlots", src)
	}
	return json.Unmarshal(data, s)
}
