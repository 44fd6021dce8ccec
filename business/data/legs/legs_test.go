package legs

import (
	"testing"
	"time"
)

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func float64Ptr(f float64) *float64 {
	return &f
}

func TestBuildLegKey(t *testing.T) {
	location, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Errorf("Unable to get testing time zone location")
		return
	}
	departure := time.Date(2022, 5, 22, 14, 30, 0, 0, location)
	type args struct {
		vehicleId          string
		originDockId       string
		destinationDockId  *string
		scheduledDeparture *time.Time
	}
	tests := []struct {
		name string
		args args
		want *string
	}{
		{
			name: "all fields present",
			args: args{
				vehicleId:          "V1",
				originDockId:       "A",
				destinationDockId:  strPtr("B"),
				scheduledDeparture: &departure,
			},
			want: strPtr("V1|A|B|202205222130"),
		},
		{
			name: "missing destination",
			args: args{
				vehicleId:          "V1",
				originDockId:       "A",
				scheduledDeparture: &departure,
			},
			want: nil,
		},
		{
			name: "missing scheduled departure",
			args: args{
				vehicleId:         "V1",
				originDockId:      "A",
				destinationDockId: strPtr("B"),
			},
			want: nil,
		},
		{
			name: "missing vehicle",
			args: args{
				originDockId:       "A",
				destinationDockId:  strPtr("B"),
				scheduledDeparture: &departure,
			},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildLegKey(tt.args.vehicleId, tt.args.originDockId,
				tt.args.destinationDockId, tt.args.scheduledDeparture)
			if !strEqual(got, tt.want) {
				t.Errorf("BuildLegKey() = %v, want %v", printableStr(got), printableStr(tt.want))
			}
		})
	}
}

func TestMinutesBetween(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		end  time.Time
		want float64
	}{
		{
			name: "zero",
			end:  start,
			want: 0,
		},
		{
			name: "ninety seconds",
			end:  start.Add(90 * time.Second),
			want: 1.5,
		},
		{
			name: "rounds to one decimal",
			end:  start.Add(100 * time.Second),
			want: 1.7,
		},
		{
			name: "negative when end precedes start",
			end:  start.Add(-3 * time.Minute),
			want: -3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MinutesBetween(start, tt.end); got != tt.want {
				t.Errorf("MinutesBetween() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeg_RecalculateDurations(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		leg       Leg
		wantDock  *float64
		wantDelay *float64
	}{
		{
			name: "no departure yet",
			leg: Leg{
				LegStartTime:           start,
				ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
			},
			wantDock:  nil,
			wantDelay: nil,
		},
		{
			name: "departed on time",
			leg: Leg{
				LegStartTime:           start,
				ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
				ActualDepartureTime:    timePtr(start.Add(10 * time.Minute)),
			},
			wantDock:  float64Ptr(10),
			wantDelay: float64Ptr(0),
		},
		{
			name: "departed late",
			leg: Leg{
				LegStartTime:           start,
				ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
				ActualDepartureTime:    timePtr(start.Add(13*time.Minute + 30*time.Second)),
			},
			wantDock:  float64Ptr(13.5),
			wantDelay: float64Ptr(3.5),
		},
		{
			name: "departed without a schedule",
			leg: Leg{
				LegStartTime:        start,
				ActualDepartureTime: timePtr(start.Add(5 * time.Minute)),
			},
			wantDock:  float64Ptr(5),
			wantDelay: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.leg.RecalculateDurations()
			if !floatEqual(tt.leg.DockMinutes, tt.wantDock) {
				t.Errorf("DockMinutes = %v, want %v", printableFloat(tt.leg.DockMinutes), printableFloat(tt.wantDock))
			}
			if !floatEqual(tt.leg.DepartureDelayMinutes, tt.wantDelay) {
				t.Errorf("DepartureDelayMinutes = %v, want %v",
					printableFloat(tt.leg.DepartureDelayMinutes), printableFloat(tt.wantDelay))
			}
		})
	}
}

func TestLeg_Finalize(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	leg := Leg{
		LegStartTime:        start,
		ActualDepartureTime: timePtr(start.Add(8 * time.Minute)),
	}
	end := start.Add(43 * time.Minute)
	leg.Finalize(end)
	if leg.LegEndTime == nil || !leg.LegEndTime.Equal(end) {
		t.Errorf("LegEndTime = %v, want %v", leg.LegEndTime, end)
	}
	if !floatEqual(leg.TotalMinutes, float64Ptr(43)) {
		t.Errorf("TotalMinutes = %v, want 43", printableFloat(leg.TotalMinutes))
	}
	if !floatEqual(leg.TransitMinutes, float64Ptr(35)) {
		t.Errorf("TransitMinutes = %v, want 35", printableFloat(leg.TransitMinutes))
	}
}

func TestLeg_Clone_IsIndependent(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	original := Leg{
		VehicleId:              "V1",
		OriginDockId:           "A",
		DestinationDockId:      strPtr("B"),
		LegStartTime:           start,
		ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
		Forecasts: ForecastSlots{
			SlotDockArriveNext: {
				MinTime:       start.Add(40 * time.Minute),
				PredictedTime: start.Add(45 * time.Minute),
				MaxTime:       start.Add(50 * time.Minute),
			},
		},
	}

	clone := original.Clone()
	if !original.Equivalent(clone) {
		t.Errorf("clone is not equivalent to original")
	}

	*clone.DestinationDockId = "C"
	clone.Forecasts.Get(SlotDockArriveNext).Actualize(start.Add(46 * time.Minute))
	if *original.DestinationDockId != "B" {
		t.Errorf("mutating clone destination changed original")
	}
	if original.Forecasts.Get(SlotDockArriveNext).Actualized() {
		t.Errorf("actualizing clone slot changed original")
	}
}

func TestLeg_Equivalent_IgnoresSampleTime(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	leg := Leg{
		VehicleId:    "V1",
		OriginDockId: "A",
		LegStartTime: start,
		AtDock:       true,
		SampleTime:   start,
	}
	later := leg.Clone()
	later.SampleTime = start.Add(30 * time.Second)
	later.CreatedAt = start.Add(30 * time.Second)
	if !leg.Equivalent(later) {
		t.Errorf("legs differing only in sample time should be equivalent")
	}

	later.AtDock = false
	if leg.Equivalent(later) {
		t.Errorf("legs differing in atDock should not be equivalent")
	}
}

func printableStr(s *string) string {
	if s == nil {
		return "nil"
	}
	return *s
}

func printableFloat(f *float64) interface{} {
	if f == nil {
		return "nil"
	}
	return *f
}
