package monitor

import (
	"fmt"
	"testing"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/OpenFerryTools/ferrycast/business/data/schedule"
)

func TestBuildNextLeg_NeverErasesKnownFields(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	scheduled := start.Add(10 * time.Minute)
	reducer := makeTestReducer(nil, nil)

	prior := &legs.Leg{
		VehicleId:              "V1",
		OriginDockId:           "A",
		DestinationDockId:      strPtr("B"),
		LegStartTime:           start,
		ScheduledDepartureTime: &scheduled,
		EstimatedArrival:       timePtr(start.Add(55 * time.Minute)),
		AtDock:                 true,
		InService:              true,
		SampleTime:             start,
	}

	//the feed drops every optional field on this tick
	sample := makeDockSample("V1", "A", start.Add(30*time.Second))
	next := reducer.buildNextLeg(prior, nil, sample)

	if next.DestinationDockId == nil || *next.DestinationDockId != "B" {
		t.Errorf("destination was erased by a transient feed gap")
	}
	if next.ScheduledDepartureTime == nil || !next.ScheduledDepartureTime.Equal(scheduled) {
		t.Errorf("scheduled departure was erased by a transient feed gap")
	}
	if next.EstimatedArrival == nil {
		t.Errorf("estimated arrival was erased by a transient feed gap")
	}
	if !next.LegStartTime.Equal(start) {
		t.Errorf("leg start time should carry from the prior state, got %v", next.LegStartTime)
	}
}

func TestBuildNextLeg_SampleValuesWin(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	reducer := makeTestReducer(nil, nil)

	prior := &legs.Leg{
		VehicleId:              "V1",
		OriginDockId:           "A",
		DestinationDockId:      strPtr("B"),
		LegStartTime:           start,
		ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
		AtDock:                 true,
		SampleTime:             start,
	}

	revisedSchedule := start.Add(25 * time.Minute)
	sample := makeDockSample("V1", "A", start.Add(time.Minute))
	sample.DestinationDockId = strPtr("C")
	sample.ScheduledDepartureTime = &revisedSchedule

	next := reducer.buildNextLeg(prior, nil, sample)
	if next.DestinationDockId == nil || *next.DestinationDockId != "C" {
		t.Errorf("feed destination should win over the prior value")
	}
	if next.ScheduledDepartureTime == nil || !next.ScheduledDepartureTime.Equal(revisedSchedule) {
		t.Errorf("feed scheduled departure should win over the prior value")
	}
}

func TestBuildNextLeg_DepartureInference(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	feedDeparture := start.Add(9 * time.Minute)
	tickTime := start.Add(10 * time.Minute)

	tests := []struct {
		name          string
		priorAtDock   bool
		priorActual   *time.Time
		sampleAtDock  bool
		sampleActual  *time.Time
		wantDeparture *time.Time
	}{
		{
			name:          "feed departure preferred when the vessel leaves",
			priorAtDock:   true,
			sampleAtDock:  false,
			sampleActual:  &feedDeparture,
			wantDeparture: &feedDeparture,
		},
		{
			name:          "sample time inferred when the feed has no departure",
			priorAtDock:   true,
			sampleAtDock:  false,
			wantDeparture: &tickTime,
		},
		{
			name:          "no inference while still at the dock",
			priorAtDock:   true,
			sampleAtDock:  true,
			wantDeparture: nil,
		},
		{
			name:          "already departed, nothing inferred",
			priorAtDock:   false,
			priorActual:   &feedDeparture,
			sampleAtDock:  false,
			wantDeparture: &feedDeparture,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reducer := makeTestReducer(nil, nil)
			prior := &legs.Leg{
				VehicleId:           "V1",
				OriginDockId:        "A",
				LegStartTime:        start,
				ActualDepartureTime: tt.priorActual,
				AtDock:              tt.priorAtDock,
				SampleTime:          start,
			}
			sample := makeDockSample("V1", "A", tickTime)
			sample.AtDock = tt.sampleAtDock
			sample.ActualDepartureTime = tt.sampleActual

			next := reducer.buildNextLeg(prior, nil, sample)
			if tt.wantDeparture == nil {
				if next.ActualDepartureTime != nil {
					t.Errorf("ActualDepartureTime = %v, want nil", next.ActualDepartureTime)
				}
				return
			}
			if next.ActualDepartureTime == nil || !next.ActualDepartureTime.Equal(*tt.wantDeparture) {
				t.Errorf("ActualDepartureTime = %v, want %v", next.ActualDepartureTime, tt.wantDeparture)
			}
		})
	}
}

func TestBuildNextLeg_DestinationFromSchedule(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	scheduled := start.Add(10 * time.Minute)
	schedules := &testScheduleIndex{
		published: map[string]*schedule.PublishedLeg{
			"V1|A": {
				LegKey:             "V1|A|B|202205221210",
				VehicleId:          "V1",
				OriginDockId:       "A",
				DestinationDockId:  "B",
				ScheduledDeparture: scheduled,
			},
		},
	}
	reducer := makeTestReducer(nil, schedules)

	sample := makeDockSample("V1", "A", start)
	sample.ScheduledDepartureTime = &scheduled
	next := reducer.buildNextLeg(nil, nil, sample)

	if next.DestinationDockId == nil || *next.DestinationDockId != "B" {
		t.Errorf("destination should resolve from the published schedule")
	}
	if next.LegKey == nil || *next.LegKey != "V1|A|B|202205221210" {
		t.Errorf("leg key should be derivable once the destination resolves, got %v", next.LegKey)
	}
}

func TestBuildNextLeg_ScheduleLookupFailureDegrades(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	scheduled := start.Add(10 * time.Minute)
	logWriter := makeTestLogWriter()
	schedules := &testScheduleIndex{err: fmt.Errorf("connection refused")}
	reducer := makeLegReducer(logWriter.log, schedules,
		makeForecastOrchestrator(logWriter.log, &testPredictor{}))

	sample := makeDockSample("V1", "A", start)
	sample.ScheduledDepartureTime = &scheduled
	next := reducer.buildNextLeg(nil, nil, sample)

	if next.DestinationDockId != nil {
		t.Errorf("destination should stay unknown when the lookup fails")
	}
	if next.LegKey != nil {
		t.Errorf("leg key should stay nil when the destination is unknown")
	}
	if len(logWriter.logLines) != 1 {
		t.Errorf("expected one logged lookup failure, got %d lines", len(logWriter.logLines))
	}
}

func TestBuildNextLeg_NoScheduleLookupWhenDestinationKnown(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	schedules := &testScheduleIndex{}
	reducer := makeTestReducer(nil, schedules)

	prior := &legs.Leg{
		VehicleId:              "V1",
		OriginDockId:           "A",
		DestinationDockId:      strPtr("B"),
		LegStartTime:           start,
		ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
		AtDock:                 true,
		SampleTime:             start,
	}
	sample := makeDockSample("V1", "A", start.Add(time.Minute))
	sample.ScheduledDepartureTime = timePtr(start.Add(10 * time.Minute))
	next := reducer.buildNextLeg(prior, nil, sample)

	if schedules.lookups != 0 {
		t.Errorf("no schedule lookup expected when the destination is already known, got %d", schedules.lookups)
	}
	if next.DestinationDockId == nil || *next.DestinationDockId != "B" {
		t.Errorf("prior destination should carry forward")
	}
}

func TestBuildNextLeg_DestinationNeverCarriesAcrossBoundary(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	reducer := makeTestReducer(nil, nil)

	predecessor := &legs.Leg{
		VehicleId:              "V1",
		OriginDockId:           "A",
		DestinationDockId:      strPtr("B"),
		LegStartTime:           start,
		ScheduledDepartureTime: timePtr(start.Add(10 * time.Minute)),
		ActualDepartureTime:    timePtr(start.Add(11 * time.Minute)),
		LegEndTime:             timePtr(start.Add(50 * time.Minute)),
		SampleTime:             start.Add(50 * time.Minute),
	}

	sample := makeDockSample("V1", "B", start.Add(50*time.Minute))
	next := reducer.buildNextLeg(nil, predecessor, sample)

	if next.DestinationDockId != nil {
		t.Errorf("a new leg must not inherit the finished leg's destination, got %v", *next.DestinationDockId)
	}
	if next.PrevOriginDockId == nil || *next.PrevOriginDockId != "A" {
		t.Errorf("predecessor origin should be copied onto the new leg")
	}
	if next.PrevScheduledDeparture == nil || !next.PrevScheduledDeparture.Equal(start.Add(10*time.Minute)) {
		t.Errorf("predecessor scheduled departure should be copied onto the new leg")
	}
	if next.PrevActualDeparture == nil || !next.PrevActualDeparture.Equal(start.Add(11*time.Minute)) {
		t.Errorf("predecessor actual departure should be copied onto the new leg")
	}
}
