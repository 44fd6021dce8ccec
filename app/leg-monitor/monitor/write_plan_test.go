package monitor

import (
	"testing"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
)

func TestBuildWritePlan_Partitioning(t *testing.T) {
	start := time.Date(2022, 5, 22, 12, 0, 0, 0, time.UTC)
	boundaryNext := &legs.Leg{VehicleId: "V1", OriginDockId: "B", LegStartTime: start}
	boundaryCompleted := &legs.Leg{VehicleId: "V1", OriginDockId: "A", LegStartTime: start.Add(-time.Hour)}
	continued := &legs.Leg{VehicleId: "V2", OriginDockId: "C", LegStartTime: start}
	departed := start.Add(5 * time.Minute)

	results := []*tickResult{
		{
			vehicleId:    "V1",
			event:        LegBoundary,
			nextLeg:      boundaryNext,
			completedLeg: boundaryCompleted,
			changed:      true,
		},
		{
			vehicleId:         "V2",
			event:             InLegUpdate,
			nextLeg:           continued,
			backfillDeparture: &departed,
			changed:           true,
		},
		{
			vehicleId: "V3",
			event:     InLegUpdate,
			nextLeg:   &legs.Leg{VehicleId: "V3", OriginDockId: "D"},
			changed:   false,
		},
		{
			vehicleId: "V4",
			event:     FirstSighting,
			nextLeg:   &legs.Leg{VehicleId: "V4", OriginDockId: "E"},
			changed:   true,
		},
	}

	plan := buildWritePlan(results)

	if len(plan.boundaryCompletions) != 1 {
		t.Fatalf("boundaryCompletions = %d, want 1", len(plan.boundaryCompletions))
	}
	if plan.boundaryCompletions[0].completed != boundaryCompleted ||
		plan.boundaryCompletions[0].next != boundaryNext {
		t.Errorf("boundary completion should pair the finalized leg with its replacement")
	}
	if len(plan.continuationUpserts) != 2 {
		t.Errorf("continuationUpserts = %d, want the continued and first sighted legs", len(plan.continuationUpserts))
	}
	if plan.noopCount != 1 {
		t.Errorf("noopCount = %d, want 1", plan.noopCount)
	}
	if got, found := plan.backfillDepartures["V2"]; !found || !got.Equal(departed) {
		t.Errorf("backfillDepartures missing the departed vessel")
	}
	if plan.isEmpty() {
		t.Errorf("a plan with writes is not empty")
	}
}

func TestBuildWritePlan_UnchangedRoundIsEmpty(t *testing.T) {
	results := []*tickResult{
		{vehicleId: "V1", event: InLegUpdate, nextLeg: &legs.Leg{VehicleId: "V1"}, changed: false},
		{vehicleId: "V2", event: InLegUpdate, nextLeg: &legs.Leg{VehicleId: "V2"}, changed: false},
	}
	plan := buildWritePlan(results)
	if !plan.isEmpty() {
		t.Errorf("a round of unchanged ticks must plan no writes")
	}
	if plan.noopCount != 2 {
		t.Errorf("noopCount = %d, want 2", plan.noopCount)
	}
}

func TestBuildWritePlan_DeduplicatesOutcomes(t *testing.T) {
	makeOutcome := func(legKey string, slot string) *legs.ForecastOutcome {
		return &legs.ForecastOutcome{
			LegKey:    legKey,
			Slot:      slot,
			VehicleId: "V1",
		}
	}

	results := []*tickResult{
		{
			vehicleId: "V1",
			event:     LegBoundary,
			nextLeg:   &legs.Leg{VehicleId: "V1"},
			completedLeg: &legs.Leg{
				VehicleId: "V1",
			},
			outcomes: []*legs.ForecastOutcome{
				makeOutcome("V1|A|B|202205221210", legs.SlotSeaArriveNext),
				makeOutcome("V1|A|B|202205221210", legs.SlotDockDepartCurrent),
			},
			changed: true,
		},
		{
			vehicleId: "V1",
			event:     InLegUpdate,
			nextLeg:   &legs.Leg{VehicleId: "V1"},
			outcomes: []*legs.ForecastOutcome{
				//same slot resolved again by a second code path in the same round
				makeOutcome("V1|A|B|202205221210", legs.SlotSeaArriveNext),
			},
			changed: true,
		},
	}

	plan := buildWritePlan(results)
	if len(plan.outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2 after dedup by leg key and slot", len(plan.outcomes))
	}
	seen := make(map[string]bool)
	for _, outcome := range plan.outcomes {
		key := outcomeKey(outcome)
		if seen[key] {
			t.Errorf("duplicate outcome %s survived the dedup", key)
		}
		seen[key] = true
	}
}
