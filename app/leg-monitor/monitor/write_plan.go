package monitor

import (
	"fmt"
	"log"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/jmoiron/sqlx"
)

//boundaryCompletion pairs a finalized leg with the new active leg that replaces it.
//Applied as one atomic archive and replace so the vessel is never observable with zero
//or two active legs
type boundaryCompletion struct {
	completed *legs.Leg
	next      *legs.Leg
}

//writePlan is the minimal set of persistence operations for one polling round, computed
//from every vessel's tick result before anything is written
type writePlan struct {
	boundaryCompletions []boundaryCompletion
	//continuationUpserts are changed next states for vessels that stayed on their leg,
	//written as one batched upsert
	continuationUpserts []*legs.Leg
	//backfillDepartures actualize the depart next slots on each vessel's previously
	//completed leg
	backfillDepartures map[string]time.Time
	outcomes            []*legs.ForecastOutcome
	//noopCount is the number of ticks that produced no write at all
	noopCount int
}

//buildWritePlan partitions the round's tick results into the smallest set of writes.
//A vessel whose constructed next state is identical to its prior state produces no
//write. Outcome records are deduplicated by (legKey, slot) in case two code paths
//actualized the same slot in one round
func buildWritePlan(results []*tickResult) *writePlan {
	plan := writePlan{
		backfillDepartures: make(map[string]time.Time),
	}
	seenOutcomes := make(map[string]bool)

	for _, result := range results {
		if result.backfillDeparture != nil {
			plan.backfillDepartures[result.vehicleId] = *result.backfillDeparture
		}
		plan.outcomes = appendOutcomes(plan.outcomes, seenOutcomes, result.outcomes)

		if !result.changed {
			plan.noopCount++
			continue
		}
		if result.event == LegBoundary {
			plan.boundaryCompletions = append(plan.boundaryCompletions, boundaryCompletion{
				completed: result.completedLeg,
				next:      result.nextLeg,
			})
			continue
		}
		plan.continuationUpserts = append(plan.continuationUpserts, result.nextLeg)
	}
	return &plan
}

//isEmpty returns true when the plan carries no persistence operations
func (w *writePlan) isEmpty() bool {
	return len(w.boundaryCompletions) == 0 &&
		len(w.continuationUpserts) == 0 &&
		len(w.backfillDepartures) == 0 &&
		len(w.outcomes) == 0
}

//apply issues the plan's writes in order: boundary completions individually and
//atomically, continuations as one batched upsert, backfills as one batched patch,
//then the union of all outcome records as one deduplicated batched insert.
//A vessel's failed write is logged and does not block the other vessels; the first
//error is returned to the caller of the round after all operations were attempted
func (w *writePlan) apply(log *log.Logger, db *sqlx.DB) (*legs.LegMonitorResults, error) {
	results := legs.LegMonitorResults{}
	var firstErr error

	for _, completion := range w.boundaryCompletions {
		err := legs.ArchiveAndReplace(completion.completed, completion.next, db)
		if err != nil {
			log.Printf("failed to archive and replace leg for vessel %s, error: %v",
				completion.completed.VehicleId, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results.CompletedLegs = append(results.CompletedLegs, completion.completed)
		results.ActiveLegs = append(results.ActiveLegs, completion.next)
	}

	err := legs.UpsertActiveLegs(w.continuationUpserts, db)
	if err != nil {
		log.Printf("failed to upsert %d active legs, error: %v", len(w.continuationUpserts), err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		results.ActiveLegs = append(results.ActiveLegs, w.continuationUpserts...)
	}

	//the patched completed legs come back with their newly actualized forecasts, those
	//must be recorded too
	patched, err := legs.BackfillDepartNextActuals(w.backfillDepartures, db)
	if err != nil {
		log.Printf("failed to backfill depart next actuals, error: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	outcomes := w.outcomes
	seen := make(map[string]bool)
	for _, outcome := range outcomes {
		seen[outcomeKey(outcome)] = true
	}
	for _, leg := range patched {
		results.CompletedLegs = append(results.CompletedLegs, leg)
		outcomes = appendOutcomes(outcomes, seen, backfilledOutcomes(leg))
	}

	err = legs.RecordForecastOutcomes(outcomes, db)
	if err != nil {
		log.Printf("failed to record %d forecast outcomes, error: %v", len(outcomes), err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		results.ForecastOutcomes = outcomes
	}

	return &results, firstErr
}

//backfilledOutcomes serializes the depart next slots a backfill patch actualized
func backfilledOutcomes(leg *legs.Leg) []*legs.ForecastOutcome {
	var outcomes []*legs.ForecastOutcome
	for _, name := range []string{legs.SlotDockDepartNext, legs.SlotSeaDepartNext} {
		slot := leg.Forecasts.Get(name)
		if outcome := legs.MakeForecastOutcome(leg, name, slot); outcome != nil {
			outcomes = append(outcomes, outcome)
		}
	}
	return outcomes
}

//appendOutcomes appends records not already present by (legKey, slot)
func appendOutcomes(outcomes []*legs.ForecastOutcome,
	seen map[string]bool,
	records []*legs.ForecastOutcome) []*legs.ForecastOutcome {

	for _, record := range records {
		key := outcomeKey(record)
		if seen[key] {
			continue
		}
		seen[key] = true
		outcomes = append(outcomes, record)
	}
	return outcomes
}

func outcomeKey(outcome *legs.ForecastOutcome) string {
	return fmt.Sprintf("%s|%s", outcome.LegKey, outcome.Slot)
}
