package legs

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/OpenFerryTools/ferrycast/foundation/database"
	"github.com/jmoiron/sqlx"
)

//legColumns are all persisted Leg columns, shared by the active and completed tables
const legColumns = "vehicle_id, " +
	"origin_dock_id, " +
	"destination_dock_id, " +
	"leg_key, " +
	"leg_start_time, " +
	"scheduled_departure_time, " +
	"actual_departure_time, " +
	"estimated_arrival, " +
	"leg_end_time, " +
	"dock_minutes, " +
	"transit_minutes, " +
	"total_minutes, " +
	"departure_delay_minutes, " +
	"prev_origin_dock_id, " +
	"prev_scheduled_departure, " +
	"prev_actual_departure, " +
	"at_dock, " +
	"in_service, " +
	"sample_time, " +
	"forecasts, " +
	"created_at"

const legValues = ":vehicle_id, " +
	":origin_dock_id, " +
	":destination_dock_id, " +
	":leg_key, " +
	":leg_start_time, " +
	":scheduled_departure_time, " +
	":actual_departure_time, " +
	":estimated_arrival, " +
	":leg_end_time, " +
	":dock_minutes, " +
	":transit_minutes, " +
	":total_minutes, " +
	":departure_delay_minutes, " +
	":prev_origin_dock_id, " +
	":prev_scheduled_departure, " +
	":prev_actual_departure, " +
	":at_dock, " +
	":in_service, " +
	":sample_time, " +
	":forecasts, " +
	":created_at"

//activeLegUpdateSet is the update half of the active leg upsert. vehicle_id and
//created_at are deliberately not updated
const activeLegUpdateSet = "origin_dock_id = excluded.origin_dock_id, " +
	"destination_dock_id = excluded.destination_dock_id, " +
	"leg_key = excluded.leg_key, " +
	"leg_start_time = excluded.leg_start_time, " +
	"scheduled_departure_time = excluded.scheduled_departure_time, " +
	"actual_departure_time = excluded.actual_departure_time, " +
	"estimated_arrival = excluded.estimated_arrival, " +
	"leg_end_time = excluded.leg_end_time, " +
	"dock_minutes = excluded.dock_minutes, " +
	"transit_minutes = excluded.transit_minutes, " +
	"total_minutes = excluded.total_minutes, " +
	"departure_delay_minutes = excluded.departure_delay_minutes, " +
	"prev_origin_dock_id = excluded.prev_origin_dock_id, " +
	"prev_scheduled_departure = excluded.prev_scheduled_departure, " +
	"prev_actual_departure = excluded.prev_actual_departure, " +
	"at_dock = excluded.at_dock, " +
	"in_service = excluded.in_service, " +
	"sample_time = excluded.sample_time, " +
	"forecasts = excluded.forecasts"

// GetActiveLeg retrieves the active Leg for vehicleId, or nil if the vessel has none
func GetActiveLeg(db *sqlx.DB, vehicleId string) (*Leg, error) {
	query := db.Rebind("select * from active_leg where vehicle_id = ?")
	leg := Leg{}
	err := db.Get(&leg, query, vehicleId)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve active leg for vessel %s, error: %w", vehicleId, err)
	}
	return &leg, nil
}

// GetAllActiveLegs retrieves every vessel's active Leg
func GetAllActiveLegs(db *sqlx.DB) ([]*Leg, error) {
	rows, err := db.Queryx("select * from active_leg")
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve active_leg rows, error: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]*Leg, 0)
	for rows.Next() {
		leg := Leg{}
		err = rows.StructScan(&leg)
		if err != nil {
			return nil, err
		}
		results = append(results, &leg)
	}
	return results, nil
}

// UpsertActiveLegs saves slice of active Legs into database in batch, inserting or
// replacing each vessel's single active row
func UpsertActiveLegs(activeLegs []*Leg, db *sqlx.DB) error {
	if len(activeLegs) == 0 {
		return nil
	}
	now := time.Now()
	for _, leg := range activeLegs {
		if leg.CreatedAt.IsZero() {
			leg.CreatedAt = now
		}
	}
	statementString := "insert into active_leg (" + legColumns + ") values (" + legValues + ") " +
		"on conflict (vehicle_id) do update set " + activeLegUpdateSet
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, activeLegs)
	return err
}

// ArchiveAndReplace atomically archives completed into the completed_leg collection and
// installs next as the vessel's active leg. The vessel is never observable with zero or
// two active legs
func ArchiveAndReplace(completed *Leg, next *Leg, db *sqlx.DB) error {
	if completed.VehicleId != next.VehicleId {
		return fmt.Errorf("archiveAndReplace across vessels: %s and %s", completed.VehicleId, next.VehicleId)
	}
	tx, err := db.Beginx()
	if err != nil {
		return fmt.Errorf("unable to begin archiveAndReplace transaction, error: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	completed.CreatedAt = now
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	insertCompleted := tx.Rebind("insert into completed_leg (" + legColumns + ") values (" + legValues + ")")
	_, err = tx.NamedExec(insertCompleted, completed)
	if err != nil {
		return fmt.Errorf("unable to archive completed leg for vessel %s, error: %w", completed.VehicleId, err)
	}

	replaceActive := tx.Rebind("insert into active_leg (" + legColumns + ") values (" + legValues + ") " +
		"on conflict (vehicle_id) do update set " + activeLegUpdateSet)
	_, err = tx.NamedExec(replaceActive, next)
	if err != nil {
		return fmt.Errorf("unable to install new active leg for vessel %s, error: %w", next.VehicleId, err)
	}

	return tx.Commit()
}

// BackfillDepartNextActuals actualizes the dock_depart_next and sea_depart_next slots on
// each vessel's most recently completed leg using the departure time the vessel's current
// leg just observed. Legs whose slots were already actualized are left untouched, so
// re-applying the same departure is a no-op. Returns only the legs that changed, with
// their newly actualized forecasts, so those can be recorded
func BackfillDepartNextActuals(departures map[string]time.Time, db *sqlx.DB) ([]*Leg, error) {
	if len(departures) == 0 {
		return nil, nil
	}

	vehicleIds := make([]string, 0, len(departures))
	for vehicleId := range departures {
		vehicleIds = append(vehicleIds, vehicleId)
	}

	statementString := "select distinct on (vehicle_id) * from completed_leg " +
		"where vehicle_id in (:vehicle_ids) " +
		"order by vehicle_id, leg_end_time desc"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"vehicle_ids": vehicleIds,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve completed legs for backfill, error: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	updated := make([]*Leg, 0)
	for rows.Next() {
		leg := Leg{}
		err = rows.StructScan(&leg)
		if err != nil {
			return nil, err
		}
		actual := departures[leg.VehicleId]
		changed := leg.Forecasts.Get(SlotDockDepartNext).Actualize(actual)
		if leg.Forecasts.Get(SlotSeaDepartNext).Actualize(actual) {
			changed = true
		}
		if changed {
			updated = append(updated, &leg)
		}
	}

	if len(updated) == 0 {
		return nil, nil
	}

	tx, err := db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("unable to begin backfill transaction, error: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	patch := tx.Rebind("update completed_leg set forecasts = :forecasts " +
		"where vehicle_id = :vehicle_id and leg_end_time = :leg_end_time")
	for _, leg := range updated {
		_, err = tx.NamedExec(patch, leg)
		if err != nil {
			return nil, fmt.Errorf("unable to patch backfilled completed leg for vessel %s, error: %w",
				leg.VehicleId, err)
		}
	}
	err = tx.Commit()
	if err != nil {
		return nil, fmt.Errorf("unable to commit backfill patch, error: %w", err)
	}
	return updated, nil
}

// GetRecentCompletedLegs retrieves up to limit completed legs for vehicleId, newest first
func GetRecentCompletedLegs(db *sqlx.DB, vehicleId string, limit int) ([]*Leg, error) {
	statementString := "select * from completed_leg where vehicle_id = :vehicle_id " +
		"order by leg_end_time desc limit :limit"
	rows, err := database.PrepareNamedQueryRowsFromMap(statementString, db, map[string]interface{}{
		"vehicle_id": vehicleId,
		"limit":      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve completed_leg rows, error: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	results := make([]*Leg, 0)
	for rows.Next() {
		leg := Leg{}
		err = rows.StructScan(&leg)
		if err != nil {
			return nil, err
		}
		results = append(results, &leg)
	}
	return results, nil
}
