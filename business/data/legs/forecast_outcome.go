package legs

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// ForecastOutcome is one actualized forecast slot serialized for the append-only outcome
// log, used by model evaluation downstream.
// primary key consists of LegKey, Slot
type ForecastOutcome struct {
	LegKey            string    `db:"leg_key" json:"leg_key"`
	Slot              string    `db:"slot" json:"slot"`
	VehicleId         string    `db:"vehicle_id" json:"vehicle_id"`
	OriginDockId      string    `db:"origin_dock_id" json:"origin_dock_id"`
	DestinationDockId string    `db:"destination_dock_id" json:"destination_dock_id"`
	MinTime           time.Time `db:"min_time" json:"min_time"`
	PredictedTime     time.Time `db:"predicted_time" json:"predicted_time"`
	MaxTime           time.Time `db:"max_time" json:"max_time"`
	MeanAbsoluteError float64   `db:"mean_absolute_error" json:"mean_absolute_error"`
	StdDev            float64   `db:"std_dev" json:"std_dev"`
	Actual            time.Time `db:"actual" json:"actual"`
	DeltaTotalMinutes float64   `db:"delta_total_minutes" json:"delta_total_minutes"`
	DeltaRangeMinutes float64   `db:"delta_range_minutes" json:"delta_range_minutes"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// MakeForecastOutcome serializes an actualized slot on leg into a ForecastOutcome.
// Returns nil when the slot is not actualized or the leg has no key to record it under
func MakeForecastOutcome(leg *Leg, slotName string, slot *ForecastSlot) *ForecastOutcome {
	if !slot.Actualized() || leg.LegKey == nil {
		return nil
	}
	destination := ""
	if leg.DestinationDockId != nil {
		destination = *leg.DestinationDockId
	}
	return &ForecastOutcome{
		LegKey:            *leg.LegKey,
		Slot:              slotName,
		VehicleId:         leg.VehicleId,
		OriginDockId:      leg.OriginDockId,
		DestinationDockId: destination,
		MinTime:           slot.MinTime,
		PredictedTime:     slot.PredictedTime,
		MaxTime:           slot.MaxTime,
		MeanAbsoluteError: slot.MeanAbsoluteError,
		StdDev:            slot.StdDev,
		Actual:            *slot.Actual,
		DeltaTotalMinutes: *slot.DeltaTotalMinutes,
		DeltaRangeMinutes: *slot.DeltaRangeMinutes,
	}
}

// RecordForecastOutcomes saves slice of ForecastOutcome into database in batch.
// The insert is idempotent on (leg_key, slot) so re-recording a slot is a no-op
func RecordForecastOutcomes(outcomes []*ForecastOutcome, db *sqlx.DB) error {
	if len(outcomes) == 0 {
		return nil
	}

	now := time.Now()
	for _, outcome := range outcomes {
		outcome.CreatedAt = now
	}

	statementString := "insert into forecast_outcome " +
		"(leg_key, " +
		"slot, " +
		"vehicle_id, " +
		"origin_dock_id, " +
		"destination_dock_id, " +
		"min_time, " +
		"predicted_time, " +
		"max_time, " +
		"mean_absolute_error, " +
		"std_dev, " +
		"actual, " +
		"delta_total_minutes, " +
		"delta_range_minutes, " +
		"created_at) " +
		"values " +
		"(:leg_key, " +
		":slot, " +
		":vehicle_id, " +
		":origin_dock_id, " +
		":destination_dock_id, " +
		":min_time, " +
		":predicted_time, " +
		":max_time, " +
		":mean_absolute_error, " +
		":std_dev, " +
		":actual, " +
		":delta_total_minutes, " +
		":delta_range_minutes, " +
		":created_at) " +
		"on conflict (leg_key, slot) do nothing"
	statementString = db.Rebind(statementString)
	_, err := db.NamedExec(statementString, outcomes)
	return err
}
