// Package schedule provides lookups against the published sailing schedule
package schedule

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PublishedLeg is one sailing from the published daily schedule, loaded by the batch
// schedule pipeline. The monitor consumes it for identity enrichment only
type PublishedLeg struct {
	LegKey             string    `db:"leg_key" json:"leg_key"`
	VehicleId          string    `db:"vehicle_id" json:"vehicle_id"`
	OriginDockId       string    `db:"origin_dock_id" json:"origin_dock_id"`
	DestinationDockId  string    `db:"destination_dock_id" json:"destination_dock_id"`
	ScheduledDeparture time.Time `db:"scheduled_departure" json:"scheduled_departure"`
	ScheduledArrival   time.Time `db:"scheduled_arrival" json:"scheduled_arrival"`
	//Direct is false when the sailing makes an intermediate stop
	Direct    bool      `db:"direct" json:"direct"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// GetPublishedLeg retrieves the published sailing matching vessel, origin and scheduled
// departure, or nil when the schedule has no match
func GetPublishedLeg(db *sqlx.DB,
	vehicleId string,
	originDockId string,
	scheduledDeparture time.Time) (*PublishedLeg, error) {

	query := db.Rebind("select * from published_leg " +
		"where vehicle_id = ? and origin_dock_id = ? and scheduled_departure = ? limit 1")
	leg := PublishedLeg{}
	err := db.Get(&leg, query, vehicleId, originDockId, scheduledDeparture)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve published leg for vessel %s at %s, error: %w",
			vehicleId, originDockId, err)
	}
	return &leg, nil
}

// GetPublishedLegByKey retrieves the published sailing with legKey, or nil if absent
func GetPublishedLegByKey(db *sqlx.DB, legKey string) (*PublishedLeg, error) {
	query := db.Rebind("select * from published_leg where leg_key = ? limit 1")
	leg := PublishedLeg{}
	err := db.Get(&leg, query, legKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve published leg %s, error: %w", legKey, err)
	}
	return &leg, nil
}
