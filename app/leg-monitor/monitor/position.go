package monitor

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/OpenFerryTools/ferrycast/foundation/httpclient"
)

//PositionSample contains fields read from the vessel position feed for one vessel in one
//polling round. The feed normalizer has already deduplicated samples; fields that are
//optional are pointers and will be nil if they were not present in the feed
type PositionSample struct {
	VehicleId              string     `json:"vehicle_id"`
	OriginDockId           string     `json:"origin_dock_id"`
	DestinationDockId      *string    `json:"destination_dock_id"`
	AtDock                 bool       `json:"at_dock"`
	ActualDepartureTime    *time.Time `json:"actual_departure_time"`
	ScheduledDepartureTime *time.Time `json:"scheduled_departure_time"`
	EstimatedArrival       *time.Time `json:"estimated_arrival"`
	InService              bool       `json:"in_service"`
	SampleTime             time.Time  `json:"sample_time"`
}

//String implements Stringer interface for PositionSample
func (p *PositionSample) String() string {
	var buffer bytes.Buffer
	buffer.WriteString("PositionSample{ vessel:")
	buffer.WriteString(p.VehicleId)
	buffer.WriteString(", origin:")
	buffer.WriteString(p.OriginDockId)
	buffer.WriteString(", destination:")
	if p.DestinationDockId == nil {
		buffer.WriteString("unknown")
	} else {
		buffer.WriteString(*p.DestinationDockId)
	}
	buffer.WriteString(", atDock:")
	buffer.WriteString(strconv.FormatBool(p.AtDock))
	buffer.WriteString(", inService:")
	buffer.WriteString(strconv.FormatBool(p.InService))
	buffer.WriteString(", sampleTime:")
	buffer.WriteString(p.SampleTime.Format(time.RFC3339))
	buffer.WriteString(" }")
	return buffer.String()
}

//positionFeedResponse wraps the feed's json document
type positionFeedResponse struct {
	RetrievedAt time.Time        `json:"retrieved_at"`
	Samples     []PositionSample `json:"samples"`
}

//getPositionSamples retrieves the current position samples from the feed at url
func getPositionSamples(client *httpclient.JSONClient, url string) ([]PositionSample, error) {
	response := positionFeedResponse{}
	err := client.Get(url, &response)
	if err != nil {
		return nil, fmt.Errorf("unable to load position samples from %s, error: %w", url, err)
	}
	return response.Samples, nil
}
