package monitor

import (
	"encoding/json"
	"log"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/nats-io/nats.go"
)

//legMonitorResultsSubject is the NATS subject round results are published on, consumed
//by the leg status service and the forecasting pipeline
const legMonitorResultsSubject = "leg-monitor-results"

//legMonitorResultsPublisher sends a round's applied results to downstream consumers
//over NATS according to publishOverNats
type legMonitorResultsPublisher struct {
	log             *log.Logger
	natsConnection  *nats.Conn
	publishOverNats bool
}

//makeLegMonitorResultsPublisher creates legMonitorResultsPublisher
func makeLegMonitorResultsPublisher(log *log.Logger,
	natsConnection *nats.Conn,
	publishOverNats bool) *legMonitorResultsPublisher {
	return &legMonitorResultsPublisher{
		log:             log,
		natsConnection:  natsConnection,
		publishOverNats: publishOverNats,
	}
}

//publish sends legs.LegMonitorResults over NATS. Publish failures are logged and the
//round continues, the next successful round carries the current state
func (p *legMonitorResultsPublisher) publish(results *legs.LegMonitorResults) {
	if !p.publishOverNats {
		return
	}
	if len(results.ActiveLegs) == 0 && len(results.CompletedLegs) == 0 &&
		len(results.ForecastOutcomes) == 0 {
		return
	}
	jsonData, err := json.Marshal(results)
	if err != nil {
		p.log.Printf("failed to marshal LegMonitorResults in "+
			"legMonitorResultsPublisher.publish, error:%v", err)
		return
	}
	err = p.natsConnection.Publish(legMonitorResultsSubject, jsonData)
	if err != nil {
		p.log.Printf("failed to send LegMonitorResults in "+
			"legMonitorResultsPublisher.publish, error:%v", err)
	}
}
