package legstatus

import (
	"encoding/json"
	logger "log"
	"sync"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/nats-io/nats.go"
)

//startLegUpdateListener listens on NATS for leg-monitor-results (expecting
//legs.LegMonitorResults) and folds each round's changes into the collection.
//Every service instance needs every update, so this is a plain subscription rather
//than a queue group
func startLegUpdateListener(log *logger.Logger,
	wg *sync.WaitGroup,
	collection *legCollection,
	natsConn *nats.Conn,
	shutdownSignal chan bool) {
	wg.Add(1)
	defer wg.Done()

	ch := make(chan *nats.Msg, 64)
	log.Printf("Subscribing to leg-monitor-results on nats: %v\n", natsConn.Servers())
	sub, err := natsConn.ChanSubscribe("leg-monitor-results", ch)
	if err != nil {
		log.Printf("Unable to establish subscription to nats server: %v\n", err)
		return
	}

	for {
		select {
		case msg := <-ch:
			results := legs.LegMonitorResults{}
			err = json.Unmarshal(msg.Data, &results)
			if err != nil {
				log.Printf("failed to parse LegMonitorResults message, error:%v\n", err)
				continue
			}
			collection.applyResults(&results)
		case <-shutdownSignal:
			log.Printf("ending leg update listener on shutdown signal\n")
			err = sub.Unsubscribe()
			if err != nil {
				log.Printf("error unsubscribing from leg-monitor-results, error:%v\n", err)
			}
			return
		}
	}
}
