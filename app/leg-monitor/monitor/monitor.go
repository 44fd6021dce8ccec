// Package monitor maintains each vessel's current leg from a periodic position feed
package monitor

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/OpenFerryTools/ferrycast/business/data/schedule"
	"github.com/OpenFerryTools/ferrycast/foundation/httpclient"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

//Conf contains all configurable parameters in monitor
type Conf struct {
	PositionFeedUrl        string
	LoopEverySeconds       int
	FeedTimeoutSeconds     int
	MaxVesselConcurrency   int
	ForecastSubject        string
	ForecastTimeoutSeconds int
	PublishOverNats        bool
}

//dbScheduleIndex serves published sailing lookups from the schedule tables
type dbScheduleIndex struct {
	db *sqlx.DB
}

func (s *dbScheduleIndex) PublishedLegFor(vehicleId string,
	originDockId string,
	scheduledDeparture time.Time) (*schedule.PublishedLeg, error) {
	return schedule.GetPublishedLeg(s.db, vehicleId, originDockId, scheduledDeparture)
}

//RunLegMonitorLoop starts loop that polls the position feed and reconciles every
//vessel's leg state each round
func RunLegMonitorLoop(log *log.Logger,
	db *sqlx.DB,
	natsConn *nats.Conn,
	conf Conf,
	metrics *Metrics,
	shutdownSignal chan os.Signal) error {

	loopDuration := time.Duration(conf.LoopEverySeconds) * time.Second

	sleepChan := make(chan bool)
	sleep := time.Duration(0) //sleep for zero seconds the first time

	feedClient := httpclient.MakeJSONClient(time.Duration(conf.FeedTimeoutSeconds) * time.Second)
	predictor := makeNatsPredictor(log, natsConn, conf.ForecastSubject,
		time.Duration(conf.ForecastTimeoutSeconds)*time.Second)
	reducer := makeLegReducer(log, &dbScheduleIndex{db: db}, makeForecastOrchestrator(log, predictor))
	publisher := makeLegMonitorResultsPublisher(log, natsConn, conf.PublishOverNats)

	for {

		go func() {
			time.Sleep(sleep)
			sleepChan <- true
		}()

		select {
		case <-shutdownSignal:
			log.Printf("Exiting on shutdown signal")
			return nil
		case <-sleepChan:
			break
		}

		//set default sleep for next loop in the event of an error after continue statements
		sleep = loopDuration

		// mark the time we start working
		start := time.Now()

		samples, err := getPositionSamples(feedClient, conf.PositionFeedUrl)
		if err != nil {
			log.Printf("error attempting to get position samples. error:%v\n", err)
			continue
		}

		log.Printf("loaded %d position samples\n", len(samples))

		activeLegs, err := legs.GetAllActiveLegs(db)
		if err != nil {
			log.Printf("error attempting to load active legs. error:%v\n", err)
			continue
		}

		runRound(log, db, reducer, publisher, metrics, conf.MaxVesselConcurrency, samples, activeLegs)

		// attempt to run the loop every loopEverySeconds by subtracting the time it took to perform the work
		workTook := time.Now().Sub(start)

		metrics.observeRound(len(samples), len(activeLegs), workTook)
		log.Printf("work took %s\n", fmtDuration(workTook))

		// if the work took longer than loopEverySeconds don't sleep at all on the next loop
		if workTook >= loopDuration {
			sleep = time.Duration(0)
		} else {
			sleep = loopDuration - workTook
		}

	}
}

//runRound reduces every vessel's tick in parallel, then aggregates and applies the
//round's write plan sequentially. One vessel's failure never blocks the others
func runRound(log *log.Logger,
	db *sqlx.DB,
	reducer *legReducer,
	publisher *legMonitorResultsPublisher,
	metrics *Metrics,
	vesselConcurrency int,
	samples []PositionSample,
	activeLegs []*legs.Leg) {

	priorByVessel := make(map[string]*legs.Leg, len(activeLegs))
	for _, leg := range activeLegs {
		priorByVessel[leg.VehicleId] = leg
	}

	//construction phase: independent per vessel reducer runs, bounded fan out, no
	//shared mutable state. External lookups within one vessel's run stay sequential
	resultsChan := make(chan *tickResult, len(samples))
	semaphore := make(chan struct{}, boundedConcurrency(vesselConcurrency, len(samples)))
	wg := sync.WaitGroup{}
	for i := range samples {
		sample := &samples[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			result := reduceVesselTick(log, metrics, reducer, priorByVessel[sample.VehicleId], sample)
			if result != nil {
				resultsChan <- result
			}
		}()
	}
	wg.Wait()
	close(resultsChan)

	results := make([]*tickResult, 0, len(samples))
	for result := range resultsChan {
		results = append(results, result)
		switch result.event {
		case LegBoundary:
			metrics.boundaries.Inc()
		case FirstSighting:
			metrics.firstSightings.Inc()
		}
	}

	//aggregation and apply phase, sequential
	plan := buildWritePlan(results)
	metrics.noopTicks.Add(float64(plan.noopCount))
	if plan.isEmpty() {
		return
	}

	applied, err := plan.apply(log, db)
	if err != nil {
		//the reducer is idempotent through full state diffing, the next round retries
		log.Printf("error applying write plan. error:%v\n", err)
	}
	metrics.forecastOutcomes.Add(float64(len(applied.ForecastOutcomes)))

	log.Printf("round applied %d boundary completions, %d continuations, %d backfills, "+
		"%d outcomes, %d no-op ticks\n",
		len(plan.boundaryCompletions), len(plan.continuationUpserts),
		len(plan.backfillDepartures), len(applied.ForecastOutcomes), plan.noopCount)

	publisher.publish(applied)
}

//reduceVesselTick runs one vessel's reducer with panic isolation, a failure while
//constructing one vessel's next state is reported and dropped from the round
func reduceVesselTick(log *log.Logger,
	metrics *Metrics,
	reducer *legReducer,
	priorLeg *legs.Leg,
	sample *PositionSample) (result *tickResult) {

	defer func() {
		if r := recover(); r != nil {
			log.Printf("failure constructing next state for vessel %s: %v", sample.VehicleId, r)
			metrics.perVesselFailures.Inc()
			result = nil
		}
	}()
	return reducer.reduceTick(priorLeg, sample)
}

func boundedConcurrency(limit int, sampleCount int) int {
	if limit <= 0 {
		limit = 8
	}
	if sampleCount > 0 && sampleCount < limit {
		limit = sampleCount
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

//fmtDuration returns a string presentation of time.Duration for logging
func fmtDuration(d time.Duration) string {
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	mill := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d.%d", h, m, mill)
}
