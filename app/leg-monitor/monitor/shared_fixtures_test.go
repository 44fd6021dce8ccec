package monitor

import (
	"fmt"
	"log"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/schedule"
)

type testLogWriter struct {
	logLines []string
	log      *log.Logger
}

func makeTestLogWriter() *testLogWriter {
	logWriter := testLogWriter{
		logLines: make([]string, 0),
	}
	logger := log.New(&logWriter, "LEG_MONITOR : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logWriter.log = logger
	return &logWriter
}

func (t *testLogWriter) Write(p []byte) (n int, err error) {
	t.logLines = append(t.logLines, string(p))
	return len(p), nil
}

func strPtr(s string) *string {
	return &s
}

func timePtr(t time.Time) *time.Time {
	return &t
}

//testPredictor answers every predict call with the same canned prediction, recording the
//slot names it was asked for. noCoverage and err simulate the service's failure modes
type testPredictor struct {
	predictedMinutes  float64
	meanAbsoluteError float64
	stdDev            float64
	noCoverage        bool
	err               error
	requestedSlots    []string
}

func (p *testPredictor) predict(_ *tripContext, slotName string) (*prediction, error) {
	p.requestedSlots = append(p.requestedSlots, slotName)
	if p.err != nil {
		return nil, p.err
	}
	if p.noCoverage {
		return nil, nil
	}
	return &prediction{
		PredictedMinutes:  p.predictedMinutes,
		MeanAbsoluteError: p.meanAbsoluteError,
		StdDev:            p.stdDev,
	}, nil
}

//testScheduleIndex serves published legs from a map keyed by vehicleId|originDockId
type testScheduleIndex struct {
	published map[string]*schedule.PublishedLeg
	err       error
	lookups   int
}

func (s *testScheduleIndex) PublishedLegFor(vehicleId string,
	originDockId string,
	_ time.Time) (*schedule.PublishedLeg, error) {

	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	return s.published[fmt.Sprintf("%s|%s", vehicleId, originDockId)], nil
}

func makeTestReducer(predictor predictor, schedules scheduleIndex) *legReducer {
	logWriter := makeTestLogWriter()
	if predictor == nil {
		predictor = &testPredictor{predictedMinutes: 10, meanAbsoluteError: 2, stdDev: 3}
	}
	if schedules == nil {
		schedules = &testScheduleIndex{}
	}
	return makeLegReducer(logWriter.log, schedules, makeForecastOrchestrator(logWriter.log, predictor))
}

func makeDockSample(vehicleId string, originDockId string, sampleTime time.Time) *PositionSample {
	return &PositionSample{
		VehicleId:    vehicleId,
		OriginDockId: originDockId,
		AtDock:       true,
		InService:    true,
		SampleTime:   sampleTime,
	}
}

func makeUnderwaySample(vehicleId string, originDockId string, sampleTime time.Time) *PositionSample {
	sample := makeDockSample(vehicleId, originDockId, sampleTime)
	sample.AtDock = false
	return sample
}
