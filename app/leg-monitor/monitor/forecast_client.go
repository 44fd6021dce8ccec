package monitor

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/nats-io/nats.go"
)

//forecastRequest is the json payload sent to the forecast service over NATS request/reply
type forecastRequest struct {
	ForecastKind string       `json:"forecast_kind"`
	Context      *tripContext `json:"context"`
	Features     []float64    `json:"features"`
	Timestamp    int64        `json:"timestamp"`
}

//forecastResponse is the forecast service's reply. Available is false when the service
//has no model coverage for the requested route
type forecastResponse struct {
	Available         bool    `json:"available"`
	PredictedValue    float64 `json:"predicted_value"`
	MeanAbsoluteError float64 `json:"mean_absolute_error"`
	StdDev            float64 `json:"std_dev"`
}

//natsPredictor reaches the forecast service over NATS request/reply. The service is a
//pure function from the monitor's point of view: a timeout or error degrades the tick
//to a missing forecast, never more
type natsPredictor struct {
	log             *log.Logger
	natsConn        *nats.Conn
	subject         string
	timeout         time.Duration
	holidayCalendar *ferryHolidayCalendar
}

//makeNatsPredictor creates a natsPredictor for the forecast subject
func makeNatsPredictor(log *log.Logger,
	natsConn *nats.Conn,
	subject string,
	timeout time.Duration) *natsPredictor {
	return &natsPredictor{
		log:             log,
		natsConn:        natsConn,
		subject:         subject,
		timeout:         timeout,
		holidayCalendar: makeFerryHolidayCalendar(),
	}
}

//predict implements predictor over NATS. Returns nil without error when the service
//reports no coverage for the route
func (p *natsPredictor) predict(ctx *tripContext, slotName string) (*prediction, error) {
	request := forecastRequest{
		ForecastKind: slotName,
		Context:      ctx,
		Features:     p.featureArray(ctx),
		Timestamp:    time.Now().Unix(),
	}
	jsonData, err := json.Marshal(&request)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal forecast request, error: %w", err)
	}

	msg, err := p.natsConn.Request(p.subject, jsonData, p.timeout)
	if err != nil {
		return nil, fmt.Errorf("forecast service request failed, error: %w", err)
	}

	response := forecastResponse{}
	err = json.Unmarshal(msg.Data, &response)
	if err != nil {
		return nil, fmt.Errorf("unable to parse forecast response, error: %w", err)
	}
	if !response.Available {
		return nil, nil
	}
	return &prediction{
		PredictedMinutes:  response.PredictedValue,
		MeanAbsoluteError: response.MeanAbsoluteError,
		StdDev:            response.StdDev,
	}, nil
}

//featureArray produces the schedule adherence features for a forecast request
func (p *natsPredictor) featureArray(ctx *tripContext) []float64 {
	holiday := 0.0
	if p.holidayCalendar.isHoliday(ctx.At) {
		holiday = 1.0
	}
	prevDelay := legs.MinutesBetween(ctx.PrevScheduledDeparture, ctx.PrevActualDeparture)
	sincePrevDeparture := legs.MinutesBetween(ctx.PrevActualDeparture, ctx.At)
	return []float64{
		float64(ctx.At.Month()),
		float64(ctx.At.Weekday()),
		float64(ctx.At.Hour()),
		float64(ctx.At.Minute()),
		holiday,
		prevDelay,
		sincePrevDeparture,
	}
}
