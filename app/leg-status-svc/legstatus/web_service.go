// Package legstatus serves the fleet's current leg state as json
package legstatus

import (
	"context"
	"encoding/json"
	logger "log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/OpenFerryTools/ferrycast/business/data/legs"
	"github.com/OpenFerryTools/ferrycast/business/data/schedule"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
)

//Conf contains all configurable parameters in legstatus
type Conf struct {
	HttpPort              int
	RetainCompletedLegs   int
	CompletedHistoryLimit int
}

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//fleetStatusHandler responds with every vessel's active leg
type fleetStatusHandler struct {
	log        *logger.Logger
	collection *legCollection
}

//ServeHTTP implements fleetStatusHandler http.Handler interface
func (h *fleetStatusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	writeJsonResponse(h.log, w, makeFleetStatusResponse(h.collection.activeLegs(),
		h.collection.recentCompletions()))
}

//vesselStatusHandler responds with one vessel's active leg and recent history
type vesselStatusHandler struct {
	log        *logger.Logger
	db         *sqlx.DB
	collection *legCollection
	//historyLimit caps completed legs loaded from the store per request
	historyLimit int
}

//ServeHTTP implements vesselStatusHandler http.Handler interface
func (h *vesselStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vehicleId := mux.Vars(r)["vehicleId"]
	active := h.collection.activeLeg(vehicleId)
	if active == nil {
		http.Error(w, "no active leg for vessel", http.StatusNotFound)
		return
	}
	completed, err := legs.GetRecentCompletedLegs(h.db, vehicleId, h.historyLimit)
	if err != nil {
		//history is best effort, the active leg still serves
		h.log.Printf("failed to load completed legs for vessel %s, error:%v\n", vehicleId, err)
	}
	writeJsonResponse(h.log, w, makeVesselStatusResponse(active, completed))
}

//sailingHandler responds with one published sailing looked up by its leg key
type sailingHandler struct {
	log *logger.Logger
	db  *sqlx.DB
}

//ServeHTTP implements sailingHandler http.Handler interface
func (h *sailingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	legKey := mux.Vars(r)["legKey"]
	published, err := schedule.GetPublishedLegByKey(h.db, legKey)
	if err != nil {
		h.log.Printf("failed to load published sailing %s, error:%v\n", legKey, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if published == nil {
		http.Error(w, "no published sailing for key", http.StatusNotFound)
		return
	}
	writeJsonResponse(h.log, w, published)
}

//FleetStatusResponse wraps the fleet view for json responses
type FleetStatusResponse struct {
	Timestamp     int64       `json:"timestamp"`
	ActiveLegs    []*legs.Leg `json:"active_legs"`
	CompletedLegs []*legs.Leg `json:"completed_legs"`
}

func makeFleetStatusResponse(activeLegs []*legs.Leg, completedLegs []*legs.Leg) *FleetStatusResponse {
	return &FleetStatusResponse{
		Timestamp:     time.Now().Unix(),
		ActiveLegs:    activeLegs,
		CompletedLegs: completedLegs,
	}
}

//VesselStatusResponse wraps one vessel's legs for json responses
type VesselStatusResponse struct {
	Timestamp     int64       `json:"timestamp"`
	ActiveLeg     *legs.Leg   `json:"active_leg"`
	CompletedLegs []*legs.Leg `json:"completed_legs"`
}

func makeVesselStatusResponse(active *legs.Leg, completed []*legs.Leg) *VesselStatusResponse {
	return &VesselStatusResponse{
		Timestamp:     time.Now().Unix(),
		ActiveLeg:     active,
		CompletedLegs: completed,
	}
}

//writeJsonResponse marshals payload to the response writer
func writeJsonResponse(log *logger.Logger, w http.ResponseWriter, payload interface{}) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling response to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(jsonData)
	if err != nil {
		log.Printf("Error writing json response: %s", err)
	}
}

//createServer creates configured http.Server for responding to leg status requests
func createServer(log *logger.Logger,
	db *sqlx.DB,
	collection *legCollection,
	conf Conf) *http.Server {

	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/legs", &fleetStatusHandler{log: log, collection: collection})
	r.Handle("/legs/{vehicleId}", &vesselStatusHandler{
		log:          log,
		db:           db,
		collection:   collection,
		historyLimit: conf.CompletedHistoryLimit,
	})
	r.Handle("/sailings/{legKey}", &sailingHandler{log: log, db: db})
	srv := &http.Server{
		Addr: strings.Join([]string{"0.0.0.0", strconv.Itoa(conf.HttpPort)}, ":"),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
	return srv
}

//RunWebService seeds the leg collection from the trip store, keeps it current from
//NATS leg updates, and serves it until shutdownSignal
func RunWebService(log *logger.Logger,
	db *sqlx.DB,
	natsConn *nats.Conn,
	conf Conf,
	shutdownSignal chan bool) error {

	collection := makeLegCollection(conf.RetainCompletedLegs)
	activeLegs, err := legs.GetAllActiveLegs(db)
	if err != nil {
		return err
	}
	collection.seed(activeLegs)
	log.Printf("seeded %d active legs", len(activeLegs))

	wg := sync.WaitGroup{}
	listenerShutdown := make(chan bool, 1)
	go startLegUpdateListener(log, &wg, collection, natsConn, listenerShutdown)

	srv := createServer(log, db, collection, conf)
	log.Printf("Starting server on port %d", conf.HttpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Printf("server ListenAndServe ended. %s", err)
		}
	}()

	<-shutdownSignal
	log.Printf("ending webservice on shutdown signal")
	listenerShutdown <- true

	shutdownCtx, serverCancelFunc := context.WithTimeout(context.Background(), time.Duration(5)*time.Second)
	defer serverCancelFunc()
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		log.Printf("error shutting down webservice, error:%s", err)
	}
	wg.Wait()
	return nil
}
