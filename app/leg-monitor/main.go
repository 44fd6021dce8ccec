package main

import (
	"fmt"
	logger "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/OpenFerryTools/ferrycast/app/leg-monitor/monitor"
	"github.com/OpenFerryTools/ferrycast/foundation/database"
	"github.com/ardanlabs/conf"
	"github.com/gorilla/mux"
	"github.com/nats-io/nats.go"
)

var build = "develop"

func main() {
	log := logger.New(os.Stdout, "LEG_MONITOR : ", logger.LstdFlags|logger.Lmicroseconds|logger.Lshortfile)
	if err := run(log); err != nil {
		log.Printf("main: error: %v", err)
		os.Exit(1)
	}
}

func run(log *logger.Logger) error {
	var cfg struct {
		conf.Version
		Args conf.Args
		DB   struct {
			User       string `conf:"default:postgres"`
			Password   string `conf:"default:postgres,noprint"`
			Host       string `conf:"default:0.0.0.0"`
			Port       int    `conf:"default:5432"`
			Name       string `conf:"default:postgres"`
			DisableTLS bool   `conf:"default:true"`
		}
		NATS struct {
			Url string `conf:"default:nats://localhost:4222"`
		}
		Monitor struct {
			PositionFeedUrl        string `conf:"default:http://localhost:8190/positions"`
			LoopEverySeconds       int    `conf:"default:30"`
			FeedTimeoutSeconds     int    `conf:"default:15"`
			MaxVesselConcurrency   int    `conf:"default:8"`
			ForecastSubject        string `conf:"default:forecast-inference"`
			ForecastTimeoutSeconds int    `conf:"default:5"`
			PublishOverNats        bool   `conf:"default:true"`
			DebugHttpPort          int    `conf:"default:4000"`
		}
	}
	cfg.Version.SVN = build
	cfg.Version.Desc = "Maintain vessel leg lifecycle state in database"
	const prefix = "MONITOR"
	if err := conf.Parse(os.Args[1:], prefix, &cfg); err != nil {
		switch err {
		case conf.ErrHelpWanted:
			usage, err := conf.Usage(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config usage: %w", err)
			}
			fmt.Println(usage)
			return nil
		case conf.ErrVersionWanted:
			version, err := conf.VersionString(prefix, &cfg)
			if err != nil {
				return fmt.Errorf("generating config version: %w", err)
			}
			fmt.Println(version)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Printf("main : Started : Application initializing : version %s", build)
	defer log.Println("main: Completed")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Printf("main: Config :\n%v\n", out)

	// =========================================================================
	// Start Database

	log.Println("main: Initializing database support")

	db, err := database.Open(database.Config{
		User:       cfg.DB.User,
		Password:   cfg.DB.Password,
		Host:       cfg.DB.Host,
		Port:       cfg.DB.Port,
		Name:       cfg.DB.Name,
		DisableTLS: cfg.DB.DisableTLS,
	})
	if err != nil {
		return fmt.Errorf("connecting to db: %w", err)
	}
	defer func() {
		log.Printf("main: Database Stopping : %s", cfg.DB.Host)
		err = db.Close()
		if err != nil {
			log.Printf("main: error closing database: %v", err)
		}
	}()

	// =========================================================================
	// Start NATS

	log.Println("main: Initializing NATS support")

	natsConn, err := nats.Connect(cfg.NATS.Url)
	if err != nil {
		return fmt.Errorf("connecting to nats at %s: %w", cfg.NATS.Url, err)
	}
	defer natsConn.Close()

	// =========================================================================
	// Debug endpoint for metrics

	metrics := monitor.MakeMetrics()
	go func() {
		r := mux.NewRouter()
		r.Handle("/metrics", metrics.Handler())
		debugAddr := fmt.Sprintf("0.0.0.0:%d", cfg.Monitor.DebugHttpPort)
		log.Printf("main: Debug listening on %s", debugAddr)
		log.Printf("main: Debug listener closed: %v", http.ListenAndServe(debugAddr, r))
	}()

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	return monitor.RunLegMonitorLoop(log, db, natsConn, monitor.Conf{
		PositionFeedUrl:        cfg.Monitor.PositionFeedUrl,
		LoopEverySeconds:       cfg.Monitor.LoopEverySeconds,
		FeedTimeoutSeconds:     cfg.Monitor.FeedTimeoutSeconds,
		MaxVesselConcurrency:   cfg.Monitor.MaxVesselConcurrency,
		ForecastSubject:        cfg.Monitor.ForecastSubject,
		ForecastTimeoutSeconds: cfg.Monitor.ForecastTimeoutSeconds,
		PublishOverNats:        cfg.Monitor.PublishOverNats,
	}, metrics, shutdown)
}
