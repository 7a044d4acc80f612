// Package main: the Airnode coordinator service.
//
// By default the program executes exactly one coordinator run and exits: 0 on success, non-zero on an unrecoverable
// initialization failure. With -s it stays up behind a small HTTP API so an external scheduler can trigger runs;
// the engine itself still works in short batches and keeps no request state between runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tarancss/airnode/caller"
	"github.com/tarancss/airnode/coordinator"
	"github.com/tarancss/airnode/lib/config"
	"github.com/tarancss/airnode/lib/logger"
	"github.com/tarancss/airnode/lib/msg"
	"github.com/tarancss/airnode/lib/msg/amqp"
	"github.com/tarancss/airnode/lib/store"
	"github.com/tarancss/airnode/lib/store/db"
)

const serverTimeout = 15 * time.Second

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	serve := flag.Bool("s", false, "flag to serve an HTTP API that triggers coordinator runs")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		log.Printf("Configuration error:%e", err)
		os.Exit(1)
	}

	// connect to database, if configured the run reports are archived
	var dbConn store.DB

	if conf.DBConn != "" {
		if dbConn, err = db.New(conf.DBType, conf.DBConn); err != nil {
			log.Printf("Error connecting to database:%e", err)
			os.Exit(1)
		}

		log.Printf("Connected to database:%+v\n", conf.DBConn)

		defer func() {
			errClose := db.Close(conf.DBType, dbConn)
			log.Printf("Disconnecting %v database, err:%e\n", conf.DBType, errClose)
		}()
	}

	// load message broker, if configured fulfillment events are published per run
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				log.Printf("Error connecting to message broker:%e", err)
				os.Exit(1)
			}
		}

		if err = mb.Setup(nil); err != nil {
			log.Printf("Error setting up message broker:%e", err)
			os.Exit(1)
		}

		defer func() {
			errClose := mb.Close()
			log.Printf("Closing messageBroker: %e", errClose)
		}()
	case "":
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	runner := &runner{conf: conf, db: dbConn, mb: mb, emitter: logger.New(conf.LogFormat, os.Stdout)}

	if !*serve {
		if _, err := runner.runOnce(context.Background()); err != nil {
			os.Exit(1)
		}

		return
	}

	// API definition
	r := mux.NewRouter()
	r.HandleFunc("/run", runner.runHandler).Methods("POST")
	r.HandleFunc("/status", runner.statusHandler).Methods("GET")

	s := &http.Server{
		Handler:      r,
		Addr:         ":" + conf.Port,
		WriteTimeout: serverTimeout * 10, // a triggered run replies when it finishes
		ReadTimeout:  serverTimeout,
	}

	log.Printf("Listening to API http requests on :%s", conf.Port)
	log.Printf("Server finished:%e", s.ListenAndServe())
}

// runner serializes coordinator runs: nonce assignment assumes one run at a time per provider.
type runner struct {
	l       sync.Mutex
	conf    config.Config
	db      store.DB
	mb      msg.MsgBroker
	emitter *logger.Emitter
	last    *store.RunReport
}

func (r *runner) runOnce(ctx context.Context) (store.RunReport, error) {
	r.l.Lock()
	defer r.l.Unlock()

	started := time.Now().UTC()

	state, err := coordinator.Run(ctx, r.conf, caller.NewHTTPCaller())

	r.emitter.Emit(state.Logs)

	report := buildReport(r.conf, state, started)
	r.last = &report

	// ship the report and the events; failures here never fail the run
	if r.db != nil {
		if errSave := r.db.SaveRun(report); errSave != nil {
			log.Printf("Error saving run report:%e", errSave)
		}
	}

	if r.mb != nil && len(report.Transactions) > 0 {
		events := make([]msg.Event, len(report.Transactions))
		for i, tx := range report.Transactions {
			events[i] = msg.Event{Chain: tx.Chain, Kind: tx.Kind, RequestID: tx.RequestID, Hash: tx.Hash, Nonce: tx.Nonce}
		}

		if errSend := r.mb.SendFulfillments(events); errSend != nil {
			log.Printf("Error publishing fulfillment events:%e", errSend)
		}
	}

	return report, err
}

// runHandler triggers one coordinator run and replies with its report.
func (r *runner) runHandler(rw http.ResponseWriter, req *http.Request) {
	log.Printf("httpreq from %v %s\n", req.RemoteAddr, req.RequestURI)

	report, err := r.runOnce(req.Context())

	rw.Header().Set("Content-Type", "application/json;charset=utf8")

	if err != nil {
		rw.WriteHeader(http.StatusInternalServerError)
	} else {
		rw.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(rw).Encode(report)
}

// statusHandler replies the report of the last run, if any.
func (r *runner) statusHandler(rw http.ResponseWriter, req *http.Request) {
	log.Printf("httpreq from %v %s\n", req.RemoteAddr, req.RequestURI)

	r.l.Lock()
	last := r.last
	r.l.Unlock()

	rw.Header().Set("Content-Type", "application/json;charset=utf8")

	if last == nil {
		rw.WriteHeader(http.StatusNotFound)

		return
	}

	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(last)
}

// buildReport flattens the final coordinator state into an archivable report.
func buildReport(conf config.Config, state coordinator.State, started time.Time) store.RunReport {
	report := store.RunReport{
		Stage:      conf.Stage,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Requests:   make(map[string]int),
	}

	for _, p := range state.Providers {
		for _, call := range p.Requests.APICalls {
			report.Requests[string(call.Status)]++
		}

		report.ProviderID = p.Master.ProviderID().Hex()
	}

	for _, tx := range state.Transactions {
		report.Transactions = append(report.Transactions, store.TxRecord{
			Kind:      tx.Kind,
			RequestID: tx.RequestID.Hex(),
			Requester: tx.Requester,
			Nonce:     tx.Nonce,
			Hash:      tx.Hash.Hex(),
		})
	}

	for _, l := range state.Logs {
		report.Logs = append(report.Logs, store.LogRecord{Level: l.Level, Message: l.Message})
	}

	return report
}
