package actions

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/store"
	"github.com/relloyd/starpipe/transform"
)

type WebServerResponse uint32

const (
	Okay WebServerResponse = iota + 1
	Error
)

func (w WebServerResponse) MarshalJSON() ([]byte, error) {
	var retval string
	switch w {
	case Okay:
		retval = "ok"
	case Error:
		retval = "error"
	default:
		err := fmt.Errorf("unhandled WebServerResponse value in MarshalJSON() conversion")
		return nil, err
	}
	return json.Marshal(retval)
}

func (w *WebServerResponse) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "ok":
		*w = Okay
	case "error":
		*w = Error
	default:
		return fmt.Errorf("unhandled WebServerResponse value %q in UnmarshalJSON() conversion", s)
	}
	return nil
}

type ResponseSimple struct {
	ServerStatus WebServerResponse `json:"status"`
}

type ResponseRunList struct {
	Status WebServerResponse     `json:"status"`
	Runs   []transform.RunReport `json:"runs"`
}

type ResponseRunStats struct {
	Status       WebServerResponse `json:"status"`
	Message      string            `json:"message"`
	StatsSummary interface{}       `json:"runStats"`
}

type ResponseRunStatus struct {
	Status  WebServerResponse    `json:"status"`
	Message string               `json:"message"`
	Report  *transform.RunReport `json:"run,omitempty"`
}

type ResponseRunStop struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunID   string            `json:"runId"`
}

type ResponseRunLaunch struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	RunID   string            `json:"runId,omitempty"`
}

type CheckListItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ResponseCheckList struct {
	Status WebServerResponse `json:"status"`
	Checks []CheckListItem   `json:"checks"`
}

type ResponseCheck struct {
	Status  WebServerResponse `json:"status"`
	Message string            `json:"message"`
	Result  *quality.Result   `json:"result,omitempty"`
}

func GetHandlerHealth(log logger.Logger) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

func GetHandlerStopServer(log logger.Logger, chanStop chan string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		select {
		case chanStop <- "stop":
			log.Info("Stop signal sent")
		default: // a stop is already pending.
		}
		respond(log, w, ResponseSimple{ServerStatus: Okay})
	}
}

// GetHandlerRunLaunch starts a run in the background using a driver from newDriver.
// Only one run may be in flight at a time since runs replace the same tables.
func GetHandlerRunLaunch(log logger.Logger, allRunInfo *transform.SafeMapRunInfo, newDriver func() (*transform.Driver, error)) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	return func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		for _, report := range allRunInfo.Reports() {
			if !report.IsFinished() { // if a run is in flight...
				w.WriteHeader(http.StatusConflict)
				respond(log, w, ResponseRunLaunch{Status: Error, Message: "a run is already in progress", RunID: report.RunID})
				return
			}
		}
		d, err := newDriver()
		if err != nil {
			log.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			respond(log, w, ResponseRunLaunch{Status: Error, Message: fmt.Sprintf("unable to create run: %v", err)})
			return
		}
		runID := allRunInfo.Launch(d)
		log.Info("Launched run ", runID)
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunLaunch{Status: Okay, Message: "run launched", RunID: runID})
	}
}

func GetHandlerRunStop(log logger.Logger, allRunInfo *transform.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["runId"]
		ri, ok := allRunInfo.Load(id)
		if !ok { // if the run doesn't exist...
			w.WriteHeader(http.StatusNotFound)
			log.Info("HTTP request to stop run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStop{Status: Error, Message: "run does not exist", RunID: id})
			return
		}
		w.WriteHeader(http.StatusOK)
		if ri.Report.IsFinished() { // if the run has already finished...
			log.Info("HTTP request to stop run ", id, " has already finished.")
			respond(log, w, ResponseRunStop{Status: Error, Message: "run already ended", RunID: id})
			return
		}
		log.Info("Stopping run ", id)
		ri.Cancel()
		respond(log, w, ResponseRunStop{Status: Okay, Message: "shutting down", RunID: id})
	}
}

func GetHandlerRunList(log logger.Logger, allRunInfo *transform.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunList{Status: Okay, Runs: allRunInfo.Reports()})
	}
}

func GetHandlerRunStats(log logger.Logger, allRunInfo *transform.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["runId"]
		ri, ok := allRunInfo.Load(id)
		if !ok { // if the run doesn't exist...
			w.WriteHeader(http.StatusNotFound)
			log.Info("HTTP request to fetch stats for run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStats{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunStats{Status: Okay, StatsSummary: ri.Stats.GetStats()})
	}
}

func GetHandlerRunStatus(log logger.Logger, allRunInfo *transform.SafeMapRunInfo) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["runId"]
		ri, ok := allRunInfo.Load(id)
		if !ok { // if the run doesn't exist...
			w.WriteHeader(http.StatusNotFound)
			log.Info("HTTP request status of run ", id, " that doesn't exist.")
			respond(log, w, ResponseRunStatus{Status: Error, Message: fmt.Sprintf("run %v does not exist", id)})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseRunStatus{Status: Okay, Report: &ri.Report})
	}
}

func GetHandlerCheckList(log logger.Logger, reg *quality.Registry) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		names := reg.Names()
		checks := make([]CheckListItem, 0, len(names))
		for _, name := range names {
			chk, _ := reg.Get(name)
			checks = append(checks, CheckListItem{Name: chk.Name, Description: chk.Description})
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseCheckList{Status: Okay, Checks: checks})
	}
}

// GetHandlerCheckRun runs one check against the layers held in st.
func GetHandlerCheckRun(log logger.Logger, reg *quality.Registry, st store.Store) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["checkName"]
		if _, ok := reg.Get(name); !ok {
			w.WriteHeader(http.StatusNotFound)
			respond(log, w, ResponseCheck{Status: Error, Message: fmt.Sprintf("check %v does not exist", name)})
			return
		}
		ds, err := transform.LoadDataset(r.Context(), st)
		if err != nil {
			log.Error(err)
			w.WriteHeader(http.StatusInternalServerError)
			respond(log, w, ResponseCheck{Status: Error, Message: fmt.Sprintf("unable to load tables: %v", err)})
			return
		}
		results, err := reg.Run(r.Context(), ds, name)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, quality.ErrUnknownCheck) {
				status = http.StatusNotFound
			}
			log.Error(err)
			w.WriteHeader(status)
			respond(log, w, ResponseCheck{Status: Error, Message: err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		respond(log, w, ResponseCheck{Status: Okay, Result: &results[0]})
	}
}

// respond will marshal i to a string and write it to w.
func respond(log logger.Logger, w http.ResponseWriter, i interface{}) {
	j, err := json.MarshalIndent(i, "", "  ")
	if err != nil {
		log.Panic(err)
	}
	_, err = fmt.Fprint(w, string(j))
	if err != nil {
		log.Error(err)
	}
}
