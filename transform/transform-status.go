package transform

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relloyd/starpipe/stats"
)

type Status uint32

const (
	StatusMissing         = 0
	StatusStarting Status = iota + 1
	StatusRunning
	StatusComplete
	StatusCompleteWithError
	StatusShutdown
)

func (s Status) String() string {
	switch s {
	case StatusMissing:
		return ""
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusCompleteWithError:
		return "complete with error"
	case StatusShutdown:
		return "shutdown by user"
	}
	return fmt.Sprintf("status(%d)", uint32(s))
}

func (s Status) MarshalJSON() ([]byte, error) {
	if s > StatusShutdown {
		return nil, fmt.Errorf("unhandled Status value %v in custom MarshalJSON() conversion", uint32(s))
	}
	return json.Marshal(s.String())
}

// CheckSummary is the outcome of one quality check without its rows.
type CheckSummary struct {
	Check      string `json:"check"`
	Passed     bool   `json:"passed"`
	Violations int    `json:"violations"`
}

// RunReport describes one pipeline run.
// FailedStage, ErrorID and Error are only set when the run failed.
type RunReport struct {
	RunID       string         `json:"runId"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     time.Time      `json:"endTime"`
	ElapsedMs   int64          `json:"elapsedMs"`
	Status      Status         `json:"pipeStatus"`
	FailedStage string         `json:"failedStage,omitempty"`
	ErrorID     string         `json:"errorId,omitempty"`
	Error       string         `json:"error,omitempty"`
	Stages      []stats.Stats  `json:"stages"`
	Checks      []CheckSummary `json:"checks,omitempty"`
}

func (r *RunReport) IsFinished() bool {
	if r.Status == StatusStarting || r.Status == StatusRunning { // if the run is in flight...
		return false
	}
	return true
}

func (r *RunReport) Succeeded() bool {
	return r.Status == StatusComplete
}

// FailedChecks counts the checks that reported violations.
func (r *RunReport) FailedChecks() int {
	n := 0
	for _, c := range r.Checks {
		if !c.Passed {
			n++
		}
	}
	return n
}
