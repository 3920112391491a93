package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
)

const (
	OutcomeRunning   = "running"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// StageWatcher records the telemetry of one pipeline stage.
// A stage calls StartWatching, adds its row counts and then calls StopWatching.
type StageWatcher struct {
	log       logger.Logger
	runID     string
	stageName string
	mu        sync.RWMutex
	startTime time.Time
	endTime   time.Time
	rowsIn    int64
	rowsOut   int64
	outcome   string
	errorText string
}

type Stats struct {
	StageName   string     `json:"stageName"`
	StatusText  string     `json:"statusText"`
	StatusEmoji string     `json:"statusEmoji"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	ElapsedMs   int64      `json:"elapsedMs"`
	RowsIn      int64      `json:"rowsIn"`
	RowsOut     int64      `json:"rowsOut"`
	Error       string     `json:"error,omitempty"`
}

func NewStageWatcher(log logger.Logger, runID string, stageName string) *StageWatcher {
	return &StageWatcher{log: log, runID: runID, stageName: stageName}
}

func (n *StageWatcher) StartWatching() {
	n.mu.Lock()
	n.startTime = time.Now()
	n.endTime = time.Time{}
	n.outcome = OutcomeRunning
	n.errorText = ""
	atomic.StoreInt64(&n.rowsIn, 0)
	atomic.StoreInt64(&n.rowsOut, 0)
	n.mu.Unlock()
	n.fields().Debug("Stage ", n.stageName, " started")
}

func (n *StageWatcher) AddRowsIn(rows int) {
	atomic.AddInt64(&n.rowsIn, int64(rows))
}

func (n *StageWatcher) AddRowsOut(rows int) {
	atomic.AddInt64(&n.rowsOut, int64(rows))
}

// StopWatching ends the stage, failed if err is not nil, and logs its telemetry.
func (n *StageWatcher) StopWatching(err error) {
	n.mu.Lock()
	n.endTime = time.Now()
	if err != nil {
		n.outcome = OutcomeFailed
		n.errorText = err.Error()
	} else {
		n.outcome = OutcomeSucceeded
	}
	n.mu.Unlock()
	if err != nil {
		n.fields().Error("Stage ", n.stageName, " failed: ", err)
	} else {
		n.fields().Info("Stage ", n.stageName, " complete")
	}
}

func (n *StageWatcher) fields() logger.Logger {
	s := n.RenderStats()
	return n.log.WithFields(map[string]interface{}{
		"run_id":     n.runID,
		"stage":      s.StageName,
		"start":      s.StartTime.UTC().Format(c.TimeFormatYearSecondsTZ),
		"elapsed_ms": s.ElapsedMs,
		"rows_in":    s.RowsIn,
		"rows_out":   s.RowsOut,
		"outcome":    s.StatusText,
	})
}

// RenderStats gets a struct filled with stats at the point of time it is called.
func (n *StageWatcher) RenderStats() Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	s := Stats{
		StageName:  n.stageName,
		StatusText: n.outcome,
		StartTime:  n.startTime,
		RowsIn:     atomic.LoadInt64(&n.rowsIn),
		RowsOut:    atomic.LoadInt64(&n.rowsOut),
		Error:      n.errorText,
	}
	switch n.outcome {
	case OutcomeRunning:
		s.StatusEmoji = "\U0000231B" // hour glass
		s.ElapsedMs = time.Since(n.startTime).Milliseconds()
	case OutcomeSucceeded:
		s.StatusEmoji = "\U00002705" // green tick
	case OutcomeFailed:
		s.StatusEmoji = c.EmojiBang
	}
	if !n.endTime.IsZero() {
		end := n.endTime
		s.EndTime = &end
		s.ElapsedMs = end.Sub(n.startTime).Milliseconds()
	}
	return s
}

// String will format the stats for general logging.
func (s Stats) String() string {
	return fmt.Sprintf(
		"Stats for %v %v %v "+
			"elapsedMs=%v "+
			"rowsIn=%v "+
			"rowsOut=%v",
		s.StageName, s.StatusText, s.StatusEmoji,
		s.ElapsedMs,
		s.RowsIn,
		s.RowsOut,
	)
}
