package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/relloyd/starpipe/logger"
)

type StatsFetcher interface {
	GetStats() []Stats
}

var DefaultStatsDumpFrequencySeconds = 5 // default stats dump interval may be overridden by use of options in constructor below!

// RunStatsManager keeps the StageWatcher of every stage of one run, in stage order,
// and optionally logs the stats of running stages periodically.
type RunStatsManager struct {
	ticker              *time.Ticker
	tickerDone          chan struct{}
	tickerIsRunningFlag int32
	tickerFrequency     int
	mu                  sync.Mutex
	log                 logger.Logger
	runID               string
	mapStageStats       *ordered_map.OrderedMap // map of stage name to *StageWatcher.
}

// SetStatsDumpFrequency returns a function that can be supplied as an option to constructor NewRunStats().
// Zero disables periodic dumping.
func SetStatsDumpFrequency(seconds int) func(t *RunStatsManager) {
	return func(t *RunStatsManager) {
		t.tickerFrequency = seconds
	}
}

func NewRunStats(log logger.Logger, runID string, options ...func(t *RunStatsManager)) *RunStatsManager {
	t := &RunStatsManager{log: log, runID: runID, tickerFrequency: DefaultStatsDumpFrequencySeconds}
	for _, option := range options {
		option(t)
	}
	t.mapStageStats = ordered_map.NewOrderedMap()
	return t
}

// AddStageWatcher creates a StageWatcher and saves it under stageName.
func (t *RunStatsManager) AddStageWatcher(stageName string) *StageWatcher {
	t.mu.Lock()
	defer t.mu.Unlock()
	sw := NewStageWatcher(t.log, t.runID, stageName)
	t.mapStageStats.Set(stageName, sw)
	return sw
}

func (t *RunStatsManager) StartDumping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if atomic.LoadInt32(&t.tickerIsRunningFlag) == 0 { // if we're not already dumping stats...
		if t.tickerFrequency > 0 {
			t.ticker = time.NewTicker(time.Second * time.Duration(t.tickerFrequency))
			atomic.StoreInt32(&t.tickerIsRunningFlag, 1)
			done := make(chan struct{})
			t.tickerDone = done
			ticks := t.ticker.C
			go func() {
				t.log.Debug("stats dumper ticker started")
				for {
					select {
					case <-done:
						t.log.Debug("stats dumper ticker stopped")
						return
					case <-ticks:
						t.logStats()
					}
				}
			}()
		} else {
			t.log.Debug("stats dumper disabled")
		}
	} else {
		t.log.Debug("stats dumper ticker already running")
	}
}

// StopDumping will stop the ticker, only if it was started via a call to StartDumping().
func (t *RunStatsManager) StopDumping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if atomic.LoadInt32(&t.tickerIsRunningFlag) > 0 {
		atomic.StoreInt32(&t.tickerIsRunningFlag, 0)
		t.ticker.Stop()
		close(t.tickerDone) // cause the goroutine to exit (we can't close ticker.C)
	}
}

func (t *RunStatsManager) logStats() {
	for _, s := range t.GetStats() {
		if s.StatusText == OutcomeRunning {
			t.log.Info(s.String())
		}
	}
}

// GetStats implements interface StatsFetcher{}.
func (t *RunStatsManager) GetStats() []Stats {
	t.mu.Lock()
	watchers := make([]*StageWatcher, 0, t.mapStageStats.Len())
	iter := t.mapStageStats.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		watchers = append(watchers, kv.Value.(*StageWatcher))
	}
	t.mu.Unlock()
	statsList := make([]Stats, 0, len(watchers))
	for _, w := range watchers {
		statsList = append(statsList, w.RenderStats())
	}
	return statsList
}
