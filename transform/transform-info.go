package transform

import (
	"context"
	"sort"
	"sync"

	"github.com/relloyd/starpipe/stats"
)

// RunInfo is the bookkeeping kept for a launched run.
type RunInfo struct {
	Report RunReport
	Stats  stats.StatsFetcher
	Cancel context.CancelFunc
}

// SafeMapRunInfo wraps a map of run id to RunInfo with locking, via Load() and Store() methods.
type SafeMapRunInfo struct {
	sync.RWMutex
	Internal map[string]RunInfo
}

func NewSafeMapRunInfo() *SafeMapRunInfo {
	ri := SafeMapRunInfo{}
	ri.Internal = make(map[string]RunInfo)
	return &ri
}

func (t *SafeMapRunInfo) Load(key string) (ri RunInfo, ok bool) {
	t.RLock()
	ri, ok = t.Internal[key]
	t.RUnlock()
	return
}

func (t *SafeMapRunInfo) Store(key string, value RunInfo) {
	t.Lock()
	t.Internal[key] = value
	t.Unlock()
}

func (t *SafeMapRunInfo) Delete(key string) {
	t.Lock()
	delete(t.Internal, key)
	t.Unlock()
}

// Reports returns the report of every run ordered by start time.
func (t *SafeMapRunInfo) Reports() []RunReport {
	t.RLock()
	retval := make([]RunReport, 0, len(t.Internal))
	for _, ri := range t.Internal {
		retval = append(retval, ri.Report)
	}
	t.RUnlock()
	sort.Slice(retval, func(i, j int) bool {
		if retval[i].StartTime.Equal(retval[j].StartTime) {
			return retval[i].RunID < retval[j].RunID
		}
		return retval[i].StartTime.Before(retval[j].StartTime)
	})
	return retval
}

// Launch starts d.Run in a goroutine and records its progress under the returned run id.
// The run continues after the caller's request ends; Cancel stops it.
func (t *SafeMapRunInfo) Launch(d *Driver) string {
	runID := d.NewRunID()
	rs := d.NewRunStats(runID)
	ctx, cancel := context.WithCancel(context.Background())
	t.Store(runID, RunInfo{
		Report: RunReport{RunID: runID, Status: StatusStarting},
		Stats:  rs,
		Cancel: cancel,
	})
	go func() {
		defer cancel()
		ri, _ := t.Load(runID)
		ri.Report.Status = StatusRunning
		t.Store(runID, ri)
		report, _ := d.RunWithStats(ctx, runID, rs)
		ri, _ = t.Load(runID)
		ri.Report = *report
		t.Store(runID, ri)
	}()
	return runID
}
