// Package quality holds the registry of named data-quality checks that run against every layer of a dataset.
// A check never fails a run: it returns the offending rows and an empty result means the check passed.
package quality

import (
	"context"
	"fmt"
	"time"

	"github.com/cevaris/ordered_map"
	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"golang.org/x/sync/errgroup"
)

var ErrUnknownCheck = errors.New("unknown check")
var ErrDuplicateCheck = errors.New("duplicate check")

// Violation identifies one offending row or value.
type Violation struct {
	Table  string `json:"table"`
	Key    string `json:"key"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Result is the outcome of one check.
type Result struct {
	Check      string      `json:"check"`
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// CheckFunc inspects the dataset and returns the violations found.
// now is the run time used by checks that compare against the present.
type CheckFunc func(ds *model.Dataset, now time.Time) ([]Violation, error)

type Check struct {
	Name        string
	Description string
	Fn          CheckFunc
}

// Registry keeps checks in registration order.
type Registry struct {
	log    logger.Logger
	checks *ordered_map.OrderedMap // map of check name to Check.
	Now    func() time.Time
}

// NewRegistry returns a registry loaded with the built-in checks.
func NewRegistry(log logger.Logger) *Registry {
	r := &Registry{log: log, checks: ordered_map.NewOrderedMap(), Now: time.Now}
	for _, c := range builtinChecks() {
		if err := r.Register(c); err != nil {
			log.Panic(err)
		}
	}
	return r
}

// Register appends a check. Names must be unique.
func (r *Registry) Register(c Check) error {
	if c.Name == "" || c.Fn == nil {
		return fmt.Errorf("check requires a name and a function")
	}
	if _, ok := r.checks.Get(c.Name); ok {
		return errors.Wrapf(ErrDuplicateCheck, "check %q", c.Name)
	}
	r.checks.Set(c.Name, c)
	return nil
}

// Names lists the registered checks in order.
func (r *Registry) Names() []string {
	retval := make([]string, 0, r.checks.Len())
	iter := r.checks.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		retval = append(retval, kv.Key.(string))
	}
	return retval
}

// Get returns the named check.
func (r *Registry) Get(name string) (Check, bool) {
	v, ok := r.checks.Get(name)
	if !ok {
		return Check{}, false
	}
	return v.(Check), true
}

// Run executes the named checks concurrently, or every check when no names are given.
// Results come back in registry order regardless of the order of names.
func (r *Registry) Run(ctx context.Context, ds *model.Dataset, names ...string) ([]Result, error) {
	selected, err := r.selectChecks(names)
	if err != nil {
		return nil, err
	}
	now := r.Now().UTC()
	results := make([]Result, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	for idx := range selected {
		idx := idx
		check := selected[idx]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := check.Fn(ds, now)
			if err != nil {
				return errors.Wrapf(err, "check %v", check.Name)
			}
			if v == nil {
				v = []Violation{}
			}
			results[idx] = Result{Check: check.Name, Passed: len(v) == 0, Violations: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, res := range results {
		if !res.Passed {
			r.log.WithFields(map[string]interface{}{"check": res.Check, "violations": len(res.Violations)}).Warn("Quality check failed")
		}
	}
	r.log.Debug("Quality checks complete: run = ", len(results), "; failed = ", Failed(results))
	return results, nil
}

func (r *Registry) selectChecks(names []string) ([]Check, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.checks.Get(n); !ok {
			return nil, errors.Wrapf(ErrUnknownCheck, "%q", n)
		}
		wanted[n] = true
	}
	retval := make([]Check, 0, r.checks.Len())
	iter := r.checks.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		if len(wanted) == 0 || wanted[kv.Key.(string)] {
			retval = append(retval, kv.Value.(Check))
		}
	}
	return retval, nil
}

// Failed counts the results that did not pass.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if !r.Passed {
			n++
		}
	}
	return n
}
