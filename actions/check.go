package actions

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/config"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/transform"
)

var ErrChecksFailed = errors.New("quality checks failed")

type CheckConfig struct {
	Pipeline         *config.Pipeline
	Checks           []string // empty runs every check
	Output           string
	FailOnViolation  bool
	StackDumpOnPanic bool
	Log              logger.Logger
	Out              io.Writer
	OpenStore        StoreOpener
}

// RunChecks validates the layers held in the store and writes the results to cfg.Out.
// With cfg.FailOnViolation set, ErrChecksFailed is returned when any check reports violations.
func RunChecks(ctx context.Context, cfg *CheckConfig) error {
	if cfg == nil || cfg.Pipeline == nil {
		return errors.New("nil pointer for check config supplied")
	}
	p := cfg.Pipeline
	if err := p.ValidateStore(); err != nil {
		return err
	}
	log := getLogger(cfg.Log, p, cfg.StackDumpOnPanic)
	st, err := openStore(log, cfg.OpenStore, p.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("error closing store: ", err)
		}
	}()
	d, err := transform.NewDriver(log, st, nil, p.Options())
	if err != nil {
		return err
	}
	ds, err := transform.LoadDataset(ctx, st)
	if err != nil {
		return err
	}
	results, err := d.Registry().Run(ctx, ds, cfg.Checks...)
	if err != nil {
		return err
	}
	if err = writeOutput(getWriter(cfg.Out), cfg.Output, results, func(w io.Writer) error {
		return writeResultsText(w, results)
	}); err != nil {
		return err
	}
	if n := quality.Failed(results); cfg.FailOnViolation && n > 0 {
		return errors.Wrapf(ErrChecksFailed, "%v of %v", n, len(results))
	}
	return nil
}
