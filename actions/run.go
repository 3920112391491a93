package actions

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/config"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/store"
	"github.com/relloyd/starpipe/transform"
)

type RunConfig struct {
	Pipeline         *config.Pipeline
	Output           string
	StackDumpOnPanic bool
	Log              logger.Logger
	Out              io.Writer
	OpenStore        StoreOpener
}

// RunPipe executes one conformance run and writes its report to cfg.Out.
// The dimensional tables are exported afterwards when the pipeline names an export location.
func RunPipe(ctx context.Context, cfg *RunConfig) error {
	if cfg == nil || cfg.Pipeline == nil {
		return errors.New("nil pointer for run config supplied")
	}
	p := cfg.Pipeline
	if err := p.Validate(); err != nil {
		return err
	}
	log := getLogger(cfg.Log, p, cfg.StackDumpOnPanic)
	log.Info("Using store ", store.Redact(p.Store))
	log.Debug("Using sources ", p.Sources.Tokens())
	st, err := openStore(log, cfg.OpenStore, p.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("error closing store: ", err)
		}
	}()
	d, err := newDriver(log, st, p)
	if err != nil {
		return err
	}
	report, runErr := d.Run(ctx)
	if err = writeOutput(getWriter(cfg.Out), cfg.Output, report, func(w io.Writer) error {
		return writeReportText(w, report)
	}); err != nil {
		return err
	}
	if runErr != nil {
		return errors.Wrapf(runErr, "run %v failed with %v", report.RunID, report.ErrorID)
	}
	if p.ExportDir == "" && p.ExportS3 == "" {
		return nil
	}
	ds, err := transform.LoadDataset(ctx, st)
	if err != nil {
		return err
	}
	_, err = exportDimensional(ctx, log, &ds.Dimensional, &ExportConfig{
		Pipeline: p,
		Dir:      p.ExportDir,
		S3URL:    p.ExportS3,
		Out:      cfg.Out,
	})
	return err
}
