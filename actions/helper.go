package actions

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/relloyd/starpipe/config"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/source"
	"github.com/relloyd/starpipe/store"
	"github.com/relloyd/starpipe/transform"
)

// StoreOpener opens the store named by dsn. store.Open is the default.
type StoreOpener func(log logger.Logger, dsn string) (store.Store, error)

// getLogger returns log or a new logger at the pipeline's level.
func getLogger(log logger.Logger, p *config.Pipeline, stackDumpOnPanic bool) logger.Logger {
	if log != nil {
		return log
	}
	level := c.DefaultLogLevel
	if p != nil && p.LogLevel != "" {
		level = p.LogLevel
	}
	return logger.NewLogger(c.ServiceName, level, stackDumpOnPanic)
}

func getWriter(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}

func openStore(log logger.Logger, fn StoreOpener, dsn string) (store.Store, error) {
	if fn == nil {
		fn = store.Open
	}
	return fn(log, dsn)
}

// newDriver builds a driver over st that loads the raw entities named by p.
func newDriver(log logger.Logger, st store.Store, p *config.Pipeline) (*transform.Driver, error) {
	return transform.NewDriver(log, st, source.NewLoader(log, p.Sources), p.Options())
}

// writeOutput renders v as JSON or YAML, or calls text for the plain text format.
func writeOutput(w io.Writer, format string, v interface{}, text func(w io.Writer) error) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", c.OutputFormatText:
		return text(w)
	case c.OutputFormatJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case c.OutputFormatYAML:
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(b))
		return err
	}
	return fmt.Errorf("unsupported output format %q", format)
}

// writeReportText prints one line per stage and check of report.
func writeReportText(w io.Writer, report *transform.RunReport) error {
	if _, err := fmt.Fprintf(w, "Run %v %v in %vms\n", report.RunID, report.Status, report.ElapsedMs); err != nil {
		return err
	}
	for _, s := range report.Stages {
		if _, err := fmt.Fprintln(w, s.String()); err != nil {
			return err
		}
	}
	for _, chk := range report.Checks {
		if _, err := fmt.Fprintln(w, checkLine(chk.Check, chk.Passed, chk.Violations)); err != nil {
			return err
		}
	}
	if report.Error != "" {
		if _, err := fmt.Fprintf(w, "Failed stage %v (%v): %v\n", report.FailedStage, report.ErrorID, report.Error); err != nil {
			return err
		}
	}
	return nil
}

// writeResultsText prints a line per check followed by its violations.
func writeResultsText(w io.Writer, results []quality.Result) error {
	for _, r := range results {
		if _, err := fmt.Fprintln(w, checkLine(r.Check, r.Passed, len(r.Violations))); err != nil {
			return err
		}
		for _, v := range r.Violations {
			if _, err := fmt.Fprintf(w, "  %v %v %v=%q: %v\n", v.Table, v.Key, v.Column, v.Value, v.Reason); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLine(name string, passed bool, violations int) string {
	if passed {
		return fmt.Sprintf("PASS %v", name)
	}
	return fmt.Sprintf("FAIL %v (%v violations) %v", name, violations, c.EmojiBang)
}
