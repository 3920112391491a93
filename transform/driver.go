// Package transform drives a full rebuild: load raw sources, cleanse, build dimensions, resolve facts and
// validate, persisting each layer as it goes.
package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/cleanse"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/dimension"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/stats"
	"github.com/relloyd/starpipe/store"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

// RawLoader supplies the raw layer.
type RawLoader interface {
	Load(ctx context.Context) (model.RawLayer, error)
}

type Options struct {
	// Parallel runs the six cleansers concurrently.
	Parallel bool
	// DemographicIDPrefix overrides the prefix stripped from demographic customer ids.
	DemographicIDPrefix string
	// CustomChecks are registered after the built-in checks.
	CustomChecks []quality.CustomCheck
	// StatsDumpFrequencySeconds logs running stage stats periodically; zero disables it.
	StatsDumpFrequencySeconds int
}

// Driver runs the pipeline. It holds no state between runs.
type Driver struct {
	log      logger.Logger
	store    store.Store
	loader   RawLoader
	cleanser *cleanse.Cleanser
	builder  *dimension.Builder
	registry *quality.Registry
	parallel bool
	dumpFreq int
	Now      func() time.Time
	NewRunID func() string
}

func NewDriver(log logger.Logger, st store.Store, loader RawLoader, opts Options) (*Driver, error) {
	d := &Driver{
		log:      log,
		store:    st,
		loader:   loader,
		cleanser: cleanse.NewCleanser(log),
		builder:  dimension.NewBuilder(log),
		registry: quality.NewRegistry(log),
		parallel: opts.Parallel,
		dumpFreq: opts.StatsDumpFrequencySeconds,
		Now:      time.Now,
		NewRunID: func() string { return xid.New().String() },
	}
	if opts.DemographicIDPrefix != "" {
		d.cleanser.DemographicIDPrefix = opts.DemographicIDPrefix
	}
	d.cleanser.Now = func() time.Time { return d.Now() }
	d.registry.Now = func() time.Time { return d.Now() }
	for _, cc := range opts.CustomChecks {
		chk, err := quality.NewCustomCheck(cc)
		if err != nil {
			return nil, err
		}
		if err = d.registry.Register(chk); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Registry returns the quality checks used by the validate stage.
func (d *Driver) Registry() *quality.Registry {
	return d.registry
}

// NewRunStats creates the stats manager for one run.
func (d *Driver) NewRunStats(runID string) *stats.RunStatsManager {
	return stats.NewRunStats(d.log, runID, stats.SetStatsDumpFrequency(d.dumpFreq))
}

type stageFunc func(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, report *RunReport) error

// Run performs a full rebuild under a new run id.
// The report is always returned; the error is the cause of a failed run.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	runID := d.NewRunID()
	return d.RunWithStats(ctx, runID, d.NewRunStats(runID))
}

// RunWithStats performs a full rebuild recording stage telemetry in rs.
// Stages run in order and the first failure stops the run. Layers persisted by earlier stages are left in place.
func (d *Driver) RunWithStats(ctx context.Context, runID string, rs *stats.RunStatsManager) (*RunReport, error) {
	report := &RunReport{RunID: runID, StartTime: d.Now(), Status: StatusRunning}
	log := d.log.WithFields(map[string]interface{}{"run_id": runID})
	log.Info("Starting run ", runID)
	rs.StartDumping()
	stages := []struct {
		name string
		fn   stageFunc
	}{
		{c.StageLoad, d.loadStage},
		{c.StageCleanse, d.cleanseStage},
		{c.StageDimension, d.dimensionStage},
		{c.StageFact, d.factStage},
		{c.StageValidate, d.validateStage},
	}
	ds := &model.Dataset{}
	var runErr error
	for _, s := range stages {
		if runErr = ctx.Err(); runErr != nil {
			report.FailedStage = s.name
			break
		}
		sw := rs.AddStageWatcher(s.name)
		sw.StartWatching()
		runErr = d.runStage(ctx, s.fn, ds, sw, report)
		if runErr != nil {
			runErr = errors.Wrapf(runErr, "stage %v", s.name)
		}
		sw.StopWatching(runErr)
		if runErr != nil {
			report.FailedStage = s.name
			break
		}
	}
	rs.StopDumping()
	report.EndTime = d.Now()
	report.ElapsedMs = report.EndTime.Sub(report.StartTime).Milliseconds()
	report.Stages = rs.GetStats()
	switch {
	case runErr == nil:
		report.Status = StatusComplete
		log.Info("Run ", runID, " complete in ", report.ElapsedMs, "ms; failed checks = ", report.FailedChecks())
	default:
		report.ErrorID = ClassifyError(runErr)
		report.Error = runErr.Error()
		if report.ErrorID == ErrorIDCancelled {
			report.Status = StatusShutdown
		} else {
			report.Status = StatusCompleteWithError
		}
		log.WithFields(map[string]interface{}{"stage": report.FailedStage, "error_id": report.ErrorID}).Error("Run ", runID, " failed: ", runErr)
	}
	return report, runErr
}

// runStage converts a panic in a stage into an internal error so the run can still report.
func (d *Driver) runStage(ctx context.Context, fn stageFunc, ds *model.Dataset, sw *stats.StageWatcher, report *RunReport) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, ds, sw, report)
}

type tableRows struct {
	table string
	rows  interface{}
	count int
}

// persist replaces each table in turn.
func (d *Driver) persist(ctx context.Context, tables ...tableRows) error {
	for _, t := range tables {
		if err := d.store.Replace(ctx, t.table, t.rows); err != nil {
			return err
		}
		d.log.Debug("Persisted ", t.count, " rows to ", t.table)
	}
	return nil
}

func rawTables(r *model.RawLayer) []tableRows {
	return []tableRows{
		{c.TableRawCustomers, r.Customers, len(r.Customers)},
		{c.TableRawProducts, r.Products, len(r.Products)},
		{c.TableRawSales, r.Sales, len(r.Sales)},
		{c.TableRawDemographics, r.Demographics, len(r.Demographics)},
		{c.TableRawLocations, r.Locations, len(r.Locations)},
		{c.TableRawCategories, r.Categories, len(r.Categories)},
	}
}

func cleansedTables(l *model.CleansedLayer) []tableRows {
	return []tableRows{
		{c.TableCustomers, l.Customers, len(l.Customers)},
		{c.TableProducts, l.Products, len(l.Products)},
		{c.TableSales, l.Sales, len(l.Sales)},
		{c.TableDemographics, l.Demographics, len(l.Demographics)},
		{c.TableLocations, l.Locations, len(l.Locations)},
		{c.TableCategories, l.Categories, len(l.Categories)},
	}
}

func rowCount(tables []tableRows) int {
	n := 0
	for _, t := range tables {
		n += t.count
	}
	return n
}

func (d *Driver) loadStage(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, _ *RunReport) error {
	raw, err := d.loader.Load(ctx)
	if err != nil {
		return err
	}
	ds.Raw = raw
	tables := rawTables(&ds.Raw)
	sw.AddRowsOut(rowCount(tables))
	return d.persist(ctx, tables...)
}

func (d *Driver) cleanseStage(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, _ *RunReport) error {
	sw.AddRowsIn(rowCount(rawTables(&ds.Raw)))
	raw := &ds.Raw
	out := &ds.Cleansed
	cleansers := []func() error{
		func() (err error) { out.Customers, err = d.cleanser.Customers(raw.Customers); return },
		func() (err error) { out.Products, err = d.cleanser.Products(raw.Products); return },
		func() (err error) { out.Sales, err = d.cleanser.Sales(raw.Sales); return },
		func() (err error) { out.Demographics, err = d.cleanser.Demographics(raw.Demographics); return },
		func() (err error) { out.Locations, err = d.cleanser.Locations(raw.Locations); return },
		func() (err error) { out.Categories, err = d.cleanser.Categories(raw.Categories); return },
	}
	if d.parallel {
		g := new(errgroup.Group)
		for _, fn := range cleansers {
			g.Go(fn)
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, fn := range cleansers {
			if err := fn(); err != nil {
				return err
			}
		}
	}
	tables := cleansedTables(out)
	sw.AddRowsOut(rowCount(tables))
	return d.persist(ctx, tables...)
}

func (d *Driver) dimensionStage(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, _ *RunReport) error {
	in := &ds.Cleansed
	sw.AddRowsIn(len(in.Customers) + len(in.Demographics) + len(in.Locations) + len(in.Products) + len(in.Categories))
	ds.Dimensional.Customers = d.builder.Customers(in.Customers, in.Demographics, in.Locations)
	ds.Dimensional.Products = d.builder.Products(in.Products, in.Categories)
	sw.AddRowsOut(len(ds.Dimensional.Customers) + len(ds.Dimensional.Products))
	return d.persist(ctx,
		tableRows{c.TableCustomerDimension, ds.Dimensional.Customers, len(ds.Dimensional.Customers)},
		tableRows{c.TableProductDimension, ds.Dimensional.Products, len(ds.Dimensional.Products)},
	)
}

func (d *Driver) factStage(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, _ *RunReport) error {
	sw.AddRowsIn(len(ds.Cleansed.Sales))
	ds.Dimensional.Sales = d.builder.Facts(ds.Cleansed.Sales, ds.Dimensional.Customers, ds.Dimensional.Products)
	sw.AddRowsOut(len(ds.Dimensional.Sales))
	return d.persist(ctx, tableRows{c.TableSalesFact, ds.Dimensional.Sales, len(ds.Dimensional.Sales)})
}

// validateStage records check outcomes on the report. Violations never fail the run.
func (d *Driver) validateStage(ctx context.Context, ds *model.Dataset, sw *stats.StageWatcher, report *RunReport) error {
	sw.AddRowsIn(len(d.registry.Names()))
	results, err := d.registry.Run(ctx, ds)
	if err != nil {
		return err
	}
	report.Checks = Summarize(results)
	violations := 0
	for _, r := range results {
		violations += len(r.Violations)
	}
	sw.AddRowsOut(violations)
	return nil
}

// Summarize drops the violation rows from results.
func Summarize(results []quality.Result) []CheckSummary {
	retval := make([]CheckSummary, len(results))
	for idx, r := range results {
		retval[idx] = CheckSummary{Check: r.Check, Passed: r.Passed, Violations: len(r.Violations)}
	}
	return retval
}

// LoadDataset reads every persisted layer back from st.
func LoadDataset(ctx context.Context, st store.Store) (*model.Dataset, error) {
	ds := &model.Dataset{}
	loads := []struct {
		table string
		out   interface{}
	}{
		{c.TableRawCustomers, &ds.Raw.Customers},
		{c.TableRawProducts, &ds.Raw.Products},
		{c.TableRawSales, &ds.Raw.Sales},
		{c.TableRawDemographics, &ds.Raw.Demographics},
		{c.TableRawLocations, &ds.Raw.Locations},
		{c.TableRawCategories, &ds.Raw.Categories},
		{c.TableCustomers, &ds.Cleansed.Customers},
		{c.TableProducts, &ds.Cleansed.Products},
		{c.TableSales, &ds.Cleansed.Sales},
		{c.TableDemographics, &ds.Cleansed.Demographics},
		{c.TableLocations, &ds.Cleansed.Locations},
		{c.TableCategories, &ds.Cleansed.Categories},
		{c.TableCustomerDimension, &ds.Dimensional.Customers},
		{c.TableProductDimension, &ds.Dimensional.Products},
		{c.TableSalesFact, &ds.Dimensional.Sales},
	}
	for _, l := range loads {
		if err := st.Load(ctx, l.table, l.out); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
