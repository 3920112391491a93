package actions

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/aws/s3"
	"github.com/relloyd/starpipe/config"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/file"
	"github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/transform"
)

type ExportConfig struct {
	Pipeline         *config.Pipeline
	Dir              string // empty uses a temp directory
	S3URL            string // optional s3://bucket/prefix to upload the files to
	MaxFileRows      int
	UseGzip          bool
	StackDumpOnPanic bool
	Log              logger.Logger
	Out              io.Writer
	OpenStore        StoreOpener
	S3Putter         func(loc s3.Location) s3.BufferPutter
}

// exportTable is a dimensional table and its rows.
type exportTable struct {
	name string
	rows interface{}
}

// RunExport writes the dimensional tables held in the store to CSV files.
func RunExport(ctx context.Context, cfg *ExportConfig) error {
	if cfg == nil || cfg.Pipeline == nil {
		return errors.New("nil pointer for export config supplied")
	}
	if err := cfg.Pipeline.ValidateStore(); err != nil {
		return err
	}
	log := getLogger(cfg.Log, cfg.Pipeline, cfg.StackDumpOnPanic)
	st, err := openStore(log, cfg.OpenStore, cfg.Pipeline.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn("error closing store: ", err)
		}
	}()
	ds, err := transform.LoadDataset(ctx, st)
	if err != nil {
		return err
	}
	_, err = exportDimensional(ctx, log, &ds.Dimensional, cfg)
	return err
}

// exportDimensional writes one CSV per dimensional table and optionally uploads them to S3.
// It returns the names of the files written.
func exportDimensional(ctx context.Context, log logger.Logger, dl *model.DimensionalLayer, cfg *ExportConfig) ([]string, error) {
	tables := []exportTable{
		{c.TableCustomerDimension, dl.Customers},
		{c.TableProductDimension, dl.Products},
		{c.TableSalesFact, dl.Sales},
	}
	var putter s3.BufferPutter
	if cfg.S3URL != "" {
		loc, err := s3.ParseURL(cfg.S3URL, cfg.Pipeline.Sources.Region)
		if err != nil {
			return nil, err
		}
		if cfg.S3Putter != nil {
			putter = cfg.S3Putter(loc)
		} else {
			putter = s3.NewBasicClient(loc.Bucket, loc.Region, loc.Key)
		}
	}
	w := getWriter(cfg.Out)
	retval := make([]string, 0, len(tables))
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return retval, err
		}
		files, n, err := writeTableCSV(log, cfg.Dir, t.name, t.rows, cfg.MaxFileRows, cfg.UseGzip)
		if err != nil {
			return retval, err
		}
		for _, f := range files {
			if putter == nil {
				continue
			}
			if err = putFile(putter, f); err != nil {
				return retval, err
			}
		}
		if _, err = fmt.Fprintf(w, "Exported %v rows of %v to %v\n", n, t.name, strings.Join(files, ", ")); err != nil {
			return retval, err
		}
		retval = append(retval, files...)
	}
	return retval, nil
}

// writeTableCSV writes rows, a slice of model structs, with a header taken from their json tags.
func writeTableCSV(log logger.Logger, dir string, table string, rows interface{}, maxFileRows int, useGzip bool) ([]string, int, error) {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return nil, 0, fmt.Errorf("expected a slice of rows for table %v", table)
	}
	header, fields := columnNames(v.Type().Elem())
	out, err := file.NewCSVFileOutput(log, dir, table, "csv", maxFileRows, useGzip)
	if err != nil {
		return nil, 0, err
	}
	out.SetHeader(header)
	for i := 0; i < v.Len(); i++ {
		row := v.Index(i)
		rec := make([]string, len(header))
		for j := range rec {
			rec[j] = helper.GetStringFromInterface(log, row.Field(fields[j]).Interface(), true)
		}
		if _, err = out.WriteToCSV(rec); err != nil {
			_ = out.Close()
			return nil, 0, err
		}
	}
	if err = out.Close(); err != nil {
		return nil, 0, err
	}
	return out.ListOfOutputFiles, out.TotalRowCount(), nil
}

// columnNames returns the json tag name and index of each exported field of t.
// Fields tagged json:"-" are skipped.
func columnNames(t reflect.Type) (names []string, fields []int) {
	for i := 0; i < t.NumField(); i++ {
		name := strings.Split(t.Field(i).Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = strings.ToLower(t.Field(i).Name)
		}
		names = append(names, name)
		fields = append(fields, i)
	}
	return names, fields
}

func putFile(putter s3.BufferPutter, fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()
	return errors.Wrapf(putter.BufferPut(path.Base(fileName), f), "error uploading %v", fileName)
}
