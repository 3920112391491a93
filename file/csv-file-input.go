package file

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/stream"
)

var ErrMalformedCSV = errors.New("malformed CSV")

var gzipMagic = []byte{0x1f, 0x8b}

// CSVFileInput reads a headed CSV into Records.
// Input compressed with gzip is detected from its leading bytes.
type CSVFileInput struct {
	log    logger.Logger
	name   string
	reader *csv.Reader
	closer io.Closer
	header []string
	row    int
}

// NewCSVFileInput wraps r, reads the header row and normalizes the column names.
func NewCSVFileInput(log logger.Logger, name string, r io.Reader) (*CSVFileInput, error) {
	f := &CSVFileInput{log: log, name: name}
	br := bufio.NewReader(r)
	magic, _ := br.Peek(len(gzipMagic))
	var src io.Reader = br
	if bytes.Equal(magic, gzipMagic) { // if the input is compressed...
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformedCSV, "%v: %v", name, err)
		}
		f.closer = gz
		src = gz
		log.Debug("CSVFileInput ", name, " is gzip compressed")
	}
	f.reader = csv.NewReader(src)
	f.reader.LazyQuotes = true
	f.reader.ReuseRecord = false
	hdr, err := f.reader.Read()
	if err == io.EOF {
		return nil, errors.Wrapf(ErrMalformedCSV, "%v: missing header row", name)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedCSV, "%v: %v", name, err)
	}
	f.header = make([]string, len(hdr))
	for idx, v := range hdr {
		f.header[idx] = helper.NormalizeHeader(v)
	}
	log.Debug("CSVFileInput ", name, " header: ", f.header)
	return f, nil
}

// OpenCSVFile opens a local CSV file.
// The caller must call Close.
func OpenCSVFile(log logger.Logger, path string) (*CSVFileInput, error) {
	osFile, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	f, err := NewCSVFileInput(log, path, osFile)
	if err != nil {
		_ = osFile.Close()
		return nil, err
	}
	f.closer = multiCloser{f.closer, osFile}
	return f, nil
}

func (f *CSVFileInput) Header() []string {
	return f.header
}

// Next returns the next Record or io.EOF when the input is exhausted.
func (f *CSVFileInput) Next() (stream.Record, error) {
	values, err := f.reader.Read()
	if err == io.EOF {
		return stream.NewNilRecord(), io.EOF
	}
	if err != nil {
		return stream.NewNilRecord(), errors.Wrapf(ErrMalformedCSV, "%v: %v", f.name, err)
	}
	f.row++
	rec := stream.NewRecord(f.row)
	for idx, col := range f.header {
		rec.SetData(col, values[idx])
	}
	return rec, nil
}

// ReadAll reads every remaining Record.
func (f *CSVFileInput) ReadAll() ([]stream.Record, error) {
	retval := make([]stream.Record, 0)
	for {
		rec, err := f.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		retval = append(retval, rec)
	}
	f.log.Debug("CSVFileInput ", f.name, " read ", len(retval), " rows")
	return retval, nil
}

// RequireColumns returns an error naming every column in cols that is missing from the header.
func (f *CSVFileInput) RequireColumns(cols []string) error {
	have := make(map[string]struct{}, len(f.header))
	for _, h := range f.header {
		have[h] = struct{}{}
	}
	missing := make([]string, 0)
	for _, c := range cols {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMalformedCSV, "%v: missing columns %v", f.name, missing)
	}
	return nil
}

func (f *CSVFileInput) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}

type multiCloser []io.Closer

func (m multiCloser) Close() (err error) {
	for _, c := range m {
		if c == nil {
			continue
		}
		if e := c.Close(); e != nil && err == nil {
			err = fmt.Errorf("close failed: %w", e)
		}
	}
	return
}
