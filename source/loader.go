// Package source reads the raw CSV extracts, from local files or S3, into the raw layer.
package source

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	om "github.com/cevaris/ordered_map"
	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/aws/s3"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/file"
	"github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/stream"
)

var ErrSourceUnavailable = errors.New("source unavailable")

// Sources holds the location of each raw extract: a local path or s3://bucket/key.
type Sources struct {
	Customers    string `json:"customers" yaml:"customers" mapstructure:"customers" mandatory:"yes" errorTxt:"customers source"`
	Products     string `json:"products" yaml:"products" mapstructure:"products" mandatory:"yes" errorTxt:"products source"`
	Sales        string `json:"sales" yaml:"sales" mapstructure:"sales" mandatory:"yes" errorTxt:"sales source"`
	Demographics string `json:"demographics" yaml:"demographics" mapstructure:"demographics" mandatory:"yes" errorTxt:"demographics source"`
	Locations    string `json:"locations" yaml:"locations" mapstructure:"locations" mandatory:"yes" errorTxt:"locations source"`
	Categories   string `json:"categories" yaml:"categories" mapstructure:"categories" mandatory:"yes" errorTxt:"categories source"`
	Region       string `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
}

// Entities lists the raw entities in load order.
var Entities = []string{
	c.SourceEntityCustomers,
	c.SourceEntityProducts,
	c.SourceEntitySales,
	c.SourceEntityDemographics,
	c.SourceEntityLocations,
	c.SourceEntityCategories,
}

// Location returns a pointer to the location field of entity, or nil if the entity is unknown.
func (s *Sources) Location(entity string) *string {
	switch entity {
	case c.SourceEntityCustomers:
		return &s.Customers
	case c.SourceEntityProducts:
		return &s.Products
	case c.SourceEntitySales:
		return &s.Sales
	case c.SourceEntityDemographics:
		return &s.Demographics
	case c.SourceEntityLocations:
		return &s.Locations
	case c.SourceEntityCategories:
		return &s.Categories
	}
	return nil
}

// SetTokens overrides locations from a string of the form 'customers:/data/cust_info.csv,sales:s3://bucket/key'.
func (s *Sources) SetTokens(tokens string) error {
	m := helper.TokensToOrderedMap(tokens)
	iter := m.IterFunc()
	for kv, ok := iter(); ok; kv, ok = iter() {
		loc := s.Location(kv.Key.(string))
		if loc == nil {
			return fmt.Errorf("unknown source entity %q, use one of: %v", kv.Key, strings.Join(Entities, ", "))
		}
		*loc = kv.Value.(string)
	}
	return nil
}

// Tokens renders the locations that are set in load order, in the form accepted by SetTokens.
func (s Sources) Tokens() string {
	m := om.NewOrderedMap()
	for _, entity := range Entities {
		if loc := s.Location(entity); *loc != "" {
			m.Set(entity, *loc)
		}
	}
	tokens, _ := helper.OrderedMapToTokens(m)
	return tokens
}

type Loader struct {
	log     logger.Logger
	sources Sources
	// S3Getter returns the client used to fetch an S3 location.
	S3Getter func(loc s3.Location) s3.ListGetter
}

func NewLoader(log logger.Logger, sources Sources) *Loader {
	return &Loader{
		log:     log,
		sources: sources,
		S3Getter: func(loc s3.Location) s3.ListGetter {
			return s3.NewBasicClient(loc.Bucket, loc.Region, "")
		},
	}
}

// Load reads every raw entity.
// A location that cannot be opened or fetched gives ErrSourceUnavailable;
// a file without the expected header gives file.ErrMalformedCSV.
func (l *Loader) Load(ctx context.Context) (retval model.RawLayer, err error) {
	for _, entity := range Entities {
		if err = ctx.Err(); err != nil {
			return retval, err
		}
		switch entity {
		case c.SourceEntityCustomers:
			err = l.loadEntity(entity, model.RawCustomer{}, func(rec stream.Record) error {
				var r model.RawCustomer
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Customers = append(retval.Customers, r)
				return nil
			})
		case c.SourceEntityProducts:
			err = l.loadEntity(entity, model.RawProduct{}, func(rec stream.Record) error {
				var r model.RawProduct
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Products = append(retval.Products, r)
				return nil
			})
		case c.SourceEntitySales:
			err = l.loadEntity(entity, model.RawSalesLine{}, func(rec stream.Record) error {
				var r model.RawSalesLine
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Sales = append(retval.Sales, r)
				return nil
			})
		case c.SourceEntityDemographics:
			err = l.loadEntity(entity, model.RawDemographic{}, func(rec stream.Record) error {
				var r model.RawDemographic
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Demographics = append(retval.Demographics, r)
				return nil
			})
		case c.SourceEntityLocations:
			err = l.loadEntity(entity, model.RawLocation{}, func(rec stream.Record) error {
				var r model.RawLocation
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Locations = append(retval.Locations, r)
				return nil
			})
		case c.SourceEntityCategories:
			err = l.loadEntity(entity, model.RawCategory{}, func(rec stream.Record) error {
				var r model.RawCategory
				if err := rec.Decode(&r); err != nil {
					return err
				}
				r.Row = rec.Row()
				retval.Categories = append(retval.Categories, r)
				return nil
			})
		}
		if err != nil {
			return retval, err
		}
	}
	return retval, nil
}

// loadEntity opens the entity's source, checks the header holds every column of rowType and calls fn per record.
func (l *Loader) loadEntity(entity string, rowType interface{}, fn func(rec stream.Record) error) error {
	location := *l.sources.Location(entity)
	inputs, err := l.open(entity, location)
	defer func() {
		for _, in := range inputs {
			_ = in.Close()
		}
	}()
	if err != nil {
		return err
	}
	rows := 0
	for _, in := range inputs { // for each file or S3 object holding part of the extract...
		if err = in.RequireColumns(Columns(rowType)); err != nil {
			return err
		}
		records, err := in.ReadAll()
		if err != nil {
			return err
		}
		for _, rec := range records {
			rec = rec.Offset(rows) // keep row numbers unique across shards.
			if err = fn(rec); err != nil {
				l.log.Debug("Rejected ", entity, " row: ", rec.GetJson(l.log, rec.GetSortedDataMapKeys()))
				return errors.Wrapf(file.ErrMalformedCSV, "%v: %v", entity, err)
			}
		}
		rows += len(records)
	}
	l.log.Info("Loaded ", rows, " ", entity, " rows from ", location)
	return nil
}

// open returns one input per file making up the extract at location.
// An S3 location ending in "/" is a prefix whose objects are read in key order.
func (l *Loader) open(entity string, location string) ([]*file.CSVFileInput, error) {
	if strings.TrimSpace(location) == "" {
		return nil, errors.Wrapf(ErrSourceUnavailable, "%v: no location configured", entity)
	}
	if !s3.IsURL(location) {
		in, err := file.OpenCSVFile(l.log, location)
		if err != nil && !errors.Is(err, file.ErrMalformedCSV) {
			return nil, errors.Wrapf(ErrSourceUnavailable, "%v: %v", entity, err)
		}
		if err != nil {
			return nil, err
		}
		return []*file.CSVFileInput{in}, nil
	}
	loc, err := s3.ParseURL(location, l.sources.Region)
	if err != nil {
		return nil, errors.Wrapf(ErrSourceUnavailable, "%v: %v", entity, err)
	}
	client := l.S3Getter(loc)
	keys := []string{loc.Key}
	if loc.Key == "" || strings.HasSuffix(strings.TrimSpace(location), "/") { // if the location is a prefix...
		prefix := loc.Key
		if prefix != "" {
			prefix += "/"
		}
		if keys, err = client.List(prefix); err != nil {
			return nil, errors.Wrapf(ErrSourceUnavailable, "%v: %v: %v", entity, loc, err)
		}
		sort.Strings(keys)
		if len(keys) == 0 {
			return nil, errors.Wrapf(ErrSourceUnavailable, "%v: %v: no objects found", entity, loc)
		}
	}
	retval := make([]*file.CSVFileInput, 0, len(keys))
	for _, key := range keys {
		data, err := client.Get(key)
		if err != nil {
			return retval, errors.Wrapf(ErrSourceUnavailable, "%v: %v: %v", entity, loc, err)
		}
		obj := s3.Location{Bucket: loc.Bucket, Key: key, Region: loc.Region}
		in, err := file.NewCSVFileInput(l.log, obj.String(), bytes.NewReader(data))
		if err != nil {
			return retval, err
		}
		retval = append(retval, in)
	}
	return retval, nil
}

// Columns returns the mapstructure column names of a raw row struct.
func Columns(rowType interface{}) []string {
	t := reflect.TypeOf(rowType)
	retval := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		retval = append(retval, tag)
	}
	return retval
}
