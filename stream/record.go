package stream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	h "github.com/relloyd/starpipe/helper"
	"github.com/relloyd/starpipe/logger"
)

// Record is one source row keyed by column name.
// Values are kept as extracted so blank cells stay blank; nothing is coerced until the cleansers run.
type Record struct {
	data map[string]interface{}
	row  int // 1-based position in the source, excluding the header.
}

// NewRecord creates a new Record and returns it by value.
func NewRecord(row int) Record {
	return Record{
		data: make(map[string]interface{}),
		row:  row,
	}
}

func NewNilRecord() Record {
	return Record{}
}

func (sr Record) Row() int {
	return sr.row
}

// Offset returns a copy of sr whose row is moved on by n. The data is shared.
func (sr Record) Offset(n int) Record {
	sr.row += n
	return sr
}

func (sr Record) SetData(name string, value interface{}) {
	sr.data[name] = value
}

// GetData returns the value for name. It panics if the field was never set.
func (sr Record) GetData(name string) interface{} {
	val, ok := sr.data[name]
	if !ok {
		panic(fmt.Sprintf("Invalid key name %q supplied while trying to fetch value from record: %v", name, sr.data))
	}
	return val
}

// GetDataAsString converts the named field to a string.
func (sr Record) GetDataAsString(log logger.Logger, name string) string {
	return h.GetStringFromInterface(log, sr.GetData(name), true)
}

// GetSortedDataMapKeys will return a slice of the keys found in map sr.data.
func (sr Record) GetSortedDataMapKeys() []string {
	retval := make([]string, 0, len(sr.data))
	for k := range sr.data {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

// GetJson returns the JSON representation of sr.data using the supplied keys to fetch the data.
func (sr Record) GetJson(log logger.Logger, keys []string) string {
	out := make([]string, len(keys))
	for idx, key := range keys {
		jsonValue, err := json.Marshal(sr.GetDataAsString(log, key))
		if err != nil {
			log.Panic("Error marshalling the value of key '", key, "' to JSON")
		}
		out[idx] = fmt.Sprintf("%q: %s", key, string(jsonValue))
	}
	return fmt.Sprintf("{%v}", strings.Join(out, ", "))
}

// Decode copies the record into the struct pointed to by out using its mapstructure tags.
// Columns that have no matching field are ignored.
func (sr Record) Decode(out interface{}) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err = d.Decode(sr.data); err != nil {
		return fmt.Errorf("row %v: %w", sr.row, err)
	}
	return nil
}
