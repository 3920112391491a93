package quality

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/diegoholiveira/jsonlogic"
	"github.com/pkg/errors"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/model"
	"github.com/shopspring/decimal"
)

var ErrInvalidRule = errors.New("invalid JSON logic rule")
var ErrUnknownTable = errors.New("unknown table")

// CustomCheck is a user-defined check: Rule is JSON logic applied to each row of Table.
// A row for which the rule returns true is a violation.
type CustomCheck struct {
	Name  string `json:"name" yaml:"name" mapstructure:"name" mandatory:"yes" errorTxt:"custom check name"`
	Table string `json:"table" yaml:"table" mapstructure:"table" mandatory:"yes" errorTxt:"custom check table"`
	Rule  string `json:"rule" yaml:"rule" mapstructure:"rule" mandatory:"yes" errorTxt:"custom check rule"`
}

// tableRows returns the rows of the named table as a slice value.
func tableRows(ds *model.Dataset, table string) (reflect.Value, bool) {
	var rows interface{}
	switch table {
	case c.TableRawCustomers:
		rows = ds.Raw.Customers
	case c.TableRawProducts:
		rows = ds.Raw.Products
	case c.TableRawSales:
		rows = ds.Raw.Sales
	case c.TableRawDemographics:
		rows = ds.Raw.Demographics
	case c.TableRawLocations:
		rows = ds.Raw.Locations
	case c.TableRawCategories:
		rows = ds.Raw.Categories
	case c.TableCustomers:
		rows = ds.Cleansed.Customers
	case c.TableProducts:
		rows = ds.Cleansed.Products
	case c.TableSales:
		rows = ds.Cleansed.Sales
	case c.TableDemographics:
		rows = ds.Cleansed.Demographics
	case c.TableLocations:
		rows = ds.Cleansed.Locations
	case c.TableCategories:
		rows = ds.Cleansed.Categories
	case c.TableCustomerDimension:
		rows = ds.Dimensional.Customers
	case c.TableProductDimension:
		rows = ds.Dimensional.Products
	case c.TableSalesFact:
		rows = ds.Dimensional.Sales
	default:
		return reflect.Value{}, false
	}
	return reflect.ValueOf(rows), true
}

// NewCustomCheck validates the rule and table and returns a Check that can be registered.
func NewCustomCheck(cc CustomCheck) (Check, error) {
	if !jsonlogic.IsValid(strings.NewReader(cc.Rule)) {
		return Check{}, errors.Wrapf(ErrInvalidRule, "check %q: %v", cc.Name, cc.Rule)
	}
	if _, ok := tableRows(&model.Dataset{}, cc.Table); !ok {
		return Check{}, errors.Wrapf(ErrUnknownTable, "check %q: %v", cc.Name, cc.Table)
	}
	return Check{
		Name:        cc.Name,
		Description: fmt.Sprintf("custom rule on %v", cc.Table),
		Fn: func(ds *model.Dataset, _ time.Time) ([]Violation, error) {
			return applyRule(ds, cc)
		},
	}, nil
}

func applyRule(ds *model.Dataset, cc CustomCheck) ([]Violation, error) {
	rows, _ := tableRows(ds, cc.Table)
	retval := make([]Violation, 0)
	var result bytes.Buffer
	for idx := 0; idx < rows.Len(); idx++ {
		values := rowValues(rows.Index(idx))
		data, err := json.Marshal(values)
		if err != nil {
			return nil, errors.Wrap(err, "error marshalling row before applying JSON logic")
		}
		result.Reset()
		if err := jsonlogic.Apply(strings.NewReader(cc.Rule), bytes.NewReader(data), &result); err != nil {
			return nil, errors.Wrap(err, "error applying JSON logic")
		}
		if strings.TrimSpace(result.String()) == "true" {
			key := fmt.Sprintf("line=%v", idx+1)
			if r, ok := values["row"]; ok {
				key = fmt.Sprintf("row=%v", r)
			}
			retval = append(retval, Violation{Table: cc.Table, Key: key, Reason: fmt.Sprintf("matched rule %v", cc.Name)})
		}
	}
	return retval, nil
}

var (
	decimalType     = reflect.TypeOf(decimal.Decimal{})
	nullDecimalType = reflect.TypeOf(decimal.NullDecimal{})
	timeType        = reflect.TypeOf(time.Time{})
)

// rowValues flattens a row struct into JSON-tag keyed values that JSON logic can compare:
// decimals become numbers, dates become ISO text and nil pointers become null.
func rowValues(v reflect.Value) map[string]interface{} {
	t := v.Type()
	retval := make(map[string]interface{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" {
			name = f.Name
		} else if name == "-" { // e.g. the fact source row.
			name = strings.ToLower(f.Name)
		}
		retval[name] = plainValue(v.Field(i))
	}
	return retval
}

func plainValue(v reflect.Value) interface{} {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Type() {
	case decimalType:
		return v.Interface().(decimal.Decimal).InexactFloat64()
	case nullDecimalType:
		d := v.Interface().(decimal.NullDecimal)
		if !d.Valid {
			return nil
		}
		return d.Decimal.InexactFloat64()
	case timeType:
		return v.Interface().(time.Time).Format(c.TimeFormatDate)
	}
	return v.Interface()
}
