package helper

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidateStructIsPopulated will check if any mandatory fields in cfg are missing.
// It uses struct tags to determine which fields are mandatory and the error text to fetch.
// The error text returned is just a list of the struct tags with key "errorTxt".
func ValidateStructIsPopulated(cfg interface{}) (err error) {
	errs := make([]string, 0)
	if cfg != nil {
		collectUnset(reflect.ValueOf(cfg), &errs)
	}
	if len(errs) > 0 {
		err = fmt.Errorf("please supply values for %v", strings.Join(errs, ", "))
	}
	return
}

// collectUnset appends to errTags the errorTxt tag value of every exported field tagged mandatory:"yes"
// that holds its zero value.
// Nested structs, pointers to structs, and slices or maps of structs are descended into.
func collectUnset(val reflect.Value, errTags *[]string) {
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return
	}
	typ := val.Type()
	for idx := 0; idx < val.NumField(); idx++ { // for each field in the struct...
		sf := typ.Field(idx)
		if sf.PkgPath != "" { // if the field is unexported...
			continue
		}
		f := val.Field(idx)
		switch f.Kind() {
		case reflect.Struct, reflect.Ptr:
			if f.Kind() == reflect.Ptr && (f.IsNil() || f.Type().Elem().Kind() != reflect.Struct) {
				checkTag(sf, f, errTags)
				continue
			}
			collectUnset(f, errTags)
		case reflect.Slice:
			checkTag(sf, f, errTags)
			for j := 0; j < f.Len(); j++ {
				collectUnset(f.Index(j), errTags)
			}
		case reflect.Map:
			checkTag(sf, f, errTags)
			iter := f.MapRange()
			for iter.Next() {
				collectUnset(iter.Value(), errTags)
			}
		default:
			checkTag(sf, f, errTags)
		}
	}
}

func checkTag(sf reflect.StructField, f reflect.Value, errTags *[]string) {
	if sf.Tag.Get("mandatory") == "yes" && f.IsZero() {
		*errTags = append(*errTags, sf.Tag.Get("errorTxt"))
	}
}
