package helper

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	om "github.com/cevaris/ordered_map"
	"github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/shopspring/decimal"
)

// TokensToOrderedMap converts a string of the form 'k1:v1,k2:v2' into an ordered map and returns a pointer to it.
// Only the first colon in each pair separates the key so values may be URLs like s3://bucket/key.
func TokensToOrderedMap(s string) *om.OrderedMap {
	o := om.NewOrderedMap()
	for _, token := range strings.Split(s, ",") {
		k, v := Split(token, ":")
		k = strings.TrimSpace(k)
		if k == "" || v == "" { // if there is no key:value...
			continue
		}
		o.Set(k, strings.TrimSpace(v))
	}
	return o
}

// OrderedMapToTokens converts the supplied ordered map to a CSV of key:value,key:value,...
// All keys and values are expected to be of type string.
func OrderedMapToTokens(m *om.OrderedMap) (string, error) {
	b := strings.Builder{}
	iter := m.IterFunc()
	if iter == nil {
		return "", fmt.Errorf("failed to get iterFunc in OrderedMapToTokens()")
	}
	for kv, ok := iter(); ok; kv, ok = iter() {
		b.WriteString(fmt.Sprintf(",%v:%v", kv.Key, kv.Value))
	}
	return strings.TrimLeft(b.String(), ","), nil
}

// CsvToStringSliceTrimSpaces converts a string of the form, 'f1,f2,f3...' into a slice of string values.
// Blank entries are dropped.
func CsvToStringSliceTrimSpaces(s string) []string {
	retval := make([]string, 0)
	for _, v := range strings.Split(s, ",") {
		if t := strings.TrimSpace(v); t != "" {
			retval = append(retval, t)
		}
	}
	return retval
}

// StringSliceContains reports whether s holds v.
func StringSliceContains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

var reBOM = regexp.MustCompile("^\uFEFF")

// NormalizeHeader trims spaces and any byte order mark from a CSV column name and lower-cases it.
func NormalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(reBOM.ReplaceAllString(s, "")))
}

// GetStringFromInterface will convert interface{} value to a string.
// Nil pointers and invalid nullable values are returned as "". Optionally return Times in UTC.
func GetStringFromInterface(log logger.Logger, input interface{}, useUTC bool) (retval string) {
	switch v := input.(type) {
	case int, int16, int32, int64, int8, uint8:
		retval = fmt.Sprintf("%d", v)
	case *int64:
		if v != nil {
			retval = strconv.FormatInt(*v, 10)
		}
	case string:
		retval = v
	case float32:
		retval = strconv.FormatFloat(float64(v), 'f', -1, 32) // use 'f' to convert float to string without an exponent.
	case float64:
		retval = strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		retval = v.String()
	case decimal.NullDecimal:
		if v.Valid {
			retval = v.Decimal.String()
		}
	case time.Time:
		retval = formatTime(v, useUTC)
	case *time.Time:
		if v != nil {
			retval = formatTime(*v, useUTC)
		}
	case []uint8:
		retval = string(v)
	case bool:
		retval = strconv.FormatBool(v)
	case nil:
		retval = ""
	default:
		log.Panic("unhandled type while fetching string from interface: type = ", reflect.TypeOf(input), "; value = ", input)
	}
	return
}

// formatTime renders dates at midnight as plain dates and everything else as a full timestamp.
func formatTime(t time.Time, useUTC bool) string {
	if useUTC {
		t = t.UTC()
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(constants.TimeFormatDate)
	}
	return t.Format(constants.TimeFormatYearSecondsTZ)
}

// GetTrueFalseStringAsBool trims spaces from s and checks if it can regexp (case insensitive) match "true".
func GetTrueFalseStringAsBool(s string) bool {
	re := regexp.MustCompile("(?i)^(true|yes|1)$")
	return re.MatchString(strings.TrimSpace(s))
}

// Maybe s is of the form t c u.
// If so, return  t, u.
// If not, return s, "".
func Split(s string, c string) (string, string) {
	i := strings.Index(s, c)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+len(c):]
}
