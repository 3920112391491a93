package cleanse

import (
	"strconv"
	"strings"
	"time"

	c "github.com/relloyd/starpipe/constants"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// parseID reads a base 10 integer id. ok is false for a blank value.
func parseID(s string) (id int64, ok bool, err error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false, nil
	}
	id, err = strconv.ParseInt(t, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// parseTimestamp reads a date or timestamp in any common layout.
// Blank values and bare numbers are absent. Values without a zone are taken as UTC.
func parseTimestamp(s string) (*time.Time, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, nil
	}
	if _, err := strconv.ParseFloat(t, 64); err == nil { // cast would read bare numbers as epoch seconds.
		return nil, nil
	}
	ts, err := cast.ToTimeInDefaultLocationE(t, time.UTC)
	if err != nil {
		return nil, err
	}
	ts = ts.UTC()
	return &ts, nil
}

// parseDate reads a calendar date, dropping any time of day. A blank value is absent.
func parseDate(s string) (*time.Time, error) {
	ts, err := parseTimestamp(s)
	if err != nil || ts == nil {
		return nil, err
	}
	d := truncateToDate(*ts)
	return &d, nil
}

func truncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// parseIntegerDate reads a YYYYMMDD integer.
// Zero, negative, blank, not exactly 8 digits, or not a calendar date all give an absent date.
// Text that is not an integer at all is an error.
func parseIntegerDate(s string) (*time.Time, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(t, 10, 64)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	digits := strconv.FormatInt(n, 10)
	if len(digits) != c.IntegerDateLength {
		return nil, nil
	}
	d, err := time.ParseInLocation(c.TimeFormatIntegerDate, digits, time.UTC)
	if err != nil {
		return nil, nil
	}
	return &d, nil
}

// IntegerDateDigits returns the digits of a raw integer date and whether the text is an integer at all.
func IntegerDateDigits(s string) (n int64, ok bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n, err == nil
}

// parseDecimal reads an exact decimal. A blank value is absent.
func parseDecimal(s string) (decimal.NullDecimal, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(t)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// substr returns up to n runes of s starting at rune offset from; n < 0 means to the end.
func substr(s string, from int, n int) string {
	r := []rune(s)
	if from >= len(r) {
		return ""
	}
	r = r[from:]
	if n >= 0 && n < len(r) {
		r = r[:n]
	}
	return string(r)
}
