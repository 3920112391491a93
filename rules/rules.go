// Package rules holds the immutable code to label lookup tables shared by all
// cleansers and by the quality checks that verify their output domains.
package rules

import (
	"sort"
	"strings"
)

// Canonical labels.
const (
	Unknown      = "Unknown"
	Female       = "Female"
	Male         = "Male"
	Single       = "Single"
	Married      = "Married"
	Mountain     = "Mountain"
	Road         = "Road"
	OtherSales   = "Other Sales"
	Touring      = "Touring"
	Germany      = "Germany"
	UnitedStates = "United States"
)

// Table maps source codes to canonical labels.
// Codes are matched after trimming and upper-casing; unmatched codes take the default,
// or the trimmed source value when the table passes unmatched values through.
type Table struct {
	name        string
	codes       map[string]string
	def         string
	passThrough bool
}

func newTable(name string, def string, passThrough bool, codes map[string]string) Table {
	// Copy so callers can never mutate a shared table.
	m := make(map[string]string, len(codes))
	for k, v := range codes {
		m[strings.ToUpper(k)] = v
	}
	return Table{name: name, codes: m, def: def, passThrough: passThrough}
}

var (
	MaritalStatus = newTable("marital_status", Unknown, false, map[string]string{
		"S": Single,
		"M": Married,
	})
	Gender = newTable("gender", Unknown, false, map[string]string{
		"F": Female,
		"M": Male,
	})
	DemographicGender = newTable("demographic_gender", Unknown, false, map[string]string{
		"F":      Female,
		"FEMALE": Female,
		"M":      Male,
		"MALE":   Male,
	})
	ProductLine = newTable("product_line", Unknown, false, map[string]string{
		"M": Mountain,
		"R": Road,
		"S": OtherSales,
		"T": Touring,
	})
	Country = newTable("country", Unknown, true, map[string]string{
		"DE":  Germany,
		"US":  UnitedStates,
		"USA": UnitedStates,
	})
)

// Name of the table.
func (t Table) Name() string {
	return t.name
}

// Lookup returns the canonical label for code.
// A blank code always yields the default.
func (t Table) Lookup(code string) string {
	c := strings.TrimSpace(code)
	if c == "" {
		return t.def
	}
	if v, ok := t.codes[strings.ToUpper(c)]; ok {
		return v
	}
	if t.passThrough {
		return c
	}
	return t.def
}

// Labels returns the closed set of canonical labels: every mapped label plus the default, sorted.
func (t Table) Labels() []string {
	seen := map[string]struct{}{t.def: {}}
	for _, v := range t.codes {
		seen[v] = struct{}{}
	}
	retval := make([]string, 0, len(seen))
	for k := range seen {
		retval = append(retval, k)
	}
	sort.Strings(retval)
	return retval
}

// IsCanonical reports whether v may appear in cleansed output produced by this table.
// For pass-through tables any trimmed, non-blank value is allowed unless it is itself a source code
// that should have been mapped.
func (t Table) IsCanonical(v string) bool {
	for _, l := range t.Labels() {
		if v == l {
			return true
		}
	}
	if !t.passThrough {
		return false
	}
	if v == "" || v != strings.TrimSpace(v) {
		return false
	}
	_, isCode := t.codes[strings.ToUpper(v)]
	return !isCode
}
