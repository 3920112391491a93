package rules

import (
	"reflect"
	"testing"
)

func TestTableLookup(t *testing.T) {
	cases := []struct {
		table    Table
		code     string
		expected string
	}{
		{MaritalStatus, "s", Single},
		{MaritalStatus, " M ", Married},
		{MaritalStatus, "x", Unknown},
		{MaritalStatus, "", Unknown},
		{Gender, "f", Female},
		{Gender, "M", Male},
		{Gender, "Female", Unknown}, // CRM codes are single letters only.
		{DemographicGender, "female", Female},
		{DemographicGender, " MALE", Male},
		{DemographicGender, "", Unknown},
		{ProductLine, "m", Mountain},
		{ProductLine, "R ", Road},
		{ProductLine, "s", OtherSales},
		{ProductLine, "T", Touring},
		{ProductLine, "Z", Unknown},
		{Country, "DE", Germany},
		{Country, "us", UnitedStates},
		{Country, "USA", UnitedStates},
		{Country, "  ", Unknown},
		{Country, " France ", "France"},
	}
	for idx, c := range cases {
		got := c.table.Lookup(c.code)
		if got != c.expected {
			t.Fatalf("case %v: %v.Lookup(%q) expected %q; got %q", idx, c.table.Name(), c.code, c.expected, got)
		}
	}
}

func TestTableLabels(t *testing.T) {
	got := ProductLine.Labels()
	expected := []string{Mountain, OtherSales, Road, Touring, Unknown}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("unexpected labels: expected %v; got %v", expected, got)
	}
}

func TestTableIsCanonical(t *testing.T) {
	if !Gender.IsCanonical(Female) {
		t.Fatal("expected Female to be canonical")
	}
	if Gender.IsCanonical("F") {
		t.Fatal("expected raw code F to be rejected")
	}
	if !Country.IsCanonical("France") {
		t.Fatal("expected pass-through country to be canonical")
	}
	if Country.IsCanonical("DE") {
		t.Fatal("expected unmapped source code DE to be rejected")
	}
	if Country.IsCanonical(" France") {
		t.Fatal("expected untrimmed country to be rejected")
	}
	if Country.IsCanonical("") {
		t.Fatal("expected blank country to be rejected")
	}
}
