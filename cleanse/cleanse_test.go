package cleanse

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/rules"
	"github.com/shopspring/decimal"
)

func newTestCleanser() *Cleanser {
	cl := NewCleanser(logger.NewLogger("starpipe", "info", true))
	cl.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return cl
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCustomers(t *testing.T) {
	cl := newTestCleanser()

	// Test 1
	cl.Log.Info("Test 1, the later record wins for a duplicated id")
	raw := []model.RawCustomer{
		{Row: 1, ID: "7", Key: "AW00000007", FirstName: " Jon", LastName: "Yang ", MaritalStatus: "s", Gender: "M", CreateDate: "2023-01-01"},
		{Row: 2, ID: "7", Key: "AW00000007", FirstName: "Jon", LastName: "Yang", MaritalStatus: "m", Gender: "f", CreateDate: "2023-06-01"},
	}
	got, err := cl.Customers(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Test 1, expected one customer; got %v", len(got))
	}
	if got[0].MaritalStatus != rules.Married || got[0].Gender != rules.Female || got[0].Row != 2 {
		t.Fatalf("Test 1, unexpected customer: %+v", got[0])
	}

	// Test 2
	cl.Log.Info("Test 2, absent dates sort last; ties keep the first row; blank ids are dropped; output by id")
	raw = []model.RawCustomer{
		{Row: 1, ID: "9", FirstName: "NoDate", CreateDate: ""},
		{Row: 2, ID: "9", FirstName: "Dated", CreateDate: "2020-01-01"},
		{Row: 3, ID: "3", FirstName: "First", CreateDate: "2021-02-02"},
		{Row: 4, ID: "3", FirstName: "Second", CreateDate: "2021-02-02"},
		{Row: 5, ID: " ", FirstName: "Nobody"},
		{Row: 6, ID: "5", FirstName: "  Ann  ", LastName: "  Lee", MaritalStatus: "x", Gender: ""},
	}
	got, err = cl.Customers(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("Test 2, expected 3 customers; got %v", got)
	}
	if got[0].ID != 3 || got[0].FirstName != "First" {
		t.Fatalf("Test 2, expected first of tied rows for id 3; got %+v", got[0])
	}
	if got[1].ID != 5 || got[1].FirstName != "Ann" || got[1].LastName != "Lee" || got[1].MaritalStatus != rules.Unknown || got[1].Gender != rules.Unknown {
		t.Fatalf("Test 2, unexpected trimming or defaults: %+v", got[1])
	}
	if got[2].ID != 9 || got[2].FirstName != "Dated" {
		t.Fatalf("Test 2, expected dated row to beat absent date; got %+v", got[2])
	}

	// Test 3
	cl.Log.Info("Test 3, a non-numeric id is malformed")
	_, err = cl.Customers([]model.RawCustomer{{Row: 4, ID: "abc"}})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Test 3, expected ErrMalformedInput; got %v", err)
	}
	var me *MalformedError
	if !errors.As(err, &me) || me.Row != 4 || me.Column != "cst_id" {
		t.Fatalf("Test 3, expected location of malformed value; got %+v", me)
	}

	// Test 4
	cl.Log.Info("Test 4, a numeric create date is absent and sorts after dated rows")
	got, err = cl.Customers([]model.RawCustomer{
		{Row: 1, ID: "7", FirstName: "Numeric", CreateDate: "20230101"},
		{Row: 2, ID: "7", FirstName: "Dated", CreateDate: "2020-01-01"},
	})
	if err != nil {
		t.Fatalf("Test 4, expected no error for a numeric create date; got %v", err)
	}
	if len(got) != 1 || got[0].FirstName != "Dated" || got[0].Row != 2 {
		t.Fatalf("Test 4, expected the dated row to win; got %+v", got)
	}
	got, err = cl.Customers([]model.RawCustomer{{Row: 1, ID: "8", CreateDate: "1672531200"}})
	if err != nil || len(got) != 1 || got[0].CreateDate != nil {
		t.Fatalf("Test 4, expected an absent create date; got %+v, %v", got, err)
	}
}

func TestProducts(t *testing.T) {
	cl := newTestCleanser()

	// Test 1
	cl.Log.Info("Test 1, validity ranges are gap-filled per product key")
	raw := []model.RawProduct{
		{Row: 1, ID: "2", Key: "CO-RF-P1", Name: "Frame", Cost: "", Line: "r ", StartDate: "2021-01-01"},
		{Row: 2, ID: "1", Key: "CO-RF-P1", Name: "Frame", Cost: "10", Line: "M", StartDate: "2020-01-01"},
		{Row: 3, ID: "3", Key: "AC-HE-HL-U509", Name: "Helmet", Cost: "12.50", Line: "Z", StartDate: "2011-07-01"},
	}
	got, err := cl.Products(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Fatalf("Test 1, expected output ordered by id; got %+v", got)
	}
	if got[0].EndDate == nil || !got[0].EndDate.Equal(date(2020, 12, 31)) {
		t.Fatalf("Test 1, expected end 2020-12-31; got %v", got[0].EndDate)
	}
	if got[1].EndDate != nil {
		t.Fatalf("Test 1, expected open end for the latest version; got %v", got[1].EndDate)
	}
	if got[0].CategoryID != "CO_RF" || got[0].Key != "P1" {
		t.Fatalf("Test 1, unexpected key split: %+v", got[0])
	}
	if got[2].CategoryID != "AC_HE" || got[2].Key != "HL-U509" {
		t.Fatalf("Test 1, unexpected key split: %+v", got[2])
	}
	if !got[1].Cost.IsZero() || got[1].Line != rules.Road {
		t.Fatalf("Test 1, expected zero cost and Road line; got %+v", got[1])
	}
	if got[2].Line != rules.Unknown || !got[2].Cost.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("Test 1, unexpected line or cost: %+v", got[2])
	}

	// Test 2
	cl.Log.Info("Test 2, equal start dates let the higher id stay current")
	raw = []model.RawProduct{
		{Row: 1, ID: "11", Key: "CO-RF-P2", StartDate: "2020-01-01"},
		{Row: 2, ID: "10", Key: "CO-RF-P2", StartDate: "2020-01-01"},
	}
	got, err = cl.Products(raw)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].ID != 10 || got[0].EndDate == nil || !got[0].EndDate.Equal(date(2019, 12, 31)) {
		t.Fatalf("Test 2, expected lower id to end the day before; got %+v", got[0])
	}
	if got[1].EndDate != nil {
		t.Fatalf("Test 2, expected higher id to be current; got %v", got[1].EndDate)
	}

	// Test 3
	cl.Log.Info("Test 3, short keys and a missing start date")
	got, err = cl.Products([]model.RawProduct{{Row: 1, ID: "1", Key: "AB", StartDate: "2020-01-01"}})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].CategoryID != "AB" || got[0].Key != "" {
		t.Fatalf("Test 3, unexpected split of a short key: %+v", got[0])
	}
	_, err = cl.Products([]model.RawProduct{{Row: 1, ID: "1", Key: "CO-RF-P1", StartDate: ""}})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Test 3, expected ErrMalformedInput; got %v", err)
	}
	_, err = cl.Products([]model.RawProduct{{Row: 1, ID: "1", Key: "CO-RF-P1", StartDate: "2020-01-01", Cost: "ten"}})
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("Test 3, expected ErrMalformedInput for cost; got %v", err)
	}
}

func TestSales(t *testing.T) {
	cl := newTestCleanser()
	d := func(s string) decimal.NullDecimal {
		if s == "" {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.RequireFromString(s))
	}

	// Test 1
	cl.Log.Info("Test 1, amount repair and integer date parsing")
	raw := []model.RawSalesLine{
		{Row: 1, OrderNumber: "SO1", ProductKey: "P1", CustomerID: "7", OrderDate: "20231231", ShipDate: "0", DueDate: "20231301", Amount: "0", Quantity: "5", Price: "20"},
	}
	got, err := cl.Sales(raw)
	if err != nil {
		t.Fatal(err)
	}
	s := got[0]
	if !s.Amount.Valid || !s.Amount.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("Test 1, expected amount 100; got %v", s.Amount)
	}
	if !s.Price.Decimal.Equal(decimal.NewFromInt(20)) || !s.Quantity.Decimal.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("Test 1, expected price 20 and quantity 5; got %v, %v", s.Price, s.Quantity)
	}
	if s.OrderDate == nil || !s.OrderDate.Equal(date(2023, 12, 31)) {
		t.Fatalf("Test 1, expected order date; got %v", s.OrderDate)
	}
	if s.ShipDate != nil || s.DueDate != nil {
		t.Fatalf("Test 1, expected absent ship and due dates; got %v, %v", s.ShipDate, s.DueDate)
	}
	if s.CustomerID == nil || *s.CustomerID != 7 {
		t.Fatalf("Test 1, expected customer id 7; got %v", s.CustomerID)
	}

	// Test 2
	cl.Log.Info("Test 2, reconciliation cases read the original values")
	cases := []struct {
		amount, quantity, price string
		expAmount, expPrice     string
	}{
		{"100", "5", "20", "100", "20"}, // consistent
		{"", "2", "-15", "30", ""},      // price repair sees the original absent amount
		{"50", "2", "", "50", "25"},     // price derived from amount
		{"50", "0", "", "50", ""},       // zero quantity
		{"40", "2", "-10", "20", "20"},  // amount disagrees with |price|
		{"-5", "1", "", "", "-5"},       // left for the consistency check to flag
		{"10", "3", "0", "0", "3.33"},   // rounded to cents
	}
	for idx, tc := range cases {
		a := ReconcileAmount(d(tc.amount), d(tc.quantity), d(tc.price))
		p := ReconcilePrice(d(tc.amount), d(tc.quantity), d(tc.price))
		if !nullDecimalEqual(a, d(tc.expAmount)) {
			t.Fatalf("Test 2 case %v: expected amount %q; got %v", idx, tc.expAmount, a)
		}
		if !nullDecimalEqual(p, d(tc.expPrice)) {
			t.Fatalf("Test 2 case %v: expected price %q; got %v", idx, tc.expPrice, p)
		}
	}

	// Test 3
	cl.Log.Info("Test 3, non-numeric dates and amounts are malformed")
	for _, r := range []model.RawSalesLine{
		{Row: 1, OrderDate: "2023-12-31"},
		{Row: 1, Amount: "lots"},
		{Row: 1, CustomerID: "x1"},
	} {
		if _, err = cl.Sales([]model.RawSalesLine{r}); !errors.Is(err, ErrMalformedInput) {
			t.Fatalf("Test 3, expected ErrMalformedInput for %+v; got %v", r, err)
		}
	}
}

func TestParseIntegerDate(t *testing.T) {
	cases := []struct {
		in       string
		expected *time.Time
	}{
		{"20110101", func() *time.Time { x := date(2011, 1, 1); return &x }()},
		{"0", nil},
		{"-20110101", nil},
		{"5489", nil},
		{"201101011", nil},
		{"20231301", nil},
		{"20230230", nil},
		{"", nil},
	}
	for idx, c := range cases {
		got, err := parseIntegerDate(c.in)
		if err != nil {
			t.Fatalf("case %v: unexpected error: %v", idx, err)
		}
		if (got == nil) != (c.expected == nil) || (got != nil && !got.Equal(*c.expected)) {
			t.Fatalf("case %v: parseIntegerDate(%q) expected %v; got %v", idx, c.in, c.expected, got)
		}
	}
}

func TestDemographicsAndLocations(t *testing.T) {
	cl := newTestCleanser()

	// Test 1
	cl.Log.Info("Test 1, demographic prefix, future birthdates and gender")
	got, err := cl.Demographics([]model.RawDemographic{
		{Row: 1, CustomerKey: "NASAW00011000", BirthDate: "1971-10-06", Gender: " female"},
		{Row: 2, CustomerKey: "AW00011001", BirthDate: "2030-01-01", Gender: "M"},
		{Row: 3, CustomerKey: "nasAW00011002", BirthDate: "", Gender: ""},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got[0].CustomerKey != "AW00011000" || got[0].Gender != rules.Female || got[0].BirthDate == nil {
		t.Fatalf("Test 1, unexpected row: %+v", got[0])
	}
	if got[1].CustomerKey != "AW00011001" || got[1].BirthDate != nil || got[1].Gender != rules.Male {
		t.Fatalf("Test 1, expected future birthdate to be absent: %+v", got[1])
	}
	if got[2].CustomerKey != "AW00011002" || got[2].Gender != rules.Unknown {
		t.Fatalf("Test 1, unexpected row: %+v", got[2])
	}
	got, err = cl.Demographics([]model.RawDemographic{{Row: 1, CustomerKey: "AW00011003", BirthDate: "19711006"}})
	if err != nil || got[0].BirthDate != nil {
		t.Fatalf("Test 1, expected a numeric birthdate to be absent; got %+v, %v", got, err)
	}

	// Test 2
	cl.Log.Info("Test 2, location ids and countries")
	locs, err := cl.Locations([]model.RawLocation{
		{Row: 1, CustomerKey: "AW-00011000", Country: "DE"},
		{Row: 2, CustomerKey: "AW-00011001", Country: "USA"},
		{Row: 3, CustomerKey: "AW-00011002", Country: " "},
		{Row: 4, CustomerKey: "AW-00011003", Country: " Australia "},
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{rules.Germany, rules.UnitedStates, rules.Unknown, "Australia"}
	for idx, l := range locs {
		if l.Country != expected[idx] {
			t.Fatalf("Test 2, row %v: expected %q; got %q", idx, expected[idx], l.Country)
		}
	}
	if locs[0].CustomerKey != "AW00011000" {
		t.Fatalf("Test 2, expected separators stripped; got %q", locs[0].CustomerKey)
	}

	// Test 3
	cl.Log.Info("Test 3, categories are copied untouched")
	cats, err := cl.Categories([]model.RawCategory{{Row: 1, ID: "AC_BR", Category: "Accessories ", Subcategory: "Bike Racks", Maintenance: "Yes"}})
	if err != nil {
		t.Fatal(err)
	}
	if cats[0].Category != "Accessories " || cats[0].ID != "AC_BR" {
		t.Fatalf("Test 3, unexpected category: %+v", cats[0])
	}
}
