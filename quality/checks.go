package quality

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/relloyd/starpipe/cleanse"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/rules"
	"github.com/shopspring/decimal"
)

var maintenanceFlags = []string{"No", "Yes"}

func builtinChecks() []Check {
	return []Check{
		{Name: "customer_key_unique", Description: "customer surrogate keys are unique", Fn: customerKeyUnique},
		{Name: "product_key_unique", Description: "product surrogate keys are unique", Fn: productKeyUnique},
		{Name: "customer_key_contiguous", Description: "customer surrogate keys run 1..n", Fn: customerKeyContiguous},
		{Name: "product_key_contiguous", Description: "product surrogate keys run 1..n", Fn: productKeyContiguous},
		{Name: "fact_referential_integrity", Description: "every fact resolves to both dimensions", Fn: factReferentialIntegrity},
		{Name: "customer_id_unique", Description: "cleansed customer ids are unique", Fn: customerIDUnique},
		{Name: "product_id_unique", Description: "cleansed product ids are unique", Fn: productIDUnique},
		{Name: "customer_key_whitespace", Description: "customer keys are trimmed", Fn: customerKeyWhitespace},
		{Name: "customer_name_whitespace", Description: "customer names are trimmed", Fn: customerNameWhitespace},
		{Name: "product_name_whitespace", Description: "product names are trimmed", Fn: productNameWhitespace},
		{Name: "category_whitespace", Description: "category attributes are trimmed", Fn: categoryWhitespace},
		{Name: "customer_domains", Description: "customer marital status and gender are canonical", Fn: customerDomains},
		{Name: "product_line_domain", Description: "product lines are canonical", Fn: productLineDomain},
		{Name: "demographic_gender_domain", Description: "demographic genders are canonical", Fn: demographicGenderDomain},
		{Name: "country_domain", Description: "countries are standardized", Fn: countryDomain},
		{Name: "dimension_domains", Description: "dimension enumerations are canonical", Fn: dimensionDomains},
		{Name: "category_maintenance_domain", Description: "maintenance flags are Yes or No", Fn: categoryMaintenanceDomain},
		{Name: "product_cost_valid", Description: "product costs are not negative", Fn: productCostValid},
		{Name: "product_validity_ranges", Description: "product versions do not overlap and one is open", Fn: productValidityRanges},
		{Name: "sales_amount_consistent", Description: "sales = quantity * price and all are positive", Fn: salesAmountConsistent},
		{Name: "sales_date_order", Description: "orders precede shipping and due dates", Fn: salesDateOrder},
		{Name: "raw_sales_date_range", Description: "raw integer dates are plausible calendar dates", Fn: rawSalesDateRange},
		{Name: "birthdate_range", Description: "birthdates fall between the floor and the run time", Fn: birthdateRange},
	}
}

func duplicateKeys(table string, column string, keys []int64) []Violation {
	counts := make(map[int64]int, len(keys))
	for _, k := range keys {
		counts[k]++
	}
	dups := make([]int64, 0)
	for k, n := range counts {
		if n > 1 {
			dups = append(dups, k)
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i] < dups[j] })
	retval := make([]Violation, 0, len(dups))
	for _, k := range dups {
		retval = append(retval, Violation{
			Table:  table,
			Key:    fmt.Sprintf("%v=%v", column, k),
			Column: column,
			Value:  fmt.Sprint(counts[k]),
			Reason: "duplicate key",
		})
	}
	return retval
}

// gapsInKeys reports keys missing from 1..n and keys outside that range.
func gapsInKeys(table string, column string, keys []int64) []Violation {
	n := int64(len(keys))
	present := make(map[int64]bool, len(keys))
	retval := make([]Violation, 0)
	for _, k := range keys {
		if k < 1 || k > n {
			retval = append(retval, Violation{Table: table, Key: fmt.Sprintf("%v=%v", column, k), Column: column, Value: fmt.Sprint(k), Reason: "key out of range"})
		}
		present[k] = true
	}
	for k := int64(1); k <= n; k++ {
		if !present[k] {
			retval = append(retval, Violation{Table: table, Key: fmt.Sprintf("%v=%v", column, k), Column: column, Reason: "missing key"})
		}
	}
	return retval
}

func customerKeys(ds *model.Dataset) []int64 {
	keys := make([]int64, len(ds.Dimensional.Customers))
	for idx, d := range ds.Dimensional.Customers {
		keys[idx] = d.CustomerKey
	}
	return keys
}

func productKeys(ds *model.Dataset) []int64 {
	keys := make([]int64, len(ds.Dimensional.Products))
	for idx, d := range ds.Dimensional.Products {
		keys[idx] = d.ProductKey
	}
	return keys
}

func customerKeyUnique(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	return duplicateKeys(c.TableCustomerDimension, "customer_key", customerKeys(ds)), nil
}

func productKeyUnique(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	return duplicateKeys(c.TableProductDimension, "product_key", productKeys(ds)), nil
}

func customerKeyContiguous(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	return gapsInKeys(c.TableCustomerDimension, "customer_key", customerKeys(ds)), nil
}

func productKeyContiguous(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	return gapsInKeys(c.TableProductDimension, "product_key", productKeys(ds)), nil
}

func factReferentialIntegrity(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	customers := make(map[int64]bool, len(ds.Dimensional.Customers))
	for _, d := range ds.Dimensional.Customers {
		customers[d.CustomerKey] = true
	}
	products := make(map[int64]bool, len(ds.Dimensional.Products))
	for _, d := range ds.Dimensional.Products {
		products[d.ProductKey] = true
	}
	retval := make([]Violation, 0)
	for _, f := range ds.Dimensional.Sales {
		key := fmt.Sprintf("order_number=%v %v", f.OrderNumber, rowKey(f.Row))
		if f.ProductKey == nil {
			retval = append(retval, Violation{Table: c.TableSalesFact, Key: key, Column: "product_key", Reason: "product not resolved"})
		} else if !products[*f.ProductKey] {
			retval = append(retval, Violation{Table: c.TableSalesFact, Key: key, Column: "product_key", Value: fmt.Sprint(*f.ProductKey), Reason: "product key not in dimension"})
		}
		if f.CustomerKey == nil {
			retval = append(retval, Violation{Table: c.TableSalesFact, Key: key, Column: "customer_key", Reason: "customer not resolved"})
		} else if !customers[*f.CustomerKey] {
			retval = append(retval, Violation{Table: c.TableSalesFact, Key: key, Column: "customer_key", Value: fmt.Sprint(*f.CustomerKey), Reason: "customer key not in dimension"})
		}
	}
	return retval, nil
}

func customerIDUnique(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	ids := make([]int64, len(ds.Cleansed.Customers))
	for idx, r := range ds.Cleansed.Customers {
		ids[idx] = r.ID
	}
	return duplicateKeys(c.TableCustomers, "cst_id", ids), nil
}

func productIDUnique(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	ids := make([]int64, len(ds.Cleansed.Products))
	for idx, r := range ds.Cleansed.Products {
		ids[idx] = r.ID
	}
	return duplicateKeys(c.TableProducts, "prd_id", ids), nil
}

func untrimmed(table string, key string, column string, v string) []Violation {
	if v != strings.TrimSpace(v) {
		return []Violation{{Table: table, Key: key, Column: column, Value: v, Reason: "untrimmed whitespace"}}
	}
	return nil
}

func rowKey(row int) string {
	return fmt.Sprintf("row=%v", row)
}

func customerKeyWhitespace(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Customers {
		retval = append(retval, untrimmed(c.TableCustomers, rowKey(r.Row), "cst_key", r.Key)...)
	}
	return retval, nil
}

func customerNameWhitespace(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Customers {
		retval = append(retval, untrimmed(c.TableCustomers, rowKey(r.Row), "cst_firstname", r.FirstName)...)
		retval = append(retval, untrimmed(c.TableCustomers, rowKey(r.Row), "cst_lastname", r.LastName)...)
	}
	return retval, nil
}

func productNameWhitespace(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Products {
		retval = append(retval, untrimmed(c.TableProducts, rowKey(r.Row), "prd_nm", r.Name)...)
	}
	return retval, nil
}

func categoryWhitespace(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Categories {
		retval = append(retval, untrimmed(c.TableCategories, rowKey(r.Row), "cat", r.Category)...)
		retval = append(retval, untrimmed(c.TableCategories, rowKey(r.Row), "subcat", r.Subcategory)...)
		retval = append(retval, untrimmed(c.TableCategories, rowKey(r.Row), "maintenance", r.Maintenance)...)
	}
	return retval, nil
}

// outOfDomain reports the distinct non-canonical values of one column, each once, at its first row.
type outOfDomain struct {
	table  string
	column string
	seen   map[string]bool
	found  []Violation
}

func newOutOfDomain(table string, column string) *outOfDomain {
	return &outOfDomain{table: table, column: column, seen: make(map[string]bool), found: make([]Violation, 0)}
}

func (o *outOfDomain) add(key string, v string, canonical bool) {
	if canonical || o.seen[v] {
		return
	}
	o.seen[v] = true
	o.found = append(o.found, Violation{Table: o.table, Key: key, Column: o.column, Value: v, Reason: "value outside canonical set"})
}

func customerDomains(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	marital := newOutOfDomain(c.TableCustomers, "cst_marital_status")
	gender := newOutOfDomain(c.TableCustomers, "cst_gndr")
	for _, r := range ds.Cleansed.Customers {
		marital.add(rowKey(r.Row), r.MaritalStatus, rules.MaritalStatus.IsCanonical(r.MaritalStatus))
		gender.add(rowKey(r.Row), r.Gender, rules.Gender.IsCanonical(r.Gender))
	}
	return append(marital.found, gender.found...), nil
}

func productLineDomain(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	line := newOutOfDomain(c.TableProducts, "prd_line")
	for _, r := range ds.Cleansed.Products {
		line.add(rowKey(r.Row), r.Line, rules.ProductLine.IsCanonical(r.Line))
	}
	return line.found, nil
}

func demographicGenderDomain(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	gender := newOutOfDomain(c.TableDemographics, "gen")
	for _, r := range ds.Cleansed.Demographics {
		gender.add(rowKey(r.Row), r.Gender, rules.DemographicGender.IsCanonical(r.Gender))
	}
	return gender.found, nil
}

func countryDomain(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	country := newOutOfDomain(c.TableLocations, "cntry")
	for _, r := range ds.Cleansed.Locations {
		country.add(rowKey(r.Row), r.Country, rules.Country.IsCanonical(r.Country))
	}
	return country.found, nil
}

func dimensionDomains(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	marital := newOutOfDomain(c.TableCustomerDimension, "marital_status")
	gender := newOutOfDomain(c.TableCustomerDimension, "gender")
	country := newOutOfDomain(c.TableCustomerDimension, "country")
	line := newOutOfDomain(c.TableProductDimension, "product_line")
	for _, d := range ds.Dimensional.Customers {
		key := fmt.Sprintf("customer_key=%v", d.CustomerKey)
		marital.add(key, d.MaritalStatus, rules.MaritalStatus.IsCanonical(d.MaritalStatus))
		gender.add(key, d.Gender, rules.Gender.IsCanonical(d.Gender))
		country.add(key, d.Country, rules.Country.IsCanonical(d.Country))
	}
	for _, d := range ds.Dimensional.Products {
		line.add(fmt.Sprintf("product_key=%v", d.ProductKey), d.ProductLine, rules.ProductLine.IsCanonical(d.ProductLine))
	}
	retval := append(marital.found, gender.found...)
	retval = append(retval, country.found...)
	return append(retval, line.found...), nil
}

func categoryMaintenanceDomain(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	flag := newOutOfDomain(c.TableCategories, "maintenance")
	for _, r := range ds.Cleansed.Categories {
		ok := false
		for _, f := range maintenanceFlags {
			if r.Maintenance == f {
				ok = true
			}
		}
		flag.add(rowKey(r.Row), r.Maintenance, ok)
	}
	return flag.found, nil
}

func productCostValid(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Products {
		if r.Cost.IsNegative() {
			retval = append(retval, Violation{Table: c.TableProducts, Key: rowKey(r.Row), Column: "prd_cost", Value: r.Cost.String(), Reason: "negative cost"})
		}
	}
	return retval, nil
}

func productValidityRanges(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	groups := make(map[string][]model.Product)
	order := make([]string, 0)
	for _, p := range ds.Cleansed.Products {
		if _, ok := groups[p.Key]; !ok {
			order = append(order, p.Key)
		}
		groups[p.Key] = append(groups[p.Key], p)
	}
	retval := make([]Violation, 0)
	for _, key := range order {
		versions := groups[key]
		sort.SliceStable(versions, func(i, j int) bool { return versions[i].StartDate.Before(versions[j].StartDate) })
		open := 0
		for idx, p := range versions {
			if p.EndDate == nil {
				open++
			} else if p.EndDate.Before(p.StartDate) {
				retval = append(retval, Violation{Table: c.TableProducts, Key: rowKey(p.Row), Column: "prd_end_dt", Value: p.EndDate.Format(c.TimeFormatDate), Reason: "end before start"})
			}
			if idx+1 < len(versions) {
				next := versions[idx+1]
				if p.EndDate == nil || !p.EndDate.Before(next.StartDate) {
					retval = append(retval, Violation{Table: c.TableProducts, Key: rowKey(p.Row), Column: "prd_key", Value: key, Reason: fmt.Sprintf("overlaps version at row %v", next.Row)})
				}
			}
		}
		if open != 1 {
			retval = append(retval, Violation{Table: c.TableProducts, Key: fmt.Sprintf("prd_key=%v", key), Column: "prd_end_dt", Value: fmt.Sprint(open), Reason: "expected exactly one open version"})
		}
	}
	return retval, nil
}

func salesAmountConsistent(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Sales {
		key := rowKey(r.Row)
		bad := false
		for _, f := range []struct {
			column string
			value  decimal.NullDecimal
		}{{"sls_sales", r.Amount}, {"sls_quantity", r.Quantity}, {"sls_price", r.Price}} {
			if !f.value.Valid {
				retval = append(retval, Violation{Table: c.TableSales, Key: key, Column: f.column, Reason: "absent"})
				bad = true
			} else if !f.value.Decimal.IsPositive() {
				retval = append(retval, Violation{Table: c.TableSales, Key: key, Column: f.column, Value: f.value.Decimal.String(), Reason: "not positive"})
				bad = true
			}
		}
		if bad {
			continue
		}
		if expected := r.Quantity.Decimal.Mul(r.Price.Decimal); !r.Amount.Decimal.Equal(expected) {
			retval = append(retval, Violation{Table: c.TableSales, Key: key, Column: "sls_sales", Value: r.Amount.Decimal.String(), Reason: fmt.Sprintf("expected quantity * price = %v", expected.String())})
		}
	}
	return retval, nil
}

func salesDateOrder(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Sales {
		if r.OrderDate == nil {
			continue
		}
		if r.ShipDate != nil && r.OrderDate.After(*r.ShipDate) {
			retval = append(retval, Violation{Table: c.TableSales, Key: rowKey(r.Row), Column: "sls_order_dt", Value: r.OrderDate.Format(c.TimeFormatDate), Reason: "order after ship date"})
		}
		if r.DueDate != nil && r.OrderDate.After(*r.DueDate) {
			retval = append(retval, Violation{Table: c.TableSales, Key: rowKey(r.Row), Column: "sls_order_dt", Value: r.OrderDate.Format(c.TimeFormatDate), Reason: "order after due date"})
		}
	}
	return retval, nil
}

// integerDateDefect describes why a raw integer date is implausible, or returns "" for a plausible or blank value.
func integerDateDefect(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	n, ok := cleanse.IntegerDateDigits(s)
	switch {
	case !ok:
		return "not an integer"
	case n <= 0:
		return "not positive"
	case len(fmt.Sprint(n)) != c.IntegerDateLength:
		return "not 8 digits"
	case n < c.IntegerDateMin || n > c.IntegerDateMax:
		return "outside plausible range"
	}
	if _, err := time.Parse(c.TimeFormatIntegerDate, fmt.Sprint(n)); err != nil {
		return "not a calendar date"
	}
	return ""
}

func rawSalesDateRange(ds *model.Dataset, _ time.Time) ([]Violation, error) {
	retval := make([]Violation, 0)
	for _, r := range ds.Raw.Sales {
		for _, f := range []struct{ column, value string }{{"sls_order_dt", r.OrderDate}, {"sls_ship_dt", r.ShipDate}, {"sls_due_dt", r.DueDate}} {
			if reason := integerDateDefect(f.value); reason != "" {
				retval = append(retval, Violation{Table: c.TableRawSales, Key: rowKey(r.Row), Column: f.column, Value: f.value, Reason: reason})
			}
		}
	}
	return retval, nil
}

func birthdateRange(ds *model.Dataset, now time.Time) ([]Violation, error) {
	floor, err := time.Parse(c.TimeFormatDate, c.BirthdateFloor)
	if err != nil {
		return nil, err
	}
	retval := make([]Violation, 0)
	for _, r := range ds.Cleansed.Demographics {
		if r.BirthDate == nil {
			continue
		}
		if r.BirthDate.Before(floor) {
			retval = append(retval, Violation{Table: c.TableDemographics, Key: rowKey(r.Row), Column: "bdate", Value: r.BirthDate.Format(c.TimeFormatDate), Reason: "before " + c.BirthdateFloor})
		} else if r.BirthDate.After(now) {
			retval = append(retval, Violation{Table: c.TableDemographics, Key: rowKey(r.Row), Column: "bdate", Value: r.BirthDate.Format(c.TimeFormatDate), Reason: "in the future"})
		}
	}
	return retval, nil
}
