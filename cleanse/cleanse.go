// Package cleanse turns raw rows into typed, standardized rows.
// Each cleanser reads one raw table and produces one cleansed table.
package cleanse

import (
	"sort"
	"strings"
	"time"

	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/rules"
	"github.com/shopspring/decimal"
)

// Cleanser holds the run-wide settings shared by all cleansers.
type Cleanser struct {
	Log logger.Logger
	// Now is the run time; birthdates after it are dropped.
	Now func() time.Time
	// DemographicIDPrefix is stripped from demographic customer ids.
	DemographicIDPrefix string
}

func NewCleanser(log logger.Logger) *Cleanser {
	return &Cleanser{
		Log:                 log,
		Now:                 time.Now,
		DemographicIDPrefix: c.DemographicIDPrefix,
	}
}

// Customers keeps one row per customer id: the latest create date wins, rows without a date lose to
// rows with one, and ties keep the earliest input row. Rows without an id are discarded.
// Output is ordered by id.
func (cl *Cleanser) Customers(raw []model.RawCustomer) ([]model.Customer, error) {
	type candidate struct {
		raw     model.RawCustomer
		created *time.Time
	}
	best := make(map[int64]candidate)
	dropped := 0
	for _, r := range raw {
		id, ok, err := parseID(r.ID)
		if err != nil {
			return nil, malformed(c.TableRawCustomers, r.Row, "cst_id", r.ID, err)
		}
		if !ok {
			dropped++
			continue
		}
		created, err := parseTimestamp(r.CreateDate)
		if err != nil {
			return nil, malformed(c.TableRawCustomers, r.Row, "cst_create_date", r.CreateDate, err)
		}
		cur, seen := best[id]
		if !seen || isLater(created, cur.created) {
			best[id] = candidate{raw: r, created: created}
		}
	}
	ids := make([]int64, 0, len(best))
	for id := range best {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	retval := make([]model.Customer, 0, len(ids))
	for _, id := range ids {
		b := best[id]
		retval = append(retval, model.Customer{
			Row:           b.raw.Row,
			ID:            id,
			Key:           strings.TrimSpace(b.raw.Key),
			FirstName:     strings.TrimSpace(b.raw.FirstName),
			LastName:      strings.TrimSpace(b.raw.LastName),
			MaritalStatus: rules.MaritalStatus.Lookup(b.raw.MaritalStatus),
			Gender:        rules.Gender.Lookup(b.raw.Gender),
			CreateDate:    b.created,
		})
	}
	cl.Log.Debug("Customers cleansed: rows in = ", len(raw), "; rows out = ", len(retval), "; dropped without id = ", dropped)
	return retval, nil
}

// isLater reports whether a sorts before b in latest-first order with absent dates last.
func isLater(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	return b == nil || a.After(*b)
}

// Products splits the composite key, repairs cost and line, and derives validity ranges.
// Within a product key rows are ordered by (start date, product id); each end date is the day before the
// next row's start and the last row stays open. Equal start dates therefore give the lower id an end date
// before its start. Output is ordered by product id.
func (cl *Cleanser) Products(raw []model.RawProduct) ([]model.Product, error) {
	retval := make([]model.Product, 0, len(raw))
	for _, r := range raw {
		id, ok, err := parseID(r.ID)
		if err != nil || !ok {
			return nil, malformed(c.TableRawProducts, r.Row, "prd_id", r.ID, err)
		}
		cost, err := parseDecimal(r.Cost)
		if err != nil {
			return nil, malformed(c.TableRawProducts, r.Row, "prd_cost", r.Cost, err)
		}
		start, err := parseDate(r.StartDate)
		if err != nil || start == nil {
			return nil, malformed(c.TableRawProducts, r.Row, "prd_start_dt", r.StartDate, err)
		}
		key := strings.TrimSpace(r.Key)
		retval = append(retval, model.Product{
			Row:        r.Row,
			ID:         id,
			CategoryID: strings.ReplaceAll(substr(key, 0, c.CategoryIDWidth), "-", "_"),
			Key:        substr(key, c.ProductKeyOffset, -1),
			Name:       r.Name,
			Cost:       costOrZero(cost),
			Line:       rules.ProductLine.Lookup(r.Line),
			StartDate:  *start,
		})
	}
	deriveValidityRanges(retval)
	sort.SliceStable(retval, func(i, j int) bool { return retval[i].ID < retval[j].ID })
	cl.Log.Debug("Products cleansed: rows in = ", len(raw), "; rows out = ", len(retval))
	return retval, nil
}

func costOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// deriveValidityRanges sets EndDate on every row that has a successor within its product key.
func deriveValidityRanges(products []model.Product) {
	groups := make(map[string][]int)
	for idx, p := range products {
		groups[p.Key] = append(groups[p.Key], idx)
	}
	for _, members := range groups {
		sort.SliceStable(members, func(i, j int) bool {
			a, b := products[members[i]], products[members[j]]
			if !a.StartDate.Equal(b.StartDate) {
				return a.StartDate.Before(b.StartDate)
			}
			return a.ID < b.ID
		})
		for pos := 0; pos < len(members)-1; pos++ {
			end := products[members[pos+1]].StartDate.AddDate(0, 0, -1)
			products[members[pos]].EndDate = &end
		}
		products[members[len(members)-1]].EndDate = nil
	}
}

// Categories is a pass-through copy.
func (cl *Cleanser) Categories(raw []model.RawCategory) ([]model.Category, error) {
	retval := make([]model.Category, len(raw))
	for idx, r := range raw {
		retval[idx] = model.Category{
			Row:         r.Row,
			ID:          r.ID,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			Maintenance: r.Maintenance,
		}
	}
	cl.Log.Debug("Categories cleansed: rows in = ", len(raw), "; rows out = ", len(retval))
	return retval, nil
}
