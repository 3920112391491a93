// Package dimension assigns surrogate keys and conforms cleansed rows into the star schema.
package dimension

import (
	"sort"

	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/rules"
)

// Builder creates the dimensions and resolves facts against them.
type Builder struct {
	Log logger.Logger
}

func NewBuilder(log logger.Logger) *Builder {
	return &Builder{Log: log}
}

// Customers numbers customers 1..n in id order and left joins demographics and locations on the customer key.
// When a customer key matches several rows the first one in input order is used.
func (b *Builder) Customers(customers []model.Customer, demographics []model.Demographic, locations []model.Location) []model.CustomerDimension {
	demoByKey := make(map[string]model.Demographic, len(demographics))
	for _, d := range demographics {
		if _, ok := demoByKey[d.CustomerKey]; !ok {
			demoByKey[d.CustomerKey] = d
		}
	}
	locByKey := make(map[string]model.Location, len(locations))
	for _, l := range locations {
		if _, ok := locByKey[l.CustomerKey]; !ok {
			locByKey[l.CustomerKey] = l
		}
	}
	ordered := make([]model.Customer, len(customers))
	copy(ordered, customers)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	retval := make([]model.CustomerDimension, 0, len(ordered))
	unmatchedDemographics, unmatchedLocations := 0, 0
	for idx, c := range ordered {
		d := model.CustomerDimension{
			CustomerKey:    int64(idx + 1),
			CustomerID:     c.ID,
			CustomerNumber: c.Key,
			FirstName:      c.FirstName,
			LastName:       c.LastName,
			Country:        rules.Unknown,
			MaritalStatus:  c.MaritalStatus,
			Gender:         c.Gender,
			CreateDate:     c.CreateDate,
		}
		demo, hasDemo := demoByKey[c.Key]
		if hasDemo {
			d.BirthDate = demo.BirthDate
		} else {
			unmatchedDemographics++
		}
		d.Gender = resolveGender(c.Gender, demo.Gender, hasDemo)
		if loc, ok := locByKey[c.Key]; ok {
			d.Country = loc.Country
		} else {
			unmatchedLocations++
		}
		retval = append(retval, d)
	}
	b.Log.Debug("Customer dimension built: rows = ", len(retval), "; without demographics = ", unmatchedDemographics, "; without location = ", unmatchedLocations)
	return retval
}

// resolveGender prefers the CRM gender and falls back to the demographic gender.
func resolveGender(crm string, demographic string, hasDemographic bool) string {
	if crm != rules.Unknown && crm != "" {
		return crm
	}
	if hasDemographic && demographic != "" {
		return demographic
	}
	return rules.Unknown
}

// Products numbers the current product versions 1..n ordered by (start date, product key) and left joins
// categories on the category id.
func (b *Builder) Products(products []model.Product, categories []model.Category) []model.ProductDimension {
	catByID := make(map[string]model.Category, len(categories))
	for _, c := range categories {
		if _, ok := catByID[c.ID]; !ok {
			catByID[c.ID] = c
		}
	}
	current := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.IsCurrent() {
			current = append(current, p)
		}
	}
	sort.SliceStable(current, func(i, j int) bool {
		a, b := current[i], current[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		return a.ID < b.ID
	})
	retval := make([]model.ProductDimension, 0, len(current))
	for idx, p := range current {
		d := model.ProductDimension{
			ProductKey:    int64(idx + 1),
			ProductID:     p.ID,
			ProductNumber: p.Key,
			ProductName:   p.Name,
			CategoryID:    p.CategoryID,
			Cost:          p.Cost,
			ProductLine:   p.Line,
			StartDate:     p.StartDate,
		}
		if c, ok := catByID[p.CategoryID]; ok {
			d.Category = c.Category
			d.Subcategory = c.Subcategory
			d.Maintenance = c.Maintenance
		}
		retval = append(retval, d)
	}
	b.Log.Debug("Product dimension built: rows = ", len(retval), "; historical versions skipped = ", len(products)-len(current))
	return retval
}
