package dimension

import (
	"github.com/relloyd/starpipe/model"
)

// Facts resolves each sales line to surrogate keys: the product key through the product number and the customer
// key through the customer id. Unresolved keys are left nil and the line is kept. Input order is preserved.
func (b *Builder) Facts(sales []model.SalesLine, customers []model.CustomerDimension, products []model.ProductDimension) []model.SalesFact {
	productKeys := make(map[string]int64, len(products))
	for _, p := range products {
		if _, ok := productKeys[p.ProductNumber]; !ok {
			productKeys[p.ProductNumber] = p.ProductKey
		}
	}
	customerKeys := make(map[int64]int64, len(customers))
	for _, c := range customers {
		if _, ok := customerKeys[c.CustomerID]; !ok {
			customerKeys[c.CustomerID] = c.CustomerKey
		}
	}
	retval := make([]model.SalesFact, len(sales))
	unresolvedProducts, unresolvedCustomers := 0, 0
	for idx, s := range sales {
		f := model.SalesFact{
			Row:         s.Row,
			OrderNumber: s.OrderNumber,
			OrderDate:   s.OrderDate,
			ShipDate:    s.ShipDate,
			DueDate:     s.DueDate,
			SalesAmount: s.Amount,
			Quantity:    s.Quantity,
			Price:       s.Price,
		}
		if k, ok := productKeys[s.ProductKey]; ok {
			key := k
			f.ProductKey = &key
		} else {
			unresolvedProducts++
		}
		if s.CustomerID != nil {
			if k, ok := customerKeys[*s.CustomerID]; ok {
				key := k
				f.CustomerKey = &key
			}
		}
		if f.CustomerKey == nil {
			unresolvedCustomers++
		}
		retval[idx] = f
	}
	b.Log.Debug("Facts resolved: rows = ", len(retval), "; unresolved products = ", unresolvedProducts, "; unresolved customers = ", unresolvedCustomers)
	return retval
}
