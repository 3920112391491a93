package cleanse

import (
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/model"
	"github.com/shopspring/decimal"
)

// Sales parses integer dates and reconciles amount, quantity and price.
// Both repairs read the original values so a repaired amount never feeds the price repair.
// Input order is preserved.
func (cl *Cleanser) Sales(raw []model.RawSalesLine) ([]model.SalesLine, error) {
	retval := make([]model.SalesLine, 0, len(raw))
	repairedAmounts, repairedPrices := 0, 0
	for _, r := range raw {
		s := model.SalesLine{
			Row:         r.Row,
			OrderNumber: r.OrderNumber,
			ProductKey:  r.ProductKey,
		}
		custID, ok, err := parseID(r.CustomerID)
		if err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_cust_id", r.CustomerID, err)
		}
		if ok {
			s.CustomerID = &custID
		}
		if s.OrderDate, err = parseIntegerDate(r.OrderDate); err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_order_dt", r.OrderDate, err)
		}
		if s.ShipDate, err = parseIntegerDate(r.ShipDate); err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_ship_dt", r.ShipDate, err)
		}
		if s.DueDate, err = parseIntegerDate(r.DueDate); err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_due_dt", r.DueDate, err)
		}
		amount, err := parseDecimal(r.Amount)
		if err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_sales", r.Amount, err)
		}
		quantity, err := parseDecimal(r.Quantity)
		if err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_quantity", r.Quantity, err)
		}
		price, err := parseDecimal(r.Price)
		if err != nil {
			return nil, malformed(c.TableRawSales, r.Row, "sls_price", r.Price, err)
		}
		s.Quantity = quantity
		s.Amount = ReconcileAmount(amount, quantity, price)
		s.Price = ReconcilePrice(amount, quantity, price)
		if !nullDecimalEqual(s.Amount, amount) {
			repairedAmounts++
		}
		if !nullDecimalEqual(s.Price, price) {
			repairedPrices++
		}
		retval = append(retval, s)
	}
	cl.Log.Debug("Sales cleansed: rows in = ", len(raw), "; rows out = ", len(retval), "; repaired amounts = ", repairedAmounts, "; repaired prices = ", repairedPrices)
	return retval, nil
}

// ReconcileAmount returns quantity x |price| when amount is absent, not positive, or disagrees with it.
// When quantity or price is absent a positive amount is kept.
func ReconcileAmount(amount, quantity, price decimal.NullDecimal) decimal.NullDecimal {
	expected := decimal.NullDecimal{}
	if quantity.Valid && price.Valid {
		expected = decimal.NewNullDecimal(quantity.Decimal.Mul(price.Decimal.Abs()))
	}
	if !amount.Valid || !amount.Decimal.IsPositive() || (expected.Valid && !amount.Decimal.Equal(expected.Decimal)) {
		return expected
	}
	return amount
}

// ReconcilePrice returns amount / quantity rounded to cents when price is absent or not positive.
// A zero or absent quantity, or an absent amount, gives an absent price.
func ReconcilePrice(amount, quantity, price decimal.NullDecimal) decimal.NullDecimal {
	if price.Valid && price.Decimal.IsPositive() {
		return price
	}
	if !amount.Valid || !quantity.Valid || quantity.Decimal.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Decimal.Div(quantity.Decimal).Round(c.PriceScale))
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
