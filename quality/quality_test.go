package quality_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/pkg/errors"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/relloyd/starpipe/quality"
	"github.com/relloyd/starpipe/rules"
	"github.com/shopspring/decimal"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func num(i int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(i))
}

func key(i int64) *int64 {
	return &i
}

// cleanDataset passes every built-in check.
func cleanDataset() *model.Dataset {
	ds := &model.Dataset{}
	ds.Raw.Sales = []model.RawSalesLine{{Row: 1, OrderNumber: "SO1", OrderDate: "20130115", ShipDate: "20130120", DueDate: "20130125"}}
	ds.Cleansed.Customers = []model.Customer{{Row: 1, ID: 10, Key: "AW10", FirstName: "Al", LastName: "Smith", MaritalStatus: rules.Married, Gender: rules.Male}}
	ds.Cleansed.Products = []model.Product{
		{Row: 1, ID: 1, CategoryID: "BI_RB", Key: "B-2", Name: "Road Bike", Cost: decimal.NewFromInt(700), Line: rules.Road, StartDate: *day(2012, 1, 1), EndDate: day(2012, 12, 31)},
		{Row: 2, ID: 2, CategoryID: "BI_RB", Key: "B-2", Name: "Road Bike", Cost: decimal.NewFromInt(750), Line: rules.Road, StartDate: *day(2013, 1, 1)},
	}
	customerID := int64(10)
	ds.Cleansed.Sales = []model.SalesLine{{
		Row: 1, OrderNumber: "SO1", ProductKey: "B-2", CustomerID: &customerID,
		OrderDate: day(2013, 1, 15), ShipDate: day(2013, 1, 20), DueDate: day(2013, 1, 25),
		Amount: num(100), Quantity: num(5), Price: num(20),
	}}
	ds.Cleansed.Demographics = []model.Demographic{{Row: 1, CustomerKey: "AW10", BirthDate: day(1971, 10, 6), Gender: rules.Male}}
	ds.Cleansed.Locations = []model.Location{{Row: 1, CustomerKey: "AW10", Country: rules.Germany}}
	ds.Cleansed.Categories = []model.Category{{Row: 1, ID: "BI_RB", Category: "Bikes", Subcategory: "Road Bikes", Maintenance: "Yes"}}
	ds.Dimensional.Customers = []model.CustomerDimension{{CustomerKey: 1, CustomerID: 10, CustomerNumber: "AW10", Country: rules.Germany, MaritalStatus: rules.Married, Gender: rules.Male}}
	ds.Dimensional.Products = []model.ProductDimension{{ProductKey: 1, ProductID: 2, ProductNumber: "B-2", ProductLine: rules.Road, StartDate: *day(2013, 1, 1)}}
	ds.Dimensional.Sales = []model.SalesFact{{Row: 1, OrderNumber: "SO1", ProductKey: key(1), CustomerKey: key(1), SalesAmount: num(100), Quantity: num(5), Price: num(20)}}
	return ds
}

var _ = Describe("Registry", func() {
	log := logger.NewLogger("starpipe", "error", true)
	var reg *quality.Registry
	var ds *model.Dataset
	ctx := context.Background()

	// run executes one check and returns its violations.
	run := func(name string) []quality.Violation {
		results, err := reg.Run(ctx, ds, name)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Check).To(Equal(name))
		return results[0].Violations
	}

	BeforeEach(func() {
		reg = quality.NewRegistry(log)
		reg.Now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
		ds = cleanDataset()
	})

	It("Should pass every check on a clean dataset", func() {
		results, err := reg.Run(ctx, ds)
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(len(reg.Names())))
		for _, r := range results {
			Expect(r.Violations).To(BeEmpty(), r.Check)
			Expect(r.Passed).To(BeTrue())
		}
		Expect(quality.Failed(results)).To(Equal(0))
	})

	It("Should report results in registry order", func() {
		results, err := reg.Run(ctx, ds, "birthdate_range", "customer_key_unique")
		Expect(err).ToNot(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Check).To(Equal("customer_key_unique"))
		Expect(results[1].Check).To(Equal("birthdate_range"))
	})

	It("Should reject unknown checks", func() {
		_, err := reg.Run(ctx, ds, "no_such_check")
		Expect(errors.Is(err, quality.ErrUnknownCheck)).To(BeTrue())
	})

	It("Should stop when the context is cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := reg.Run(cctx, ds)
		Expect(err).To(HaveOccurred())
	})

	It("Should flag duplicate and non-contiguous surrogate keys", func() {
		ds.Dimensional.Customers = append(ds.Dimensional.Customers, model.CustomerDimension{CustomerKey: 1, CustomerID: 20, Country: rules.Unknown, MaritalStatus: rules.Single, Gender: rules.Female})
		v := run("customer_key_unique")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Key).To(Equal("customer_key=1"))
		Expect(v[0].Value).To(Equal("2"))
		v = run("customer_key_contiguous")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Reason).To(Equal("missing key"))

		ds.Dimensional.Products[0].ProductKey = 3
		Expect(run("product_key_contiguous")).To(HaveLen(2))
		Expect(run("product_key_unique")).To(BeEmpty())
	})

	It("Should flag facts that do not resolve to the dimensions", func() {
		ds.Dimensional.Sales = append(ds.Dimensional.Sales, model.SalesFact{Row: 7, OrderNumber: "SO2", CustomerKey: key(9)})
		v := run("fact_referential_integrity")
		Expect(v).To(HaveLen(2))
		Expect(v[0].Column).To(Equal("product_key"))
		Expect(v[0].Reason).To(Equal("product not resolved"))
		Expect(v[1].Reason).To(Equal("customer key not in dimension"))
		Expect(v[1].Key).To(Equal("order_number=SO2 row=7"))
	})

	It("Should identify facts by source row whatever their order", func() {
		ds.Dimensional.Sales = []model.SalesFact{
			{Row: 9, OrderNumber: "SO9", ProductKey: key(1)},
			{Row: 3, OrderNumber: "SO3", ProductKey: key(1), CustomerKey: key(1)},
		}
		v := run("fact_referential_integrity")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Key).To(Equal("order_number=SO9 row=9"))
		ds.Dimensional.Sales[0], ds.Dimensional.Sales[1] = ds.Dimensional.Sales[1], ds.Dimensional.Sales[0]
		Expect(run("fact_referential_integrity")).To(Equal(v))
	})

	It("Should flag duplicate natural ids", func() {
		ds.Cleansed.Customers = append(ds.Cleansed.Customers, ds.Cleansed.Customers[0])
		Expect(run("customer_id_unique")).To(HaveLen(1))
		ds.Cleansed.Products[1].ID = 1
		Expect(run("product_id_unique")).To(HaveLen(1))
	})

	It("Should flag untrimmed text", func() {
		ds.Cleansed.Customers[0].FirstName = " Al"
		ds.Cleansed.Products[0].Name = "Road Bike "
		ds.Cleansed.Categories[0].Subcategory = "Road Bikes\t"
		Expect(run("customer_name_whitespace")).To(HaveLen(1))
		Expect(run("customer_key_whitespace")).To(BeEmpty())
		Expect(run("product_name_whitespace")).To(HaveLen(1))
		v := run("category_whitespace")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Column).To(Equal("subcat"))
	})

	It("Should flag values outside the canonical sets once per distinct value", func() {
		ds.Cleansed.Customers[0].Gender = "M"
		ds.Cleansed.Customers = append(ds.Cleansed.Customers, model.Customer{Row: 2, ID: 20, Key: "AW20", MaritalStatus: rules.Single, Gender: "M"})
		v := run("customer_domains")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Value).To(Equal("M"))
		Expect(v[0].Key).To(Equal("row=1"))

		ds.Cleansed.Products[0].Line = "R"
		Expect(run("product_line_domain")).To(HaveLen(1))
		ds.Cleansed.Demographics[0].Gender = "male"
		Expect(run("demographic_gender_domain")).To(HaveLen(1))
		ds.Cleansed.Locations[0].Country = "DE"
		Expect(run("country_domain")).To(HaveLen(1))
		ds.Cleansed.Categories[0].Maintenance = "Maybe"
		Expect(run("category_maintenance_domain")).To(HaveLen(1))
		ds.Dimensional.Customers[0].Gender = ""
		ds.Dimensional.Products[0].ProductLine = "X"
		Expect(run("dimension_domains")).To(HaveLen(2))
	})

	It("Should accept pass-through countries", func() {
		ds.Cleansed.Locations[0].Country = "Australia"
		Expect(run("country_domain")).To(BeEmpty())
	})

	It("Should flag negative costs", func() {
		ds.Cleansed.Products[0].Cost = decimal.NewFromInt(-1)
		Expect(run("product_cost_valid")).To(HaveLen(1))
	})

	It("Should flag overlapping and unterminated product versions", func() {
		ds.Cleansed.Products[0].EndDate = nil
		v := run("product_validity_ranges")
		Expect(v).To(HaveLen(2))
		Expect(v[0].Reason).To(ContainSubstring("overlaps"))
		Expect(v[1].Reason).To(Equal("expected exactly one open version"))
	})

	It("Should flag an end date before the start date", func() {
		ds.Cleansed.Products[0].StartDate = *day(2013, 1, 1)
		v := run("product_validity_ranges")
		Expect(v).ToNot(BeEmpty())
		Expect(v[0].Reason).To(Equal("end before start"))
	})

	It("Should flag inconsistent sales amounts", func() {
		ds.Cleansed.Sales[0].Amount = num(90)
		v := run("sales_amount_consistent")
		Expect(v).To(HaveLen(1))
		Expect(v[0].Reason).To(ContainSubstring("100"))

		ds.Cleansed.Sales[0].Price = decimal.NullDecimal{}
		ds.Cleansed.Sales[0].Quantity = num(0)
		v = run("sales_amount_consistent")
		Expect(v).To(HaveLen(2))
		Expect(v[0].Reason).To(Equal("not positive"))
		Expect(v[1].Reason).To(Equal("absent"))
	})

	It("Should flag orders placed after shipping or due dates", func() {
		ds.Cleansed.Sales[0].OrderDate = day(2013, 2, 1)
		Expect(run("sales_date_order")).To(HaveLen(2))
		ds.Cleansed.Sales[0].ShipDate = nil
		ds.Cleansed.Sales[0].DueDate = nil
		Expect(run("sales_date_order")).To(BeEmpty())
	})

	It("Should flag implausible raw integer dates", func() {
		ds.Raw.Sales = []model.RawSalesLine{
			{Row: 1, OrderDate: "20231301", ShipDate: "0", DueDate: "2013011"},
			{Row: 2, OrderDate: "18991231", ShipDate: "20500102", DueDate: ""},
		}
		v := run("raw_sales_date_range")
		Expect(v).To(HaveLen(5))
		Expect(v[0].Reason).To(Equal("not a calendar date"))
		Expect(v[1].Reason).To(Equal("not positive"))
		Expect(v[2].Reason).To(Equal("not 8 digits"))
		Expect(v[3].Reason).To(Equal("outside plausible range"))
		Expect(v[4].Table).To(Equal(c.TableRawSales))
	})

	It("Should flag birthdates outside the plausible range", func() {
		ds.Cleansed.Demographics = append(ds.Cleansed.Demographics,
			model.Demographic{Row: 2, CustomerKey: "AW20", BirthDate: day(1900, 1, 1), Gender: rules.Female},
			model.Demographic{Row: 3, CustomerKey: "AW30", BirthDate: day(2030, 1, 1), Gender: rules.Female},
		)
		v := run("birthdate_range")
		Expect(v).To(HaveLen(2))
		Expect(v[0].Key).To(Equal("row=2"))
		Expect(v[1].Reason).To(Equal("in the future"))
	})

	Describe("Custom checks", func() {
		It("Should flag rows matching a JSON logic rule", func() {
			chk, err := quality.NewCustomCheck(quality.CustomCheck{Name: "big_sales", Table: c.TableSales, Rule: `{">": [{"var": "sls_sales"}, 50]}`})
			Expect(err).ToNot(HaveOccurred())
			Expect(reg.Register(chk)).To(Succeed())
			Expect(reg.Names()[len(reg.Names())-1]).To(Equal("big_sales"))
			v := run("big_sales")
			Expect(v).To(HaveLen(1))
			Expect(v[0].Key).To(Equal("row=1"))
		})

		It("Should identify fact rows by source row", func() {
			chk, err := quality.NewCustomCheck(quality.CustomCheck{Name: "big_facts", Table: c.TableSalesFact, Rule: `{">": [{"var": "sales_amount"}, 50]}`})
			Expect(err).ToNot(HaveOccurred())
			Expect(reg.Register(chk)).To(Succeed())
			v := run("big_facts")
			Expect(v).To(HaveLen(1))
			Expect(v[0].Key).To(Equal("row=1"))
		})

		It("Should evaluate dimension rows by line", func() {
			chk, err := quality.NewCustomCheck(quality.CustomCheck{Name: "german_customers", Table: c.TableCustomerDimension, Rule: `{"==": [{"var": "country"}, "Germany"]}`})
			Expect(err).ToNot(HaveOccurred())
			Expect(reg.Register(chk)).To(Succeed())
			v := run("german_customers")
			Expect(v).To(HaveLen(1))
			Expect(v[0].Key).To(Equal("line=1"))
		})

		It("Should reject invalid rules, unknown tables and duplicate names", func() {
			_, err := quality.NewCustomCheck(quality.CustomCheck{Name: "bad", Table: c.TableSales, Rule: `{"nope"`})
			Expect(errors.Is(err, quality.ErrInvalidRule)).To(BeTrue())
			_, err = quality.NewCustomCheck(quality.CustomCheck{Name: "bad", Table: "no_table", Rule: `{"==": [1, 1]}`})
			Expect(errors.Is(err, quality.ErrUnknownTable)).To(BeTrue())
			chk, err := quality.NewCustomCheck(quality.CustomCheck{Name: "birthdate_range", Table: c.TableSales, Rule: `{"==": [1, 1]}`})
			Expect(err).ToNot(HaveOccurred())
			Expect(errors.Is(reg.Register(chk), quality.ErrDuplicateCheck)).To(BeTrue())
		})
	})
})
