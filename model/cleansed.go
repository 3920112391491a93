package model

import (
	"time"

	c "github.com/relloyd/starpipe/constants"
	"github.com/shopspring/decimal"
)

// Cleansed rows mirror the raw shapes with canonical types.
// Absent dates are nil; absent numbers are invalid NullDecimals.
// Row is the source row the cleansed row was derived from.

type Customer struct {
	Row           int        `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID            int64      `json:"cst_id" gorm:"column:cst_id"`
	Key           string     `json:"cst_key" gorm:"column:cst_key"`
	FirstName     string     `json:"cst_firstname" gorm:"column:cst_firstname"`
	LastName      string     `json:"cst_lastname" gorm:"column:cst_lastname"`
	MaritalStatus string     `json:"cst_marital_status" gorm:"column:cst_marital_status"`
	Gender        string     `json:"cst_gndr" gorm:"column:cst_gndr"`
	CreateDate    *time.Time `json:"cst_create_date" gorm:"column:cst_create_date"`
}

func (Customer) TableName() string { return c.TableCustomers }

type Product struct {
	Row        int             `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID         int64           `json:"prd_id" gorm:"column:prd_id"`
	CategoryID string          `json:"cat_id" gorm:"column:cat_id"`
	Key        string          `json:"prd_key" gorm:"column:prd_key"`
	Name       string          `json:"prd_nm" gorm:"column:prd_nm"`
	Cost       decimal.Decimal `json:"prd_cost" gorm:"column:prd_cost;type:decimal(18,4)"`
	Line       string          `json:"prd_line" gorm:"column:prd_line"`
	StartDate  time.Time       `json:"prd_start_dt" gorm:"column:prd_start_dt"`
	EndDate    *time.Time      `json:"prd_end_dt" gorm:"column:prd_end_dt"`
}

func (Product) TableName() string { return c.TableProducts }

// IsCurrent is true for the open-ended (latest) version of a product key.
func (p Product) IsCurrent() bool {
	return p.EndDate == nil
}

type SalesLine struct {
	Row         int                 `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	OrderNumber string              `json:"sls_ord_num" gorm:"column:sls_ord_num"`
	ProductKey  string              `json:"sls_prd_key" gorm:"column:sls_prd_key"`
	CustomerID  *int64              `json:"sls_cust_id" gorm:"column:sls_cust_id"`
	OrderDate   *time.Time          `json:"sls_order_dt" gorm:"column:sls_order_dt"`
	ShipDate    *time.Time          `json:"sls_ship_dt" gorm:"column:sls_ship_dt"`
	DueDate     *time.Time          `json:"sls_due_dt" gorm:"column:sls_due_dt"`
	Amount      decimal.NullDecimal `json:"sls_sales" gorm:"column:sls_sales;type:decimal(18,4)"`
	Quantity    decimal.NullDecimal `json:"sls_quantity" gorm:"column:sls_quantity;type:decimal(18,4)"`
	Price       decimal.NullDecimal `json:"sls_price" gorm:"column:sls_price;type:decimal(18,4)"`
}

func (SalesLine) TableName() string { return c.TableSales }

type Demographic struct {
	Row         int        `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	CustomerKey string     `json:"cid" gorm:"column:cid"`
	BirthDate   *time.Time `json:"bdate" gorm:"column:bdate"`
	Gender      string     `json:"gen" gorm:"column:gen"`
}

func (Demographic) TableName() string { return c.TableDemographics }

type Location struct {
	Row         int    `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	CustomerKey string `json:"cid" gorm:"column:cid"`
	Country     string `json:"cntry" gorm:"column:cntry"`
}

func (Location) TableName() string { return c.TableLocations }

type Category struct {
	Row         int    `json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID          string `json:"id" gorm:"column:id"`
	Category    string `json:"cat" gorm:"column:cat"`
	Subcategory string `json:"subcat" gorm:"column:subcat"`
	Maintenance string `json:"maintenance" gorm:"column:maintenance"`
}

func (Category) TableName() string { return c.TableCategories }

// CleansedLayer is the validated, standardized output of all cleansers.
type CleansedLayer struct {
	Customers    []Customer
	Products     []Product
	Sales        []SalesLine
	Demographics []Demographic
	Locations    []Location
	Categories   []Category
}
