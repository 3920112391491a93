package model

import (
	"time"

	c "github.com/relloyd/starpipe/constants"
	"github.com/shopspring/decimal"
)

type CustomerDimension struct {
	CustomerKey    int64      `json:"customer_key" gorm:"column:customer_key;index"`
	CustomerID     int64      `json:"customer_id" gorm:"column:customer_id"`
	CustomerNumber string     `json:"customer_number" gorm:"column:customer_number"`
	FirstName      string     `json:"first_name" gorm:"column:first_name"`
	LastName       string     `json:"last_name" gorm:"column:last_name"`
	Country        string     `json:"country" gorm:"column:country"`
	MaritalStatus  string     `json:"marital_status" gorm:"column:marital_status"`
	Gender         string     `json:"gender" gorm:"column:gender"`
	BirthDate      *time.Time `json:"birthdate" gorm:"column:birthdate"`
	CreateDate     *time.Time `json:"create_date" gorm:"column:create_date"`
}

func (CustomerDimension) TableName() string { return c.TableCustomerDimension }

// ProductDimension category fields are blank when the category id has no match.
type ProductDimension struct {
	ProductKey    int64           `json:"product_key" gorm:"column:product_key;index"`
	ProductID     int64           `json:"product_id" gorm:"column:product_id"`
	ProductNumber string          `json:"product_number" gorm:"column:product_number"`
	ProductName   string          `json:"product_name" gorm:"column:product_name"`
	CategoryID    string          `json:"category_id" gorm:"column:category_id"`
	Category      string          `json:"category" gorm:"column:category"`
	Subcategory   string          `json:"subcategory" gorm:"column:subcategory"`
	Maintenance   string          `json:"maintenance" gorm:"column:maintenance"`
	Cost          decimal.Decimal `json:"cost" gorm:"column:cost;type:decimal(18,4)"`
	ProductLine   string          `json:"product_line" gorm:"column:product_line"`
	StartDate     time.Time       `json:"start_date" gorm:"column:start_date"`
}

func (ProductDimension) TableName() string { return c.TableProductDimension }

// SalesFact surrogate keys are nil when the business key did not resolve.
// Row is the source row of the sales line; it identifies the fact but is not exported.
type SalesFact struct {
	Row         int                 `json:"-" gorm:"column:row_num"`
	OrderNumber string              `json:"order_number" gorm:"column:order_number"`
	ProductKey  *int64              `json:"product_key" gorm:"column:product_key"`
	CustomerKey *int64              `json:"customer_key" gorm:"column:customer_key"`
	OrderDate   *time.Time          `json:"order_date" gorm:"column:order_date"`
	ShipDate    *time.Time          `json:"shipping_date" gorm:"column:shipping_date"`
	DueDate     *time.Time          `json:"due_date" gorm:"column:due_date"`
	SalesAmount decimal.NullDecimal `json:"sales_amount" gorm:"column:sales_amount;type:decimal(18,4)"`
	Quantity    decimal.NullDecimal `json:"quantity" gorm:"column:quantity;type:decimal(18,4)"`
	Price       decimal.NullDecimal `json:"price" gorm:"column:price;type:decimal(18,4)"`
}

func (SalesFact) TableName() string { return c.TableSalesFact }

// DimensionalLayer is the star schema.
type DimensionalLayer struct {
	Customers []CustomerDimension
	Products  []ProductDimension
	Sales     []SalesFact
}

// Dataset bundles every layer of one run for validation.
type Dataset struct {
	Raw         RawLayer
	Cleansed    CleansedLayer
	Dimensional DimensionalLayer
}
