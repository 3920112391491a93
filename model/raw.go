package model

import c "github.com/relloyd/starpipe/constants"

// Raw rows hold every column as extracted text; a blank value is a null.
// Row is the 1-based position of the record in its source file and gives a stable input order.

type RawCustomer struct {
	Row           int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID            string `mapstructure:"cst_id" json:"cst_id" gorm:"column:cst_id"`
	Key           string `mapstructure:"cst_key" json:"cst_key" gorm:"column:cst_key"`
	FirstName     string `mapstructure:"cst_firstname" json:"cst_firstname" gorm:"column:cst_firstname"`
	LastName      string `mapstructure:"cst_lastname" json:"cst_lastname" gorm:"column:cst_lastname"`
	MaritalStatus string `mapstructure:"cst_marital_status" json:"cst_marital_status" gorm:"column:cst_marital_status"`
	Gender        string `mapstructure:"cst_gndr" json:"cst_gndr" gorm:"column:cst_gndr"`
	CreateDate    string `mapstructure:"cst_create_date" json:"cst_create_date" gorm:"column:cst_create_date"`
}

func (RawCustomer) TableName() string { return c.TableRawCustomers }

type RawProduct struct {
	Row       int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID        string `mapstructure:"prd_id" json:"prd_id" gorm:"column:prd_id"`
	Key       string `mapstructure:"prd_key" json:"prd_key" gorm:"column:prd_key"`
	Name      string `mapstructure:"prd_nm" json:"prd_nm" gorm:"column:prd_nm"`
	Cost      string `mapstructure:"prd_cost" json:"prd_cost" gorm:"column:prd_cost"`
	Line      string `mapstructure:"prd_line" json:"prd_line" gorm:"column:prd_line"`
	StartDate string `mapstructure:"prd_start_dt" json:"prd_start_dt" gorm:"column:prd_start_dt"`
}

func (RawProduct) TableName() string { return c.TableRawProducts }

type RawSalesLine struct {
	Row         int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	OrderNumber string `mapstructure:"sls_ord_num" json:"sls_ord_num" gorm:"column:sls_ord_num"`
	ProductKey  string `mapstructure:"sls_prd_key" json:"sls_prd_key" gorm:"column:sls_prd_key"`
	CustomerID  string `mapstructure:"sls_cust_id" json:"sls_cust_id" gorm:"column:sls_cust_id"`
	OrderDate   string `mapstructure:"sls_order_dt" json:"sls_order_dt" gorm:"column:sls_order_dt"`
	ShipDate    string `mapstructure:"sls_ship_dt" json:"sls_ship_dt" gorm:"column:sls_ship_dt"`
	DueDate     string `mapstructure:"sls_due_dt" json:"sls_due_dt" gorm:"column:sls_due_dt"`
	Amount      string `mapstructure:"sls_sales" json:"sls_sales" gorm:"column:sls_sales"`
	Quantity    string `mapstructure:"sls_quantity" json:"sls_quantity" gorm:"column:sls_quantity"`
	Price       string `mapstructure:"sls_price" json:"sls_price" gorm:"column:sls_price"`
}

func (RawSalesLine) TableName() string { return c.TableRawSales }

type RawDemographic struct {
	Row         int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	CustomerKey string `mapstructure:"cid" json:"cid" gorm:"column:cid"`
	BirthDate   string `mapstructure:"bdate" json:"bdate" gorm:"column:bdate"`
	Gender      string `mapstructure:"gen" json:"gen" gorm:"column:gen"`
}

func (RawDemographic) TableName() string { return c.TableRawDemographics }

type RawLocation struct {
	Row         int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	CustomerKey string `mapstructure:"cid" json:"cid" gorm:"column:cid"`
	Country     string `mapstructure:"cntry" json:"cntry" gorm:"column:cntry"`
}

func (RawLocation) TableName() string { return c.TableRawLocations }

type RawCategory struct {
	Row         int    `mapstructure:"-" json:"row" gorm:"column:row_num;primaryKey;autoIncrement:false"`
	ID          string `mapstructure:"id" json:"id" gorm:"column:id"`
	Category    string `mapstructure:"cat" json:"cat" gorm:"column:cat"`
	Subcategory string `mapstructure:"subcat" json:"subcat" gorm:"column:subcat"`
	Maintenance string `mapstructure:"maintenance" json:"maintenance" gorm:"column:maintenance"`
}

func (RawCategory) TableName() string { return c.TableRawCategories }

// RawLayer is the full as-extracted input of one run.
type RawLayer struct {
	Customers    []RawCustomer
	Products     []RawProduct
	Sales        []RawSalesLine
	Demographics []RawDemographic
	Locations    []RawLocation
	Categories   []RawCategory
}
