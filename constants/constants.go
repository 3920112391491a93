package constants

// Pipeline

const (
	ServiceName             = "starpipe"
	EnvVarPrefix            = "SP" // prefixed for environment variables in twelveFactorMode
	StoreBatchSize          = 500
	StoreMemory             = "memory"
	TimeFormatDate          = "2006-01-02"
	TimeFormatIntegerDate   = "20060102"
	TimeFormatYearSecondsTZ = "2006-01-02T15:04:05Z07:00"
	IntegerDateLength       = 8
	IntegerDateMin          = 19000101
	IntegerDateMax          = 20500101
	BirthdateFloor          = "1924-01-01"
	DemographicIDPrefix     = "NAS"
	CategoryIDWidth         = 5 // prd_key characters that hold the category id.
	ProductKeyOffset        = 6 // prd_key characters skipped before the product key starts.
	PriceScale              = 2
	EmojiBang               = "\U0001F4A5"
	OutputFormatText        = "text"
	OutputFormatJSON        = "json"
	OutputFormatYAML        = "yaml"
)

// Stage names in run order.

const (
	StageLoad      = "load"
	StageCleanse   = "cleanse"
	StageDimension = "dimension"
	StageFact      = "fact"
	StageValidate  = "validate"
)

// Table names for every layer.

const (
	TableRawCustomers         = "bronze_crm_cust_info"
	TableRawProducts          = "bronze_crm_prd_info"
	TableRawSales             = "bronze_crm_sales_details"
	TableRawDemographics      = "bronze_erp_cust_az12"
	TableRawLocations         = "bronze_erp_loc_a101"
	TableRawCategories        = "bronze_erp_px_cat_g1v2"
	TableCustomers            = "silver_crm_cust_info"
	TableProducts             = "silver_crm_prd_info"
	TableSales                = "silver_crm_sales_details"
	TableDemographics         = "silver_erp_cust_az12"
	TableLocations            = "silver_erp_loc_a101"
	TableCategories           = "silver_erp_px_cat_g1v2"
	TableCustomerDimension    = "gold_dim_customers"
	TableProductDimension     = "gold_dim_products"
	TableSalesFact            = "gold_fact_sales"
	SourceEntityCustomers     = "customers"
	SourceEntityProducts      = "products"
	SourceEntitySales         = "sales"
	SourceEntityDemographics  = "demographics"
	SourceEntityLocations     = "locations"
	SourceEntityCategories    = "categories"
	SourceSchemeS3            = "s3"
	DefaultS3Region           = "eu-west-1"
	DefaultServerPort         = 8080
	DefaultServerMaxConns     = 64
	DefaultLogLevel           = "info"
	DefaultStatsDumpFrequency = 0
	DefaultConfigDir          = ".starpipe"
	DefaultConfigFileName     = "config.yaml"
)
