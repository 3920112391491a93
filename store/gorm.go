package store

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/pkg/errors"
	c "github.com/relloyd/starpipe/constants"
	"github.com/relloyd/starpipe/logger"
	"github.com/relloyd/starpipe/model"
	"github.com/xo/dburl"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Models lists a zero row of every persisted table for migration.
var Models = []interface{}{
	&model.RawCustomer{},
	&model.RawProduct{},
	&model.RawSalesLine{},
	&model.RawDemographic{},
	&model.RawLocation{},
	&model.RawCategory{},
	&model.Customer{},
	&model.Product{},
	&model.SalesLine{},
	&model.Demographic{},
	&model.Location{},
	&model.Category{},
	&model.CustomerDimension{},
	&model.ProductDimension{},
	&model.SalesFact{},
}

// loadOrder is the ORDER BY used when a table is read back.
var loadOrder = map[string]string{
	c.TableRawCustomers:      "row_num",
	c.TableRawProducts:       "row_num",
	c.TableRawSales:          "row_num",
	c.TableRawDemographics:   "row_num",
	c.TableRawLocations:      "row_num",
	c.TableRawCategories:     "row_num",
	c.TableCustomers:         "cst_id, row_num",
	c.TableProducts:          "prd_id, row_num",
	c.TableSales:             "row_num",
	c.TableDemographics:      "row_num",
	c.TableLocations:         "row_num",
	c.TableCategories:        "row_num",
	c.TableCustomerDimension: "customer_key",
	c.TableProductDimension:  "product_key",
	c.TableSalesFact:         "row_num",
}

// GormStore persists tables through gorm.
type GormStore struct {
	log       logger.Logger
	db        *gorm.DB
	batchSize int
}

func openGorm(log logger.Logger, u *dburl.URL) (*GormStore, error) {
	var dialector gorm.Dialector
	switch u.Driver {
	case "sqlite3":
		dialector = sqlite.Open(u.DSN)
	case "postgres":
		dialector = postgres.Open(u.DSN)
	default:
		return nil, &OpError{Op: "open", Err: fmt.Errorf("unsupported store driver %q", u.Driver)}
	}
	return NewGormStore(log, dialector)
}

// NewGormStore opens the database and migrates every table in Models.
func NewGormStore(log logger.Logger, dialector gorm.Dialector) (*GormStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(gormWriter{log}, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, &OpError{Op: "open", Err: err}
	}
	if err = db.AutoMigrate(Models...); err != nil {
		return nil, &OpError{Op: "migrate", Err: err}
	}
	return &GormStore{log: log, db: db, batchSize: c.StoreBatchSize}, nil
}

func (g *GormStore) Replace(ctx context.Context, table string, rows interface{}) error {
	v := reflect.ValueOf(rows)
	if v.Kind() != reflect.Slice {
		return &OpError{Op: "replace", Table: table, Err: fmt.Errorf("expected a slice of rows but got %T", rows)}
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("DELETE FROM %v", tx.Statement.Quote(table))).Error; err != nil {
			return errors.Wrap(err, "truncate")
		}
		if v.Len() == 0 {
			return nil
		}
		p := reflect.New(v.Type()) // gorm wants addressable rows.
		p.Elem().Set(v)
		return errors.Wrap(tx.Table(table).CreateInBatches(p.Interface(), g.batchSize).Error, "insert")
	})
	if err != nil {
		return &OpError{Op: "replace", Table: table, Err: err}
	}
	g.log.Debug("Replaced ", v.Len(), " rows in table ", table)
	return nil
}

func (g *GormStore) Load(ctx context.Context, table string, out interface{}) error {
	q := g.db.WithContext(ctx).Table(table)
	if o, ok := loadOrder[table]; ok {
		q = q.Order(o)
	}
	if err := q.Find(out).Error; err != nil {
		return &OpError{Op: "load", Table: table, Err: err}
	}
	return nil
}

func (g *GormStore) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return &OpError{Op: "close", Err: err}
	}
	return sqlDB.Close()
}

// gormWriter sends gorm's own log lines to our logger.
type gormWriter struct {
	log logger.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...))
}
