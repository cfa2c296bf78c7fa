// Copyright 2026 olist-intelligence Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"context"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/storage"
	"github.com/samber/lo"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var ErrNoDatabase = errors.NotAssignedf("database")

// Customer is a row of the customers table. A person may own several
// customer ids; CustomerUniqueId identifies the person.
type Customer struct {
	CustomerId       string `gorm:"column:customer_id;size:64;primaryKey"`
	CustomerUniqueId string `gorm:"column:customer_unique_id;size:64;not null;index"`
	ZipCodePrefix    string `gorm:"column:customer_zip_code_prefix;size:16"`
	City             string `gorm:"column:customer_city;size:128"`
	State            string `gorm:"column:customer_state;size:8"`
}

// Product is a row of the products table.
type Product struct {
	ProductId    string `gorm:"column:product_id;size:64;primaryKey"`
	CategoryName string `gorm:"column:product_category_name;size:128;index"`
}

// Order is a row of the orders table.
type Order struct {
	OrderId           string    `gorm:"column:order_id;size:64;primaryKey"`
	CustomerId        string    `gorm:"column:customer_id;size:64;not null;index"`
	Status            string    `gorm:"column:order_status;size:32"`
	PurchaseTimestamp time.Time `gorm:"column:order_purchase_timestamp;index"`
}

// OrderItem is a row of the order_items table. Each row is one unit of a
// product in an order.
type OrderItem struct {
	OrderId      string  `gorm:"column:order_id;size:64;primaryKey"`
	OrderItemId  int     `gorm:"column:order_item_id;primaryKey;autoIncrement:false"`
	ProductId    string  `gorm:"column:product_id;size:64;not null;index"`
	SellerId     string  `gorm:"column:seller_id;size:64"`
	Price        float64 `gorm:"column:price"`
	FreightValue float64 `gorm:"column:freight_value"`
}

// Score is an identifier ranked by the number of purchases.
type Score struct {
	Id    string
	Score float64
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error
	BatchInsertCustomers(ctx context.Context, customers []Customer) error
	BatchInsertProducts(ctx context.Context, products []Product) error
	BatchInsertOrders(ctx context.Context, orders []Order) error
	BatchInsertOrderItems(ctx context.Context, items []OrderItem) error
	// GetInteractionStream returns the number of purchases of each product by each
	// customer_unique_id, ordered by customer and product.
	GetInteractionStream(ctx context.Context, batchSize int) (chan []dataset.Interaction, chan error)
	// GetPopularProducts returns the most purchased products within [begin, end).
	GetPopularProducts(ctx context.Context, n int, begin, end *time.Time) ([]Score, error)
	// GetPopularCategories returns the most purchased categories within [begin, end).
	GetPopularCategories(ctx context.Context, n int, begin, end *time.Time) ([]Score, error)
	// GetDateRange returns the first and the last purchase timestamps.
	GetDateRange(ctx context.Context) (time.Time, time.Time, error)
}

// Open a connection to a database.
func Open(path string, opts ...storage.Option) (Database, error) {
	var err error
	opt := storage.NewOptions(opts...)
	if strings.HasPrefix(path, storage.MySQLPrefix) {
		name := path[len(storage.MySQLPrefix):]
		// append parameters
		if name, err = storage.AppendMySQLParams(name, map[string]string{
			"sql_mode":  "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
			"parseTime": "true",
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		database := new(SQLDatabase)
		database.driver = MySQL
		database.TablePrefix = storage.TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("mysql", name,
			otelsql.WithAttributes(semconv.DBSystemMySQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		storage.ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(mysql.New(mysql.Config{Conn: database.client}), storage.NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.PostgresPrefix) || strings.HasPrefix(path, storage.PostgreSQLPrefix) {
		database := new(SQLDatabase)
		database.driver = Postgres
		database.TablePrefix = storage.TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("postgres", path,
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		storage.ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(postgres.New(postgres.Config{Conn: database.client}), storage.NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	} else if strings.HasPrefix(path, storage.SQLitePrefix) {
		// append parameters
		if path, err = storage.AppendURLParams(path, []lo.Tuple2[string, string]{
			{A: "_pragma", B: "busy_timeout(10000)"},
			{A: "_pragma", B: "journal_mode(wal)"},
		}); err != nil {
			return nil, errors.Trace(err)
		}
		// connect to database
		name := path[len(storage.SQLitePrefix):]
		database := new(SQLDatabase)
		database.driver = SQLite
		database.TablePrefix = storage.TablePrefix(opt.TablePrefix)
		if database.client, err = otelsql.Open("sqlite", name,
			otelsql.WithAttributes(semconv.DBSystemSqlite),
			otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
		); err != nil {
			return nil, errors.Trace(err)
		}
		storage.ApplySQLPool(database.client, opt)
		database.gormDB, err = gorm.Open(sqlite.Dialector{Conn: database.client}, storage.NewGORMConfig(opt.TablePrefix))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
