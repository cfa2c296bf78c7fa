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
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	_ "modernc.org/sqlite"
)

const bufSize = 1

type SQLDriver int

const (
	MySQL SQLDriver = iota
	Postgres
	SQLite
)

// SQLDatabase stores orders in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	driver SQLDriver
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	tables := []struct {
		name  string
		model any
	}{
		{d.CustomersTable(), &Customer{}},
		{d.ProductsTable(), &Product{}},
		{d.OrdersTable(), &Order{}},
		{d.OrderItemsTable(), &OrderItem{}},
	}
	db := d.gormDB
	if d.driver == MySQL {
		db = db.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	for _, table := range tables {
		if err := db.Table(table.name).AutoMigrate(table.model); err != nil {
			return errors.Annotatef(err, "failed to create table %s", table.name)
		}
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

// Purge deletes all rows.
func (d *SQLDatabase) Purge() error {
	for _, table := range []string{d.OrderItemsTable(), d.OrdersTable(), d.ProductsTable(), d.CustomersTable()} {
		if err := d.gormDB.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func (d *SQLDatabase) upsert(ctx context.Context, table string, rows any, n int) error {
	if n == 0 {
		return nil
	}
	err := d.gormDB.WithContext(ctx).Table(table).Clauses(clause.OnConflict{UpdateAll: true}).Create(rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) BatchInsertCustomers(ctx context.Context, customers []Customer) error {
	return d.upsert(ctx, d.CustomersTable(), &customers, len(customers))
}

func (d *SQLDatabase) BatchInsertProducts(ctx context.Context, products []Product) error {
	return d.upsert(ctx, d.ProductsTable(), &products, len(products))
}

func (d *SQLDatabase) BatchInsertOrders(ctx context.Context, orders []Order) error {
	for i := range orders {
		orders[i].PurchaseTimestamp = orders[i].PurchaseTimestamp.UTC()
	}
	return d.upsert(ctx, d.OrdersTable(), &orders, len(orders))
}

func (d *SQLDatabase) BatchInsertOrderItems(ctx context.Context, items []OrderItem) error {
	return d.upsert(ctx, d.OrderItemsTable(), &items, len(items))
}

// GetInteractionStream aggregates order items into interactions.
func (d *SQLDatabase) GetInteractionStream(ctx context.Context, batchSize int) (chan []dataset.Interaction, chan error) {
	interactionChan := make(chan []dataset.Interaction, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(interactionChan)
		defer close(errChan)
		start := time.Now()
		// send query
		result, err := d.gormDB.WithContext(ctx).
			Table(d.OrderItemsTable()+" AS oi").
			Select("c.customer_unique_id, oi.product_id, COUNT(*)").
			Joins(fmt.Sprintf("JOIN %s AS o ON oi.order_id = o.order_id", d.OrdersTable())).
			Joins(fmt.Sprintf("JOIN %s AS c ON o.customer_id = c.customer_id", d.CustomersTable())).
			Group("c.customer_unique_id, oi.product_id").
			Order("c.customer_unique_id, oi.product_id").
			Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		defer result.Close()
		// fetch result
		interactions := make([]dataset.Interaction, 0, batchSize)
		for result.Next() {
			var customerId, productId sql.NullString
			var interaction dataset.Interaction
			if err = result.Scan(&customerId, &productId, &interaction.Count); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			interaction.CustomerId = customerId.String
			interaction.ProductId = productId.String
			interactions = append(interactions, interaction)
			if len(interactions) == batchSize {
				select {
				case interactionChan <- interactions:
				case <-ctx.Done():
					errChan <- errors.Trace(ctx.Err())
					return
				}
				interactions = make([]dataset.Interaction, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(interactions) > 0 {
			select {
			case interactionChan <- interactions:
			case <-ctx.Done():
				errChan <- errors.Trace(ctx.Err())
				return
			}
		}
		GetInteractionStreamSeconds.Observe(time.Since(start).Seconds())
		errChan <- nil
	}()
	return interactionChan, errChan
}

func (d *SQLDatabase) popular(ctx context.Context, column string, joinProducts bool, n int, begin, end *time.Time) ([]Score, error) {
	tx := d.gormDB.WithContext(ctx).
		Table(d.OrderItemsTable()+" AS oi").
		Select(fmt.Sprintf("%s AS id, COUNT(*) AS score", column)).
		Joins(fmt.Sprintf("JOIN %s AS o ON oi.order_id = o.order_id", d.OrdersTable()))
	if joinProducts {
		tx = tx.Joins(fmt.Sprintf("JOIN %s AS p ON oi.product_id = p.product_id", d.ProductsTable())).
			Where(fmt.Sprintf("%s IS NOT NULL AND %s <> ''", column, column))
	}
	if begin != nil {
		tx = tx.Where("o.order_purchase_timestamp >= ?", begin.UTC())
	}
	if end != nil {
		tx = tx.Where("o.order_purchase_timestamp < ?", end.UTC())
	}
	scores := make([]Score, 0, n)
	err := tx.Group(column).Order(fmt.Sprintf("score DESC, %s", column)).Limit(n).Scan(&scores).Error
	if err != nil {
		return nil, errors.Trace(err)
	}
	return scores, nil
}

func (d *SQLDatabase) GetPopularProducts(ctx context.Context, n int, begin, end *time.Time) ([]Score, error) {
	start := time.Now()
	scores, err := d.popular(ctx, "oi.product_id", false, n, begin, end)
	GetPopularSeconds.WithLabelValues("products").Observe(time.Since(start).Seconds())
	return scores, err
}

func (d *SQLDatabase) GetPopularCategories(ctx context.Context, n int, begin, end *time.Time) ([]Score, error) {
	start := time.Now()
	scores, err := d.popular(ctx, "p.product_category_name", true, n, begin, end)
	GetPopularSeconds.WithLabelValues("categories").Observe(time.Since(start).Seconds())
	return scores, err
}

func (d *SQLDatabase) GetDateRange(ctx context.Context) (time.Time, time.Time, error) {
	var first, last time.Time
	for _, bound := range []struct {
		order string
		dst   *time.Time
	}{
		{"order_purchase_timestamp ASC", &first},
		{"order_purchase_timestamp DESC", &last},
	} {
		var orders []Order
		err := d.gormDB.WithContext(ctx).Table(d.OrdersTable()).
			Order(bound.order).Limit(1).Find(&orders).Error
		if err != nil {
			return time.Time{}, time.Time{}, errors.Trace(err)
		}
		if len(orders) == 0 {
			return time.Time{}, time.Time{}, errors.NotFoundf("orders")
		}
		*bound.dst = orders[0].PurchaseTimestamp.UTC()
	}
	return first, last, nil
}
