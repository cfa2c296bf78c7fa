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

package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/araddon/dateparse"
	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	customersFile  = "olist_customers_dataset.csv"
	productsFile   = "olist_products_dataset.csv"
	ordersFile     = "olist_orders_dataset.csv"
	orderItemsFile = "olist_order_items_dataset.csv"
)

var importCommand = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import the Olist CSV exports into the data store.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		maxTries, _ := cmd.Flags().GetUint("max-tries")
		silent, _ := cmd.Flags().GetBool("silent")

		db, err := data.Open(conf.Database.DataStore,
			storage.WithTablePrefix(conf.Database.TablePrefix),
			storage.WithMaxOpenConns(conf.Database.MaxOpenConns),
			storage.WithMaxIdleConns(conf.Database.MaxIdleConns),
			storage.WithConnMaxLifetime(conf.Database.ConnMaxLifetime))
		if err != nil {
			log.Logger().Fatal("failed to connect data store",
				zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)), zap.Error(err))
		}
		defer db.Close()

		im := &Importer{Database: db, BatchSize: batchSize, MaxTries: maxTries, Silent: silent}
		if err = im.ImportDir(cmd.Context(), args[0]); err != nil {
			log.Logger().Fatal("failed to import", zap.Error(err))
		}
	},
}

func init() {
	importCommand.Flags().Int("batch-size", 1000, "number of rows per insert")
	importCommand.Flags().Uint("max-tries", 5, "maximum attempts per batch")
	importCommand.Flags().Bool("silent", false, "hide progress bars")
	cliCommand.AddCommand(importCommand)
}

// Importer loads CSV exports into a data store in batches.
type Importer struct {
	Database  data.Database
	BatchSize int
	MaxTries  uint
	Silent    bool
}

// ImportStats counts rows of a single file.
type ImportStats struct {
	Inserted int
	Skipped  int
}

// ImportDir imports every known export found in dir. Files are imported in
// dependency order and missing files are skipped.
func (im *Importer) ImportDir(ctx context.Context, dir string) error {
	if err := im.Database.Init(); err != nil {
		return errors.Trace(err)
	}
	steps := []struct {
		name string
		run  func(context.Context, string) (ImportStats, error)
	}{
		{customersFile, im.ImportCustomers},
		{productsFile, im.ImportProducts},
		{ordersFile, im.ImportOrders},
		{orderItemsFile, im.ImportOrderItems},
	}
	for _, step := range steps {
		path := filepath.Join(dir, step.name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Logger().Warn("skip missing file", zap.String("path", path))
			continue
		}
		stats, err := step.run(ctx, path)
		if err != nil {
			return errors.Annotatef(err, "failed to import %s", step.name)
		}
		log.Logger().Info("import file",
			zap.String("file", step.name),
			zap.Int("inserted", stats.Inserted),
			zap.Int("skipped", stats.Skipped))
	}
	return nil
}

func (im *Importer) ImportCustomers(ctx context.Context, path string) (ImportStats, error) {
	return importTable(ctx, im, path,
		[]string{"customer_id", "customer_unique_id"},
		func(row csvRow) (data.Customer, error) {
			return data.Customer{
				CustomerId:       row.Get("customer_id"),
				CustomerUniqueId: row.Get("customer_unique_id"),
				ZipCodePrefix:    row.Get("customer_zip_code_prefix"),
				City:             row.Get("customer_city"),
				State:            row.Get("customer_state"),
			}, nil
		},
		im.Database.BatchInsertCustomers)
}

func (im *Importer) ImportProducts(ctx context.Context, path string) (ImportStats, error) {
	return importTable(ctx, im, path,
		[]string{"product_id"},
		func(row csvRow) (data.Product, error) {
			return data.Product{
				ProductId:    row.Get("product_id"),
				CategoryName: row.Get("product_category_name"),
			}, nil
		},
		im.Database.BatchInsertProducts)
}

func (im *Importer) ImportOrders(ctx context.Context, path string) (ImportStats, error) {
	return importTable(ctx, im, path,
		[]string{"order_id", "customer_id", "order_purchase_timestamp"},
		func(row csvRow) (data.Order, error) {
			timestamp, err := dateparse.ParseIn(row.Get("order_purchase_timestamp"), time.UTC)
			if err != nil {
				return data.Order{}, errors.Trace(err)
			}
			return data.Order{
				OrderId:           row.Get("order_id"),
				CustomerId:        row.Get("customer_id"),
				Status:            row.Get("order_status"),
				PurchaseTimestamp: timestamp,
			}, nil
		},
		im.Database.BatchInsertOrders)
}

func (im *Importer) ImportOrderItems(ctx context.Context, path string) (ImportStats, error) {
	return importTable(ctx, im, path,
		[]string{"order_id", "order_item_id", "product_id"},
		func(row csvRow) (data.OrderItem, error) {
			itemId, err := strconv.Atoi(row.Get("order_item_id"))
			if err != nil {
				return data.OrderItem{}, errors.Trace(err)
			}
			price, err := row.Float("price")
			if err != nil {
				return data.OrderItem{}, errors.Trace(err)
			}
			freight, err := row.Float("freight_value")
			if err != nil {
				return data.OrderItem{}, errors.Trace(err)
			}
			return data.OrderItem{
				OrderId:      row.Get("order_id"),
				OrderItemId:  itemId,
				ProductId:    row.Get("product_id"),
				SellerId:     row.Get("seller_id"),
				Price:        price,
				FreightValue: freight,
			}, nil
		},
		im.Database.BatchInsertOrderItems)
}

// csvRow reads fields of a record by column name.
type csvRow struct {
	columns map[string]int
	record  []string
}

func (r csvRow) Get(name string) string {
	if i, ok := r.columns[name]; ok && i < len(r.record) {
		return r.record[i]
	}
	return ""
}

func (r csvRow) Float(name string) (float64, error) {
	s := r.Get(name)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// importTable parses a CSV file with a header row and inserts rows in
// batches. Rows that fail to parse or lack a required field are skipped.
func importTable[T any](ctx context.Context, im *Importer, path string, required []string,
	parse func(csvRow) (T, error), insert func(context.Context, []T) error) (ImportStats, error) {
	var stats ImportStats
	file, err := os.Open(path)
	if err != nil {
		return stats, errors.Trace(err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return stats, errors.Trace(err)
	}
	var bar *progressbar.ProgressBar
	if im.Silent {
		bar = progressbar.DefaultBytesSilent(info.Size(), filepath.Base(path))
	} else {
		bar = progressbar.DefaultBytes(info.Size(), filepath.Base(path))
	}
	pbReader := progressbar.NewReader(file, bar)
	reader := csv.NewReader(&pbReader)
	reader.ReuseRecord = true

	// parse header
	header, err := reader.Read()
	if err != nil {
		return stats, errors.Annotate(err, "failed to read header")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[name] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return stats, errors.NotFoundf("column %s in %s", name, filepath.Base(path))
		}
	}

	batchSize := max(im.BatchSize, 1)
	batch := make([]T, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.retry(ctx, func() error { return insert(ctx, batch) }); err != nil {
			return errors.Trace(err)
		}
		stats.Inserted += len(batch)
		batch = batch[:0]
		return nil
	}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				log.Logger().Warn("skip malformed row", zap.String("file", path), zap.Int("line", line), zap.Error(err))
				stats.Skipped++
				continue
			}
			return stats, errors.Trace(err)
		}
		row := csvRow{columns: columns, record: record}
		if !hasFields(row, required) {
			stats.Skipped++
			continue
		}
		item, err := parse(row)
		if err != nil {
			log.Logger().Warn("skip invalid row", zap.String("file", path), zap.Int("line", line), zap.Error(err))
			stats.Skipped++
			continue
		}
		if batch = append(batch, item); len(batch) >= batchSize {
			if err = flush(); err != nil {
				return stats, err
			}
		}
	}
	if err = flush(); err != nil {
		return stats, err
	}
	_ = bar.Finish()
	return stats, nil
}

func hasFields(row csvRow, names []string) bool {
	for _, name := range names {
		if row.Get(name) == "" {
			return false
		}
	}
	return true
}

// retry runs a batch insert with exponential backoff. Context cancellation
// stops retrying.
func (im *Importer) retry(ctx context.Context, op func() error) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := op(); err != nil {
			if ctx.Err() != nil {
				return struct{}{}, backoff.Permanent(err)
			}
			log.Logger().Warn("failed to insert batch, retrying", zap.Error(err))
			return struct{}{}, err
		}
		return struct{}{}, nil
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(max(im.MaxTries, 1)))
	return err
}
