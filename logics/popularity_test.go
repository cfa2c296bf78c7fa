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

package logics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(month, day int) time.Time {
	return time.Date(2018, time.Month(month), day, 12, 0, 0, 0, time.UTC)
}

func newDataStore(t *testing.T) data.Database {
	ctx := context.Background()
	db, err := data.Open(storage.SQLitePrefix + filepath.Join(t.TempDir(), "olist.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, db.Close())
	})
	require.NoError(t, db.Init())
	require.NoError(t, db.BatchInsertCustomers(ctx, []data.Customer{
		{CustomerId: "c1", CustomerUniqueId: "u1"},
		{CustomerId: "c2", CustomerUniqueId: "u2"},
		{CustomerId: "c3", CustomerUniqueId: "u3"},
	}))
	require.NoError(t, db.BatchInsertProducts(ctx, []data.Product{
		{ProductId: "p1", CategoryName: "beleza_saude"},
		{ProductId: "p2", CategoryName: "esporte_lazer"},
		{ProductId: "p3", CategoryName: "esporte_lazer"},
	}))
	require.NoError(t, db.BatchInsertOrders(ctx, []data.Order{
		{OrderId: "o1", CustomerId: "c1", PurchaseTimestamp: date(1, 10)},
		{OrderId: "o2", CustomerId: "c2", PurchaseTimestamp: date(6, 10)},
		{OrderId: "o3", CustomerId: "c3", PurchaseTimestamp: date(6, 20)},
	}))
	require.NoError(t, db.BatchInsertOrderItems(ctx, []data.OrderItem{
		{OrderId: "o1", OrderItemId: 1, ProductId: "p1"},
		{OrderId: "o1", OrderItemId: 2, ProductId: "p1"},
		{OrderId: "o1", OrderItemId: 3, ProductId: "p1"},
		{OrderId: "o2", OrderItemId: 1, ProductId: "p2"},
		{OrderId: "o3", OrderItemId: 1, ProductId: "p2"},
		{OrderId: "o3", OrderItemId: 2, ProductId: "p3"},
	}))
	return db
}

func TestSQLPopularity(t *testing.T) {
	ctx := context.Background()
	db := newDataStore(t)

	products := NewSQLPopularity(db, config.PopularSourceProducts, 0)
	items, err := products.Popular(ctx, 10, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, items)
	items, err = products.Popular(ctx, 1, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, items)
	begin := date(6, 1)
	items, err = products.Popular(ctx, 10, &begin, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, items)

	categories := NewSQLPopularity(db, config.PopularSourceCategories, 0)
	items, err = categories.Popular(ctx, 10, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"beleza_saude", "esporte_lazer"}, items)

	// window ends at the latest purchase
	windowed := NewSQLPopularity(db, config.PopularSourceCategories, 30*24*time.Hour)
	items, err = windowed.Popular(ctx, 10, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"esporte_lazer"}, items)
}

func TestPopularBegin(t *testing.T) {
	ctx := context.Background()
	db := newDataStore(t)
	begin, err := PopularBegin(ctx, db, 0)
	assert.NoError(t, err)
	assert.Nil(t, begin)
	begin, err = PopularBegin(ctx, db, 24*time.Hour)
	assert.NoError(t, err)
	require.NotNil(t, begin)
	assert.True(t, date(6, 19).Equal(*begin))

	// no purchases
	require.NoError(t, db.Purge())
	begin, err = PopularBegin(ctx, db, 24*time.Hour)
	assert.NoError(t, err)
	assert.Nil(t, begin)
}

func TestRedisPopularity(t *testing.T) {
	ctx := context.Background()
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	client, err := cache.Open(storage.RedisPrefix+server.Addr(), "")
	require.NoError(t, err)
	defer client.Close()

	popular := NewRedisPopularity(client, config.PopularSourceProducts)
	items, err := popular.Popular(ctx, 10, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, client.SetScores(ctx, cache.PopularProducts, []cache.Score{
		{Id: "p2", Score: 5}, {Id: "p1", Score: 5}, {Id: "p3", Score: 1},
	}))
	items, err = popular.Popular(ctx, 2, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, items)

	begin := date(1, 1)
	_, err = popular.Popular(ctx, 2, &begin, nil)
	assert.True(t, errors.Is(err, errors.NotSupported))
}

func TestPopularityChain(t *testing.T) {
	ctx := context.Background()
	failing := &mockPopularity{err: errors.New("failed")}
	empty := &mockPopularity{}
	popular := &mockPopularity{items: []string{"p1"}}

	items, err := PopularityChain{failing, empty, popular}.Popular(ctx, 5, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, items)

	items, err = PopularityChain{empty}.Popular(ctx, 5, nil, nil)
	assert.NoError(t, err)
	assert.Empty(t, items)

	_, err = PopularityChain{empty, failing}.Popular(ctx, 5, nil, nil)
	assert.Error(t, err)
}

func TestCachedPopularity(t *testing.T) {
	ctx := context.Background()
	source := &mockPopularity{items: []string{"p1", "p2"}}
	cached := NewCachedPopularity(source, time.Minute, 16)

	for i := 0; i < 3; i++ {
		items, err := cached.Popular(ctx, 2, nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, []string{"p1", "p2"}, items)
	}
	assert.Equal(t, 1, source.calls)

	// different bounds are cached separately
	begin := date(1, 1)
	_, err := cached.Popular(ctx, 2, &begin, nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, source.calls)

	cached.Purge()
	_, err = cached.Popular(ctx, 2, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, 3, source.calls)

	// errors are not cached
	source.err = errors.New("failed")
	cached.Purge()
	_, err = cached.Popular(ctx, 2, nil, nil)
	assert.Error(t, err)
	_, err = cached.Popular(ctx, 2, nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 5, source.calls)
}
