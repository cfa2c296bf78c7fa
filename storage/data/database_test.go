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
	"time"

	"github.com/jaswdr/faker"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func date(month, day int) time.Time {
	return time.Date(2018, time.Month(month), day, 12, 0, 0, 0, time.UTC)
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *baseTestSuite) insertOrders() {
	ctx := context.Background()
	fake := faker.New()
	customers := []Customer{
		{CustomerId: "c1", CustomerUniqueId: "u1"},
		{CustomerId: "c2", CustomerUniqueId: "u1"},
		{CustomerId: "c3", CustomerUniqueId: "u2"},
		{CustomerId: "c4", CustomerUniqueId: "u3"},
	}
	for i := range customers {
		customers[i].City = fake.Address().City()
		customers[i].ZipCodePrefix = fake.Address().PostCode()
	}
	suite.NoError(suite.BatchInsertCustomers(ctx, customers))
	suite.NoError(suite.BatchInsertProducts(ctx, []Product{
		{ProductId: "p1", CategoryName: "beleza_saude"},
		{ProductId: "p2", CategoryName: "esporte_lazer"},
		{ProductId: "p3"},
	}))
	suite.NoError(suite.BatchInsertOrders(ctx, []Order{
		{OrderId: "o1", CustomerId: "c1", Status: "delivered", PurchaseTimestamp: date(1, 10)},
		{OrderId: "o2", CustomerId: "c2", Status: "delivered", PurchaseTimestamp: date(2, 10)},
		{OrderId: "o3", CustomerId: "c3", Status: "shipped", PurchaseTimestamp: date(3, 10)},
		{OrderId: "o4", CustomerId: "c4", Status: "delivered", PurchaseTimestamp: date(4, 10)},
	}))
	suite.NoError(suite.BatchInsertOrderItems(ctx, []OrderItem{
		{OrderId: "o1", OrderItemId: 1, ProductId: "p1", Price: 10},
		{OrderId: "o1", OrderItemId: 2, ProductId: "p1", Price: 10},
		{OrderId: "o1", OrderItemId: 3, ProductId: "p2", Price: 25},
		{OrderId: "o2", OrderItemId: 1, ProductId: "p1", Price: 10},
		{OrderId: "o3", OrderItemId: 1, ProductId: "p2", Price: 25},
		{OrderId: "o3", OrderItemId: 2, ProductId: "p3", Price: 99.9},
		{OrderId: "o4", OrderItemId: 1, ProductId: "p2", Price: 25},
	}))
}

func (suite *baseTestSuite) TestInteractionStream() {
	suite.insertOrders()
	interactionChan, errChan := suite.GetInteractionStream(context.Background(), 2)
	var batches [][]dataset.Interaction
	var interactions []dataset.Interaction
	for batch := range interactionChan {
		batches = append(batches, batch)
		interactions = append(interactions, batch...)
	}
	suite.NoError(<-errChan)
	suite.Len(batches, 3)
	suite.Equal([]dataset.Interaction{
		{CustomerId: "u1", ProductId: "p1", Count: 3},
		{CustomerId: "u1", ProductId: "p2", Count: 1},
		{CustomerId: "u2", ProductId: "p2", Count: 1},
		{CustomerId: "u2", ProductId: "p3", Count: 1},
		{CustomerId: "u3", ProductId: "p2", Count: 1},
	}, interactions)
}

func (suite *baseTestSuite) TestEmptyInteractionStream() {
	interactionChan, errChan := suite.GetInteractionStream(context.Background(), 10)
	count := 0
	for batch := range interactionChan {
		count += len(batch)
	}
	suite.NoError(<-errChan)
	suite.Zero(count)
}

func (suite *baseTestSuite) TestPopularProducts() {
	suite.insertOrders()
	ctx := context.Background()
	scores, err := suite.GetPopularProducts(ctx, 10, nil, nil)
	suite.NoError(err)
	suite.Equal([]Score{{"p1", 3}, {"p2", 3}, {"p3", 1}}, scores)
	// limit
	scores, err = suite.GetPopularProducts(ctx, 1, nil, nil)
	suite.NoError(err)
	suite.Equal([]Score{{"p1", 3}}, scores)
	// time range
	begin := date(3, 1)
	scores, err = suite.GetPopularProducts(ctx, 10, &begin, nil)
	suite.NoError(err)
	suite.Equal([]Score{{"p2", 2}, {"p3", 1}}, scores)
	end := date(4, 10)
	scores, err = suite.GetPopularProducts(ctx, 10, &begin, &end)
	suite.NoError(err)
	suite.Equal([]Score{{"p2", 1}, {"p3", 1}}, scores)
}

func (suite *baseTestSuite) TestPopularCategories() {
	suite.insertOrders()
	ctx := context.Background()
	scores, err := suite.GetPopularCategories(ctx, 10, nil, nil)
	suite.NoError(err)
	suite.Equal([]Score{{"beleza_saude", 3}, {"esporte_lazer", 3}}, scores)
	end := date(2, 1)
	scores, err = suite.GetPopularCategories(ctx, 10, nil, &end)
	suite.NoError(err)
	suite.Equal([]Score{{"beleza_saude", 2}, {"esporte_lazer", 1}}, scores)
	// nothing purchased
	begin := date(12, 1)
	scores, err = suite.GetPopularCategories(ctx, 10, &begin, nil)
	suite.NoError(err)
	suite.Empty(scores)
}

func (suite *baseTestSuite) TestDateRange() {
	ctx := context.Background()
	_, _, err := suite.GetDateRange(ctx)
	suite.True(errors.Is(err, errors.NotFound))
	suite.insertOrders()
	first, last, err := suite.GetDateRange(ctx)
	suite.NoError(err)
	suite.True(date(1, 10).Equal(first), first)
	suite.True(date(4, 10).Equal(last), last)
}

func (suite *baseTestSuite) TestUpsert() {
	suite.insertOrders()
	ctx := context.Background()
	// moving an item to another product replaces the row
	suite.NoError(suite.BatchInsertOrderItems(ctx, []OrderItem{
		{OrderId: "o4", OrderItemId: 1, ProductId: "p3", Price: 99.9},
	}))
	scores, err := suite.GetPopularProducts(ctx, 10, nil, nil)
	suite.NoError(err)
	suite.Equal([]Score{{"p1", 3}, {"p2", 2}, {"p3", 2}}, scores)
	// empty batches are ignored
	suite.NoError(suite.BatchInsertCustomers(ctx, nil))
	suite.NoError(suite.BatchInsertProducts(ctx, nil))
	suite.NoError(suite.BatchInsertOrders(ctx, nil))
	suite.NoError(suite.BatchInsertOrderItems(ctx, nil))
}

func (suite *baseTestSuite) TestPing() {
	suite.NoError(suite.Database.Ping())
}
