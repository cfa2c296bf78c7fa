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

	"github.com/olist-intelligence/olist/dataset"
)

// NoDatabase means that no database used.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertCustomers(_ context.Context, _ []Customer) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertProducts(_ context.Context, _ []Product) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertOrders(_ context.Context, _ []Order) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertOrderItems(_ context.Context, _ []OrderItem) error {
	return ErrNoDatabase
}

func (NoDatabase) GetInteractionStream(_ context.Context, _ int) (chan []dataset.Interaction, chan error) {
	interactionChan := make(chan []dataset.Interaction, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(interactionChan)
		defer close(errChan)
		errChan <- ErrNoDatabase
	}()
	return interactionChan, errChan
}

func (NoDatabase) GetPopularProducts(_ context.Context, _ int, _, _ *time.Time) ([]Score, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetPopularCategories(_ context.Context, _ int, _, _ *time.Time) ([]Score, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetDateRange(_ context.Context) (time.Time, time.Time, error) {
	return time.Time{}, time.Time{}, ErrNoDatabase
}
