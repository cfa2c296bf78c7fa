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

package cache

import (
	"context"
	"strings"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/storage"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

const (
	// PopularProducts is the sorted set of the most purchased products.
	PopularProducts = "popular_products"
	// PopularCategories is the sorted set of the most purchased categories.
	PopularCategories = "popular_categories"
	// LastUpdatePopularTime is the time popularity lists were refreshed.
	LastUpdatePopularTime = "last_update_popular_time"
)

var (
	ErrObjectNotExist = errors.NotFoundf("object")
	ErrNoDatabase     = errors.NotAssignedf("cache database")
)

// Score is an identifier with its score.
type Score struct {
	Id    string
	Score float64
}

type Database interface {
	Ping(ctx context.Context) error
	Close() error
	Purge(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetScores replaces a ranked list. The order of scores is kept on read.
	SetScores(ctx context.Context, key string, scores []Score) error
	// GetScores returns the first n entries of a ranked list.
	GetScores(ctx context.Context, key string, n int) ([]Score, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	if strings.HasPrefix(path, storage.RedisPrefix) || strings.HasPrefix(path, storage.RedissPrefix) {
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	}
	return nil, errors.Errorf("Unknown database: %s", path)
}
