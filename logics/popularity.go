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
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/samber/lo"
)

// PopularitySource ranks products or categories by the number of purchases within
// [begin, end). Both bounds are optional. An empty list is a valid answer.
type PopularitySource interface {
	Popular(ctx context.Context, n int, begin, end *time.Time) ([]string, error)
}

// PopularBegin returns the start of the popularity window ending at the latest purchase.
// It returns nil if the window is unbounded or there is no purchase yet.
func PopularBegin(ctx context.Context, db data.Database, window time.Duration) (*time.Time, error) {
	if window <= 0 {
		return nil, nil
	}
	_, last, err := db.GetDateRange(ctx)
	if errors.Is(err, errors.NotFound) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Trace(err)
	}
	begin := last.Add(-window)
	return &begin, nil
}

// SQLPopularity queries the data store.
type SQLPopularity struct {
	db     data.Database
	source string
	window time.Duration
}

func NewSQLPopularity(db data.Database, source string, window time.Duration) *SQLPopularity {
	return &SQLPopularity{db: db, source: source, window: window}
}

func (p *SQLPopularity) Popular(ctx context.Context, n int, begin, end *time.Time) ([]string, error) {
	start := time.Now()
	defer func() {
		PopularitySeconds.WithLabelValues("sql").Observe(time.Since(start).Seconds())
	}()
	if begin == nil && end == nil {
		var err error
		if begin, err = PopularBegin(ctx, p.db, p.window); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var (
		scores []data.Score
		err    error
	)
	switch p.source {
	case config.PopularSourceCategories:
		scores, err = p.db.GetPopularCategories(ctx, n, begin, end)
	default:
		scores, err = p.db.GetPopularProducts(ctx, n, begin, end)
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(scores, func(score data.Score, _ int) string {
		return score.Id
	}), nil
}

// RedisPopularity reads the ranked list refreshed by the training job. It only covers the
// default window, so requests with explicit bounds are not supported.
type RedisPopularity struct {
	cache cache.Database
	key   string
}

func NewRedisPopularity(cacheClient cache.Database, source string) *RedisPopularity {
	return &RedisPopularity{cache: cacheClient, key: PopularKey(source)}
}

// PopularKey returns the cache key of a popularity source.
func PopularKey(source string) string {
	if source == config.PopularSourceCategories {
		return cache.PopularCategories
	}
	return cache.PopularProducts
}

func (p *RedisPopularity) Popular(ctx context.Context, n int, begin, end *time.Time) ([]string, error) {
	if begin != nil || end != nil {
		return nil, errors.NotSupportedf("popularity within a date range from cache")
	}
	start := time.Now()
	defer func() {
		PopularitySeconds.WithLabelValues("cache").Observe(time.Since(start).Seconds())
	}()
	scores, err := p.cache.GetScores(ctx, p.key, n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(scores, func(score cache.Score, _ int) string {
		return score.Id
	}), nil
}

// PopularityChain returns the first non-empty answer of its sources.
type PopularityChain []PopularitySource

func (c PopularityChain) Popular(ctx context.Context, n int, begin, end *time.Time) ([]string, error) {
	var lastErr error
	for _, source := range c {
		items, err := source.Popular(ctx, n, begin, end)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > 0 {
			return items, nil
		}
	}
	if lastErr != nil {
		return nil, errors.Trace(lastErr)
	}
	return nil, nil
}

// CachedPopularity keeps answers of a source in memory for a while. Errors and empty
// answers are not cached.
type CachedPopularity struct {
	source PopularitySource
	cache  *ttlcache.Cache[string, []string]
}

func NewCachedPopularity(source PopularitySource, ttl time.Duration, capacity uint64) *CachedPopularity {
	return &CachedPopularity{
		source: source,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, []string](ttl),
			ttlcache.WithCapacity[string, []string](capacity),
			ttlcache.WithDisableTouchOnHit[string, []string](),
		),
	}
}

func (c *CachedPopularity) Popular(ctx context.Context, n int, begin, end *time.Time) ([]string, error) {
	key := fmt.Sprintf("%d/%s/%s", n, formatBound(begin), formatBound(end))
	if item := c.cache.Get(key); item != nil {
		return item.Value(), nil
	}
	items, err := c.source.Popular(ctx, n, begin, end)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(items) > 0 {
		c.cache.Set(key, items, ttlcache.DefaultTTL)
	}
	return items, nil
}

// Purge drops all cached answers.
func (c *CachedPopularity) Purge() {
	c.cache.DeleteAll()
}

func formatBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
