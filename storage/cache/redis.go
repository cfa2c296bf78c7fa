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

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Redis cache storage. Ranked lists are sorted sets whose scores are stored
// negated, so ZRANGE returns the highest scores first and breaks ties by
// ascending member.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Purge deletes all keys of this deployment.
func (r *Redis) Purge(ctx context.Context) error {
	for _, key := range []string{PopularProducts, PopularCategories, LastUpdatePopularTime} {
		if err := r.client.Del(ctx, r.Key(key)).Err(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Get returns a value from Redis.
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.Key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", errors.Annotate(ErrObjectNotExist, key)
		}
		return "", errors.Trace(err)
	}
	return val, nil
}

// Set stores a value in Redis.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	return errors.Trace(r.client.Set(ctx, r.Key(key), value, 0).Err())
}

// SetScores replaces scores in a sorted set atomically.
func (r *Redis) SetScores(ctx context.Context, key string, scores []Score) error {
	members := lo.Map(scores, func(score Score, _ int) redis.Z {
		return redis.Z{Member: score.Id, Score: -score.Score}
	})
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.Key(key))
		if len(members) > 0 {
			pipe.ZAdd(ctx, r.Key(key), members...)
		}
		return nil
	})
	return errors.Trace(err)
}

// GetScores returns the top n scores from a sorted set.
func (r *Redis) GetScores(ctx context.Context, key string, n int) ([]Score, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := r.client.ZRangeWithScores(ctx, r.Key(key), 0, int64(n-1)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Map(members, func(member redis.Z, _ int) Score {
		return Score{Id: member.Member.(string), Score: -member.Score}
	}), nil
}
