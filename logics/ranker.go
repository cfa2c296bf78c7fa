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
	"math"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/heap"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	MethodPersonalized = "personalized_svd"
	MethodPopularity   = "popularity_fallback (User Unknown)"
	MethodStatic       = "static_fallback"
)

// ErrNextTier is returned by a tier that has no answer for a request.
const ErrNextTier = errors.ConstError("next tier")

// Request asks for the top k products of a customer. Begin and End bound the popularity
// ranking used by fallbacks.
type Request struct {
	CustomerId string
	TopK       int
	Begin      *time.Time
	End        *time.Time
}

// Result is a ranked recommendation list.
type Result struct {
	CustomerId      string   `json:"customer_id"`
	Recommendations []string `json:"recommendations"`
	Method          string   `json:"method"`
}

// Tier is one step of the fallback chain. It returns at most TopK products or ErrNextTier.
// Any other error or panic is treated as a fault and also moves on to the next tier.
type Tier interface {
	Method() string
	Recommend(ctx context.Context, req Request) ([]string, error)
}

// Ranker tries its tiers in order until one of them answers.
type Ranker struct {
	tiers []Tier
}

func NewRanker(tiers ...Tier) *Ranker {
	return &Ranker{tiers: tiers}
}

// NewDefaultRanker creates the personalized, popularity and static chain.
func NewDefaultRanker(handle *ModelHandle, popular PopularitySource, timeout time.Duration, static []string) *Ranker {
	return NewRanker(
		NewPersonalizedTier(handle),
		NewPopularityTier(popular, timeout),
		NewStaticTier(static),
	)
}

// Recommend ranks products for a customer. It only fails on top_k <= 0.
func (r *Ranker) Recommend(ctx context.Context, req Request) (*Result, error) {
	if req.TopK <= 0 {
		return nil, errors.NotValidf("top_k %d, it must be positive", req.TopK)
	}
	for _, tier := range r.tiers {
		items, err := r.try(ctx, tier, req)
		if err == nil {
			RecommendTotal.WithLabelValues(tier.Method()).Inc()
			return &Result{CustomerId: req.CustomerId, Recommendations: items, Method: tier.Method()}, nil
		}
		if !errors.Is(err, ErrNextTier) {
			RankerFaultsTotal.WithLabelValues(tier.Method()).Inc()
			log.Logger().Warn("recommendation tier failed",
				zap.String("method", tier.Method()),
				zap.String("customer_id", req.CustomerId),
				zap.Error(err))
		}
	}
	RecommendTotal.WithLabelValues(MethodStatic).Inc()
	return &Result{
		CustomerId:      req.CustomerId,
		Recommendations: truncate(config.DefaultStaticFallback, req.TopK),
		Method:          MethodStatic,
	}, nil
}

func (r *Ranker) try(ctx context.Context, tier Tier, req Request) (items []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("panic: %v", p)
		}
	}()
	items, err = tier.Recommend(ctx, req)
	if err == nil && len(items) == 0 {
		return nil, ErrNextTier
	}
	if len(items) > req.TopK {
		items = items[:req.TopK]
	}
	return items, err
}

// PersonalizedTier scores every product with the latent factors of a known customer.
type PersonalizedTier struct {
	handle *ModelHandle
}

func NewPersonalizedTier(handle *ModelHandle) *PersonalizedTier {
	return &PersonalizedTier{handle: handle}
}

func (t *PersonalizedTier) Method() string {
	return MethodPersonalized
}

func (t *PersonalizedTier) Recommend(_ context.Context, req Request) ([]string, error) {
	artifact := t.handle.Load()
	if artifact == nil {
		return nil, ErrNextTier
	}
	customerIndex := artifact.CustomerIndex(req.CustomerId)
	if customerIndex == dataset.NotId {
		return nil, ErrNextTier
	}
	scores, err := artifact.Score(customerIndex)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(scores) != artifact.CountProducts() {
		return nil, errors.NotValidf("%d scores for %d products", len(scores), artifact.CountProducts())
	}
	for i, score := range scores {
		if math.IsNaN(score) {
			return nil, errors.NotValidf("score of product %d", i)
		}
	}
	indices := heap.TopK(scores, req.TopK)
	items := make([]string, 0, len(indices))
	for _, index := range indices {
		productId, ok := artifact.ProductId(index)
		if !ok {
			return nil, errors.NotFoundf("product index %d", index)
		}
		items = append(items, productId)
	}
	return items, nil
}

// PopularityTier returns the most purchased products or categories.
type PopularityTier struct {
	source  PopularitySource
	timeout time.Duration
}

func NewPopularityTier(source PopularitySource, timeout time.Duration) *PopularityTier {
	return &PopularityTier{source: source, timeout: timeout}
}

func (t *PopularityTier) Method() string {
	return MethodPopularity
}

func (t *PopularityTier) Recommend(ctx context.Context, req Request) ([]string, error) {
	if t.source == nil {
		return nil, ErrNextTier
	}
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	type response struct {
		items []string
		err   error
	}
	c := make(chan response, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				c <- response{err: errors.Errorf("panic: %v", p)}
			}
		}()
		items, err := t.source.Popular(ctx, req.TopK, req.Begin, req.End)
		c <- response{items: items, err: err}
	}()
	select {
	case resp := <-c:
		if resp.err != nil {
			return nil, errors.Annotate(resp.err, "failed to load popular items")
		}
		return truncate(resp.items, req.TopK), nil
	case <-ctx.Done():
		return nil, errors.Annotate(ctx.Err(), "failed to load popular items")
	}
}

// StaticTier returns a fixed list.
type StaticTier struct {
	items []string
}

func NewStaticTier(items []string) *StaticTier {
	return &StaticTier{items: items}
}

func (t *StaticTier) Method() string {
	return MethodStatic
}

func (t *StaticTier) Recommend(_ context.Context, req Request) ([]string, error) {
	return truncate(t.items, req.TopK), nil
}

func truncate(items []string, n int) []string {
	items = lo.Uniq(items)
	if len(items) > n {
		items = items[:n]
	}
	return items
}
