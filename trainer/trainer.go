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

package trainer

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/logics"
	"github.com/olist-intelligence/olist/model"
	"github.com/olist-intelligence/olist/model/cf"
	"github.com/olist-intelligence/olist/storage/blob"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Trainer builds a recommendation artifact from the purchase history.
type Trainer struct {
	Config      *config.Config
	DataClient  data.Database
	CacheClient cache.Database
	BlobStore   blob.Store
}

// Summary describes a training run.
type Summary struct {
	Customers    int
	Products     int
	Interactions int
	Factors      int
	Duration     time.Duration
	ArtifactSize int64
}

func NewTrainer(cfg *config.Config, dataClient data.Database, cacheClient cache.Database, blobStore blob.Store) *Trainer {
	if cacheClient == nil {
		cacheClient = cache.NoDatabase{}
	}
	return &Trainer{
		Config:      cfg,
		DataClient:  dataClient,
		CacheClient: cacheClient,
		BlobStore:   blobStore,
	}
}

// Train runs the whole job. Errors wrapping dataset.ErrDataIntegrity or dataset.ErrModelBuild
// abort the run before anything is written.
func (t *Trainer) Train(ctx context.Context) (*cf.Artifact, *Summary, error) {
	start := time.Now()
	trainSet, err := t.LoadDataset(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	log.Logger().Info("load dataset",
		zap.Int("n_customers", trainSet.CountCustomers()),
		zap.Int("n_products", trainSet.CountProducts()),
		zap.Int("n_interactions", trainSet.CountInteractions()))
	svd := cf.NewTruncatedSVD(model.NewParamsFromConfig(&t.Config.Recommend))
	artifact, err := svd.Fit(ctx, trainSet)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	size, err := t.SaveArtifact(artifact)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	if err = t.UpdatePopular(ctx); err != nil {
		// the artifact is already saved
		log.Logger().Error("failed to update popular items", zap.Error(err))
	}
	summary := &Summary{
		Customers:    trainSet.CountCustomers(),
		Products:     trainSet.CountProducts(),
		Interactions: trainSet.CountInteractions(),
		Factors:      artifact.NFactors(),
		Duration:     time.Since(start),
		ArtifactSize: size,
	}
	TrainSeconds.Set(summary.Duration.Seconds())
	ArtifactSizeBytes.Set(float64(size))
	InteractionsTotal.Set(float64(summary.Interactions))
	log.Logger().Info("complete training",
		zap.String("artifact", t.Config.Artifact.Name),
		zap.Int("n_customers", summary.Customers),
		zap.Int("n_products", summary.Products),
		zap.Int("n_interactions", summary.Interactions),
		zap.Int("n_factors", summary.Factors),
		zap.Duration("duration", summary.Duration),
		zap.Int64("artifact_size", summary.ArtifactSize))
	return artifact, summary, nil
}

// LoadDataset streams interactions from the data store into a dataset.
func (t *Trainer) LoadDataset(ctx context.Context) (*dataset.Dataset, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	builder := dataset.NewBuilder()
	interactionChan, errChan := t.DataClient.GetInteractionStream(ctx, t.Config.Recommend.BatchSize)
	for batch := range interactionChan {
		for _, interaction := range batch {
			if err := builder.Add(interaction); err != nil {
				cancel()
				// drain the stream so that the producer exits
				for range interactionChan {
				}
				return nil, errors.Trace(err)
			}
		}
		log.Logger().Debug("load interactions", zap.Int("n_interactions", builder.Count()))
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}
	return builder.Build()
}

// SaveArtifact writes an artifact to the blob store and returns its size.
func (t *Trainer) SaveArtifact(artifact *cf.Artifact) (int64, error) {
	w, done, err := t.BlobStore.Create(t.Config.Artifact.Name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	counter := &countingWriter{w: w}
	buf := bufio.NewWriter(counter)
	if err = cf.MarshalArtifact(buf, artifact); err == nil {
		err = buf.Flush()
	}
	if err != nil {
		if abortErr := blob.Abort(w, err); abortErr != nil {
			log.Logger().Error("failed to abort artifact write", zap.Error(abortErr))
		} else {
			<-done
		}
		return 0, errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return 0, errors.Trace(err)
	}
	if err = <-done; err != nil {
		return 0, errors.Trace(err)
	}
	return counter.n, nil
}

// UpdatePopular refreshes the popularity lists in the cache store. The window ends at the
// latest purchase.
func (t *Trainer) UpdatePopular(ctx context.Context) error {
	if _, ok := t.CacheClient.(cache.NoDatabase); ok {
		return nil
	}
	begin, err := logics.PopularBegin(ctx, t.DataClient, t.Config.Recommend.PopularWindow)
	if err != nil {
		return errors.Trace(err)
	}
	n := t.Config.Recommend.PopularCacheSize
	products, err := t.DataClient.GetPopularProducts(ctx, n, begin, nil)
	if err != nil {
		return errors.Trace(err)
	}
	categories, err := t.DataClient.GetPopularCategories(ctx, n, begin, nil)
	if err != nil {
		return errors.Trace(err)
	}
	if err = t.CacheClient.SetScores(ctx, cache.PopularProducts, lo.Map(products, toCacheScore)); err != nil {
		return errors.Trace(err)
	}
	if err = t.CacheClient.SetScores(ctx, cache.PopularCategories, lo.Map(categories, toCacheScore)); err != nil {
		return errors.Trace(err)
	}
	if err = t.CacheClient.Set(ctx, cache.LastUpdatePopularTime, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("update popular items",
		zap.Int("n_products", len(products)),
		zap.Int("n_categories", len(categories)))
	return nil
}

func toCacheScore(score data.Score, _ int) cache.Score {
	return cache.Score{Id: score.Id, Score: score.Score}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
