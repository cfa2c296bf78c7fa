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

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/logics"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/blob"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/emicklei/go-restful/otelrestful"
	"go.uber.org/zap"
)

// Server serves recommendations from the latest artifact.
type Server struct {
	RestServer
	DataClient  data.Database
	CacheClient cache.Database
	BlobStore   blob.Store
	httpServer  *http.Server
}

// NewServer opens the stores and assembles the fallback chain.
func NewServer(cfg *config.Config) (*Server, error) {
	dataClient, err := data.Open(cfg.Database.DataStore,
		storage.WithTablePrefix(cfg.Database.TablePrefix),
		storage.WithMaxOpenConns(cfg.Database.MaxOpenConns),
		storage.WithMaxIdleConns(cfg.Database.MaxIdleConns),
		storage.WithConnMaxLifetime(cfg.Database.ConnMaxLifetime))
	if err != nil {
		return nil, errors.Annotatef(err, "failed to connect data store %s", log.RedactDBURL(cfg.Database.DataStore))
	}
	var cacheClient cache.Database = cache.NoDatabase{}
	if cfg.Database.CacheStore != "" {
		cacheClient, err = cache.Open(cfg.Database.CacheStore, cfg.Database.TablePrefix)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to connect cache store %s", log.RedactDBURL(cfg.Database.CacheStore))
		}
	}
	blobStore, err := blob.Open(cfg.Artifact)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return NewServerWithStores(cfg, dataClient, cacheClient, blobStore), nil
}

// NewServerWithStores creates a server on top of opened stores.
func NewServerWithStores(cfg *config.Config, dataClient data.Database, cacheClient cache.Database, blobStore blob.Store) *Server {
	var sources logics.PopularityChain
	if _, ok := cacheClient.(cache.NoDatabase); !ok {
		sources = append(sources, logics.NewRedisPopularity(cacheClient, cfg.Recommend.PopularSource))
	}
	sources = append(sources, logics.NewSQLPopularity(dataClient, cfg.Recommend.PopularSource, cfg.Recommend.PopularWindow))
	popular := logics.NewCachedPopularity(sources, cfg.Recommend.PopularCacheTTL, uint64(cfg.Recommend.PopularCacheSize))
	handle := logics.NewModelHandle(blobStore, cfg.Artifact.Name)
	return &Server{
		RestServer: RestServer{
			Config:     cfg,
			Handle:     handle,
			Popular:    popular,
			Ranker:     logics.NewDefaultRanker(handle, popular, cfg.Server.PopularTimeout, cfg.Recommend.GetStaticFallback()),
			WebService: new(restful.WebService),
		},
		DataClient:  dataClient,
		CacheClient: cacheClient,
		BlobStore:   blobStore,
	}
}

// LoadArtifact loads the artifact at startup. A missing or broken artifact leaves the server
// without a model so that only fallbacks are served.
func (s *Server) LoadArtifact() {
	if _, err := s.Reload(); err != nil {
		log.Logger().Warn("no artifact loaded, serving fallbacks only",
			zap.String("name", s.Config.Artifact.Name), zap.Error(err))
	}
}

// Handler creates the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	s.CreateWebService()
	container := restful.NewContainer()
	container.Filter(otelrestful.OTelFilter("olist-server"))
	container.Add(s.WebService)
	specConfig := restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
	container.Add(restfulspec.NewOpenAPIService(specConfig))
	container.Handle("/metrics", promhttp.Handler())
	return container
}

// Serve starts the server and blocks until it is shut down.
func (s *Server) Serve(ctx context.Context) error {
	s.LoadArtifact()
	go s.Watch(ctx)
	addr := fmt.Sprintf("%s:%d", s.Config.Server.Host, s.Config.Server.Port)
	s.httpServer = &http.Server{Addr: addr, Handler: s.Handler()}
	log.Logger().Info("start http server", zap.String("url", "http://"+addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Trace(err)
	}
	return nil
}

// Watch reloads the artifact periodically until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	if s.Config.Artifact.ReloadPeriod <= 0 {
		return
	}
	ticker := time.NewTicker(s.Config.Artifact.ReloadPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swapped, err := s.Reload()
			if err != nil {
				ReloadArtifactTotal.WithLabelValues("failure").Inc()
				log.Logger().Warn("failed to reload artifact", zap.Error(err))
			} else if swapped {
				ReloadArtifactTotal.WithLabelValues("success").Inc()
			}
		}
	}
}

// Shutdown stops the HTTP server and closes the stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return errors.Trace(err)
		}
	}
	if err := s.DataClient.Close(); err != nil {
		return errors.Trace(err)
	}
	if _, ok := s.CacheClient.(cache.NoDatabase); !ok {
		if err := s.CacheClient.Close(); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
