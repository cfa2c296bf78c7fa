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
	"bufio"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/log"
	"github.com/olist-intelligence/olist/model/cf"
	"github.com/olist-intelligence/olist/storage/blob"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ModelHandle owns the artifact used for serving. Readers get either the previous
// artifact or the new one, never a mix of both.
type ModelHandle struct {
	mu       sync.Mutex
	artifact atomic.Pointer[cf.Artifact]
	modTime  atomic.Time
	store    blob.Store
	name     string
}

// NewModelHandle creates a handle loading the artifact named name from store. The store
// may be nil if artifacts are only set with Store.
func NewModelHandle(store blob.Store, name string) *ModelHandle {
	return &ModelHandle{store: store, name: name}
}

// Load returns the current artifact or nil if none is loaded.
func (h *ModelHandle) Load() *cf.Artifact {
	return h.artifact.Load()
}

// Store replaces the current artifact.
func (h *ModelHandle) Store(artifact *cf.Artifact) {
	h.artifact.Store(artifact)
	if artifact != nil {
		ArtifactTimestamp.Set(float64(artifact.Meta().Timestamp.Unix()))
		ArtifactCustomers.Set(float64(artifact.CountCustomers()))
		ArtifactProducts.Set(float64(artifact.CountProducts()))
	}
}

// Reset drops the current artifact.
func (h *ModelHandle) Reset() {
	h.artifact.Store(nil)
	h.modTime.Store(time.Time{})
	ArtifactTimestamp.Set(0)
	ArtifactCustomers.Set(0)
	ArtifactProducts.Set(0)
}

// Reload loads the artifact from the blob store if it changed since the last load. It
// returns true if a new artifact was swapped in. The current artifact is kept on failure.
func (h *ModelHandle) Reload() (bool, error) {
	if h.store == nil {
		return false, errors.NotAssignedf("artifact store")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	modTime, err := h.store.ModTime(h.name)
	if err != nil {
		LoadArtifactFailuresTotal.Inc()
		return false, errors.Trace(err)
	}
	if h.artifact.Load() != nil && modTime.Equal(h.modTime.Load()) {
		return false, nil
	}
	if err = h.load(); err != nil {
		return false, errors.Trace(err)
	}
	h.modTime.Store(modTime)
	return true, nil
}

func (h *ModelHandle) load() error {
	artifact, err := h.read()
	if err != nil {
		LoadArtifactFailuresTotal.Inc()
		return errors.Annotatef(err, "failed to load artifact %s", h.name)
	}
	h.Store(artifact)
	meta := artifact.Meta()
	log.Logger().Info("artifact loaded",
		zap.String("name", h.name),
		zap.Time("timestamp", meta.Timestamp),
		zap.Int("n_factors", meta.NFactors),
		zap.Int("n_customers", artifact.CountCustomers()),
		zap.Int("n_products", artifact.CountProducts()))
	return nil
}

// read decodes the artifact blob. A panic while decoding is returned as an error.
func (h *ModelHandle) read() (artifact *cf.Artifact, err error) {
	r, err := h.store.Open(h.name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer r.Close()
	defer func() {
		if p := recover(); p != nil {
			artifact, err = nil, errors.Errorf("panic while decoding artifact: %v", p)
		}
	}()
	artifact, err = cf.UnmarshalArtifact(bufio.NewReader(r))
	return artifact, errors.Trace(err)
}
