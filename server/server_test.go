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
	"path/filepath"
	"testing"
	"time"

	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaultConfig()
	cfg.Database.DataStore = storage.SQLitePrefix + filepath.Join(dir, "olist.db")
	cfg.Artifact.Store = filepath.Join(dir, "artifacts")
	s, err := NewServer(cfg)
	require.NoError(t, err)
	assert.IsType(t, cache.NoDatabase{}, s.CacheClient)

	// missing artifact is not fatal
	s.LoadArtifact()
	assert.Nil(t, s.Handle.Load())
	assert.NoError(t, s.Shutdown(context.Background()))

	// unknown data store
	cfg.Database.DataStore = "unknown://"
	_, err = NewServer(cfg)
	assert.Error(t, err)
}

func (suite *ServerTestSuite) TestWatch() {
	suite.Config.Artifact.ReloadPeriod = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go suite.Watch(ctx)
	suite.saveArtifact()
	suite.Eventually(func() bool {
		return suite.Handle.Load() != nil
	}, 5*time.Second, 10*time.Millisecond)
}
