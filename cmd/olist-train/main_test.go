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

package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/storage"
	"github.com/olist-intelligence/olist/storage/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitDataIntegrity, exitCode(errors.Trace(errors.WithType(errors.New("duplicate"), dataset.ErrDataIntegrity))))
	assert.Equal(t, exitModelBuild, exitCode(errors.Annotate(errors.WithType(errors.New("empty"), dataset.ErrModelBuild), "train")))
	assert.Equal(t, exitFailure, exitCode(errors.New("connection refused")))
}

func TestTrainEmpty(t *testing.T) {
	dir := t.TempDir()
	conf := config.GetDefaultConfig()
	conf.Database.DataStore = storage.SQLitePrefix + filepath.Join(dir, "olist.db")
	conf.Artifact.Store = filepath.Join(dir, "artifacts")
	db, err := data.Open(conf.Database.DataStore)
	require.NoError(t, err)
	require.NoError(t, db.Init())
	require.NoError(t, db.Close())

	err = train(context.Background(), conf)
	assert.Equal(t, exitModelBuild, exitCode(err))
}
