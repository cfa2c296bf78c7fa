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
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/base/encoding"
	"github.com/olist-intelligence/olist/dataset"
	"github.com/olist-intelligence/olist/model/cf"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/olist-intelligence/olist/storage/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saveArtifact(t *testing.T, store blob.Store, name string, artifact *cf.Artifact) {
	w, done, err := store.Create(name)
	require.NoError(t, err)
	require.NoError(t, cf.MarshalArtifact(w, artifact))
	require.NoError(t, w.Close())
	require.NoError(t, <-done)
}

func TestModelHandle(t *testing.T) {
	dir := t.TempDir()
	store := blob.NewPOSIX(dir)
	handle := NewModelHandle(store, "recommender")
	assert.Nil(t, handle.Load())

	// missing artifact
	swapped, err := handle.Reload()
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.False(t, swapped)
	assert.Nil(t, handle.Load())

	// load artifact
	saveArtifact(t, store, "recommender", newABCArtifact(t))
	swapped, err = handle.Reload()
	assert.NoError(t, err)
	assert.True(t, swapped)
	artifact := handle.Load()
	require.NotNil(t, artifact)
	assert.Equal(t, 3, artifact.CountProducts())

	// unchanged artifact
	swapped, err = handle.Reload()
	assert.NoError(t, err)
	assert.False(t, swapped)
	assert.Same(t, artifact, handle.Load())

	// corrupted artifact keeps the previous one
	path := filepath.Join(dir, "recommender")
	require.NoError(t, os.WriteFile(path, []byte("corrupted"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	swapped, err = handle.Reload()
	assert.Error(t, err)
	assert.False(t, swapped)
	assert.Same(t, artifact, handle.Load())

	// reset
	handle.Reset()
	assert.Nil(t, handle.Load())
}

func TestModelHandle_NoStore(t *testing.T) {
	handle := NewModelHandle(nil, "recommender")
	_, err := handle.Reload()
	assert.True(t, errors.Is(err, errors.NotAssigned))
	artifact := newABCArtifact(t)
	handle.Store(artifact)
	assert.Same(t, artifact, handle.Load())
}

// writeOversizedArtifact writes a well formed header followed by user factors
// whose declared shape cannot be allocated.
func writeOversizedArtifact(t *testing.T, w io.Writer) {
	require.NoError(t, encoding.WriteString(w, "olist-recommender-v1"))
	require.NoError(t, encoding.WriteGob(w, cf.Meta{NFactors: 1}))
	customers, err := dataset.NewIndexFromNames([]string{"u1"})
	require.NoError(t, err)
	require.NoError(t, customers.Marshal(w))
	products, err := dataset.NewIndexFromNames([]string{"p1", "p2"})
	require.NoError(t, err)
	require.NoError(t, products.Marshal(w))
	require.NoError(t, binary.Write(w, binary.LittleEndian, [2]int64{1 << 50, 1}))
	require.NoError(t, binary.Write(w, binary.LittleEndian, []float64{1, 2, 3}))
}

func TestModelHandle_OversizedArtifact(t *testing.T) {
	dir := t.TempDir()
	store := blob.NewPOSIX(dir)
	handle := NewModelHandle(store, "recommender")
	saveArtifact(t, store, "recommender", newABCArtifact(t))
	_, err := handle.Reload()
	require.NoError(t, err)
	artifact := handle.Load()

	f, err := os.Create(filepath.Join(dir, "recommender"))
	require.NoError(t, err)
	writeOversizedArtifact(t, f)
	require.NoError(t, f.Close())
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "recommender"), future, future))

	failures := testutil.ToFloat64(LoadArtifactFailuresTotal)
	var swapped bool
	assert.NotPanics(t, func() { swapped, err = handle.Reload() })
	assert.True(t, errors.Is(err, errors.NotValid), err)
	assert.False(t, swapped)
	assert.Same(t, artifact, handle.Load())
	assert.Equal(t, failures+1, testutil.ToFloat64(LoadArtifactFailuresTotal))

	// a fresh handle stays empty
	fresh := NewModelHandle(store, "recommender")
	assert.NotPanics(t, func() { _, err = fresh.Reload() })
	assert.Error(t, err)
	assert.Nil(t, fresh.Load())
}

// panicStore fails every read with a panic.
type panicStore struct {
	*blob.POSIX
}

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) { panic("disk exploded") }

func (panicReader) Close() error { return nil }

func (panicStore) Open(string) (io.ReadCloser, error) { return panicReader{}, nil }

func (panicStore) ModTime(string) (time.Time, error) { return time.Now(), nil }

func TestModelHandle_RecoverPanic(t *testing.T) {
	handle := NewModelHandle(panicStore{POSIX: blob.NewPOSIX(t.TempDir())}, "recommender")
	failures := testutil.ToFloat64(LoadArtifactFailuresTotal)
	var err error
	assert.NotPanics(t, func() { _, err = handle.Reload() })
	assert.ErrorContains(t, err, "disk exploded")
	assert.Nil(t, handle.Load())
	assert.Equal(t, failures+1, testutil.ToFloat64(LoadArtifactFailuresTotal))
}
