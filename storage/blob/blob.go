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

package blob

import (
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/olist-intelligence/olist/config"
	"github.com/olist-intelligence/olist/storage"
)

// Store keeps named blobs such as trained recommendation artifacts.
type Store interface {
	// Open a blob for reading. errors.NotFound is returned if the blob does not exist.
	Open(name string) (io.ReadCloser, error)
	// Create a blob for writing. The returned channel receives the result of the write once the
	// writer has been closed. Readers never observe a partially written blob. Use Abort to
	// discard the writer without publishing.
	Create(name string) (io.WriteCloser, chan error, error)
	// ModTime returns the last modification time of a blob.
	ModTime(name string) (time.Time, error)
}

// Open creates a blob store from the artifact configuration. A store starting with s3:// is kept in
// S3 (or MinIO), otherwise it is a local directory.
func Open(cfg config.ArtifactConfig) (Store, error) {
	if strings.HasPrefix(cfg.Store, storage.S3Prefix) {
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(cfg.Store, storage.S3Prefix), "/")
		if bucket == "" {
			return nil, errors.NotValidf("artifact store %q", cfg.Store)
		}
		return NewS3(cfg.S3, bucket, prefix)
	}
	return NewPOSIX(cfg.Store), nil
}

// Abort closes a writer returned by Store.Create without publishing the blob. The
// result channel of Create receives err.
func Abort(w io.WriteCloser, err error) error {
	if err == nil {
		err = errors.New("write aborted")
	}
	if pw, ok := w.(interface{ CloseWithError(error) error }); ok {
		return pw.CloseWithError(err)
	}
	return errors.NotSupportedf("aborting %T", w)
}
