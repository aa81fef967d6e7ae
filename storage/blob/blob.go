// Copyright 2026 giftrec Project Authors
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
	"context"
	"io"

	"github.com/giftwise/giftrec/config"
	"github.com/juju/errors"
)

// Store keeps model artifacts by name.
type Store interface {
	// Open a blob for reading.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create a blob for writing. The blob is complete once Close returns without error.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// List names of all blobs.
	List(ctx context.Context) ([]string, error)
	// Remove a blob.
	Remove(ctx context.Context, name string) error
}

// New creates a store from configuration.
func New(cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case "posix", "":
		return NewPOSIX(cfg.Dir), nil
	case "s3":
		return NewS3(cfg.S3)
	case "gcs":
		return NewGCS(cfg.GCS)
	case "azure":
		return NewAzureBlob(cfg.Azure)
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Type)
}

// pipeWriter streams writes to an uploader running in the background. Close returns after
// the upload finishes.
type pipeWriter struct {
	*io.PipeWriter
	done chan struct{}
	err  error
}

func newPipeWriter(upload func(r io.Reader) error) *pipeWriter {
	pr, pw := io.Pipe()
	w := &pipeWriter{PipeWriter: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)
		w.err = upload(pr)
		// unblock writers if the upload stopped early
		_ = pr.CloseWithError(w.err)
	}()
	return w
}

func (w *pipeWriter) Close() error {
	if err := w.PipeWriter.Close(); err != nil {
		return errors.Trace(err)
	}
	<-w.done
	return errors.Trace(w.err)
}
