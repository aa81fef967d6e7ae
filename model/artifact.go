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

package model

import (
	"io"
	"os"
	"path/filepath"

	"github.com/giftwise/giftrec/base/encoding"
	"github.com/juju/errors"
)

const (
	artifactMagic = "giftrec"
	SchemaVersion = 2
)

// Save writes the model header followed by the model state.
func Save(w io.Writer, m Recommender) error {
	if !m.IsTrained() {
		return errors.Trace(ErrUntrained)
	}
	header := m.Header()
	header.Magic = artifactMagic
	header.SchemaVersion = SchemaVersion
	header.ModelName = m.Name()
	if err := encoding.WriteGob(w, header); err != nil {
		return errors.Trace(err)
	}
	if err := m.Marshal(w); err != nil {
		return errors.Annotatef(err, "failed to marshal %s", m.Name())
	}
	return nil
}

// ReadHeader reads the header of an artifact.
func ReadHeader(r io.Reader) (Header, error) {
	var header Header
	if err := encoding.ReadGob(r, &header); err != nil {
		return Header{}, errors.Trace(err)
	}
	if header.Magic != artifactMagic {
		return Header{}, errors.NotValidf("model artifact")
	}
	if header.SchemaVersion != SchemaVersion {
		return Header{}, errors.Annotatef(ErrSchemaVersion, "got %d, want %d", header.SchemaVersion, SchemaVersion)
	}
	return header, nil
}

// Load restores a model saved by Save into m. The artifact must hold a model of the same name.
func Load(r io.Reader, m Recommender) error {
	header, err := ReadHeader(r)
	if err != nil {
		return errors.Trace(err)
	}
	if header.ModelName != m.Name() {
		return errors.Annotatef(ErrModelMismatch, "artifact holds %s, not %s", header.ModelName, m.Name())
	}
	if err = m.Unmarshal(r); err != nil {
		return errors.Annotatef(err, "failed to unmarshal %s", m.Name())
	}
	m.SetHeader(header)
	return nil
}

// SaveFile saves a model to path, creating parent directories.
func SaveFile(path string, m Recommender) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	if err = Save(f, m); err != nil {
		_ = f.Close()
		return errors.Trace(err)
	}
	return errors.Trace(f.Close())
}

// LoadFile loads a model from path.
func LoadFile(path string, m Recommender) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return Load(f, m)
}
