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

package encoding

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestWriteMatrix(t *testing.T) {
	a := [][]float32{{1, 2}, {3, 4, 5}, {}}
	buf := bytes.NewBuffer(nil)
	err := WriteMatrix(buf, a)
	assert.NoError(t, err)
	b, err := ReadMatrix(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteString(t *testing.T) {
	a := "abc"
	buf := bytes.NewBuffer(nil)
	err := WriteString(buf, a)
	assert.NoError(t, err)
	var b string
	b, err = ReadString(buf)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteGob(t *testing.T) {
	a := map[string][]string{"text": {"title", "brand"}}
	buf := bytes.NewBuffer(nil)
	err := WriteGob(buf, a)
	assert.NoError(t, err)
	var b map[string][]string
	err = ReadGob(buf, &b)
	assert.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestReadBytesTruncated(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteString(buf, "hello"))
	truncated := bytes.NewBuffer(buf.Bytes()[:6])
	_, err := ReadString(truncated)
	assert.Error(t, err)
}

func TestReadCorruptLength(t *testing.T) {
	for _, n := range []int64{-1, 1 << 40} {
		buf := bytes.NewBuffer(nil)
		assert.NoError(t, binary.Write(buf, binary.LittleEndian, n))
		_, err := ReadVector(bytes.NewReader(buf.Bytes()))
		assert.True(t, errors.Is(err, errors.NotValid), n)
		_, err = ReadMatrix(bytes.NewReader(buf.Bytes()))
		assert.True(t, errors.Is(err, errors.NotValid), n)
	}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, binary.Write(buf, binary.LittleEndian, int32(-5)))
	_, err := ReadBytes(buf)
	assert.Error(t, err)
}

func TestFormatFloat32(t *testing.T) {
	assert.Equal(t, "0.25", FormatFloat32(0.25))
}
