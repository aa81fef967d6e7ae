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

package floats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	a := []float32{1, 2, 3}
	Zero(a)
	assert.Equal(t, []float32{0, 0, 0}, a)
	m := [][]float32{{1, 2}, {3}}
	MatZero(m)
	assert.Equal(t, [][]float32{{0, 0}, {0}}, m)
}

func TestAdd(t *testing.T) {
	a := []float32{1, 2, 3, 4}
	Add(a, []float32{5, 6, 7, 8})
	assert.Equal(t, []float32{6, 8, 10, 12}, a)
	assert.Panics(t, func() { Add([]float32{1}, nil) })
}

func TestMulConstAdd(t *testing.T) {
	dst := []float32{1, 1, 1}
	MulConstAdd([]float32{1, 2, 3}, 2, dst)
	assert.Equal(t, []float32{3, 5, 7}, dst)
	MulConst(dst, 2)
	assert.Equal(t, []float32{6, 10, 14}, dst)
}

func TestDot(t *testing.T) {
	assert.Equal(t, float32(70), Dot([]float32{1, 2, 3, 4}, []float32{5, 6, 7, 8}))
	assert.Panics(t, func() { Dot([]float32{1}, []float32{1, 2}) })
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, Cosine([]float32{0, 0}, []float32{1, 1}))
}

func TestNormalize(t *testing.T) {
	a := []float32{3, 4}
	Normalize(a)
	assert.InDeltaSlice(t, []float32{0.6, 0.8}, a, 1e-6)
	z := []float32{0, 0}
	Normalize(z)
	assert.Equal(t, []float32{0, 0}, z)
}

func TestClampMean(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(3, 0, 1))
	assert.Equal(t, float32(0), Clamp(-1, 0, 1))
	assert.Equal(t, float32(0.5), Clamp(0.5, 0, 1))
	assert.Equal(t, float32(2), Mean([]float32{1, 2, 3}))
	assert.Zero(t, Mean(nil))
}
