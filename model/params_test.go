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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParams_Get(t *testing.T) {
	p := Params{
		NFactors:        16,
		RandomState:     int64(7),
		Lr:              0.01,
		StopWords:       true,
		HiddenDims:      []int{8, 4},
		TextColumns:     []string{"title"},
		ContentWeight:   float32(0.3),
		DiversityFactor: "oops",
	}
	assert.Equal(t, 16, p.GetInt(NFactors, -1))
	assert.Equal(t, -1, p.GetInt(NEpochs, -1))
	assert.Equal(t, int64(7), p.GetInt64(RandomState, 0))
	assert.Equal(t, int64(16), p.GetInt64(NFactors, 0))
	assert.Equal(t, float32(0.01), p.GetFloat32(Lr, 0))
	assert.Equal(t, float32(16), p.GetFloat32(NFactors, 0))
	assert.Equal(t, float32(0.3), p.GetFloat32(ContentWeight, 0))
	// type mismatch falls back to default
	assert.Equal(t, float32(0.1), p.GetFloat32(DiversityFactor, 0.1))
	assert.True(t, p.GetBool(StopWords, false))
	assert.Equal(t, []int{8, 4}, p.GetInts(HiddenDims, nil))
	assert.Equal(t, []int{1, 2}, Params{HiddenDims: []interface{}{1, int64(2)}}.GetInts(HiddenDims, nil))
	assert.Equal(t, []string{"title"}, p.GetStrings(TextColumns, nil))
	assert.Equal(t, "x", p.GetString(NFactors, "x"))
}

func TestParams_Overwrite(t *testing.T) {
	a := Params{NFactors: 1, NEpochs: 2}
	b := a.Overwrite(Params{NEpochs: 3, Lr: 0.1})
	assert.Equal(t, Params{NFactors: 1, NEpochs: 3, Lr: 0.1}, b)
	assert.Equal(t, Params{NFactors: 1, NEpochs: 2}, a)
	c := a.Copy()
	c[NFactors] = 5
	assert.Equal(t, 1, a.GetInt(NFactors, 0))
	assert.Contains(t, a.ToString(), "NFactors")
}
