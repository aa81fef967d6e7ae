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

package nn

import (
	"bytes"
	"testing"

	"github.com/giftwise/giftrec/base"
	"github.com/stretchr/testify/assert"
)

func sumOutput(y [][]float32) float32 {
	var sum float32
	for _, row := range y {
		for _, v := range row {
			sum += v
		}
	}
	return sum
}

func ones(y [][]float32) [][]float32 {
	dy := make([][]float32, len(y))
	for i := range y {
		dy[i] = make([]float32, len(y[i]))
		for j := range dy[i] {
			dy[i][j] = 1
		}
	}
	return dy
}

func TestLinearGradient(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	layer := NewLinear(rng, 3, 2)
	x := [][]float32{{1, 2, 3}, {-1, 0.5, 2}}
	y := layer.Forward(x, true)
	dx := layer.Backward(ones(y))

	// numerical gradient of sum(y) with respect to W
	const eps = 1e-2
	for i := range layer.W.Data {
		origin := layer.W.Data[i]
		layer.W.Data[i] = origin + eps
		plus := sumOutput(layer.Forward(x, false))
		layer.W.Data[i] = origin - eps
		minus := sumOutput(layer.Forward(x, false))
		layer.W.Data[i] = origin
		assert.InDelta(t, (plus-minus)/(2*eps), layer.W.Grad[i], 1e-2)
	}
	assert.Equal(t, []float32{2, 2}, layer.B.Grad)
	// dx[b][i] = sum_o W[i][o]
	for i := 0; i < 3; i++ {
		assert.InDelta(t, layer.W.Data[i*2]+layer.W.Data[i*2+1], dx[0][i], 1e-6)
	}
}

func TestReLU(t *testing.T) {
	relu := NewReLU()
	y := relu.Forward([][]float32{{-1, 0, 2}}, true)
	assert.Equal(t, [][]float32{{0, 0, 2}}, y)
	dx := relu.Backward([][]float32{{5, 5, 5}})
	assert.Equal(t, [][]float32{{0, 0, 5}}, dx)
}

func TestDropout(t *testing.T) {
	dropout := NewDropout(base.NewRandomGenerator(0), 0.5)
	x := [][]float32{make([]float32, 1000)}
	for i := range x[0] {
		x[0][i] = 1
	}
	// identity at inference
	assert.Equal(t, x, dropout.Forward(x, false))
	y := dropout.Forward(x, true)
	var zeros int
	for _, v := range y[0] {
		if v == 0 {
			zeros++
		} else {
			assert.Equal(t, float32(2), v)
		}
	}
	assert.InDelta(t, 500, zeros, 100)
	dx := dropout.Backward(x)
	assert.Equal(t, y, dx)
}

func TestEmbedding(t *testing.T) {
	embedding := NewEmbedding(base.NewRandomGenerator(0), 4, 2, 0.1)
	rows := embedding.Lookup([]int{1, 3, 1})
	assert.Equal(t, embedding.W.Row(1), rows[0])
	assert.Equal(t, embedding.W.Row(3), rows[1])
	embedding.Backward([]int{1, 3, 1}, [][]float32{{1, 1}, {2, 2}, {1, 1}})
	assert.Equal(t, []float32{2, 2}, embedding.W.Grad[2:4])
	assert.Equal(t, []float32{2, 2}, embedding.W.Grad[6:8])
	assert.Equal(t, []float32{0, 0}, embedding.W.Grad[0:2])
}

func TestMSELoss(t *testing.T) {
	loss, grad := MSELoss([]float32{1, 3}, []float32{0, 1})
	assert.Equal(t, float32(2.5), loss)
	assert.Equal(t, []float32{1, 2}, grad)
	loss, grad = MSELoss(nil, nil)
	assert.Zero(t, loss)
	assert.Nil(t, grad)
}

func trainRegression(t *testing.T, newOptimizer func([]*Parameter) Optimizer) {
	rng := base.NewRandomGenerator(0)
	model := NewSequential(NewLinear(rng, 2, 8), NewReLU(), NewLinear(rng, 8, 1))
	optimizer := newOptimizer(model.Parameters())
	x := [][]float32{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	target := []float32{0, 1, 1, 2}
	var first, last float32
	for epoch := 0; epoch < 500; epoch++ {
		optimizer.ZeroGrad()
		y := model.Forward(x, true)
		pred := make([]float32, len(y))
		for i := range y {
			pred[i] = y[i][0]
		}
		loss, grad := MSELoss(pred, target)
		if epoch == 0 {
			first = loss
		}
		last = loss
		dy := make([][]float32, len(grad))
		for i := range grad {
			dy[i] = []float32{grad[i]}
		}
		model.Backward(dy)
		optimizer.Step()
	}
	assert.Less(t, last, first)
	assert.Less(t, last, float32(0.1))
}

func TestAdam(t *testing.T) {
	trainRegression(t, func(params []*Parameter) Optimizer {
		return NewAdam(params, 0.01)
	})
}

func TestSGD(t *testing.T) {
	trainRegression(t, func(params []*Parameter) Optimizer {
		return NewSGD(params, 0.05)
	})
}

func TestWriteReadParameters(t *testing.T) {
	rng := base.NewRandomGenerator(0)
	a := NewLinear(rng, 3, 2)
	b := NewLinear(base.NewRandomGenerator(1), 3, 2)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteParameters(buf, a.Parameters()))
	assert.NoError(t, ReadParameters(buf, b.Parameters()))
	assert.Equal(t, a.W.Data, b.W.Data)
	assert.Equal(t, a.B.Data, b.B.Data)

	buf.Reset()
	assert.NoError(t, WriteParameters(buf, a.Parameters()))
	assert.Error(t, ReadParameters(buf, []*Parameter{Zeros(4)}))
}
