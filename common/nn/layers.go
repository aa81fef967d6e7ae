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
	"github.com/chewxy/math32"
	"github.com/giftwise/giftrec/base"
)

// Layer is a differentiable transform over a batch of row vectors. Forward caches the
// activations needed by Backward only when train is true, so concurrent inference
// through Forward(x, false) is safe.
type Layer interface {
	Parameters() []*Parameter
	Forward(x [][]float32, train bool) [][]float32
	Backward(dy [][]float32) [][]float32
}

type LinearLayer struct {
	W   *Parameter
	B   *Parameter
	in  int
	out int
	x   [][]float32
}

func NewLinear(rng base.RandomGenerator, in, out int) *LinearLayer {
	return &LinearLayer{
		W:   Normal(rng, 0, 1.0/math32.Sqrt(float32(in)), in, out),
		B:   Zeros(out),
		in:  in,
		out: out,
	}
}

func (l *LinearLayer) Parameters() []*Parameter {
	return []*Parameter{l.W, l.B}
}

func (l *LinearLayer) Forward(x [][]float32, train bool) [][]float32 {
	if train {
		l.x = x
	}
	y := make([][]float32, len(x))
	for b := range x {
		y[b] = make([]float32, l.out)
		copy(y[b], l.B.Data)
		for i, xi := range x[b] {
			if xi == 0 {
				continue
			}
			row := l.W.Data[i*l.out : (i+1)*l.out]
			for o := range row {
				y[b][o] += xi * row[o]
			}
		}
	}
	return y
}

func (l *LinearLayer) Backward(dy [][]float32) [][]float32 {
	dx := make([][]float32, len(dy))
	for b := range dy {
		dx[b] = make([]float32, l.in)
		for o, g := range dy[b] {
			l.B.Grad[o] += g
		}
		for i := 0; i < l.in; i++ {
			row := l.W.Data[i*l.out : (i+1)*l.out]
			grad := l.W.Grad[i*l.out : (i+1)*l.out]
			xi := l.x[b][i]
			var sum float32
			for o, g := range dy[b] {
				grad[o] += xi * g
				sum += row[o] * g
			}
			dx[b][i] = sum
		}
	}
	return dx
}

type ReLULayer struct {
	mask [][]bool
}

func NewReLU() *ReLULayer {
	return &ReLULayer{}
}

func (r *ReLULayer) Parameters() []*Parameter {
	return nil
}

func (r *ReLULayer) Forward(x [][]float32, train bool) [][]float32 {
	y := make([][]float32, len(x))
	var mask [][]bool
	if train {
		mask = make([][]bool, len(x))
	}
	for b := range x {
		y[b] = make([]float32, len(x[b]))
		if train {
			mask[b] = make([]bool, len(x[b]))
		}
		for i, v := range x[b] {
			if v > 0 {
				y[b][i] = v
				if train {
					mask[b][i] = true
				}
			}
		}
	}
	if train {
		r.mask = mask
	}
	return y
}

func (r *ReLULayer) Backward(dy [][]float32) [][]float32 {
	dx := make([][]float32, len(dy))
	for b := range dy {
		dx[b] = make([]float32, len(dy[b]))
		for i, g := range dy[b] {
			if r.mask[b][i] {
				dx[b][i] = g
			}
		}
	}
	return dx
}

// DropoutLayer zeroes activations with probability rate during training and scales the
// survivors by 1/(1-rate). It is the identity at inference.
type DropoutLayer struct {
	rate  float32
	rng   base.RandomGenerator
	scale [][]float32
}

func NewDropout(rng base.RandomGenerator, rate float32) *DropoutLayer {
	return &DropoutLayer{rate: rate, rng: rng}
}

func (d *DropoutLayer) Parameters() []*Parameter {
	return nil
}

func (d *DropoutLayer) Forward(x [][]float32, train bool) [][]float32 {
	if !train {
		return x
	}
	if d.rate <= 0 {
		d.scale = nil
		return x
	}
	keep := 1 / (1 - d.rate)
	y := make([][]float32, len(x))
	d.scale = make([][]float32, len(x))
	for b := range x {
		y[b] = make([]float32, len(x[b]))
		d.scale[b] = make([]float32, len(x[b]))
		for i, v := range x[b] {
			if d.rng.Float32() >= d.rate {
				d.scale[b][i] = keep
				y[b][i] = v * keep
			}
		}
	}
	return y
}

func (d *DropoutLayer) Backward(dy [][]float32) [][]float32 {
	if d.scale == nil {
		return dy
	}
	dx := make([][]float32, len(dy))
	for b := range dy {
		dx[b] = make([]float32, len(dy[b]))
		for i, g := range dy[b] {
			dx[b][i] = g * d.scale[b][i]
		}
	}
	return dx
}

type Sequential struct {
	Layers []Layer
}

func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

func (s *Sequential) Parameters() []*Parameter {
	var params []*Parameter
	for _, l := range s.Layers {
		params = append(params, l.Parameters()...)
	}
	return params
}

func (s *Sequential) Forward(x [][]float32, train bool) [][]float32 {
	for _, l := range s.Layers {
		x = l.Forward(x, train)
	}
	return x
}

func (s *Sequential) Backward(dy [][]float32) [][]float32 {
	for i := len(s.Layers) - 1; i >= 0; i-- {
		dy = s.Layers[i].Backward(dy)
	}
	return dy
}

// EmbeddingLayer maps indices to rows of W.
type EmbeddingLayer struct {
	W   *Parameter
	dim int
}

func NewEmbedding(rng base.RandomGenerator, n, dim int, std float32) *EmbeddingLayer {
	return &EmbeddingLayer{
		W:   Normal(rng, 0, std, n, dim),
		dim: dim,
	}
}

func (e *EmbeddingLayer) Parameters() []*Parameter {
	return []*Parameter{e.W}
}

// Lookup returns the rows for indices without copying.
func (e *EmbeddingLayer) Lookup(indices []int) [][]float32 {
	rows := make([][]float32, len(indices))
	for i, index := range indices {
		rows[i] = e.W.Row(index)
	}
	return rows
}

// Backward accumulates gradients of looked up rows.
func (e *EmbeddingLayer) Backward(indices []int, dy [][]float32) {
	for i, index := range indices {
		grad := e.W.Grad[index*e.dim : (index+1)*e.dim]
		for j, g := range dy[i] {
			grad[j] += g
		}
	}
}

// MSELoss returns the mean squared error and its gradient with respect to pred.
func MSELoss(pred, target []float32) (float32, []float32) {
	if len(pred) == 0 {
		return 0, nil
	}
	n := float32(len(pred))
	var loss float32
	grad := make([]float32, len(pred))
	for i := range pred {
		diff := pred[i] - target[i]
		loss += diff * diff
		grad[i] = 2 * diff / n
	}
	return loss / n, grad
}
