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
	"io"

	"github.com/giftwise/giftrec/base"
	"github.com/giftwise/giftrec/base/encoding"
	"github.com/juju/errors"
)

// Parameter is a trainable row-major tensor with an accumulated gradient.
type Parameter struct {
	Shape []int
	Data  []float32
	Grad  []float32
}

func NewParameter(data []float32, shape ...int) *Parameter {
	size := 1
	for _, s := range shape {
		size *= s
	}
	if len(data) != size {
		panic("nn: data size does not match shape")
	}
	return &Parameter{
		Shape: shape,
		Data:  data,
		Grad:  make([]float32, size),
	}
}

// Zeros creates a parameter filled with zeros.
func Zeros(shape ...int) *Parameter {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return NewParameter(make([]float32, size), shape...)
}

// Normal creates a parameter filled with normal random numbers.
func Normal(rng base.RandomGenerator, mean, std float32, shape ...int) *Parameter {
	size := 1
	for _, s := range shape {
		size *= s
	}
	return NewParameter(rng.NormalVector(size, mean, std), shape...)
}

func (p *Parameter) Size() int {
	return len(p.Data)
}

func (p *Parameter) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Row returns the i-th row of a 2-d parameter without copying.
func (p *Parameter) Row(i int) []float32 {
	cols := p.Shape[len(p.Shape)-1]
	return p.Data[i*cols : (i+1)*cols]
}

// WriteParameters writes values of parameters. Gradients are not persisted.
func WriteParameters(w io.Writer, params []*Parameter) error {
	for _, p := range params {
		if err := encoding.WriteVector(w, p.Data); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// ReadParameters reads values into parameters created with the same shapes.
func ReadParameters(r io.Reader, params []*Parameter) error {
	for i, p := range params {
		data, err := encoding.ReadVector(r)
		if err != nil {
			return errors.Trace(err)
		}
		if len(data) != p.Size() {
			return errors.Errorf("parameter %d: expected %d values, got %d", i, p.Size(), len(data))
		}
		copy(p.Data, data)
	}
	return nil
}
