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
)

type Optimizer interface {
	SetWeightDecay(rate float32)
	ZeroGrad()
	Step()
}

type baseOptimizer struct {
	params []*Parameter
	wd     float32
}

func (o *baseOptimizer) ZeroGrad() {
	for _, p := range o.params {
		p.ZeroGrad()
	}
}

func (o *baseOptimizer) SetWeightDecay(wd float32) {
	o.wd = wd
}

type SGD struct {
	baseOptimizer
	lr float32
}

func NewSGD(params []*Parameter, lr float32) Optimizer {
	return &SGD{
		baseOptimizer: baseOptimizer{params: params},
		lr:            lr,
	}
}

func (s *SGD) Step() {
	for _, p := range s.params {
		for i := range p.Data {
			p.Data[i] -= s.lr * (p.Grad[i] + p.Data[i]*s.wd)
		}
	}
}

type Adam struct {
	baseOptimizer
	alpha float32
	beta1 float32
	beta2 float32
	eps   float32
	ms    [][]float32
	vs    [][]float32
	t     float32
}

func NewAdam(params []*Parameter, alpha float32) Optimizer {
	adam := &Adam{
		baseOptimizer: baseOptimizer{params: params},
		alpha:         alpha,
		beta1:         0.9,
		beta2:         0.999,
		eps:           1e-8,
		ms:            make([][]float32, len(params)),
		vs:            make([][]float32, len(params)),
	}
	for i, p := range params {
		adam.ms[i] = make([]float32, p.Size())
		adam.vs[i] = make([]float32, p.Size())
	}
	return adam
}

func (a *Adam) Step() {
	a.t++

	fix1 := 1 - math32.Pow(a.beta1, a.t)
	fix2 := 1 - math32.Pow(a.beta2, a.t)
	lr := a.alpha * math32.Sqrt(fix2) / fix1

	for j, p := range a.params {
		m, v := a.ms[j], a.vs[j]
		for i := range p.Data {
			g := p.Grad[i] + a.wd*p.Data[i]
			// m += (1 - beta1) * (grad - m)
			m[i] += (1 - a.beta1) * (g - m[i])
			// v += (1 - beta2) * (grad * grad - v)
			v[i] += (1 - a.beta2) * (g*g - v[i])
			p.Data[i] -= lr * m[i] / (math32.Sqrt(v[i]) + a.eps)
		}
	}
}
