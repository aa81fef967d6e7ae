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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	filter := NewTopKFilter[string, float64](3)
	filter.Push("a", 0.1)
	filter.Push("b", 0.9)
	filter.Push("c", 0.5)
	filter.Push("d", 0.7)
	filter.Push("e", 0.2)
	items, weights := filter.PopAll()
	assert.Equal(t, []string{"b", "d", "c"}, items)
	assert.Equal(t, []float64{0.9, 0.7, 0.5}, weights)
	assert.Zero(t, filter.Len())
}

func TestTopKFilter_Small(t *testing.T) {
	filter := NewTopKFilter[int, float32](10)
	filter.Push(1, 1)
	filter.Push(2, 2)
	items, _ := filter.PopAll()
	assert.Equal(t, []int{2, 1}, items)

	empty := NewTopKFilter[int, float32](0)
	empty.Push(1, 1)
	items, weights := empty.PopAll()
	assert.Empty(t, items)
	assert.Empty(t, weights)
}
