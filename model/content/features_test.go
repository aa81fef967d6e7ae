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

package content

import (
	"bytes"
	"testing"

	"github.com/giftwise/giftrec/dataset"
	"github.com/stretchr/testify/assert"
)

func price(v float64) *float64 {
	return &v
}

func newTestProducts() []dataset.Product {
	return []dataset.Product{
		{Id: "mug", Title: "Red coffee mug", Brand: "Acme", Price: price(10), PrimaryCategory: "Kitchen"},
		{Id: "cup", Title: "Blue coffee cup", Brand: "Acme", Price: price(30), PrimaryCategory: "Kitchen"},
		{Id: "scarf", Title: "Wool scarf", Brand: "Knit", PrimaryCategory: "Fashion"},
		{Id: "hat", Title: "Wool hat", Brand: "Knit", Price: price(50)},
	}
}

func TestFeatureProcessor_Fit(t *testing.T) {
	processor := NewFeatureProcessor(NewTfIdf(100, 1, 1, 1, true), 100,
		[]string{"title"}, []string{"price"}, []string{"primary_category"})
	embeddings, err := processor.Fit(newTestProducts())
	assert.NoError(t, err)
	assert.Len(t, embeddings, 4)
	// median imputation: median of 10, 30, 50 is 30
	assert.Equal(t, []float64{30}, processor.Medians)
	assert.InDelta(t, 30, processor.Means[0], 1e-9)
	// label classes are sorted and missing values become unknown
	assert.Equal(t, [][]string{{"Fashion", "Kitchen", "unknown"}}, processor.Classes)
	width := len(processor.TfIdf.Terms) + 1 + 3
	assert.Equal(t, width, processor.Width())
	assert.Len(t, embeddings[0], width)
	// one-hot block
	assert.Equal(t, []float32{0, 1, 0}, embeddings[0][width-3:])
	assert.Equal(t, []float32{0, 0, 1}, embeddings[3][width-3:])
	// standard scaling has zero mean
	var sum float32
	for _, e := range embeddings {
		sum += e[width-4]
	}
	assert.InDelta(t, 0, sum, 1e-5)
	assert.Equal(t, []string{"title", "price", "primary_category"}, processor.FeatureColumns())

	_, err = processor.Fit(nil)
	assert.Error(t, err)
}

func TestFeatureProcessor_SVD(t *testing.T) {
	processor := NewFeatureProcessor(NewTfIdf(100, 1, 1, 2, true), 2,
		DefaultTextColumns, DefaultNumericColumns, DefaultCategoricalColumns)
	products := newTestProducts()
	embeddings, err := processor.Fit(products)
	assert.NoError(t, err)
	assert.NotNil(t, processor.Components)
	assert.Equal(t, 2, processor.Width())
	for _, e := range embeddings {
		assert.Len(t, e, 2)
	}
	// transform reproduces fitted embeddings
	transformed := processor.Transform(products)
	for i := range embeddings {
		assert.InDeltaSlice(t, embeddings[i], transformed[i], 1e-4)
	}
	// unseen category encodes without error
	unseen := processor.Transform([]dataset.Product{{Id: "new", Title: "Green mug", PrimaryCategory: "Garden"}})
	assert.Len(t, unseen[0], 2)
	assert.Empty(t, processor.Transform(nil))
}

func TestFeatureProcessor_Marshal(t *testing.T) {
	processor := NewFeatureProcessor(NewTfIdf(100, 1, 1, 2, true), 3,
		DefaultTextColumns, DefaultNumericColumns, DefaultCategoricalColumns)
	products := newTestProducts()
	embeddings, err := processor.Fit(products)
	assert.NoError(t, err)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, processor.Marshal(buf))
	decoded := new(FeatureProcessor)
	assert.NoError(t, decoded.Unmarshal(buf))
	transformed := decoded.Transform(products)
	for i := range embeddings {
		assert.InDeltaSlice(t, embeddings[i], transformed[i], 1e-4)
	}
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Zero(t, median(nil))
}
