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
	"context"
	"testing"

	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

// newCatalog has two groups, kitchenware and knitwear, that differ in text, brand, price
// and availability.
func newCatalog() []dataset.Product {
	return []dataset.Product{
		{Id: "mug", Title: "Red ceramic coffee mug", Brand: "Acme", Price: price(10), PrimaryCategory: "Kitchen", AvailabilityStatus: "In Stock"},
		{Id: "cup", Title: "Blue ceramic coffee cup", Brand: "Acme", Price: price(12), PrimaryCategory: "Kitchen", AvailabilityStatus: "In Stock"},
		{Id: "teapot", Title: "Ceramic teapot for coffee and tea", Brand: "Acme", Price: price(14), PrimaryCategory: "Kitchen", AvailabilityStatus: "In Stock"},
		{Id: "scarf", Title: "Warm wool scarf", Brand: "Knit", Price: price(30), PrimaryCategory: "Fashion", AvailabilityStatus: "Pre-order"},
		{Id: "hat", Title: "Warm wool hat", Brand: "Knit", Price: price(28), PrimaryCategory: "Fashion", AvailabilityStatus: "Pre-order"},
		{Id: "gloves", Title: "Warm wool gloves", Brand: "Knit", Price: price(26), AvailabilityStatus: "Pre-order"},
		{Id: "mug", Title: "Duplicated record"},
	}
}

func newInteractions() []dataset.Interaction {
	return []dataset.Interaction{
		{UserId: "coffee_lover", ItemId: "mug"},
		{UserId: "coffee_lover", ItemId: "cup"},
		{UserId: "knitter", ItemId: "scarf"},
		{UserId: "knitter", ItemId: "hat"},
		{UserId: "fan", ItemId: "hat"},
		{UserId: "ghost", ItemId: "not_in_catalog"},
	}
}

func newTestModel() *ContentBased {
	// six components keep the full rank of six products
	return NewContentBased(model.Params{
		model.NComponents:         6,
		model.SimilarityThreshold: 0.1,
	})
}

func TestContentBased_Untrained(t *testing.T) {
	m := NewContentBased(nil)
	assert.Equal(t, Name, m.Name())
	_, err := m.Predict(context.Background(), "coffee_lover", nil, 10)
	assert.ErrorIs(t, err, model.ErrUntrained)
	_, err = m.SimilarItems("mug", 10)
	assert.ErrorIs(t, err, model.ErrUntrained)
	_, err = m.Explain("coffee_lover", "mug")
	assert.ErrorIs(t, err, model.ErrUntrained)
	assert.Error(t, m.Fit(context.Background(), newInteractions(), nil, nil))
	assert.False(t, m.IsTrained())
}

func TestContentBased_Fit(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.Fit(context.Background(), newInteractions(), newCatalog(), model.NewFitConfig().SetJobs(2)))
	assert.True(t, m.IsTrained())
	assert.Equal(t, 6, m.ItemIndex.Count())
	assert.Contains(t, m.Header().FeatureColumns, "title")

	recs, err := m.Predict(context.Background(), "coffee_lover", nil, 3)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"mug", "cup", "teapot"}, lo.Map(recs, func(rec model.Recommendation, _ int) string {
		return rec.ItemId
	}))
	for i, rec := range recs {
		assert.Greater(t, rec.Score, 0.0)
		assert.LessOrEqual(t, rec.Score, 1.0)
		assert.LessOrEqual(t, rec.Confidence, 0.9)
		assert.InDelta(t, min(0.9, rec.Score+0.1), rec.Confidence, 1e-6)
		assert.Nil(t, rec.Metadata["cold_start"])
		if i > 0 {
			assert.GreaterOrEqual(t, recs[i-1].Score, rec.Score)
		}
	}
	assert.Equal(t, "Kitchen", recs[0].Metadata["category"])

	// the knitter prefers wool over ceramics
	recs, err = m.Predict(context.Background(), "knitter", []string{"teapot", "gloves"}, 10)
	assert.NoError(t, err)
	if assert.Len(t, recs, 1) {
		assert.Equal(t, "gloves", recs[0].ItemId)
		assert.InDelta(t, 0.5913, recs[0].Score, 1e-3)
		assert.Nil(t, recs[0].Metadata["category"])
	}
}

func TestContentBased_ColdStart(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.Fit(context.Background(), newInteractions(), newCatalog(), nil))
	// users without mapped items have no profile
	for _, userId := range []string{"ghost", "stranger"} {
		recs, err := m.Predict(context.Background(), userId, nil, 10)
		assert.NoError(t, err)
		assert.Len(t, recs, 6)
		assert.Equal(t, "hat", recs[0].ItemId)
		assert.Equal(t, 1.0, recs[0].Score)
		assert.Equal(t, 0.5, recs[1].Score)
		for _, rec := range recs {
			assert.Equal(t, 0.3, rec.Confidence)
			assert.Equal(t, true, rec.Metadata["cold_start"])
		}
	}
	explanation, err := m.Explain("stranger", "hat")
	assert.NoError(t, err)
	assert.Equal(t, 0.3, explanation.Confidence)
}

func TestContentBased_SimilarItems(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.Fit(context.Background(), newInteractions(), newCatalog(), nil))
	similar, err := m.SimilarItems("scarf", 2)
	assert.NoError(t, err)
	assert.Len(t, similar, 2)
	assert.Equal(t, []string{"hat", "gloves"}, []string{similar[0].ItemId, similar[1].ItemId})
	for _, s := range similar {
		assert.GreaterOrEqual(t, s.Score, 0.1)
	}
	similar, err = m.SimilarItems("unknown", 2)
	assert.NoError(t, err)
	assert.Empty(t, similar)
}

func TestContentBased_Explain(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.Fit(context.Background(), newInteractions(), newCatalog(), nil))
	explanation, err := m.Explain("knitter", "gloves")
	assert.NoError(t, err)
	assert.Contains(t, explanation.Factors, "same brand: Knit")
	explanation, err = m.Explain("coffee_lover", "teapot")
	assert.NoError(t, err)
	assert.Contains(t, explanation.Factors, "same category: Kitchen")
	explanation, err = m.Explain("coffee_lover", "unknown")
	assert.NoError(t, err)
	assert.Equal(t, 0.5, explanation.Confidence)
}

func TestContentBased_Marshal(t *testing.T) {
	m := newTestModel()
	assert.NoError(t, m.Fit(context.Background(), newInteractions(), newCatalog(), nil))
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, model.Save(buf, m))
	loaded := NewContentBased(nil)
	assert.NoError(t, model.Load(buf, loaded))
	assert.True(t, loaded.IsTrained())
	for _, userId := range []string{"coffee_lover", "knitter", "stranger"} {
		expected, err := m.Predict(context.Background(), userId, nil, 10)
		assert.NoError(t, err)
		actual, err := loaded.Predict(context.Background(), userId, nil, 10)
		assert.NoError(t, err)
		assert.Equal(t, expected, actual)
	}
	expected, err := m.SimilarItems("mug", 3)
	assert.NoError(t, err)
	actual, err := loaded.SimilarItems("mug", 3)
	assert.NoError(t, err)
	assert.Equal(t, expected, actual)
}
