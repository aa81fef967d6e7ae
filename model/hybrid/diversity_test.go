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

package hybrid

import (
	"testing"

	"github.com/giftwise/giftrec/model"
	"github.com/stretchr/testify/assert"
)

func ids(recs []model.Recommendation) []string {
	ret := make([]string, len(recs))
	for i, rec := range recs {
		ret[i] = rec.ItemId
	}
	return ret
}

func TestDiversityBooster(t *testing.T) {
	booster := NewDiversityBooster(1)
	recs := []model.Recommendation{
		{ItemId: "mug", Score: 0.90, Metadata: map[string]any{CategoryKey: "Kitchen"}},
		{ItemId: "cup", Score: 0.85, Metadata: map[string]any{CategoryKey: "Kitchen"}},
		{ItemId: "scarf", Score: 0.80, Metadata: map[string]any{CategoryKey: "Fashion"}},
		{ItemId: "book", Score: 0.50},
	}
	boosted := booster.Boost(recs)
	assert.Equal(t, []string{"mug", "scarf", "cup", "book"}, ids(boosted))
	assert.InDelta(t, 0.75, boosted[2].Score, 1e-9)
	assert.Equal(t, true, boosted[2].Metadata[PenalizedKey])
	assert.Nil(t, boosted[0].Metadata[PenalizedKey])
	// input is not modified
	assert.Equal(t, 0.85, recs[1].Score)
	assert.Nil(t, recs[1].Metadata[PenalizedKey])
}

func TestDiversityBooster_Idempotent(t *testing.T) {
	booster := NewDiversityBooster(2)
	recs := []model.Recommendation{
		{ItemId: "a", Score: 0.9, Metadata: map[string]any{CategoryKey: "x"}},
		{ItemId: "b", Score: 0.85, Metadata: map[string]any{CategoryKey: "x"}},
		{ItemId: "c", Score: 0.8, Metadata: map[string]any{CategoryKey: "x"}},
		{ItemId: "d", Score: 0.7, Metadata: map[string]any{CategoryKey: "y"}},
		{ItemId: "e", Score: 0.01, Metadata: map[string]any{CategoryKey: "y"}},
	}
	once := booster.Boost(recs)
	twice := booster.Boost(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"a", "d", "b", "c", "e"}, ids(once))
	assert.Zero(t, once[4].Score)
}

func TestDiversityBooster_NoCategory(t *testing.T) {
	booster := NewDiversityBooster(1)
	recs := []model.Recommendation{
		{ItemId: "a", Score: 0.9},
		{ItemId: "b", Score: 0.8, Metadata: map[string]any{}},
		{ItemId: "c", Score: 0.7, Metadata: map[string]any{CategoryKey: ""}},
	}
	boosted := booster.Boost(recs)
	assert.Equal(t, []string{"a", "b", "c"}, ids(boosted))
	assert.Equal(t, []float64{0.9, 0.8, 0.7}, []float64{boosted[0].Score, boosted[1].Score, boosted[2].Score})
	assert.Empty(t, booster.Boost(nil))
}
