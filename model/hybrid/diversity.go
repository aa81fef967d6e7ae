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
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/giftwise/giftrec/model"
	"github.com/samber/lo"
)

const (
	CategoryKey  = "category"
	PenalizedKey = "diversity_penalized"
)

// DiversityBooster is a greedy re-ranker: walking a ranked list, every item whose category
// was already seen loses Factor * 0.1 of its score, then the list is sorted again. Items
// without a category get a key unique to their position and are never penalized. An item is
// penalized at most once, so boosting a boosted list changes nothing.
type DiversityBooster struct {
	Factor float32
}

func NewDiversityBooster(factor float32) *DiversityBooster {
	return &DiversityBooster{Factor: factor}
}

func (b *DiversityBooster) Penalty() float64 {
	return float64(b.Factor) * 0.1
}

// Boost returns a re-ranked copy of a list sorted by descending score.
func (b *DiversityBooster) Boost(recs []model.Recommendation) []model.Recommendation {
	boosted := make([]model.Recommendation, len(recs))
	seen := mapset.NewThreadUnsafeSet[string]()
	for i, rec := range recs {
		rec.Metadata = lo.Assign(rec.Metadata)
		key, ok := rec.Metadata[CategoryKey].(string)
		if !ok || key == "" {
			key = fmt.Sprintf("item_%d", i)
		}
		if seen.Contains(key) && b.Factor > 0 {
			if penalized, _ := rec.Metadata[PenalizedKey].(bool); !penalized {
				rec.Score = max(0, rec.Score-b.Penalty())
				rec.Metadata[PenalizedKey] = true
			}
		}
		seen.Add(key)
		boosted[i] = rec
	}
	return model.SortRecommendations(boosted, -1)
}
