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
	"context"
	"fmt"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

var DefaultKValues = []int{5, 10, 20}

// NDCG with binary relevance. The ideal DCG assumes min(|targets|, k) hits on top.
func NDCG(targetSet mapset.Set[string], rankList []string, k int) float32 {
	// IDCG = \sum^{min(|REL|,k)}_{i=1} \frac {1} {\log_2(i+1)}
	idcg := float32(0)
	for i := 0; i < targetSet.Cardinality() && i < k; i++ {
		idcg += 1.0 / math32.Log2(float32(i)+2.0)
	}
	if idcg == 0 {
		return 0
	}
	// DCG = \sum^{N}_{i=1} \frac {rel_i} {\log_2(i+1)}
	dcg := float32(0)
	for i, itemId := range rankList {
		if i >= k {
			break
		}
		if targetSet.Contains(itemId) {
			dcg += 1.0 / math32.Log2(float32(i)+2.0)
		}
	}
	return dcg / idcg
}

// Precision is the number of hits in the top k divided by k.
func Precision(targetSet mapset.Set[string], rankList []string, k int) float32 {
	if k <= 0 {
		return 0
	}
	return float32(hits(targetSet, rankList, k)) / float32(k)
}

// Recall is the fraction of relevant items found in the top k.
func Recall(targetSet mapset.Set[string], rankList []string, k int) float32 {
	if targetSet.Cardinality() == 0 {
		return 0
	}
	return float32(hits(targetSet, rankList, k)) / float32(targetSet.Cardinality())
}

func hits(targetSet mapset.Set[string], rankList []string, k int) int {
	hit := 0
	for i, itemId := range rankList {
		if i >= k {
			break
		}
		if targetSet.Contains(itemId) {
			hit++
		}
	}
	return hit
}

// Evaluate computes mean precision@k, recall@k and ndcg@k over test users. A failed
// prediction counts as an empty ranking.
func Evaluate(ctx context.Context, m Recommender, test []dataset.Interaction, kValues []int) (map[string]float32, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(ErrUntrained)
	}
	if len(kValues) == 0 {
		kValues = DefaultKValues
	}
	// group test items by user
	var users []string
	targets := make(map[string]mapset.Set[string])
	for _, interaction := range test {
		if interaction.UserId == "" || interaction.ItemId == "" {
			continue
		}
		if _, ok := targets[interaction.UserId]; !ok {
			users = append(users, interaction.UserId)
			targets[interaction.UserId] = mapset.NewThreadUnsafeSet[string]()
		}
		targets[interaction.UserId].Add(interaction.ItemId)
	}

	sums := make(map[string]float32)
	for _, k := range kValues {
		sums[fmt.Sprintf("precision@%d", k)] = 0
		sums[fmt.Sprintf("recall@%d", k)] = 0
		sums[fmt.Sprintf("ndcg@%d", k)] = 0
	}
	for _, userId := range users {
		for _, k := range kValues {
			recs, err := m.Predict(ctx, userId, nil, k)
			if err != nil {
				if ctx.Err() != nil {
					return nil, errors.Trace(ctx.Err())
				}
				log.Logger().Warn("failed to predict during evaluation",
					zap.String("user_id", userId), zap.Error(err))
				recs = nil
			}
			rankList := make([]string, len(recs))
			for i, rec := range recs {
				rankList[i] = rec.ItemId
			}
			sums[fmt.Sprintf("precision@%d", k)] += Precision(targets[userId], rankList, k)
			sums[fmt.Sprintf("recall@%d", k)] += Recall(targets[userId], rankList, k)
			sums[fmt.Sprintf("ndcg@%d", k)] += NDCG(targets[userId], rankList, k)
		}
	}
	if len(users) > 0 {
		for name := range sums {
			sums[name] /= float32(len(users))
		}
	}
	return sums, nil
}
