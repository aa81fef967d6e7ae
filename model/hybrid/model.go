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
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/giftwise/giftrec/base/encoding"
	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/giftwise/giftrec/model/cf"
	"github.com/giftwise/giftrec/model/content"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const Name = "hybrid"

// Hybrid blends a collaborative filtering model and a content based model. Collaborative
// filtering is consulted only for users with at least MinInteractionsForCF interactions.
//
// Hyper-parameters:
//
//	CollaborativeWeight  - The weight of collaborative scores. Default is 0.6.
//	ContentWeight        - The weight of content scores. Default is 0.4.
//	MinInteractionsForCF - The interactions a user needs for collaborative filtering. Default is 5.
//	DiversityFactor      - The strength of diversity boosting. Default is 0.1.
//
// Weights are normalized to sum to one. Parameters of sub-models are passed through.
type Hybrid struct {
	model.BaseModel
	collaborativeWeight  float32
	contentWeight        float32
	minInteractionsForCF int
	booster              *DiversityBooster
	collaborative        model.Recommender
	content              model.Recommender
	userCounts           map[string]int
	categories           map[string]string
}

// NewHybrid creates a hybrid model with its own sub-models.
func NewHybrid(params model.Params) *Hybrid {
	return NewHybridWith(params, cf.NewCollaborativeFiltering(params), content.NewContentBased(params))
}

// NewHybridWith creates a hybrid model over the given sub-models.
func NewHybridWith(params model.Params, collaborative, content model.Recommender) *Hybrid {
	m := &Hybrid{collaborative: collaborative, content: content}
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the model.
func (m *Hybrid) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.minInteractionsForCF = m.Params.GetInt(model.MinInteractionsForCF, 5)
	m.booster = NewDiversityBooster(m.Params.GetFloat32(model.DiversityFactor, 0.1))
	if err := m.UpdateWeights(
		m.Params.GetFloat32(model.CollaborativeWeight, 0.6),
		m.Params.GetFloat32(model.ContentWeight, 0.4)); err != nil {
		log.Logger().Warn("invalid hybrid weights, falling back to defaults", zap.Error(err))
		_ = m.UpdateWeights(0.6, 0.4)
	}
}

func (m *Hybrid) Name() string {
	return Name
}

// UpdateWeights sets and normalizes the blending weights.
func (m *Hybrid) UpdateWeights(collaborativeWeight, contentWeight float32) error {
	if collaborativeWeight < 0 || contentWeight < 0 || collaborativeWeight+contentWeight <= 0 {
		return errors.NotValidf("weights (%v, %v)", collaborativeWeight, contentWeight)
	}
	total := collaborativeWeight + contentWeight
	m.collaborativeWeight = collaborativeWeight / total
	m.contentWeight = contentWeight / total
	return nil
}

// Weights returns the normalized blending weights.
func (m *Hybrid) Weights() (float32, float32) {
	return m.collaborativeWeight, m.contentWeight
}

func (m *Hybrid) Collaborative() model.Recommender {
	return m.collaborative
}

func (m *Hybrid) Content() model.Recommender {
	return m.content
}

// Fit trains both sub-models concurrently. A failed sub-model is logged and left out. An
// error is returned only if both fail.
func (m *Hybrid) Fit(ctx context.Context, interactions []dataset.Interaction, products []dataset.Product, config *model.FitConfig) error {
	if config == nil {
		config = model.NewFitConfig()
	}
	m.SetHeader(model.Header{})
	log.Logger().Info("fit hybrid",
		zap.Int("n_interactions", len(interactions)),
		zap.Int("n_products", len(products)),
		zap.Float32("collaborative_weight", m.collaborativeWeight),
		zap.Float32("content_weight", m.contentWeight))
	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	for i, sub := range []model.Recommender{m.collaborative, m.content} {
		wg.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = errors.New(fmt.Sprintf("panic: %v", r))
				}
			}()
			errs[i] = sub.Fit(ctx, interactions, products, config)
		})
	}
	wg.Wait()
	// a sub-model that failed to fit must not serve its previous state
	for i, sub := range []model.Recommender{m.collaborative, m.content} {
		if errs[i] != nil {
			sub.SetHeader(model.Header{})
		}
	}
	if errs[0] != nil {
		log.Logger().Error("failed to fit collaborative filtering", zap.Error(errs[0]))
	}
	if errs[1] != nil {
		log.Logger().Error("failed to fit content based", zap.Error(errs[1]))
	}
	if errs[0] != nil && errs[1] != nil {
		return errors.Annotatef(model.ErrNoModel, "collaborative: %v; content: %v", errs[0], errs[1])
	}
	m.userCounts = dataset.NewDataset(interactions, 1).UserInteractionCounts()
	m.categories = make(map[string]string)
	for _, product := range products {
		if product.Id != "" && product.PrimaryCategory != "" {
			m.categories[product.Id] = product.PrimaryCategory
		}
	}
	m.MarkTrained(Name, lo.Uniq(append(m.collaborative.Header().FeatureColumns, m.content.Header().FeatureColumns...)))
	header := m.Header()
	header.Metadata = map[string]string{
		"collaborative_trained": fmt.Sprint(m.collaborative.IsTrained()),
		"content_trained":       fmt.Sprint(m.content.IsTrained()),
	}
	m.SetHeader(header)
	return nil
}

func (m *Hybrid) useCollaborative(userId string) (bool, string) {
	if !m.collaborative.IsTrained() {
		return false, "collaborative model is not trained"
	}
	if count := m.userCounts[userId]; count < m.minInteractionsForCF {
		return false, fmt.Sprintf("user has %d interactions, fewer than %d", count, m.minInteractionsForCF)
	}
	return true, ""
}

func (m *Hybrid) subPredict(ctx context.Context, sub model.Recommender, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	recs, err := sub.Predict(ctx, userId, candidates, n)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errors.Trace(ctx.Err())
		}
		log.Logger().Warn("sub-model prediction failed",
			zap.String("model", sub.Name()), zap.String("user_id", userId), zap.Error(err))
		return nil, nil
	}
	return recs, nil
}

// Predict blends sub-model recommendations, boosts diversity and keeps the top n.
func (m *Hybrid) Predict(ctx context.Context, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	if n <= 0 {
		return []model.Recommendation{}, nil
	}
	var cfRecs, cbRecs []model.Recommendation
	var err error
	useCF, cfReason := m.useCollaborative(userId)
	if useCF {
		if cfRecs, err = m.subPredict(ctx, m.collaborative, userId, candidates, 2*n); err != nil {
			return nil, errors.Trace(err)
		}
		if len(cfRecs) == 0 {
			cfReason = "collaborative model returned no results"
		}
	}
	cbReason := "content model is not trained"
	if m.content.IsTrained() {
		if cbRecs, err = m.subPredict(ctx, m.content, userId, candidates, 2*n); err != nil {
			return nil, errors.Trace(err)
		}
		cbReason = "content model returned no results"
	}

	var recs []model.Recommendation
	switch {
	case len(cfRecs) > 0 && len(cbRecs) > 0:
		recs = m.blend(cfRecs, cbRecs)
	case len(cfRecs) > 0:
		recs = m.passThrough(cfRecs, "collaborative_only", cbReason)
	case len(cbRecs) > 0:
		recs = m.passThrough(cbRecs, "content_only", cfReason)
	default:
		return []model.Recommendation{}, nil
	}
	for i := range recs {
		if _, ok := recs[i].Metadata[CategoryKey]; !ok {
			if c, ok := m.categories[recs[i].ItemId]; ok {
				recs[i].Metadata[CategoryKey] = c
			}
		}
	}
	recs = model.SortRecommendations(recs, -1)
	recs = m.booster.Boost(recs)
	return model.SortRecommendations(recs, n), nil
}

func (m *Hybrid) blend(cfRecs, cbRecs []model.Recommendation) []model.Recommendation {
	wCF, wCB := float64(m.collaborativeWeight), float64(m.contentWeight)
	byItem := make(map[string]int)
	var recs []model.Recommendation
	var fromCF, fromCB []bool
	add := func(rec model.Recommendation) int {
		i, ok := byItem[rec.ItemId]
		if !ok {
			i = len(recs)
			byItem[rec.ItemId] = i
			recs = append(recs, model.Recommendation{
				ItemId: rec.ItemId,
				Metadata: map[string]any{
					"collaborative_score":  0.0,
					"content_score":        0.0,
					"collaborative_weight": wCF,
					"content_weight":       wCB,
				},
			})
			fromCF, fromCB = append(fromCF, false), append(fromCB, false)
		}
		if c, ok := rec.Metadata[CategoryKey]; ok {
			recs[i].Metadata[CategoryKey] = c
		}
		return i
	}
	for _, rec := range cfRecs {
		i := add(rec)
		fromCF[i] = true
		recs[i].Score += wCF * rec.Score
		recs[i].Confidence += wCF * rec.Confidence
		recs[i].Metadata["collaborative_score"] = rec.Score
	}
	for _, rec := range cbRecs {
		i := add(rec)
		fromCB[i] = true
		recs[i].Score += wCB * rec.Score
		recs[i].Confidence += wCB * rec.Confidence
		recs[i].Metadata["content_score"] = rec.Score
	}
	for i := range recs {
		var signals []string
		if fromCF[i] {
			signals = append(signals, "users with similar preferences")
		}
		if fromCB[i] {
			signals = append(signals, "similarity to items you liked")
		}
		recs[i].Explanation = "Recommended based on " + strings.Join(signals, " and ")
		recs[i].Metadata["model"] = Name
	}
	return recs
}

func (m *Hybrid) passThrough(subRecs []model.Recommendation, fallback, reason string) []model.Recommendation {
	recs := make([]model.Recommendation, len(subRecs))
	for i, rec := range subRecs {
		rec.Metadata = lo.Assign(rec.Metadata, map[string]any{
			"model":           Name,
			"fallback":        fallback,
			"fallback_reason": reason,
		})
		recs[i] = rec
	}
	return recs
}

// Explain merges explanations of the trained sub-models.
func (m *Hybrid) Explain(userId, itemId string) (model.Explanation, error) {
	if !m.IsTrained() {
		return model.Explanation{}, errors.Trace(model.ErrUntrained)
	}
	var (
		texts      []string
		factors    []string
		confidence float64
		weights    float64
	)
	useCF, _ := m.useCollaborative(userId)
	for _, sub := range []struct {
		model   model.Recommender
		weight  float64
		enabled bool
	}{
		{m.collaborative, float64(m.collaborativeWeight), useCF},
		{m.content, float64(m.contentWeight), m.content.IsTrained()},
	} {
		if !sub.enabled {
			continue
		}
		explanation, err := sub.model.Explain(userId, itemId)
		if err != nil {
			log.Logger().Warn("sub-model explanation failed",
				zap.String("model", sub.model.Name()), zap.Error(err))
			continue
		}
		texts = append(texts, explanation.Explanation)
		factors = append(factors, explanation.Factors...)
		confidence += sub.weight * explanation.Confidence
		weights += sub.weight
	}
	if weights == 0 {
		return m.BaseModel.Explain(userId, itemId)
	}
	return model.Explanation{
		Explanation: strings.Join(lo.Uniq(texts), "; "),
		Confidence:  confidence / weights,
		Factors:     lo.Uniq(factors),
	}, nil
}

// SimilarItems blends similar items of the trained sub-models with the prediction weights.
func (m *Hybrid) SimilarItems(itemId string, n int) ([]model.Similarity, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	if n <= 0 {
		return []model.Similarity{}, nil
	}
	var recs []model.Recommendation
	byItem := make(map[string]int)
	for _, sub := range []struct {
		model  model.Recommender
		weight float64
	}{
		{m.collaborative, float64(m.collaborativeWeight)},
		{m.content, float64(m.contentWeight)},
	} {
		if !sub.model.IsTrained() {
			continue
		}
		similar, err := sub.model.SimilarItems(itemId, 2*n)
		if err != nil {
			log.Logger().Warn("sub-model similar items failed",
				zap.String("model", sub.model.Name()), zap.Error(err))
			continue
		}
		for _, s := range similar {
			i, ok := byItem[s.ItemId]
			if !ok {
				i = len(recs)
				byItem[s.ItemId] = i
				recs = append(recs, model.Recommendation{ItemId: s.ItemId})
			}
			recs[i].Score += sub.weight * s.Score
		}
	}
	recs = model.SortRecommendations(recs, n)
	return lo.Map(recs, func(rec model.Recommendation, _ int) model.Similarity {
		return model.Similarity{ItemId: rec.ItemId, Score: rec.Score}
	}), nil
}

type hybridState struct {
	CollaborativeTrained bool
	ContentTrained       bool
	UserCounts           map[string]int
	Categories           map[string]string
}

// Marshal model into byte stream. Trained sub-models are embedded as artifacts.
func (m *Hybrid) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	state := hybridState{
		CollaborativeTrained: m.collaborative.IsTrained(),
		ContentTrained:       m.content.IsTrained(),
		UserCounts:           m.userCounts,
		Categories:           m.categories,
	}
	if err := encoding.WriteGob(w, state); err != nil {
		return errors.Trace(err)
	}
	if state.CollaborativeTrained {
		if err := model.Save(w, m.collaborative); err != nil {
			return errors.Trace(err)
		}
	}
	if state.ContentTrained {
		if err := model.Save(w, m.content); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// Unmarshal model from byte stream.
func (m *Hybrid) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	var state hybridState
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.userCounts = lo.Assign(state.UserCounts)
	m.categories = lo.Assign(state.Categories)
	if m.collaborative == nil {
		m.collaborative = cf.NewCollaborativeFiltering(params)
	}
	if m.content == nil {
		m.content = content.NewContentBased(params)
	}
	if state.CollaborativeTrained {
		if err := model.Load(r, m.collaborative); err != nil {
			return errors.Trace(err)
		}
	} else {
		m.collaborative.SetHeader(model.Header{})
	}
	if state.ContentTrained {
		if err := model.Load(r, m.content); err != nil {
			return errors.Trace(err)
		}
	} else {
		m.content.SetHeader(model.Header{})
	}
	header := m.Header()
	header.IsTrained = true
	m.SetHeader(header)
	return nil
}
