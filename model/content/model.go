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
	"context"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/giftwise/giftrec/base/encoding"
	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/common/floats"
	"github.com/giftwise/giftrec/common/heap"
	"github.com/giftwise/giftrec/common/parallel"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	Name = "content_based"

	coldStartConf = 0.3
	maxConfidence = 0.9
	checkInterval = 1024
)

// ContentBased recommends items whose embeddings are close to the rating weighted average
// embedding of the items a user interacted with. Users without a profile are served by
// interaction count popularity.
//
// Hyper-parameters:
//
//	MaxFeatures         - The size of the TF-IDF vocabulary. Default is 5000.
//	MinDF               - The minimum document count of a term. Default is 1.
//	MaxDF               - The maximum document ratio of a term. Default is 0.95.
//	NGramMax            - The longest n-gram. Default is 2.
//	StopWords           - Remove english stop words. Default is true.
//	NComponents         - The dimension of embeddings after SVD. Default is 100.
//	SimilarityThreshold - Item similarities below are dropped. Default is 0.1.
//	ImplicitRating      - The rating of interactions without one. Default is 1.
type ContentBased struct {
	model.BaseModel
	// Hyper parameters
	maxFeatures         int
	minDF               int
	maxDF               float32
	nGramMax            int
	stopWords           bool
	nComponents         int
	similarityThreshold float32
	implicitRating      float32
	textColumns         []string
	numericColumns      []string
	categoricalColumns  []string
	// Model parameters
	Processor    *FeatureProcessor
	ItemIndex    *dataset.Index
	UserIndex    *dataset.Index
	Embeddings   [][]float32
	UserProfiles [][]float32
	UserHistory  [][]int32
	Popularity   []int
	Categories   []string
	Brands       []string
	hasProfile   *bitset.BitSet
	similarity   [][]float32
}

// NewContentBased creates a content based model.
func NewContentBased(params model.Params) *ContentBased {
	m := new(ContentBased)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the model.
func (m *ContentBased) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.maxFeatures = m.Params.GetInt(model.MaxFeatures, 5000)
	m.minDF = m.Params.GetInt(model.MinDF, 1)
	m.maxDF = m.Params.GetFloat32(model.MaxDF, 0.95)
	m.nGramMax = m.Params.GetInt(model.NGramMax, 2)
	m.stopWords = m.Params.GetBool(model.StopWords, true)
	m.nComponents = m.Params.GetInt(model.NComponents, 100)
	m.similarityThreshold = m.Params.GetFloat32(model.SimilarityThreshold, 0.1)
	m.implicitRating = m.Params.GetFloat32(model.ImplicitRating, 1)
	m.textColumns = m.Params.GetStrings(model.TextColumns, DefaultTextColumns)
	m.numericColumns = m.Params.GetStrings(model.NumericColumns, DefaultNumericColumns)
	m.categoricalColumns = m.Params.GetStrings(model.CategoricalColumns, DefaultCategoricalColumns)
}

func (m *ContentBased) Name() string {
	return Name
}

// Fit builds item embeddings, the item similarity matrix and user profiles from scratch.
func (m *ContentBased) Fit(ctx context.Context, interactions []dataset.Interaction, products []dataset.Product, config *model.FitConfig) error {
	if config == nil {
		config = model.NewFitConfig()
	}
	// a failed fit leaves the model untrained
	m.SetHeader(model.Header{})
	// deduplicate catalog
	m.ItemIndex = dataset.NewIndex()
	var catalog []dataset.Product
	for _, product := range products {
		if product.Id == "" || m.ItemIndex.Contains(product.Id) {
			continue
		}
		m.ItemIndex.Add(product.Id)
		catalog = append(catalog, product)
	}
	log.Logger().Info("fit content based",
		zap.Int("n_items", len(catalog)),
		zap.Int("n_interactions", len(interactions)),
		zap.Any("params", m.GetParams()),
		zap.Any("config", config))
	m.Processor = NewFeatureProcessor(
		NewTfIdf(m.maxFeatures, m.minDF, m.maxDF, m.nGramMax, m.stopWords),
		m.nComponents, m.textColumns, m.numericColumns, m.categoricalColumns)
	embeddings, err := m.Processor.Fit(catalog)
	if err != nil {
		return errors.Trace(err)
	}
	m.Embeddings = embeddings
	m.Categories = lo.Map(catalog, func(p dataset.Product, _ int) string { return category(p, "primary_category") })
	m.Brands = lo.Map(catalog, func(p dataset.Product, _ int) string { return p.Brand })
	if err = m.buildSimilarity(ctx, config.Jobs); err != nil {
		return errors.Trace(err)
	}
	m.buildProfiles(interactions)
	log.Logger().Info("fit content based complete",
		zap.Int("n_dims", m.Processor.Width()),
		zap.Int("n_users", m.UserIndex.Count()),
		zap.Uint("n_profiles", m.hasProfile.Count()))
	m.MarkTrained(Name, m.Processor.FeatureColumns())
	return nil
}

// buildSimilarity computes pairwise cosine similarity between items. Values below the
// threshold are zeroed.
func (m *ContentBased) buildSimilarity(ctx context.Context, jobs int) error {
	n := len(m.Embeddings)
	norms := lo.Map(m.Embeddings, func(e []float32, _ int) float32 { return floats.Norm(e) })
	m.similarity = make([][]float32, n)
	return parallel.For(ctx, n, jobs, func(i int) {
		row := make([]float32, n)
		for j := 0; j < n; j++ {
			if norms[i] == 0 || norms[j] == 0 {
				continue
			}
			sim := floats.Dot(m.Embeddings[i], m.Embeddings[j]) / (norms[i] * norms[j])
			if sim >= m.similarityThreshold {
				row[j] = sim
			}
		}
		m.similarity[i] = row
	})
}

func (m *ContentBased) buildProfiles(interactions []dataset.Interaction) {
	m.UserIndex = dataset.NewIndex()
	m.Popularity = make([]int, m.ItemIndex.Count())
	var sums [][]float32
	var weights []float32
	m.UserHistory = nil
	for _, interaction := range interactions {
		if interaction.UserId == "" {
			continue
		}
		userId := m.UserIndex.Add(interaction.UserId)
		if userId == len(sums) {
			sums = append(sums, make([]float32, m.Processor.Width()))
			weights = append(weights, 0)
			m.UserHistory = append(m.UserHistory, nil)
		}
		itemId := m.ItemIndex.Id(interaction.ItemId)
		if itemId == dataset.NotId {
			continue
		}
		rating := interaction.RatingOr(m.implicitRating)
		m.Popularity[itemId]++
		floats.MulConstAdd(m.Embeddings[itemId], rating, sums[userId])
		weights[userId] += rating
		m.UserHistory[userId] = append(m.UserHistory[userId], int32(itemId))
	}
	m.hasProfile = bitset.New(uint(len(sums)))
	m.UserProfiles = make([][]float32, len(sums))
	for userId, sum := range sums {
		if len(m.UserHistory[userId]) == 0 || weights[userId] == 0 {
			m.UserProfiles[userId] = []float32{}
			continue
		}
		floats.MulConst(sum, 1/weights[userId])
		m.UserProfiles[userId] = sum
		m.hasProfile.Set(uint(userId))
	}
}

func (m *ContentBased) profile(userId string) ([]float32, int, bool) {
	id := m.UserIndex.Id(userId)
	if id == dataset.NotId || !m.hasProfile.Test(uint(id)) {
		return nil, id, false
	}
	return m.UserProfiles[id], id, true
}

// Predict ranks candidates by cosine similarity to the user profile. Users without a profile
// get items ranked by interaction count.
func (m *ContentBased) Predict(ctx context.Context, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	recs := []model.Recommendation{}
	if n <= 0 {
		return recs, nil
	}
	itemIds := model.ResolveCandidates(m.ItemIndex, candidates)
	profile, _, ok := m.profile(userId)
	if !ok {
		return m.coldStart(itemIds, n), nil
	}
	for i, itemId := range itemIds {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Trace(err)
			}
		}
		similarity := floats.Cosine(profile, m.Embeddings[itemId])
		if similarity <= 0 {
			continue
		}
		score := floats.Clamp(similarity, 0, 1)
		itemName, _ := m.ItemIndex.String(int(itemId))
		recs = append(recs, model.Recommendation{
			ItemId:      itemName,
			Score:       float64(score),
			Confidence:  float64(math32.Min(maxConfidence, score+0.1)),
			Explanation: "Similar to items you liked",
			Metadata: m.metadata(itemId, map[string]any{
				"model":      Name,
				"similarity": float64(similarity),
			}),
		})
	}
	return model.SortRecommendations(recs, n), nil
}

// metadata adds the category of an item if it has one.
func (m *ContentBased) metadata(itemId int32, metadata map[string]any) map[string]any {
	if c := m.Categories[itemId]; c != unknownCategory {
		metadata["category"] = c
	}
	return metadata
}

func (m *ContentBased) coldStart(itemIds []int32, n int) []model.Recommendation {
	maxCount := 0
	for _, itemId := range itemIds {
		maxCount = max(maxCount, m.Popularity[itemId])
	}
	recs := make([]model.Recommendation, 0, len(itemIds))
	for _, itemId := range itemIds {
		itemName, _ := m.ItemIndex.String(int(itemId))
		var score float64
		if maxCount > 0 {
			score = float64(m.Popularity[itemId]) / float64(maxCount)
		}
		recs = append(recs, model.Recommendation{
			ItemId:      itemName,
			Score:       score,
			Confidence:  coldStartConf,
			Explanation: "Popular item",
			Metadata: m.metadata(itemId, map[string]any{
				"model":        Name,
				"cold_start":   true,
				"interactions": m.Popularity[itemId],
			}),
		})
	}
	return model.SortRecommendations(recs, n)
}

// Explain names the liked items most similar to the recommended item and shared attributes.
func (m *ContentBased) Explain(userId, itemId string) (model.Explanation, error) {
	if !m.IsTrained() {
		return model.Explanation{}, errors.Trace(model.ErrUntrained)
	}
	itemIndex := m.ItemIndex.Id(itemId)
	if itemIndex == dataset.NotId {
		return m.BaseModel.Explain(userId, itemId)
	}
	profile, userIndex, ok := m.profile(userId)
	if !ok {
		return model.Explanation{
			Explanation: "Popular item",
			Confidence:  coldStartConf,
			Factors:     []string{fmt.Sprintf("%d interactions", m.Popularity[itemIndex])},
		}, nil
	}
	similarity := floats.Clamp(floats.Cosine(profile, m.Embeddings[itemIndex]), 0, 1)
	filter := heap.NewTopKFilter[int32, float32](3)
	var sameCategory, sameBrand bool
	for _, liked := range lo.Uniq(m.UserHistory[userIndex]) {
		if liked == int32(itemIndex) {
			continue
		}
		if sim := m.similarity[itemIndex][liked]; sim > 0 {
			filter.Push(liked, sim)
		}
		sameCategory = sameCategory || (m.Categories[liked] == m.Categories[itemIndex] && m.Categories[itemIndex] != unknownCategory)
		sameBrand = sameBrand || (m.Brands[liked] == m.Brands[itemIndex] && m.Brands[itemIndex] != "")
	}
	var factors []string
	liked, _ := filter.PopAll()
	for _, id := range liked {
		name, _ := m.ItemIndex.String(int(id))
		factors = append(factors, fmt.Sprintf("similar to %s", name))
	}
	if sameCategory {
		factors = append(factors, fmt.Sprintf("same category: %s", m.Categories[itemIndex]))
	}
	if sameBrand {
		factors = append(factors, fmt.Sprintf("same brand: %s", m.Brands[itemIndex]))
	}
	if factors == nil {
		factors = []string{}
	}
	return model.Explanation{
		Explanation: "Similar to items you liked",
		Confidence:  float64(math32.Min(maxConfidence, similarity+0.1)),
		Factors:     factors,
	}, nil
}

// SimilarItems returns the nearest items in the thresholded similarity matrix.
func (m *ContentBased) SimilarItems(itemId string, n int) ([]model.Similarity, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	itemIndex := m.ItemIndex.Id(itemId)
	if itemIndex == dataset.NotId || n <= 0 {
		return []model.Similarity{}, nil
	}
	filter := heap.NewTopKFilter[int, float32](n)
	for other, sim := range m.similarity[itemIndex] {
		if other != itemIndex && sim > 0 {
			filter.Push(other, sim)
		}
	}
	ids, scores := filter.PopAll()
	similar := make([]model.Similarity, len(ids))
	for i, id := range ids {
		name, _ := m.ItemIndex.String(id)
		similar[i] = model.Similarity{ItemId: name, Score: float64(scores[i])}
	}
	return similar, nil
}

// Marshal model into byte stream. The similarity matrix is rebuilt when unmarshaling.
func (m *ContentBased) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	if err := m.Processor.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := m.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, m.Embeddings); err != nil {
		return errors.Trace(err)
	}
	if err := encoding.WriteMatrix(w, m.UserProfiles); err != nil {
		return errors.Trace(err)
	}
	profiles, err := m.hasProfile.MarshalBinary()
	if err != nil {
		return errors.Trace(err)
	}
	if err = encoding.WriteBytes(w, profiles); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, contentState{
		UserHistory: m.UserHistory,
		Popularity:  m.Popularity,
		Categories:  m.Categories,
		Brands:      m.Brands,
	})
}

type contentState struct {
	UserHistory [][]int32
	Popularity  []int
	Categories  []string
	Brands      []string
}

// Unmarshal model from byte stream.
func (m *ContentBased) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	m.Processor = new(FeatureProcessor)
	if err := m.Processor.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.ItemIndex, m.UserIndex = dataset.NewIndex(), dataset.NewIndex()
	if err := m.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := m.UserIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	var err error
	if m.Embeddings, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	if m.UserProfiles, err = encoding.ReadMatrix(r); err != nil {
		return errors.Trace(err)
	}
	profiles, err := encoding.ReadBytes(r)
	if err != nil {
		return errors.Trace(err)
	}
	m.hasProfile = new(bitset.BitSet)
	if err = m.hasProfile.UnmarshalBinary(profiles); err != nil {
		return errors.Trace(err)
	}
	var state contentState
	if err = encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	m.UserHistory, m.Popularity, m.Categories, m.Brands = state.UserHistory, state.Popularity, state.Categories, state.Brands
	if len(m.Embeddings) != m.ItemIndex.Count() || len(m.Categories) != m.ItemIndex.Count() {
		return errors.Errorf("content based: %d embeddings for %d items", len(m.Embeddings), m.ItemIndex.Count())
	}
	if err = m.buildSimilarity(context.Background(), 1); err != nil {
		return errors.Trace(err)
	}
	header := m.Header()
	header.IsTrained = true
	m.SetHeader(header)
	return nil
}
