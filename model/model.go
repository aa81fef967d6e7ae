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
	"io"
	"sort"
	"time"

	"github.com/giftwise/giftrec/base"
	"github.com/giftwise/giftrec/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
)

var (
	ErrUntrained     = errors.New("model has not been trained")
	ErrModelMismatch = errors.New("model artifact does not match the receiving model")
	ErrSchemaVersion = errors.New("unsupported model artifact schema version")
	ErrNoModel       = errors.New("no sub-model could be trained")
)

// Recommendation is a scored item. Score and Confidence are in [0, 1].
type Recommendation struct {
	ItemId      string
	Score       float64
	Confidence  float64
	Explanation string
	Metadata    map[string]any
}

type Explanation struct {
	Explanation string
	Confidence  float64
	Factors     []string
}

type Similarity struct {
	ItemId string
	Score  float64
}

// Header describes a trained model. It is persisted in front of the model state.
type Header struct {
	Magic             string
	SchemaVersion     int
	ModelName         string
	Version           int64
	IsTrained         bool
	TrainingTimestamp time.Time
	FeatureColumns    []string
	Metadata          map[string]string
}

type FitConfig struct {
	Jobs    int
	Verbose int
}

func NewFitConfig() *FitConfig {
	return &FitConfig{
		Jobs:    1,
		Verbose: 10,
	}
}

func (config *FitConfig) SetVerbose(verbose int) *FitConfig {
	config.Verbose = verbose
	return config
}

func (config *FitConfig) SetJobs(jobs int) *FitConfig {
	config.Jobs = jobs
	return config
}

// Recommender is implemented by every recommendation model. Fit replaces all trained state.
// Predict with nil candidates scores every known item. Predict, Explain and SimilarItems are
// safe for concurrent use once Fit has returned.
type Recommender interface {
	Name() string
	IsTrained() bool
	Fit(ctx context.Context, interactions []dataset.Interaction, products []dataset.Product, config *FitConfig) error
	Predict(ctx context.Context, userId string, candidates []string, n int) ([]Recommendation, error)
	Explain(userId, itemId string) (Explanation, error)
	SimilarItems(itemId string, n int) ([]Similarity, error)
	Header() Header
	SetHeader(header Header)
	Marshal(w io.Writer) error
	Unmarshal(r io.Reader) error
}

type BaseModel struct {
	Params    Params               // Hyper-parameters
	header    Header               // Training metadata
	rng       base.RandomGenerator // Random generator
	randState int64                // Random seed
}

func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.randState = model.Params.GetInt64(RandomState, 0)
	model.rng = base.NewRandomGenerator(model.randState)
}

func (model *BaseModel) GetParams() Params {
	return model.Params
}

func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return model.rng
}

func (model *BaseModel) IsTrained() bool {
	return model.header.IsTrained
}

func (model *BaseModel) Header() Header {
	return model.header
}

func (model *BaseModel) SetHeader(header Header) {
	model.header = header
}

// MarkTrained records a successful fit.
func (model *BaseModel) MarkTrained(name string, featureColumns []string) {
	model.header.ModelName = name
	model.header.IsTrained = true
	model.header.TrainingTimestamp = time.Now()
	model.header.FeatureColumns = featureColumns
}

// Explain returns a generic explanation.
func (model *BaseModel) Explain(_, _ string) (Explanation, error) {
	return Explanation{
		Explanation: "Recommended based on your preferences",
		Confidence:  0.5,
		Factors:     []string{},
	}, nil
}

// SimilarItems returns no items.
func (model *BaseModel) SimilarItems(_ string, _ int) ([]Similarity, error) {
	return []Similarity{}, nil
}

// ResolveCandidates converts candidate names into ids of known items, dropping unknown and
// duplicate names. Nil candidates select every item.
func ResolveCandidates(index *dataset.Index, candidates []string) []int32 {
	if candidates == nil {
		return lo.RangeFrom[int32](0, index.Count())
	}
	ids := make([]int32, 0, len(candidates))
	seen := make(map[int]struct{}, len(candidates))
	for _, name := range candidates {
		id := index.Id(name)
		if id == dataset.NotId {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, int32(id))
	}
	return ids
}

// SortRecommendations sorts by descending score with ties broken by item id and keeps the
// first n.
func SortRecommendations(recs []Recommendation, n int) []Recommendation {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ItemId < recs[j].ItemId
	})
	if n >= 0 && len(recs) > n {
		recs = recs[:n]
	}
	return recs
}
