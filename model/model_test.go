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
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/giftwise/giftrec/base/encoding"
	"github.com/giftwise/giftrec/dataset"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

// mockModel ranks a fixed list of items for every user.
type mockModel struct {
	BaseModel
	name    string
	ranking map[string][]string
}

func newMockModel(name string) *mockModel {
	return &mockModel{name: name, ranking: make(map[string][]string)}
}

func (m *mockModel) Name() string {
	return m.name
}

func (m *mockModel) Fit(_ context.Context, interactions []dataset.Interaction, _ []dataset.Product, _ *FitConfig) error {
	m.ranking = make(map[string][]string)
	for _, interaction := range interactions {
		m.ranking[interaction.UserId] = append(m.ranking[interaction.UserId], interaction.ItemId)
	}
	m.MarkTrained(m.name, nil)
	return nil
}

func (m *mockModel) Predict(_ context.Context, userId string, _ []string, n int) ([]Recommendation, error) {
	switch userId {
	case "error":
		return nil, errors.New("prediction failed")
	case "panic":
		panic("prediction panicked")
	}
	var recs []Recommendation
	for i, itemId := range m.ranking[userId] {
		if i >= n {
			break
		}
		recs = append(recs, Recommendation{ItemId: itemId, Score: 1 / float64(i+1), Confidence: 0.5})
	}
	return recs, nil
}

func (m *mockModel) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, m.ranking)
}

func (m *mockModel) Unmarshal(r io.Reader) error {
	return encoding.ReadGob(r, &m.ranking)
}

func TestBaseModel(t *testing.T) {
	m := newMockModel("mock")
	m.SetParams(Params{RandomState: 1})
	assert.False(t, m.IsTrained())
	explanation, err := m.Explain("u", "i")
	assert.NoError(t, err)
	assert.Equal(t, 0.5, explanation.Confidence)
	assert.NotEmpty(t, explanation.Explanation)
	similar, err := m.SimilarItems("i", 10)
	assert.NoError(t, err)
	assert.Empty(t, similar)
	assert.NoError(t, m.Fit(context.Background(), nil, nil, NewFitConfig()))
	assert.True(t, m.IsTrained())
	assert.Equal(t, "mock", m.Header().ModelName)
	assert.False(t, m.Header().TrainingTimestamp.IsZero())
}

func TestResolveCandidates(t *testing.T) {
	index := dataset.NewIndex()
	index.Add("a")
	index.Add("b")
	index.Add("c")
	assert.Equal(t, []int32{0, 1, 2}, ResolveCandidates(index, nil))
	assert.Equal(t, []int32{2, 0}, ResolveCandidates(index, []string{"c", "x", "a", "c"}))
	assert.Empty(t, ResolveCandidates(index, []string{}))
}

func TestSortRecommendations(t *testing.T) {
	recs := SortRecommendations([]Recommendation{
		{ItemId: "b", Score: 0.5},
		{ItemId: "a", Score: 0.5},
		{ItemId: "c", Score: 0.9},
		{ItemId: "d", Score: 0.1},
	}, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{recs[0].ItemId, recs[1].ItemId, recs[2].ItemId})
}

func TestBatchPredict(t *testing.T) {
	m := newMockModel("mock")
	assert.NoError(t, m.Fit(context.Background(), []dataset.Interaction{
		{UserId: "u1", ItemId: "i1"},
		{UserId: "u2", ItemId: "i2"},
	}, nil, NewFitConfig()))
	for _, jobs := range []int{1, 4} {
		results := BatchPredict(context.Background(), m, []string{"u1", "error", "panic", "u2"}, 10, jobs)
		assert.Len(t, results, 4)
		assert.Equal(t, "i1", results["u1"][0].ItemId)
		assert.Equal(t, "i2", results["u2"][0].ItemId)
		assert.NotNil(t, results["error"])
		assert.Empty(t, results["error"])
		assert.NotNil(t, results["panic"])
		assert.Empty(t, results["panic"])
	}
}

func TestMetrics(t *testing.T) {
	targets := mapset.NewSet("a", "b")
	rankList := []string{"a", "x", "b", "y"}
	assert.Equal(t, float32(0.5), Precision(targets, rankList, 4))
	assert.Equal(t, float32(1), Recall(targets, rankList, 4))
	assert.Equal(t, float32(0.5), Recall(targets, rankList, 2))
	// dcg = 1 + 1/log2(4) = 1.5, idcg = 1 + 1/log2(3)
	assert.InDelta(t, 1.5/(1+1/1.5849625), NDCG(targets, rankList, 4), 1e-5)
	// precision divides by k even if fewer items are ranked
	assert.Equal(t, float32(0.2), Precision(targets, []string{"a"}, 5))
	assert.Equal(t, float32(1), NDCG(mapset.NewSet("a"), []string{"a"}, 5))
	assert.Zero(t, NDCG(mapset.NewSet[string](), []string{"a"}, 5))
	assert.Zero(t, Recall(mapset.NewSet[string](), []string{"a"}, 5))
}

func TestEvaluate(t *testing.T) {
	// 3 users and 5 items, item 3 is ranked first for user A
	m := newMockModel("mock")
	assert.NoError(t, m.Fit(context.Background(), []dataset.Interaction{
		{UserId: "A", ItemId: "3"}, {UserId: "A", ItemId: "1"}, {UserId: "A", ItemId: "2"},
		{UserId: "A", ItemId: "4"}, {UserId: "A", ItemId: "5"},
		{UserId: "B", ItemId: "1"}, {UserId: "B", ItemId: "2"},
		{UserId: "C", ItemId: "5"},
	}, nil, NewFitConfig()))
	scores, err := Evaluate(context.Background(), m, []dataset.Interaction{
		{UserId: "A", ItemId: "3"},
	}, []int{5})
	assert.NoError(t, err)
	assert.Greater(t, scores["precision@5"], float32(0))
	assert.Greater(t, scores["ndcg@5"], float32(0))
	assert.Equal(t, float32(0.2), scores["precision@5"])
	assert.Equal(t, float32(1), scores["recall@5"])
	assert.Equal(t, float32(1), scores["ndcg@5"])

	// users are averaged and failures count as misses
	scores, err = Evaluate(context.Background(), m, []dataset.Interaction{
		{UserId: "A", ItemId: "3"},
		{UserId: "error", ItemId: "3"},
	}, nil)
	assert.NoError(t, err)
	assert.Len(t, scores, 9)
	assert.Equal(t, float32(0.5), scores["recall@10"])

	_, err = Evaluate(context.Background(), newMockModel("mock"), nil, nil)
	assert.ErrorIs(t, err, ErrUntrained)
}

func TestSaveLoad(t *testing.T) {
	m := newMockModel("mock")
	assert.ErrorIs(t, Save(bytes.NewBuffer(nil), m), ErrUntrained)
	assert.NoError(t, m.Fit(context.Background(), []dataset.Interaction{{UserId: "u1", ItemId: "i1"}}, nil, NewFitConfig()))
	header := m.Header()
	header.Version = 3
	m.SetHeader(header)

	buf := bytes.NewBuffer(nil)
	assert.NoError(t, Save(buf, m))
	data := buf.Bytes()

	loaded := newMockModel("mock")
	assert.NoError(t, Load(bytes.NewReader(data), loaded))
	assert.True(t, loaded.IsTrained())
	assert.Equal(t, int64(3), loaded.Header().Version)
	assert.Equal(t, SchemaVersion, loaded.Header().SchemaVersion)
	assert.True(t, m.Header().TrainingTimestamp.Equal(loaded.Header().TrainingTimestamp))
	assert.Equal(t, m.ranking, loaded.ranking)

	// mismatched model name
	err := Load(bytes.NewReader(data), newMockModel("other"))
	assert.ErrorIs(t, err, ErrModelMismatch)

	// unsupported schema version
	header = m.Header()
	header.Magic = artifactMagic
	header.SchemaVersion = SchemaVersion + 1
	buf = bytes.NewBuffer(nil)
	assert.NoError(t, encoding.WriteGob(buf, header))
	_, err = ReadHeader(buf)
	assert.ErrorIs(t, err, ErrSchemaVersion)

	// file round trip
	path := filepath.Join(t.TempDir(), "models", "mock.bin")
	assert.NoError(t, SaveFile(path, m))
	loaded = newMockModel("mock")
	assert.NoError(t, LoadFile(path, loaded))
	assert.Equal(t, m.ranking, loaded.ranking)
}
