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

package cf

import (
	"context"
	"fmt"
	"io"

	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/giftwise/giftrec/base/encoding"
	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/base/progress"
	"github.com/giftwise/giftrec/common/floats"
	"github.com/giftwise/giftrec/common/heap"
	"github.com/giftwise/giftrec/common/nn"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	Name = "collaborative_filtering"

	// raw network outputs are assumed to lie in [-scoreRange, scoreRange]
	scoreRange    = 3
	coldStartConf = 0.3
	maxConfidence = 0.9
	predictBatch  = 1024
)

// CollaborativeFiltering is a neural matrix factorization model. The predicted rating of
// user u for item i is
//
//	\hat{r}_{ui} = p_u^T q_i + MLP([p_u; q_i]) + b_u + b_i + b
//
// and the model is trained by minimizing the mean squared error with Adam.
//
// Hyper-parameters:
//
//	NFactors       - The dimension of embeddings. Default is 32.
//	HiddenDims     - The sizes of hidden layers of the MLP. Default is [64, 32].
//	Dropout        - The dropout rate after each hidden layer. Default is 0.2.
//	Lr             - The learning rate of Adam. Default is 0.001.
//	Reg            - The weight decay. Default is 0.
//	NEpochs        - The number of epochs. Default is 50.
//	BatchSize      - The size of mini-batches. Default is 256.
//	InitStdDev     - The standard deviation of initial embeddings. Default is 0.01.
//	ImplicitRating - The rating of interactions without one. Default is 1.
type CollaborativeFiltering struct {
	model.BaseModel
	// Hyper parameters
	nFactors       int
	hiddenDims     []int
	dropout        float32
	lr             float32
	reg            float32
	nEpochs        int
	batchSize      int
	initStdDev     float32
	implicitRating float32
	// Model parameters
	data *dataset.Dataset
	// items whose rating column has a non-zero norm
	itemRated      *bitset.BitSet
	userEmbedding  *nn.EmbeddingLayer
	itemEmbedding  *nn.EmbeddingLayer
	userBias       *nn.Parameter
	itemBias       *nn.Parameter
	globalBias     *nn.Parameter
	mlp            *nn.Sequential
	trainedWeights []*nn.Parameter
}

// NewCollaborativeFiltering creates a collaborative filtering model.
func NewCollaborativeFiltering(params model.Params) *CollaborativeFiltering {
	m := new(CollaborativeFiltering)
	m.SetParams(params)
	return m
}

// SetParams sets hyper-parameters of the model.
func (m *CollaborativeFiltering) SetParams(params model.Params) {
	m.BaseModel.SetParams(params)
	m.nFactors = m.Params.GetInt(model.NFactors, 32)
	m.hiddenDims = m.Params.GetInts(model.HiddenDims, []int{64, 32})
	m.dropout = m.Params.GetFloat32(model.Dropout, 0.2)
	m.lr = m.Params.GetFloat32(model.Lr, 0.001)
	m.reg = m.Params.GetFloat32(model.Reg, 0)
	m.nEpochs = m.Params.GetInt(model.NEpochs, 50)
	m.batchSize = m.Params.GetInt(model.BatchSize, 256)
	m.initStdDev = m.Params.GetFloat32(model.InitStdDev, 0.01)
	m.implicitRating = m.Params.GetFloat32(model.ImplicitRating, 1)
}

func (m *CollaborativeFiltering) Name() string {
	return Name
}

func (m *CollaborativeFiltering) init(data *dataset.Dataset) {
	rng := m.GetRandomGenerator()
	nUsers, nItems := data.CountUsers(), data.CountItems()
	m.data = data
	m.itemRated = bitset.New(uint(nItems))
	for itemId := range data.ItemFeedback {
		for _, rating := range data.ItemVector(itemId) {
			if rating != 0 {
				m.itemRated.Set(uint(itemId))
				break
			}
		}
	}
	m.userEmbedding = nn.NewEmbedding(rng, nUsers, m.nFactors, m.initStdDev)
	m.itemEmbedding = nn.NewEmbedding(rng, nItems, m.nFactors, m.initStdDev)
	m.userBias = nn.Zeros(nUsers)
	m.itemBias = nn.Zeros(nItems)
	m.globalBias = nn.Zeros(1)
	var layers []nn.Layer
	in := 2 * m.nFactors
	for _, dim := range m.hiddenDims {
		layers = append(layers, nn.NewLinear(rng, in, dim), nn.NewReLU(), nn.NewDropout(rng, m.dropout))
		in = dim
	}
	layers = append(layers, nn.NewLinear(rng, in, 1))
	m.mlp = nn.NewSequential(layers...)
	m.trainedWeights = append([]*nn.Parameter{
		m.userEmbedding.W, m.itemEmbedding.W, m.userBias, m.itemBias, m.globalBias,
	}, m.mlp.Parameters()...)
}

// forward returns raw predictions for pairs of user and item ids.
func (m *CollaborativeFiltering) forward(users, items []int, train bool) ([]float32, [][]float32, [][]float32) {
	userVectors := m.userEmbedding.Lookup(users)
	itemVectors := m.itemEmbedding.Lookup(items)
	x := make([][]float32, len(users))
	for b := range users {
		x[b] = make([]float32, 0, 2*m.nFactors)
		x[b] = append(x[b], userVectors[b]...)
		x[b] = append(x[b], itemVectors[b]...)
	}
	mlpOut := m.mlp.Forward(x, train)
	pred := make([]float32, len(users))
	for b := range users {
		pred[b] = floats.Dot(userVectors[b], itemVectors[b]) + mlpOut[b][0] +
			m.userBias.Data[users[b]] + m.itemBias.Data[items[b]] + m.globalBias.Data[0]
	}
	return pred, userVectors, itemVectors
}

func (m *CollaborativeFiltering) backward(users, items []int, userVectors, itemVectors [][]float32, dPred []float32) {
	dy := make([][]float32, len(dPred))
	for b, g := range dPred {
		dy[b] = []float32{g}
	}
	dx := m.mlp.Backward(dy)
	dUser := make([][]float32, len(users))
	dItem := make([][]float32, len(items))
	for b, g := range dPred {
		dUser[b] = make([]float32, m.nFactors)
		dItem[b] = make([]float32, m.nFactors)
		copy(dUser[b], dx[b][:m.nFactors])
		copy(dItem[b], dx[b][m.nFactors:])
		floats.MulConstAdd(itemVectors[b], g, dUser[b])
		floats.MulConstAdd(userVectors[b], g, dItem[b])
		m.userBias.Grad[users[b]] += g
		m.itemBias.Grad[items[b]] += g
		m.globalBias.Grad[0] += g
	}
	m.userEmbedding.Backward(users, dUser)
	m.itemEmbedding.Backward(items, dItem)
}

// Fit trains the model from scratch. Its task complexity is O(nEpochs).
func (m *CollaborativeFiltering) Fit(ctx context.Context, interactions []dataset.Interaction, _ []dataset.Product, config *model.FitConfig) error {
	if config == nil {
		config = model.NewFitConfig()
	}
	// a failed fit leaves the model untrained
	m.SetHeader(model.Header{})
	m.data = nil
	data := dataset.NewDataset(interactions, m.implicitRating)
	if data.Count() == 0 {
		return errors.NotValidf("empty interactions")
	}
	log.Logger().Info("fit collaborative filtering",
		zap.Int("n_users", data.CountUsers()),
		zap.Int("n_items", data.CountItems()),
		zap.Int("n_interactions", data.Count()),
		zap.Any("params", m.GetParams()),
		zap.Any("config", config))
	m.SetParams(m.GetParams())
	m.init(data)

	// flatten training pairs
	users := make([]int, 0, data.Count())
	items := make([]int, 0, data.Count())
	ratings := make([]float32, 0, data.Count())
	for userId, feedback := range data.UserFeedback {
		for j, itemId := range feedback {
			users = append(users, userId)
			items = append(items, int(itemId))
			ratings = append(ratings, data.UserRatings[userId][j])
		}
	}

	optimizer := nn.NewAdam(m.trainedWeights, m.lr)
	optimizer.SetWeightDecay(m.reg)
	rng := m.GetRandomGenerator()
	batchSize := max(m.batchSize, 1)
	_, span := progress.Start(ctx, "CollaborativeFiltering.Fit", m.nEpochs)
	var loss float32
	for epoch := 1; epoch <= m.nEpochs; epoch++ {
		perm := rng.Permutation(len(users))
		var sum float32
		var batches int
		for begin := 0; begin < len(perm); begin += batchSize {
			if err := ctx.Err(); err != nil {
				span.Fail(err)
				return errors.Trace(err)
			}
			end := min(begin+batchSize, len(perm))
			batchUsers := make([]int, end-begin)
			batchItems := make([]int, end-begin)
			batchRatings := make([]float32, end-begin)
			for b, i := range perm[begin:end] {
				batchUsers[b], batchItems[b], batchRatings[b] = users[i], items[i], ratings[i]
			}
			optimizer.ZeroGrad()
			pred, userVectors, itemVectors := m.forward(batchUsers, batchItems, true)
			batchLoss, dPred := nn.MSELoss(pred, batchRatings)
			m.backward(batchUsers, batchItems, userVectors, itemVectors, dPred)
			optimizer.Step()
			sum += batchLoss
			batches++
		}
		loss = sum / float32(batches)
		if config.Verbose > 0 && epoch%config.Verbose == 0 {
			log.Logger().Info("fit collaborative filtering",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", m.nEpochs),
				zap.Float32("loss", loss))
		}
		span.Add(1)
	}
	span.End()
	if math32.IsNaN(loss) || math32.IsInf(loss, 0) {
		return errors.Errorf("training diverged with loss %v", loss)
	}
	log.Logger().Info("fit collaborative filtering complete", zap.Float32("loss", loss))
	m.MarkTrained(Name, []string{"user_id", "product_id", "rating"})
	return nil
}

// rescale maps a raw prediction into [0, 1].
func rescale(raw float32) float32 {
	return floats.Clamp((raw+scoreRange)/(2*scoreRange), 0, 1)
}

func confidence(score float32) float32 {
	return math32.Min(maxConfidence, score+0.1)
}

// Predict scores candidates for a user. Unknown users are ranked by item mean rating.
func (m *CollaborativeFiltering) Predict(ctx context.Context, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	recs := []model.Recommendation{}
	if n <= 0 {
		return recs, nil
	}
	itemIds := model.ResolveCandidates(m.data.ItemIndex, candidates)
	userIndex := m.data.UserIndex.Id(userId)
	if userIndex == dataset.NotId {
		return m.coldStart(itemIds, n), nil
	}
	for begin := 0; begin < len(itemIds); begin += predictBatch {
		if err := ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		end := min(begin+predictBatch, len(itemIds))
		users := make([]int, end-begin)
		items := make([]int, end-begin)
		for b, itemId := range itemIds[begin:end] {
			users[b], items[b] = userIndex, int(itemId)
		}
		pred, _, _ := m.forward(users, items, false)
		for b, raw := range pred {
			itemName, _ := m.data.ItemIndex.String(items[b])
			score := rescale(raw)
			recs = append(recs, model.Recommendation{
				ItemId:      itemName,
				Score:       float64(score),
				Confidence:  float64(confidence(score)),
				Explanation: "Users with similar preferences liked this item",
				Metadata: map[string]any{
					"model":     Name,
					"raw_score": float64(raw),
				},
			})
		}
	}
	return model.SortRecommendations(recs, n), nil
}

func (m *CollaborativeFiltering) coldStart(itemIds []int32, n int) []model.Recommendation {
	recs := make([]model.Recommendation, 0, len(itemIds))
	for _, itemId := range itemIds {
		itemName, _ := m.data.ItemIndex.String(int(itemId))
		recs = append(recs, model.Recommendation{
			ItemId:      itemName,
			Score:       float64(floats.Clamp(m.data.ItemMean[itemId]/5, 0, 1)),
			Confidence:  coldStartConf,
			Explanation: "Popular item among other users",
			Metadata: map[string]any{
				"model":      Name,
				"cold_start": true,
			},
		})
	}
	return model.SortRecommendations(recs, n)
}

// Explain describes why an item is recommended to a user.
func (m *CollaborativeFiltering) Explain(userId, itemId string) (model.Explanation, error) {
	if !m.IsTrained() {
		return model.Explanation{}, errors.Trace(model.ErrUntrained)
	}
	userIndex := m.data.UserIndex.Id(userId)
	itemIndex := m.data.ItemIndex.Id(itemId)
	if itemIndex == dataset.NotId {
		return m.BaseModel.Explain(userId, itemId)
	}
	if userIndex == dataset.NotId {
		return model.Explanation{
			Explanation: "Popular item among other users",
			Confidence:  coldStartConf,
			Factors: []string{
				fmt.Sprintf("rated by %d users", len(m.data.ItemFeedback[itemIndex])),
				fmt.Sprintf("average rating %s", encoding.FormatFloat32(m.data.ItemMean[itemIndex])),
			},
		}, nil
	}
	pred, _, _ := m.forward([]int{userIndex}, []int{itemIndex}, false)
	score := rescale(pred[0])
	return model.Explanation{
		Explanation: "Users with similar preferences liked this item",
		Confidence:  float64(confidence(score)),
		Factors: []string{
			fmt.Sprintf("based on %d of your interactions", len(m.data.UserFeedback[userIndex])),
			fmt.Sprintf("latent affinity %s", encoding.FormatFloat32(score)),
		},
	}, nil
}

// SimilarItems returns items whose rating columns are most similar by cosine.
func (m *CollaborativeFiltering) SimilarItems(itemId string, n int) ([]model.Similarity, error) {
	if !m.IsTrained() {
		return nil, errors.Trace(model.ErrUntrained)
	}
	itemIndex := m.data.ItemIndex.Id(itemId)
	if itemIndex == dataset.NotId || n <= 0 || !m.itemRated.Test(uint(itemIndex)) {
		return []model.Similarity{}, nil
	}
	filter := heap.NewTopKFilter[int, float32](n)
	for other := 0; other < m.data.CountItems(); other++ {
		if other == itemIndex || !m.itemRated.Test(uint(other)) {
			continue
		}
		if similarity := m.data.ItemCosine(itemIndex, other); similarity > 0 {
			filter.Push(other, similarity)
		}
	}
	ids, scores := filter.PopAll()
	similar := make([]model.Similarity, len(ids))
	for i, id := range ids {
		name, _ := m.data.ItemIndex.String(id)
		similar[i] = model.Similarity{ItemId: name, Score: float64(scores[i])}
	}
	return similar, nil
}

// Marshal model into byte stream.
func (m *CollaborativeFiltering) Marshal(w io.Writer) error {
	if err := encoding.WriteGob(w, m.Params); err != nil {
		return errors.Trace(err)
	}
	if err := m.data.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return nn.WriteParameters(w, m.trainedWeights)
}

// Unmarshal model from byte stream.
func (m *CollaborativeFiltering) Unmarshal(r io.Reader) error {
	var params model.Params
	if err := encoding.ReadGob(r, &params); err != nil {
		return errors.Trace(err)
	}
	m.SetParams(params)
	data := new(dataset.Dataset)
	if err := data.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	m.init(data)
	if err := nn.ReadParameters(r, m.trainedWeights); err != nil {
		return errors.Trace(err)
	}
	header := m.Header()
	header.IsTrained = true
	m.SetHeader(header)
	return nil
}
