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

package dataset

import (
	"io"

	"github.com/chewxy/math32"
	"github.com/giftwise/giftrec/base/encoding"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Dataset is the sparse user-item rating matrix built from an interaction log. Ids are
// assigned in first-seen order and are contiguous from 0.
type Dataset struct {
	UserIndex *Index
	ItemIndex *Index
	// UserFeedback[u] lists item ids rated by user u, aligned with UserRatings[u].
	UserFeedback [][]int32
	UserRatings  [][]float32
	// ItemFeedback[i] lists user ids who rated item i, aligned with ItemRatings[i].
	ItemFeedback [][]int32
	ItemRatings  [][]float32
	GlobalMean   float32
	UserMean     []float32
	ItemMean     []float32
	count        int
}

// NewDataset builds a dataset. Records without a user or item id are skipped. Interactions
// without a rating take implicitRating.
func NewDataset(interactions []Interaction, implicitRating float32) *Dataset {
	d := &Dataset{
		UserIndex: NewIndex(),
		ItemIndex: NewIndex(),
	}
	var sum float32
	for _, interaction := range interactions {
		if interaction.UserId == "" || interaction.ItemId == "" {
			continue
		}
		userId := d.UserIndex.Add(interaction.UserId)
		itemId := d.ItemIndex.Add(interaction.ItemId)
		rating := interaction.RatingOr(implicitRating)
		if userId == len(d.UserFeedback) {
			d.UserFeedback = append(d.UserFeedback, nil)
			d.UserRatings = append(d.UserRatings, nil)
		}
		if itemId == len(d.ItemFeedback) {
			d.ItemFeedback = append(d.ItemFeedback, nil)
			d.ItemRatings = append(d.ItemRatings, nil)
		}
		d.UserFeedback[userId] = append(d.UserFeedback[userId], int32(itemId))
		d.UserRatings[userId] = append(d.UserRatings[userId], rating)
		d.ItemFeedback[itemId] = append(d.ItemFeedback[itemId], int32(userId))
		d.ItemRatings[itemId] = append(d.ItemRatings[itemId], rating)
		sum += rating
		d.count++
	}
	if d.count > 0 {
		d.GlobalMean = sum / float32(d.count)
	}
	d.UserMean = means(d.UserRatings)
	d.ItemMean = means(d.ItemRatings)
	return d
}

func means(ratings [][]float32) []float32 {
	ret := make([]float32, len(ratings))
	for i, r := range ratings {
		if len(r) > 0 {
			ret[i] = float32(stat.Mean(lo.Map(r, func(v float32, _ int) float64 {
				return float64(v)
			}), nil))
		}
	}
	return ret
}

// Count returns the number of interactions.
func (d *Dataset) Count() int {
	return d.count
}

func (d *Dataset) CountUsers() int {
	return d.UserIndex.Count()
}

func (d *Dataset) CountItems() int {
	return d.ItemIndex.Count()
}

// ItemPopularity returns interaction counts per item.
func (d *Dataset) ItemPopularity() []int {
	ret := make([]int, len(d.ItemFeedback))
	for i, users := range d.ItemFeedback {
		ret[i] = len(users)
	}
	return ret
}

// UserInteractionCounts returns interaction counts keyed by user name.
func (d *Dataset) UserInteractionCounts() map[string]int {
	ret := make(map[string]int, len(d.UserFeedback))
	for u, items := range d.UserFeedback {
		name, _ := d.UserIndex.String(u)
		ret[name] = len(items)
	}
	return ret
}

// ItemVector returns the summed ratings of an item keyed by user id, i.e. a column of the
// user-item matrix. Duplicate interactions accumulate.
func (d *Dataset) ItemVector(itemId int) map[int32]float32 {
	vec := make(map[int32]float32, len(d.ItemFeedback[itemId]))
	for j, userId := range d.ItemFeedback[itemId] {
		vec[userId] += d.ItemRatings[itemId][j]
	}
	return vec
}

// ItemCosine returns the cosine similarity between the rating columns of two items.
func (d *Dataset) ItemCosine(a, b int) float32 {
	va, vb := d.ItemVector(a), d.ItemVector(b)
	var dot, na, nb float32
	for userId, x := range va {
		na += x * x
		if y, ok := vb[userId]; ok {
			dot += x * y
		}
	}
	for _, y := range vb {
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math32.Sqrt(na) * math32.Sqrt(nb))
}

// Marshal writes the indices and user-side ratings. Item-side views and statistics are
// rebuilt by Unmarshal.
func (d *Dataset) Marshal(w io.Writer) error {
	if err := d.UserIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	if err := d.ItemIndex.Marshal(w); err != nil {
		return errors.Trace(err)
	}
	return encoding.WriteGob(w, struct {
		UserFeedback [][]int32
		UserRatings  [][]float32
	}{d.UserFeedback, d.UserRatings})
}

func (d *Dataset) Unmarshal(r io.Reader) error {
	d.UserIndex, d.ItemIndex = NewIndex(), NewIndex()
	if err := d.UserIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	if err := d.ItemIndex.Unmarshal(r); err != nil {
		return errors.Trace(err)
	}
	var state struct {
		UserFeedback [][]int32
		UserRatings  [][]float32
	}
	if err := encoding.ReadGob(r, &state); err != nil {
		return errors.Trace(err)
	}
	if len(state.UserFeedback) != d.UserIndex.Count() || len(state.UserRatings) != d.UserIndex.Count() {
		return errors.Errorf("dataset: feedback of %d users for %d indexed users", len(state.UserFeedback), d.UserIndex.Count())
	}
	d.UserFeedback = state.UserFeedback
	d.UserRatings = state.UserRatings
	d.ItemFeedback = make([][]int32, d.ItemIndex.Count())
	d.ItemRatings = make([][]float32, d.ItemIndex.Count())
	d.count = 0
	var sum float32
	for userId, items := range d.UserFeedback {
		if len(d.UserRatings[userId]) != len(items) {
			return errors.Errorf("dataset: user %d has %d items but %d ratings", userId, len(items), len(d.UserRatings[userId]))
		}
		for j, itemId := range items {
			if int(itemId) >= len(d.ItemFeedback) || itemId < 0 {
				return errors.Errorf("dataset: item id %d out of range", itemId)
			}
			rating := d.UserRatings[userId][j]
			d.ItemFeedback[itemId] = append(d.ItemFeedback[itemId], int32(userId))
			d.ItemRatings[itemId] = append(d.ItemRatings[itemId], rating)
			sum += rating
			d.count++
		}
	}
	d.GlobalMean = 0
	if d.count > 0 {
		d.GlobalMean = sum / float32(d.count)
	}
	d.UserMean = means(d.UserRatings)
	d.ItemMean = means(d.ItemRatings)
	return nil
}
