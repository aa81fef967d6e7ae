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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func rating(r float32) *float32 {
	return &r
}

func TestNewDataset(t *testing.T) {
	d := NewDataset([]Interaction{
		{UserId: "u1", ItemId: "i1", Rating: rating(4)},
		{UserId: "u1", ItemId: "i2"},
		{UserId: "u2", ItemId: "i1", Rating: rating(2)},
		{UserId: "", ItemId: "i3"},
		{UserId: "u3", ItemId: ""},
	}, 1)
	assert.Equal(t, 3, d.Count())
	assert.Equal(t, 2, d.CountUsers())
	assert.Equal(t, 2, d.CountItems())
	assert.Equal(t, []string{"u1", "u2"}, d.UserIndex.Names())
	assert.Equal(t, []string{"i1", "i2"}, d.ItemIndex.Names())
	assert.Equal(t, [][]int32{{0, 1}, {0}}, d.UserFeedback)
	assert.Equal(t, [][]float32{{4, 1}, {2}}, d.UserRatings)
	assert.Equal(t, [][]int32{{0, 1}, {0}}, d.ItemFeedback)
	assert.InDelta(t, 7.0/3.0, d.GlobalMean, 1e-6)
	assert.Equal(t, []float32{2.5, 2}, d.UserMean)
	assert.Equal(t, []float32{3, 1}, d.ItemMean)
	assert.Equal(t, []int{2, 1}, d.ItemPopularity())
	assert.Equal(t, map[string]int{"u1": 2, "u2": 1}, d.UserInteractionCounts())
}

func TestNewDataset_Means(t *testing.T) {
	d := NewDataset([]Interaction{
		{UserId: "u1", ItemId: "i1", Rating: rating(5)},
		{UserId: "u1", ItemId: "i2", Rating: rating(2)},
		{UserId: "u1", ItemId: "i3", Rating: rating(2)},
		{UserId: "u2", ItemId: "i1", Rating: rating(3)},
	}, 1)
	assert.Equal(t, []float32{3, 3}, d.UserMean)
	assert.Equal(t, []float32{4, 2, 2}, d.ItemMean)
	assert.InDelta(t, 3, d.GlobalMean, 1e-6)
}

func TestNewDataset_Empty(t *testing.T) {
	d := NewDataset(nil, 1)
	assert.Zero(t, d.Count())
	assert.Zero(t, d.GlobalMean)
	assert.Empty(t, d.UserMean)
}

func TestDataset_ItemCosine(t *testing.T) {
	d := NewDataset([]Interaction{
		{UserId: "u1", ItemId: "a"},
		{UserId: "u2", ItemId: "a"},
		{UserId: "u1", ItemId: "b"},
		{UserId: "u2", ItemId: "b"},
		{UserId: "u3", ItemId: "c"},
	}, 1)
	assert.InDelta(t, 1, d.ItemCosine(0, 1), 1e-6)
	assert.Zero(t, d.ItemCosine(0, 2))
}

func TestReadInteractionsCSV(t *testing.T) {
	interactions, err := ReadInteractionsCSV(strings.NewReader(
		"user_id,product_id,rating,timestamp\n" +
			"u1,p1,4.5,2024-01-02T03:04:05Z\n" +
			"u1,p2,,1700000000\n" +
			"u2,p1,,\n"))
	assert.NoError(t, err)
	assert.Len(t, interactions, 3)
	assert.Equal(t, float32(4.5), *interactions[0].Rating)
	assert.True(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Equal(interactions[0].Timestamp))
	assert.Nil(t, interactions[1].Rating)
	assert.Equal(t, int64(1700000000), interactions[1].Timestamp.Unix())
	assert.True(t, interactions[2].Timestamp.IsZero())
	assert.Equal(t, float32(1), interactions[2].RatingOr(1))

	_, err = ReadInteractionsCSV(strings.NewReader("user,item\nu1,p1\n"))
	assert.Error(t, err)
	_, err = ReadInteractionsCSV(strings.NewReader("user_id,product_id,rating\nu1,p1,abc\n"))
	assert.Error(t, err)
}

func TestLoadProductsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	err := os.WriteFile(path, []byte(
		"id,title,price,review_count,primary_category,color\n"+
			"p1,Red Mug,$12.5,10,Kitchen,red\n"+
			"p2,Blue Scarf,n/a,,Fashion,blue\n"), 0644)
	assert.NoError(t, err)
	products, err := LoadProductsCSV(path)
	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, "Red Mug", products[0].Title)
	assert.Equal(t, 12.5, *products[0].Price)
	assert.Equal(t, "red", products[0].Extra["color"])
	assert.Equal(t, "red", products[0].Text("color"))
	assert.Nil(t, products[1].Price)
	assert.Nil(t, products[1].ReviewCount)
	_, ok := products[1].Numeric("price")
	assert.False(t, ok)
	v, ok := products[0].Numeric("review_count")
	assert.True(t, ok)
	assert.Equal(t, 10.0, v)

	_, err = LoadProductsCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestDataset_Marshal(t *testing.T) {
	d := NewDataset([]Interaction{
		{UserId: "u1", ItemId: "i2", Rating: rating(5)},
		{UserId: "u2", ItemId: "i1"},
		{UserId: "u1", ItemId: "i1", Rating: rating(3)},
	}, 1)
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, d.Marshal(buf))
	decoded := new(Dataset)
	assert.NoError(t, decoded.Unmarshal(buf))
	assert.Equal(t, d.UserIndex.Names(), decoded.UserIndex.Names())
	assert.Equal(t, d.ItemIndex.Names(), decoded.ItemIndex.Names())
	assert.Equal(t, d.UserFeedback, decoded.UserFeedback)
	assert.Equal(t, d.UserMean, decoded.UserMean)
	assert.Equal(t, d.ItemMean, decoded.ItemMean)
	assert.Equal(t, d.GlobalMean, decoded.GlobalMean)
	assert.Equal(t, d.Count(), decoded.Count())
	assert.ElementsMatch(t, d.ItemFeedback[1], decoded.ItemFeedback[1])
}
