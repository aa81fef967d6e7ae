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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitInteractions(t *testing.T) {
	var interactions []Interaction
	for i := 0; i < 10; i++ {
		interactions = append(interactions, Interaction{UserId: "random", ItemId: fmt.Sprintf("item_%d", i)})
	}
	begin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		interactions = append(interactions, Interaction{
			UserId:    "timed",
			ItemId:    fmt.Sprintf("item_%d", i),
			Timestamp: begin.Add(time.Duration(i) * time.Hour),
		})
	}
	interactions = append(interactions, Interaction{UserId: "single", ItemId: "item_0"})

	train, test := SplitInteractions(interactions, 0.2, 0)
	assert.Len(t, train, 12)
	assert.Len(t, test, 3)
	assert.Contains(t, train, Interaction{UserId: "single", ItemId: "item_0"})
	// the latest interaction of a timed user is held out
	assert.Contains(t, test, interactions[13])

	// the split is reproducible
	train2, test2 := SplitInteractions(interactions, 0.2, 0)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	// at least one interaction stays in training
	train, test = SplitInteractions(interactions[:2], 0.99, 0)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}
