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
	"math/rand"
	"sort"
)

// SplitInteractions holds out a fraction of each user's interactions for testing. When every
// interaction of a user is timestamped, the latest ones are held out, otherwise a seeded
// random subset is. Users with a single interaction stay in the training set.
func SplitInteractions(interactions []Interaction, testRatio float32, seed int64) (train, test []Interaction) {
	rng := rand.New(rand.NewSource(seed))
	var users []string
	byUser := make(map[string][]int)
	for i, interaction := range interactions {
		if _, exist := byUser[interaction.UserId]; !exist {
			users = append(users, interaction.UserId)
		}
		byUser[interaction.UserId] = append(byUser[interaction.UserId], i)
	}
	isTest := make([]bool, len(interactions))
	for _, userId := range users {
		indices := byUser[userId]
		if len(indices) < 2 {
			continue
		}
		nTest := min(max(1, int(testRatio*float32(len(indices)))), len(indices)-1)
		timed := true
		for _, i := range indices {
			if interactions[i].Timestamp.IsZero() {
				timed = false
				break
			}
		}
		if timed {
			sort.SliceStable(indices, func(a, b int) bool {
				return interactions[indices[a]].Timestamp.After(interactions[indices[b]].Timestamp)
			})
		} else {
			rng.Shuffle(len(indices), func(a, b int) { indices[a], indices[b] = indices[b], indices[a] })
		}
		for _, i := range indices[:nTest] {
			isTest[i] = true
		}
	}
	for i, interaction := range interactions {
		if isTest[i] {
			test = append(test, interaction)
		} else {
			train = append(train, interaction)
		}
	}
	return
}
