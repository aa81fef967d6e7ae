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

	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/common/parallel"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// BatchPredict predicts for many users with jobs workers. A user whose prediction fails or
// panics gets an empty list and does not affect the other users.
func BatchPredict(ctx context.Context, m Recommender, userIds []string, n, jobs int) map[string][]Recommendation {
	results := make([][]Recommendation, len(userIds))
	_ = parallel.Parallel(ctx, len(userIds), jobs, func(_, jobId int) error {
		recs, err := safePredict(ctx, m, userIds[jobId], n)
		if err != nil {
			log.Logger().Warn("failed to predict for user",
				zap.String("model", m.Name()),
				zap.String("user_id", userIds[jobId]),
				zap.Error(err))
			recs = []Recommendation{}
		}
		results[jobId] = recs
		return nil
	})
	ret := make(map[string][]Recommendation, len(userIds))
	for i, userId := range userIds {
		if results[i] == nil {
			// skipped by cancellation
			results[i] = []Recommendation{}
		}
		ret[userId] = results[i]
	}
	return ret
}

func safePredict(ctx context.Context, m Recommender, userId string, n int) (recs []Recommendation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprintf("panic: %v", r))
		}
	}()
	return m.Predict(ctx, userId, nil, n)
}
