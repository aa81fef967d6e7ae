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

package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelModel  = "model"
	LabelReason = "reason"

	ReasonTimeout = "timeout"
	ReasonError   = "error"
)

var (
	PredictSecondsVec = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "predict_seconds",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
	}, []string{LabelModel})
	PredictErrorsTotalVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "predict_errors_total",
	}, []string{LabelModel, LabelReason})
	BatchUserFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "batch_user_failures_total",
	})
	TrainingSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "training_seconds",
	})
	TrainingFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "training_failures_total",
	})
	ModelVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "giftrec",
		Subsystem: "recommend",
		Name:      "model_version",
	})
)
