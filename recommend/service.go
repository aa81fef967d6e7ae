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
	"context"
	"sync"
	"time"

	"github.com/giftwise/giftrec/base/log"
	"github.com/giftwise/giftrec/base/progress"
	"github.com/giftwise/giftrec/config"
	"github.com/giftwise/giftrec/dataset"
	"github.com/giftwise/giftrec/model"
	"github.com/giftwise/giftrec/model/hybrid"
	"github.com/giftwise/giftrec/storage/blob"
	"github.com/giftwise/giftrec/storage/data"
	"github.com/juju/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrNotReady           = errors.New("recommender is not ready")
	ErrTrainingInProgress = errors.New("training is in progress")
)

// Snapshot is an immutable trained model being served.
type Snapshot struct {
	Model     model.Recommender
	Version   int64
	TrainedAt time.Time
}

// Status summarizes the state of a service.
type Status struct {
	Ready     bool
	Training  bool
	Version   int64
	TrainedAt time.Time
	LastError string
}

// ModelFactory creates an untrained model from hyper-parameters.
type ModelFactory func(params model.Params) model.Recommender

// Service serves recommendations from the latest trained snapshot. Retraining builds a new
// model and swaps it in atomically, so in-flight requests finish on the snapshot they started
// with.
type Service struct {
	config   *config.Config
	database data.Database
	store    blob.Store
	newModel ModelFactory
	tracer   *progress.Tracer

	snapshot  *atomic.Pointer[Snapshot]
	training  sync.Mutex
	isTrain   *atomic.Bool
	lastError *atomic.Error
}

// NewService creates a service. The blob store is optional, without it snapshots are not
// persisted.
func NewService(cfg *config.Config, database data.Database, store blob.Store) *Service {
	if database == nil {
		database = data.NoDatabase{}
	}
	return &Service{
		config:   cfg,
		database: database,
		store:    store,
		newModel: func(params model.Params) model.Recommender {
			return hybrid.NewHybrid(params)
		},
		tracer:    progress.NewTracer("recommend"),
		snapshot:  atomic.NewPointer[Snapshot](nil),
		isTrain:   atomic.NewBool(false),
		lastError: atomic.NewError(nil),
	}
}

// SetModelFactory replaces the factory used by Train and Load.
func (s *Service) SetModelFactory(factory ModelFactory) {
	s.newModel = factory
}

func (s *Service) Snapshot() *Snapshot {
	return s.snapshot.Load()
}

func (s *Service) Status() Status {
	status := Status{Training: s.isTrain.Load()}
	if err := s.lastError.Load(); err != nil {
		status.LastError = err.Error()
	}
	if snapshot := s.snapshot.Load(); snapshot != nil {
		status.Ready = true
		status.Version = snapshot.Version
		status.TrainedAt = snapshot.TrainedAt
	}
	return status
}

// Progress lists progress of training jobs.
func (s *Service) Progress() []progress.Progress {
	return s.tracer.List()
}

// Train fits a new model on the data store and swaps it in. It fails with
// ErrTrainingInProgress if another training is running. The served snapshot is kept if
// training fails.
func (s *Service) Train(ctx context.Context) error {
	if !s.training.TryLock() {
		return errors.Trace(ErrTrainingInProgress)
	}
	defer s.training.Unlock()
	return s.train(ctx)
}

// TrainAsync starts training in background. The returned channel receives the result.
func (s *Service) TrainAsync(ctx context.Context) (<-chan error, error) {
	if !s.training.TryLock() {
		return nil, errors.Trace(ErrTrainingInProgress)
	}
	done := make(chan error, 1)
	go func() {
		err := s.train(ctx)
		s.training.Unlock()
		done <- err
		close(done)
	}()
	return done, nil
}

func (s *Service) train(ctx context.Context) error {
	s.isTrain.Store(true)
	defer s.isTrain.Store(false)
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "Train", 3)
	err := s.fit(ctx, span)
	if err != nil {
		span.Fail(err)
		s.lastError.Store(err)
		TrainingFailuresTotal.Inc()
		log.Logger().Error("failed to train model", zap.Error(err))
		return errors.Trace(err)
	}
	span.End()
	s.lastError.Store(nil)
	TrainingSeconds.Set(time.Since(start).Seconds())
	return nil
}

func (s *Service) fit(ctx context.Context, span *progress.Span) error {
	interactions, err := s.database.GetInteractions(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to load interactions")
	}
	products, err := s.database.GetProducts(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to load products")
	}
	span.Add(1)
	log.Logger().Info("load dataset",
		zap.Int("n_interactions", len(interactions)),
		zap.Int("n_products", len(products)))

	m := s.newModel(s.config.GetParams())
	if err = m.Fit(ctx, interactions, products, s.config.Training.GetFitConfig()); err != nil {
		return errors.Trace(err)
	}
	span.Add(1)

	var version int64 = 1
	if current := s.snapshot.Load(); current != nil {
		version = current.Version + 1
	}
	header := m.Header()
	header.Version = version
	m.SetHeader(header)
	s.swap(m)
	log.Logger().Info("model trained",
		zap.String("model", m.Name()),
		zap.Int64("version", version),
		zap.Strings("feature_columns", header.FeatureColumns))

	if s.store != nil {
		if err = s.Save(ctx); err != nil {
			// the new snapshot is served even if it could not be persisted
			log.Logger().Error("failed to persist model", zap.Error(err))
		}
	}
	return nil
}

func (s *Service) swap(m model.Recommender) {
	header := m.Header()
	s.snapshot.Store(&Snapshot{
		Model:     m,
		Version:   header.Version,
		TrainedAt: header.TrainingTimestamp,
	})
	ModelVersion.Set(float64(header.Version))
}

// Save persists the served snapshot to the blob store.
func (s *Service) Save(ctx context.Context) error {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return errors.Trace(ErrNotReady)
	}
	if s.store == nil {
		return errors.NotAssignedf("blob store")
	}
	w, err := s.store.Create(ctx, s.config.Blob.ModelName)
	if err != nil {
		return errors.Trace(err)
	}
	if err = model.Save(w, snapshot.Model); err != nil {
		_ = w.Close()
		return errors.Trace(err)
	}
	return errors.Trace(w.Close())
}

// Load restores the snapshot from the blob store.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return errors.NotAssignedf("blob store")
	}
	r, err := s.store.Open(ctx, s.config.Blob.ModelName)
	if err != nil {
		return errors.Trace(err)
	}
	defer r.Close()
	m := s.newModel(s.config.GetParams())
	if err = model.Load(r, m); err != nil {
		return errors.Trace(err)
	}
	s.swap(m)
	log.Logger().Info("model loaded",
		zap.String("model", m.Name()),
		zap.Int64("version", m.Header().Version))
	return nil
}

func (s *Service) instrument(m model.Recommender, batch bool) model.Recommender {
	return &instrumented{Recommender: m, timeout: s.config.Recommend.Timeout, batch: batch}
}

// Recommend returns top n recommendations for a user. The default number is used if n is not
// positive.
func (s *Service) Recommend(ctx context.Context, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, errors.Trace(ErrNotReady)
	}
	if n <= 0 {
		n = s.config.Recommend.DefaultN
	}
	return s.instrument(snapshot.Model, false).Predict(ctx, userId, candidates, n)
}

// RecommendBatch recommends for many users concurrently. A failed user gets an empty list.
func (s *Service) RecommendBatch(ctx context.Context, userIds []string, n int) (map[string][]model.Recommendation, error) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, errors.Trace(ErrNotReady)
	}
	if n <= 0 {
		n = s.config.Recommend.DefaultN
	}
	return model.BatchPredict(ctx, s.instrument(snapshot.Model, true), userIds, n, s.config.Recommend.BatchJobs), nil
}

func (s *Service) Explain(userId, itemId string) (model.Explanation, error) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return model.Explanation{}, errors.Trace(ErrNotReady)
	}
	return snapshot.Model.Explain(userId, itemId)
}

func (s *Service) SimilarItems(itemId string, n int) ([]model.Similarity, error) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, errors.Trace(ErrNotReady)
	}
	if n <= 0 {
		n = s.config.Recommend.DefaultN
	}
	return snapshot.Model.SimilarItems(itemId, n)
}

// Evaluate scores the served snapshot on held out interactions.
func (s *Service) Evaluate(ctx context.Context, test []dataset.Interaction, kValues []int) (map[string]float32, error) {
	snapshot := s.snapshot.Load()
	if snapshot == nil {
		return nil, errors.Trace(ErrNotReady)
	}
	return model.Evaluate(ctx, snapshot.Model, test, kValues)
}

// instrumented bounds each prediction by a timeout and records metrics.
type instrumented struct {
	model.Recommender
	timeout time.Duration
	batch   bool
}

func (m *instrumented) Predict(ctx context.Context, userId string, candidates []string, n int) ([]model.Recommendation, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.fail(ReasonError)
			panic(r)
		}
	}()
	recs, err := m.Recommender.Predict(ctx, userId, candidates, n)
	PredictSecondsVec.WithLabelValues(m.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			m.fail(ReasonTimeout)
		} else {
			m.fail(ReasonError)
		}
		return nil, errors.Trace(err)
	}
	return recs, nil
}

func (m *instrumented) fail(reason string) {
	PredictErrorsTotalVec.WithLabelValues(m.Name(), reason).Inc()
	if m.batch {
		BatchUserFailuresTotal.Inc()
	}
}
