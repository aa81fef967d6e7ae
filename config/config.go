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

package config

import (
	"strings"
	"time"

	"github.com/giftwise/giftrec/model"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for giftrec.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Blob          BlobConfig          `mapstructure:"blob"`
	Recommend     RecommendConfig     `mapstructure:"recommend"`
	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
	Content       ContentConfig       `mapstructure:"content"`
	Hybrid        HybridConfig        `mapstructure:"hybrid"`
	Training      TrainingConfig      `mapstructure:"training"`
}

// DatabaseConfig is the configuration for the interaction and product store. The data store
// is a URL prefixed by sqlite://, postgres://, postgresql:// or mysql://.
type DatabaseConfig struct {
	DataStore       string        `mapstructure:"data_store" validate:"required"`
	TablePrefix     string        `mapstructure:"table_prefix"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
	RetryTimeout    time.Duration `mapstructure:"retry_timeout" validate:"gte=0"`
}

// BlobConfig is the configuration for the model artifact store.
type BlobConfig struct {
	Type      string      `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir       string      `mapstructure:"dir"`
	ModelName string      `mapstructure:"model_name" validate:"required"`
	S3        S3Config    `mapstructure:"s3"`
	GCS       GCSConfig   `mapstructure:"gcs"`
	Azure     AzureConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
}

type AzureConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Endpoint         string `mapstructure:"endpoint"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

// RecommendConfig is the configuration for serving recommendations.
type RecommendConfig struct {
	DefaultN       int           `mapstructure:"default_n" validate:"gt=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	BatchJobs      int           `mapstructure:"batch_jobs" validate:"gt=0"`
	ImplicitRating float32       `mapstructure:"implicit_rating" validate:"gt=0"`
}

type CollaborativeConfig struct {
	NFactors   int     `mapstructure:"n_factors" validate:"gt=0"`
	HiddenDims []int   `mapstructure:"hidden_dims" validate:"dive,gt=0"`
	Dropout    float32 `mapstructure:"dropout" validate:"gte=0,lt=1"`
	Lr         float32 `mapstructure:"lr" validate:"gt=0"`
	Reg        float32 `mapstructure:"reg" validate:"gte=0"`
	NEpochs    int     `mapstructure:"n_epochs" validate:"gt=0"`
	BatchSize  int     `mapstructure:"batch_size" validate:"gt=0"`
	InitStdDev float32 `mapstructure:"init_std" validate:"gt=0"`
}

func (c *CollaborativeConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:   c.NFactors,
		model.HiddenDims: c.HiddenDims,
		model.Dropout:    c.Dropout,
		model.Lr:         c.Lr,
		model.Reg:        c.Reg,
		model.NEpochs:    c.NEpochs,
		model.BatchSize:  c.BatchSize,
		model.InitStdDev: c.InitStdDev,
	}
}

type ContentConfig struct {
	MaxFeatures         int      `mapstructure:"max_features" validate:"gt=0"`
	MinDF               int      `mapstructure:"min_df" validate:"gte=1"`
	MaxDF               float32  `mapstructure:"max_df" validate:"gt=0,lte=1"`
	NGramMax            int      `mapstructure:"ngram_max" validate:"gte=1"`
	StopWords           bool     `mapstructure:"stop_words"`
	NComponents         int      `mapstructure:"n_components" validate:"gt=0"`
	SimilarityThreshold float32  `mapstructure:"similarity_threshold" validate:"gte=0,lte=1"`
	TextColumns         []string `mapstructure:"text_columns"`
	NumericColumns      []string `mapstructure:"numeric_columns"`
	CategoricalColumns  []string `mapstructure:"categorical_columns"`
}

func (c *ContentConfig) GetParams() model.Params {
	return model.Params{
		model.MaxFeatures:         c.MaxFeatures,
		model.MinDF:               c.MinDF,
		model.MaxDF:               c.MaxDF,
		model.NGramMax:            c.NGramMax,
		model.StopWords:           c.StopWords,
		model.NComponents:         c.NComponents,
		model.SimilarityThreshold: c.SimilarityThreshold,
		model.TextColumns:         c.TextColumns,
		model.NumericColumns:      c.NumericColumns,
		model.CategoricalColumns:  c.CategoricalColumns,
	}
}

type HybridConfig struct {
	CollaborativeWeight  float32 `mapstructure:"collaborative_weight" validate:"gte=0"`
	ContentWeight        float32 `mapstructure:"content_weight" validate:"gte=0"`
	MinInteractionsForCF int     `mapstructure:"min_interactions_for_cf" validate:"gte=0"`
	DiversityFactor      float32 `mapstructure:"diversity_factor" validate:"gte=0"`
}

func (c *HybridConfig) GetParams() model.Params {
	return model.Params{
		model.CollaborativeWeight:  c.CollaborativeWeight,
		model.ContentWeight:        c.ContentWeight,
		model.MinInteractionsForCF: c.MinInteractionsForCF,
		model.DiversityFactor:      c.DiversityFactor,
	}
}

// TrainingConfig is the configuration for fitting and offline evaluation.
type TrainingConfig struct {
	Jobs        int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose     int     `mapstructure:"verbose" validate:"gt=0"`
	RandomState int64   `mapstructure:"random_state"`
	TestRatio   float32 `mapstructure:"test_ratio" validate:"gt=0,lt=1"`
	KValues     []int   `mapstructure:"k_values" validate:"min=1,dive,gt=0"`
}

func (c *TrainingConfig) GetFitConfig() *model.FitConfig {
	return model.NewFitConfig().SetJobs(c.Jobs).SetVerbose(c.Verbose)
}

// GetParams merges hyper-parameters of all models. Sub-models of the hybrid model pick the
// parameters they know.
func (config *Config) GetParams() model.Params {
	return model.Params{
		model.ImplicitRating: config.Recommend.ImplicitRating,
		model.RandomState:    config.Training.RandomState,
	}.Overwrite(config.Collaborative.GetParams()).
		Overwrite(config.Content.GetParams()).
		Overwrite(config.Hybrid.GetParams())
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore:       "sqlite://giftrec.db",
			MaxOpenConns:    0,
			MaxIdleConns:    2,
			ConnMaxLifetime: 0,
			RetryTimeout:    30 * time.Second,
		},
		Blob: BlobConfig{
			Type:      "posix",
			Dir:       "models",
			ModelName: "hybrid.model",
		},
		Recommend: RecommendConfig{
			DefaultN:       10,
			Timeout:        2 * time.Second,
			BatchJobs:      4,
			ImplicitRating: 1,
		},
		Collaborative: CollaborativeConfig{
			NFactors:   32,
			HiddenDims: []int{64, 32},
			Dropout:    0.2,
			Lr:         0.001,
			Reg:        0,
			NEpochs:    50,
			BatchSize:  256,
			InitStdDev: 0.01,
		},
		Content: ContentConfig{
			MaxFeatures:         5000,
			MinDF:               1,
			MaxDF:               0.95,
			NGramMax:            2,
			StopWords:           true,
			NComponents:         100,
			SimilarityThreshold: 0.1,
			TextColumns:         []string{"title", "description", "brand", "category_path"},
			NumericColumns:      []string{"price", "average_rating", "review_count"},
			CategoricalColumns:  []string{"primary_category", "availability_status"},
		},
		Hybrid: HybridConfig{
			CollaborativeWeight:  0.6,
			ContentWeight:        0.4,
			MinInteractionsForCF: 5,
			DiversityFactor:      0.1,
		},
		Training: TrainingConfig{
			Jobs:      1,
			Verbose:   10,
			TestRatio: 0.2,
			KValues:   []int{5, 10, 20},
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	v.SetDefault("database.max_open_conns", defaultConfig.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultConfig.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConfig.Database.ConnMaxLifetime)
	v.SetDefault("database.retry_timeout", defaultConfig.Database.RetryTimeout)
	// [blob]
	v.SetDefault("blob.type", defaultConfig.Blob.Type)
	v.SetDefault("blob.dir", defaultConfig.Blob.Dir)
	v.SetDefault("blob.model_name", defaultConfig.Blob.ModelName)
	for _, key := range []string{
		"blob.s3.endpoint", "blob.s3.access_key_id", "blob.s3.secret_access_key", "blob.s3.bucket", "blob.s3.prefix",
		"blob.gcs.bucket", "blob.gcs.prefix", "blob.gcs.credentials_file", "blob.gcs.endpoint",
		"blob.azure.account_name", "blob.azure.account_key", "blob.azure.connection_string",
		"blob.azure.endpoint", "blob.azure.container", "blob.azure.prefix",
	} {
		v.SetDefault(key, "")
	}
	v.SetDefault("blob.s3.use_ssl", false)
	// [recommend]
	v.SetDefault("recommend.default_n", defaultConfig.Recommend.DefaultN)
	v.SetDefault("recommend.timeout", defaultConfig.Recommend.Timeout)
	v.SetDefault("recommend.batch_jobs", defaultConfig.Recommend.BatchJobs)
	v.SetDefault("recommend.implicit_rating", defaultConfig.Recommend.ImplicitRating)
	// [collaborative]
	v.SetDefault("collaborative.n_factors", defaultConfig.Collaborative.NFactors)
	v.SetDefault("collaborative.hidden_dims", defaultConfig.Collaborative.HiddenDims)
	v.SetDefault("collaborative.dropout", defaultConfig.Collaborative.Dropout)
	v.SetDefault("collaborative.lr", defaultConfig.Collaborative.Lr)
	v.SetDefault("collaborative.reg", defaultConfig.Collaborative.Reg)
	v.SetDefault("collaborative.n_epochs", defaultConfig.Collaborative.NEpochs)
	v.SetDefault("collaborative.batch_size", defaultConfig.Collaborative.BatchSize)
	v.SetDefault("collaborative.init_std", defaultConfig.Collaborative.InitStdDev)
	// [content]
	v.SetDefault("content.max_features", defaultConfig.Content.MaxFeatures)
	v.SetDefault("content.min_df", defaultConfig.Content.MinDF)
	v.SetDefault("content.max_df", defaultConfig.Content.MaxDF)
	v.SetDefault("content.ngram_max", defaultConfig.Content.NGramMax)
	v.SetDefault("content.stop_words", defaultConfig.Content.StopWords)
	v.SetDefault("content.n_components", defaultConfig.Content.NComponents)
	v.SetDefault("content.similarity_threshold", defaultConfig.Content.SimilarityThreshold)
	v.SetDefault("content.text_columns", defaultConfig.Content.TextColumns)
	v.SetDefault("content.numeric_columns", defaultConfig.Content.NumericColumns)
	v.SetDefault("content.categorical_columns", defaultConfig.Content.CategoricalColumns)
	// [hybrid]
	v.SetDefault("hybrid.collaborative_weight", defaultConfig.Hybrid.CollaborativeWeight)
	v.SetDefault("hybrid.content_weight", defaultConfig.Hybrid.ContentWeight)
	v.SetDefault("hybrid.min_interactions_for_cf", defaultConfig.Hybrid.MinInteractionsForCF)
	v.SetDefault("hybrid.diversity_factor", defaultConfig.Hybrid.DiversityFactor)
	// [training]
	v.SetDefault("training.jobs", defaultConfig.Training.Jobs)
	v.SetDefault("training.verbose", defaultConfig.Training.Verbose)
	v.SetDefault("training.random_state", defaultConfig.Training.RandomState)
	v.SetDefault("training.test_ratio", defaultConfig.Training.TestRatio)
	v.SetDefault("training.k_values", defaultConfig.Training.KValues)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	setDefault(v)
	v.SetEnvPrefix("GIFTREC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		// split env strings for any slice, elements are converted by weak typing
		mapstructure.StringToWeakSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// LoadConfig loads configuration from a TOML file. An empty path loads defaults. Environment
// variables named GIFTREC_<SECTION>_<KEY> override both.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	config, err := unmarshal(v)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return config, nil
}

// Validate checks field constraints and cross-field rules.
func (config *Config) Validate() error {
	if err := validator.New().Struct(config); err != nil {
		return errors.Annotate(err, "invalid config")
	}
	if config.Hybrid.CollaborativeWeight+config.Hybrid.ContentWeight <= 0 {
		return errors.NotValidf("hybrid weights (%v, %v)",
			config.Hybrid.CollaborativeWeight, config.Hybrid.ContentWeight)
	}
	switch config.Blob.Type {
	case "posix":
		if config.Blob.Dir == "" {
			return errors.NotValidf("empty blob.dir")
		}
	case "s3":
		if config.Blob.S3.Endpoint == "" || config.Blob.S3.Bucket == "" {
			return errors.NotValidf("blob.s3 without endpoint or bucket")
		}
	case "gcs":
		if config.Blob.GCS.Bucket == "" {
			return errors.NotValidf("blob.gcs without bucket")
		}
	case "azure":
		if config.Blob.Azure.Container == "" {
			return errors.NotValidf("blob.azure without container")
		}
	}
	return nil
}
