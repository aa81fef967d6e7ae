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
	"encoding/json"
	"reflect"

	"github.com/giftwise/giftrec/base/log"
	"go.uber.org/zap"
)

/* ParamName */

type ParamName string

const (
	NFactors       ParamName = "NFactors"       // embedding dimension
	HiddenDims     ParamName = "HiddenDims"     // hidden layer sizes of the MLP
	Dropout        ParamName = "Dropout"        // dropout rate of hidden layers
	Lr             ParamName = "Lr"             // learning rate
	Reg            ParamName = "Reg"            // weight decay
	NEpochs        ParamName = "NEpochs"        // number of epochs
	BatchSize      ParamName = "BatchSize"      // mini-batch size
	InitStdDev     ParamName = "InitStdDev"     // standard deviation of initial embeddings
	RandomState    ParamName = "RandomState"    // random seed
	ImplicitRating ParamName = "ImplicitRating" // rating of interactions without one

	MaxFeatures         ParamName = "MaxFeatures"         // TF-IDF vocabulary size
	MinDF               ParamName = "MinDF"               // minimum document frequency (count)
	MaxDF               ParamName = "MaxDF"               // maximum document frequency (ratio)
	NGramMax            ParamName = "NGramMax"            // largest n-gram length
	StopWords           ParamName = "StopWords"           // remove english stop words
	NComponents         ParamName = "NComponents"         // embedding dimension after SVD
	SimilarityThreshold ParamName = "SimilarityThreshold" // similarities below are dropped
	TextColumns         ParamName = "TextColumns"
	NumericColumns      ParamName = "NumericColumns"
	CategoricalColumns  ParamName = "CategoricalColumns"

	CollaborativeWeight  ParamName = "CollaborativeWeight"
	ContentWeight        ParamName = "ContentWeight"
	MinInteractionsForCF ParamName = "MinInteractionsForCF"
	DiversityFactor      ParamName = "DiversityFactor"
)

type Params map[ParamName]interface{}

func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "int"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "int64"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "bool"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetFloat32(name ParamName, _default float32) float32 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float32:
			return val
		case float64:
			return float32(val)
		case int:
			return float32(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "float32"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "string"),
				zap.String("actual", reflect.TypeOf(val).Name()))
		}
	}
	return _default
}

func (parameters Params) GetInts(name ParamName, _default []int) []int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []int:
			return val
		case []interface{}:
			ret := make([]int, 0, len(val))
			for _, v := range val {
				switch v := v.(type) {
				case int:
					ret = append(ret, v)
				case int64:
					ret = append(ret, int(v))
				case float64:
					ret = append(ret, int(v))
				}
			}
			return ret
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "[]int"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

func (parameters Params) GetStrings(name ParamName, _default []string) []string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case []string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param_name", string(name)),
				zap.String("expect", "[]string"),
				zap.String("actual", reflect.TypeOf(val).String()))
		}
	}
	return _default
}

func (parameters Params) Overwrite(params Params) Params {
	merged := make(Params)
	for k, v := range parameters {
		merged[k] = v
	}
	for k, v := range params {
		merged[k] = v
	}
	return merged
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Fatal("failed to marshal params", zap.Error(err))
	}
	return string(b)
}
