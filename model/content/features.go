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

package content

import (
	"io"
	"sort"
	"strings"

	"github.com/giftwise/giftrec/base/encoding"
	"github.com/giftwise/giftrec/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const unknownCategory = "unknown"

var (
	DefaultTextColumns        = []string{"title", "description", "brand", "category_path"}
	DefaultNumericColumns     = []string{"price", "average_rating", "review_count"}
	DefaultCategoricalColumns = []string{"primary_category", "availability_status"}
)

// FeatureProcessor embeds products into a dense space: TF-IDF over text columns, standard
// scaled numeric columns with median imputation and one-hot categorical columns, reduced by
// truncated SVD when wider than NComponents.
type FeatureProcessor struct {
	TextColumns        []string
	NumericColumns     []string
	CategoricalColumns []string
	NComponents        int
	TfIdf              *TfIdf
	Medians            []float64
	Means              []float64
	Scales             []float64
	Classes            [][]string
	// Components is the projection (width x k) learned by SVD, nil if not reduced.
	Components [][]float64
	classIndex []map[string]int
}

func NewFeatureProcessor(tfidf *TfIdf, nComponents int, text, numeric, categorical []string) *FeatureProcessor {
	return &FeatureProcessor{
		TextColumns:        text,
		NumericColumns:     numeric,
		CategoricalColumns: categorical,
		NComponents:        nComponents,
		TfIdf:              tfidf,
	}
}

// FeatureColumns returns all product columns consumed.
func (p *FeatureProcessor) FeatureColumns() []string {
	return lo.Flatten([][]string{p.TextColumns, p.NumericColumns, p.CategoricalColumns})
}

// Width returns the dimension of embeddings.
func (p *FeatureProcessor) Width() int {
	if p.Components != nil {
		if len(p.Components) == 0 {
			return 0
		}
		return len(p.Components[0])
	}
	width := len(p.TfIdf.Terms) + len(p.NumericColumns)
	for _, classes := range p.Classes {
		width += len(classes)
	}
	return width
}

func (p *FeatureProcessor) document(product dataset.Product) string {
	texts := make([]string, len(p.TextColumns))
	for i, column := range p.TextColumns {
		texts[i] = product.Text(column)
	}
	return strings.Join(texts, " ")
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func category(product dataset.Product, column string) string {
	if value := strings.TrimSpace(product.Text(column)); value != "" {
		return value
	}
	return unknownCategory
}

// Fit learns the pipeline from products and returns their embeddings.
func (p *FeatureProcessor) Fit(products []dataset.Product) ([][]float32, error) {
	if len(products) == 0 {
		return nil, errors.NotValidf("empty product catalog")
	}
	// text
	docs := make([]string, len(products))
	for i, product := range products {
		docs[i] = p.document(product)
	}
	p.TfIdf.Fit(docs)
	// numeric
	p.Medians = make([]float64, len(p.NumericColumns))
	p.Means = make([]float64, len(p.NumericColumns))
	p.Scales = make([]float64, len(p.NumericColumns))
	for j, column := range p.NumericColumns {
		var present []float64
		for _, product := range products {
			if v, ok := product.Numeric(column); ok {
				present = append(present, v)
			}
		}
		p.Medians[j] = median(present)
		values := make([]float64, len(products))
		for i, product := range products {
			values[i] = p.numeric(product, j)
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		p.Means[j] = mean
		p.Scales[j] = std
		if std == 0 {
			p.Scales[j] = 1
		}
	}
	// categorical
	p.Classes = make([][]string, len(p.CategoricalColumns))
	for j, column := range p.CategoricalColumns {
		p.Classes[j] = lo.Uniq(lo.Map(products, func(product dataset.Product, _ int) string {
			return category(product, column)
		}))
		sort.Strings(p.Classes[j])
	}
	p.buildClassIndex()
	// reduce
	p.Components = nil
	features := p.features(products)
	width := len(features[0])
	if width > p.NComponents && p.NComponents > 0 {
		x := toDense(features)
		var svd mat.SVD
		if ok := svd.Factorize(x, mat.SVDThin); !ok {
			return nil, errors.New("failed to factorize feature matrix")
		}
		var v mat.Dense
		svd.VTo(&v)
		_, rank := v.Dims()
		k := min(p.NComponents, rank)
		p.Components = make([][]float64, width)
		for i := range p.Components {
			p.Components[i] = make([]float64, k)
			for j := 0; j < k; j++ {
				p.Components[i][j] = v.At(i, j)
			}
		}
	}
	return p.project(features), nil
}

// Transform embeds products with the fitted pipeline. Unseen categorical values encode to
// an all-zero block.
func (p *FeatureProcessor) Transform(products []dataset.Product) [][]float32 {
	if len(products) == 0 {
		return [][]float32{}
	}
	return p.project(p.features(products))
}

func (p *FeatureProcessor) numeric(product dataset.Product, j int) float64 {
	if v, ok := product.Numeric(p.NumericColumns[j]); ok {
		return v
	}
	return p.Medians[j]
}

func (p *FeatureProcessor) buildClassIndex() {
	p.classIndex = make([]map[string]int, len(p.Classes))
	for j, classes := range p.Classes {
		p.classIndex[j] = make(map[string]int, len(classes))
		for k, class := range classes {
			p.classIndex[j][class] = k
		}
	}
}

// features returns the concatenated [tfidf | numeric | one-hot] rows.
func (p *FeatureProcessor) features(products []dataset.Product) [][]float32 {
	docs := make([]string, len(products))
	for i, product := range products {
		docs[i] = p.document(product)
	}
	text := p.TfIdf.Transform(docs)
	rows := make([][]float32, len(products))
	for i, product := range products {
		row := text[i]
		for j := range p.NumericColumns {
			row = append(row, float32((p.numeric(product, j)-p.Means[j])/p.Scales[j]))
		}
		for j, column := range p.CategoricalColumns {
			oneHot := make([]float32, len(p.Classes[j]))
			if k, ok := p.classIndex[j][category(product, column)]; ok {
				oneHot[k] = 1
			}
			row = append(row, oneHot...)
		}
		rows[i] = row
	}
	return rows
}

func (p *FeatureProcessor) project(features [][]float32) [][]float32 {
	if p.Components == nil {
		return features
	}
	x := toDense(features)
	var y mat.Dense
	y.Mul(x, fromRows(p.Components))
	n, k := y.Dims()
	embeddings := make([][]float32, n)
	for i := range embeddings {
		embeddings[i] = make([]float32, k)
		for j := 0; j < k; j++ {
			embeddings[i][j] = float32(y.At(i, j))
		}
	}
	return embeddings
}

func toDense(rows [][]float32) *mat.Dense {
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		for j, v := range row {
			x.Set(i, j, float64(v))
		}
	}
	return x
}

func fromRows(rows [][]float64) *mat.Dense {
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		x.SetRow(i, row)
	}
	return x
}

func (p *FeatureProcessor) Marshal(w io.Writer) error {
	return encoding.WriteGob(w, p)
}

func (p *FeatureProcessor) Unmarshal(r io.Reader) error {
	*p = FeatureProcessor{}
	if err := encoding.ReadGob(r, p); err != nil {
		return errors.Trace(err)
	}
	p.TfIdf.buildVocabulary()
	p.buildClassIndex()
	return nil
}
