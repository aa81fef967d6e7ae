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
	"regexp"
	"sort"
	"strings"

	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

var englishStopWords = mapset.NewThreadUnsafeSet(
	"a", "about", "above", "across", "after", "afterwards", "again", "against", "all", "almost",
	"alone", "along", "already", "also", "although", "always", "am", "among", "amongst", "an",
	"and", "another", "any", "anyhow", "anyone", "anything", "anyway", "anywhere", "are",
	"around", "as", "at", "be", "became", "because", "become", "becomes", "becoming", "been",
	"before", "beforehand", "behind", "being", "below", "beside", "besides", "between", "beyond",
	"both", "but", "by", "can", "cannot", "could", "do", "done", "down", "due", "during", "each",
	"eg", "either", "else", "elsewhere", "enough", "etc", "even", "ever", "every", "everyone",
	"everything", "everywhere", "except", "few", "for", "former", "formerly", "from", "further",
	"had", "has", "have", "he", "hence", "her", "here", "hereafter", "hereby", "herein",
	"hereupon", "hers", "herself", "him", "himself", "his", "how", "however", "ie", "if", "in",
	"indeed", "into", "is", "it", "its", "itself", "last", "latter", "latterly", "least", "less",
	"ltd", "many", "may", "me", "meanwhile", "might", "mine", "more", "moreover", "most",
	"mostly", "much", "must", "my", "myself", "namely", "neither", "never", "nevertheless",
	"next", "no", "nobody", "none", "noone", "nor", "not", "nothing", "now", "nowhere", "of",
	"off", "often", "on", "once", "one", "only", "onto", "or", "other", "others", "otherwise",
	"our", "ours", "ourselves", "out", "over", "own", "per", "perhaps", "please", "rather",
	"re", "same", "seem", "seemed", "seeming", "seems", "several", "she", "should", "since",
	"so", "some", "somehow", "someone", "something", "sometime", "sometimes", "somewhere",
	"still", "such", "than", "that", "the", "their", "them", "themselves", "then", "thence",
	"there", "thereafter", "thereby", "therefore", "therein", "thereupon", "these", "they",
	"this", "those", "though", "through", "throughout", "thru", "thus", "to", "together", "too",
	"toward", "towards", "under", "until", "up", "upon", "us", "very", "via", "was", "we",
	"well", "were", "what", "whatever", "when", "whence", "whenever", "where", "whereafter",
	"whereas", "whereby", "wherein", "whereupon", "wherever", "whether", "which", "while",
	"whither", "who", "whoever", "whole", "whom", "whose", "why", "will", "with", "within",
	"without", "would", "yet", "you", "your", "yours", "yourself", "yourselves",
)

// TfIdf converts documents into L2-normalized TF-IDF vectors over a vocabulary of unigrams
// and n-grams up to NGramMax.
type TfIdf struct {
	MaxFeatures int
	MinDF       int     // minimum number of documents containing a term
	MaxDF       float32 // maximum fraction of documents containing a term
	NGramMax    int
	StopWords   bool
	Terms       []string
	IDF         []float32
	vocabulary  map[string]int
}

func NewTfIdf(maxFeatures, minDF int, maxDF float32, nGramMax int, stopWords bool) *TfIdf {
	return &TfIdf{
		MaxFeatures: maxFeatures,
		MinDF:       minDF,
		MaxDF:       maxDF,
		NGramMax:    nGramMax,
		StopWords:   stopWords,
	}
}

// Analyze splits a document into lower-cased terms.
func (t *TfIdf) Analyze(doc string) []string {
	var words []string
	for _, word := range tokenPattern.FindAllString(strings.ToLower(doc), -1) {
		if t.StopWords && englishStopWords.Contains(word) {
			continue
		}
		words = append(words, word)
	}
	terms := append([]string(nil), words...)
	for n := 2; n <= t.NGramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}

// Fit learns the vocabulary and inverse document frequencies. The vocabulary is empty if no
// term survives the document frequency limits.
func (t *TfIdf) Fit(docs []string) {
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, term := range t.Analyze(doc) {
			tf[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}
	maxDocs := t.MaxDF * float32(len(docs))
	var terms []string
	for term, count := range df {
		if count >= t.MinDF && float32(count) <= maxDocs {
			terms = append(terms, term)
		}
	}
	if t.MaxFeatures > 0 && len(terms) > t.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:t.MaxFeatures]
	}
	sort.Strings(terms)
	// smooth idf: ln((1 + n) / (1 + df)) + 1
	t.Terms = terms
	t.IDF = make([]float32, len(terms))
	for i, term := range terms {
		t.IDF[i] = math32.Log(float32(1+len(docs))/float32(1+df[term])) + 1
	}
	t.buildVocabulary()
}

func (t *TfIdf) buildVocabulary() {
	t.vocabulary = make(map[string]int, len(t.Terms))
	for i, term := range t.Terms {
		t.vocabulary[term] = i
	}
}

// Transform converts documents into TF-IDF rows. Terms outside the vocabulary are ignored.
func (t *TfIdf) Transform(docs []string) [][]float32 {
	if t.vocabulary == nil {
		t.buildVocabulary()
	}
	rows := make([][]float32, len(docs))
	for i, doc := range docs {
		row := make([]float32, len(t.Terms))
		for _, term := range t.Analyze(doc) {
			if j, ok := t.vocabulary[term]; ok {
				row[j]++
			}
		}
		var norm float32
		for j := range row {
			row[j] *= t.IDF[j]
			norm += row[j] * row[j]
		}
		if norm > 0 {
			norm = math32.Sqrt(norm)
			for j := range row {
				row[j] /= norm
			}
		}
		rows[i] = row
	}
	return rows
}
