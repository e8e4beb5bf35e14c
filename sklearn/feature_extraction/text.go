// Package feature_extraction turns raw text into sparse numeric features.
package feature_extraction

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/YuminosukeSato/supervised-learning/core/model"
	"github.com/YuminosukeSato/supervised-learning/core/sparse"
	"github.com/YuminosukeSato/supervised-learning/pkg/errors"
	"github.com/YuminosukeSato/supervised-learning/pkg/log"
)

// tokenPattern は scikit-learn の (?u)\b\w\w+\b と同じく、2文字以上の単語文字の連続にマッチする
var tokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]{2,}`)

// Option configures a CountVectorizer.
type Option func(*CountVectorizer)

// WithBinary sets every non-zero count to 1.
func WithBinary(binary bool) Option {
	return func(cv *CountVectorizer) { cv.binary = binary }
}

// WithLowercase lowercases documents before tokenizing.
func WithLowercase(lowercase bool) Option {
	return func(cv *CountVectorizer) { cv.lowercase = lowercase }
}

// WithStopWords sets the stop word list. "english" selects the built-in list.
func WithStopWords(stopWords interface{}) Option {
	return func(cv *CountVectorizer) { cv.stopWords = stopWords }
}

// WithMaxFeatures keeps only the maxFeatures terms with the highest corpus
// frequency. 0 keeps all.
func WithMaxFeatures(n int) Option {
	return func(cv *CountVectorizer) { cv.maxFeatures = n }
}

// CountVectorizer converts documents into a matrix of token counts.
//
// The vocabulary is sorted alphabetically, so column j is the j-th term in
// lexicographic order. Terms not seen during Fit are ignored by Transform.
type CountVectorizer struct {
	state       *model.StateManager
	binary      bool
	lowercase   bool
	stopWords   interface{}
	maxFeatures int

	stop       map[string]struct{}
	vocabulary map[string]int
	terms      []string
}

// NewCountVectorizer creates a CountVectorizer. Lowercasing is on by default.
func NewCountVectorizer(opts ...Option) *CountVectorizer {
	cv := &CountVectorizer{
		state:     model.NewStateManager(),
		lowercase: true,
	}
	for _, opt := range opts {
		opt(cv)
	}
	return cv
}

func (cv *CountVectorizer) resolveStopWords() error {
	switch sw := cv.stopWords.(type) {
	case nil:
		cv.stop = nil
	case string:
		if sw != "english" {
			return errors.NewValidationError("stop_words", "only \"english\" is a built-in list", sw)
		}
		cv.stop = englishStopWords
	case []string:
		cv.stop = make(map[string]struct{}, len(sw))
		for _, w := range sw {
			cv.stop[w] = struct{}{}
		}
	default:
		return errors.NewValidationError("stop_words", "must be nil, \"english\" or a []string", cv.stopWords)
	}
	if cv.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", cv.maxFeatures)
	}
	return nil
}

// Analyze splits a document into the tokens the vectorizer counts.
func (cv *CountVectorizer) Analyze(doc string) []string {
	if cv.lowercase {
		doc = strings.ToLower(doc)
	}
	tokens := tokenPattern.FindAllString(doc, -1)
	if cv.stop == nil {
		return tokens
	}
	out := tokens[:0]
	for _, t := range tokens {
		if _, skip := cv.stop[t]; !skip {
			out = append(out, t)
		}
	}
	return out
}

// Fit learns the vocabulary of docs.
func (cv *CountVectorizer) Fit(docs []string) error {
	_, err := cv.FitTransform(docs)
	return err
}

// FitTransform learns the vocabulary and returns the document-term matrix.
func (cv *CountVectorizer) FitTransform(docs []string) (_ *sparse.CSR, err error) {
	const op = "CountVectorizer.FitTransform"
	defer errors.Recover(&err, op)

	if len(docs) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s", op)
	}
	if err := cv.resolveStopWords(); err != nil {
		return nil, err
	}
	cv.state.Reset()

	freq := make(map[string]int)
	for _, d := range docs {
		for _, t := range cv.Analyze(d) {
			freq[t]++
		}
	}
	if len(freq) == 0 {
		return nil, errors.NewValueError(op, "empty vocabulary; perhaps the documents only contain stop words")
	}

	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	if cv.maxFeatures > 0 && cv.maxFeatures < len(terms) {
		// 頻度の降順、同数なら辞書順
		sort.Slice(terms, func(a, b int) bool {
			if freq[terms[a]] != freq[terms[b]] {
				return freq[terms[a]] > freq[terms[b]]
			}
			return terms[a] < terms[b]
		})
		terms = terms[:cv.maxFeatures]
	}
	sort.Strings(terms)

	cv.terms = terms
	cv.vocabulary = make(map[string]int, len(terms))
	for j, t := range terms {
		cv.vocabulary[t] = j
	}
	cv.state.SetDimensions(len(terms), len(docs))
	cv.state.SetFitted()

	log.GetLoggerWithName("feature_extraction.CountVectorizer").Debug("Vocabulary built",
		log.OperationKey, log.OperationFitTransform,
		log.SamplesKey, len(docs),
		log.FeaturesKey, len(terms),
	)
	return cv.transform(docs), nil
}

// Transform counts the known terms of docs.
func (cv *CountVectorizer) Transform(docs []string) (*sparse.CSR, error) {
	if err := cv.state.RequireFitted("CountVectorizer", "Transform"); err != nil {
		return nil, err
	}
	return cv.transform(docs), nil
}

func (cv *CountVectorizer) transform(docs []string) *sparse.CSR {
	b := sparse.NewBuilder(len(cv.terms))
	for _, d := range docs {
		counts := make(map[int]float64)
		for _, t := range cv.Analyze(d) {
			if j, ok := cv.vocabulary[t]; ok {
				counts[j]++
			}
		}
		idx := make([]int, 0, len(counts))
		for j := range counts {
			idx = append(idx, j)
		}
		sort.Ints(idx)
		vals := make([]float64, len(idx))
		for k, j := range idx {
			if cv.binary {
				vals[k] = 1
			} else {
				vals[k] = counts[j]
			}
		}
		b.AddRow(idx, vals)
	}
	return b.Build()
}

// Vocabulary maps each term to its column index.
func (cv *CountVectorizer) Vocabulary() map[string]int { return cv.vocabulary }

// FeatureNames returns the terms in column order.
func (cv *CountVectorizer) FeatureNames() []string {
	return append([]string(nil), cv.terms...)
}

// IsFitted reports whether the vocabulary has been learned.
func (cv *CountVectorizer) IsFitted() bool { return cv.state.IsFitted() }

// GetParams returns the hyperparameters.
func (cv *CountVectorizer) GetParams(deep bool) map[string]interface{} {
	return map[string]interface{}{
		"binary":       cv.binary,
		"lowercase":    cv.lowercase,
		"stop_words":   cv.stopWords,
		"max_features": cv.maxFeatures,
	}
}

// SetParams updates hyperparameters by name.
func (cv *CountVectorizer) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "binary":
			cv.binary, err = model.ParamBool(k, v)
		case "lowercase":
			cv.lowercase, err = model.ParamBool(k, v)
		case "stop_words":
			cv.stopWords = v
		case "max_features":
			cv.maxFeatures, err = model.ParamInt(k, v)
		default:
			err = model.UnknownParam("CountVectorizer", k)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (cv *CountVectorizer) String() string {
	sw := "None"
	if cv.stopWords != nil {
		sw = fmt.Sprint(cv.stopWords)
	}
	return fmt.Sprintf("CountVectorizer(binary=%t, lowercase=%t, stop_words=%s)", cv.binary, cv.lowercase, sw)
}
