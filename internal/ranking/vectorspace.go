package ranking

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// minTermRunes mirrors the analyzer of the reference vectorizer, which only
// keeps terms of two or more characters.
const minTermRunes = 2

// VectorSpace is a TF-IDF model fitted over a corpus. Rows are dense and
// L2-normalized; a document without any in-vocabulary term stays all zero.
type VectorSpace struct {
	vocabulary map[string]int
	terms      []string
	idf        []float64
	rows       [][]float64
	sublinear  bool
	tokenizer  Tokenizer
}

// FitVectorSpace fits the model over corpus. The tokenizer is used for
// out-of-corpus queries passed to Transform.
func FitVectorSpace(corpus *Corpus, tok Tokenizer, sublinear bool) *VectorSpace {
	vs := &VectorSpace{
		vocabulary: make(map[string]int),
		sublinear:  sublinear,
		tokenizer:  tok,
	}

	docs := make([][]string, corpus.Len())
	df := make(map[string]int)
	for i, doc := range corpus.Documents {
		terms := analyze(doc)
		docs[i] = terms
		for _, t := range NewOrderedSet(terms...).Values() {
			df[t]++
		}
	}

	vs.terms = make([]string, 0, len(df))
	for t := range df {
		vs.terms = append(vs.terms, t)
	}
	sort.Strings(vs.terms)
	for i, t := range vs.terms {
		vs.vocabulary[t] = i
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	n := float64(corpus.Len())
	vs.idf = make([]float64, len(vs.terms))
	for i, t := range vs.terms {
		vs.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	vs.rows = make([][]float64, len(docs))
	for i, terms := range docs {
		vs.rows[i] = vs.vectorize(terms)
	}
	return vs
}

// Dim returns the vocabulary size.
func (vs *VectorSpace) Dim() int {
	return len(vs.terms)
}

// Len returns the number of fitted documents.
func (vs *VectorSpace) Len() int {
	return len(vs.rows)
}

// Terms returns the sorted vocabulary.
func (vs *VectorSpace) Terms() []string {
	out := make([]string, len(vs.terms))
	copy(out, vs.terms)
	return out
}

// Row returns the fitted vector of document i. Callers must not modify it.
func (vs *VectorSpace) Row(i int) []float64 {
	return vs.rows[i]
}

// Matrix returns the items x vocabulary matrix, or nil when either
// dimension is zero.
func (vs *VectorSpace) Matrix() *mat.Dense {
	n, v := vs.Len(), vs.Dim()
	if n == 0 || v == 0 {
		return nil
	}
	flat := make([]float64, 0, n*v)
	for _, row := range vs.rows {
		flat = append(flat, row...)
	}
	return mat.NewDense(n, v, flat)
}

// Transform tokenizes free text and projects it onto the fitted vocabulary.
// Unknown terms are ignored, so an empty vocabulary always yields a zero
// vector.
func (vs *VectorSpace) Transform(text string) []float64 {
	var terms []string
	if vs.tokenizer != nil {
		terms = analyze(strings.Join(vs.tokenizer.Tokenize(text), " "))
	} else {
		terms = analyze(text)
	}
	return vs.vectorize(terms)
}

func (vs *VectorSpace) vectorize(terms []string) []float64 {
	vec := make([]float64, len(vs.terms))
	if len(vec) == 0 {
		return vec
	}
	counts := make(map[int]float64)
	for _, t := range terms {
		if idx, ok := vs.vocabulary[t]; ok {
			counts[idx]++
		}
	}
	for idx, c := range counts {
		tf := c
		if vs.sublinear {
			tf = 1 + math.Log(c)
		}
		vec[idx] = tf * vs.idf[idx]
	}
	if norm := floats.Norm(vec, 2); norm > 0 {
		floats.Scale(1/norm, vec)
	}
	return vec
}

func analyze(doc string) []string {
	fields := strings.Fields(strings.ToLower(doc))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minTermRunes {
			out = append(out, f)
		}
	}
	return out
}

// Cosine returns the cosine similarity of a and b clamped to [0,1]. A zero
// vector, or vectors of different length, give 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return clamp01(floats.Dot(a, b) / (na * nb))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
