package embedding

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}]+)*`)

var stopwords = func() map[string]bool {
	m := map[string]bool{}
	for _, w := range strings.Fields(`a an the and or but if then else for to of in on at by with as is are
		was were be been being it its this that these those from up down over under so such into about
		between through during before after above below out off own same too very can will just should now
		what which who whom how when where why do does did has have had not no`) {
		m[w] = true
	}
	return m
}()

// TFIDF is a local embedder that needs no network. Its vocabulary and IDF
// weights come from the corpus passed to Fit, which suits a per-answer index.
type TFIDF struct {
	mu    sync.RWMutex
	vocab map[string]int
	idf   []float64
}

func NewTFIDF() *TFIDF { return &TFIDF{} }

// Fit builds the vocabulary and smoothed IDF weights from corpus.
func (e *TFIDF) Fit(corpus []string) error {
	if len(corpus) == 0 {
		return errors.New("tfidf: empty corpus")
	}
	df := map[string]int{}
	for _, doc := range corpus {
		seen := map[string]bool{}
		for _, tok := range tokenize(doc) {
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}
	if len(df) == 0 {
		return errors.New("tfidf: corpus has no indexable terms")
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	n := float64(len(corpus))
	vocab := make(map[string]int, len(terms))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		vocab[term] = i
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	e.mu.Lock()
	e.vocab, e.idf = vocab, idf
	e.mu.Unlock()
	return nil
}

// Embed returns L2-normalised TF-IDF vectors. Unknown terms are ignored.
func (e *TFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.vocab == nil {
		return nil, errors.New("tfidf: Fit must be called before Embed")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		tf := map[int]int{}
		total := 0
		for _, tok := range tokenize(text) {
			if idx, ok := e.vocab[tok]; ok {
				tf[idx]++
				total++
			}
		}
		vec := make([]float32, len(e.idf))
		if total > 0 {
			var norm float64
			weights := make(map[int]float64, len(tf))
			for idx, count := range tf {
				w := float64(count) / float64(total) * e.idf[idx]
				weights[idx] = w
				norm += w * w
			}
			norm = math.Sqrt(norm)
			for idx, w := range weights {
				vec[idx] = float32(w / norm)
			}
		}
		out[i] = vec
	}
	return out, nil
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if !stopwords[t] {
			out = append(out, t)
		}
	}
	return out
}
