package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/intelliweb/provider"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Fitter is implemented by embedders that derive their vector space from the
// corpus being indexed. Fit must be called before Embed.
type Fitter interface {
	Fit(corpus []string) error
}

// Kind names an embedder implementation in configuration.
type Kind string

const (
	ProviderKind Kind = "provider"
	TFIDFKind    Kind = "tfidf"
)

// New builds the configured embedder. Every call of a Fitter-backed kind
// returns a fresh instance, so callers should build one per index.
func New(kind Kind, p provider.Provider) (Embedder, error) {
	switch kind {
	case ProviderKind:
		if p == nil {
			return nil, errors.New("embedding: provider embedder needs a provider")
		}
		return NewEmbedding(p), nil
	case TFIDFKind:
		return NewTFIDF(), nil
	default:
		return nil, fmt.Errorf("embedding: unsupported kind %q", kind)
	}
}

// Embedding delegates to the model service.
type Embedding struct {
	provider provider.Provider
	// BatchSize caps the inputs sent per request.
	BatchSize int
}

func NewEmbedding(p provider.Provider) *Embedding {
	return &Embedding{provider: p, BatchSize: 64}
}

func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	batch := e.BatchSize
	if batch <= 0 {
		batch = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		part := make([]string, 0, end-start)
		for _, t := range texts[start:end] {
			// the embeddings API rejects empty input
			if strings.TrimSpace(t) == "" {
				t = " "
			}
			part = append(part, t)
		}
		vecs, err := e.provider.Embed(ctx, part)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(part) {
			return nil, fmt.Errorf("embedding: got %d vectors for %d texts", len(vecs), len(part))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
