package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/tools/embedding"
)

const (
	DefaultTopK = 5
	rrfK        = 60 // reciprocal-rank-fusion constant
)

type document struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Index ranks the chunks of one answer by BM25 and embedding similarity.
// It lives for a single call and is never shared.
type Index struct {
	bleve    bleve.Index
	ids      []string // doc ids in chunk order
	chunks   map[string]models.Chunk
	vectors  map[string][]float32
	embedder embedding.Embedder
	logger   *log.Logger
}

type hit struct {
	id   string
	rank int
}

// NewIndex indexes chunks in memory. A failing embedder leaves the index
// keyword-only.
func NewIndex(ctx context.Context, embedder embedding.Embedder, chunks []models.Chunk, logger *log.Logger) (*Index, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
	}
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	ix := &Index{
		bleve:    idx,
		chunks:   make(map[string]models.Chunk, len(chunks)),
		embedder: embedder,
		logger:   logger,
	}

	texts := make([]string, 0, len(chunks))
	batch := idx.NewBatch()
	for _, c := range chunks {
		id := uuid.NewString()
		ix.ids = append(ix.ids, id)
		ix.chunks[id] = c
		texts = append(texts, c.Text)
		if err := batch.Index(id, document{Text: c.Text, URL: c.SourceURL}); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("index chunk: %w", err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("index batch: %w", err)
	}

	if embedder != nil && len(texts) > 0 {
		if err := ix.embed(ctx, texts); err != nil {
			logger.Printf("embedding failed, ranking by keywords only: %v", err)
			ix.embedder = nil
		}
	}
	return ix, nil
}

func (ix *Index) embed(ctx context.Context, texts []string) error {
	if f, ok := ix.embedder.(embedding.Fitter); ok {
		if err := f.Fit(texts); err != nil {
			return err
		}
	}
	vecs, err := ix.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("got %d vectors for %d chunks", len(vecs), len(texts))
	}
	ix.vectors = make(map[string][]float32, len(vecs))
	for i, v := range vecs {
		ix.vectors[ix.ids[i]] = v
	}
	return nil
}

// Search returns the k best chunks for query, fusing the keyword and vector
// rankings with reciprocal rank fusion.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	if strings.TrimSpace(query) == "" || len(ix.ids) == 0 {
		return nil, nil
	}
	keyword, err := ix.bm25(query, k*3)
	if err != nil {
		return nil, err
	}
	vector := ix.cosine(ctx, query, k*3)

	fused := fuse(ix.ids, k, keyword, vector)
	out := make([]models.Chunk, 0, len(fused))
	for _, id := range fused {
		out = append(out, ix.chunks[id])
	}
	return out, nil
}

func (ix *Index) bm25(q string, n int) ([]hit, error) {
	query := bleve.NewMatchQuery(q)
	query.SetField("text")
	req := bleve.NewSearchRequestOptions(query, n, 0, false)
	res, err := ix.bleve.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		out = append(out, hit{id: h.ID, rank: i + 1})
	}
	return out, nil
}

func (ix *Index) cosine(ctx context.Context, q string, n int) []hit {
	if ix.embedder == nil || len(ix.vectors) == 0 {
		return nil
	}
	qv, err := ix.embedder.Embed(ctx, []string{q})
	if err != nil || len(qv) != 1 {
		if err == nil {
			err = errors.New("no query vector")
		}
		ix.logger.Printf("query embedding failed, ranking by keywords only: %v", err)
		return nil
	}
	type scored struct {
		id    string
		score float64
	}
	all := make([]scored, 0, len(ix.ids))
	for _, id := range ix.ids {
		all = append(all, scored{id: id, score: cosine(qv[0], ix.vectors[id])})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	out := make([]hit, 0, min(n, len(all)))
	for i := 0; i < min(n, len(all)); i++ {
		out = append(out, hit{id: all[i].id, rank: i + 1})
	}
	return out
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	return ix.bleve.Close()
}

// fuse merges rankings by summing 1/(rrfK+rank). Ties keep chunk order.
func fuse(order []string, k int, lists ...[]hit) []string {
	scores := map[string]float64{}
	for _, list := range lists {
		for _, h := range list {
			scores[h.id] += 1.0 / float64(rrfK+h.rank)
		}
	}
	ids := make([]string, 0, len(scores))
	for _, id := range order {
		if _, ok := scores[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.SliceStable(ids, func(i, j int) bool { return scores[ids[i]] > scores[ids[j]] })
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
