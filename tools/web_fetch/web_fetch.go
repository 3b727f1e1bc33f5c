package web_fetch

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch/httpfetch"
	fetchmodels "github.com/mohammad-safakhou/intelliweb/tools/web_fetch/models"
)

const DefaultWorkers = 6

var (
	ErrFetch     = fetchmodels.ErrFetch
	ErrNoContent = fetchmodels.ErrNoContent
)

// Extractor fetches a URL and returns its readable text. Failures are
// reported as errors wrapping ErrFetch or ErrNoContent.
type Extractor interface {
	Extract(ctx context.Context, url string) (models.Page, error)
}

type Backend string

const (
	HTTPBackend     Backend = "http"
	ChromedpBackend Backend = "chromedp"
)

var logger = log.New(log.Writer(), "[FETCH] ", log.LstdFlags)

func New(cfg config.FetchConfig) (Extractor, error) {
	cfg = cfg.Normalize()
	switch Backend(cfg.Backend) {
	case HTTPBackend:
		return httpfetch.Fetch{
			Client:    &http.Client{},
			UserAgent: cfg.UserAgent,
			Timeout:   cfg.Timeout,
			MaxChars:  cfg.MaxChars,
		}, nil
	case ChromedpBackend:
		return chromedp.Fetch{Timeout: cfg.Timeout, MaxChars: cfg.MaxChars, UserAgent: cfg.UserAgent}, nil
	default:
		return nil, fmt.Errorf("unsupported fetch backend %q", cfg.Backend)
	}
}

// Batch is the outcome of ExtractAll.
type Batch struct {
	Pages  []models.Page // successes, in input order
	Failed map[string]error
}

// URLs returns the URLs of the extracted pages.
func (b Batch) URLs() []string {
	out := make([]string, 0, len(b.Pages))
	for _, p := range b.Pages {
		out = append(out, p.URL)
	}
	return out
}

// ExtractAll extracts every URL with at most workers in flight and waits for
// all of them. One URL failing never affects the others.
func ExtractAll(ctx context.Context, ex Extractor, urls []string, workers int) Batch {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pages := make([]*models.Page, len(urls))
	var (
		mu     sync.Mutex
		failed = make(map[string]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			page, err := ex.Extract(gctx, u)
			if err != nil {
				logger.Printf("extract %s: %v", u, err)
				mu.Lock()
				failed[u] = err
				mu.Unlock()
				return nil
			}
			pages[i] = &page
			return nil
		})
	}
	_ = g.Wait()

	b := Batch{Failed: failed}
	for _, p := range pages {
		if p != nil {
			b.Pages = append(b.Pages, *p)
		}
	}
	return b
}
