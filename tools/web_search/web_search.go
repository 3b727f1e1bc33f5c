package web_search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search/brave"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search/duckduckgo"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search/googlenews"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search/serper"
)

// Searcher resolves a query into at most models.MaxURLs result URLs.
type Searcher interface {
	FindURLs(ctx context.Context, q string, intent models.Intent) ([]string, error)
}

type Provider string

const (
	SerperProvider Provider = "serper"
	BraveProvider  Provider = "brave"
)

var ErrUnsupportedProvider = errors.New("unsupported search provider")

var logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)

// Router dispatches by intent and normalizes what the backends return:
// results are deduplicated by canonical URL and capped.
type Router struct {
	Web   Searcher
	News  Searcher
	Limit int
}

func (r Router) FindURLs(ctx context.Context, q string, intent models.Intent) ([]string, error) {
	b := r.Web
	if intent == models.IntentNews && r.News != nil {
		b = r.News
	}
	if b == nil {
		return nil, fmt.Errorf("no backend for %s search", intent)
	}
	limit := r.Limit
	if limit <= 0 || limit > models.MaxURLs {
		limit = models.MaxURLs
	}
	urls, err := b.FindURLs(ctx, q, intent)
	if err != nil {
		return nil, err
	}
	out := helpers.UniqueURLs(urls, limit)
	logger.Printf("%s search %q: %d urls", intent, q, len(out))
	return out, nil
}

// New builds the searcher described by cfg. In scrape mode web queries go
// to DuckDuckGo and news queries to Google News RSS.
func New(cfg config.SearchConfig) (Searcher, error) {
	cfg = cfg.Normalize()
	client := &http.Client{Timeout: cfg.Timeout}
	if cfg.Mode == "scrape" {
		return Router{
			Web:   duckduckgo.New(client),
			News:  googlenews.Search{Client: client},
			Limit: cfg.MaxResults,
		}, nil
	}
	var b Searcher
	switch Provider(cfg.Provider) {
	case SerperProvider:
		b = serper.Search{APIKey: cfg.SerperAPIKey, Client: client}
	case BraveProvider:
		b = brave.Search{APIKey: cfg.BraveAPIKey, Client: client}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	return Router{Web: b, News: b, Limit: cfg.MaxResults}, nil
}
