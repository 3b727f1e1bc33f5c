package assistant

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
)

// Selector picks the answer source for a query with one structured call on
// the lite model.
type Selector struct {
	provider provider.Provider
	model    config.LLMModel
	logger   *log.Logger
}

func NewSelector(p provider.Provider, model config.LLMModel, logger *log.Logger) *Selector {
	if logger == nil {
		logger = log.New(log.Writer(), "[ROUTER] ", log.LstdFlags)
	}
	return &Selector{provider: p, model: model, logger: logger}
}

type routingReply struct {
	Source      string `json:"source"`
	SearchQuery string `json:"search_query"`
}

// SelectSource never fails. Any error on the way falls back to a web search
// for the query itself.
func (s *Selector) SelectSource(ctx context.Context, query string) models.RoutingDecision {
	defer runtime.Metrics().Stage(ctx, "route", time.Now())
	fallback := models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: query}

	var reply routingReply
	err := provider.Structured(ctx, s.provider, provider.Request{
		Model: s.model.Name,
		Messages: []models.Turn{
			{Role: models.RoleSystem, Content: routerSystemPrompt},
			{Role: models.RoleUser, Content: query},
		},
		Temperature: s.model.Temperature,
		MaxTokens:   s.model.MaxTokens,
	}, routingSchema, &reply)
	if err != nil {
		s.logger.Printf("routing failed, using web search: %v", err)
		runtime.Metrics().Fallback(ctx, "route")
		return fallback
	}
	src, err := models.ParseSource(reply.Source)
	if err != nil {
		s.logger.Printf("routing failed, using web search: %v", err)
		runtime.Metrics().Fallback(ctx, "route")
		return fallback
	}

	decision := models.RoutingDecision{Source: src, SearchQuery: strings.TrimSpace(reply.SearchQuery)}
	switch src {
	case models.SourceLLM:
		decision.SearchQuery = models.NoSearchQuery
	case models.SourceWebSearch, models.SourceNewsSearch:
		if decision.SearchQuery == "" || strings.EqualFold(decision.SearchQuery, models.NoSearchQuery) {
			decision.SearchQuery = query
		}
	default:
		return fallback
	}
	return decision
}
