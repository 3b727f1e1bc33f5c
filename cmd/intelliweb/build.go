package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/assistant"
	"github.com/mohammad-safakhou/intelliweb/internal/retrieval"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/repository"
	"github.com/mohammad-safakhou/intelliweb/tools/embedding"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch"
	"github.com/mohammad-safakhou/intelliweb/tools/web_ingest"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search"
)

// buildAssistant wires every pipeline component from cfg.
func buildAssistant(ctx context.Context, cfg *config.Config) (*assistant.Orchestrator, error) {
	llm, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM provider: %w", err)
	}
	search, err := web_search.New(cfg.Search)
	if err != nil {
		return nil, fmt.Errorf("failed to create search provider: %w", err)
	}
	extractor, err := web_fetch.New(cfg.Fetch)
	if err != nil {
		return nil, fmt.Errorf("failed to create page extractor: %w", err)
	}
	transcripts, err := repository.NewTranscriptRepository(ctx, cfg.Storage, cfg.Server.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript store: %w", err)
	}

	p := cfg.Pipeline
	return assistant.NewOrchestrator(assistant.Deps{
		Transcripts: transcripts,
		Reframer:    assistant.NewReframer(llm, cfg.LLM.LiteModel, p.ReframeAttempts, nil),
		Selector:    assistant.NewSelector(llm, cfg.LLM.LiteModel, nil),
		Search:      search,
		Extractor:   extractor,
		Chunker:     web_ingest.NewChunker(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		Synthesizer: retrieval.NewSynthesizer(llm, cfg.LLM.AnswerModel, embedding.Kind(cfg.Retrieval.Embedder), cfg.Retrieval.TopK, nil),
		FollowUps:   assistant.NewFollowUps(llm, cfg.LLM.LiteModel, p.FollowUpAttempts, p.FollowUpBackoff, nil),
	}, assistant.Options{
		ReframeWindow: p.ReframeWindow,
		Workers:       cfg.Fetch.Workers,
		Debug:         cfg.General.Debug,
	}, nil), nil
}
