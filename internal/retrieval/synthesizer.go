package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/tools/embedding"
)

// Synthesizer answers a query from retrieved chunks by map-then-refine, or
// from model knowledge when there is nothing to retrieve.
type Synthesizer struct {
	provider provider.Provider
	model    config.LLMModel
	embedder embedding.Kind
	topK     int
	news     bool

	// Now is the clock behind the date in every prompt.
	Now    func() time.Time
	logger *log.Logger
}

func NewSynthesizer(p provider.Provider, model config.LLMModel, embedder embedding.Kind, topK int, logger *log.Logger) *Synthesizer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVAL] ", log.LstdFlags)
	}
	return &Synthesizer{
		provider: p,
		model:    model,
		embedder: embedder,
		topK:     topK,
		Now:      time.Now,
		logger:   logger,
	}
}

// ForSource returns a copy that words its prompts for src. News answers are
// held to the search results; the others may draw on model knowledge.
func (s *Synthesizer) ForSource(src models.Source) *Synthesizer {
	c := *s
	c.news = src == models.SourceNewsSearch
	return &c
}

// AnswerText is Answer drained to a string.
func (s *Synthesizer) AnswerText(ctx context.Context, query string, chunks []models.Chunk, history []models.Turn) (string, error) {
	st, err := s.Answer(ctx, query, chunks, history)
	if err != nil {
		return "", err
	}
	return provider.Drain(st)
}

// Answer returns the answer as a token stream. Every intermediate model call
// is drained here; only the last one streams to the caller.
func (s *Synthesizer) Answer(ctx context.Context, query string, chunks []models.Chunk, history []models.Turn) (*provider.TokenStream, error) {
	st, _, err := s.AnswerGrounded(ctx, query, chunks, history)
	return st, err
}

// AnswerGrounded is Answer that also reports whether any retrieved chunk
// went into the answer. It is false when the answer came from knowledge.
func (s *Synthesizer) AnswerGrounded(ctx context.Context, query string, chunks []models.Chunk, history []models.Turn) (*provider.TokenStream, bool, error) {
	if len(chunks) == 0 {
		st, err := s.fromKnowledge(ctx, query, history)
		return st, false, err
	}
	retrieved, err := s.retrieve(ctx, query, chunks)
	if err != nil {
		return nil, false, err
	}
	if len(retrieved) == 0 {
		s.logger.Printf("no chunk matched %q, answering from knowledge", query)
		st, err := s.fromKnowledge(ctx, query, history)
		return st, false, err
	}

	today := provider.Today(s.Now())
	qa := []models.Turn{
		{Role: models.RoleSystem, Content: systemPrompt},
		{Role: models.RoleUser, Content: qaPrompt(s.news, query, retrieved[0].Text, today)},
	}
	if len(retrieved) == 1 {
		st, err := s.stream(ctx, qa)
		return st, err == nil, err
	}
	answer, err := provider.Complete(ctx, s.provider, s.request(qa))
	if err != nil {
		return nil, false, err
	}
	last := len(retrieved) - 1
	for _, c := range retrieved[1:last] {
		if answer, err = s.Refine(ctx, query, answer, c); err != nil {
			return nil, false, err
		}
	}
	st, err := s.stream(ctx, s.refineMessages(query, answer, retrieved[last]))
	if err != nil {
		return nil, false, err
	}
	return keepOnBlank(st, answer), true, nil
}

// Refine applies one chunk to an existing answer. A blank reply keeps the
// existing answer.
func (s *Synthesizer) Refine(ctx context.Context, query, answer string, chunk models.Chunk) (string, error) {
	refined, err := provider.Complete(ctx, s.provider, s.request(s.refineMessages(query, answer, chunk)))
	if err != nil {
		return "", err
	}
	if refined == "" {
		return answer, nil
	}
	return refined, nil
}

func (s *Synthesizer) retrieve(ctx context.Context, query string, chunks []models.Chunk) ([]models.Chunk, error) {
	var emb embedding.Embedder
	if s.embedder != "" {
		e, err := embedding.New(s.embedder, s.provider)
		if err != nil {
			s.logger.Printf("embedder unavailable: %v", err)
		} else {
			emb = e
		}
	}
	ix, err := NewIndex(ctx, emb, chunks, s.logger)
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	return ix.Search(ctx, query, s.topK)
}

func (s *Synthesizer) fromKnowledge(ctx context.Context, query string, history []models.Turn) (*provider.TokenStream, error) {
	msgs := []models.Turn{{Role: models.RoleSystem, Content: knowledgeSystemPrompt(provider.Today(s.Now()))}}
	for _, t := range history {
		switch t.Role {
		case models.RoleSystem:
			continue
		case models.RoleAssistant:
			t.Content = helpers.StripReferences(t.Content)
		}
		msgs = append(msgs, t)
	}
	msgs = append(msgs, models.Turn{Role: models.RoleUser, Content: query})
	return s.stream(ctx, msgs)
}

func (s *Synthesizer) refineMessages(query, answer string, c models.Chunk) []models.Turn {
	msgs := []models.Turn{}
	if !s.news {
		msgs = append(msgs, models.Turn{Role: models.RoleSystem, Content: systemPrompt})
	}
	return append(msgs,
		models.Turn{Role: models.RoleUser, Content: query},
		models.Turn{Role: models.RoleAssistant, Content: answer},
		models.Turn{Role: models.RoleUser, Content: refinePrompt(s.news, c.Text)},
	)
}

func (s *Synthesizer) request(msgs []models.Turn) provider.Request {
	return provider.Request{
		Model:       s.model.Name,
		Messages:    msgs,
		Temperature: s.model.Temperature,
		MaxTokens:   s.model.MaxTokens,
	}
}

func (s *Synthesizer) stream(ctx context.Context, msgs []models.Turn) (*provider.TokenStream, error) {
	st, err := s.provider.Stream(ctx, s.request(msgs))
	if err != nil {
		return nil, fmt.Errorf("answer model: %w", err)
	}
	return st, nil
}

// keepOnBlank passes st through unchanged unless it ends without any
// non-space text, in which case fallback is emitted instead. Leading
// whitespace is held back until that is known.
func keepOnBlank(st *provider.TokenStream, fallback string) *provider.TokenStream {
	var (
		seen    bool
		pending strings.Builder
	)
	return provider.NewTokenStream(func() (string, error) {
		for {
			tok, err := st.Recv()
			if errors.Is(err, io.EOF) {
				if !seen {
					seen = true
					return fallback, nil
				}
				return "", io.EOF
			}
			if err != nil {
				return "", err
			}
			if seen {
				return tok, nil
			}
			if strings.TrimSpace(tok) == "" {
				pending.WriteString(tok)
				continue
			}
			seen = true
			out := pending.String() + tok
			pending.Reset()
			return out, nil
		}
	}, st.Close)
}
