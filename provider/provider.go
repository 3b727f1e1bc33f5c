package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/models"
	openai_provider "github.com/mohammad-safakhou/intelliweb/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
	Ollama Client = "ollama"
)

// Request is one chat call against the model service.
type Request struct {
	// Model overrides the provider's default model when set.
	Model       string
	Messages    []models.Turn
	Temperature float32
	MaxTokens   int
	// JSON asks the backend for a JSON object response when it supports it.
	JSON bool
}

// Provider is the interface that all LLM implementations must satisfy.
// Non-streaming calls drain the stream, see Complete.
type Provider interface {
	Stream(ctx context.Context, req Request) (*TokenStream, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Complete runs req and returns the full trimmed completion.
func Complete(ctx context.Context, p Provider, req Request) (string, error) {
	s, err := p.Stream(ctx, req)
	if err != nil {
		return "", err
	}
	return Drain(s)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	switch Client(cfg.Provider) {
	case OpenAI, Ollama:
		c, err := openai_provider.NewClient(openai_provider.Options{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.AnswerModel.Name,
			EmbeddingModel: cfg.EmbeddingModel,
			Timeout:        cfg.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return openaiAdapter{c: c}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// openaiAdapter maps the provider boundary onto the go-openai backed client.
type openaiAdapter struct {
	c *openai_provider.Client
}

func (a openaiAdapter) Stream(ctx context.Context, req Request) (*TokenStream, error) {
	msgs := make([]openai_provider.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai_provider.Message{Role: string(m.Role), Content: m.Content})
	}
	st, err := a.c.ChatStream(ctx, openai_provider.ChatRequest{
		Model:       req.Model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSON:        req.JSON,
	})
	if err != nil {
		return nil, err
	}
	return NewTokenStream(st.Recv, st.Close), nil
}

func (a openaiAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return a.c.Embed(ctx, texts)
}

// Today is the date format used as a temporal anchor in prompts.
func Today(now time.Time) string { return now.Format("Monday, January 2, 2006") }
