package openai_provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"
)

// Options configures a Client. BaseURL points the client at any
// OpenAI-compatible endpoint (e.g. Ollama's /v1).
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
}

// Client talks to an OpenAI-compatible chat and embeddings API.
type Client struct {
	api            *openai.Client
	model          string
	embeddingModel string
}

// Message represents a message in a conversation
type Message struct {
	Role    string
	Content string
}

// ChatRequest is one chat completion call. Model falls back to the client's
// default when empty.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
	JSON        bool
}

// NewClient creates a new OpenAI client
func NewClient(opts Options) (*Client, error) {
	if opts.Model == "" {
		return nil, errors.New("openai: model is required")
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	// streams can outlive any sane whole-request timeout, so only the dial and
	// header phases are bounded
	cfg.HTTPClient = &http.Client{Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: opts.Timeout,
		TLSHandshakeTimeout:   10 * time.Second,
	}}
	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
	}, nil
}

// Stream is a chat completion token stream.
type Stream struct {
	s *openai.ChatCompletionStream
}

// Recv returns the next non-empty content delta, or io.EOF at the end.
func (s *Stream) Recv() (string, error) {
	for {
		resp, err := s.s.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("openai stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if tok := resp.Choices[0].Delta.Content; tok != "" {
			return tok, nil
		}
	}
}

func (s *Stream) Close() error { return s.s.Close() }

// ChatStream starts a streamed chat completion.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest) (*Stream, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	creq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	}
	if req.JSON {
		creq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}
	s, err := c.api.CreateChatCompletionStream(ctx, creq)
	if err != nil {
		return nil, fmt.Errorf("openai chat %s: %w", model, err)
	}
	return &Stream{s: s}, nil
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if c.embeddingModel == "" {
		return nil, errors.New("openai: embedding model not configured")
	}
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vecs := make([][]float32, len(data))
	for i, d := range data {
		vecs[i] = d.Embedding
	}
	return vecs, nil
}
