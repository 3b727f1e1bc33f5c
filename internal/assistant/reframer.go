package assistant

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
)

const DefaultReframeAttempts = 4

var errEmptyReframe = errors.New("empty reframed query")

// Reframer rewrites the newest query so it stands on its own.
type Reframer struct {
	provider provider.Provider
	model    config.LLMModel
	attempts int
	logger   *log.Logger
}

func NewReframer(p provider.Provider, model config.LLMModel, attempts int, logger *log.Logger) *Reframer {
	if attempts <= 0 {
		attempts = DefaultReframeAttempts
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[REFRAME] ", log.LstdFlags)
	}
	return &Reframer{provider: p, model: model, attempts: attempts, logger: logger}
}

// Reframe returns the final turn's content rewritten with the entities of
// the earlier turns. A conversation of one turn is returned as is.
func (r *Reframer) Reframe(ctx context.Context, turns []models.Turn) string {
	var convo []models.Turn
	for _, t := range turns {
		if t.Role != models.RoleSystem {
			convo = append(convo, t)
		}
	}
	switch len(convo) {
	case 0:
		return ""
	case 1:
		return convo[0].Content
	}
	defer runtime.Metrics().Stage(ctx, "reframe", time.Now())

	query := convo[len(convo)-1].Content
	prompt := reframePrompt(historyBuffer(convo[:len(convo)-1]), query)

	var reframed string
	err := provider.Retry(ctx, r.attempts, 0, func(attempt int) error {
		var reply struct {
			ReframedQuery string `json:"reframed_query"`
		}
		err := provider.Structured(ctx, r.provider, provider.Request{
			Model: r.model.Name,
			Messages: []models.Turn{
				{Role: models.RoleSystem, Content: reframeSystemPrompt},
				{Role: models.RoleUser, Content: prompt},
			},
			Temperature: r.model.Temperature,
			MaxTokens:   r.model.MaxTokens,
		}, reframeSchema, &reply)
		if err != nil {
			r.logger.Printf("attempt %d/%d: %v", attempt, r.attempts, err)
			return err
		}
		reframed = strings.TrimSpace(reply.ReframedQuery)
		if reframed == "" {
			return errEmptyReframe
		}
		return nil
	})
	if err != nil {
		r.logger.Printf("keeping original query: %v", err)
		runtime.Metrics().Fallback(ctx, "reframe")
		return query
	}
	return reframed
}

func historyBuffer(turns []models.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		switch t.Role {
		case models.RoleUser:
			b.WriteString("Human: ")
			b.WriteString(t.Content)
		case models.RoleAssistant:
			b.WriteString("Assistant: ")
			b.WriteString(helpers.PlainText(helpers.StripReferences(t.Content)))
		default:
			continue
		}
		b.WriteString("\n")
	}
	return b.String()
}
