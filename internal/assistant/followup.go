package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/internal/runtime"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
)

const (
	FollowUpCount           = 3
	DefaultFollowUpAttempts = 3
	DefaultFollowUpBackoff  = 200 * time.Millisecond
)

// FollowUps suggests the next questions after a finished exchange.
type FollowUps struct {
	provider provider.Provider
	model    config.LLMModel
	attempts int
	backoff  time.Duration
	logger   *log.Logger
}

func NewFollowUps(p provider.Provider, model config.LLMModel, attempts int, backoff time.Duration, logger *log.Logger) *FollowUps {
	if attempts <= 0 {
		attempts = DefaultFollowUpAttempts
	}
	if backoff < 0 {
		backoff = DefaultFollowUpBackoff
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FOLLOWUP] ", log.LstdFlags)
	}
	return &FollowUps{provider: p, model: model, attempts: attempts, backoff: backoff, logger: logger}
}

// Suggest returns exactly three distinct questions, or an empty slice when
// the model could not produce them.
func (f *FollowUps) Suggest(ctx context.Context, user, assistant models.Turn) []string {
	defer runtime.Metrics().Stage(ctx, "followups", time.Now())
	exchange := fmt.Sprintf("User: %s\nAI: %s\n\n%s",
		strings.TrimSpace(user.Content),
		helpers.PlainText(helpers.StripReferences(assistant.Content)),
		exchangeDivider)

	var out []string
	err := provider.Retry(ctx, f.attempts, f.backoff, func(attempt int) error {
		var reply struct {
			Queries []string `json:"queries"`
		}
		err := provider.Structured(ctx, f.provider, provider.Request{
			Model: f.model.Name,
			Messages: []models.Turn{
				{Role: models.RoleSystem, Content: followUpSystemPrompt},
				{Role: models.RoleUser, Content: exchange},
			},
			Temperature: f.model.Temperature,
			MaxTokens:   f.model.MaxTokens,
		}, followUpSchema, &reply)
		if err != nil {
			f.logger.Printf("attempt %d/%d: %v", attempt, f.attempts, err)
			return err
		}
		qs := distinctQuestions(reply.Queries)
		if len(qs) != FollowUpCount {
			f.logger.Printf("attempt %d/%d: got %d distinct questions", attempt, f.attempts, len(qs))
			return fmt.Errorf("want %d distinct questions, got %d", FollowUpCount, len(qs))
		}
		out = qs
		return nil
	})
	if err != nil {
		f.logger.Printf("no follow-ups: %v", err)
		runtime.Metrics().Fallback(ctx, "followups")
		return []string{}
	}
	return out
}

func distinctQuestions(qs []string) []string {
	seen := make(map[string]struct{}, len(qs))
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}
