package provider_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/provider/providertest"
)

func TestTokenStreamSinglePass(t *testing.T) {
	s := provider.StaticStream("a", "b")
	fired := 0
	s.OnEOF(func() { fired++ })
	got, err := provider.Drain(s)
	if err != nil || got != "ab" {
		t.Fatalf("Drain = %q, %v", got, err)
	}
	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF after exhaustion, got %v", err)
	}
	if fired != 1 {
		t.Fatalf("OnEOF fired %d times", fired)
	}
}

func TestTokenStreamCloseDiscards(t *testing.T) {
	closed := false
	s := provider.NewTokenStream(func() (string, error) { return "x", nil }, func() error { closed = true; return nil })
	fired := false
	s.OnEOF(func() { fired = true })
	if tok, _ := s.Recv(); tok != "x" {
		t.Fatalf("unexpected token %q", tok)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !closed {
		t.Fatal("producer not released")
	}
	if _, err := s.Recv(); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected ErrClosedPipe, got %v", err)
	}
	if fired {
		t.Fatal("OnEOF must not fire for a closed stream")
	}
}

func TestDrainPropagatesProducerError(t *testing.T) {
	boom := errors.New("boom")
	n := 0
	s := provider.NewTokenStream(func() (string, error) {
		n++
		if n > 1 {
			return "", boom
		}
		return "partial", nil
	}, nil)
	if _, err := provider.Drain(s); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

var pairSchema = provider.NewSchema("pair", `{
  "type": "object",
  "required": ["source", "search_query"],
  "properties": {
    "source": {"enum": ["LLM", "WebSearch", "NewsSearch"]},
    "search_query": {"type": "string"}
  }
}`)

func TestStructuredDecodesFencedReply(t *testing.T) {
	fake := providertest.Script(providertest.Reply{Text: "```json\n{\"source\": \"LLM\", \"search_query\": \"NA\"}\n```"})
	var out struct {
		Source      string `json:"source"`
		SearchQuery string `json:"search_query"`
	}
	req := provider.Request{Messages: []models.Turn{{Role: models.RoleSystem, Content: "route"}, {Role: models.RoleUser, Content: "hi"}}}
	if err := provider.Structured(context.Background(), fake, req, pairSchema, &out); err != nil {
		t.Fatalf("Structured: %v", err)
	}
	if out.Source != "LLM" || out.SearchQuery != "NA" {
		t.Fatalf("unexpected decode %+v", out)
	}
	sent := fake.Requests()[0]
	if !sent.JSON || len(sent.Messages) != 2 || !strings.Contains(sent.Messages[0].Content, "JSON Schema") {
		t.Fatalf("schema instruction not merged into system turn: %+v", sent)
	}
}

func TestStructuredSchemaError(t *testing.T) {
	for _, reply := range []string{"not json", `{"source": "Encyclopedia", "search_query": "x"}`, `{"source": "LLM"}`} {
		fake := providertest.Script(providertest.Reply{Text: reply})
		var out map[string]any
		err := provider.Structured(context.Background(), fake, provider.Request{}, pairSchema, &out)
		var se *provider.SchemaError
		if !errors.As(err, &se) {
			t.Fatalf("reply %q: expected SchemaError, got %v", reply, err)
		}
	}
}

func TestRetryStopsOnSuccess(t *testing.T) {
	calls := 0
	err := provider.Retry(context.Background(), 4, 0, func(int) error {
		calls++
		if calls < 3 {
			return errors.New("nope")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
}

func TestRetryExhaustsWithBackoff(t *testing.T) {
	calls := 0
	start := time.Now()
	err := provider.Retry(context.Background(), 3, 20*time.Millisecond, func(int) error {
		calls++
		return errors.New("still failing")
	})
	if err == nil || calls != 3 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected two backoff pauses, elapsed %v", elapsed)
	}
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := provider.Retry(ctx, 5, time.Second, func(int) error {
		calls++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("Retry = %v after %d calls", err, calls)
	}
}

func TestCompleteDrains(t *testing.T) {
	fake := providertest.Script(providertest.Reply{Text: "  The capital is Paris.  "})
	got, err := provider.Complete(context.Background(), fake, provider.Request{})
	if err != nil || got != "The capital is Paris." {
		t.Fatalf("Complete = %q, %v", got, err)
	}
}
