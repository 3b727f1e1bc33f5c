package assistant

import (
	"context"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/provider/providertest"
)

func TestSelectSource(t *testing.T) {
	const q = "who won the match yesterday"
	tests := []struct {
		name  string
		reply string
		want  models.RoutingDecision
	}{
		{"llm forces NA", `{"source": "LLM", "search_query": "capital of France"}`, models.RoutingDecision{Source: models.SourceLLM, SearchQuery: "NA"}},
		{"web keeps query", `{"source": "WebSearch", "search_query": "match result"}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: "match result"}},
		{"news with NA uses query", `{"source": "NewsSearch", "search_query": "NA"}`, models.RoutingDecision{Source: models.SourceNewsSearch, SearchQuery: q}},
		{"blank search query uses query", `{"source": "WebSearch", "search_query": "  "}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
		{"fenced reply", "```json\n{\"source\": \"NewsSearch\", \"search_query\": \"match\"}\n```", models.RoutingDecision{Source: models.SourceNewsSearch, SearchQuery: "match"}},
		{"legacy label rejected", `{"source": "Google News Search", "search_query": "match"}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
		{"lowercase label rejected", `{"source": "websearch", "search_query": "match"}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
		{"not json", "I think you should search the web.", models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
		{"schema violation", `{"source": "LLM"}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
		{"unknown label", `{"source": "Encyclopedia", "search_query": "x"}`, models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: q}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewSelector(providertest.Script(providertest.Reply{Text: tt.reply}), lite, nil)
			if got := s.SelectSource(context.Background(), q); got != tt.want {
				t.Fatalf("SelectSource() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSelectSourceCallFailure(t *testing.T) {
	s := NewSelector(providertest.Script(), lite, nil)
	got := s.SelectSource(context.Background(), "q")
	if got != (models.RoutingDecision{Source: models.SourceWebSearch, SearchQuery: "q"}) {
		t.Fatalf("unexpected fallback %+v", got)
	}
}

func TestReframeSingleTurnMakesNoCall(t *testing.T) {
	f := providertest.Script()
	r := NewReframer(f, lite, 0, nil)
	turns := []models.Turn{
		{Role: models.RoleSystem, Content: "be brief"},
		{Role: models.RoleUser, Content: "  What is the capital of France?"},
	}
	if got := r.Reframe(context.Background(), turns); got != "  What is the capital of France?" {
		t.Fatalf("got %q", got)
	}
	if got := r.Reframe(context.Background(), nil); got != "" {
		t.Fatalf("empty input gave %q", got)
	}
	if f.Calls() != 0 {
		t.Fatalf("expected no model call, got %d", f.Calls())
	}
}

func TestReframeSendsCleanHistory(t *testing.T) {
	f := providertest.Script(providertest.Reply{Text: `{"reframed_query": "What are the side effects of metformin?"}`})
	r := NewReframer(f, lite, 0, nil)
	turns := []models.Turn{
		{Role: models.RoleUser, Content: "What is metformin?"},
		{Role: models.RoleAssistant, Content: helpers.RenderReferences("A <b>diabetes</b> drug.", []string{"https://drugs.example/metformin"})},
		{Role: models.RoleUser, Content: "What are its side effects?"},
	}
	got := r.Reframe(context.Background(), turns)
	if got != "What are the side effects of metformin?" {
		t.Fatalf("got %q", got)
	}
	prompt := f.Requests()[0].Messages[1].Content
	for _, want := range []string{"Human: What is metformin?\n", "Assistant: A diabetes drug.\n", "New query: What are its side effects?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "drugs.example") {
		t.Fatalf("references leaked into prompt:\n%s", prompt)
	}
}

func TestReframeFallsBackToQuery(t *testing.T) {
	turns := []models.Turn{
		{Role: models.RoleUser, Content: "first"},
		{Role: models.RoleAssistant, Content: "answer"},
		{Role: models.RoleUser, Content: "second"},
	}
	t.Run("exhausted", func(t *testing.T) {
		f := providertest.New(func(_ provider.Request) providertest.Reply { return providertest.Reply{Text: "no json here"} })
		r := NewReframer(f, lite, 0, nil)
		if got := r.Reframe(context.Background(), turns); got != "second" {
			t.Fatalf("got %q", got)
		}
		if f.Calls() != DefaultReframeAttempts {
			t.Fatalf("expected %d attempts, got %d", DefaultReframeAttempts, f.Calls())
		}
	})
	t.Run("empty then success", func(t *testing.T) {
		f := providertest.Script(
			providertest.Reply{Text: `{"reframed_query": ""}`},
			providertest.Reply{Text: `{"reframed_query": "second, reframed"}`},
		)
		r := NewReframer(f, lite, 0, nil)
		if got := r.Reframe(context.Background(), turns); got != "second, reframed" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestSuggest(t *testing.T) {
	user := models.Turn{Role: models.RoleUser, Content: "What is the capital of France?"}
	assistant := models.Turn{Role: models.RoleAssistant, Content: helpers.RenderReferences("Paris.", []string{"https://p.example"})}

	t.Run("three distinct", func(t *testing.T) {
		f := providertest.Script(providertest.Reply{Text: threeQuestions})
		got := NewFollowUps(f, lite, 0, 0, nil).Suggest(context.Background(), user, assistant)
		if len(got) != 3 || got[0] != "What about Berlin?" {
			t.Fatalf("got %v", got)
		}
		msg := f.Requests()[0].Messages[1].Content
		want := "User: What is the capital of France?\nAI: Paris.\n\n" + strings.Repeat("-", 60)
		if msg != want {
			t.Fatalf("exchange = %q, want %q", msg, want)
		}
	})

	t.Run("duplicates retried", func(t *testing.T) {
		f := providertest.Script(
			providertest.Reply{Text: `{"queries": ["Why?", "why? ", "How?"]}`},
			providertest.Reply{Text: threeQuestions},
		)
		got := NewFollowUps(f, lite, 0, 0, nil).Suggest(context.Background(), user, assistant)
		if len(got) != 3 || f.Calls() != 2 {
			t.Fatalf("got %v after %d calls", got, f.Calls())
		}
	})

	t.Run("three failures", func(t *testing.T) {
		f := providertest.New(func(_ provider.Request) providertest.Reply { return providertest.Reply{Text: `{"queries": ["only one"]}`} })
		got := NewFollowUps(f, lite, 0, 0, nil).Suggest(context.Background(), user, assistant)
		if got == nil || len(got) != 0 {
			t.Fatalf("expected empty non-nil slice, got %#v", got)
		}
		if f.Calls() != 3 {
			t.Fatalf("expected 3 attempts, got %d", f.Calls())
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		f := providertest.Script(providertest.Reply{Text: threeQuestions})
		got := NewFollowUps(f, lite, 0, DefaultFollowUpBackoff, nil).Suggest(ctx, user, assistant)
		if len(got) != 0 {
			t.Fatalf("got %v", got)
		}
	})
}
