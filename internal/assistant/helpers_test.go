package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/internal/retrieval"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/provider"
	"github.com/mohammad-safakhou/intelliweb/provider/providertest"
	"github.com/mohammad-safakhou/intelliweb/repository/inmemory_repository"
	"github.com/mohammad-safakhou/intelliweb/tools/embedding"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch"
	"github.com/mohammad-safakhou/intelliweb/tools/web_ingest"
	"github.com/mohammad-safakhou/intelliweb/tools/web_search"
	searchmodels "github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

var lite = config.LLMModel{Name: "lite"}

// replies answers each kind of model call. Empty fields fail that call.
type replies struct {
	route     string
	reframe   string
	followUps string
	answer    string
}

func isCall(req provider.Request, prefix string) bool {
	return len(req.Messages) > 0 && strings.HasPrefix(req.Messages[0].Content, prefix)
}

func isRoute(req provider.Request) bool    { return isCall(req, "You route") }
func isReframe(req provider.Request) bool  { return isCall(req, "You rewrite") }
func isFollowUp(req provider.Request) bool { return isCall(req, "You suggest") }

func fakeModel(r replies) *providertest.Fake {
	pick := func(text string) providertest.Reply {
		if text == "" {
			return providertest.Reply{Err: fmt.Errorf("model unavailable")}
		}
		return providertest.Reply{Text: text}
	}
	return providertest.New(func(req provider.Request) providertest.Reply {
		switch {
		case isRoute(req):
			return pick(r.route)
		case isReframe(req):
			return pick(r.reframe)
		case isFollowUp(req):
			return pick(r.followUps)
		default:
			return pick(r.answer)
		}
	})
}

func countCalls(f *providertest.Fake, match func(provider.Request) bool) int {
	n := 0
	for _, req := range f.Requests() {
		if match(req) {
			n++
		}
	}
	return n
}

type stubSearch struct {
	mu      sync.Mutex
	urls    []string
	err     error
	intents []searchmodels.Intent
}

func (s *stubSearch) FindURLs(_ context.Context, _ string, intent searchmodels.Intent) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = append(s.intents, intent)
	return append([]string(nil), s.urls...), s.err
}

func (s *stubSearch) calls() []searchmodels.Intent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]searchmodels.Intent(nil), s.intents...)
}

// stubPages serves the listed pages and fails every other URL.
type stubPages struct {
	mu    sync.Mutex
	texts map[string]string
	seen  []string
}

func (p *stubPages) Extract(_ context.Context, url string) (models.Page, error) {
	p.mu.Lock()
	p.seen = append(p.seen, url)
	p.mu.Unlock()
	text, ok := p.texts[url]
	if !ok {
		return models.Page{}, fmt.Errorf("%w: %s: connection reset", web_fetch.ErrFetch, url)
	}
	return models.Page{URL: url, Text: text}, nil
}

func (p *stubPages) fetched() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type harness struct {
	orch   *Orchestrator
	model  *providertest.Fake
	search *stubSearch
	pages  *stubPages
	store  *inmemory_repository.Transcripts
}

func newHarness(t *testing.T, r replies, search *stubSearch, pages *stubPages) *harness {
	t.Helper()
	if search == nil {
		search = &stubSearch{}
	}
	if pages == nil {
		pages = &stubPages{}
	}
	model := fakeModel(r)
	store := inmemory_repository.New()
	orch := NewOrchestrator(Deps{
		Transcripts: store,
		Reframer:    NewReframer(model, lite, 0, nil),
		Selector:    NewSelector(model, lite, nil),
		Search:      web_search.Router{Web: search, News: search},
		Extractor:   pages,
		Chunker:     web_ingest.NewChunker(0, 0),
		Synthesizer: retrieval.NewSynthesizer(model, config.LLMModel{Name: "answer"}, embedding.TFIDFKind, 0, nil),
		FollowUps:   NewFollowUps(model, lite, 0, 0, nil),
	}, Options{}, nil)
	return &harness{orch: orch, model: model, search: search, pages: pages, store: store}
}

func (h *harness) session(t *testing.T) string {
	t.Helper()
	id, err := h.orch.NewSession(context.Background())
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return id
}

const threeQuestions = `{"queries": ["What about Berlin?", "How big is Paris?", "When was it founded?"]}`
