package web_fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch/chromedp"
	"github.com/mohammad-safakhou/intelliweb/tools/web_fetch/httpfetch"
)

const article = `<!doctype html><html><head><title>Capitals</title>
<script>var tracking = "do not index";</script><style>p{color:red}</style></head>
<body><article><h1>Capitals of Europe</h1>
<p>Paris is the capital and most populous city of France. It has been a centre of
finance, diplomacy, commerce, fashion and science for centuries.</p>
<p>Berlin is the capital of Germany and its largest city by population within
the city limits. It lies in the north east of the country.</p>
</article></body></html>`

func TestHTTPFetchExtractsArticle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			if r.Header.Get("User-Agent") != "test-agent" {
				t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
			}
			fmt.Fprint(w, article)
		case "/empty":
			fmt.Fprint(w, `<html><head><title>x</title><script>run()</script></head><body>  </body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := httpfetch.Fetch{Client: srv.Client(), UserAgent: "test-agent"}
	page, err := f.Extract(context.Background(), srv.URL+"/article")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(page.Text, "Paris is the capital") || strings.Contains(page.Text, "do not index") {
		t.Fatalf("unexpected text %q", page.Text)
	}
	if page.URL != srv.URL+"/article" {
		t.Fatalf("unexpected url %q", page.URL)
	}

	if _, err := f.Extract(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if _, err := f.Extract(context.Background(), srv.URL+"/empty"); !errors.Is(err, ErrNoContent) {
		t.Fatalf("expected ErrNoContent, got %v", err)
	}
}

func TestHTTPFetchMaxChars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, article)
	}))
	defer srv.Close()

	f := httpfetch.Fetch{Client: srv.Client(), MaxChars: 20}
	page, err := f.Extract(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if n := len([]rune(page.Text)); n == 0 || n > 20 {
		t.Fatalf("expected at most 20 runes, got %d", n)
	}
}

func TestHTTPFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := httpfetch.Fetch{Client: srv.Client(), Timeout: 50 * time.Millisecond}
	if _, err := f.Extract(context.Background(), srv.URL); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch on timeout, got %v", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ex, err := New(config.FetchConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ex.(httpfetch.Fetch); !ok {
		t.Fatalf("default backend is %T", ex)
	}
	ex, err = New(config.FetchConfig{Backend: "chromedp"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := ex.(chromedp.Fetch); !ok {
		t.Fatalf("chromedp backend is %T", ex)
	}
	if _, err := New(config.FetchConfig{Backend: "lynx"}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

type scriptedExtractor struct {
	fail     map[string]bool
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *scriptedExtractor) Extract(ctx context.Context, url string) (models.Page, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(s.delay)
	if s.fail[url] {
		return models.Page{URL: url}, fmt.Errorf("%w: %s", ErrFetch, url)
	}
	return models.Page{URL: url, Text: "text of " + url}, nil
}

func TestExtractAllIsolatesFailures(t *testing.T) {
	urls := []string{"https://a", "https://b", "https://c", "https://d", "https://e", "https://f", "https://g"}
	ex := &scriptedExtractor{fail: map[string]bool{"https://b": true, "https://f": true}, delay: 10 * time.Millisecond}

	b := ExtractAll(context.Background(), ex, urls, 3)
	if got := strings.Join(b.URLs(), ","); got != "https://a,https://c,https://d,https://e,https://g" {
		t.Fatalf("unexpected pages %s", got)
	}
	if len(b.Failed) != 2 || !errors.Is(b.Failed["https://b"], ErrFetch) {
		t.Fatalf("unexpected failures %v", b.Failed)
	}
	for _, p := range b.Pages {
		if b.Failed[p.URL] != nil {
			t.Fatalf("failed url %s reported as a page", p.URL)
		}
	}
	if peak := ex.peak.Load(); peak > 3 {
		t.Fatalf("expected at most 3 workers, saw %d", peak)
	}
}

func TestExtractAllEverythingFails(t *testing.T) {
	urls := []string{"https://a", "https://b"}
	ex := &scriptedExtractor{fail: map[string]bool{"https://a": true, "https://b": true}}
	b := ExtractAll(context.Background(), ex, urls, 0)
	if len(b.Pages) != 0 || len(b.Failed) != 2 {
		t.Fatalf("unexpected batch %+v", b)
	}
}
