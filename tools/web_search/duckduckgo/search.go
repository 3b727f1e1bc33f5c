package duckduckgo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

const (
	defaultBaseURL   = "https://lite.duckduckgo.com/lite/"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Search scrapes the DuckDuckGo lite results page. It needs no API key but
// is rate limited, so requests are spaced by MinInterval. A 429 is returned
// as an error like any other status.
type Search struct {
	Client      models.Doer
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration

	mu   sync.Mutex
	last time.Time
}

func New(client models.Doer) *Search {
	return &Search{Client: client, MinInterval: time.Second}
}

// FindURLs ignores intent; DuckDuckGo lite has no news vertical.
func (s *Search) FindURLs(ctx context.Context, q string, _ models.Intent) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, models.ErrEmptyQuery
	}
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	ua := s.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	form := url.Values{"q": {q}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := models.Client(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	defer resp.Body.Close()
	if err := models.CheckStatus("duckduckgo", resp); err != nil {
		return nil, err
	}
	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo parse: %w", err)
	}
	return resultLinks(doc), nil
}

func (s *Search) wait(ctx context.Context) error {
	s.mu.Lock()
	next := s.last.Add(s.MinInterval)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	s.last = next
	s.mu.Unlock()

	d := time.Until(next)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func resultLinks(doc *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result-link") {
			if u := resolve(attr(n, "href")); u != "" {
				out = append(out, u)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

// resolve unwraps //duckduckgo.com/l/?uddg= redirects and drops ad links.
func resolve(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Host, "duckduckgo.com") {
		if u.Path == "/y.js" {
			return ""
		}
		if target := u.Query().Get("uddg"); target != "" {
			return target
		}
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}
