package googlenews

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

const defaultBaseURL = "https://news.google.com/rss/search"

// Search reads the Google News RSS feed for a query. Items are returned
// newest first; undated items sort last.
type Search struct {
	Client   models.Doer
	BaseURL  string
	Language string // hl, default en-US
	Country  string // gl, default US
}

type feed struct {
	Channel struct {
		Items []item `xml:"item"`
	} `xml:"channel"`
}

type item struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

func (s Search) FindURLs(ctx context.Context, q string, _ models.Intent) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, models.ErrEmptyQuery
	}
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	hl, gl := s.Language, s.Country
	if hl == "" {
		hl = "en-US"
	}
	if gl == "" {
		gl = "US"
	}
	lang := strings.SplitN(hl, "-", 2)[0]
	params := url.Values{"q": {q}, "hl": {hl}, "gl": {gl}, "ceid": {gl + ":" + lang}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := models.Client(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlenews: %w", err)
	}
	defer resp.Body.Close()
	if err := models.CheckStatus("googlenews", resp); err != nil {
		return nil, err
	}
	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("googlenews decode: %w", err)
	}
	return newestFirst(f.Channel.Items), nil
}

func newestFirst(items []item) []string {
	type dated struct {
		link string
		at   time.Time
	}
	rows := make([]dated, 0, len(items))
	for _, it := range items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		var at time.Time
		if p := strings.TrimSpace(it.PubDate); p != "" {
			if t, err := dateparse.ParseAny(p); err == nil {
				at = t
			}
		}
		rows = append(rows, dated{link: link, at: at})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].at, rows[j].at
		if a.IsZero() != b.IsZero() {
			return b.IsZero()
		}
		return a.After(b)
	})
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.link)
	}
	return out
}
