package brave

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

const defaultBaseURL = "https://api.search.brave.com/res/v1"

// Search queries the Brave Search API.
// https://api.search.brave.com/app/documentation/web-search
type Search struct {
	APIKey  string
	Client  models.Doer
	BaseURL string
}

type result struct {
	URL string `json:"url"`
}

func (s Search) FindURLs(ctx context.Context, q string, intent models.Intent) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, models.ErrEmptyQuery
	}
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	path := "/web/search"
	if intent == models.IntentNews {
		path = "/news/search"
	}
	params := url.Values{"q": {q}, "count": {strconv.Itoa(models.MaxURLs)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)
	resp, err := models.Client(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}
	defer resp.Body.Close()
	if err := models.CheckStatus("brave", resp); err != nil {
		return nil, err
	}

	var raw struct {
		Web struct {
			Results []result `json:"results"`
		} `json:"web"`
		Results []result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("brave decode: %w", err)
	}
	results := raw.Web.Results
	if intent == models.IntentNews {
		results = raw.Results
	}
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.URL)
	}
	return out, nil
}
