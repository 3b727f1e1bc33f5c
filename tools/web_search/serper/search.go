package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/intelliweb/tools/web_search/models"
)

const defaultBaseURL = "https://google.serper.dev"

// Search queries the Serper Google API. https://serper.dev/
type Search struct {
	APIKey  string
	Client  models.Doer
	BaseURL string
}

type response struct {
	AnswerBox *struct {
		Link string `json:"link"`
	} `json:"answerBox"`
	Organic []struct {
		Link string `json:"link"`
	} `json:"organic"`
	News []struct {
		Link string `json:"link"`
	} `json:"news"`
}

// FindURLs returns up to models.MaxURLs links. Web results put the answer
// box link, when present, ahead of the organic results.
func (s Search) FindURLs(ctx context.Context, q string, intent models.Intent) ([]string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, models.ErrEmptyQuery
	}
	endpoint := "/search"
	if intent == models.IntentNews {
		endpoint = "/news"
	}
	base := s.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	body, err := json.Marshal(map[string]any{"q": q, "num": models.MaxURLs})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", s.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := models.Client(s.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("serper: %w", err)
	}
	defer resp.Body.Close()
	if err := models.CheckStatus("serper", resp); err != nil {
		return nil, err
	}
	var raw response
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper decode: %w", err)
	}

	var out []string
	switch intent {
	case models.IntentNews:
		for _, n := range raw.News {
			out = append(out, n.Link)
		}
	default:
		if raw.AnswerBox != nil && raw.AnswerBox.Link != "" {
			out = append(out, raw.AnswerBox.Link)
		}
		for _, o := range raw.Organic {
			out = append(out, o.Link)
		}
	}
	return out, nil
}
