package httpfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mohammad-safakhou/intelliweb/models"
	fetchmodels "github.com/mohammad-safakhou/intelliweb/tools/web_fetch/models"
)

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

// Fetch downloads pages with net/http.
type Fetch struct {
	Client    *http.Client
	UserAgent string
	Timeout   time.Duration // zero means no per-page bound
	MaxChars  int
}

func (f Fetch) Extract(ctx context.Context, url string) (models.Page, error) {
	if strings.TrimSpace(url) == "" {
		return models.Page{URL: url}, fmt.Errorf("%w: empty url", fetchmodels.ErrFetch)
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("%w: %v", fetchmodels.ErrFetch, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("%w: %v", fetchmodels.ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return models.Page{URL: url}, fmt.Errorf("%w: %s returned %d", fetchmodels.ErrFetch, url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("%w: read body: %v", fetchmodels.ErrFetch, err)
	}
	return fetchmodels.Parse(string(body), url, f.MaxChars)
}
