package models

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Intent is what the user wants to search for.
type Intent string

const (
	IntentWeb  Intent = "web"
	IntentNews Intent = "news"
)

// MaxURLs caps the results of every backend.
const MaxURLs = 7

// ErrEmptyQuery is returned for blank search strings.
var ErrEmptyQuery = errors.New("empty search query")

// Doer is the subset of *http.Client the backends use.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client returns d, or http.DefaultClient when d is nil.
func Client(d Doer) Doer {
	if d == nil {
		return http.DefaultClient
	}
	return d
}

// CheckStatus turns a non-2xx response into an error carrying a truncated
// body. The body is consumed in that case.
func CheckStatus(backend string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s %d: %s", backend, resp.StatusCode, truncate(strings.TrimSpace(string(b)), 300))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
