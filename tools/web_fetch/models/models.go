package models

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/intelliweb/internal/helpers"
	"github.com/mohammad-safakhou/intelliweb/models"
)

var (
	// ErrFetch wraps network failures and non-2xx responses.
	ErrFetch = errors.New("fetch failed")
	// ErrNoContent means the page had no readable text.
	ErrNoContent = errors.New("no readable content")
)

// Parse extracts the main text of rawHTML with readability and falls back to
// the document's visible text when readability finds nothing. The text is
// whitespace-collapsed and cut to maxChars runes when maxChars is positive.
func Parse(rawHTML, pageURL string, maxChars int) (models.Page, error) {
	page := models.Page{URL: pageURL}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}

	var text string
	if article, err := readability.FromReader(strings.NewReader(rawHTML), base); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		text = helpers.CollapseWhitespace(article.TextContent)
	}
	if text == "" {
		visible, err := helpers.VisibleText(strings.NewReader(rawHTML))
		if err == nil {
			text = helpers.CollapseWhitespace(visible)
		}
	}
	if text == "" {
		return page, ErrNoContent
	}
	if maxChars > 0 {
		if r := []rune(text); len(r) > maxChars {
			text = strings.TrimSpace(string(r[:maxChars]))
		}
	}
	page.Text = text
	return page, nil
}
