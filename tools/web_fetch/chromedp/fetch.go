package chromedp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/mohammad-safakhou/intelliweb/models"
	fetchmodels "github.com/mohammad-safakhou/intelliweb/tools/web_fetch/models"
)

// Fetch renders pages in headless Chrome before extraction, for sites that
// build their content with JavaScript.
type Fetch struct {
	Timeout   time.Duration // zero means no per-page bound
	MaxChars  int
	UserAgent string
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

	html, err := f.render(ctx, url)
	if err != nil {
		return models.Page{URL: url}, fmt.Errorf("%w: render %s: %v", fetchmodels.ErrFetch, url, err)
	}
	return fetchmodels.Parse(html, url, f.MaxChars)
}

func (f Fetch) render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
	)
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}
