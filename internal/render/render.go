// Package render provides the headless-browser escalation path for
// pages whose raw HTTP response didn't carry enough body content to be
// worth converting: a single lazily-started Chromium instance, shared
// across the whole crawl, renders the page's client-side JavaScript and
// hands back the resulting DOM as HTML for the pipeline to retry.
package render

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// Renderer is the narrow interface the scheduler depends on.
type Renderer interface {
	Render(ctx context.Context, pageURL string, timeout time.Duration, userAgent string) (string, failure.ClassifiedError)
	Close()
}

var _ Renderer = (*HeadlessRenderer)(nil)

// HeadlessRenderer wraps a single lazily-started headless Chromium
// instance shared by every render call for the life of the crawl.
type HeadlessRenderer struct {
	once    sync.Once
	mu      sync.Mutex
	browser *rod.Browser
	initErr error
}

func NewHeadlessRenderer() *HeadlessRenderer {
	return &HeadlessRenderer{}
}

func (r *HeadlessRenderer) ensureBrowser() error {
	r.once.Do(func() {
		browser := rod.New()
		if err := browser.Connect(); err != nil {
			r.initErr = err
			return
		}
		r.browser = browser
	})
	return r.initErr
}

// Render navigates to pageURL, waits for the page to finish loading
// (bounded by timeout), and returns the rendered DOM serialized as
// HTML.
func (r *HeadlessRenderer) Render(
	ctx context.Context,
	pageURL string,
	timeout time.Duration,
	userAgent string,
) (string, failure.ClassifiedError) {
	if err := r.ensureBrowser(); err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseBrowserUnavailable}
	}

	renderCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	r.mu.Lock()
	page, err := r.browser.Page(proto.TargetCreateTarget{})
	r.mu.Unlock()
	if err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseBrowserUnavailable}
	}
	defer page.Close()

	page = page.Context(renderCtx)

	if userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); err != nil {
			return "", &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailed}
		}
	}

	if err := page.Navigate(pageURL); err != nil {
		return "", classifyRenderErr(renderCtx, err)
	}

	if err := page.WaitLoad(); err != nil {
		return "", classifyRenderErr(renderCtx, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailed}
	}

	return html, nil
}

func classifyRenderErr(ctx context.Context, err error) *RenderError {
	if ctx.Err() != nil {
		return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseTimeout}
	}
	return &RenderError{Message: err.Error(), Retryable: true, Cause: ErrCauseNavigationFailed}
}

// Close shuts down the shared browser instance. Safe to call once the
// crawl has finished; a Renderer that was never used closes cleanly.
func (r *HeadlessRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		_ = r.browser.Close()
	}
}
