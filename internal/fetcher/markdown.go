package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rohmanhakim/docs-crawler/pkg/failure"
)

// BuildMarkdownCandidateUrl derives the URL a markdown worker should try
// before falling back to HTML: most docs sites either serve the page
// itself as Markdown at a sibling ".md" path, or publish a site-wide
// "/llms.txt" index at the root. ok is false when the page's own path
// makes a Markdown candidate meaningless (stylesheets, scripts).
func BuildMarkdownCandidateUrl(u url.URL) (url.URL, bool) {
	u.Fragment = ""

	if strings.HasSuffix(u.Path, ".css") || strings.HasSuffix(u.Path, ".js") {
		return url.URL{}, false
	}

	switch {
	case u.Path == "" || u.Path == "/":
		u.Path = "/llms.txt"
	case strings.HasSuffix(u.Path, ".md") || strings.HasSuffix(u.Path, ".txt"):
		// already a candidate
	case strings.HasSuffix(u.Path, "/"):
		trimmed := strings.TrimSuffix(u.Path, "/")
		if trimmed == "" {
			u.Path = "/llms.txt"
		} else {
			u.Path = trimmed + ".md"
		}
	default:
		u.Path = u.Path + ".md"
	}

	return u, true
}

// MarkdownFetcher fetches the markdown-candidate URL for a page, treating
// its absence (404/410) as a plain unavailability signal rather than an
// error: most sites simply don't publish one, and the scheduler routes
// the job to a hybrid worker when that happens.
type MarkdownFetcher struct {
	httpClient *http.Client
}

func NewMarkdownFetcher() MarkdownFetcher {
	return MarkdownFetcher{httpClient: &http.Client{}}
}

func (f *MarkdownFetcher) Init(httpClient *http.Client) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	f.httpClient = httpClient
}

// FetchMarkdown requests candidateUrl with an Accept header favoring
// text/markdown. A 404, 410 or any other 4xx response except 403 is
// reported as (nil, false, nil): not an error, just "no markdown source
// here." A 403 response, or a request that cannot be built, returns a
// non-retryable FetchError; a transport failure or a 5xx response returns
// a retryable FetchError so the caller's retry policy applies.
func (f *MarkdownFetcher) FetchMarkdown(
	ctx context.Context,
	candidateUrl url.URL,
	userAgent string,
) ([]byte, bool, failure.ClassifiedError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidateUrl.String(), nil)
	if err != nil {
		return nil, false, &FetchError{
			Message:   "failed to create markdown request: " + err.Error(),
			Retryable: false,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/markdown,text/plain;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, false, &FetchError{
			Message:   "markdown request failed: " + err.Error(),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, false, nil
	}

	if resp.StatusCode == http.StatusForbidden {
		return nil, false, &FetchError{
			Message:   "markdown request forbidden",
			Retryable: false,
			Cause:     ErrCauseRequestPageForbidden,
		}
	}

	if resp.StatusCode >= 500 {
		return nil, false, &FetchError{
			Message:   "markdown source server error",
			Retryable: true,
			Cause:     ErrCauseRequest5xx,
		}
	}

	if resp.StatusCode >= 400 {
		return nil, false, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &FetchError{
			Message:   "failed to read markdown body: " + err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadResponseBodyError,
		}
	}

	return body, true, nil
}
