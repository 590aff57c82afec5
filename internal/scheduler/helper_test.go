package scheduler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
)

// createSchedulerForTest creates a scheduler with test-specific initialization
// that allows testing scheduler in isolation. It accepts mocks for any subset
// of the scheduler's pipeline dependencies in any order; a dependency left
// out (or passed as nil) falls back to a real implementation. This keeps the
// helper usable from every test file regardless of which stage it mocks.
func createSchedulerForTest(
	t *testing.T,
	ctx context.Context,
	args ...interface{},
) *scheduler.Scheduler {
	t.Helper()

	deps := scheduler.SchedulerDeps{
		Ctx: ctx,
	}

	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
			// a stage was intentionally left unmocked
		case *mockFinalizer:
			deps.CrawlFinalizer = v
		case metadata.MetadataSink:
			deps.MetadataSink = v
		case *robotsMock:
			deps.Robot = v
		case *fetcherMock:
			deps.Fetcher = v
		case extractor.Extractor:
			deps.Extractor = v
		case sanitizer.Sanitizer:
			deps.Sanitizer = v
		case mdconvert.ConvertRule:
			deps.ConvertRule = v
		case assets.Resolver:
			deps.Resolver = v
		case normalize.Constraint:
			deps.MarkdownConstraint = v
		case storage.Sink:
			deps.StorageSink = v
		case *sleeperMock:
			deps.Sleeper = v
		default:
			t.Fatalf("createSchedulerForTest: unrecognized dependency %T", v)
		}
	}

	if deps.MetadataSink == nil {
		deps.MetadataSink = &metadata.NoopSink{}
	}
	if deps.Robot == nil {
		deps.Robot = NewRobotsMockForTest(t)
	}
	if deps.Fetcher == nil {
		deps.Fetcher = newFetcherMockForTest(t)
	}
	if deps.CrawlFinalizer == nil {
		deps.CrawlFinalizer = newMockFinalizer(t)
	}

	s := scheduler.NewSchedulerWithDeps(deps)
	return &s
}

// setupTestServer creates a test HTTP server that serves robots.txt content
func setupTestServer(t *testing.T, robotsContent string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(robotsContent))
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// setupTestServerWithStatus creates a test HTTP server that returns a specific status code
func setupTestServerWithStatus(t *testing.T, statusCode int, robotsContent string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(statusCode)
			if robotsContent != "" {
				w.Write([]byte(robotsContent))
			}
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}
