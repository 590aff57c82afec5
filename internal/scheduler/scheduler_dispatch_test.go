package scheduler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/stretchr/testify/mock"
)

// writeCrawlConfig writes a minimal JSON config pointing at server as the
// sole seed and allowed host, with robots and rendering both disabled so
// the test doesn't need to stand up either dependency.
func writeCrawlConfig(t *testing.T, server *httptest.Server) string {
	t.Helper()
	host := mustParseURL(t, server.URL).Host

	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := fmt.Sprintf(`{
		"seedUrls": [{"Scheme": "http", "Host": %q, "Path": "/"}],
		"allowedHosts": {%q: {}},
		"maxDepth": 1,
		"maxPages": 1,
		"concurrency": 1,
		"timeout": 5000000000,
		"robots": false,
		"render": false
	}`, host, host)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newDispatchTestServer serves a 404 for every markdown candidate path so
// every seed job escalates straight to the hybrid queue.
func newDispatchTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestExecuteCrawling_MarkdownUnavailableEscalatesToHybridAndCompletes(t *testing.T) {
	server := newDispatchTestServer(t)
	defer server.Close()

	configPath := writeCrawlConfig(t, server)

	richBody := []byte(`<!DOCTYPE html>
<html><head><title>Guide</title></head>
<body><main>
<h1>Complete Guide to Widget Configuration</h1>
<p>This page walks through every widget configuration option in detail,
covering defaults, overrides, and the interactions between them so that
an operator can reason about the resulting behavior without guessing.</p>
<p>Each section below documents one option together with its effect on
downstream scheduling, a worked example, and the edge cases you are
most likely to run into when combining it with the other options.</p>
</main></body></html>`)
	fetcherMock := &fetcherMock{}
	setupFetcherMockWithSuccess(fetcherMock, server.URL, richBody, http.StatusOK)
	sanitizerMock := newSanitizerMockForTest(t)
	setupSanitizerMockWithSuccess(sanitizerMock, nil)
	convertMock := newConvertMockForTest(t)
	setupConvertMockWithSuccess(convertMock)
	resolverMock := newResolverMockForTest(t)
	setupResolverMockWithCustomResult(resolverMock, createAssetfulMarkdownDocForTest("content", []string{"asset1.png"}))
	normalizeMock := newNormalizeMockForTest(t)
	setupNormalizeMockWithSuccess(normalizeMock)
	storageMock := newStorageMockForTest(t)
	finalizer := newMockFinalizer(t)

	deps := scheduler.SchedulerDeps{
		Ctx:                context.Background(),
		MetadataSink:       &metadata.NoopSink{},
		CrawlFinalizer:     finalizer,
		Robot:              NewRobotsMockForTest(t),
		Fetcher:            fetcherMock,
		Sanitizer:          sanitizerMock,
		ConvertRule:        convertMock,
		Resolver:           resolverMock,
		MarkdownConstraint: normalizeMock,
		StorageSink:        storageMock,
	}
	s := scheduler.NewSchedulerWithDeps(deps)

	execution, err := s.ExecuteCrawling(configPath)
	if err != nil {
		t.Fatalf("ExecuteCrawling returned error: %v", err)
	}

	if len(execution.WriteResults) != 1 {
		t.Fatalf("len(WriteResults) = %d, want 1", len(execution.WriteResults))
	}

	if finalizer.recordedStats == nil {
		t.Fatal("expected RecordFinalCrawlStats to have been called")
	}
	if finalizer.recordedStats.totalPages != 1 {
		t.Errorf("totalPages = %d, want 1", finalizer.recordedStats.totalPages)
	}
	if finalizer.recordedStats.totalErrors != 0 {
		t.Errorf("totalErrors = %d, want 0", finalizer.recordedStats.totalErrors)
	}
	if finalizer.recordedStats.totalAssets != 1 {
		t.Errorf("totalAssets = %d, want 1 (from the hybrid job's one local asset)", finalizer.recordedStats.totalAssets)
	}
}

func TestExecuteCrawling_HtmlInsufficientContentDoesNotWriteAndIsCountedAsError(t *testing.T) {
	server := newDispatchTestServer(t)
	defer server.Close()

	configPath := writeCrawlConfig(t, server)

	thinBody := []byte(`<html><body><p>x</p></body></html>`)
	fetcherMock := &fetcherMock{}
	setupFetcherMockWithSuccess(fetcherMock, server.URL, thinBody, http.StatusOK)

	storageMock := newStorageMockForTest(t)
	finalizer := newMockFinalizer(t)

	deps := scheduler.SchedulerDeps{
		Ctx:            context.Background(),
		MetadataSink:   &metadata.NoopSink{},
		CrawlFinalizer: finalizer,
		Robot:          NewRobotsMockForTest(t),
		Fetcher:        fetcherMock,
		StorageSink:    storageMock,
	}
	s := scheduler.NewSchedulerWithDeps(deps)

	execution, err := s.ExecuteCrawling(configPath)
	if err != nil {
		t.Fatalf("ExecuteCrawling returned error: %v", err)
	}

	if len(execution.WriteResults) != 0 {
		t.Fatalf("len(WriteResults) = %d, want 0 (insufficient content must never be written)", len(execution.WriteResults))
	}
	if finalizer.recordedStats == nil {
		t.Fatal("expected RecordFinalCrawlStats to have been called")
	}
	if finalizer.recordedStats.totalErrors != 1 {
		t.Errorf("totalErrors = %d, want 1", finalizer.recordedStats.totalErrors)
	}
	if finalizer.recordedStats.totalPages != 0 {
		t.Errorf("totalPages = %d, want 0", finalizer.recordedStats.totalPages)
	}

	storageMock.AssertNotCalled(t, "Write", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
