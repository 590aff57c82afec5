package scheduler_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/stretchr/testify/mock"
)

func mustParseURL(t *testing.T, raw string) url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return *u
}

func TestSubmitUrlForAdmission_AdmitsAndEnqueuesMarkdownFirst(t *testing.T) {
	robotMock := NewRobotsMockForTest(t)
	robotMock.OnDecide(mock.Anything, robots.Decision{Allowed: true}, nil)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)

	target := mustParseURL(t, "https://example.com/docs/intro")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com", ScopePathPrefix: "/"}

	if err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 0); err != nil {
		t.Fatalf("SubmitUrlForAdmission returned error: %v", err)
	}

	if got := s.KnownURLCount(); got != 1 {
		t.Fatalf("KnownURLCount = %d, want 1", got)
	}
	if got := s.PendingJobs(); got != 1 {
		t.Fatalf("PendingJobs = %d, want 1", got)
	}

	job, ok := s.DequeueMarkdownJob()
	if !ok {
		t.Fatal("expected a job on the markdown queue")
	}
	if job.URL.String() != target.String() {
		t.Errorf("job.URL = %s, want %s", job.URL.String(), target.String())
	}
	if job.Depth != 0 {
		t.Errorf("job.Depth = %d, want 0", job.Depth)
	}
	if !job.CanGoDeeper {
		t.Error("job.CanGoDeeper = false, want true at depth 0 of maxDepth 3")
	}
	if job.CrawlContext != crawlCtx {
		t.Errorf("job.CrawlContext = %+v, want %+v", job.CrawlContext, crawlCtx)
	}
}

func TestSubmitUrlForAdmission_DedupsAlreadyKnownURL(t *testing.T) {
	robotMock := NewRobotsMockForTest(t)
	robotMock.OnDecide(mock.Anything, robots.Decision{Allowed: true}, nil)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)

	target := mustParseURL(t, "https://example.com/docs/intro")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	if err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 0); err != nil {
		t.Fatalf("first submission returned error: %v", err)
	}
	if err := s.SubmitUrlForAdmission(target, crawlCtx, 1, 0); err != nil {
		t.Fatalf("second submission returned error: %v", err)
	}

	if got := s.KnownURLCount(); got != 1 {
		t.Fatalf("KnownURLCount = %d, want 1 (dedup should have short-circuited)", got)
	}
	if got := s.PendingJobs(); got != 1 {
		t.Fatalf("PendingJobs = %d, want 1", got)
	}
}

func TestSubmitUrlForAdmission_RejectsBeyondMaxDepth(t *testing.T) {
	s := createSchedulerForTest(t, context.Background())
	s.SetMaxDepth(2)

	target := mustParseURL(t, "https://example.com/docs/deep")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	if err := s.SubmitUrlForAdmission(target, crawlCtx, 3, 0); err != nil {
		t.Fatalf("SubmitUrlForAdmission returned error: %v", err)
	}

	if got := s.KnownURLCount(); got != 0 {
		t.Fatalf("KnownURLCount = %d, want 0 (beyond max depth should never reach dedup)", got)
	}
	if got := s.PendingJobs(); got != 0 {
		t.Fatalf("PendingJobs = %d, want 0", got)
	}
}

func TestSubmitUrlForAdmission_RejectsDisallowedByRobots(t *testing.T) {
	robotMock := NewRobotsMockForTest(t)
	robotMock.OnDecide(mock.Anything, robots.Decision{Allowed: false, Reason: robots.DisallowedByRobots}, nil)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)

	target := mustParseURL(t, "https://example.com/private")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	if err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 0); err != nil {
		t.Fatalf("SubmitUrlForAdmission returned error: %v", err)
	}

	if got := s.KnownURLCount(); got != 1 {
		t.Fatalf("KnownURLCount = %d, want 1 (disallowed URLs are still marked known)", got)
	}
	if got := s.PendingJobs(); got != 0 {
		t.Fatalf("PendingJobs = %d, want 0 (disallowed URLs must never be enqueued)", got)
	}
}

func TestSubmitUrlForAdmission_PropagatesRobotsError(t *testing.T) {
	robotMock := NewRobotsMockForTest(t)
	robotsErr := &robots.RobotsError{Message: "robots fetch failed", Retryable: true}
	robotMock.OnDecide(mock.Anything, robots.Decision{}, robotsErr)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)

	target := mustParseURL(t, "https://example.com/docs/intro")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 0)
	if err == nil {
		t.Fatal("expected a propagated robots error")
	}
	if got := s.KnownURLCount(); got != 0 {
		t.Fatalf("KnownURLCount = %d, want 0 (a robots error must not mark the URL known)", got)
	}
}

func TestSubmitUrlForAdmission_SkipsRobotsWhenDisabled(t *testing.T) {
	// No OnDecide expectation configured: if SubmitUrlForAdmission called
	// the mock anyway, testify would panic on the unmet call.
	robotMock := NewRobotsMockForTest(t)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)
	s.SetRobotsEnabled(false)

	target := mustParseURL(t, "https://example.com/docs/intro")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	if err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 0); err != nil {
		t.Fatalf("SubmitUrlForAdmission returned error: %v", err)
	}
	if got := s.PendingJobs(); got != 1 {
		t.Fatalf("PendingJobs = %d, want 1", got)
	}
}

func TestSubmitUrlForAdmission_CrawlDelayFromRobotsWinsOverBaseDelay(t *testing.T) {
	crawlDelay := 5 * time.Second
	robotMock := NewRobotsMockForTest(t)
	robotMock.OnDecide(mock.Anything, robots.Decision{Allowed: true, CrawlDelay: &crawlDelay}, nil)

	s := createSchedulerForTest(t, context.Background(), robotMock)
	s.SetMaxDepth(3)

	target := mustParseURL(t, "https://example.com/docs/intro")
	crawlCtx := frontier.CrawlContext{ScopeOrigin: "example.com"}

	before := time.Now()
	if err := s.SubmitUrlForAdmission(target, crawlCtx, 0, 100); err != nil {
		t.Fatalf("SubmitUrlForAdmission returned error: %v", err)
	}

	job, ok := s.DequeueMarkdownJob()
	if !ok {
		t.Fatal("expected a job on the markdown queue")
	}
	minWait := before.Add(crawlDelay).UnixMilli()
	if job.WaitUntilMs < minWait {
		t.Errorf("job.WaitUntilMs = %d, want at least %d (robots crawl-delay of %s should win over a 100ms base delay)", job.WaitUntilMs, minWait, crawlDelay)
	}
}
