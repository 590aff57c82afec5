package metadata

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

/*
Metadata Collected
- Fetch timestamps
- HTTP status codes
- Content hashes
- Crawl depth

Logging Goals
- Debuggable crawl behavior
- Post-run auditability
- Failure diagnostics

Structured logging is preferred.

Allowed:
- Primitive values
- Timestamps
- URLs (as values, not objects with behavior)
- Hashes
- Status codes
- Durations
- Identifiers (page ID, crawl ID)
*/

// MetadataSink is the single observability seam every pipeline package
// writes through. It is implemented once, by Recorder, and accepted as a
// narrow interface everywhere else so packages stay decoupled from the
// logging backend.
//
// Every method here is fire-and-forget and side-effect-free with respect
// to control flow: callers MUST NOT branch on what a MetadataSink call
// returns, because it returns nothing.
type MetadataSink interface {
	RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int)
	RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, message string, attrs []Attribute)
	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
	RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int)
}

// CrawlFinalizer records the terminal statistics of a completed crawl
// run, exactly once, after the scheduler has decided to terminate.
type CrawlFinalizer interface {
	RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration)
}

var _ MetadataSink = (*Recorder)(nil)
var _ CrawlFinalizer = (*Recorder)(nil)

// Recorder is the zerolog-backed MetadataSink implementation. It keeps
// atomic running totals so a terminal CrawlSummary can be produced without
// re-scanning anything it logged.
type Recorder struct {
	log       zerolog.Logger
	startedAt time.Time

	totalPages  int64
	totalErrors int64
	totalAssets int64
}

func NewRecorder(log zerolog.Logger) *Recorder {
	return &Recorder{
		log:       log.With().Str("component", "crawler").Logger(),
		startedAt: time.Now(),
	}
}

func (r *Recorder) RecordFetch(fetchUrl string, httpStatus int, duration time.Duration, contentType string, retryCount int, crawlDepth int) {
	atomic.AddInt64(&r.totalPages, 1)
	r.log.Info().
		Str(string(AttrURL), fetchUrl).
		Int(string(AttrHTTPStatus), httpStatus).
		Dur("duration", duration).
		Str("content_type", contentType).
		Int("retry_count", retryCount).
		Int(string(AttrDepth), crawlDepth).
		Msg("fetch")
}

func (r *Recorder) RecordError(observedAt time.Time, packageName string, action string, cause ErrorCause, message string, attrs []Attribute) {
	atomic.AddInt64(&r.totalErrors, 1)
	evt := r.log.Warn().
		Time(string(AttrTime), observedAt).
		Str("package", packageName).
		Str("action", action).
		Int("cause", int(cause)).
		Str(string(AttrMessage), message)
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	evt.Msg("error")
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	if kind == ArtifactAsset {
		atomic.AddInt64(&r.totalAssets, 1)
	}
	evt := r.log.Info().
		Str("kind", string(kind)).
		Str(string(AttrPath), path)
	for _, a := range attrs {
		evt = evt.Str(string(a.Key), a.Value)
	}
	evt.Msg("artifact")
}

func (r *Recorder) RecordAssetFetch(fetchUrl string, httpStatus int, duration time.Duration, retryCount int) {
	r.log.Info().
		Str(string(AttrAssetURL), fetchUrl).
		Int(string(AttrHTTPStatus), httpStatus).
		Dur("duration", duration).
		Int("retry_count", retryCount).
		Msg("asset_fetch")
}

// RecordFinalCrawlStats logs the terminal summary of a crawl run. It
// does not read back totalPages/totalErrors/totalAssets from the
// Recorder's own counters: the scheduler is the sole authority on what
// counts as a page, error, or asset, so it passes its own tallies.
func (r *Recorder) RecordFinalCrawlStats(totalPages int, totalErrors int, totalAssets int, duration time.Duration) {
	r.log.Info().
		Int("total_pages", totalPages).
		Int("total_errors", totalErrors).
		Int("total_assets", totalAssets).
		Dur("duration", duration).
		Msg("crawl_finished")
}

// Summary computes the terminal crawl summary exactly once, from the
// running totals accumulated over the crawl's lifetime. It never reads
// back anything that could feed scheduling or retry decisions.
func (r *Recorder) Summary() CrawlSummary {
	return CrawlSummary{
		TotalPages:  atomic.LoadInt64(&r.totalPages),
		TotalErrors: atomic.LoadInt64(&r.totalErrors),
		TotalAssets: atomic.LoadInt64(&r.totalAssets),
		DurationMs:  time.Since(r.startedAt).Milliseconds(),
	}
}
