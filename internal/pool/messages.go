// Package pool manages the cooperative worker goroutines that fetch,
// parse, and write individual crawl jobs. Workers never decide what to
// fetch next; they only run the ready -> assign -> wait -> fetch ->
// parse -> write -> completed/failed cycle and report back through
// typed messages. The scheduler is the sole authority deciding which
// job to hand to which worker.
package pool

import (
	"net/url"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
)

// Kind distinguishes the two cooperative worker roles: a markdown-source
// worker that fetches a page's llms.txt-style Markdown companion, and a
// hybrid worker that fetches and converts the raw HTML page.
type Kind int

const (
	KindMarkdown Kind = iota
	KindHybrid
)

func (k Kind) String() string {
	if k == KindMarkdown {
		return "markdown"
	}
	return "hybrid"
}

// OutcomeStatus discriminates the ways a worker's attempt at a job can
// end. Exactly one status applies per Outcome.
type OutcomeStatus int

const (
	StatusCompleted OutcomeStatus = iota
	StatusFailed
	StatusMarkdownUnavailable
	StatusHtmlInsufficient
)

// Outcome is what a worker reports back to the scheduler once it has
// finished (or given up on) an assigned job.
type Outcome struct {
	WorkerID        string
	Kind            Kind
	Job             frontier.Job
	Status          OutcomeStatus
	DiscoveredLinks []url.URL
	Duration        int64 // milliseconds spent on fetch+parse+write
	AssetCount      int   // local assets written as a side effect of this job
	Err             error
}

// ReadyEvent is emitted every time a worker becomes idle and wants a
// new job assigned to it.
type ReadyEvent struct {
	WorkerID string
	Kind     Kind
}

// StoppedEvent is emitted once when a worker's run loop exits, either
// because the scheduler asked it to stop or because it sat idle past
// its inactivity budget.
type StoppedEvent struct {
	WorkerID string
	Kind     Kind
	Reason   string
}
