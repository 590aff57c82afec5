package frontier

import (
	"sync"

	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/urlmap"
)

/*
Frontier Responsibilities
- Maintain BFS ordering
- Deduplicate URLs
- Track crawl depth
- Prevent infinite traversal
- Knows nothing about:
	- fetching
	- extraction
	- markdown
	- storage

It is a data structure + policy module, not a pipeline executor.
*/

// Frontier is the narrow interface the scheduler depends on. It is
// implemented by CrawlFrontier and satisfied by test doubles.
type Frontier interface {
	Init(cfg config.Config)
	Submit(candidate CrawlAdmissionCandidate)
	Enqueue(token CrawlToken)
	Dequeue() (CrawlToken, bool)
	IsDepthExhausted(depth int) bool
	CurrentMinDepth() int
	VisitedCount() int
}

var _ Frontier = (*CrawlFrontier)(nil)

// CrawlFrontier is the scheduler-owned admission layer: it enforces BFS
// ordering, depth/page caps, and exact URL dedup before a URL becomes a
// dispatchable CrawlToken. It holds no opinion on markdown-vs-hybrid
// worker kind; that split happens downstream in the job queue.
type CrawlFrontier struct {
	mu sync.Mutex

	cfg config.Config

	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	visited       Set[string]

	admittedCount int
}

func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited:       NewSet[string](),
	}
}

func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Submit admits a candidate into the frontier. Candidates beyond
// MaxDepth or in excess of MaxPages are silently dropped; duplicates
// (by canonicalized URL) are silently dropped. Both limits are
// unenforced when zero.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()
	if maxDepth := f.cfg.MaxDepth(); maxDepth > 0 && depth > maxDepth {
		return
	}

	targetURL := candidate.TargetURL()
	key := urlmap.NormalizeForQueue(targetURL)
	if f.visited.Contains(key) {
		return
	}

	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.admittedCount >= maxPages {
		return
	}

	f.visited.Add(key)
	f.admittedCount++

	queue, ok := f.queuesByDepth[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(targetURL, depth))
}

// Enqueue pushes a token directly into its depth's queue, bypassing the
// admission checks Submit performs. It exists for callers that already
// hold an admitted CrawlToken (e.g. re-dispatching after a retryable
// failure) and must not re-run depth/page/dedup accounting.
func (f *CrawlFrontier) Enqueue(token CrawlToken) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := token.Depth()
	queue, ok := f.queuesByDepth[depth]
	if !ok {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(token)
}

// Dequeue returns the next token in strict BFS order: every token at
// depth d is exhausted before any token at depth d+1 is returned.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := f.minPendingDepthLocked()
	if depth == -1 {
		var zero CrawlToken
		return zero, false
	}

	queue := f.queuesByDepth[depth]
	return queue.Dequeue()
}

// IsDepthExhausted reports whether depth has no pending tokens. Depths
// that were never populated, already drained, or negative are
// considered exhausted.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if depth < 0 {
		return true
	}
	queue, ok := f.queuesByDepth[depth]
	if !ok {
		return true
	}
	return queue.Size() == 0
}

// CurrentMinDepth returns the smallest depth with a pending token, or
// -1 if the frontier is empty.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.minPendingDepthLocked()
}

func (f *CrawlFrontier) minPendingDepthLocked() int {
	min := -1
	for depth, queue := range f.queuesByDepth {
		if queue.Size() == 0 {
			continue
		}
		if min == -1 || depth < min {
			min = depth
		}
	}
	return min
}

// VisitedCount returns the number of unique, canonicalized URLs ever
// admitted into the frontier. It is append-only: it never decreases,
// even after every token has been dequeued.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited.Size()
}
