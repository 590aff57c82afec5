package frontier

import (
	"net/url"
	"sync"
)

// CrawlContext pins a job to the scope it was seeded under: the origin
// it must stay on and the path prefix it must stay under. Every link
// discovered from a job carries its parent's crawl context forward.
type CrawlContext struct {
	ScopeOrigin     string
	ScopePathPrefix string
}

// JobOutcome is the terminal disposition of a dispatched Job.
type JobOutcome int

const (
	JobPending JobOutcome = iota
	JobInFlight
	JobCompleted
	JobFailed
)

// Job is a single unit of dispatchable crawl work. It is exclusively
// owned by the scheduler while queued, and by exactly one worker while
// in-flight; it is destroyed on reaching a terminal outcome.
type Job struct {
	JobID        string
	URL          url.URL
	Depth        int
	CanGoDeeper  bool
	CrawlContext CrawlContext
	WaitUntilMs  int64
}

// JobQueues is the scheduler's two-tier dispatch structure: a
// markdown-source queue tried first, and a hybrid-HTML fallback queue
// populated by markdown-unavailable escalations. Both are plain FIFO;
// only the scheduler mutates them.
type JobQueues struct {
	mu            sync.Mutex
	markdownQueue *FIFOQueue[Job]
	hybridQueue   *FIFOQueue[Job]
}

func NewJobQueues() *JobQueues {
	return &JobQueues{
		markdownQueue: NewFIFOQueue[Job](),
		hybridQueue:   NewFIFOQueue[Job](),
	}
}

// EnqueueMarkdown pushes a freshly-admitted job onto the markdown-first
// queue, the entry point for every new URL.
func (q *JobQueues) EnqueueMarkdown(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.markdownQueue.Enqueue(job)
}

// EnqueueHybrid pushes a job escalated after a markdown-unavailable or
// an insufficient-content outcome onto the hybrid fallback queue.
func (q *JobQueues) EnqueueHybrid(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.hybridQueue.Enqueue(job)
}

// DequeueMarkdown pops the next markdown-source job, if any.
func (q *JobQueues) DequeueMarkdown() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.markdownQueue.Dequeue()
}

// DequeueHybrid pops the next hybrid-HTML job, if any.
func (q *JobQueues) DequeueHybrid() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hybridQueue.Dequeue()
}

// Dequeue prefers a markdown-source job, falling back to hybrid only
// when the markdown queue has been drained, mirroring the scheduler's
// markdown-first dispatch preference.
func (q *JobQueues) Dequeue() (Job, bool) {
	if job, ok := q.DequeueMarkdown(); ok {
		return job, true
	}
	return q.DequeueHybrid()
}

// Len reports the combined number of pending jobs across both queues.
func (q *JobQueues) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.markdownQueue.Size() + q.hybridQueue.Size()
}

func (q *JobQueues) MarkdownLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.markdownQueue.Size()
}

func (q *JobQueues) HybridLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hybridQueue.Size()
}
