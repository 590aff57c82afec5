package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"golang.org/x/sync/errgroup"
)

// defaultInactivity is WORKER_INACTIVITY_MS: how long an idle worker
// waits for an assignment before exiting on its own.
const defaultInactivity = 30 * time.Second

// ProcessFunc runs one job end to end (fetch, parse, write) and reports
// how it went. Workers stay ignorant of pipeline internals; the
// scheduler supplies this closure at pool construction time.
type ProcessFunc func(ctx context.Context, kind Kind, job frontier.Job) Outcome

// Pool owns every live cooperative worker and the channels they use to
// talk to the scheduler. A Pool never decides what runs next; it only
// executes assignments the scheduler hands it via Assign.
type Pool struct {
	group      *errgroup.Group
	groupCtx   context.Context
	process    ProcessFunc
	inactivity time.Duration

	ready    chan ReadyEvent
	outcomes chan Outcome
	stopped  chan StoppedEvent

	nextID int64

	mu          sync.Mutex
	assignChans map[string]chan frontier.Job
	stopChans   map[string]chan struct{}
	counts      map[Kind]int
}

// NewPool builds a Pool whose workers run process and exit after
// inactivity of idle time (defaulting to 30s when non-positive).
func NewPool(ctx context.Context, process ProcessFunc, inactivity time.Duration) *Pool {
	if inactivity <= 0 {
		inactivity = defaultInactivity
	}
	group, groupCtx := errgroup.WithContext(ctx)
	return &Pool{
		group:       group,
		groupCtx:    groupCtx,
		process:     process,
		inactivity:  inactivity,
		ready:       make(chan ReadyEvent, 64),
		outcomes:    make(chan Outcome, 64),
		stopped:     make(chan StoppedEvent, 64),
		assignChans: make(map[string]chan frontier.Job),
		stopChans:   make(map[string]chan struct{}),
		counts:      make(map[Kind]int),
	}
}

func (p *Pool) Ready() <-chan ReadyEvent     { return p.ready }
func (p *Pool) Outcomes() <-chan Outcome     { return p.outcomes }
func (p *Pool) Stopped() <-chan StoppedEvent { return p.stopped }

// Count reports the number of live (not yet stopped) workers of kind.
func (p *Pool) Count(kind Kind) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[kind]
}

// Spawn starts a new worker of kind and returns its assigned ID.
func (p *Pool) Spawn(kind Kind) string {
	id := fmt.Sprintf("%s-%d", kind, atomic.AddInt64(&p.nextID, 1))
	assign := make(chan frontier.Job, 1)
	stop := make(chan struct{})

	p.mu.Lock()
	p.assignChans[id] = assign
	p.stopChans[id] = stop
	p.counts[kind]++
	p.mu.Unlock()

	p.group.Go(func() error {
		p.run(id, kind, assign, stop)
		return nil
	})
	return id
}

// Stop requests the given worker to exit at its next idle point.
func (p *Pool) Stop(id string) {
	p.mu.Lock()
	stop, ok := p.stopChans[id]
	p.mu.Unlock()
	if ok {
		close(stop)
	}
}

// Assign hands a job to the worker identified by id. The caller must
// only assign to a worker that has just reported a ReadyEvent.
func (p *Pool) Assign(id string, job frontier.Job) {
	p.mu.Lock()
	assign, ok := p.assignChans[id]
	p.mu.Unlock()
	if ok {
		assign <- job
	}
}

// Wait blocks until every worker goroutine has returned.
func (p *Pool) Wait() error {
	return p.group.Wait()
}

// run is a single worker's state machine:
// init -> ready -> requestTarget -> assign -> wait -> fetch/parse/write
// -> completed/failed -> requestTarget, until stopped or idle too long.
func (p *Pool) run(id string, kind Kind, assign <-chan frontier.Job, stop <-chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.counts[kind]--
		p.mu.Unlock()
	}()

	reason := "stopped"
	for {
		select {
		case <-p.groupCtx.Done():
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "context done"}
			return
		case <-stop:
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "stopped"}
			return
		default:
		}

		select {
		case <-p.groupCtx.Done():
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "context done"}
			return
		case <-stop:
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "stopped"}
			return
		case p.ready <- ReadyEvent{WorkerID: id, Kind: kind}:
		}

		select {
		case <-p.groupCtx.Done():
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "context done"}
			return
		case <-stop:
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: "stopped"}
			return
		case job := <-assign:
			if wait := time.Until(msToTime(job.WaitUntilMs)); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-p.groupCtx.Done():
					timer.Stop()
					return
				}
			}
			started := time.Now()
			outcome := p.process(p.groupCtx, kind, job)
			outcome.Duration = time.Since(started).Milliseconds()
			select {
			case p.outcomes <- outcome:
			case <-p.groupCtx.Done():
				return
			}
		case <-time.After(p.inactivity):
			reason = "idle"
			p.stopped <- StoppedEvent{WorkerID: id, Kind: kind, Reason: reason}
			return
		}
	}
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
