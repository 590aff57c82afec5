// Package autoscale retargets the size of the markdown and hybrid
// worker pools each tick using an exponentially-weighted moving
// average of recent job service times, so the crawl keeps just enough
// workers busy to drain the frontier without overshooting the site.
package autoscale

import (
	"math"
	"sync"
	"time"
)

const (
	// EWMAAlpha weights the newest sample against the running average:
	// x <- alpha*sample + (1-alpha)*x.
	EWMAAlpha = 0.3

	MinWorkersPerKind      = 1
	MinTotalWorkers        = 2
	AutoscaleTargetDrainMs = 2000.0
	MaxSpawnPerTick        = 5
	MaxStopPerTick         = 5

	defaultMarkdownActiveMs        = 200.0
	defaultHybridActiveMs          = 600.0
	defaultMarkdownUnavailableRate = 0.25
)

// Kind mirrors pool.Kind's int values (0 = markdown, 1 = hybrid). It is
// redeclared here rather than imported to keep autoscale independent
// of the worker pool's goroutine machinery; callers convert at the
// boundary.
type Kind int

const (
	KindMarkdown Kind = iota
	KindHybrid
)

// Counts is a snapshot of queue and worker state the scheduler hands
// the autoscaler once per tick.
type Counts struct {
	PendingMarkdown  int
	InFlightMarkdown int
	IdleMarkdown     int
	PendingHybrid    int
	InFlightHybrid   int
	IdleHybrid       int
}

// Action is one spawn or stop decision for a single worker kind.
type Action struct {
	Kind  Kind
	Spawn int
	Stop  int
}

// Autoscaler holds the running EWMA estimates used to translate queue
// depth into a desired worker count.
type Autoscaler struct {
	mu                      sync.Mutex
	markdownActiveMs        float64
	hybridActiveMs          float64
	markdownUnavailableRate float64
	maxTotalWorkers         int
}

// NewAutoscaler creates an Autoscaler seeded with conservative initial
// EWMA defaults, capped at maxTotalWorkers.
func NewAutoscaler(maxTotalWorkers int) *Autoscaler {
	if maxTotalWorkers < MinTotalWorkers {
		maxTotalWorkers = MinTotalWorkers
	}
	return &Autoscaler{
		markdownActiveMs:        defaultMarkdownActiveMs,
		hybridActiveMs:          defaultHybridActiveMs,
		markdownUnavailableRate: defaultMarkdownUnavailableRate,
		maxTotalWorkers:         maxTotalWorkers,
	}
}

// ObserveMarkdownDuration folds a completed markdown-worker job's
// service time into the markdownActiveMs estimate.
func (a *Autoscaler) ObserveMarkdownDuration(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.markdownActiveMs = ewma(a.markdownActiveMs, float64(d.Milliseconds()))
}

// ObserveHybridDuration folds a completed hybrid-worker job's service
// time into the hybridActiveMs estimate.
func (a *Autoscaler) ObserveHybridDuration(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hybridActiveMs = ewma(a.hybridActiveMs, float64(d.Milliseconds()))
}

// ObserveMarkdownUnavailable folds a 0/1 sample into the estimate of
// how often a markdown-source fetch turns out to be unavailable.
func (a *Autoscaler) ObserveMarkdownUnavailable(unavailable bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sample := 0.0
	if unavailable {
		sample = 1.0
	}
	a.markdownUnavailableRate = ewma(a.markdownUnavailableRate, sample)
}

func ewma(current, sample float64) float64 {
	return EWMAAlpha*sample + (1-EWMAAlpha)*current
}

// Tick computes the desired worker split from the live Counts snapshot
// and returns the budget-capped spawn/stop actions for this cycle:
// first rebalance idle workers one-for-one between kinds, then scale
// up the kind with the larger remaining deficit, then scale down idle
// over-provisioned workers.
func (a *Autoscaler) Tick(counts Counts) []Action {
	a.mu.Lock()
	markdownActiveMs := a.markdownActiveMs
	hybridActiveMs := a.hybridActiveMs
	markdownUnavailableRate := a.markdownUnavailableRate
	maxTotal := a.maxTotalWorkers
	a.mu.Unlock()

	markdownDemand := float64(counts.PendingMarkdown + counts.InFlightMarkdown)
	hybridDemand := float64(counts.PendingHybrid+counts.InFlightHybrid) +
		markdownDemand*markdownUnavailableRate

	markdownWorkMs := markdownDemand * markdownActiveMs
	hybridWorkMs := hybridDemand * hybridActiveMs
	totalWorkMs := markdownWorkMs + hybridWorkMs

	var desiredTotal int
	if totalWorkMs <= 0 {
		desiredTotal = MinTotalWorkers
	} else {
		desiredTotal = int(math.Ceil(totalWorkMs / AutoscaleTargetDrainMs))
		if desiredTotal < MinTotalWorkers {
			desiredTotal = MinTotalWorkers
		}
		if desiredTotal > maxTotal {
			desiredTotal = maxTotal
		}
	}

	desiredMarkdown, desiredHybrid := splitProportional(desiredTotal, markdownWorkMs, hybridWorkMs)
	return computeActions(counts, desiredMarkdown, desiredHybrid)
}

func splitProportional(total int, markdownWorkMs, hybridWorkMs float64) (markdown int, hybrid int) {
	if total <= MinWorkersPerKind*2 {
		markdown = MinWorkersPerKind
		hybrid = total - MinWorkersPerKind
		if hybrid < MinWorkersPerKind {
			hybrid = MinWorkersPerKind
		}
		return markdown, hybrid
	}

	sum := markdownWorkMs + hybridWorkMs
	if sum <= 0 {
		markdown = total / 2
	} else {
		markdown = int(math.Round(float64(total) * markdownWorkMs / sum))
	}
	hybrid = total - markdown

	if markdown < MinWorkersPerKind {
		markdown = MinWorkersPerKind
		hybrid = total - markdown
	}
	if hybrid < MinWorkersPerKind {
		hybrid = MinWorkersPerKind
		markdown = total - hybrid
	}
	return markdown, hybrid
}

func computeActions(counts Counts, desiredMarkdown, desiredHybrid int) []Action {
	aliveMarkdown := counts.InFlightMarkdown + counts.IdleMarkdown
	aliveHybrid := counts.InFlightHybrid + counts.IdleHybrid

	deltaMarkdown := desiredMarkdown - aliveMarkdown
	deltaHybrid := desiredHybrid - aliveHybrid

	actions := make([]Action, 0, 3)

	// 1. Rebalance: one kind is short, the other has idle slack to give
	// up, one for one, ahead of touching the spawn/stop budgets.
	if deltaMarkdown > 0 && deltaHybrid < 0 {
		rebalance := minInt(deltaMarkdown, -deltaHybrid, counts.IdleHybrid)
		if rebalance > 0 {
			actions = append(actions,
				Action{Kind: KindHybrid, Stop: rebalance},
				Action{Kind: KindMarkdown, Spawn: rebalance},
			)
			deltaMarkdown -= rebalance
			deltaHybrid += rebalance
		}
	} else if deltaHybrid > 0 && deltaMarkdown < 0 {
		rebalance := minInt(deltaHybrid, -deltaMarkdown, counts.IdleMarkdown)
		if rebalance > 0 {
			actions = append(actions,
				Action{Kind: KindMarkdown, Stop: rebalance},
				Action{Kind: KindHybrid, Spawn: rebalance},
			)
			deltaHybrid -= rebalance
			deltaMarkdown += rebalance
		}
	}

	// 2. Scale up: larger remaining deficit spawns first.
	spawnBudget := MaxSpawnPerTick
	first, second := KindMarkdown, KindHybrid
	firstDelta, secondDelta := deltaMarkdown, deltaHybrid
	if deltaHybrid > deltaMarkdown {
		first, second = KindHybrid, KindMarkdown
		firstDelta, secondDelta = deltaHybrid, deltaMarkdown
	}
	for _, pair := range []struct {
		kind  Kind
		delta int
	}{{first, firstDelta}, {second, secondDelta}} {
		if pair.delta <= 0 || spawnBudget <= 0 {
			continue
		}
		spawn := minInt(pair.delta, spawnBudget)
		actions = append(actions, Action{Kind: pair.kind, Spawn: spawn})
		spawnBudget -= spawn
	}

	// 3. Scale down: only idle workers in an over-provisioned kind.
	stopBudget := MaxStopPerTick
	if deltaMarkdown < 0 && stopBudget > 0 {
		stop := minInt(-deltaMarkdown, counts.IdleMarkdown, stopBudget)
		if stop > 0 {
			actions = append(actions, Action{Kind: KindMarkdown, Stop: stop})
			stopBudget -= stop
		}
	}
	if deltaHybrid < 0 && stopBudget > 0 {
		stop := minInt(-deltaHybrid, counts.IdleHybrid, stopBudget)
		if stop > 0 {
			actions = append(actions, Action{Kind: KindHybrid, Stop: stop})
		}
	}

	return actions
}

func minInt(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
