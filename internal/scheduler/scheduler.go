package scheduler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rohmanhakim/docs-crawler/internal/assets"
	"github.com/rohmanhakim/docs-crawler/internal/autoscale"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/dedup"
	"github.com/rohmanhakim/docs-crawler/internal/extractor"
	"github.com/rohmanhakim/docs-crawler/internal/fetcher"
	"github.com/rohmanhakim/docs-crawler/internal/frontier"
	"github.com/rohmanhakim/docs-crawler/internal/linkrewrite"
	"github.com/rohmanhakim/docs-crawler/internal/mdconvert"
	"github.com/rohmanhakim/docs-crawler/internal/metadata"
	"github.com/rohmanhakim/docs-crawler/internal/normalize"
	"github.com/rohmanhakim/docs-crawler/internal/pool"
	"github.com/rohmanhakim/docs-crawler/internal/ratelimit"
	"github.com/rohmanhakim/docs-crawler/internal/render"
	"github.com/rohmanhakim/docs-crawler/internal/robots"
	"github.com/rohmanhakim/docs-crawler/internal/sanitizer"
	"github.com/rohmanhakim/docs-crawler/internal/storage"
	"github.com/rohmanhakim/docs-crawler/internal/urlmap"
	"github.com/rohmanhakim/docs-crawler/pkg/failure"
	"github.com/rohmanhakim/docs-crawler/pkg/hashutil"
	"github.com/rohmanhakim/docs-crawler/pkg/retry"
	"github.com/rohmanhakim/docs-crawler/pkg/timeutil"
	"github.com/rohmanhakim/docs-crawler/pkg/urlutil"
)

/*
 Scheduler is the sole control-plane authority of the crawl.

 Determinism and admission guarantees:
 - Scheduler is the ONLY component allowed to decide whether a URL
   may enter the crawl's job queues.
 - All semantic admission checks (robots.txt, dedup, scope, depth)
   happen inside SubmitUrlForAdmission, called only from the single
   goroutine running ExecuteCrawling's dispatch loop - never from a
   worker goroutine - because dedup.KnownURLs is a bare map with no
   internal locking of its own.
 - Worker goroutines (internal/pool) never decide what to fetch next;
   they report outcomes, including discovered links, and the dispatch
   loop is the only place those links are ever admitted.
 - Pipeline stages may detect and classify failure, but must never
   decide retry, continuation, or abortion.

 Metadata emission is observational only and MUST NOT influence
 scheduling, retries, or crawl termination.

 Scheduler Responsibilities:
 - Coordinate the crawl lifecycle: spawn/stop the two-tier worker pool,
   retarget its size every tick via the autoscaler, and dispatch queued
   jobs to idle workers.
 - Enforce global limits (pages, depth).
 - Manage graceful shutdown.
 - Aggregate crawl statistics.
 - The sole authority on retry, continue, and abort.
*/

type Scheduler struct {
	ctx                    context.Context
	metadataSink           metadata.MetadataSink
	crawlFinalizer         metadata.CrawlFinalizer
	robot                  robots.Robot
	htmlFetcher            fetcher.Fetcher
	markdownFetcher        *fetcher.MarkdownFetcher
	domExtractor           extractor.Extractor
	htmlSanitizer          sanitizer.Sanitizer
	markdownConversionRule mdconvert.ConvertRule
	assetResolver          assets.Resolver
	markdownConstraint     normalize.Constraint
	storageSink            storage.Sink
	renderer               render.Renderer
	sleeper                timeutil.Sleeper

	jobQueues     *frontier.JobQueues
	knownURLs     dedup.KnownURLs
	probFilter    *dedup.ProbabilisticFilter
	rateLimiter   *ratelimit.OriginLimiter
	maxDepth      int
	robotsEnabled bool

	mu           sync.Mutex
	writeResults []storage.WriteResult
}

// appVersion is stamped into every document's frontmatter.
const appVersion = "docs-crawler/1.0"

// autoscaleTickInterval is how often ExecuteCrawling re-evaluates the
// worker pool's size against current queue depth.
const autoscaleTickInterval = 2 * time.Second

// defaultRenderTimeout bounds a single headless-render escalation,
// independent of the crawl's overall timeout budget.
const defaultRenderTimeout = 20 * time.Second

// probFilterBits sizes the cross-worker membership hint; a few hundred
// thousand crawled pages fit comfortably with a low false-positive rate.
const probFilterBits = 1 << 20
const probFilterHashes = 4

func NewScheduler() Scheduler {
	return NewSchedulerWithContext(nil)
}

// NewSchedulerWithContext builds a fully-wired, production Scheduler the
// same way NewScheduler does, except the returned Scheduler's base
// context is ctx instead of one ExecuteCrawling derives internally from
// cfg.Timeout(). This is the seam a CLI entrypoint uses to make a run
// cancellable by an OS signal: cancel ctx and the dispatch loop's
// s.ctx.Done() select case unwinds the whole crawl. Passing nil keeps
// ExecuteCrawling's own timeout-derived context, matching NewScheduler.
func NewSchedulerWithContext(ctx context.Context) Scheduler {
	recorder := metadata.NewRecorder(zerolog.New(os.Stderr).With().Timestamp().Logger())
	cachedRobot := robots.NewCachedRobot(recorder)
	htmlFetcher := fetcher.NewHtmlFetcher(recorder)
	markdownFetcher := fetcher.NewMarkdownFetcher()
	ext := extractor.NewDomExtractor(recorder)
	htmlSanitizer := sanitizer.NewHTMLSanitizer(recorder)
	conversionRule := mdconvert.NewRule(recorder)
	resolver := assets.NewLocalResolver(recorder, &http.Client{}, appVersion)
	markdownConstraint := normalize.NewMarkdownConstraint(recorder)
	localSink := storage.NewLocalSink(recorder)
	sleeper := timeutil.NewRealSleeper()
	return Scheduler{
		ctx:                    ctx,
		metadataSink:           recorder,
		crawlFinalizer:         recorder,
		robot:                  &cachedRobot,
		htmlFetcher:            &htmlFetcher,
		markdownFetcher:        &markdownFetcher,
		domExtractor:           &ext,
		htmlSanitizer:          &htmlSanitizer,
		markdownConversionRule: conversionRule,
		assetResolver:          &resolver,
		markdownConstraint:     &markdownConstraint,
		storageSink:            &localSink,
		renderer:               render.NewHeadlessRenderer(),
		sleeper:                &sleeper,
		jobQueues:              frontier.NewJobQueues(),
		knownURLs:              dedup.NewKnownURLs(),
		probFilter:             dedup.NewProbabilisticFilter(probFilterBits, probFilterHashes),
		rateLimiter:            ratelimit.NewOriginLimiter(),
		robotsEnabled:          true,
	}
}

// SchedulerDeps bundles every dependency the scheduler needs. It is
// built positionally by NewScheduler for production use; tests build
// it field-by-field so each dependency can be swapped for a mock.
// Fields left at their zero value fall back to a real implementation
// constructed from MetadataSink, matching what NewScheduler wires up.
type SchedulerDeps struct {
	Ctx                context.Context
	CrawlFinalizer     metadata.CrawlFinalizer
	MetadataSink       metadata.MetadataSink
	Robot              robots.Robot
	Fetcher            fetcher.Fetcher
	MarkdownFetcher    *fetcher.MarkdownFetcher
	Extractor          extractor.Extractor
	Sanitizer          sanitizer.Sanitizer
	ConvertRule        mdconvert.ConvertRule
	Resolver           assets.Resolver
	MarkdownConstraint normalize.Constraint
	StorageSink        storage.Sink
	Renderer           render.Renderer
	Sleeper            timeutil.Sleeper
	JobQueues          *frontier.JobQueues
	KnownURLs          dedup.KnownURLs
	ProbFilter         *dedup.ProbabilisticFilter
	RateLimiter        *ratelimit.OriginLimiter
}

// NewSchedulerWithDeps creates a Scheduler from an explicit SchedulerDeps,
// substituting a real implementation for any field left nil. This is the
// seam tests use to inject mocks for individual pipeline stages without
// standing up the rest of the real pipeline.
func NewSchedulerWithDeps(deps SchedulerDeps) Scheduler {
	metadataSink := deps.MetadataSink

	markdownConstraint := deps.MarkdownConstraint
	if markdownConstraint == nil {
		c := normalize.NewMarkdownConstraint(metadataSink)
		markdownConstraint = &c
	}
	storageSink := deps.StorageSink
	if storageSink == nil {
		sink := storage.NewLocalSink(metadataSink)
		storageSink = &sink
	}
	resolver := deps.Resolver
	if resolver == nil {
		r := assets.NewLocalResolver(metadataSink, &http.Client{}, appVersion)
		resolver = &r
	}
	sleeper := deps.Sleeper
	if sleeper == nil {
		s := timeutil.NewRealSleeper()
		sleeper = &s
	}
	domExtractor := deps.Extractor
	if domExtractor == nil {
		e := extractor.NewDomExtractor(metadataSink)
		domExtractor = &e
	}
	htmlSanitizer := deps.Sanitizer
	if htmlSanitizer == nil {
		s := sanitizer.NewHTMLSanitizer(metadataSink)
		htmlSanitizer = &s
	}
	convertRule := deps.ConvertRule
	if convertRule == nil {
		convertRule = mdconvert.NewRule(metadataSink)
	}
	markdownFetcher := deps.MarkdownFetcher
	if markdownFetcher == nil {
		f := fetcher.NewMarkdownFetcher()
		markdownFetcher = &f
	}
	jobQueues := deps.JobQueues
	if jobQueues == nil {
		jobQueues = frontier.NewJobQueues()
	}
	knownURLs := deps.KnownURLs
	if knownURLs == nil {
		knownURLs = dedup.NewKnownURLs()
	}
	probFilter := deps.ProbFilter
	if probFilter == nil {
		probFilter = dedup.NewProbabilisticFilter(probFilterBits, probFilterHashes)
	}
	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewOriginLimiter()
	}

	return Scheduler{
		ctx:                    deps.Ctx,
		metadataSink:           metadataSink,
		crawlFinalizer:         deps.CrawlFinalizer,
		robot:                  deps.Robot,
		htmlFetcher:            deps.Fetcher,
		markdownFetcher:        markdownFetcher,
		domExtractor:           domExtractor,
		htmlSanitizer:          htmlSanitizer,
		markdownConversionRule: convertRule,
		assetResolver:          resolver,
		markdownConstraint:     markdownConstraint,
		storageSink:            storageSink,
		renderer:               deps.Renderer,
		sleeper:                sleeper,
		jobQueues:              jobQueues,
		knownURLs:              knownURLs,
		probFilter:             probFilter,
		rateLimiter:            rateLimiter,
		robotsEnabled:          true,
	}
}

// SubmitUrlForAdmission performs every semantic check required for a URL
// to enter a job queue: dedup, robots.txt, and depth.
//
// This function is the single admission choke point for the system and
// must only ever be called from the goroutine running ExecuteCrawling's
// dispatch loop - it mutates knownURLs, a bare map with no locking of
// its own.
func (s *Scheduler) SubmitUrlForAdmission(
	target url.URL,
	crawlContext frontier.CrawlContext,
	depth int,
	baseDelayMs int64,
) failure.ClassifiedError {
	key := urlmap.NormalizeForQueue(target)
	if s.knownURLs.Contains(key) {
		return nil
	}
	if s.maxDepth > 0 && depth > s.maxDepth {
		return nil
	}

	robotsDecision := robots.Decision{Url: target, Allowed: true}
	if s.robotsEnabled {
		decision, robotsError := s.robot.Decide(target)
		if robotsError != nil {
			return robotsError
		}
		robotsDecision = decision
	}

	if !robotsDecision.Allowed {
		// Terminal, non-retryable outcome: robots already recorded why.
		s.knownURLs.Add(key)
		return nil
	}

	delayMs := baseDelayMs
	if robotsDecision.CrawlDelay != nil && robotsDecision.CrawlDelay.Milliseconds() > delayMs {
		delayMs = robotsDecision.CrawlDelay.Milliseconds()
	}
	waitUntil := s.rateLimiter.ComputeWait(target.Host, delayMs)

	s.knownURLs.Add(key)
	s.probFilter.Add(key)

	canGoDeeper := s.maxDepth <= 0 || depth < s.maxDepth
	job := frontier.Job{
		JobID:        key,
		URL:          robotsDecision.Url,
		Depth:        depth,
		CanGoDeeper:  canGoDeeper,
		CrawlContext: crawlContext,
		WaitUntilMs:  waitUntil.UnixMilli(),
	}
	s.jobQueues.EnqueueMarkdown(job)
	return nil
}

// ExecuteCrawling runs the crawl end to end: it spawns an adaptive pool
// of markdown and hybrid workers, retargets the pool's size every tick
// from queue depth via the autoscaler, and dispatches queued jobs to
// idle workers until the frontier drains and every worker sits idle, or
// the page budget or context deadline is reached.
func (s *Scheduler) ExecuteCrawling(configPath string) (CrawlingExecution, error) {
	crawlStartTime := time.Now()

	var totalErrors int
	var totalAssets int
	var totalPages int

	defer func() {
		crawlDuration := time.Since(crawlStartTime)
		s.crawlFinalizer.RecordFinalCrawlStats(totalPages, totalErrors, totalAssets, crawlDuration)
	}()

	cfg, err := config.WithConfigFile(configPath)
	if err != nil {
		s.metadataSink.RecordError(
			time.Now(),
			"config",
			"config.WithConfigFile",
			metadata.CauseContentInvalid,
			err.Error(),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrField, fmt.Sprintf("field: %v", "theFieldError")),
			},
		)
		return CrawlingExecution{}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout())
	defer cancel()
	if s.ctx == nil {
		s.ctx = ctx
	}

	if len(cfg.SeedURLs()) == 0 {
		err := fmt.Errorf("no seed URLs configured")
		s.metadataSink.RecordError(
			time.Now(),
			"config",
			"config validation",
			metadata.CauseContentInvalid,
			err.Error(),
			[]metadata.Attribute{},
		)
		return CrawlingExecution{}, err
	}

	s.robotsEnabled = cfg.Robots()
	if s.robotsEnabled {
		s.robot.Init(cfg.UserAgent())
	}
	s.maxDepth = cfg.MaxDepth()

	extractParam := extractor.ExtractParam{
		BodySpecificityBias:  cfg.BodySpecificityBias(),
		LinkDensityThreshold: cfg.LinkDensityThreshold(),
		ScoreMultiplier: extractor.ContentScoreMultiplier{
			NonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
			Paragraphs:           cfg.ScoreMultiplierParagraphs(),
			Headings:             cfg.ScoreMultiplierHeadings(),
			CodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
			ListItems:            cfg.ScoreMultiplierListItems(),
		},
		Threshold: extractor.MeaningfulThreshold{
			MinNonWhitespace:    cfg.ThresholdMinNonWhitespace(),
			MinHeadings:         cfg.ThresholdMinHeadings(),
			MinParagraphsOrCode: cfg.ThresholdMinParagraphsOrCode(),
			MaxLinkDensity:      cfg.ThresholdMaxLinkDensity(),
		},
	}
	s.domExtractor.SetExtractParam(extractParam)

	if cfg.Render() && s.renderer != nil {
		defer s.renderer.Close()
	}

	seed := cfg.SeedURLs()[0]
	crawlContext := frontier.CrawlContext{
		ScopeOrigin:     seed.Host,
		ScopePathPrefix: firstPrefix(cfg.AllowedPathPrefix()),
	}

	baseDelayMs := cfg.Delay().Milliseconds()
	if err := s.SubmitUrlForAdmission(seed, crawlContext, 0, baseDelayMs); err != nil {
		return CrawlingExecution{}, err
	}

	autoscaler := autoscale.NewAutoscaler(cfg.Concurrency())
	workerPool := pool.NewPool(s.ctx, s.makeProcessFunc(cfg, baseDelayMs), 0)

	live := make(map[string]pool.Kind)
	idle := map[pool.Kind]map[string]struct{}{
		pool.KindMarkdown: {},
		pool.KindHybrid:   {},
	}
	var inFlightMarkdown, inFlightHybrid int

	spawn := func(kind pool.Kind, n int) {
		for i := 0; i < n; i++ {
			id := workerPool.Spawn(kind)
			live[id] = kind
		}
	}
	spawn(pool.KindMarkdown, autoscale.MinWorkersPerKind)
	spawn(pool.KindHybrid, autoscale.MinWorkersPerKind)

	dispatch := func() {
		for id := range idle[pool.KindMarkdown] {
			job, ok := s.jobQueues.DequeueMarkdown()
			if !ok {
				break
			}
			workerPool.Assign(id, job)
			delete(idle[pool.KindMarkdown], id)
			inFlightMarkdown++
		}
		for id := range idle[pool.KindHybrid] {
			job, ok := s.jobQueues.DequeueHybrid()
			if !ok {
				break
			}
			workerPool.Assign(id, job)
			delete(idle[pool.KindHybrid], id)
			inFlightHybrid++
		}
	}
	dispatch()

	maxPages := cfg.MaxPages()
	isDone := func() bool {
		if maxPages > 0 && totalPages >= maxPages {
			return true
		}
		return s.jobQueues.Len() == 0 && inFlightMarkdown == 0 && inFlightHybrid == 0
	}

	ticker := time.NewTicker(autoscaleTickInterval)
	defer ticker.Stop()

loop:
	for !isDone() {
		select {
		case readyEvt := <-workerPool.Ready():
			var job frontier.Job
			var ok bool
			if readyEvt.Kind == pool.KindMarkdown {
				job, ok = s.jobQueues.DequeueMarkdown()
			} else {
				job, ok = s.jobQueues.DequeueHybrid()
			}
			if ok {
				workerPool.Assign(readyEvt.WorkerID, job)
				if readyEvt.Kind == pool.KindMarkdown {
					inFlightMarkdown++
				} else {
					inFlightHybrid++
				}
			} else {
				idle[readyEvt.Kind][readyEvt.WorkerID] = struct{}{}
			}

		case outcome := <-workerPool.Outcomes():
			if outcome.Kind == pool.KindMarkdown {
				inFlightMarkdown--
			} else {
				inFlightHybrid--
			}
			s.handleOutcome(outcome, crawlContext, baseDelayMs, autoscaler, &totalErrors, &totalAssets, &totalPages)
			dispatch()

		case stoppedEvt := <-workerPool.Stopped():
			delete(live, stoppedEvt.WorkerID)
			delete(idle[stoppedEvt.Kind], stoppedEvt.WorkerID)

		case <-ticker.C:
			counts := autoscale.Counts{
				PendingMarkdown:  s.jobQueues.MarkdownLen(),
				InFlightMarkdown: inFlightMarkdown,
				IdleMarkdown:     len(idle[pool.KindMarkdown]),
				PendingHybrid:    s.jobQueues.HybridLen(),
				InFlightHybrid:   inFlightHybrid,
				IdleHybrid:       len(idle[pool.KindHybrid]),
			}
			for _, action := range autoscaler.Tick(counts) {
				kind := pool.KindMarkdown
				if action.Kind == autoscale.KindHybrid {
					kind = pool.KindHybrid
				}
				if action.Spawn > 0 {
					spawn(kind, action.Spawn)
				}
				if action.Stop > 0 {
					s.stopIdle(workerPool, idle[kind], action.Stop)
				}
			}

		case <-s.ctx.Done():
			break loop
		}
	}

	for id := range live {
		workerPool.Stop(id)
	}
	_ = workerPool.Wait()

	return CrawlingExecution{
		WriteResults: s.writeResultsSnapshot(),
	}, nil
}

// handleOutcome folds one worker's Outcome into crawl statistics, feeds
// the autoscaler's service-time estimates, escalates markdown-unavailable
// jobs to the hybrid queue, and admits every link the job discovered.
func (s *Scheduler) handleOutcome(
	outcome pool.Outcome,
	crawlContext frontier.CrawlContext,
	baseDelayMs int64,
	autoscaler *autoscale.Autoscaler,
	totalErrors *int,
	totalAssets *int,
	totalPages *int,
) {
	duration := time.Duration(outcome.Duration) * time.Millisecond
	if outcome.Kind == pool.KindMarkdown {
		autoscaler.ObserveMarkdownDuration(duration)
	} else {
		autoscaler.ObserveHybridDuration(duration)
	}

	switch outcome.Status {
	case pool.StatusCompleted:
		*totalPages++
		*totalAssets += outcome.AssetCount
		autoscaler.ObserveMarkdownUnavailable(false)
	case pool.StatusMarkdownUnavailable:
		// escalateToHybrid already pushed the job onto the hybrid queue
		// from the worker goroutine; nothing left to enqueue here.
		autoscaler.ObserveMarkdownUnavailable(true)
	case pool.StatusHtmlInsufficient:
		*totalErrors++
	case pool.StatusFailed:
		*totalErrors++
	}

	depth := outcome.Job.Depth + 1
	for _, link := range outcome.DiscoveredLinks {
		if err := s.SubmitUrlForAdmission(link, crawlContext, depth, baseDelayMs); err != nil {
			*totalErrors++
		}
	}
}

// stopIdle asks up to n idle workers of a kind to stop, removing them
// from the idle set immediately so dispatch never hands them a job
// between the stop request and their StoppedEvent.
func (s *Scheduler) stopIdle(p *pool.Pool, idleSet map[string]struct{}, n int) {
	stopped := 0
	for id := range idleSet {
		if stopped >= n {
			break
		}
		p.Stop(id)
		delete(idleSet, id)
		stopped++
	}
}

func (s *Scheduler) writeResultsSnapshot() []storage.WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]storage.WriteResult, len(s.writeResults))
	copy(out, s.writeResults)
	return out
}

func (s *Scheduler) recordWrite(result storage.WriteResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeResults = append(s.writeResults, result)
}

// makeProcessFunc closes over the scheduler and the crawl's config so
// the worker pool can run either tier's pipeline without knowing about
// either.
func (s *Scheduler) makeProcessFunc(cfg config.Config, baseDelayMs int64) pool.ProcessFunc {
	return func(ctx context.Context, kind pool.Kind, job frontier.Job) pool.Outcome {
		if kind == pool.KindMarkdown {
			return s.processMarkdownJob(ctx, job, cfg)
		}
		return s.processHybridJob(ctx, job, cfg)
	}
}

// processMarkdownJob tries a page's Markdown-source companion first:
// llms.txt at the site root, or a sibling ".md"/".txt" path otherwise.
// A missing companion (404/410, or a URL shape that can't have one) is
// reported as StatusMarkdownUnavailable and the job is escalated to the
// hybrid queue rather than retried here.
func (s *Scheduler) processMarkdownJob(ctx context.Context, job frontier.Job, cfg config.Config) pool.Outcome {
	candidateURL, ok := fetcher.BuildMarkdownCandidateUrl(job.URL)
	if !ok {
		return s.escalateToHybrid(job)
	}

	body, fetchErr := s.fetchMarkdownWithRetry(ctx, candidateURL, cfg.UserAgent(), RetryParam(cfg))
	if fetchErr != nil {
		if fetchErr.Severity() == failure.SeverityFatal {
			return pool.Outcome{Kind: pool.KindMarkdown, Job: job, Status: pool.StatusFailed, Err: fetchErr}
		}
		return s.escalateToHybrid(job)
	}
	if len(body) == 0 {
		return s.escalateToHybrid(job)
	}

	content := linkrewrite.LinkifyBareURLs(body)
	discovered := linkrewrite.DiscoverLinks(content, job.URL)

	assetDoc := assets.NewAssetfulMarkdownDoc(content, nil, nil, nil)
	normalizeParam := normalize.NewNormalizeParam(appVersion, time.Now(), hashutil.HashAlgoSHA256, job.Depth, cfg.AllowedPathPrefix())
	normalizedDoc, err := s.markdownConstraint.Normalize(job.URL, assetDoc, normalizeParam)
	if err != nil {
		return pool.Outcome{Kind: pool.KindMarkdown, Job: job, Status: pool.StatusFailed, Err: err}
	}

	rewritten := linkrewrite.RewriteLinksInResult(
		normalizedDoc.Content(), job.URL,
		job.CrawlContext.ScopeOrigin, job.CrawlContext.ScopePathPrefix,
		cfg.OutputDir(),
	)
	finalDoc := normalize.NewNormalizedMarkdownDoc(normalizedDoc.Frontmatter(), rewritten)

	writeResult, werr := s.storageSink.Write(job.URL, cfg.OutputDir(), finalDoc, storage.ArtifactSet{
		WriteClutter:  cfg.Clutter(),
		OverwriteLlms: cfg.OverwriteLlms(),
	}, hashutil.HashAlgoSHA256)
	if werr != nil {
		return pool.Outcome{Kind: pool.KindMarkdown, Job: job, Status: pool.StatusFailed, Err: werr}
	}
	s.recordWrite(writeResult)

	var filtered []url.URL
	if job.CanGoDeeper {
		resolved := make([]url.URL, 0, len(discovered))
		for _, u := range discovered {
			resolved = append(resolved, urlutil.Resolve(u, job.URL.Scheme, job.CrawlContext.ScopeOrigin))
		}
		filtered = urlutil.FilterByHost(job.CrawlContext.ScopeOrigin, resolved)
	}

	return pool.Outcome{
		Kind:            pool.KindMarkdown,
		Job:             job,
		Status:          pool.StatusCompleted,
		DiscoveredLinks: filtered,
	}
}

// escalateToHybrid enqueues job onto the hybrid queue directly: JobQueues
// locks internally, so this is safe to call from a worker goroutine
// without routing back through the dispatch loop.
func (s *Scheduler) escalateToHybrid(job frontier.Job) pool.Outcome {
	escalated := job
	escalated.WaitUntilMs = 0
	s.jobQueues.EnqueueHybrid(escalated)
	return pool.Outcome{Kind: pool.KindMarkdown, Job: job, Status: pool.StatusMarkdownUnavailable}
}

func (s *Scheduler) fetchMarkdownWithRetry(
	ctx context.Context,
	candidateURL url.URL,
	userAgent string,
	retryParam retry.RetryParam,
) ([]byte, failure.ClassifiedError) {
	task := func() ([]byte, failure.ClassifiedError) {
		body, _, err := s.markdownFetcher.FetchMarkdown(ctx, candidateURL, userAgent)
		return body, err
	}
	result := retry.Retry(retryParam, task)
	return result.Value(), result.Err()
}

// processHybridJob runs the full raw-HTML pipeline: fetch, extract
// (escalating to a headless render when the static fetch came back too
// thin and rendering is enabled), sanitize, convert, resolve assets,
// normalize, rewrite links, and write.
func (s *Scheduler) processHybridJob(ctx context.Context, job frontier.Job, cfg config.Config) pool.Outcome {
	fetchParam := fetcher.NewFetchParam(job.URL, cfg.UserAgent())
	fetchResult, err := s.htmlFetcher.Fetch(ctx, job.Depth, fetchParam, RetryParam(cfg))
	if err != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}

	extractionResult, err := s.extractWithRenderEscalation(ctx, job, cfg, fetchResult)
	if err != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}
	if !extractor.HasSufficientContent(extractionResult) {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusHtmlInsufficient}
	}

	sanitizedHtml, err := s.htmlSanitizer.Sanitize(extractionResult.ContentNode)
	if err != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}

	var filtered []url.URL
	if job.CanGoDeeper {
		discoveredURLs := sanitizedHtml.GetDiscoveredURLs()
		resolved := make([]url.URL, 0, len(discoveredURLs))
		for _, u := range discoveredURLs {
			resolved = append(resolved, urlutil.Resolve(u, job.URL.Scheme, job.CrawlContext.ScopeOrigin))
		}
		filtered = urlutil.FilterByHost(job.CrawlContext.ScopeOrigin, resolved)
	}

	markdownDoc, err := s.markdownConversionRule.Convert(sanitizedHtml)
	if err != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}

	resolveParam := assets.NewResolveParam(cfg.OutputDir(), cfg.MaxAssetSize())
	assetfulMarkdown, err := s.assetResolver.Resolve(ctx, fetchResult.URL(), markdownDoc, resolveParam, RetryParam(cfg))
	assetCount := 0
	if err != nil && err.Severity() == failure.SeverityFatal {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}
	if err == nil {
		assetCount = len(assetfulMarkdown.LocalAssets())
	}

	normalizeParam := normalize.NewNormalizeParam(appVersion, time.Now(), hashutil.HashAlgoSHA256, job.Depth, cfg.AllowedPathPrefix())
	normalizedDoc, err := s.markdownConstraint.Normalize(fetchResult.URL(), assetfulMarkdown, normalizeParam)
	if err != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: err}
	}

	rewritten := linkrewrite.RewriteLinksInResult(
		normalizedDoc.Content(), job.URL,
		job.CrawlContext.ScopeOrigin, job.CrawlContext.ScopePathPrefix,
		cfg.OutputDir(),
	)
	finalDoc := normalize.NewNormalizedMarkdownDoc(normalizedDoc.Frontmatter(), rewritten)

	writeResult, werr := s.storageSink.Write(fetchResult.URL(), cfg.OutputDir(), finalDoc, storage.ArtifactSet{
		ClutterContent: clutterContent(assetfulMarkdown),
		WriteClutter:   cfg.Clutter(),
		OverwriteLlms:  cfg.OverwriteLlms(),
	}, hashutil.HashAlgoSHA256)
	if werr != nil {
		return pool.Outcome{Kind: pool.KindHybrid, Job: job, Status: pool.StatusFailed, Err: werr}
	}
	s.recordWrite(writeResult)

	return pool.Outcome{
		Kind:            pool.KindHybrid,
		Job:             job,
		Status:          pool.StatusCompleted,
		DiscoveredLinks: filtered,
		AssetCount:      assetCount,
	}
}

// extractWithRenderEscalation extracts the statically-fetched body, and
// when that comes back too thin, re-extracts from a headless render of
// the same URL instead - a render failure falls back to the original
// (still insufficient) extraction rather than failing the job outright.
func (s *Scheduler) extractWithRenderEscalation(
	ctx context.Context,
	job frontier.Job,
	cfg config.Config,
	fetchResult fetcher.FetchResult,
) (extractor.ExtractionResult, failure.ClassifiedError) {
	extractionResult, err := s.domExtractor.Extract(fetchResult.URL(), fetchResult.Body())
	if err != nil {
		return extractor.ExtractionResult{}, err
	}
	if extractor.HasSufficientContent(extractionResult) || !cfg.Render() || s.renderer == nil {
		return extractionResult, nil
	}

	renderedHTML, renderErr := s.renderer.Render(ctx, job.URL.String(), defaultRenderTimeout, cfg.UserAgent())
	if renderErr != nil {
		return extractionResult, nil
	}

	renderedExtraction, err := s.domExtractor.Extract(job.URL, []byte(renderedHTML))
	if err != nil {
		return extractionResult, nil
	}
	return renderedExtraction, nil
}

// clutterContent renders an AssetfulMarkdownDoc's non-primary diagnostics
// (missing and unparseable asset references) as the content of
// clutter.md; empty when there is nothing to report.
func clutterContent(doc assets.AssetfulMarkdownDoc) []byte {
	var buf []byte
	for assetURL, cause := range doc.MissingAssets() {
		buf = append(buf, []byte(fmt.Sprintf("- missing asset: %s (%s)\n", assetURL, cause))...)
	}
	for _, raw := range doc.UnparseableURLs() {
		buf = append(buf, []byte(fmt.Sprintf("- unparseable asset reference: %s\n", raw))...)
	}
	return buf
}

func firstPrefix(prefixes []string) string {
	if len(prefixes) == 0 {
		return ""
	}
	return prefixes[0]
}

func RetryParam(cfg config.Config) retry.RetryParam {
	return retry.NewRetryParam(
		cfg.BaseDelay(),
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
}

// ---------------------------------------------------------------------------
// Test Helper Methods
// These methods are exported to enable testing of scheduler internals.
// They are not part of the public API.
// ---------------------------------------------------------------------------

// InitWith initializes the robot dependency for testing.
func (s *Scheduler) InitWith(userAgent string) {
	s.robot.Init(userAgent)
}

// KnownURLCount returns how many URLs the scheduler has admitted or
// rejected so far. A test helper for verifying dedup behavior.
func (s *Scheduler) KnownURLCount() int {
	return len(s.knownURLs)
}

// PendingJobs returns the combined length of both job queues.
func (s *Scheduler) PendingJobs() int {
	if s.jobQueues == nil {
		return 0
	}
	return s.jobQueues.Len()
}

// DequeueMarkdownJob pops the next markdown-source job, for tests that
// verify SubmitUrlForAdmission's enqueue behavior directly.
func (s *Scheduler) DequeueMarkdownJob() (frontier.Job, bool) {
	if s.jobQueues == nil {
		return frontier.Job{}, false
	}
	return s.jobQueues.DequeueMarkdown()
}

// SetConvertRule sets the markdown conversion rule for testing.
func (s *Scheduler) SetConvertRule(rule mdconvert.ConvertRule) {
	s.markdownConversionRule = rule
}

// SetMaxDepth overrides the admitted crawl depth for testing, bypassing
// the config file ExecuteCrawling normally derives it from.
func (s *Scheduler) SetMaxDepth(depth int) {
	s.maxDepth = depth
}

// SetRobotsEnabled toggles whether SubmitUrlForAdmission consults the
// robots dependency, mirroring what ExecuteCrawling derives from
// config.Config.Robots().
func (s *Scheduler) SetRobotsEnabled(enabled bool) {
	s.robotsEnabled = enabled
}
