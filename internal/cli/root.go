package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rohmanhakim/docs-crawler/internal/config"
	"github.com/rohmanhakim/docs-crawler/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cfgFile           string
	seedURLs          []string
	maxDepth          int
	concurrency       int
	outputDir         string
	dryRun            bool
	maxPages          int
	userAgent         string
	timeout           time.Duration
	baseDelay         time.Duration
	jitter            time.Duration
	randomSeed        int64
	allowedHosts      []string
	allowedPathPrefix []string
	retries           int
	delay             time.Duration
	robotsFlag        bool
	renderFlag        bool
	overwriteLlms     bool
	clutterFlag       bool
	verboseFlag       bool
)

// parseStringSliceToSet converts a string slice to a map[string]struct{} set
func parseStringSliceToSet(strings []string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, s := range strings {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return set
}

// parseSeedURLs converts a string slice of URLs to []url.URL
func parseSeedURLs(urlStrings []string) ([]url.URL, error) {
	if len(urlStrings) == 0 {
		return nil, fmt.Errorf("seed URLs cannot be empty")
	}

	var urls []url.URL
	for _, urlStr := range urlStrings {
		parsedURL, err := url.Parse(urlStr)
		if err != nil {
			return nil, fmt.Errorf("error parsing seed URL %s: %w", urlStr, err)
		}
		urls = append(urls, *parsedURL)
	}
	return urls, nil
}

// rootCmd is also the default "crawl" command: invoked with no
// subcommand, it takes its seed URL from a positional argument or
// --seed-url and runs the crawl directly, the same way `docs-crawler
// crawl <url>` does.
var rootCmd = &cobra.Command{
	Use:   "docs-crawler [url]",
	Short: "A local-only documentation crawler.",
	Long: `docs-crawler is a CLI application that crawls static documentation
websites and converts their content into clean, semantically faithful Markdown,
optimized for LLM Retrieval-Augmented Generation (RAG) workflows.

This tool aims to provide a deterministic and repeatable crawl process,
producing high-quality Markdown suitable for embedding and retrieval.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw := append([]string{}, seedURLs...)
		if len(args) == 1 {
			raw = append(raw, args[0])
		}
		if len(raw) == 0 {
			return fmt.Errorf("a seed URL is required: pass one as an argument or with --seed-url")
		}
		parsedURLs, err := parseSeedURLs(raw)
		if err != nil {
			return err
		}
		return runCrawlCommand(cmd.Context(), parsedURLs)
	},
}

// crawlCmd is the explicit form of rootCmd's default behavior: it crawls
// the positional URL together with any --seed-url values.
var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl from a seed URL (the default command).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsedURLs, err := parseSeedURLs(append(append([]string{}, seedURLs...), args[0]))
		if err != nil {
			return err
		}
		return runCrawlCommand(cmd.Context(), parsedURLs)
	},
}

// urlCmd crawls a single URL given as a positional argument.
var urlCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Crawl a single seed URL.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsedURLs, err := parseSeedURLs([]string{args[0]})
		if err != nil {
			return err
		}
		return runCrawlCommand(cmd.Context(), parsedURLs)
	},
}

// urlsCmd crawls every seed URL listed one-per-line in a file, blank
// lines and lines starting with "#" ignored.
var urlsCmd = &cobra.Command{
	Use:   "urls <file>",
	Short: "Crawl every seed URL listed in a file, one per line.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := readSeedURLFile(args[0])
		if err != nil {
			return err
		}
		parsedURLs, err := parseSeedURLs(lines)
		if err != nil {
			return err
		}
		return runCrawlCommand(cmd.Context(), parsedURLs)
	},
}

// readSeedURLFile reads newline-separated seed URLs from path, skipping
// blank lines and "#"-prefixed comments.
func readSeedURLFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed URL file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading seed URL file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("seed URL file %s contains no URLs", path)
	}
	return lines, nil
}

// runCrawlCommand builds the effective configuration from flags (or
// --config-file), hands it to the scheduler, and prints a run summary.
// ctx carries the process's interrupt signal: cancelling it unwinds the
// scheduler's dispatch loop instead of leaving a run to finish untouched.
func runCrawlCommand(ctx context.Context, seedUrls []url.URL) error {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		return err
	}

	configPath, cleanup, err := writeConfigFile(cfg)
	if err != nil {
		return fmt.Errorf("staging config for crawl: %w", err)
	}
	defer cleanup()

	if verboseFlag {
		fmt.Printf("Crawling %d seed URL(s) into %s (maxDepth=%d, concurrency=%d, robots=%t, render=%t)\n",
			len(cfg.SeedURLs()), cfg.OutputDir(), cfg.MaxDepth(), cfg.Concurrency(), cfg.Robots(), cfg.Render())
	}

	s := scheduler.NewSchedulerWithContext(ctx)
	start := time.Now()
	execution, err := s.ExecuteCrawling(configPath)
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	printRunSummary(execution, time.Since(start))
	return nil
}

// writeConfigFile serializes cfg into the JSON shape config.WithConfigFile
// expects and writes it to a temp file, since ExecuteCrawling only
// accepts a config file path rather than a built config.Config. The
// returned cleanup func removes the temp file.
func writeConfigFile(cfg config.Config) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "docs-crawler-config-*.json")
	if err != nil {
		return "", func() {}, err
	}
	cleanup = func() { os.Remove(f.Name()) }

	robots := cfg.Robots()
	render := cfg.Render()
	overwrite := cfg.OverwriteLlms()

	payload := struct {
		SeedURLs                            []url.URL           `json:"seedUrls"`
		AllowedHosts                        map[string]struct{} `json:"allowedHosts,omitempty"`
		AllowedPathPrefix                   []string             `json:"allowedPathPrefix,omitempty"`
		MaxDepth                            int                  `json:"maxDepth,omitempty"`
		MaxPages                            int                  `json:"maxPages,omitempty"`
		Concurrency                         int                  `json:"concurrency,omitempty"`
		BaseDelay                           time.Duration        `json:"baseDelay,omitempty"`
		Jitter                              time.Duration        `json:"jitter,omitempty"`
		RandomSeed                          int64                `json:"randomSeed,omitempty"`
		MaxAttempt                          int                  `json:"maxAttempt,omitempty"`
		BackoffInitialDuration              time.Duration        `json:"backoffInitialDuration,omitempty"`
		BackoffMultiplier                   float64              `json:"backoffMultiplier,omitempty"`
		BackoffMaxDuration                  time.Duration        `json:"backoffMaxDuration,omitempty"`
		Timeout                             time.Duration        `json:"timeout,omitempty"`
		UserAgent                           string               `json:"userAgent,omitempty"`
		OutputDir                           string               `json:"outputDir,omitempty"`
		DryRun                              bool                 `json:"dryRun,omitempty"`
		BodySpecificityBias                 float64              `json:"bodySpecificityBias,omitempty"`
		LinkDensityThreshold                float64              `json:"linkDensityThreshold,omitempty"`
		ScoreMultiplierNonWhitespaceDivisor float64              `json:"scoreMultiplierNonWhitespaceDivisor,omitempty"`
		ScoreMultiplierParagraphs           float64              `json:"scoreMultiplierParagraphs,omitempty"`
		ScoreMultiplierHeadings             float64              `json:"scoreMultiplierHeadings,omitempty"`
		ScoreMultiplierCodeBlocks           float64              `json:"scoreMultiplierCodeBlocks,omitempty"`
		ScoreMultiplierListItems            float64              `json:"scoreMultiplierListItems,omitempty"`
		ThresholdMinNonWhitespace           int                  `json:"thresholdMinNonWhitespace,omitempty"`
		ThresholdMinHeadings                int                  `json:"thresholdMinHeadings,omitempty"`
		ThresholdMinParagraphsOrCode        int                  `json:"thresholdMinParagraphsOrCode,omitempty"`
		ThresholdMaxLinkDensity             float64              `json:"thresholdMaxLinkDensity,omitempty"`
		Delay                               time.Duration        `json:"delay,omitempty"`
		Robots                              *bool                `json:"robots,omitempty"`
		Render                              *bool                `json:"render,omitempty"`
		OverwriteLlms                       *bool                `json:"overwriteLlms,omitempty"`
		Clutter                             bool                 `json:"clutter,omitempty"`
		Verbose                             bool                 `json:"verbose,omitempty"`
		MaxAssetSize                        int64                `json:"maxAssetSize,omitempty"`
	}{
		SeedURLs:                            cfg.SeedURLs(),
		AllowedHosts:                        cfg.AllowedHosts(),
		AllowedPathPrefix:                   cfg.AllowedPathPrefix(),
		MaxDepth:                            cfg.MaxDepth(),
		MaxPages:                            cfg.MaxPages(),
		Concurrency:                         cfg.Concurrency(),
		BaseDelay:                           cfg.BaseDelay(),
		Jitter:                              cfg.Jitter(),
		RandomSeed:                          cfg.RandomSeed(),
		MaxAttempt:                          cfg.MaxAttempt(),
		BackoffInitialDuration:              cfg.BackoffInitialDuration(),
		BackoffMultiplier:                   cfg.BackoffMultiplier(),
		BackoffMaxDuration:                  cfg.BackoffMaxDuration(),
		Timeout:                             cfg.Timeout(),
		UserAgent:                           cfg.UserAgent(),
		OutputDir:                           cfg.OutputDir(),
		DryRun:                              cfg.DryRun(),
		BodySpecificityBias:                 cfg.BodySpecificityBias(),
		LinkDensityThreshold:                cfg.LinkDensityThreshold(),
		ScoreMultiplierNonWhitespaceDivisor: cfg.ScoreMultiplierNonWhitespaceDivisor(),
		ScoreMultiplierParagraphs:           cfg.ScoreMultiplierParagraphs(),
		ScoreMultiplierHeadings:             cfg.ScoreMultiplierHeadings(),
		ScoreMultiplierCodeBlocks:           cfg.ScoreMultiplierCodeBlocks(),
		ScoreMultiplierListItems:            cfg.ScoreMultiplierListItems(),
		ThresholdMinNonWhitespace:           cfg.ThresholdMinNonWhitespace(),
		ThresholdMinHeadings:                cfg.ThresholdMinHeadings(),
		ThresholdMinParagraphsOrCode:        cfg.ThresholdMinParagraphsOrCode(),
		ThresholdMaxLinkDensity:             cfg.ThresholdMaxLinkDensity(),
		Delay:                               cfg.Delay(),
		Robots:                              &robots,
		Render:                              &render,
		OverwriteLlms:                       &overwrite,
		Clutter:                             cfg.Clutter(),
		Verbose:                             cfg.Verbose(),
		MaxAssetSize:                        cfg.MaxAssetSize(),
	}

	enc := json.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		f.Close()
		return "", cleanup, err
	}
	if err := f.Close(); err != nil {
		return "", cleanup, err
	}
	return f.Name(), cleanup, nil
}

// printRunSummary reports how many pages were written and how large the
// resulting corpus is, in human-readable units.
func printRunSummary(execution scheduler.CrawlingExecution, elapsed time.Duration) {
	var totalBytes int64
	for i := range execution.WriteResults {
		info, err := os.Stat(execution.WriteResults[i].Path())
		if err != nil {
			continue
		}
		totalBytes += info.Size()
	}

	fmt.Printf("Wrote %s page(s) totalling %s in %s\n",
		humanize.Comma(int64(len(execution.WriteResults))),
		humanize.Bytes(uint64(totalBytes)),
		elapsed.Round(time.Millisecond))
}

// Execute adds all child commands to the root command and runs it under
// ctx, so an interrupt cancelling ctx unwinds a crawl already in flight
// instead of only stopping the process after it finishes on its own.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(crawlCmd, urlCmd, urlsCmd)
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Here you will define your flags and configuration settings.
	// Cobra supports persistent flags, which, if defined here,
	// will be available to all subcommands in the docs-crawler application.
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 5, "maximum link depth from seed URL")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 3, "number of concurrent fetch workers")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "output", "root output directory for crawled content")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "crawl without writing output")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 for unlimited)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay between HTTP requests to the same host")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedHosts, "allowed-host", []string{}, "explicit hostname allowlist (defaults to seed host)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedPathPrefix, "allowed-path-prefix", []string{}, "restrict crawl to paths like `/docs`, `/guide`")
	rootCmd.PersistentFlags().IntVar(&retries, "retries", 0, "maximum fetch retry attempts per URL")
	rootCmd.PersistentFlags().DurationVar(&delay, "delay", 0, "operator-requested per-origin delay (robots.txt Crawl-delay still wins if larger)")
	rootCmd.PersistentFlags().BoolVar(&robotsFlag, "robots", true, "consult robots.txt before fetching")
	rootCmd.PersistentFlags().BoolVar(&renderFlag, "render", true, "fall back to headless rendering when extracted content is insufficient")
	rootCmd.PersistentFlags().BoolVar(&overwriteLlms, "overwrite-llms", true, "rewrite .llms.md and llms-full.md on each run instead of keeping existing ones")
	rootCmd.PersistentFlags().BoolVar(&clutterFlag, "clutter", false, "write clutter.md alongside each page's Markdown")
	rootCmd.PersistentFlags().BoolVar(&verboseFlag, "verbose", false, "print crawl configuration and progress detail")
}

// InitConfig reads in the config file if set, otherwise the CLI flags.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
func InitConfig(seedUrls []url.URL) config.Config {
	cfg, err := InitConfigWithError(seedUrls)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	return cfg
}

// InitConfigWithError reads in the config file if set, otherwise the CLI flags, returning any errors.
// seedUrls is a mandatory parameter and must contain at least one valid URL.
// This makes it easier to test error cases.
func InitConfigWithError(seedUrls []url.URL) (config.Config, error) {
	if len(seedUrls) == 0 {
		return config.Config{}, fmt.Errorf("%w: seedUrls cannot be empty", config.ErrInvalidConfig)
	}

	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	// Build config from CLI flags using the With... functions with method chaining
	fmt.Println("No config file specified. Using default and CLI flag values")

	// Start with default config using provided seed URLs and apply overrides using method chaining
	configBuilder := config.WithDefault(seedUrls)

	// Override with CLI flag values where provided
	if maxDepth > 0 {
		configBuilder = configBuilder.WithMaxDepth(maxDepth)
	}

	if concurrency > 0 {
		configBuilder = configBuilder.WithConcurrency(concurrency)
	}

	if outputDir != "" && outputDir != "output" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}

	if maxPages > 0 {
		configBuilder = configBuilder.WithMaxPages(maxPages)
	}

	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}

	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}

	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}

	if len(allowedHosts) > 0 {
		configBuilder = configBuilder.WithAllowedHosts(parseStringSliceToSet(allowedHosts))
	}

	if len(allowedPathPrefix) > 0 {
		configBuilder = configBuilder.WithAllowedPathPrefix(allowedPathPrefix)
	}

	if retries > 0 {
		configBuilder = configBuilder.WithMaxAttempt(retries)
	}

	if delay > 0 {
		configBuilder = configBuilder.WithDelay(delay)
	}

	// Unlike the flags above, these booleans have no ambiguous zero value:
	// their CLI default already matches config.WithDefault, so applying
	// them unconditionally is a no-op unless the operator overrides them.
	configBuilder = configBuilder.
		WithRobots(robotsFlag).
		WithRender(renderFlag).
		WithOverwriteLlms(overwriteLlms).
		WithClutter(clutterFlag).
		WithVerbose(verboseFlag)

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 0
	concurrency = 0
	outputDir = ""
	dryRun = false
	maxPages = 0
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	allowedHosts = []string{}
	allowedPathPrefix = []string{}
	retries = 0
	delay = 0
	robotsFlag = true
	renderFlag = true
	overwriteLlms = true
	clutterFlag = false
	verboseFlag = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetMaxDepthForTest(depth int) {
	maxDepth = depth
}

func SetConcurrencyForTest(conc int) {
	concurrency = conc
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetMaxPagesForTest(pages int) {
	maxPages = pages
}

func SetUserAgentForTest(agent string) {
	userAgent = agent
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetBaseDelayForTest(delay time.Duration) {
	baseDelay = delay
}

func SetJitterForTest(j time.Duration) {
	jitter = j
}

func SetRandomSeedForTest(seed int64) {
	randomSeed = seed
}

func SetAllowedHostsForTest(hosts []string) {
	allowedHosts = hosts
}

func SetAllowedPathPrefixForTest(prefixes []string) {
	allowedPathPrefix = prefixes
}

func SetRetriesForTest(attempts int) {
	retries = attempts
}

func SetDelayForTest(d time.Duration) {
	delay = d
}

func SetRobotsForTest(enabled bool) {
	robotsFlag = enabled
}

func SetRenderForTest(enabled bool) {
	renderFlag = enabled
}

func SetOverwriteLlmsForTest(enabled bool) {
	overwriteLlms = enabled
}

func SetClutterForTest(enabled bool) {
	clutterFlag = enabled
}

func SetVerboseForTest(enabled bool) {
	verboseFlag = enabled
}
