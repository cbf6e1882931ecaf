package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/webcrawler/internal/build"
	"github.com/rohmanhakim/webcrawler/internal/config"
	"github.com/rohmanhakim/webcrawler/internal/scheduler"
)

var (
	cfgFile           string
	seedURLs          []string
	maxDepth          int
	maxPages          int
	numWorkers        int
	sameDomainOnly    bool
	allowedDomains    []string
	excludedPatterns  []string
	userAgent         string
	requestTimeout    time.Duration
	followRedirects   bool
	maxRedirects      int
	maxRetries        int
	retryDelay        time.Duration
	requestsPerSecond float64
	perDomainDelay    time.Duration
	respectRobots     bool
	storeRawHTML      bool
	storageBackend    string
	storagePath       string
	mongoURI          string
	mongoDatabase     string
	mongoCollection   string
	frontierBackend   string
	redisAddr         string
	redisKeyPrefix    string
	enableDynamic     bool
	dynamicWaitTime   time.Duration
	dynamicPatterns   []string
	showVersion       bool
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

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "webcrawler",
	Short: "A polite, concurrent web crawler.",
	Long: `webcrawler discovers and fetches HTML pages from one or more seed URLs,
up to a bounded depth and page count. It extracts structured content and
outbound links, respects robots.txt and per-host pacing, and persists
results through a pluggable storage backend.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Printf("%s %s\n", build.AppName, build.FullVersion())
			return nil
		}

		cfg, err := buildConfig()
		if err != nil {
			return err
		}

		sched, err := scheduler.NewScheduler(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := sched.ExecuteCrawl(ctx)
		if err != nil {
			return err
		}

		printReport(cmd, report)
		return nil
	},
}

func printReport(cmd *cobra.Command, report scheduler.CrawlReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Crawl finished in %s\n", report.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Pages crawled:    %d\n", report.PagesCrawled)
	fmt.Fprintf(out, "  Pages failed:     %d\n", report.PagesFailed)
	fmt.Fprintf(out, "  Pages skipped:    %d\n", report.PagesSkipped)
	fmt.Fprintf(out, "  URLs found:       %d\n", report.URLsFound)
	fmt.Fprintf(out, "  Bytes downloaded: %d\n", report.BytesDownloaded)
	fmt.Fprintf(out, "  Domains:          %d\n", len(report.Domains))
	if report.PagesPerSecond > 0 {
		fmt.Fprintf(out, "  Pages/second:     %.2f\n", report.PagesPerSecond)
	}
}

// buildConfig funnels a config file or the flag set into one validated Config.
func buildConfig() (config.Config, error) {
	if cfgFile != "" {
		return config.WithConfigFile(cfgFile)
	}

	parsedSeeds, err := parseSeedURLs(seedURLs)
	if err != nil {
		return config.Config{}, err
	}

	builder := config.WithDefault(parsedSeeds)

	if maxDepth >= 0 {
		builder.WithMaxDepth(maxDepth)
	}
	if maxPages > 0 {
		builder.WithMaxPages(maxPages)
	}
	if numWorkers > 0 {
		builder.WithNumWorkers(numWorkers)
	}
	builder.WithSameDomainOnly(sameDomainOnly)
	if len(allowedDomains) > 0 {
		builder.WithAllowedDomains(parseStringSliceToSet(allowedDomains))
	}
	if len(excludedPatterns) > 0 {
		builder.WithExcludedPatterns(excludedPatterns)
	}
	if userAgent != "" {
		builder.WithUserAgent(userAgent)
	}
	if requestTimeout > 0 {
		builder.WithRequestTimeout(requestTimeout)
	}
	builder.WithFollowRedirects(followRedirects)
	if maxRedirects >= 0 {
		builder.WithMaxRedirects(maxRedirects)
	}
	if maxRetries >= 0 {
		builder.WithMaxRetries(maxRetries)
	}
	if retryDelay > 0 {
		builder.WithRetryDelay(retryDelay)
	}
	if requestsPerSecond > 0 {
		builder.WithRequestsPerSecond(requestsPerSecond)
	}
	if perDomainDelay >= 0 {
		builder.WithPerDomainDelay(perDomainDelay)
	}
	builder.WithRespectRobots(respectRobots)
	builder.WithStoreRawHTML(storeRawHTML)
	if storageBackend != "" {
		builder.WithStorageBackend(storageBackend)
	}
	if storagePath != "" {
		builder.WithStoragePath(storagePath)
	}
	if mongoURI != "" {
		builder.WithMongo(mongoURI, mongoDatabase, mongoCollection)
	}
	if frontierBackend != "" {
		builder.WithFrontierBackend(frontierBackend)
	}
	if redisAddr != "" {
		builder.WithRedis(redisAddr, redisKeyPrefix)
	}
	builder.WithEnableDynamic(enableDynamic)
	if dynamicWaitTime > 0 {
		builder.WithDynamicWaitTime(dynamicWaitTime)
	}
	if len(dynamicPatterns) > 0 {
		builder.WithDynamicPatterns(dynamicPatterns)
	}

	return builder.Build()
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config-file", "", "JSON config file path (overrides all other flags)")
	flags.StringArrayVar(&seedURLs, "seed-url", []string{}, "one or more starting URLs (can be repeated)")
	flags.IntVar(&maxDepth, "max-depth", 3, "maximum link depth from a seed URL (0 = seeds only)")
	flags.IntVar(&maxPages, "max-pages", 100, "global budget of crawled pages")
	flags.IntVar(&numWorkers, "num-workers", 4, "number of concurrent crawl workers")
	flags.BoolVar(&sameDomainOnly, "same-domain-only", true, "restrict discovered links to the seed hosts")
	flags.StringArrayVar(&allowedDomains, "allowed-domain", []string{}, "explicit hostname allowlist (overrides same-domain heuristic)")
	flags.StringArrayVar(&excludedPatterns, "excluded-pattern", []string{}, "patterns whose match drops a discovered URL")
	flags.StringVar(&userAgent, "user-agent", "", "user agent for HTTP requests and robots matching")
	flags.DurationVar(&requestTimeout, "request-timeout", 30*time.Second, "per-fetch wall-clock timeout")
	flags.BoolVar(&followRedirects, "follow-redirects", true, "follow HTTP redirects")
	flags.IntVar(&maxRedirects, "max-redirects", 5, "maximum redirects per fetch")
	flags.IntVar(&maxRetries, "max-retries", 3, "additional fetch attempts after a transport failure")
	flags.DurationVar(&retryDelay, "retry-delay", time.Second, "base delay of the fetch retry backoff")
	flags.Float64Var(&requestsPerSecond, "requests-per-second", 2.0, "global pacing target")
	flags.DurationVar(&perDomainDelay, "per-domain-delay", time.Second, "minimum spacing between requests to one host")
	flags.BoolVar(&respectRobots, "respect-robots", true, "consult robots.txt before fetching")
	flags.BoolVar(&storeRawHTML, "store-raw-html", false, "keep raw HTML in persisted results")
	flags.StringVar(&storageBackend, "storage-backend", "", "storage backend: file, memory, or mongo")
	flags.StringVar(&storagePath, "storage-path", "", "directory for the file storage backend")
	flags.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection URI (mongo backend)")
	flags.StringVar(&mongoDatabase, "mongo-database", "", "MongoDB database name (mongo backend)")
	flags.StringVar(&mongoCollection, "mongo-collection", "", "MongoDB collection name (mongo backend)")
	flags.StringVar(&frontierBackend, "frontier-backend", "", "frontier backend: memory or redis")
	flags.StringVar(&redisAddr, "redis-addr", "", "Redis address (redis frontier)")
	flags.StringVar(&redisKeyPrefix, "redis-key-prefix", "", "Redis key prefix (redis frontier)")
	flags.BoolVar(&enableDynamic, "enable-dynamic", false, "route matching URLs through the dynamic fetcher")
	flags.DurationVar(&dynamicWaitTime, "dynamic-wait", 5*time.Second, "post-load settle time for dynamic rendering")
	flags.StringArrayVar(&dynamicPatterns, "dynamic-pattern", []string{}, "URL patterns rendered dynamically")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
}

// ResetFlags restores every flag variable to its registered default between tests.
func ResetFlags() {
	cfgFile = ""
	seedURLs = []string{}
	maxDepth = 3
	maxPages = 100
	numWorkers = 4
	sameDomainOnly = true
	allowedDomains = []string{}
	excludedPatterns = []string{}
	userAgent = ""
	requestTimeout = 30 * time.Second
	followRedirects = true
	maxRedirects = 5
	maxRetries = 3
	retryDelay = time.Second
	requestsPerSecond = 2.0
	perDomainDelay = time.Second
	respectRobots = true
	storeRawHTML = false
	storageBackend = ""
	storagePath = ""
	mongoURI = ""
	mongoDatabase = ""
	mongoCollection = ""
	frontierBackend = ""
	redisAddr = ""
	redisKeyPrefix = ""
	enableDynamic = false
	dynamicWaitTime = 5 * time.Second
	dynamicPatterns = []string{}
	showVersion = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetSeedURLsForTest(urls []string) {
	seedURLs = urls
}

func SetStorageBackendForTest(backend string) {
	storageBackend = backend
}

func SetRespectRobotsForTest(respect bool) {
	respectRobots = respect
}

// BuildConfigForTest exposes the flag-to-config funnel for tests.
func BuildConfigForTest() (config.Config, error) {
	return buildConfig()
}
