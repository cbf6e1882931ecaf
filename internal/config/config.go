package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/rohmanhakim/webcrawler/pkg/failure"
)

// Known storage and frontier backends.
const (
	StorageBackendFile   = "file"
	StorageBackendMemory = "memory"
	StorageBackendMongo  = "mongo"

	FrontierBackendMemory = "memory"
	FrontierBackendRedis  = "redis"
)

type Config struct {
	//===============
	//  Crawl scope
	//===============
	// Initial pages to give to the crawler to begin discovering and traversing other pages.
	seedURLs []url.URL
	// Whitelisted hostnames. Empty means the same-domain heuristic (or any host) applies.
	allowedDomains map[string]struct{}
	// Restrict discovered links to the seed hosts when no explicit allow-list is set.
	sameDomainOnly bool
	// Substring/regex patterns whose match drops a discovered URL.
	excludedPatterns []string

	//===============
	// Limits
	//===============
	// Maximum number of hyperlink hops from a seed URL. 0 means seeds only.
	maxDepth int
	// Global budget of crawled results.
	maxPages int

	//===============
	// Politeness
	//===============
	// Size of the worker pool.
	numWorkers int
	// Global pacing target; the in-flight cap is 2*requestsPerSecond.
	requestsPerSecond float64
	// Minimum spacing between two requests to the same host.
	perDomainDelay time.Duration
	// Randomized variation added on top of the per-domain delay.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// Whether the robots gate is consulted before fetching.
	respectRobots bool

	//===============
	// Fetch
	//===============
	// Maximum wall-clock time of a single fetch attempt.
	requestTimeout time.Duration
	// User agent used in request headers and as the robots match key.
	userAgent string
	// Redirect policy.
	followRedirects bool
	maxRedirects    int
	// Fetcher retry state machine.
	maxRetries int
	retryDelay time.Duration

	//===============
	// Dynamic rendering
	//===============
	enableDynamic   bool
	dynamicWaitTime time.Duration
	dynamicPatterns []string

	//===============
	// Storage
	//===============
	storageBackend  string
	storagePath     string
	mongoURI        string
	mongoDatabase   string
	mongoCollection string
	// If false, raw HTML is cleared before persisting a result.
	storeRawHTML bool

	//===============
	// Frontier
	//===============
	frontierBackend string
	redisAddr       string
	redisKeyPrefix  string
}

// DefaultExcludedPatterns drops binary/document/media extensions and
// auth-related paths that never yield crawlable HTML.
func DefaultExcludedPatterns() []string {
	return []string{
		`\.jpg$`, `\.jpeg$`, `\.png$`, `\.gif$`, `\.svg$`, `\.ico$`, `\.webp$`,
		`\.css$`, `\.js$`, `\.json$`, `\.xml$`,
		`\.pdf$`, `\.doc$`, `\.docx$`, `\.xls$`, `\.xlsx$`, `\.ppt$`, `\.pptx$`,
		`\.zip$`, `\.tar$`, `\.gz$`, `\.rar$`, `\.7z$`,
		`\.mp3$`, `\.mp4$`, `\.avi$`, `\.mov$`, `\.wmv$`, `\.flv$`,
		`\.exe$`, `\.dmg$`, `\.apk$`,
		"/login", "/logout", "/signin", "/signout", "/signup", "/register",
		"/auth/", "/account/password",
	}
}

type configDTO struct {
	SeedURLs         []string `json:"seed_urls"`
	AllowedDomains   []string `json:"allowed_domains,omitempty"`
	SameDomainOnly   *bool    `json:"same_domain_only,omitempty"`
	ExcludedPatterns []string `json:"excluded_patterns,omitempty"`
	MaxDepth         *int     `json:"max_depth,omitempty"`
	MaxPages         *int     `json:"max_pages,omitempty"`
	NumWorkers       *int     `json:"num_workers,omitempty"`
	RequestsPerSec   *float64 `json:"requests_per_second,omitempty"`
	PerDomainDelayS  *float64 `json:"per_domain_delay,omitempty"`
	JitterS          *float64 `json:"jitter,omitempty"`
	RandomSeed       *int64   `json:"random_seed,omitempty"`
	RespectRobots    *bool    `json:"respect_robots,omitempty"`
	RequestTimeoutS  *float64 `json:"request_timeout,omitempty"`
	UserAgent        string   `json:"user_agent,omitempty"`
	FollowRedirects  *bool    `json:"follow_redirects,omitempty"`
	MaxRedirects     *int     `json:"max_redirects,omitempty"`
	MaxRetries       *int     `json:"max_retries,omitempty"`
	RetryDelayS      *float64 `json:"retry_delay,omitempty"`
	EnableDynamic    *bool    `json:"enable_dynamic,omitempty"`
	DynamicWaitTimeS *float64 `json:"dynamic_wait_time,omitempty"`
	DynamicPatterns  []string `json:"dynamic_patterns,omitempty"`
	StorageBackend   string   `json:"storage_backend,omitempty"`
	StoragePath      string   `json:"storage_path,omitempty"`
	MongoURI         string   `json:"mongo_uri,omitempty"`
	MongoDatabase    string   `json:"mongo_database,omitempty"`
	MongoCollection  string   `json:"mongo_collection,omitempty"`
	StoreRawHTML     *bool    `json:"store_raw_html,omitempty"`
	FrontierBackend  string   `json:"frontier_backend,omitempty"`
	RedisAddr        string   `json:"redis_addr,omitempty"`
	RedisKeyPrefix   string   `json:"redis_key_prefix,omitempty"`
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	seeds := make([]url.URL, 0, len(dto.SeedURLs))
	for _, raw := range dto.SeedURLs {
		parsed, err := url.Parse(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: bad seed URL %q: %s", ErrInvalidConfig, raw, err)
		}
		seeds = append(seeds, *parsed)
	}

	builder := WithDefault(seeds)

	if len(dto.AllowedDomains) > 0 {
		allowed := make(map[string]struct{}, len(dto.AllowedDomains))
		for _, host := range dto.AllowedDomains {
			if host != "" {
				allowed[host] = struct{}{}
			}
		}
		builder.WithAllowedDomains(allowed)
	}
	if dto.SameDomainOnly != nil {
		builder.WithSameDomainOnly(*dto.SameDomainOnly)
	}
	if dto.ExcludedPatterns != nil {
		builder.WithExcludedPatterns(dto.ExcludedPatterns)
	}
	if dto.MaxDepth != nil {
		builder.WithMaxDepth(*dto.MaxDepth)
	}
	if dto.MaxPages != nil {
		builder.WithMaxPages(*dto.MaxPages)
	}
	if dto.NumWorkers != nil {
		builder.WithNumWorkers(*dto.NumWorkers)
	}
	if dto.RequestsPerSec != nil {
		builder.WithRequestsPerSecond(*dto.RequestsPerSec)
	}
	if dto.PerDomainDelayS != nil {
		builder.WithPerDomainDelay(secondsToDuration(*dto.PerDomainDelayS))
	}
	if dto.JitterS != nil {
		builder.WithJitter(secondsToDuration(*dto.JitterS))
	}
	if dto.RandomSeed != nil {
		builder.WithRandomSeed(*dto.RandomSeed)
	}
	if dto.RespectRobots != nil {
		builder.WithRespectRobots(*dto.RespectRobots)
	}
	if dto.RequestTimeoutS != nil {
		builder.WithRequestTimeout(secondsToDuration(*dto.RequestTimeoutS))
	}
	if dto.UserAgent != "" {
		builder.WithUserAgent(dto.UserAgent)
	}
	if dto.FollowRedirects != nil {
		builder.WithFollowRedirects(*dto.FollowRedirects)
	}
	if dto.MaxRedirects != nil {
		builder.WithMaxRedirects(*dto.MaxRedirects)
	}
	if dto.MaxRetries != nil {
		builder.WithMaxRetries(*dto.MaxRetries)
	}
	if dto.RetryDelayS != nil {
		builder.WithRetryDelay(secondsToDuration(*dto.RetryDelayS))
	}
	if dto.EnableDynamic != nil {
		builder.WithEnableDynamic(*dto.EnableDynamic)
	}
	if dto.DynamicWaitTimeS != nil {
		builder.WithDynamicWaitTime(secondsToDuration(*dto.DynamicWaitTimeS))
	}
	if dto.DynamicPatterns != nil {
		builder.WithDynamicPatterns(dto.DynamicPatterns)
	}
	if dto.StorageBackend != "" {
		builder.WithStorageBackend(dto.StorageBackend)
	}
	if dto.StoragePath != "" {
		builder.WithStoragePath(dto.StoragePath)
	}
	if dto.MongoURI != "" {
		builder.WithMongo(dto.MongoURI, dto.MongoDatabase, dto.MongoCollection)
	}
	if dto.StoreRawHTML != nil {
		builder.WithStoreRawHTML(*dto.StoreRawHTML)
	}
	if dto.FrontierBackend != "" {
		builder.WithFrontierBackend(dto.FrontierBackend)
	}
	if dto.RedisAddr != "" {
		builder.WithRedis(dto.RedisAddr, dto.RedisKeyPrefix)
	}

	return builder.Build()
}

// WithConfigFile loads, parses, and validates a JSON config file.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}
	cfgDTO := configDTO{}

	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	cfg, err := newConfigFromDTO(cfgDTO)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// WithDefault creates a new Config builder with the provided seed URLs and
// default values for all other fields. Build validates; an empty seed list
// surfaces there, not here.
func WithDefault(seedUrls []url.URL) *Config {
	defaultConfig := Config{
		seedURLs:          seedUrls,
		allowedDomains:    map[string]struct{}{},
		sameDomainOnly:    true,
		excludedPatterns:  DefaultExcludedPatterns(),
		maxDepth:          3,
		maxPages:          100,
		numWorkers:        4,
		requestsPerSecond: 2.0,
		perDomainDelay:    time.Second,
		jitter:            0,
		randomSeed:        time.Now().UnixNano(),
		respectRobots:     true,
		requestTimeout:    30 * time.Second,
		userAgent:         "WebCrawler/1.0",
		followRedirects:   true,
		maxRedirects:      5,
		maxRetries:        3,
		retryDelay:        time.Second,
		enableDynamic:     false,
		dynamicWaitTime:   5 * time.Second,
		dynamicPatterns:   []string{},
		storageBackend:    StorageBackendFile,
		storagePath:       "./crawl_output",
		mongoCollection:   "crawl_results",
		storeRawHTML:      false,
		frontierBackend:   FrontierBackendMemory,
		redisKeyPrefix:    "crawler:",
	}
	return &defaultConfig
}

func (c *Config) WithSeedUrls(urls []url.URL) *Config {
	c.seedURLs = urls
	return c
}

func (c *Config) WithAllowedDomains(hosts map[string]struct{}) *Config {
	c.allowedDomains = hosts
	return c
}

func (c *Config) WithSameDomainOnly(sameDomainOnly bool) *Config {
	c.sameDomainOnly = sameDomainOnly
	return c
}

func (c *Config) WithExcludedPatterns(patterns []string) *Config {
	c.excludedPatterns = patterns
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.maxDepth = depth
	return c
}

func (c *Config) WithMaxPages(pages int) *Config {
	c.maxPages = pages
	return c
}

func (c *Config) WithNumWorkers(workers int) *Config {
	c.numWorkers = workers
	return c
}

func (c *Config) WithRequestsPerSecond(rps float64) *Config {
	c.requestsPerSecond = rps
	return c
}

func (c *Config) WithPerDomainDelay(delay time.Duration) *Config {
	c.perDomainDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithRespectRobots(respect bool) *Config {
	c.respectRobots = respect
	return c
}

func (c *Config) WithRequestTimeout(timeout time.Duration) *Config {
	c.requestTimeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithFollowRedirects(follow bool) *Config {
	c.followRedirects = follow
	return c
}

func (c *Config) WithMaxRedirects(max int) *Config {
	c.maxRedirects = max
	return c
}

func (c *Config) WithMaxRetries(retries int) *Config {
	c.maxRetries = retries
	return c
}

func (c *Config) WithRetryDelay(delay time.Duration) *Config {
	c.retryDelay = delay
	return c
}

func (c *Config) WithEnableDynamic(enable bool) *Config {
	c.enableDynamic = enable
	return c
}

func (c *Config) WithDynamicWaitTime(wait time.Duration) *Config {
	c.dynamicWaitTime = wait
	return c
}

func (c *Config) WithDynamicPatterns(patterns []string) *Config {
	c.dynamicPatterns = patterns
	return c
}

func (c *Config) WithStorageBackend(backend string) *Config {
	c.storageBackend = backend
	return c
}

func (c *Config) WithStoragePath(path string) *Config {
	c.storagePath = path
	return c
}

func (c *Config) WithMongo(uri, database, collection string) *Config {
	c.mongoURI = uri
	c.mongoDatabase = database
	if collection != "" {
		c.mongoCollection = collection
	}
	return c
}

func (c *Config) WithStoreRawHTML(store bool) *Config {
	c.storeRawHTML = store
	return c
}

func (c *Config) WithFrontierBackend(backend string) *Config {
	c.frontierBackend = backend
	return c
}

func (c *Config) WithRedis(addr, keyPrefix string) *Config {
	c.redisAddr = addr
	if keyPrefix != "" {
		c.redisKeyPrefix = keyPrefix
	}
	return c
}

// Build validates the assembled configuration. Any violation is fatal: the
// returned error is a *ConfigError with SeverityFatal.
func (c *Config) Build() (Config, error) {
	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	// If same-domain mode is on and no explicit allow-list is configured,
	// infer the allow-list from the seed hosts.
	if c.sameDomainOnly && len(c.allowedDomains) == 0 {
		c.allowedDomains = make(map[string]struct{})
		for _, u := range c.seedURLs {
			if u.Host != "" {
				c.allowedDomains[u.Host] = struct{}{}
			}
		}
	}

	return *c, nil
}

// Validate checks every option against its allowed range.
func (c *Config) Validate() failure.ClassifiedError {
	if len(c.seedURLs) == 0 {
		return &ConfigError{Field: "seed_urls", Message: "cannot be empty"}
	}
	for _, u := range c.seedURLs {
		if u.Scheme != "http" && u.Scheme != "https" {
			return &ConfigError{Field: "seed_urls", Message: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
		}
		if u.Host == "" {
			return &ConfigError{Field: "seed_urls", Message: fmt.Sprintf("missing host in %q", u.String())}
		}
	}
	if c.maxDepth < 0 {
		return &ConfigError{Field: "max_depth", Message: "must be >= 0"}
	}
	if c.maxPages < 1 {
		return &ConfigError{Field: "max_pages", Message: "must be >= 1"}
	}
	if c.requestTimeout < time.Second {
		return &ConfigError{Field: "request_timeout", Message: "must be >= 1s"}
	}
	if c.maxRetries < 0 {
		return &ConfigError{Field: "max_retries", Message: "must be >= 0"}
	}
	if c.retryDelay < 0 {
		return &ConfigError{Field: "retry_delay", Message: "must be >= 0"}
	}
	if c.requestsPerSecond <= 0 {
		return &ConfigError{Field: "requests_per_second", Message: "must be > 0"}
	}
	if c.perDomainDelay < 0 {
		return &ConfigError{Field: "per_domain_delay", Message: "must be >= 0"}
	}
	if c.numWorkers < 1 {
		return &ConfigError{Field: "num_workers", Message: "must be >= 1"}
	}
	if c.maxRedirects < 0 {
		return &ConfigError{Field: "max_redirects", Message: "must be >= 0"}
	}
	switch c.storageBackend {
	case StorageBackendFile, StorageBackendMemory, StorageBackendMongo:
	default:
		return &ConfigError{Field: "storage_backend", Message: fmt.Sprintf("unknown backend %q", c.storageBackend)}
	}
	if c.storageBackend == StorageBackendMongo && c.mongoURI == "" {
		return &ConfigError{Field: "mongo_uri", Message: "required for the mongo backend"}
	}
	switch c.frontierBackend {
	case FrontierBackendMemory, FrontierBackendRedis:
	default:
		return &ConfigError{Field: "frontier_backend", Message: fmt.Sprintf("unknown backend %q", c.frontierBackend)}
	}
	if c.frontierBackend == FrontierBackendRedis && c.redisAddr == "" {
		return &ConfigError{Field: "redis_addr", Message: "required for the redis frontier"}
	}
	return nil
}

func (c Config) SeedURLs() []url.URL {
	urls := make([]url.URL, len(c.seedURLs))
	copy(urls, c.seedURLs)
	return urls
}

func (c Config) AllowedDomains() map[string]struct{} {
	hosts := make(map[string]struct{})
	for k, v := range c.allowedDomains {
		hosts[k] = v
	}
	return hosts
}

func (c Config) SameDomainOnly() bool {
	return c.sameDomainOnly
}

func (c Config) ExcludedPatterns() []string {
	patterns := make([]string, len(c.excludedPatterns))
	copy(patterns, c.excludedPatterns)
	return patterns
}

func (c Config) MaxDepth() int {
	return c.maxDepth
}

func (c Config) MaxPages() int {
	return c.maxPages
}

func (c Config) NumWorkers() int {
	return c.numWorkers
}

func (c Config) RequestsPerSecond() float64 {
	return c.requestsPerSecond
}

func (c Config) PerDomainDelay() time.Duration {
	return c.perDomainDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) RespectRobots() bool {
	return c.respectRobots
}

func (c Config) RequestTimeout() time.Duration {
	return c.requestTimeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) FollowRedirects() bool {
	return c.followRedirects
}

func (c Config) MaxRedirects() int {
	return c.maxRedirects
}

func (c Config) MaxRetries() int {
	return c.maxRetries
}

func (c Config) RetryDelay() time.Duration {
	return c.retryDelay
}

func (c Config) EnableDynamic() bool {
	return c.enableDynamic
}

func (c Config) DynamicWaitTime() time.Duration {
	return c.dynamicWaitTime
}

func (c Config) DynamicPatterns() []string {
	patterns := make([]string, len(c.dynamicPatterns))
	copy(patterns, c.dynamicPatterns)
	return patterns
}

func (c Config) StorageBackend() string {
	return c.storageBackend
}

func (c Config) StoragePath() string {
	return c.storagePath
}

func (c Config) MongoURI() string {
	return c.mongoURI
}

func (c Config) MongoDatabase() string {
	return c.mongoDatabase
}

func (c Config) MongoCollection() string {
	return c.mongoCollection
}

func (c Config) StoreRawHTML() bool {
	return c.storeRawHTML
}

func (c Config) FrontierBackend() string {
	return c.frontierBackend
}

func (c Config) RedisAddr() string {
	return c.redisAddr
}

func (c Config) RedisKeyPrefix() string {
	return c.redisKeyPrefix
}
