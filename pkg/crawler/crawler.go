package crawler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"lofterscraper/internal/discover"
	"lofterscraper/internal/downloader"
	"lofterscraper/internal/harvest"
	"lofterscraper/internal/pool"
	"lofterscraper/pkg/cache"
	"lofterscraper/pkg/config"
	apperrors "lofterscraper/pkg/errors"
	"lofterscraper/pkg/failurelog"
	"lofterscraper/pkg/fetcher"
	"lofterscraper/pkg/lofter"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
	"lofterscraper/pkg/ratelimit"
	"lofterscraper/pkg/retry"
	"lofterscraper/pkg/storage"
)

// Stage names reported through the stage hook
const (
	StageDiscover = "discover"
	StagePosts    = "posts"
	StageImages   = "images"
	StageDownload = "download"
)

// StageReport summarizes one finished pipeline stage
type StageReport struct {
	Name    string
	Count   int
	Elapsed time.Duration
}

// Report describes a finished run
type Report struct {
	RunID     string
	Domain    string
	Post      string
	Directory string

	// Page range; zero for single-post runs and retries
	StartPage int
	EndPage   int
	Probes    int

	Posts  int
	Images int
	Stages []StageReport

	Download *downloader.Result
	// FailedListPath is set when permanent failures were written to disk
	FailedListPath string
}

// Crawler runs the discover, harvest and download pipeline for one blog
type Crawler struct {
	config     *config.Config
	site       lofter.Site
	pool       *pool.Pool
	client     *fetcher.Client
	harvester  *harvest.Harvester
	downloader *downloader.Downloader
	metrics    *metrics.Metrics
	logger     logger.Logger

	httpClient *http.Client
	onStage    func(StageReport)
	onRound    func(downloader.RoundReport)
}

// Option configures a Crawler
type Option func(*Crawler)

// WithHTTPClient routes every request through hc
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Crawler) { c.httpClient = hc }
}

// WithMetrics records run metrics into m
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Crawler) { c.metrics = m }
}

// WithStageHook is called after every pipeline stage
func WithStageHook(fn func(StageReport)) Option {
	return func(c *Crawler) { c.onStage = fn }
}

// WithRoundHook is called after every download round
func WithRoundHook(fn func(downloader.RoundReport)) Option {
	return func(c *Crawler) { c.onRound = fn }
}

// New wires the pipeline from cfg. Close releases the worker pool.
func New(cfg *config.Config, log logger.Logger, opts ...Option) *Crawler {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Crawler{
		config: cfg,
		site:   lofter.NewSite(cfg.Site.Scheme, cfg.Site.BaseDomain),
		logger: log,
	}
	for _, opt := range opts {
		opt(c)
	}

	fetchOpts := []fetcher.Option{
		fetcher.WithCache(cache.New(cfg.Cache.Capacity)),
		fetcher.WithLimiter(ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)),
		fetcher.WithMetrics(c.metrics),
	}
	if c.httpClient != nil {
		fetchOpts = append(fetchOpts, fetcher.WithHTTPClient(c.httpClient))
	}

	c.pool = pool.New(cfg.Download.Workers, log)
	c.client = fetcher.NewClient(cfg, log, fetchOpts...)
	c.harvester = harvest.New(c.pool, c.client, c.site, log, c.metrics)
	c.downloader = downloader.New(c.pool, c.client, log, c.metrics)
	c.downloader.OnRound = c.onRound
	return c
}

// Close stops the worker pool
func (c *Crawler) Close() {
	c.pool.Close()
}

func (c *Crawler) stage(report *Report, log logger.Logger, name string, count int, began time.Time) {
	s := StageReport{Name: name, Count: count, Elapsed: time.Since(began)}
	report.Stages = append(report.Stages, s)
	logger.LogStage(log, name, count, s.Elapsed)
	if c.onStage != nil {
		c.onStage(s)
	}
}

// Run crawls raw, a blog domain or a single post address. Fatal input errors
// are returned before any harvesting starts; every other failure is reflected
// in the report.
func (c *Crawler) Run(ctx context.Context, raw string) (*Report, error) {
	target, err := c.site.Resolve(raw)
	if err != nil {
		return nil, err
	}

	report := &Report{RunID: uuid.NewString(), Domain: target.Domain, Post: target.Post}
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"domain": target.Domain,
	})
	log.Info("Crawl started")

	if !target.IsPost() {
		began := time.Now()
		start, end, probes, err := c.pageRange(ctx, target.Domain, log)
		if err != nil {
			return nil, err
		}
		report.StartPage, report.EndPage, report.Probes = start, end, probes
		c.stage(report, log, StageDiscover, end-start+1, began)
	}

	// Discovery has just fetched the front page, so the title is still cached.
	store, err := c.store(ctx, target.Domain)
	if err != nil {
		return nil, err
	}
	report.Directory = store.Dir()

	posts := []string{target.Post}
	if !target.IsPost() {
		began := time.Now()
		posts = c.harvester.Posts(ctx, target.Domain, report.StartPage, report.EndPage)
		c.stage(report, log, StagePosts, len(posts), began)
	}
	report.Posts = len(posts)

	began := time.Now()
	images := c.harvester.Images(ctx, posts)
	report.Images = len(images)
	c.stage(report, log, StageImages, len(images), began)

	began = time.Now()
	report.Download = c.downloader.Run(ctx, store, images, c.config.Download.Replace, retry.FromConfig(c.config.Download))
	c.stage(report, log, StageDownload, report.Download.Succeeded, began)

	if len(report.Download.Failed) > 0 && c.config.Download.SaveFailed {
		path := failurelog.PathFor(c.config.Download.FailedDir, target.Domain)
		if err := failurelog.Write(path, report.Download.Failed); err != nil {
			log.WithError(err).Error("Failed to save failure list")
		} else {
			report.FailedListPath = path
		}
	}

	log.InfoWithFields("Crawl finished", map[string]interface{}{
		"images":    report.Images,
		"succeeded": report.Download.Succeeded,
		"failed":    len(report.Download.Failed),
	})
	return report, nil
}

// pageRange returns the pages to harvest. An explicit end page skips
// discovery, but the start page is still checked.
func (c *Crawler) pageRange(ctx context.Context, domain string, log logger.Logger) (int, int, int, error) {
	start := c.config.Crawl.StartPage
	d := discover.New(
		discover.ProberFunc(c.harvester.Prober(domain)),
		discover.WithSeedSpan(c.config.Crawl.SeedSpan),
		discover.WithCeiling(c.config.Crawl.PageCeiling),
		discover.WithLogger(log),
		discover.WithMetrics(c.metrics),
	)

	if end := c.config.Crawl.EndPage; end > 0 {
		if end < start {
			return 0, 0, 0, apperrors.Fatal("crawl", "end page %d is before start page %d", end, start)
		}
		// A single-page bound probes only the start page.
		if _, err := d.EndPage(ctx, start, 1); err != nil {
			return 0, 0, 0, err
		}
		return start, end, d.Probes(), nil
	}

	end, err := d.EndPage(ctx, start, c.config.Crawl.MaxPages)
	if err != nil {
		return 0, 0, 0, err
	}
	log.InfoWithFields("Page range discovered", map[string]interface{}{
		"start":  start,
		"end":    end,
		"probes": d.Probes(),
	})
	return start, end, d.Probes(), nil
}

// store opens the download directory: the configured one, else the blog's
// title, else the domain.
func (c *Crawler) store(ctx context.Context, domain string) (*storage.Manager, error) {
	dir := c.config.Download.Directory
	if dir == "" && domain != "" {
		dir = lofter.SanitizeDirName(c.harvester.Title(ctx, domain))
		if dir == "" {
			dir = domain
		}
	}
	if dir == "" {
		dir = "."
	}
	return storage.NewManager(filepath.Clean(dir))
}

// Retry re-drives a failure list written by an earlier run. The list is
// rewritten with the links that still fail, or removed when none do.
func (c *Crawler) Retry(ctx context.Context, listPath string) (*Report, error) {
	links, err := failurelog.Read(listPath)
	if err != nil {
		return nil, apperrors.Fatal("retry", "%v", err)
	}

	domain := failurelog.DomainFromPath(listPath)
	report := &Report{RunID: uuid.NewString(), Domain: domain, Images: len(links)}
	log := c.logger.WithFields(map[string]interface{}{
		"run_id": report.RunID,
		"list":   listPath,
	})
	log.InfoWithFields("Retry started", map[string]interface{}{"links": len(links)})

	store, err := c.store(ctx, domain)
	if err != nil {
		return nil, err
	}
	report.Directory = store.Dir()

	began := time.Now()
	report.Download = c.downloader.Run(ctx, store, links, c.config.Download.Replace, retry.FromConfig(c.config.Download))
	c.stage(report, log, StageDownload, report.Download.Succeeded, began)

	if len(report.Download.Failed) > 0 {
		if err := failurelog.Write(listPath, report.Download.Failed); err != nil {
			log.WithError(err).Error("Failed to update failure list")
		} else {
			report.FailedListPath = listPath
		}
	} else if err := os.Remove(listPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to remove failure list")
	}
	return report, nil
}
