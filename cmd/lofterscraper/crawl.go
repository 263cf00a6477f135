package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"lofterscraper/pkg/config"
	"lofterscraper/pkg/crawler"
	"lofterscraper/pkg/logger"
	"lofterscraper/pkg/metrics"
	"lofterscraper/pkg/ui"
)

var (
	// Page flags
	maxPages  int
	startPage int
	endPage   int

	// Download flags
	outputDir   string
	workers     int
	replace     bool
	timeout     time.Duration
	cacheSize   int
	retryRounds int
	saveFailed  bool
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl <domain-or-post-link>",
	Short: "Crawl a blog or a single post and download its images",
	Long: `Crawl a lofter blog and download every image it contains.

The argument is either a blog domain ("someblog", "someblog.lofter.com",
"https://someblog.lofter.com/") or a single post link, in which case only that
post is downloaded.

Without --end the last listing page is discovered automatically.`,
	Example: `  # Download a whole blog into a directory named after its title
  lofterscraper crawl someblog

  # Only the first 20 pages, into ./images, with 16 workers
  lofterscraper crawl someblog -m 20 -d ./images -w 16

  # A single post
  lofterscraper crawl https://someblog.lofter.com/post/1d2e3f_4a5b6c

  # Three retry rounds, re-downloading files that already exist
  lofterscraper crawl someblog --retry-rounds 3 --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	addPageFlags(crawlCmd)
	addDownloadFlags(crawlCmd)
}

func addPageFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&maxPages, "max-pages", "m", 0, "crawl at most this many pages (0 = all)")
	cmd.Flags().IntVarP(&startPage, "start", "s", 1, "first listing page")
	cmd.Flags().IntVarP(&endPage, "end", "e", 0, "last listing page, skips discovery (0 = discover)")
}

func addDownloadFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "dir", "d", "", "output directory (default: the blog's title)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 8, "number of concurrent workers")
	cmd.Flags().BoolVarP(&replace, "replace", "r", false, "re-download files that already exist")
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 8*time.Second, "timeout for one request in the first round")
	cmd.Flags().IntVar(&cacheSize, "cache-size", 16, "number of pages kept in the document cache")
	cmd.Flags().IntVar(&retryRounds, "retry-rounds", 1, "retry rounds after the first download pass")
	cmd.Flags().BoolVar(&saveFailed, "save-failed", true, "write links that failed every round to a file")
}

// commandOverrides returns only the flags the user set, so defaults never mask
// values from the config file or the environment.
func commandOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := globalOverrides(cmd)
	changed := cmd.Flags().Changed

	if changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if changed("start") {
		flags["start"] = startPage
	}
	if changed("end") {
		flags["end"] = endPage
	}
	if changed("dir") {
		flags["dir"] = outputDir
	}
	if changed("workers") {
		flags["workers"] = workers
	}
	if changed("replace") {
		flags["replace"] = replace
	}
	if changed("timeout") {
		flags["timeout"] = timeout
	}
	if changed("cache-size") {
		flags["cache-size"] = cacheSize
	}
	if changed("retry-rounds") {
		flags["retry-rounds"] = retryRounds
	}
	if changed("save-failed") {
		flags["save-failed"] = saveFailed
	}
	return flags
}

// setup loads configuration and initializes logging. The returned cleanup
// stops the metrics listener.
func setup(cmd *cobra.Command) (*config.Config, *metrics.Metrics, func(), error) {
	cfg, err := config.Load(configFile, commandOverrides(cmd))
	if err != nil {
		return nil, nil, nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, nil, err
	}

	m := metrics.New()
	cleanup := func() {}
	if cfg.Metrics.Addr != "" {
		shutdown := m.Expose(cfg.Metrics.Addr, logger.GetLogger())
		cleanup = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}
		printer.Info("Metrics", "http://"+cfg.Metrics.Addr+"/metrics")
	}
	return cfg, m, cleanup, nil
}

func newCrawler(cfg *config.Config, m *metrics.Metrics) *crawler.Crawler {
	return crawler.New(cfg, logger.GetLogger(),
		crawler.WithMetrics(m),
		crawler.WithStageHook(printer.Stage),
		crawler.WithRoundHook(printer.Round),
	)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	target := strings.TrimSpace(args[0])

	cfg, m, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.WithField("version", version).Info("lofterscraper starting")
	printer.Info("Target", target)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCrawler(cfg, m)
	defer c.Close()

	report, err := c.Run(ctx, target)
	if err != nil {
		logger.WithError(err).WithField("target", target).Error("Crawl aborted")
		return err
	}

	printer.Summary(report)
	finished(report)
	return nil
}

func finished(report *crawler.Report) {
	if !notify || report.Download == nil {
		return
	}
	ui.NewNotifier().CrawlFinished(report.Domain, report.Download.Succeeded, len(report.Download.Failed))
}
