package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"lofterscraper/pkg/logger"
)

// retryCmd represents the retry command
var retryCmd = &cobra.Command{
	Use:   "retry <failed-list-file>",
	Short: "Download the links saved by an earlier run",
	Long: `Re-drive a failure list written by 'crawl --save-failed'.

Links that download are dropped from the list; the file is removed once every
link has succeeded. Images go to --dir, or to a directory named after the blog
whose list this is.`,
	Example: `  lofterscraper retry someblog_failed.txt --retry-rounds 3 --timeout 30s`,
	Args:    cobra.ExactArgs(1),
	RunE:    runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
	addDownloadFlags(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	cfg, m, cleanup, err := setup(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	printer.Info("Failure list", args[0])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newCrawler(cfg, m)
	defer c.Close()

	report, err := c.Retry(ctx, args[0])
	if err != nil {
		logger.WithError(err).WithField("list", args[0]).Error("Retry aborted")
		return err
	}

	printer.Summary(report)
	finished(report)
	return nil
}
