package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"lofterscraper/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	metricsAddr string
	notify      bool
	quiet       bool
	verbose     bool

	printer *ui.Printer
)

// rootCmd represents the base command. Given a positional argument it behaves
// like `crawl`.
var rootCmd = &cobra.Command{
	Use:   "lofterscraper [domain-or-post-link]",
	Short: "Download every image from a lofter blog",
	Long: `lofterscraper crawls a lofter blog, finds all of its listing pages, collects
the posts on each page and downloads every image they contain.

Images that still fail after all retry rounds are listed at the end and can be
saved to a file for a later 'lofterscraper retry'.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		printer = ui.NewPrinter(os.Stdout, quiet)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runCrawl(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if printer == nil {
			printer = ui.NewPrinter(os.Stderr, false)
		}
		printer.Error("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.lofterscraper.yaml or $HOME/.lofterscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors and failed links")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every request and download")

	addDownloadFlags(rootCmd)
	addPageFlags(rootCmd)

	rootCmd.SetVersionTemplate(`lofterscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalOverrides collects the persistent flags that map onto configuration
func globalOverrides(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	switch {
	case cmd.Flags().Changed("log-level"):
		flags["log-level"] = logLevel
	case verbose:
		flags["log-level"] = "debug"
	case quiet:
		flags["log-level"] = "error"
	}
	if cmd.Flags().Changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	return flags
}
