package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"lofterscraper/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage lofterscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (LOFTERSCRAPER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write every option with its default value to 'lofterscraper.yaml', or to the
path given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "lofterscraper.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	printer.Success("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Edit the file to change workers, timeouts or the output directory")
	fmt.Println("2. Run 'lofterscraper config validate' to check it")
	fmt.Println("3. Start downloading with 'lofterscraper crawl <domain>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalOverrides(cmd))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	printer.Highlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		for _, candidate := range []string{
			"lofterscraper.yaml",
			".lofterscraper.yaml",
			filepath.Join(os.Getenv("HOME"), ".lofterscraper.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "lofterscraper", "config.yaml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path == "" {
		return fmt.Errorf("no configuration file found, specify one with --config")
	}

	printer.Info("Validating configuration", path)

	cfg, err := config.Load(path, nil)
	if err != nil {
		return err
	}

	if cfg.Download.Directory != "" {
		if err := os.MkdirAll(cfg.Download.Directory, 0755); err != nil {
			return fmt.Errorf("cannot create output directory: %w", err)
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return fmt.Errorf("cannot create log directory: %w", err)
		}
	}

	printer.Success("Configuration is valid")
	printer.Info("Workers", fmt.Sprintf("%d", cfg.Download.Workers))
	printer.Info("Timeout", cfg.Download.Timeout.String())
	printer.Info("Retry rounds", fmt.Sprintf("%d", cfg.Download.RetryRounds))
	printer.Info("Cache capacity", fmt.Sprintf("%d", cfg.Cache.Capacity))
	printer.Info("Log level", cfg.Logging.Level)
	return nil
}
