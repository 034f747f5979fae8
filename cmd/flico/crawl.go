package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"flico/pkg/auth"
	"flico/pkg/config"
	"flico/pkg/logger"
	"flico/pkg/metrics"
	"flico/pkg/scraper"
	"flico/pkg/ui"
)

var (
	// Crawl command flags
	assumeYes          bool
	metadataDir        string
	accountName        string
	pageSize           int
	maxPages           int
	emptyPageThreshold int
	cooldown           time.Duration
	planPreview        int
	metricsAddr        string
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Assess coverage and download metadata for every institution",
	Long: `Assess how much of each Flickr Commons institution is already stored,
show the least complete institutions first and, once confirmed, download
the missing photo metadata one institution at a time.

A Flickr API key is required. It is read, in order, from:
  - FLICO_API_KEY or FLICKR_API_KEY
  - The configuration file
  - Stored credentials (use 'flico auth login' to store)`,
	Example: `  # Interactive run with default settings
  flico crawl

  # Unattended run into a specific directory
  flico crawl --yes --metadata-dir ./commons

  # Use a stored account and expose metrics
  flico crawl --account research --metrics-addr 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "start downloading without asking for confirmation")
	crawlCmd.Flags().StringVarP(&metadataDir, "metadata-dir", "o", "", "directory holding one CSV per institution")
	crawlCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	crawlCmd.Flags().IntVar(&pageSize, "page-size", 0, "photos requested per page (max 500)")
	crawlCmd.Flags().IntVar(&maxPages, "max-pages", 0, "page ceiling per institution")
	crawlCmd.Flags().IntVar(&emptyPageThreshold, "empty-page-threshold", 0, "consecutive pages without new photos before giving up")
	crawlCmd.Flags().DurationVar(&cooldown, "cooldown", 0, "wait after the API reports a rate limit")
	crawlCmd.Flags().IntVar(&planPreview, "top", 0, "number of institutions shown before confirming")
	crawlCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}

func crawlFlags() map[string]interface{} {
	return map[string]interface{}{
		"account":              accountName,
		"metadata-dir":         metadataDir,
		"page-size":            pageSize,
		"max-pages":            maxPages,
		"empty-page-threshold": emptyPageThreshold,
		"cooldown":             cooldown,
		"top":                  planPreview,
		"metrics-addr":         metricsAddr,
		"log-level":            logLevel,
	}
}

// loadRuntimeConfig loads configuration and initializes the global logger
func loadRuntimeConfig(flags map[string]interface{}) (*config.Config, error) {
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// applyCredentials fills the API key from the credential manager when the
// environment and config file did not provide one, or when an account was
// named explicitly.
func applyCredentials(cfg *config.Config) error {
	if cfg.Flickr.APIKey != "" && accountName == "" {
		logger.Info("Using API key from configuration")
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account, err := manager.Resolve(cfg.Flickr.Account)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			auth.ShowQuickKeyGuide(os.Stdout)
			fmt.Println("\nStore a key with:")
			fmt.Println("  flico auth login")
			fmt.Println("\nOr export it for this shell:")
			fmt.Println("  export FLICKR_API_KEY=your_api_key")
		}
		return err
	}

	cfg.Flickr.APIKey = account.APIKey
	if account.APISecret != "" {
		cfg.Flickr.APISecret = account.APISecret
	}
	logger.WithField("account", account.Name).Info("Using stored credentials")
	ui.PrintInfo("Using account", account.Name)
	return nil
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig(crawlFlags())
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	if err := applyCredentials(cfg); err != nil {
		ui.PrintError("No Flickr API key found", err.Error())
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintError("Invalid credentials", err.Error())
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.GetLogger()
	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, log); err != nil {
				log.WithError(err).Warn("Metrics listener stopped")
			}
		}()
	}

	s, err := scraper.NewFromConfig(cfg, scraper.Options{AssumeYes: assumeYes}, log)
	if err != nil {
		ui.PrintError("Failed to initialize crawler", err.Error())
		return err
	}

	log.WithFields(map[string]interface{}{
		"run_id":       s.RunID(),
		"version":      version,
		"metadata_dir": cfg.Storage.MetadataDir,
	}).Info("flico starting")

	report, err := s.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ui.PrintWarning("Crawl interrupted", "stored records are kept and the next run resumes from them")
			return nil
		}
		ui.PrintError("CRAWL FAILED", err.Error())
		return err
	}

	if !report.Confirmed {
		if len(report.Plan) > 0 {
			ui.PrintInfo("Nothing downloaded", "run again and answer y to start")
		}
		return nil
	}

	if report.Partial > 0 {
		ui.PrintWarning(fmt.Sprintf("%d institution(s) incomplete", report.Partial), "see 'flico status' for details")
		return nil
	}
	ui.PrintSuccess("[ALL INSTITUTIONS COMPLETE]")
	return nil
}
