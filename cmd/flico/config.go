package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"flico/pkg/auth"
	"flico/pkg/config"
	"flico/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage flico configuration files.

Configuration is loaded from, highest priority first:
  - Command line flags
  - Environment variables (FLICO_*, FLICKR_API_KEY)
  - .env files
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default value.

The file is written to ~/.config/flico/config.yaml unless a different
path is given with --config. Credentials are left empty; store them with
'flico auth login' instead of keeping them in the file.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The API key and
secret are masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Check the configuration file for syntax errors and out of range values,
and report whether an API key is available.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configPath := configFile
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	if _, err := os.Stat(configPath); err == nil {
		ui.PrintError("Configuration file already exists", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		return fmt.Errorf("configuration file already exists: %s", configPath)
	}

	if err := config.DefaultConfig().Save(configPath); err != nil {
		ui.PrintError("Failed to create configuration file", err.Error())
		return err
	}

	ui.PrintSuccess("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Store your Flickr API key with 'flico auth login'")
	fmt.Println("2. Run 'flico config validate' to check the configuration")
	fmt.Println("3. Start collecting with 'flico crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, map[string]interface{}{"log-level": logLevel})
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	displayCfg := *cfg
	masked := auth.SanitizeAccount(&auth.Account{
		APIKey:    displayCfg.Flickr.APIKey,
		APISecret: displayCfg.Flickr.APISecret,
	})
	if displayCfg.Flickr.APIKey != "" {
		displayCfg.Flickr.APIKey = masked.APIKey
	}
	displayCfg.Flickr.APISecret = masked.APISecret

	data, err := yaml.Marshal(&displayCfg)
	if err != nil {
		ui.PrintError("Failed to format configuration", err.Error())
		return err
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Command line flags")
	fmt.Println("2. Environment variables (FLICO_*)")
	if path := resolveConfigFile(); path != "" {
		fmt.Printf("3. Configuration file: %s\n", path)
	} else {
		fmt.Println("3. Configuration file: (none found)")
	}
	fmt.Println("4. Default values")
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := resolveConfigFile()
	if path == "" {
		ui.PrintWarning("No configuration file found", "validating defaults and environment")
	} else {
		ui.PrintInfo("Validating configuration", path)
	}

	cfg, err := config.Load(path, nil)
	if err != nil {
		ui.PrintError("Configuration validation failed", err.Error())
		return err
	}

	if err := os.MkdirAll(cfg.Storage.MetadataDir, 0755); err != nil {
		ui.PrintError("Cannot create metadata directory", err.Error())
		return err
	}

	if err := cfg.ValidateCredentials(); err != nil {
		manager, mErr := auth.NewManager()
		if mErr != nil {
			ui.PrintWarning("Credential check skipped", mErr.Error())
		} else if _, rErr := manager.Resolve(cfg.Flickr.Account); rErr != nil {
			ui.PrintWarning("Configuration warnings:", "")
			fmt.Printf("  - %s\n\n", err)
		}
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Metadata directory: %s\n", cfg.Storage.MetadataDir)
	fmt.Printf("  Page size: %d\n", cfg.Crawl.PageSize)
	fmt.Printf("  Max pages: %d\n", cfg.Crawl.MaxPages)
	fmt.Printf("  Empty page threshold: %d\n", cfg.Crawl.EmptyPageThreshold)
	fmt.Printf("  Rate limit cooldown: %s\n", cfg.Crawl.RateLimitCooldown)
	fmt.Printf("  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Printf("  Max retries: %d\n", cfg.Retry.MaxAttempts)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
	return nil
}
