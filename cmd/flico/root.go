package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"flico/pkg/config"
	"flico/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	quiet      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flico",
	Short: "Collect photo metadata from Flickr Commons institutions",
	Long: `flico collects per-photo metadata from every Flickr Commons institution
into one CSV file per institution.

Runs are resumable: each institution's CSV is the record of what has been
collected, so an interrupted crawl picks up where it stopped and a rerun
only adds photos that are not stored yet.

Features:
  - Coverage report ordering institutions from least to most complete
  - Rate limit handling with cooldown and automatic resumption
  - Credentials kept in the system keychain or an encrypted file
  - Prometheus metrics while a crawl is running`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}

		// Don't show logo for certain commands
		if cmd.Name() != "version" && cmd.Name() != "help" {
			ui.PrintLogo()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ~/.config/flico/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`flico {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// resolveConfigFile returns the --config value or the first config file found
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return config.FindConfigFile()
}
