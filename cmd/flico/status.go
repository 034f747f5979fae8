package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"flico/pkg/checkpoint"
	"flico/pkg/logger"
	"flico/pkg/scraper"
	"flico/pkg/storage"
	"flico/pkg/ui"
)

var statusRemote bool

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored institutions and the outcome of recent crawls",
	Long: `Show what is stored in the metadata directory and how the last crawl of
each institution ended.

With --remote the institution list and photo totals are fetched from
Flickr and the full coverage plan is printed, least complete first.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&metadataDir, "metadata-dir", "o", "", "directory holding one CSV per institution")
	statusCmd.Flags().StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	statusCmd.Flags().BoolVar(&statusRemote, "remote", false, "assess coverage against Flickr")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntimeConfig(map[string]interface{}{
		"account":      accountName,
		"metadata-dir": metadataDir,
		"log-level":    logLevel,
	})
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}
	log := logger.GetLogger()

	if statusRemote {
		if err := applyCredentials(cfg); err != nil {
			ui.PrintError("No Flickr API key found", err.Error())
			return err
		}
		if err := cfg.ValidateCredentials(); err != nil {
			ui.PrintError("Invalid credentials", err.Error())
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s, err := scraper.NewFromConfig(cfg, scraper.Options{}, log)
		if err != nil {
			ui.PrintError("Failed to initialize crawler", err.Error())
			return err
		}
		plan, err := s.Plan(ctx)
		if err != nil {
			ui.PrintError("Coverage assessment failed", err.Error())
			return err
		}
		ui.NewConsole(os.Stdin, os.Stdout, false).PresentPlan(plan, 0)
		return nil
	}

	stores, err := storage.NewManager(cfg.Storage.MetadataDir)
	if err != nil {
		ui.PrintError("Failed to open metadata directory", err.Error())
		return err
	}
	paths, err := stores.List()
	if err != nil {
		ui.PrintError("Failed to list stores", err.Error())
		return err
	}

	ui.PrintInfo("Metadata directory", stores.Root())
	if len(paths) == 0 {
		ui.PrintWarning("No institution stores yet", "run 'flico crawl' to start")
	} else {
		ui.PrintHighlight(fmt.Sprintf("\n[STORES] %d institutions", len(paths)))
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "INSTITUTION\tRECORDS\t")
		for _, path := range paths {
			name := strings.TrimSuffix(filepath.Base(path), ".csv")
			count, err := storage.Open(path).CountUnique()
			if err != nil {
				fmt.Fprintf(tw, "%s\t%s\t\n", name, ui.Red("unreadable"))
				continue
			}
			fmt.Fprintf(tw, "%s\t%d\t\n", name, count)
		}
		tw.Flush()
	}

	checkpoints, err := checkpoint.NewManager(cfg.Storage.MetadataDir, log)
	if err != nil {
		ui.PrintError("Failed to open checkpoints", err.Error())
		return err
	}
	list, err := checkpoints.List()
	if err != nil {
		ui.PrintError("Failed to list checkpoints", err.Error())
		return err
	}
	if len(list) == 0 {
		return nil
	}

	ui.PrintHighlight(fmt.Sprintf("\n[LAST CRAWLS] %d institutions", len(list)))
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INSTITUTION\tSTATUS\tREASON\tSTORED\tREMOTE\tCOVERAGE\tUPDATED\t")
	for _, cp := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t\n",
			cp.InstitutionName,
			cp.Status,
			cp.Reason,
			cp.Stored,
			cp.RemoteTotal,
			ui.Percent(cp.Coverage()),
			cp.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	tw.Flush()
	return nil
}
