package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ronika/stalkarr/internal/config"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/portal"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stalkarr",
	Short: "Stalkarr aggregates IPTV provider catalogs into a local store",
	Long: `Stalkarr crawls Stalker portal providers, synchronizes their channel and
VOD catalogs into a local database, and serves aggregated catalog snapshots
over HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of Stalkarr",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Stalkarr v0.1.0")
	},
}

var configFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yml)")
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// Skip config loading for version command
	if len(os.Args) > 1 && os.Args[1] == "version" {
		return
	}

	if err := config.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()
	logger.InitializeLoggers(cfg.GetAppLogLevel(), cfg.GetDatabaseLogLevel())
}

// portalClient builds a configured portal client for a provider
func portalClient(provider *models.Provider) *portal.Client {
	cfg := config.Get()
	return portal.NewClient(portal.Config{
		BaseURL:        provider.URL,
		Mac:            provider.Mac,
		Bearer:         provider.Bearer,
		Adid:           provider.Adid,
		UserAgent:      cfg.Portal.UserAgent,
		Timezone:       cfg.Portal.Timezone,
		PageSize:       cfg.Sync.PageSize,
		Timeout:        time.Duration(cfg.Portal.TimeoutSeconds) * time.Second,
		MaxFailures:    uint(cfg.Portal.MaxFailures),
		BreakerTimeout: time.Duration(cfg.Portal.BreakerTimeout) * time.Second,
		RetryAttempts:  cfg.Portal.RetryAttempts,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
