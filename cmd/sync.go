package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ronika/stalkarr/internal/config"
	"github.com/ronika/stalkarr/internal/database"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/sync"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [provider-id]",
	Short: "Run a one-shot catalog sync",
	Long: `Synchronize one provider's catalog (or every active provider when no id
is given) and wait for completion. Useful for cron jobs and first-time
imports without the API server.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		modeFlag, _ := cmd.Flags().GetString("mode")
		mode, err := sync.ParseMode(modeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		log := logger.AppLogger()
		cfg := config.Get()

		if err := database.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
			os.Exit(1)
		}
		defer database.Close()
		db := database.Get()

		var providers []models.Provider
		query := db.Where("is_active = ?", true)
		if len(args) == 1 {
			query = db.Where("id = ?", args[0])
		}
		if err := query.Find(&providers).Error; err != nil {
			fmt.Fprintf(os.Stderr, "Error loading providers: %v\n", err)
			os.Exit(1)
		}
		if len(providers) == 0 {
			fmt.Fprintln(os.Stderr, "No matching providers")
			os.Exit(1)
		}

		orchestrator := sync.NewOrchestrator(db, sync.OptionsFromConfig(cfg),
			func(p *models.Provider) sync.PortalClient { return portalClient(p) }, log)

		failed := 0
		for _, provider := range providers {
			fmt.Printf("Syncing %s (%s)...\n", provider.Name, provider.ID)
			job, started, err := orchestrator.StartSync(context.Background(), provider.ID, mode)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Error: %v\n", err)
				failed++
				continue
			}
			if !started {
				fmt.Printf("  Already syncing (job %s), skipping\n", job.ID)
				continue
			}
			orchestrator.Wait()

			result, err := orchestrator.Tracker().Get(job.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  Error reading job: %v\n", err)
				failed++
				continue
			}
			switch result.Status {
			case models.SyncStatusCompleted:
				fmt.Printf("  Done: %d movies, %d series, %d channels\n",
					result.MoviesCount, result.SeriesCount, result.ChannelsCount)
			default:
				msg := ""
				if result.Error != nil {
					msg = *result.Error
				}
				fmt.Fprintf(os.Stderr, "  Sync %s: %s\n", result.Status, msg)
				failed++
			}
		}

		if failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	syncCmd.Flags().String("mode", "auto", "sync mode: auto, full or incremental")
	rootCmd.AddCommand(syncCmd)
}
