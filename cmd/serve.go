package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ronika/stalkarr/internal/api"
	"github.com/ronika/stalkarr/internal/config"
	"github.com/ronika/stalkarr/internal/database"
	"github.com/ronika/stalkarr/internal/logger"
	"github.com/ronika/stalkarr/internal/models"
	"github.com/ronika/stalkarr/internal/shutdown"
	"github.com/ronika/stalkarr/internal/sync"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Start the HTTP API server. Sync runs triggered through the API execute
in the background; on SIGINT/SIGTERM the server drains requests and waits
for in-flight syncs before exiting.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.AppLogger()
		cfg := config.Get()

		if err := database.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing database: %v\n", err)
			os.Exit(1)
		}
		db := database.Get()

		orchestrator := sync.NewOrchestrator(db, sync.OptionsFromConfig(cfg),
			func(p *models.Provider) sync.PortalClient { return portalClient(p) }, log)
		server := api.NewServer(db, orchestrator,
			func(p *models.Provider) api.CatalogClient { return portalClient(p) }, log)

		// Registered in reverse of teardown order: on shutdown the HTTP
		// server drains first, then in-flight syncs, then the store closes
		handler := shutdown.New(30 * time.Second)
		handler.Register(func(ctx context.Context) error {
			return database.Close()
		})
		handler.Register(func(ctx context.Context) error {
			orchestrator.Wait()
			return nil
		})
		handler.Register(func(ctx context.Context) error {
			return server.Shutdown(ctx)
		})

		go func() {
			log.WithFields(map[string]interface{}{
				"port": cfg.API.Port,
			}).Info("API server listening")
			if err := server.Run(cfg.API.Port); err != nil {
				log.Error("API server stopped", err)
				handler.TriggerShutdown()
			}
		}()

		handler.Wait()
		log.Info("Shutdown complete")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
