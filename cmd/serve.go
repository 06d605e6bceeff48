package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glasslink/faceid/internal/config"
	"github.com/glasslink/faceid/internal/engine"
	"github.com/glasslink/faceid/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition API server",
	Long: `Start the faceid HTTP API.
The server exposes enrollment, recognition and population endpoints under
/api/v1. The identity store backend is chosen from the environment:
DATABASE_URL selects PostgreSQL, MARIADB_DSN selects MariaDB, otherwise
enrollments are kept in a local JSON file.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ex := buildExtractor(cfg)
	defer ex.Close()

	var opts []engine.Option
	if idx := buildPopulationIndex(ctx, st); idx != nil {
		opts = append(opts, engine.WithPopulationIndex(idx))
	}
	eng := buildEngine(cfg, ex, st, opts...)

	server := web.NewServer(cfg, eng, st)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting faceid API on %s\n", cfg.Server.ListenAddr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
