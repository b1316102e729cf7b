package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/store/postgres"
	"github.com/facegate/facegate/internal/vecindex"
	"github.com/facegate/facegate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the recognition API server",
	Long: `Start the FaceGate API server.
The server exposes enrollment, identification, attendance check-in and
index administration endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Server.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Server.Host = host
	}

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	identities := postgres.NewIdentityRepository(pool)
	attendance := postgres.NewAttendanceRepository(pool)
	faces := faceid.NewClient(cfg.FaceService.URL, cfg.FaceService.MinDetScore)

	index := vecindex.NewManager(cfg.FaceService.Dim, cfg.Recognition.IndexPath, cfg.Recognition.AutosaveEvery)
	index.Start()
	if index.State() == vecindex.StateDegraded {
		fmt.Println("Warning: persisted index was unreadable, serving an empty index until a rebuild")
	} else {
		fmt.Printf("Index ready with %d identities\n", index.Count())
	}

	server := web.NewServer(cfg, web.Deps{
		Identities: identities,
		Attendance: attendance,
		Faces:      faces,
		Index:      index,
		DB:         pool,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if cfg.Recognition.IndexPath != "" {
			if err := index.Save(); err != nil {
				fmt.Printf("Warning: failed to save index: %v\n", err)
			} else {
				fmt.Println("Index saved to disk")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting FaceGate API on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
