package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/store/postgres"
	"github.com/facegate/facegate/internal/vecindex"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the index from the identity store",
	Long: `Rebuild the vector index from all active identities in the database
and persist it. This is the recovery path for a corrupt index and the
only way deactivations and re-enrollments reach the index.`,
	RunE: runIndexRebuild,
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show index state and contents",
	RunE:  runIndexInfo,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd)
	indexCmd.AddCommand(indexInfoCmd)
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}
	if cfg.Recognition.IndexPath == "" {
		return errors.New("FACE_INDEX_PATH environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	index := vecindex.NewManager(cfg.FaceService.Dim, cfg.Recognition.IndexPath, cfg.Recognition.AutosaveEvery)
	index.Start()

	identities := postgres.NewIdentityRepository(pool)
	indexed, err := index.Rebuild(ctx, identities)
	if err != nil {
		return fmt.Errorf("rebuilding index: %w", err)
	}

	fmt.Printf("Index rebuilt with %d identities, persisted to %s\n", indexed, cfg.Recognition.IndexPath)
	return nil
}

func runIndexInfo(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Recognition.IndexPath == "" {
		return errors.New("FACE_INDEX_PATH environment variable is required")
	}

	index := vecindex.NewManager(cfg.FaceService.Dim, cfg.Recognition.IndexPath, cfg.Recognition.AutosaveEvery)
	index.Start()

	fmt.Printf("Path:       %s\n", cfg.Recognition.IndexPath)
	fmt.Printf("State:      %s\n", index.State())
	fmt.Printf("Dimension:  %d\n", cfg.FaceService.Dim)
	fmt.Printf("Identities: %d\n", index.Count())
	return nil
}
