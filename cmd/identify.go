package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/store/postgres"
	"github.com/facegate/facegate/internal/vecindex"
)

var identifyCmd = &cobra.Command{
	Use:   "identify [image file]",
	Short: "Identify the person in a capture",
	Args:  cobra.ExactArgs(1),
	RunE:  runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	image, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()
	identities := postgres.NewIdentityRepository(pool)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	index := vecindex.NewManager(cfg.FaceService.Dim, cfg.Recognition.IndexPath, cfg.Recognition.AutosaveEvery)
	index.Start()
	if index.Count() == 0 {
		// No persisted index available, fall back to the identity store.
		if _, err := index.Rebuild(ctx, identities); err != nil {
			return fmt.Errorf("building index: %w", err)
		}
	}

	faces := faceid.NewClient(cfg.FaceService.URL, cfg.FaceService.MinDetScore)
	embedding, err := faces.Embed(ctx, image)
	switch {
	case errors.Is(err, faceid.ErrNoFace):
		fmt.Println("No face detected")
		return nil
	case errors.Is(err, faceid.ErrLowConfidence):
		fmt.Println("Face detection confidence too low")
		return nil
	case err != nil:
		return fmt.Errorf("computing embedding: %w", err)
	}

	matcher := vecindex.NewMatcher(index, cfg.Recognition.Threshold, cfg.Recognition.TopK)
	match, ok := matcher.Identify(embedding)
	if !ok {
		fmt.Println("No enrolled identity matched")
		return nil
	}

	fmt.Printf("Matched person %d (confidence %.3f)\n", match.PersonID, match.Confidence)
	if rec, err := identities.Get(ctx, match.PersonID); err == nil && rec != nil {
		fmt.Printf("  Name: %s\n", rec.Name)
		fmt.Printf("  Enrolled: %s\n", rec.EnrolledAt.Format(time.RFC3339))
	}
	return nil
}
