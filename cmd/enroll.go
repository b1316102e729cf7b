package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/enroll"
	"github.com/facegate/facegate/internal/faceid"
	"github.com/facegate/facegate/internal/quality"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/store/postgres"
	"github.com/facegate/facegate/internal/vecindex"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image files...]",
	Short: "Enroll a person from capture images on disk",
	Long: `Enroll a person from a batch of face captures.
Each image is quality-checked and embedded; the accepted embeddings are
averaged into one reference embedding, stored, and indexed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Name of the person to enroll (required)")
	enrollCmd.Flags().Int64("person-id", 0, "Existing person id to re-enroll")
	enrollCmd.MarkFlagRequired("name")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	name := mustGetString(cmd, "name")
	personID := mustGetInt64(cmd, "person-id")

	if len(args) < cfg.Enrollment.MinImages {
		return fmt.Errorf("at least %d images are required, got %d", cfg.Enrollment.MinImages, len(args))
	}
	if len(args) > cfg.Enrollment.MaxImages {
		return fmt.Errorf("at most %d images are allowed, got %d", cfg.Enrollment.MaxImages, len(args))
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	images := make([][]byte, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		images = append(images, data)
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Processing captures"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	faces := faceid.NewClient(cfg.FaceService.URL, cfg.FaceService.MinDetScore)
	assessor := quality.NewAssessor(cfg.Quality)
	aggregator := enroll.NewAggregator(assessor, progressEmbedder{faces, bar}, cfg.Enrollment.MinQuality)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	embedding, reports, err := aggregator.Aggregate(ctx, images)
	fmt.Println()
	for _, rep := range reports {
		if rep.Status == enroll.StatusAccepted {
			fmt.Printf("  %s: accepted (quality %.2f)\n", args[rep.Index], rep.Quality.Score)
		} else {
			fmt.Printf("  %s: %s (%s)\n", args[rep.Index], rep.Status, rep.Reason)
		}
	}
	if err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	accepted := 0
	qualitySum := 0.0
	for _, rep := range reports {
		if rep.Status == enroll.StatusAccepted {
			accepted++
			qualitySum += rep.Quality.Score
		}
	}
	if accepted < cfg.Enrollment.MinImages {
		return fmt.Errorf("only %d of the required %d images were usable", accepted, cfg.Enrollment.MinImages)
	}

	identities := postgres.NewIdentityRepository(pool)
	savedID, err := identities.Save(ctx, store.IdentityRecord{
		PersonID:          personID,
		Name:              name,
		Embedding:         embedding,
		EnrollmentQuality: qualitySum / float64(accepted),
	})
	if err != nil {
		return fmt.Errorf("saving identity: %w", err)
	}

	// The serving process keeps its own index; rebuild there (admin API) or
	// restart it to pick up this enrollment. When an index path is shared,
	// refresh the artifacts directly.
	if cfg.Recognition.IndexPath != "" {
		index := vecindex.NewManager(cfg.FaceService.Dim, cfg.Recognition.IndexPath, cfg.Recognition.AutosaveEvery)
		index.Start()
		if _, err := index.Rebuild(ctx, identities); err != nil {
			return fmt.Errorf("rebuilding index: %w", err)
		}
		fmt.Printf("Index rebuilt with %d identities\n", index.Count())
	}

	fmt.Printf("Enrolled %s as person %d (%d/%d captures accepted)\n", name, savedID, accepted, len(images))
	return nil
}

// progressEmbedder advances the progress bar as each capture is embedded.
type progressEmbedder struct {
	client *faceid.Client
	bar    *progressbar.ProgressBar
}

func (p progressEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	defer p.bar.Add(1)
	return p.client.Embed(ctx, imageData)
}
