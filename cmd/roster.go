package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/store"
	"github.com/facegate/facegate/internal/store/mariadb"
	"github.com/facegate/facegate/internal/store/postgres"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Compare the HR roster against enrolled identities",
	Long: `Read the employee roster from the legacy HR database and report which
active employees are not enrolled yet and which enrolled identities no
longer appear active in HR. Matching is by normalized name.`,
	RunE: runRoster,
}

func init() {
	rootCmd.AddCommand(rosterCmd)

	rosterCmd.Flags().Bool("all", false, "Include inactive employees in the listing")
}

func runRoster(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	showAll := mustGetBool(cmd, "all")

	if cfg.Roster.DatabaseURL == "" {
		return errors.New("ROSTER_DATABASE_URL environment variable is required")
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	roster, err := mariadb.NewPool(cfg.Roster.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to HR database: %w", err)
	}
	defer roster.Close()

	pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	employees, err := roster.ListEmployees(ctx)
	if err != nil {
		return fmt.Errorf("reading roster: %w", err)
	}

	enrolled, err := postgres.NewIdentityRepository(pool).ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing identities: %w", err)
	}

	// HR names and enrollment names come from different systems; compare
	// them normalized (lowercase, no diacritics, collapsed whitespace).
	enrolledByName := make(map[string]store.IdentityRecord, len(enrolled))
	for _, rec := range enrolled {
		enrolledByName[store.NormalizePersonName(rec.Name)] = rec
	}

	var missing int
	fmt.Printf("HR roster: %d employees\n\n", len(employees))
	for _, emp := range employees {
		if !emp.Active && !showAll {
			continue
		}

		status := "not enrolled"
		if rec, ok := enrolledByName[store.NormalizePersonName(emp.FullName)]; ok {
			status = fmt.Sprintf("enrolled as person %d", rec.PersonID)
			delete(enrolledByName, store.NormalizePersonName(emp.FullName))
		} else if emp.Active {
			missing++
		}

		active := "active"
		if !emp.Active {
			active = "inactive"
		}
		fmt.Printf("  %-30s %-10s %s\n", emp.FullName, active, status)
	}

	if len(enrolledByName) > 0 {
		fmt.Printf("\nEnrolled identities not on the active HR roster:\n")
		for _, rec := range enrolledByName {
			fmt.Printf("  person %d: %s\n", rec.PersonID, rec.Name)
		}
	}

	fmt.Printf("\n%d active employees are not enrolled\n", missing)
	return nil
}
