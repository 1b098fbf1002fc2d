package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/okozyrev/extraction-review/internal/engine"
	infraBQ "github.com/okozyrev/extraction-review/internal/infra/bigquery"
	"github.com/okozyrev/extraction-review/internal/logger"
	"github.com/okozyrev/extraction-review/internal/reportsync"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	runA := flag.String("run-a", "", "Left run ID of the comparison (required)")
	runB := flag.String("run-b", "", "Right run ID of the comparison (required)")
	project := flag.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID (or set GCP_PROJECT env)")
	dataset := flag.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset ID (or set BQ_DATASET env)")
	notionToken := flag.String("notion-token", "", "Notion API token (required)")
	notionDBID := flag.String("notion-db-id", "", "Notion database ID (required)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *runA == "" {
		log.Fatal().Msg("Error: --run-a is required")
	}
	if *runB == "" {
		log.Fatal().Msg("Error: --run-b is required")
	}
	if *project == "" {
		log.Fatal().Msg("Error: --project is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Str("run_a", *runA).
		Str("run_b", *runB).
		Bool("dry_run", *dryRun).
		Msg("Starting review report sync")

	// Initialize BigQuery repository
	repo, err := infraBQ.NewRepository(ctx, *project, *dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize BigQuery repository")
	}
	defer repo.Close()

	eng := engine.New(repo, repo, repo, log)

	result, err := eng.GetComparison(ctx, *runA, *runB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build comparison")
	}

	// Initialize Notion client
	notionClient := reportsync.NewNotionClient(*notionToken)

	// Sync the report
	if err := reportsync.SyncReport(ctx, notionClient, *notionDBID, result, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Println("Sync completed successfully.")
}
