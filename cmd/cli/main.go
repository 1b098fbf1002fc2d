package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/okozyrev/extraction-review/internal/engine"
	infraBQ "github.com/okozyrev/extraction-review/internal/infra/bigquery"
	"github.com/okozyrev/extraction-review/internal/logger"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "runs":
		runRuns(log)
	case "compare":
		runCompare(log)
	case "synthesize":
		runSynthesize(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Extraction Review CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  runs        List extraction runs")
	fmt.Println("  compare     Compare two runs and print the reconciliation summary")
	fmt.Println("  synthesize  Produce a merged run from a reviewed pair")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

func newEngine(ctx context.Context, log zerolog.Logger, project, dataset string) (*engine.Engine, *infraBQ.Repository) {
	if project == "" {
		log.Fatal().Msg("Error: --project is required")
	}
	repo, err := infraBQ.NewRepository(ctx, project, dataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
	}
	return engine.New(repo, repo, repo, log), repo
}

func runRuns(log zerolog.Logger) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	project := fs.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID")
	dataset := fs.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo := newEngine(ctx, log, *project, *dataset)
	defer repo.Close()

	runs, err := eng.ListRuns(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	fmt.Printf("\n=== Runs (%d) ===\n", len(runs))
	for _, r := range runs {
		fmt.Printf("%-38s v%-4d %-20s %-10s %4d txs  %s\n",
			r.ID, r.Version, r.ModelID, r.Status, r.TransactionsCreated,
			r.StartedAt.Format("2006-01-02 15:04"))
		if r.Name != "" {
			fmt.Printf("    %s\n", r.Name)
		}
	}
	fmt.Println()
}

func runCompare(log zerolog.Logger) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	runA := fs.String("run-a", "", "Left run ID")
	runB := fs.String("run-b", "", "Right run ID")
	project := fs.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID")
	dataset := fs.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	if *runA == "" || *runB == "" {
		log.Fatal().Msg("Usage: cli compare -run-a ID -run-b ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo := newEngine(ctx, log, *project, *dataset)
	defer repo.Close()

	result, err := eng.GetComparison(ctx, *runA, *runB)
	if err != nil {
		log.Fatal().Err(err).Msg("Comparison failed")
	}

	s := result.Summary
	fmt.Println("\n=== Summary ===")
	fmt.Printf("Total emails:       %d\n", s.Total)
	fmt.Printf("Matches:            %d\n", s.Matches)
	fmt.Printf("Different:          %d\n", s.Different)
	fmt.Printf("Only in A:          %d\n", s.OnlyA)
	fmt.Printf("Only in B:          %d\n", s.OnlyB)
	fmt.Printf("Winners designated: %d\n", s.WinnersDesignated)
	fmt.Printf("Excluded:           %d\n", s.Excluded)
	fmt.Printf("Agreement rate:     %d%%\n", s.AgreementRate)

	if len(result.PatternGroups) > 0 {
		fmt.Printf("\n=== Pattern Groups (%d) ===\n", len(result.PatternGroups))
		for i, g := range result.PatternGroups {
			fp := fmt.Sprintf("A:[%s] B:[%s]",
				strings.Join(g.OnlyAKeys, ","), strings.Join(g.OnlyBKeys, ","))
			fmt.Printf("%d. type=%-12s numeric=%-5t members=%-4d %s\n",
				i+1, g.Type, g.NumericDiff, len(g.Comparisons), fp)
		}
	}

	if n := len(result.MultiTransactionEmails); n > 0 {
		fmt.Printf("\n%d multi-transaction emails need manual review.\n", n)
	}
	fmt.Println()
}

func runSynthesize(log zerolog.Logger) {
	fs := flag.NewFlagSet("synthesize", flag.ExitOnError)
	runA := fs.String("run-a", "", "Left run ID")
	runB := fs.String("run-b", "", "Right run ID")
	primary := fs.String("primary", "", "Primary run ID for unresolved emails (defaults to run-a)")
	name := fs.String("name", "", "Name for the merged run")
	project := fs.String("project", os.Getenv("GCP_PROJECT"), "GCP project ID")
	dataset := fs.String("dataset", os.Getenv("BQ_DATASET"), "BigQuery dataset ID")
	fs.Parse(os.Args[2:])

	if *runA == "" || *runB == "" {
		log.Fatal().Msg("Usage: cli synthesize -run-a ID -run-b ID [-primary ID] [-name NAME]")
	}
	if *primary == "" {
		*primary = *runA
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	eng, repo := newEngine(ctx, log, *project, *dataset)
	defer repo.Close()

	run, err := eng.Synthesize(ctx, *runA, *runB, *primary, *name)
	if err != nil {
		log.Fatal().Err(err).Msg("Synthesis failed")
	}

	fmt.Println("\n=== Merged Run ===")
	fmt.Printf("ID:           %s\n", run.ID)
	fmt.Printf("Name:         %s\n", run.Name)
	fmt.Printf("Version:      %d\n", run.Version)
	fmt.Printf("Transactions: %d\n", run.TransactionsCreated)
	fmt.Println()
}
