package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// ListRuns retrieves all runs, newest version first.
func (r *Repository) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			name,
			version,
			model_id,
			status,
			transactions_created,
			started_ts
		FROM %s
		ORDER BY version DESC
	`, r.table(runsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: query read: %w", err)
	}

	var runs []*domain.Run
	for {
		var row RunRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRuns: iterating: %w", err)
		}
		runs = append(runs, row.toDomain())
	}
	return runs, nil
}

// GetRun retrieves one run by id. Unknown ids return (nil, nil).
func (r *Repository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	if runID == "" {
		return nil, fmt.Errorf("GetRun: run_id cannot be empty")
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT
			run_id,
			name,
			version,
			model_id,
			status,
			transactions_created,
			started_ts
		FROM %s
		WHERE run_id = @run_id
		LIMIT 1
	`, r.table(runsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetRun: query read: %w", err)
	}

	var row RunRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: iterating: %w", err)
	}
	return row.toDomain(), nil
}

// CreateRun inserts a new run row. Runs are immutable once written; the
// synthesizer only ever adds new rows.
func (r *Repository) CreateRun(ctx context.Context, run *domain.Run) error {
	if run.ID == "" {
		return fmt.Errorf("CreateRun: run ID is required")
	}
	row := runRowFromDomain(run)

	q := r.client.Query(fmt.Sprintf(`
		INSERT %s (
			run_id,
			name,
			version,
			model_id,
			status,
			transactions_created,
			started_ts
		)
		VALUES (
			@run_id,
			@name,
			@version,
			@model_id,
			@status,
			@transactions_created,
			@started_ts
		)
	`, r.table(runsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "name", Value: row.Name},
		{Name: "version", Value: row.Version},
		{Name: "model_id", Value: row.ModelID},
		{Name: "status", Value: row.Status},
		{Name: "transactions_created", Value: row.TransactionsCreated},
		{Name: "started_ts", Value: row.StartedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("CreateRun: running insert query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("CreateRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("CreateRun: job error: %w", err)
	}
	return nil
}
