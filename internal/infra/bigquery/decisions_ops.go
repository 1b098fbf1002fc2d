package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/okozyrev/extraction-review/internal/domain"
)

// ListDecisions retrieves all reviewer decisions recorded for a run pair,
// keyed by email id.
func (r *Repository) ListDecisions(ctx context.Context, pair domain.PairKey) (map[string]*domain.Decision, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			run_a_id,
			run_b_id,
			email_id,
			selected,
			overrides,
			updated_ts
		FROM %s
		WHERE run_a_id = @run_a_id
		  AND run_b_id = @run_b_id
	`, r.table(decisionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_a_id", Value: pair.RunA},
		{Name: "run_b_id", Value: pair.RunB},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListDecisions: query read: %w", err)
	}

	decisions := make(map[string]*domain.Decision)
	for {
		var row DecisionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListDecisions: iterating: %w", err)
		}
		d, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListDecisions: %w", err)
		}
		decisions[d.EmailID] = d
	}
	return decisions, nil
}

// GetDecision retrieves one email's decision. Unrecorded emails return
// (nil, nil).
func (r *Repository) GetDecision(ctx context.Context, pair domain.PairKey, emailID string) (*domain.Decision, error) {
	if emailID == "" {
		return nil, fmt.Errorf("GetDecision: email_id cannot be empty")
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT
			run_a_id,
			run_b_id,
			email_id,
			selected,
			overrides,
			updated_ts
		FROM %s
		WHERE run_a_id = @run_a_id
		  AND run_b_id = @run_b_id
		  AND email_id = @email_id
		LIMIT 1
	`, r.table(decisionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_a_id", Value: pair.RunA},
		{Name: "run_b_id", Value: pair.RunB},
		{Name: "email_id", Value: emailID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetDecision: query read: %w", err)
	}

	var row DecisionRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetDecision: iterating: %w", err)
	}
	return row.toDomain()
}

// UpsertDecision inserts or replaces one email's decision via MERGE, keyed
// by (run_a_id, run_b_id, email_id). Replaying the same decision writes the
// same row, which keeps retries and the auto-assignment race benign.
func (r *Repository) UpsertDecision(ctx context.Context, pair domain.PairKey, decision *domain.Decision) error {
	if decision == nil || decision.EmailID == "" {
		return fmt.Errorf("UpsertDecision: decision email ID is required")
	}

	row, err := decisionRowFromDomain(pair, decision)
	if err != nil {
		return fmt.Errorf("UpsertDecision: %w", err)
	}
	if row.Selected == nil {
		// A cleared decision still merges an empty array, not NULL.
		row.Selected = []string{}
	}

	q := r.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (
			SELECT
				@run_a_id AS run_a_id,
				@run_b_id AS run_b_id,
				@email_id AS email_id,
				@selected AS selected,
				@overrides AS overrides,
				@updated_ts AS updated_ts
		) s
		ON t.run_a_id = s.run_a_id
		   AND t.run_b_id = s.run_b_id
		   AND t.email_id = s.email_id
		WHEN MATCHED THEN
			UPDATE SET
				selected = s.selected,
				overrides = s.overrides,
				updated_ts = s.updated_ts
		WHEN NOT MATCHED THEN
			INSERT (run_a_id, run_b_id, email_id, selected, overrides, updated_ts)
			VALUES (s.run_a_id, s.run_b_id, s.email_id, s.selected, s.overrides, s.updated_ts)
	`, r.table(decisionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_a_id", Value: row.RunAID},
		{Name: "run_b_id", Value: row.RunBID},
		{Name: "email_id", Value: row.EmailID},
		{Name: "selected", Value: row.Selected},
		{Name: "overrides", Value: row.Overrides},
		{Name: "updated_ts", Value: row.UpdatedTS},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("UpsertDecision: running merge query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("UpsertDecision: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("UpsertDecision: job error: %w", err)
	}
	return nil
}
