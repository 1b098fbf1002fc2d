package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/okozyrev/extraction-review/internal/domain"
)

type RunRow struct {
	RunID string              `bigquery:"run_id"` // REQUIRED
	Name  bigquery.NullString `bigquery:"name"`   // NULLABLE

	Version int64  `bigquery:"version"`  // REQUIRED
	ModelID string `bigquery:"model_id"` // REQUIRED

	Status              string `bigquery:"status"`               // REQUIRED
	TransactionsCreated int64  `bigquery:"transactions_created"` // REQUIRED

	StartedTS time.Time `bigquery:"started_ts"` // REQUIRED
}

func runRowFromDomain(run *domain.Run) *RunRow {
	row := &RunRow{
		RunID:               run.ID,
		Version:             run.Version,
		ModelID:             run.ModelID,
		Status:              string(run.Status),
		TransactionsCreated: int64(run.TransactionsCreated),
		StartedTS:           run.StartedAt,
	}
	if run.Name != "" {
		row.Name = bigquery.NullString{StringVal: run.Name, Valid: true}
	}
	return row
}

func (row *RunRow) toDomain() *domain.Run {
	return &domain.Run{
		ID:                  row.RunID,
		Name:                row.Name.StringVal,
		Version:             row.Version,
		ModelID:             row.ModelID,
		Status:              domain.RunStatus(row.Status),
		TransactionsCreated: int(row.TransactionsCreated),
		StartedAt:           row.StartedTS,
	}
}
