package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/okozyrev/extraction-review/internal/engine"
)

const (
	defaultDatasetID = "reconciliation"

	runsTable         = "runs"
	transactionsTable = "run_transactions"
	decisionsTable    = "review_decisions"
)

// Repository is the BigQuery-backed implementation of the engine's run,
// transaction, and decision repositories. It holds a shared client to avoid
// creating a new connection for each operation.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a repository with a shared BigQuery client. An
// empty datasetID selects the default dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("NewRepository: project ID is required")
	}
	if datasetID == "" {
		datasetID = defaultDatasetID
	}

	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close closes the BigQuery client connection. This should be called when
// the repository is no longer needed to release resources.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

// Ensure Repository implements the engine repositories.
var (
	_ engine.RunRepository         = (*Repository)(nil)
	_ engine.TransactionRepository = (*Repository)(nil)
	_ engine.DecisionRepository    = (*Repository)(nil)
)
