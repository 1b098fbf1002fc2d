package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/okozyrev/extraction-review/internal/domain"
)

const transactionColumns = `
	transaction_id,
	run_id,
	source_email_id,
	tx_type,
	fields,
	confidence,
	additional_data,
	source_transaction_id,
	source_run_id,
	decision,
	created_ts`

// ListTransactions retrieves every transaction of a run in creation order.
func (r *Repository) ListTransactions(ctx context.Context, runID string) ([]*domain.Transaction, error) {
	if runID == "" {
		return nil, fmt.Errorf("ListTransactions: run_id cannot be empty")
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE run_id = @run_id
		ORDER BY created_ts, transaction_id
	`, transactionColumns, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
	}

	return r.readTransactions(ctx, q, "ListTransactions")
}

// ListTransactionsByEmail retrieves a run's transactions for one source
// email in creation order.
func (r *Repository) ListTransactionsByEmail(ctx context.Context, runID, emailID string) ([]*domain.Transaction, error) {
	if runID == "" || emailID == "" {
		return nil, fmt.Errorf("ListTransactionsByEmail: run_id and source_email_id cannot be empty")
	}

	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE run_id = @run_id
		  AND source_email_id = @source_email_id
		ORDER BY created_ts, transaction_id
	`, transactionColumns, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: runID},
		{Name: "source_email_id", Value: emailID},
	}

	return r.readTransactions(ctx, q, "ListTransactionsByEmail")
}

// InsertTransactions inserts a batch of transactions via the streaming
// inserter.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		row, err := transactionRowFromDomain(tx)
		if err != nil {
			return fmt.Errorf("InsertTransactions: %w", err)
		}
		rows = append(rows, row)
	}

	table := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting rows: %w", err)
	}
	return nil
}

func (r *Repository) readTransactions(ctx context.Context, q *bigquery.Query, op string) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: query read: %w", op, err)
	}

	var txs []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: iterating: %w", op, err)
		}
		tx, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
