package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/okozyrev/extraction-review/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`  // REQUIRED
	RunID         string `bigquery:"run_id"`          // REQUIRED
	SourceEmailID string `bigquery:"source_email_id"` // REQUIRED

	TxType string `bigquery:"tx_type"` // REQUIRED

	// Fields is the remaining tracked scalar fields as a JSON object of
	// field name → raw extractor string. Kept as JSON so the schema does
	// not chase the tracked-field list.
	Fields bigquery.NullJSON `bigquery:"fields"` // NULLABLE

	Confidence float64 `bigquery:"confidence"` // REQUIRED

	AdditionalData bigquery.NullJSON `bigquery:"additional_data"` // NULLABLE

	// Provenance columns are populated only on synthesized transactions.
	SourceTransactionID bigquery.NullString `bigquery:"source_transaction_id"` // NULLABLE
	SourceRunID         bigquery.NullString `bigquery:"source_run_id"`         // NULLABLE
	Decision            bigquery.NullString `bigquery:"decision"`              // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

func transactionRowFromDomain(tx *domain.Transaction) (*TransactionRow, error) {
	row := &TransactionRow{
		TransactionID: tx.ID,
		RunID:         tx.RunID,
		SourceEmailID: tx.SourceEmailID,
		TxType:        tx.Type,
		Confidence:    tx.Confidence,
		CreatedTS:     tx.CreatedAt,
	}

	fields := make(map[string]string)
	for _, name := range domain.TrackedFields {
		if name == "type" {
			continue
		}
		if v := tx.Field(name); v != "" {
			fields[name] = v
		}
	}
	if len(fields) > 0 {
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("transactionRowFromDomain: marshal fields: %w", err)
		}
		row.Fields = bigquery.NullJSON{JSONVal: string(b), Valid: true}
	}

	if flat := domain.FlattenAdditionalData(tx.AdditionalData); len(flat) > 0 {
		b, err := json.Marshal(flat)
		if err != nil {
			return nil, fmt.Errorf("transactionRowFromDomain: marshal additional data: %w", err)
		}
		row.AdditionalData = bigquery.NullJSON{JSONVal: string(b), Valid: true}
	}

	if p := tx.Provenance; p != nil {
		row.SourceTransactionID = bigquery.NullString{StringVal: p.SourceTransactionID, Valid: true}
		row.SourceRunID = bigquery.NullString{StringVal: p.SourceRunID, Valid: true}
		row.Decision = bigquery.NullString{StringVal: p.Decision, Valid: true}
	}
	return row, nil
}

func (row *TransactionRow) toDomain() (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:            row.TransactionID,
		RunID:         row.RunID,
		SourceEmailID: row.SourceEmailID,
		Type:          row.TxType,
		Confidence:    row.Confidence,
		CreatedAt:     row.CreatedTS,
	}

	if row.Fields.Valid && row.Fields.JSONVal != "" {
		fields := make(map[string]string)
		if err := json.Unmarshal([]byte(row.Fields.JSONVal), &fields); err != nil {
			return nil, fmt.Errorf("toDomain: unmarshal fields for %s: %w", row.TransactionID, err)
		}
		for name, value := range fields {
			if err := tx.SetField(name, value); err != nil {
				return nil, fmt.Errorf("toDomain: %s: %w", row.TransactionID, err)
			}
		}
	}

	if row.AdditionalData.Valid && row.AdditionalData.JSONVal != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(row.AdditionalData.JSONVal), &data); err != nil {
			return nil, fmt.Errorf("toDomain: unmarshal additional data for %s: %w", row.TransactionID, err)
		}
		tx.AdditionalData = data
	}

	if row.SourceTransactionID.Valid {
		tx.Provenance = &domain.Provenance{
			SourceTransactionID: row.SourceTransactionID.StringVal,
			SourceRunID:         row.SourceRunID.StringVal,
			Decision:            row.Decision.StringVal,
		}
	}
	return tx, nil
}
