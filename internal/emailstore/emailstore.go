// Package emailstore resolves email subject/body previews from GCS. The
// comparison engine never reads email content; this exists purely so
// reviewers can see what the extractors were looking at.
package emailstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// Email is the human-facing preview of one source email.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ErrNotFound is returned when no object exists for the email id.
var ErrNotFound = errors.New("email not found")

// Store reads email previews from a GCS bucket. Emails are stored as JSON
// objects under emails/<email_id>.json.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore creates a store over the given bucket.
func NewStore(ctx context.Context, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewStore: bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStore: create storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// Close releases the underlying storage client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// GetEmail fetches and decodes one email preview.
func (s *Store) GetEmail(ctx context.Context, emailID string) (*Email, error) {
	if emailID == "" {
		return nil, fmt.Errorf("GetEmail: email id is required")
	}
	objectName := fmt.Sprintf("emails/%s.json", emailID)

	r, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("GetEmail %s: %w", emailID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetEmail: open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("GetEmail: read GCS object: %w", err)
	}

	var email Email
	if err := json.Unmarshal(data, &email); err != nil {
		return nil, fmt.Errorf("GetEmail: decode email %s: %w", emailID, err)
	}
	email.ID = emailID
	return &email, nil
}
