// Package remote defines the opaque resource-oriented data service the
// sync core replays queued mutations against.
package remote

import (
	"context"
	"encoding/json"
)

// Row is one record as the remote service returns it. The sync core
// never interprets fields beyond the identity key.
type Row map[string]interface{}

// ID extracts the remote identity from a row, or empty string.
func (r Row) ID() string {
	if id, ok := r["id"].(string); ok {
		return id
	}
	return ""
}

// Service is the rows-in, rows-out contract with the hosted backend.
// The sync core addresses it purely by resource name; schema and business
// rules live on the other side.
type Service interface {
	// Create submits a new record and returns the stored row, including
	// the remote identity the backend assigned.
	Create(ctx context.Context, resource string, payload json.RawMessage) (Row, error)

	// Update overwrites fields of an existing record.
	Update(ctx context.Context, resource, id string, payload json.RawMessage) error

	// Delete removes a record.
	Delete(ctx context.Context, resource, id string) error

	// Query returns rows matching the filter. Used by prefetch only.
	Query(ctx context.Context, resource string, filter map[string]string) ([]Row, error)
}
