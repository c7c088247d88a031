// Package models provides data model definitions for the CareBridge sync core.
package models

import (
	"encoding/json"
	"time"
)

// SyncQueueItem is a durable record of one pending remote operation.
// The payload is an opaque JSON blob whose shape matches the remote
// resource's create/update contract.
type SyncQueueItem struct {
	ID         UUID            `db:"id" json:"id"`
	TableName  string          `db:"table_name" json:"table_name"`
	Operation  string          `db:"operation" json:"operation"` // create, update, delete
	RecordID   UUID            `db:"record_id" json:"record_id"`
	ServerID   string          `db:"server_id" json:"server_id,omitempty"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	Status     string          `db:"status" json:"status"` // pending, syncing, failed, completed
	RetryCount int             `db:"retry_count" json:"retry_count"`
	LastError  string          `db:"last_error" json:"last_error,omitempty"`
	CreatedAt  int64           `db:"created_at" json:"created_at"`
}

// QueueTable returns the table holding queued mutations. Named QueueTable
// because the struct already carries a TableName column field.
func (SyncQueueItem) QueueTable() string {
	return "sync_queue"
}

// CreatedTime returns the creation timestamp as time.Time.
func (i *SyncQueueItem) CreatedTime() time.Time {
	return time.Unix(i.CreatedAt, 0)
}
