package syncqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/carebridge/carebridge-core/internal/db"
	apperrors "github.com/carebridge/carebridge-core/internal/errors"
	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/remote"
)

// tableResources maps local table names to remote resource names. Owned
// by the manager; the rest of the core only knows local table names.
var tableResources = map[string]string{
	"assignments":      "visits",
	"assignment_tasks": "visit_tasks",
	"observations":     "observations",
}

// SyncStatus is the snapshot pushed to subscribers so UI layers can
// react without polling.
type SyncStatus struct {
	IsSyncing    bool       `json:"is_syncing"`
	PendingCount int        `json:"pending_count"`
	FailedCount  int        `json:"failed_count"`
	LastSyncAt   *time.Time `json:"last_sync_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	IsAvailable  bool       `json:"is_available"`
}

// Listener receives status snapshots.
type Listener func(SyncStatus)

// DrainResult summarizes one ProcessQueue pass.
type DrainResult struct {
	Skipped   bool // another drain was already in flight
	Processed int
	Completed int
	Retrying  int
	Failed    int
}

// Manager is the reconciliation engine: it drains pending queue items
// sequentially, maps them to remote operations, applies the backoff
// policy, and publishes status. There is exactly one Manager per
// device; construct it once and inject it wherever drains are triggered
// or observed.
type Manager struct {
	database  *db.DB
	repo      *db.Repository
	store     *Store
	service   remote.Service
	available bool

	mu         sync.Mutex
	draining   bool
	lastSyncAt *time.Time
	lastError  string
	retryTimer *time.Timer

	listenerMu   sync.Mutex
	listeners    map[int]Listener
	nextListener int

	// backoff is swappable so tests do not sleep through the schedule.
	backoff func(retryCount int) time.Duration
}

// NewManager creates the per-device sync manager.
func NewManager(database *db.DB, repo *db.Repository, store *Store, service remote.Service) *Manager {
	return &Manager{
		database:  database,
		repo:      repo,
		store:     store,
		service:   service,
		available: database != nil,
		listeners: make(map[int]Listener),
		backoff:   BackoffDelay,
	}
}

// NewDisabled creates a manager for devices where the local store could
// not initialize. Every operation reports STORAGE_UNAVAILABLE and the
// status feed advertises IsAvailable=false.
func NewDisabled() *Manager {
	return &Manager{
		listeners: make(map[int]Listener),
		backoff:   BackoffDelay,
	}
}

// ProcessQueue drains all currently-pending items in FIFO order,
// sequentially, one remote call at a time. If a drain is already in
// flight the call is a no-op: the running drain (or a scheduled
// follow-up) will pick up any new items.
func (m *Manager) ProcessQueue(ctx context.Context) (DrainResult, error) {
	if !m.available {
		return DrainResult{Skipped: true},
			apperrors.New(apperrors.ErrStorageUnavailable, "sync is disabled on this device")
	}

	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		logging.Debug("Drain already in progress, skipping")
		return DrainResult{Skipped: true}, nil
	}
	m.draining = true
	m.mu.Unlock()

	m.notify()

	var result DrainResult
	items, err := m.store.ListPending()

	if err == nil {
		for _, item := range items {
			result.Processed++
			status, retryCount := m.processItem(ctx, item)
			switch status {
			case StatusCompleted:
				result.Completed++
			case StatusPending:
				result.Retrying++
				m.scheduleRetry(m.backoff(retryCount))
			case StatusFailed:
				result.Failed++
			}
		}
	}

	now := time.Now()
	m.mu.Lock()
	m.draining = false
	m.lastSyncAt = &now
	m.mu.Unlock()

	m.notify()

	if err != nil {
		return result, apperrors.Wrap(apperrors.ErrDatabase, "failed to list pending items", err)
	}

	logging.Info("Queue drain finished", map[string]interface{}{
		"processed": result.Processed,
		"completed": result.Completed,
		"retrying":  result.Retrying,
		"failed":    result.Failed,
	})
	return result, nil
}

// processItem runs the per-item protocol and returns the item's status
// after this attempt plus its retry count.
func (m *Manager) processItem(ctx context.Context, item *models.SyncQueueItem) (Status, int) {
	if err := m.store.MarkSyncing(string(item.ID)); err != nil {
		logging.Error("Failed to mark item syncing", err,
			map[string]interface{}{"item_id": string(item.ID)})
		return "", 0
	}

	opErr := m.dispatch(ctx, item)
	if opErr == nil {
		return StatusCompleted, item.RetryCount
	}

	retryCount, status, err := m.store.MarkFailed(string(item.ID), opErr.Error())
	if err != nil {
		logging.Error("Failed to record item failure", err,
			map[string]interface{}{"item_id": string(item.ID)})
		return "", 0
	}

	m.mu.Lock()
	m.lastError = opErr.Error()
	m.mu.Unlock()

	logging.Warn("Queue item attempt failed", map[string]interface{}{
		"item_id":     string(item.ID),
		"table":       item.TableName,
		"operation":   item.Operation,
		"retry_count": retryCount,
		"status":      string(status),
		"error":       opErr.Error(),
	})
	return status, retryCount
}

// dispatch translates the item to a remote operation and, on success,
// commits the completion (queue item + originating row) atomically.
func (m *Manager) dispatch(ctx context.Context, item *models.SyncQueueItem) error {
	resource, ok := tableResources[item.TableName]
	if !ok {
		return apperrors.New(apperrors.ErrInvalid,
			"no remote resource mapped for table "+item.TableName)
	}

	switch Operation(item.Operation) {
	case OperationCreate:
		row, err := m.service.Create(ctx, resource, item.Payload)
		if err != nil {
			return err
		}
		return m.complete(item, row.ID())

	case OperationUpdate:
		serverID, err := m.resolveServerID(item)
		if err != nil {
			return err
		}
		if serverID == "" {
			return apperrors.New(apperrors.ErrMissingServerID,
				"no remote id for "+item.TableName+"/"+string(item.RecordID))
		}
		if err := m.service.Update(ctx, resource, serverID, item.Payload); err != nil {
			return err
		}
		return m.complete(item, serverID)

	case OperationDelete:
		serverID, err := m.resolveServerID(item)
		if err != nil {
			return err
		}
		if serverID == "" {
			return apperrors.New(apperrors.ErrMissingServerID,
				"no remote id for "+item.TableName+"/"+string(item.RecordID))
		}
		if err := m.service.Delete(ctx, resource, serverID); err != nil {
			return err
		}
		return m.complete(item, "")

	default:
		return apperrors.New(apperrors.ErrInvalid, "unknown operation "+item.Operation)
	}
}

// complete marks the item done and flips the originating row to synced
// in one transaction. Deletes only mark the item: the local row, if it
// still exists, is history.
func (m *Manager) complete(item *models.SyncQueueItem, serverID string) error {
	return m.database.WithTx(func(tx *sql.Tx) error {
		if err := m.store.MarkCompleted(tx, string(item.ID)); err != nil {
			return err
		}
		if Operation(item.Operation) == OperationDelete {
			return nil
		}
		return m.repo.MarkSynced(tx, item.TableName, string(item.RecordID), serverID)
	})
}

// resolveServerID finds the remote identity for an update/delete item:
// the id captured at enqueue time, the id stored on the row (a create
// earlier in this drain may have just assigned it), or an id embedded in
// the payload.
func (m *Manager) resolveServerID(item *models.SyncQueueItem) (string, error) {
	if item.ServerID != "" {
		return item.ServerID, nil
	}

	serverID, err := m.repo.ServerIDFor(item.TableName, string(item.RecordID))
	if err != nil {
		return "", err
	}
	if serverID != "" {
		return serverID, nil
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(item.Payload, &payload); err == nil {
		if id, ok := payload["id"].(string); ok {
			return id, nil
		}
	}
	return "", nil
}

// scheduleRetry arms the process-wide retry timer. A newly scheduled
// retry supersedes a previously scheduled one.
func (m *Manager) scheduleRetry(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	m.retryTimer = time.AfterFunc(delay, func() {
		if _, err := m.ProcessQueue(context.Background()); err != nil {
			logging.Debug("Scheduled retry drain skipped", map[string]interface{}{
				"error": err.Error(),
			})
		}
	})
}

// RetryFailed resets every failed item to pending with a clean slate and
// immediately triggers a drain.
func (m *Manager) RetryFailed(ctx context.Context) (DrainResult, error) {
	if !m.available {
		return DrainResult{Skipped: true},
			apperrors.New(apperrors.ErrStorageUnavailable, "sync is disabled on this device")
	}

	n, err := m.store.ResetAllFailed()
	if err != nil {
		return DrainResult{}, apperrors.Wrap(apperrors.ErrDatabase, "failed to reset failed items", err)
	}

	m.mu.Lock()
	m.lastError = ""
	m.mu.Unlock()

	logging.Info("Reset failed items for retry", map[string]interface{}{"count": n})
	return m.ProcessQueue(ctx)
}

// GetStatus returns the current status snapshot.
func (m *Manager) GetStatus() SyncStatus {
	m.mu.Lock()
	status := SyncStatus{
		IsSyncing:   m.draining,
		LastSyncAt:  m.lastSyncAt,
		LastError:   m.lastError,
		IsAvailable: m.available,
	}
	m.mu.Unlock()

	if !m.available {
		return status
	}

	if stats, err := m.store.GetStats(); err == nil {
		status.PendingCount = stats.Pending + stats.Syncing
		status.FailedCount = stats.Failed
	}
	return status
}

// Subscribe registers a status listener and returns its removal func.
// The listener is invoked on every drain start/finish.
func (m *Manager) Subscribe(l Listener) func() {
	m.listenerMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = l
	m.listenerMu.Unlock()

	return func() {
		m.listenerMu.Lock()
		delete(m.listeners, id)
		m.listenerMu.Unlock()
	}
}

// notify pushes the current status to all subscribers.
func (m *Manager) notify() {
	status := m.GetStatus()

	m.listenerMu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenerMu.Unlock()

	for _, l := range listeners {
		l(status)
	}
}

// Close stops the retry timer. Queue state is durable; a later process
// picks up where this one left off.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}
