// Package scheduler runs the background drains and maintenance passes
// of the sync core.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/carebridge/carebridge-core/internal/db"
	"github.com/carebridge/carebridge-core/internal/logging"
	"github.com/carebridge/carebridge-core/internal/models"
	"github.com/carebridge/carebridge-core/internal/prefetch"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// Config holds scheduler configuration.
type Config struct {
	DrainInterval   time.Duration // how often to attempt a drain while online
	MaintenanceSpec string        // cron spec for the maintenance pass
	PrefetchSpec    string        // cron spec for the prefetch refresh, empty disables
	CaregiverID     string        // subject of the prefetch refresh
	PrefetchOptions prefetch.Options
}

// DefaultConfig returns the default scheduler configuration: drain every
// minute while online, maintenance at 03:00, no prefetch refresh.
func DefaultConfig() Config {
	return Config{
		DrainInterval:   1 * time.Minute,
		MaintenanceSpec: "0 3 * * *",
	}
}

// Scheduler drives the sync manager from connectivity changes and
// timers, and runs the periodic maintenance pass (purging completed
// queue items and stale elder cache rows).
type Scheduler struct {
	manager    *syncqueue.Manager
	queue      *syncqueue.Store
	repo       *db.Repository
	prefetcher *prefetch.Prefetcher
	cfg        Config

	cron   *cron.Cron
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu        sync.RWMutex
	isRunning bool
	isOnline  bool
}

// New creates a scheduler. The prefetcher may be nil when no prefetch
// refresh is configured.
func New(manager *syncqueue.Manager, queue *syncqueue.Store, repo *db.Repository,
	prefetcher *prefetch.Prefetcher, cfg Config) *Scheduler {

	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = 1 * time.Minute
	}
	if cfg.MaintenanceSpec == "" {
		cfg.MaintenanceSpec = "0 3 * * *"
	}

	return &Scheduler{
		manager:    manager,
		queue:      queue,
		repo:       repo,
		prefetcher: prefetcher,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		isOnline:   true,
	}
}

// Start begins the drain loop and the cron entries. Idempotent.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.MaintenanceSpec, s.runMaintenance); err != nil {
		return err
	}
	if s.cfg.PrefetchSpec != "" && s.prefetcher != nil {
		if _, err := s.cron.AddFunc(s.cfg.PrefetchSpec, func() { s.runPrefetch(ctx) }); err != nil {
			return err
		}
	}
	s.cron.Start()

	s.wg.Add(1)
	go s.drainLoop(ctx)

	logging.Info("Sync scheduler started", map[string]interface{}{
		"drain_interval":   s.cfg.DrainInterval.String(),
		"maintenance_spec": s.cfg.MaintenanceSpec,
	})
	return nil
}

// Stop halts the drain loop and cron entries gracefully. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}

	logging.Info("Sync scheduler stopped", nil)
}

// SetOnline records a connectivity change. Regaining connectivity
// triggers an immediate drain.
func (s *Scheduler) SetOnline(ctx context.Context, online bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = online
	s.mu.Unlock()

	if wasOnline == online {
		return
	}

	logging.Info("Connectivity changed", map[string]interface{}{
		"was_online": wasOnline,
		"is_online":  online,
	})

	if online {
		go s.drain(ctx)
	}
}

// IsOnline returns whether the scheduler believes the device is online.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// TriggerDrain requests an immediate drain regardless of the timer.
func (s *Scheduler) TriggerDrain(ctx context.Context) {
	go s.drain(ctx)
}

func (s *Scheduler) drainLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

func (s *Scheduler) drain(ctx context.Context) {
	if !s.IsOnline() {
		return
	}
	// The manager enforces mutual exclusion; an overlapping call no-ops.
	if _, err := s.manager.ProcessQueue(ctx); err != nil {
		logging.Error("Scheduled drain failed", err, nil)
	}
}

// runMaintenance purges completed queue items and stale elder cache
// rows to bound table growth.
func (s *Scheduler) runMaintenance() {
	purged, err := s.queue.PurgeCompleted()
	if err != nil {
		logging.Error("Failed to purge completed queue items", err, nil)
	}

	cutoff := time.Now().Add(-models.ElderCacheFreshness)
	stale, err := s.repo.PurgeStaleElders(cutoff)
	if err != nil {
		logging.Error("Failed to purge stale elder cache rows", err, nil)
	}

	logging.Info("Maintenance pass finished", map[string]interface{}{
		"queue_items_purged": purged,
		"stale_elders":       stale,
	})
}

func (s *Scheduler) runPrefetch(ctx context.Context) {
	if !s.IsOnline() {
		return
	}

	summary, err := s.prefetcher.Prefetch(ctx, s.cfg.CaregiverID, s.cfg.PrefetchOptions)
	if err != nil {
		logging.Error("Scheduled prefetch failed", err, nil)
		return
	}
	logging.Info("Scheduled prefetch finished", map[string]interface{}{
		"assignments": summary.Assignments,
		"tasks":       summary.Tasks,
		"elders":      summary.Elders,
	})
}
