package commands

import (
	"github.com/carebridge/carebridge-core/internal/config"
	"github.com/carebridge/carebridge-core/internal/db"
	"github.com/carebridge/carebridge-core/internal/prefetch"
	"github.com/carebridge/carebridge-core/internal/records"
	"github.com/carebridge/carebridge-core/internal/remote"
	"github.com/carebridge/carebridge-core/internal/syncqueue"
)

// app wires the sync core for one CLI invocation.
type app struct {
	cfg        *config.Config
	database   *db.DB
	repo       *db.Repository
	queue      *syncqueue.Store
	records    *records.Records
	manager    *syncqueue.Manager
	prefetcher *prefetch.Prefetcher
}

// openApp loads config, opens the local store, runs migrations, and
// wires the core. The returned cleanup closes everything.
func openApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	initLogging(cfg)

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	migrator := db.NewMigrator(database.DB)
	if err := migrator.Initialize(); err != nil {
		database.Close()
		return nil, nil, err
	}
	if err := migrator.Up(); err != nil {
		database.Close()
		return nil, nil, err
	}

	repo := db.NewRepository(database.DB)
	queue := syncqueue.NewStore(database)
	service := remote.NewHTTPClient(cfg.RemoteBaseURL, cfg.RemoteAPIKey, cfg.RemoteTimeout)
	manager := syncqueue.NewManager(database, repo, queue, service)

	a := &app{
		cfg:        cfg,
		database:   database,
		repo:       repo,
		queue:      queue,
		records:    records.New(database, repo, queue),
		manager:    manager,
		prefetcher: prefetch.New(database, repo, service),
	}
	cleanup := func() {
		manager.Close()
		database.Close()
	}
	return a, cleanup, nil
}
