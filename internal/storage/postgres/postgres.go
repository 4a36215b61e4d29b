// Package postgres implements the storage.Backend interface on a Postgres
// catalog. When Postgres cannot be reached the catalog falls back to an
// in-memory SQLite database that is dumped to disk at scene boundaries.
package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/keypointsim/recorder/internal/database"
	"github.com/keypointsim/recorder/internal/logging"
	gormstorage "github.com/keypointsim/recorder/internal/storage/gorm"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/rs/zerolog"
)

// Dependencies holds all dependencies for the Postgres storage backend.
type Dependencies struct {
	RunID         string
	OutputDir     string
	SceneCount    int
	FlushInterval time.Duration
	FallbackPath  string
	LogManager    *logging.SlogManager
	DBLogger      zerolog.Logger
}

// Backend connects through a database.Manager and delegates to the GORM
// catalog backend.
type Backend struct {
	deps    Dependencies
	manager *database.Manager
	catalog *gormstorage.Backend
}

// New creates a new Postgres storage backend. The connection is opened by Init.
func New(deps Dependencies) *Backend {
	return &Backend{
		deps:    deps,
		manager: database.NewManager(deps.DBLogger, deps.FallbackPath),
	}
}

// Local reports whether the backend fell back to SQLite.
func (b *Backend) Local() bool {
	return b.manager.ShouldSaveLocal
}

// Pending returns the number of frames not yet written to the catalog.
func (b *Backend) Pending() int {
	if b.catalog == nil {
		return 0
	}
	return b.catalog.Pending()
}

// Init connects, migrates the schema and starts the DB writer.
func (b *Backend) Init() error {
	if err := b.manager.Connect(); err != nil {
		return fmt.Errorf("failed to connect catalog: %w", err)
	}

	b.catalog = gormstorage.New(gormstorage.Dependencies{
		DB:            b.manager.DB,
		RunID:         b.deps.RunID,
		OutputDir:     b.deps.OutputDir,
		SceneCount:    b.deps.SceneCount,
		FlushInterval: b.deps.FlushInterval,
		LogManager:    b.deps.LogManager,
		DBLogger:      b.deps.DBLogger,
	})
	return b.catalog.Init()
}

// Close flushes the catalog and releases the connection.
func (b *Backend) Close() error {
	if b.catalog == nil {
		return nil
	}
	err := b.catalog.Close()
	return errors.Join(err, b.manager.DumpMemoryToDisk(), b.manager.Close())
}

// StartScene implements storage.Backend.
func (b *Backend) StartScene(index int, scene core.SceneConfig) error {
	return b.catalog.StartScene(index, scene)
}

// RecordFrame implements storage.Backend.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	return b.catalog.RecordFrame(f)
}

// EndScene implements storage.Backend.
func (b *Backend) EndScene() error {
	if err := b.catalog.EndScene(); err != nil {
		return err
	}
	return b.manager.DumpMemoryToDisk()
}

// Finalize implements storage.Backend.
func (b *Backend) Finalize() error {
	if err := b.catalog.Finalize(); err != nil {
		return err
	}
	return b.manager.DumpMemoryToDisk()
}
