// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific concerns are creating the
// in-memory DB and dumping it to disk periodically and at scene boundaries.
package sqlitestorage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/database"
	"github.com/keypointsim/recorder/internal/logging"
	gormstorage "github.com/keypointsim/recorder/internal/storage/gorm"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *logging.SlogManager
	stopChan chan struct{}
	wg       sync.WaitGroup
	dumpMu   sync.Mutex
}

// Options carries the run-scoped values the catalog records.
type Options struct {
	RunID         string
	OutputDir     string
	SceneCount    int
	FlushInterval time.Duration
	DBLogger      zerolog.Logger
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, opts Options, logManager *logging.SlogManager) (*Backend, error) {
	db, err := database.GetSqliteDB("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}
	if logManager == nil {
		logManager = logging.NewSlogManager()
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:            db,
		RunID:         opts.RunID,
		OutputDir:     opts.OutputDir,
		SceneCount:    opts.SceneCount,
		FlushInterval: opts.FlushInterval,
		LogManager:    logManager,
		DBLogger:      opts.DBLogger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logManager,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// EndScene writes the scene's frames and snapshots the database.
func (b *Backend) EndScene() error {
	if err := b.Backend.EndScene(); err != nil {
		return err
	}
	return b.dump()
}

// Finalize closes the run row and snapshots the database.
func (b *Backend) Finalize() error {
	if err := b.Backend.Finalize(); err != nil {
		return err
	}
	return b.dump()
}

// Close stops the dump goroutine, closes the embedded GORM backend and
// writes a last snapshot.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.wg.Wait()
	return errors.Join(b.Backend.Close(), b.dump())
}

func (b *Backend) dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()

	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		b.log.WriteLog("sqlite:dump", fmt.Sprintf("Error dumping to disk: %v", err), "ERROR")
		return err
	}
	b.log.WriteLog("sqlite:dump", fmt.Sprintf("Dumped to disk in %s", time.Since(start)), "DEBUG")
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.dump()
		}
	}
}
