package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/influx"
	"github.com/keypointsim/recorder/internal/logging"
	"github.com/keypointsim/recorder/internal/run"
	"github.com/keypointsim/recorder/internal/storage"
	"github.com/keypointsim/recorder/internal/storage/memory"
	pgstorage "github.com/keypointsim/recorder/internal/storage/postgres"
	sqlitestorage "github.com/keypointsim/recorder/internal/storage/sqlite"
	wsstorage "github.com/keypointsim/recorder/internal/storage/websocket"
)

// InfluxBackupFile receives line protocol when InfluxDB is unreachable.
const InfluxBackupFile = "influx_backup.lp.gz"

// catalog is implemented by the SQL backends, which buffer frame rows.
type catalog interface {
	storage.Backend
	Pending() int
}

// storageSet is the dataset writer plus the optional secondary backends.
type storageSet struct {
	*storage.Multi
	Dataset *memory.Backend
	Catalog catalog
}

// WriteQueues reports the catalog's unwritten rows for the monitor.
func (s *storageSet) WriteQueues() map[string]int {
	if s.Catalog == nil {
		return nil
	}
	return map[string]int{"frames": s.Catalog.Pending()}
}

// createStorageBackend builds the dataset writer as the primary backend and
// adds the configured catalog, the InfluxDB telemetry and the live frame
// stream as secondaries.
func createStorageBackend(storageCfg config.StorageConfig, runCtx *run.Context, sceneCount int, logManager *logging.SlogManager, dbLogs io.Writer) (*storageSet, error) {
	logger := logManager.Logger()
	level := config.GetString("logLevel")
	set := &storageSet{Dataset: memory.New(storageCfg.Memory, logger)}
	var secondary []storage.Backend

	switch storageCfg.Catalog {
	case "postgres":
		set.Catalog = pgstorage.New(pgstorage.Dependencies{
			RunID:         runCtx.ID(),
			OutputDir:     storageCfg.Memory.OutputDir,
			SceneCount:    sceneCount,
			FlushInterval: storageCfg.FlushInterval,
			FallbackPath:  storageCfg.SQLite.DumpPath,
			LogManager:    logManager,
			DBLogger:      logging.NewComponentLogger(dbLogs, "database", level),
		})
		logger.Info("Postgres catalog configured")

	case "sqlite":
		backend, err := sqlitestorage.New(storageCfg.SQLite, sqlitestorage.Options{
			RunID:         runCtx.ID(),
			OutputDir:     storageCfg.Memory.OutputDir,
			SceneCount:    sceneCount,
			FlushInterval: storageCfg.FlushInterval,
			DBLogger:      logging.NewComponentLogger(dbLogs, "database", level),
		}, logManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite catalog: %w", err)
		}
		set.Catalog = backend
		logger.Info("SQLite catalog configured", "dumpPath", storageCfg.SQLite.DumpPath)

	case "", "none":

	default:
		return nil, fmt.Errorf("unknown catalog %q", storageCfg.Catalog)
	}
	if set.Catalog != nil {
		secondary = append(secondary, set.Catalog)
	}

	if config.GetBool("influx.enabled") {
		manager := influx.NewManager(
			logging.NewComponentLogger(dbLogs, "influx", level),
			filepath.Join(storageCfg.Memory.OutputDir, InfluxBackupFile),
		)
		secondary = append(secondary, influx.NewBackend(manager, runCtx.ID()))
		logger.Info("InfluxDB telemetry configured", "bucket", manager.Bucket())
	}

	if streamCfg := config.GetStreamConfig(); streamCfg.Enabled {
		secondary = append(secondary, wsstorage.New(wsstorage.Config{
			URL:        streamCfg.URL,
			Secret:     streamCfg.Secret,
			RunID:      runCtx.ID(),
			SceneCount: sceneCount,
		}, logger))
		logger.Info("Live frame stream configured", "url", streamCfg.URL)
	}

	set.Multi = storage.NewMulti(logger, set.Dataset, secondary...)
	return set, nil
}
