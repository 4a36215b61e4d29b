// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/dataset"
	"github.com/keypointsim/recorder/pkg/core"
)

// SceneSummary counts what one scene produced.
type SceneSummary struct {
	Index    int    `json:"index"`
	Label    string `json:"label"`
	Quota    int    `json:"captureQuota"`
	Captured int    `json:"captured"`
}

// Backend buffers frames in memory and writes the dataset files
type Backend struct {
	cfg  config.MemoryConfig
	data *dataset.Dataset
	log  *slog.Logger

	scene   core.SceneConfig
	summary []SceneSummary

	lastExportPath string
	mu             sync.Mutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		cfg:  cfg,
		data: dataset.New(cfg.OutputDir),
		log:  log,
	}
}

// Init creates the output directory and loads keys from earlier runs
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create output directory: %w", dataset.ErrIOFailure, err)
	}
	return b.data.LoadKeys()
}

// Close writes anything still buffered
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	scene, all := b.data.Pending()
	if scene > 0 || all > 0 {
		b.log.Warn("flushing unfinished run", "sceneFrames", scene, "allFrames", all)
	}
	return errors.Join(b.data.FlushScene(b.scene.OutputLabel), b.data.FlushAll())
}

// StartScene begins buffering frames for a scene
func (b *Backend) StartScene(index int, scene core.SceneConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scene = scene
	b.summary = append(b.summary, SceneSummary{Index: index, Label: scene.OutputLabel, Quota: scene.CaptureQuota})
	return nil
}

// RecordFrame stores a frame in both views
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.data.Add(f); err != nil {
		return err
	}
	if n := len(b.summary); n > 0 {
		b.summary[n-1].Captured++
	}
	return nil
}

// EndScene writes the scene's descriptive view
func (b *Backend) EndScene() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.data.FlushScene(b.scene.OutputLabel); err != nil {
		return err
	}
	b.log.Info("scene data written", "label", b.scene.OutputLabel, "dir", dataset.SceneDir(b.cfg.OutputDir, b.scene.OutputLabel))
	return nil
}

// Finalize writes the flat view and, if configured, the compressed archive
func (b *Backend) Finalize() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.data.FlushAll(); err != nil {
		return err
	}
	if err := b.writeManifest(); err != nil {
		return err
	}
	if b.cfg.CompressOutput {
		return b.exportArchive()
	}
	return nil
}

// Summary returns per-scene capture counts
func (b *Backend) Summary() []SceneSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]SceneSummary(nil), b.summary...)
}

// GetExportedFilePath returns the path of the last compressed archive
func (b *Backend) GetExportedFilePath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastExportPath
}
