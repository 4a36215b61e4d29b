// Package gormstorage implements the storage.Backend interface as a SQL
// catalog of runs, scenes and frames. Frames are buffered in a queue and
// written in batches by a background writer and at every scene boundary.
package gormstorage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keypointsim/recorder/internal/database"
	"github.com/keypointsim/recorder/internal/logging"
	"github.com/keypointsim/recorder/internal/model"
	"github.com/keypointsim/recorder/internal/model/convert"
	"github.com/keypointsim/recorder/internal/queue"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/rs/zerolog"

	"gorm.io/gorm"
)

const batchSize = 500

// ErrNoScene is returned when a frame arrives before any scene was started.
var ErrNoScene = errors.New("no scene started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	RunID         string
	OutputDir     string
	SceneCount    int
	FlushInterval time.Duration
	LogManager    *logging.SlogManager
	DBLogger      zerolog.Logger
}

// Backend implements storage.Backend on top of a gorm connection. With a
// nil DB it runs queue-only and never writes.
type Backend struct {
	deps     Dependencies
	frames   *queue.Queue[model.Frame]
	sceneID  atomic.Uint64
	stopChan chan struct{}
	wg       sync.WaitGroup
	dbReady  bool
	flushMu  sync.Mutex

	mu       sync.Mutex
	scene    model.Scene
	captured int
	total    int
	closed   bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Backend{
		deps:   deps,
		frames: queue.New[model.Frame](),
	}
}

// DB returns the connection the backend writes to.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init runs schema migration, records the run and starts the DB writer.
func (b *Backend) Init() error {
	b.stopChan = make(chan struct{})
	if b.deps.DB == nil {
		return nil
	}

	if err := database.Migrate(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	run := model.Run{
		ID:         b.deps.RunID,
		StartedAt:  time.Now().UTC(),
		OutputDir:  b.deps.OutputDir,
		SceneCount: b.deps.SceneCount,
	}
	if err := b.deps.DB.Create(&run).Error; err != nil {
		return fmt.Errorf("failed to insert run %s: %w", b.deps.RunID, err)
	}
	b.dbReady = true

	if b.deps.FlushInterval > 0 {
		b.startDBWriter()
	}
	return nil
}

// Close stops the DB writer and writes whatever is still queued.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.stopChan != nil {
		close(b.stopChan)
	}
	b.wg.Wait()
	return b.flush()
}

// StartScene records a scene row. Frames recorded afterwards belong to it.
func (b *Backend) StartScene(index int, scene core.SceneConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.scene = convert.CoreToScene(b.deps.RunID, index, scene)
	b.captured = 0
	if !b.dbReady {
		b.sceneID.Store(uint64(index + 1))
		return nil
	}
	if err := b.deps.DB.Create(&b.scene).Error; err != nil {
		return fmt.Errorf("failed to insert scene %d: %w", index, err)
	}
	b.sceneID.Store(uint64(b.scene.ID))
	return nil
}

// RecordFrame converts the frame and queues it for the writer.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	sceneID := uint(b.sceneID.Load())
	if sceneID == 0 {
		return ErrNoScene
	}

	row := convert.CoreToFrame(*f)
	row.RunID = b.deps.RunID
	row.SceneID = sceneID
	b.frames.Push(row)

	b.mu.Lock()
	b.captured++
	b.total++
	b.mu.Unlock()
	return nil
}

// EndScene writes the queued frames and closes the scene row.
func (b *Backend) EndScene() error {
	if err := b.flush(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dbReady || b.scene.ID == 0 {
		return nil
	}
	return b.deps.DB.Model(&b.scene).Updates(map[string]any{
		"captured": b.captured,
		"ended_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}).Error
}

// Finalize writes the queued frames and closes the run row.
func (b *Backend) Finalize() error {
	if err := b.flush(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.dbReady {
		return nil
	}
	return b.deps.DB.Model(&model.Run{ID: b.deps.RunID}).Updates(map[string]any{
		"frames":   b.total,
		"ended_at": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}).Error
}

// Pending returns the number of frames waiting to be written.
func (b *Backend) Pending() int {
	return b.frames.Len()
}

// Frames reads back every frame of the run captured in the given scene.
func (b *Backend) Frames(sceneIndex int) ([]core.FrameRecord, error) {
	if !b.dbReady {
		return nil, nil
	}
	var rows []model.Frame
	err := b.deps.DB.
		Where("run_id = ? AND scene_index = ?", b.deps.RunID, sceneIndex).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]core.FrameRecord, len(rows))
	for i, r := range rows {
		out[i] = convert.FrameToCore(r)
	}
	return out, nil
}

func (b *Backend) flush() error {
	if !b.dbReady {
		return nil
	}
	b.flushMu.Lock()
	defer b.flushMu.Unlock()
	return writeQueue(b.deps.DB, b.frames, "frames", b.deps.LogManager.WriteLog)
}

// writeQueue writes all items from a queue to the database in a transaction.
// On failure the items go back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, log func(string, string, string)) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&items, batchSize).Error
	})
	if err != nil {
		log(":DB:WRITER:", fmt.Sprintf("Error creating %s: %v", name, err), "ERROR")
		q.Requeue(items...)
		return fmt.Errorf("write %d %s: %w", len(items), name, err)
	}

	log(":DB:WRITER:", fmt.Sprintf("Wrote %d %s", len(items), name), "DEBUG")
	return nil
}

// startDBWriter starts the background goroutine that periodically drains the
// frame queue into the DB.
func (b *Backend) startDBWriter() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				return
			case <-ticker.C:
				_ = b.flush()
			}
		}
	}()
}
