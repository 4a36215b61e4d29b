// internal/storage/storage.go
package storage

import (
	"errors"
	"log/slog"

	"github.com/keypointsim/recorder/pkg/core"
)

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Scene management
	StartScene(index int, scene core.SceneConfig) error
	EndScene() error

	// Frame recording
	RecordFrame(f *core.FrameRecord) error

	// Finalize is called once when the last scene has ended.
	Finalize() error
}

// Multi fans calls out to a primary backend, whose errors are returned, and
// any number of secondary backends, whose errors are only logged.
type Multi struct {
	primary   Backend
	secondary []Backend
	log       *slog.Logger
}

// NewMulti combines primary with secondary backends.
func NewMulti(log *slog.Logger, primary Backend, secondary ...Backend) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{primary: primary, secondary: secondary, log: log}
}

// follow runs fn on the primary and, only when it succeeds, on every
// secondary. A failed scene flush is retried by the caller, so secondaries
// must not see it until the primary completes.
func (m *Multi) follow(op string, fn func(Backend) error) error {
	if err := fn(m.primary); err != nil {
		return err
	}
	m.secondaries(op, fn)
	return nil
}

func (m *Multi) secondaries(op string, fn func(Backend) error) {
	for _, b := range m.secondary {
		if err := fn(b); err != nil {
			m.log.Error("secondary storage failed", "op", op, "error", err)
		}
	}
}

// Init initializes every backend. A secondary that fails to initialize is
// dropped for the rest of the run.
func (m *Multi) Init() error {
	if err := m.primary.Init(); err != nil {
		return err
	}
	ready := m.secondary[:0]
	for _, b := range m.secondary {
		if err := b.Init(); err != nil {
			m.log.Error("secondary storage disabled", "error", err)
			continue
		}
		ready = append(ready, b)
	}
	m.secondary = ready
	return nil
}

// Close closes every backend and joins their errors.
func (m *Multi) Close() error {
	errs := []error{m.primary.Close()}
	for _, b := range m.secondary {
		errs = append(errs, b.Close())
	}
	return errors.Join(errs...)
}

// StartScene implements Backend.
func (m *Multi) StartScene(index int, scene core.SceneConfig) error {
	return m.follow("StartScene", func(b Backend) error { return b.StartScene(index, scene) })
}

// EndScene implements Backend.
func (m *Multi) EndScene() error {
	return m.follow("EndScene", func(b Backend) error { return b.EndScene() })
}

// RecordFrame records to the primary first; secondaries only see frames the
// primary accepted.
func (m *Multi) RecordFrame(f *core.FrameRecord) error {
	if err := m.primary.RecordFrame(f); err != nil {
		return err
	}
	for _, b := range m.secondary {
		if err := b.RecordFrame(f); err != nil {
			m.log.Error("secondary storage failed", "op", "RecordFrame", "key", f.Key, "error", err)
		}
	}
	return nil
}

// Finalize reaches every backend even when the primary fails, since the run
// ends either way.
func (m *Multi) Finalize() error {
	err := m.primary.Finalize()
	m.secondaries("Finalize", func(b Backend) error { return b.Finalize() })
	return err
}
