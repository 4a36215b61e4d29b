// Package monitor periodically writes the run status to disk and logs a
// progress line.
package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/keypointsim/recorder/internal/logging"
	"github.com/keypointsim/recorder/internal/run"
)

// StatusFile is written into the output directory.
const StatusFile = "status.json"

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	LogManager *logging.SlogManager
	RunContext *run.Context
	OutputDir  string
	Interval   time.Duration
	// WriteQueues reports pending rows per named queue; optional.
	WriteQueues func() map[string]int
}

// ProgramStatus is what the status file contains.
type ProgramStatus struct {
	run.Status
	WriteQueues map[string]int `json:"writeQueues,omitempty"`
	Elapsed     string         `json:"elapsed"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 10 * time.Second
	}
	if deps.LogManager == nil {
		deps.LogManager = logging.NewSlogManager()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() ProgramStatus {
	st := s.deps.RunContext.Status()
	out := ProgramStatus{
		Status:  st,
		Elapsed: time.Since(st.StartedAt).Round(time.Second).String(),
	}
	if s.deps.WriteQueues != nil {
		out.WriteQueues = s.deps.WriteQueues()
	}
	return out
}

// WriteStatus writes the status file once.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(s.deps.OutputDir, StatusFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write status: %w", err)
	}
	return os.Rename(tmp, path)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(s.deps.OutputDir, 0755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create status dir: %w", err)
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				st := s.deps.RunContext.Status()
				logger.Info("progress",
					"phase", st.Phase,
					"scene", fmt.Sprintf("%d/%d", st.SceneIndex+1, st.SceneCount),
					"label", st.SceneLabel,
					"captured", fmt.Sprintf("%d/%d", st.Captured, st.CaptureQuota),
					"total", st.TotalCaptured,
				)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor, waits for it to exit and writes a final
// status file.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	if err := s.WriteStatus(); err != nil {
		s.deps.LogManager.WriteLog("monitor:stop", fmt.Sprintf("Error writing status file: %v", err), "ERROR")
	}
}
