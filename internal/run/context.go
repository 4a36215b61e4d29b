package run

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a snapshot of run progress.
type Status struct {
	RunID         string    `json:"runId"`
	StartedAt     time.Time `json:"startedAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Phase         string    `json:"phase"`
	SceneIndex    int       `json:"sceneIndex"`
	SceneCount    int       `json:"sceneCount"`
	SceneLabel    string    `json:"sceneLabel"`
	Captured      int       `json:"captured"`
	CaptureQuota  int       `json:"captureQuota"`
	TotalCaptured uint64    `json:"totalCaptured"`
	Ticks         uint64    `json:"ticks"`
}

// Context identifies the current run and holds its latest status
type Context struct {
	mu        sync.RWMutex
	id        uuid.UUID
	startedAt time.Time
	status    Status
}

// NewContext creates a Context with a fresh run id
func NewContext() *Context {
	now := time.Now()
	id := uuid.New()
	return &Context{
		id:        id,
		startedAt: now,
		status: Status{
			RunID:     id.String(),
			StartedAt: now,
			UpdatedAt: now,
			Phase:     "idle",
		},
	}
}

// ID returns the run id
func (c *Context) ID() string {
	return c.id.String()
}

// StartedAt returns when the run was created
func (c *Context) StartedAt() time.Time {
	return c.startedAt
}

// Status returns the latest status
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// SetStatus replaces the status. Run id and start time are kept.
func (c *Context) SetStatus(s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.RunID = c.id.String()
	s.StartedAt = c.startedAt
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	c.status = s
}

// LogAttrs returns the attributes stamped on every log record of the run.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return []slog.Attr{
		slog.String("run", c.id.String()),
		slog.String("scene", c.status.SceneLabel),
	}
}
