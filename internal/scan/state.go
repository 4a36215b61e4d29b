package scan

import (
	"errors"
	"fmt"

	"github.com/keypointsim/recorder/internal/geometry"
	"github.com/keypointsim/recorder/pkg/core"
)

// Phase is the controller's position in the scan state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSearchingStart
	PhaseSweeping
	PhaseRecentering
	PhaseSceneDone
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSearchingStart:
		return "searching"
	case PhaseSweeping:
		return "sweeping"
	case PhaseRecentering:
		return "recentering"
	case PhaseSceneDone:
		return "sceneDone"
	case PhaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ErrInvalidConfig is returned for step sizes or guards that cannot make progress.
var ErrInvalidConfig = errors.New("invalid scan configuration")

// Config holds the scan step sizes and guards. Distances are in world units.
type Config struct {
	SearchStepX    float64 `json:"searchStepX" mapstructure:"searchStepX"`
	SearchStepY    float64 `json:"searchStepY" mapstructure:"searchStepY"`
	CommitOffsetX  float64 `json:"commitOffsetX" mapstructure:"commitOffsetX"`
	CommitOffsetY  float64 `json:"commitOffsetY" mapstructure:"commitOffsetY"`
	OffsetX        float64 `json:"offsetX" mapstructure:"offsetX"`
	OffsetY        float64 `json:"offsetY" mapstructure:"offsetY"`
	NearDistance   float64 `json:"nearDistance" mapstructure:"nearDistance"`
	FarDistance    float64 `json:"farDistance" mapstructure:"farDistance"`
	MaxSearchTicks int     `json:"maxSearchTicks" mapstructure:"maxSearchTicks"`
	MaxRowRepairs  int     `json:"maxRowRepairs" mapstructure:"maxRowRepairs"`
}

// DefaultConfig returns the stock step sizes.
func DefaultConfig() Config {
	return Config{
		SearchStepX:    0.01,
		SearchStepY:    0.01,
		CommitOffsetX:  -0.05,
		CommitOffsetY:  0.05,
		OffsetX:        0.05,
		OffsetY:        0.05,
		NearDistance:   -2,
		FarDistance:    2,
		MaxSearchTicks: 100000,
		MaxRowRepairs:  64,
	}
}

// Validate rejects configurations under which the scan cannot advance.
func (c Config) Validate() error {
	switch {
	case c.SearchStepX <= 0 || c.SearchStepY <= 0:
		return fmt.Errorf("%w: search steps must be positive", ErrInvalidConfig)
	case c.OffsetX <= 0 || c.OffsetY <= 0:
		return fmt.Errorf("%w: sweep offsets must be positive", ErrInvalidConfig)
	case c.MaxSearchTicks <= 0:
		return fmt.Errorf("%w: maxSearchTicks must be positive", ErrInvalidConfig)
	case c.MaxRowRepairs < 0:
		return fmt.Errorf("%w: maxRowRepairs must not be negative", ErrInvalidConfig)
	}
	return nil
}

// State is everything the controller mutates between ticks.
type State struct {
	Phase  Phase
	Camera core.Transform
	Target core.Transform
	Light  core.Transform
	// Start is the camera position frozen when the search committed.
	Start core.Vector3

	SceneIndex    int
	Captured      int
	TotalCaptured uint64
	Trail         uint64
	SearchTicks   int
	Ticks         uint64
}

func inBounds(box core.BoundingBox2D, screen core.ScreenSize) (inX, inY bool) {
	return geometry.InBoundsX(box, float64(screen.Width)), geometry.InBoundsY(box, float64(screen.Height))
}

// searchStep advances SEARCHING_START by one tick. While the box overlaps
// the screen on an axis the camera is nudged along it; once it is off both
// axes the commit offset is applied and the start position frozen.
func searchStep(cfg Config, s State, box core.BoundingBox2D, screen core.ScreenSize) (State, error) {
	inX, inY := inBounds(box, screen)

	if !inX && !inY {
		s.Camera.Position.X += cfg.CommitOffsetX
		s.Camera.Position.Y += cfg.CommitOffsetY
		s.Start = s.Camera.Position
		s.SearchTicks = 0
		s.Phase = PhaseSweeping
		return s, nil
	}

	s.SearchTicks++
	if s.SearchTicks >= cfg.MaxSearchTicks {
		return s, fmt.Errorf("%w: no start position after %d search ticks", ErrNonTermination, s.SearchTicks)
	}
	if inX {
		s.Camera.Position.X += cfg.SearchStepX
	}
	if inY {
		s.Camera.Position.Y -= cfg.SearchStepY
	}
	return s, nil
}

// recenterTo moves the camera back to the axis at depth and restarts the search.
func recenterTo(s State, depth float64) State {
	s.Camera.Position = core.Vector3{Z: depth}
	s.SearchTicks = 0
	s.Phase = PhaseSearchingStart
	return s
}
