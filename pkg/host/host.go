// Package host defines the boundary between the capture core and the
// rendering engine that drives it.
package host

import (
	"errors"
	"time"

	"github.com/keypointsim/recorder/pkg/core"
)

// ErrGeometryUnavailable is returned when the target mesh cannot be read.
var ErrGeometryUnavailable = errors.New("target geometry unavailable")

// Pose is the set of transforms the core owns and pushes to the host.
type Pose struct {
	Camera core.Transform
	Target core.Transform
	Light  core.Transform
}

// Scene is the read side of the rendered world.
type Scene interface {
	// Project maps a world point to screen space with the pose last applied.
	Project(world core.Vector3) core.ScreenPoint
	ScreenSize() core.ScreenSize
	// TargetMesh returns the target's vertices in world space.
	TargetMesh() ([]core.Vector3, error)
	Keypoints() []core.KeypointAnchor
	// Pose returns the transforms currently applied.
	Pose() Pose
	ApplyPose(p Pose)
}

// SceneMutator applies per-scene environment settings.
type SceneMutator interface {
	SetLightIntensity(intensity float64)
	TerrainResolution() (width, height, layers int)
	ApplyTerrainMask(mask *core.AlphaMap)
	ApplyMaterial(name string) error
}

// Capturer renders and stores the current frame.
type Capturer interface {
	RequestCapture(req core.CaptureRequest) error
}

// Lifecycle lets the core end the run.
type Lifecycle interface {
	Stop()
}

// Clock supplies wall-clock time.
type Clock interface {
	Now() time.Time
}

// Random supplies uniform samples in [lo, hi].
type Random interface {
	Uniform(lo, hi float64) float64
}

// SystemClock reads the local wall clock.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }
