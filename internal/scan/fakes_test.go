package scan

import (
	"errors"
	"sync"
	"time"

	"github.com/keypointsim/recorder/internal/geometry"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
)

// orthoScene projects orthographically along z: one world unit is scale
// pixels and the camera position shifts the view.
type orthoScene struct {
	screen  core.ScreenSize
	scale   float64
	half    float64
	pose    host.Pose
	applied []host.Pose
	meshErr error
	// project overrides the orthographic projection when set.
	project func(world core.Vector3, pose host.Pose) core.ScreenPoint
}

func newOrthoScene() *orthoScene {
	return &orthoScene{
		screen: core.ScreenSize{Width: 100, Height: 100},
		scale:  100,
		half:   0.1,
		pose: host.Pose{
			Camera: core.Transform{Rotation: core.IdentityRotation},
			Target: core.Transform{Rotation: core.IdentityRotation},
			Light:  core.Transform{Rotation: core.IdentityRotation},
		},
	}
}

func (s *orthoScene) Project(world core.Vector3) core.ScreenPoint {
	if s.project != nil {
		return s.project(world, s.pose)
	}
	rel := world.Sub(s.pose.Camera.Position)
	return core.ScreenPoint{
		X: float64(s.screen.Width)/2 + s.scale*rel.X,
		Y: float64(s.screen.Height)/2 + s.scale*rel.Y,
	}
}

func (s *orthoScene) ScreenSize() core.ScreenSize { return s.screen }

func (s *orthoScene) TargetMesh() ([]core.Vector3, error) {
	if s.meshErr != nil {
		return nil, s.meshErr
	}
	h := s.half
	var out []core.Vector3
	for _, x := range []float64{-h, h} {
		for _, y := range []float64{-h, h} {
			for _, z := range []float64{-h, h} {
				out = append(out, s.pose.Target.Apply(core.Vector3{X: x, Y: y, Z: z}))
			}
		}
	}
	return out, nil
}

func (s *orthoScene) Keypoints() []core.KeypointAnchor {
	return []core.KeypointAnchor{
		{Name: "cap", World: s.pose.Target.Apply(core.Vector3{Y: s.half})},
		{Name: "base", World: s.pose.Target.Apply(core.Vector3{Y: -s.half})},
	}
}

func (s *orthoScene) Pose() host.Pose { return s.pose }

func (s *orthoScene) ApplyPose(p host.Pose) {
	s.pose = p
	s.applied = append(s.applied, p)
}

// box is the current target box, as the controller would compute it.
func (s *orthoScene) box() core.BoundingBox2D {
	mesh, _ := s.TargetMesh()
	b, _ := geometry.ProjectAndBound(mesh, s)
	return b
}

type fakeMutator struct{}

func (fakeMutator) SetLightIntensity(float64)          {}
func (fakeMutator) TerrainResolution() (int, int, int) { return 4, 4, 2 }
func (fakeMutator) ApplyTerrainMask(*core.AlphaMap)    {}
func (fakeMutator) ApplyMaterial(string) error         { return nil }

// checkingCapturer records requests and whether the target was on screen
// on both axes when each was made.
type checkingCapturer struct {
	scene      *orthoScene
	requests   []core.CaptureRequest
	violations int
	err        error
}

func (c *checkingCapturer) RequestCapture(req core.CaptureRequest) error {
	inX, inY := inBounds(c.scene.box(), c.scene.screen)
	if !inX || !inY {
		c.violations++
	}
	c.requests = append(c.requests, req)
	return c.err
}

type countingLifecycle struct{ stops int }

func (l *countingLifecycle) Stop() { l.stops++ }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// countingRandom returns the midpoint of each range and counts draws.
type countingRandom struct{ calls int }

func (r *countingRandom) Uniform(lo, hi float64) float64 {
	r.calls++
	return lo + (hi-lo)*0.37
}

// recordingStorage captures backend calls.
type recordingStorage struct {
	mu          sync.Mutex
	started     []int
	frames      []*core.FrameRecord
	ended       int
	finalized   int
	endErrs     []error
	recordErr   error
	perScene    map[int]int
	eventsOrder []string
}

func newRecordingStorage() *recordingStorage {
	return &recordingStorage{perScene: map[int]int{}}
}

func (r *recordingStorage) Init() error  { return nil }
func (r *recordingStorage) Close() error { return nil }

func (r *recordingStorage) StartScene(index int, _ core.SceneConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, index)
	r.eventsOrder = append(r.eventsOrder, "start")
	return nil
}

func (r *recordingStorage) RecordFrame(f *core.FrameRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return r.recordErr
	}
	r.frames = append(r.frames, f)
	r.perScene[f.SceneIndex]++
	return nil
}

func (r *recordingStorage) EndScene() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.endErrs) > 0 {
		err := r.endErrs[0]
		r.endErrs = r.endErrs[1:]
		if err != nil {
			return err
		}
	}
	r.ended++
	r.eventsOrder = append(r.eventsOrder, "end")
	return nil
}

func (r *recordingStorage) Finalize() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized++
	r.eventsOrder = append(r.eventsOrder, "finalize")
	return nil
}

var errFlush = errors.New("disk full")
