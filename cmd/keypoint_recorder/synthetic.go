package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/geometry"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
	"gonum.org/v1/gonum/mat"
)

// minDepth keeps points behind the camera from dividing by zero; they land
// far outside the viewport instead.
const minDepth = 1e-6

// Terrain resolution of the synthetic world.
const (
	terrainWidth  = 32
	terrainHeight = 32
	terrainLayers = 4
)

var knownMaterials = map[string]bool{
	"default": true,
	"matte":   true,
	"metal":   true,
	"wood":    true,
}

// syntheticHost is a pinhole camera looking down +z at a box. It stands in
// for the rendering engine when the recorder runs headless.
type syntheticHost struct {
	mu sync.Mutex

	screen     core.ScreenSize
	intrinsics *mat.Dense
	corners    []core.Vector3
	anchors    []core.KeypointAnchor

	pose      host.Pose
	light     float64
	terrain   *core.AlphaMap
	material  string
	stopped   bool
	stopCount int
}

func newSyntheticHost(cfg config.HostConfig) (*syntheticHost, error) {
	switch {
	case cfg.Width <= 0 || cfg.Height <= 0:
		return nil, fmt.Errorf("invalid screen size %dx%d", cfg.Width, cfg.Height)
	case cfg.FieldOfView <= 0 || cfg.FieldOfView >= 180:
		return nil, fmt.Errorf("invalid field of view %.1f", cfg.FieldOfView)
	case cfg.TargetSize <= 0:
		return nil, fmt.Errorf("invalid target size %.2f", cfg.TargetSize)
	}

	w, h := float64(cfg.Width), float64(cfg.Height)
	focal := (w / 2) / math.Tan(cfg.FieldOfView*math.Pi/360)
	half := cfg.TargetSize / 2

	s := &syntheticHost{
		screen: core.ScreenSize{Width: w, Height: h},
		intrinsics: mat.NewDense(3, 3, []float64{
			focal, 0, w / 2,
			0, focal, h / 2,
			0, 0, 1,
		}),
		material: "default",
		pose: host.Pose{
			Camera: core.Transform{Rotation: core.IdentityRotation},
			Target: core.Transform{
				Position: core.Vector3{Z: cfg.TargetDistance},
				Rotation: core.IdentityRotation,
			},
			Light: core.Transform{Rotation: core.IdentityRotation},
		},
	}
	for _, x := range []float64{-half, half} {
		for _, y := range []float64{-half, half} {
			for _, z := range []float64{-half, half} {
				s.corners = append(s.corners, core.Vector3{X: x, Y: y, Z: z})
			}
		}
	}
	s.anchors = []core.KeypointAnchor{
		{Name: "center", World: core.Vector3{}},
		{Name: "top", World: core.Vector3{Y: half}},
		{Name: "bottom", World: core.Vector3{Y: -half}},
		{Name: "left", World: core.Vector3{X: -half}},
		{Name: "right", World: core.Vector3{X: half}},
		{Name: "front", World: core.Vector3{Z: -half}},
		{Name: "back", World: core.Vector3{Z: half}},
	}
	return s, nil
}

// Project maps a world point through the camera pose and the intrinsics.
func (s *syntheticHost) Project(world core.Vector3) core.ScreenPoint {
	s.mu.Lock()
	cam := s.pose.Camera
	s.mu.Unlock()
	return s.project(cam, world)
}

func (s *syntheticHost) project(cam core.Transform, world core.Vector3) core.ScreenPoint {
	inv := core.Quaternion{X: -cam.Rotation.X, Y: -cam.Rotation.Y, Z: -cam.Rotation.Z, W: cam.Rotation.W}
	local := inv.Rotate(world.Sub(cam.Position))
	if local.Z < minDepth {
		local.Z = minDepth
	}

	var p mat.VecDense
	p.MulVec(s.intrinsics, mat.NewVecDense(3, []float64{local.X, local.Y, local.Z}))
	return core.ScreenPoint{X: p.AtVec(0) / p.AtVec(2), Y: p.AtVec(1) / p.AtVec(2)}
}

func (s *syntheticHost) ScreenSize() core.ScreenSize { return s.screen }

// TargetMesh returns the eight box corners in world space.
func (s *syntheticHost) TargetMesh() ([]core.Vector3, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.corners) == 0 {
		return nil, host.ErrGeometryUnavailable
	}
	out := make([]core.Vector3, len(s.corners))
	for i, c := range s.corners {
		out[i] = s.pose.Target.Apply(c)
	}
	return out, nil
}

// Keypoints returns the face centers of the box in world space.
func (s *syntheticHost) Keypoints() []core.KeypointAnchor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.KeypointAnchor, len(s.anchors))
	for i, a := range s.anchors {
		out[i] = core.KeypointAnchor{Name: a.Name, World: s.pose.Target.Apply(a.World)}
	}
	return out
}

func (s *syntheticHost) Pose() host.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pose
}

func (s *syntheticHost) ApplyPose(p host.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = p
}

func (s *syntheticHost) SetLightIntensity(intensity float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.light = intensity
}

func (s *syntheticHost) TerrainResolution() (width, height, layers int) {
	return terrainWidth, terrainHeight, terrainLayers
}

func (s *syntheticHost) ApplyTerrainMask(mask *core.AlphaMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terrain = mask
}

func (s *syntheticHost) ApplyMaterial(name string) error {
	if !knownMaterials[name] {
		return fmt.Errorf("unknown material %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.material = name
	return nil
}

// Stop ends the run.
func (s *syntheticHost) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCount++
	s.stopped = true
}

func (s *syntheticHost) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// overlay is what the capture handler draws for one key.
type overlay struct {
	Key       string
	Label     string
	Screen    core.ScreenSize
	Box       core.BoundingBox2D
	Keypoints []core.ScreenPoint
}

// snapshot projects the target with the pose applied right now, so a capture
// handled later on another goroutine still draws the frame that was recorded.
func (s *syntheticHost) snapshot(req core.CaptureRequest) overlay {
	s.mu.Lock()
	p := s.pose
	s.mu.Unlock()

	proj := fixedCamera{host: s, camera: p.Camera}
	o := overlay{Key: req.Key, Label: req.OutputLabel, Screen: s.screen}
	mesh := make([]core.Vector3, len(s.corners))
	for i, c := range s.corners {
		mesh[i] = p.Target.Apply(c)
	}
	// the mesh is never empty, so the box is always defined
	o.Box, _ = geometry.ProjectAndBound(mesh, proj)
	for _, a := range s.anchors {
		o.Keypoints = append(o.Keypoints, proj.Project(p.Target.Apply(a.World)))
	}
	return o
}

// fixedCamera projects through a camera pose captured earlier.
type fixedCamera struct {
	host   *syntheticHost
	camera core.Transform
}

func (f fixedCamera) Project(world core.Vector3) core.ScreenPoint {
	return f.host.project(f.camera, world)
}
