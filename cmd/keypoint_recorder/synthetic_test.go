package main

import (
	"testing"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/geometry"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Verify syntheticHost implements the host interfaces
var (
	_ host.Scene        = (*syntheticHost)(nil)
	_ host.SceneMutator = (*syntheticHost)(nil)
	_ host.Lifecycle    = (*syntheticHost)(nil)
)

func testHostConfig() config.HostConfig {
	return config.HostConfig{
		Width:          640,
		Height:         480,
		WriteImages:    true,
		FieldOfView:    60,
		TargetDistance: 6,
		TargetSize:     1,
	}
}

func newTestHost(t *testing.T) *syntheticHost {
	t.Helper()
	h, err := newSyntheticHost(testHostConfig())
	require.NoError(t, err)
	return h
}

func TestNewSyntheticHost_Invalid(t *testing.T) {
	for name, mutate := range map[string]func(*config.HostConfig){
		"zero width":    func(c *config.HostConfig) { c.Width = 0 },
		"zero fov":      func(c *config.HostConfig) { c.FieldOfView = 0 },
		"fov too wide":  func(c *config.HostConfig) { c.FieldOfView = 180 },
		"no target":     func(c *config.HostConfig) { c.TargetSize = 0 },
		"negative size": func(c *config.HostConfig) { c.Height = -1 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testHostConfig()
			mutate(&cfg)
			_, err := newSyntheticHost(cfg)
			assert.Error(t, err)
		})
	}
}

func TestProject_TargetCentered(t *testing.T) {
	h := newTestHost(t)

	p := h.Project(core.Vector3{Z: 6})
	assert.InDelta(t, 320, p.X, 1e-9)
	assert.InDelta(t, 240, p.Y, 1e-9)
}

func TestProject_ScreenYGrowsUpward(t *testing.T) {
	h := newTestHost(t)

	above := h.Project(core.Vector3{Y: 1, Z: 6})
	right := h.Project(core.Vector3{X: 1, Z: 6})
	assert.Greater(t, above.Y, 240.0)
	assert.Greater(t, right.X, 320.0)
}

func TestProject_CameraMoveShiftsTarget(t *testing.T) {
	h := newTestHost(t)
	pose := h.Pose()
	pose.Camera.Position = core.Vector3{X: 1, Y: -1}
	h.ApplyPose(pose)

	p := h.Project(core.Vector3{Z: 6})
	assert.Less(t, p.X, 320.0, "camera right moves the target left")
	assert.Greater(t, p.Y, 240.0, "camera down moves the target up")
}

func TestProject_BehindCameraLeavesScreen(t *testing.T) {
	h := newTestHost(t)

	p := h.Project(core.Vector3{X: 1, Y: 1, Z: -3})
	assert.False(t, p.X >= 0 && p.X <= 640 && p.Y >= 0 && p.Y <= 480)
}

func TestTargetMesh_FollowsPose(t *testing.T) {
	h := newTestHost(t)

	mesh, err := h.TargetMesh()
	require.NoError(t, err)
	require.Len(t, mesh, 8)

	box, err := geometry.ProjectAndBound(mesh, h)
	require.NoError(t, err)
	assert.InDelta(t, 320, (box.Min.X+box.Max.X)/2, 1e-9)
	assert.InDelta(t, 240, (box.Min.Y+box.Max.Y)/2, 1e-9)

	pose := h.Pose()
	pose.Target.Rotation = core.FromEuler(0, 45, 0)
	h.ApplyPose(pose)
	rotated, err := h.TargetMesh()
	require.NoError(t, err)
	wider, err := geometry.ProjectAndBound(rotated, h)
	require.NoError(t, err)
	assert.Greater(t, wider.Width(), box.Width())
}

func TestKeypoints_ProjectInsideBox(t *testing.T) {
	h := newTestHost(t)
	mesh, err := h.TargetMesh()
	require.NoError(t, err)
	box, err := geometry.ProjectAndBound(mesh, h)
	require.NoError(t, err)

	kps := h.Keypoints()
	require.Len(t, kps, 7)
	assert.Equal(t, "center", kps[0].Name)
	for _, kp := range kps {
		p := h.Project(kp.World)
		assert.GreaterOrEqual(t, p.X, box.Min.X-1e-9, kp.Name)
		assert.LessOrEqual(t, p.X, box.Max.X+1e-9, kp.Name)
		assert.GreaterOrEqual(t, p.Y, box.Min.Y-1e-9, kp.Name)
		assert.LessOrEqual(t, p.Y, box.Max.Y+1e-9, kp.Name)
	}
}

func TestSceneMutator(t *testing.T) {
	h := newTestHost(t)

	h.SetLightIntensity(2.5)
	assert.Equal(t, 2.5, h.light)

	w, ht, layers := h.TerrainResolution()
	assert.Equal(t, [3]int{terrainWidth, terrainHeight, terrainLayers}, [3]int{w, ht, layers})

	mask := &core.AlphaMap{Width: 1, Height: 1, Layers: 1, Weights: []float32{1}}
	h.ApplyTerrainMask(mask)
	assert.Same(t, mask, h.terrain)

	require.NoError(t, h.ApplyMaterial("wood"))
	assert.Error(t, h.ApplyMaterial("velvet"))
	assert.Equal(t, "wood", h.material)
}

func TestStop(t *testing.T) {
	h := newTestHost(t)
	assert.False(t, h.Stopped())
	h.Stop()
	assert.True(t, h.Stopped())
	assert.Equal(t, 1, h.stopCount)
}

func TestSnapshot_MatchesLiveProjection(t *testing.T) {
	h := newTestHost(t)
	pose := h.Pose()
	pose.Camera.Position = core.Vector3{X: 0.3, Y: -0.2, Z: 1}
	pose.Target.Rotation = core.FromEuler(10, 20, 5)
	h.ApplyPose(pose)

	mesh, err := h.TargetMesh()
	require.NoError(t, err)
	live, err := geometry.ProjectAndBound(mesh, h)
	require.NoError(t, err)

	o := h.snapshot(core.CaptureRequest{Key: "k", OutputLabel: "grass"})

	// later pose changes must not leak into the snapshot
	pose.Camera.Position.X = 5
	h.ApplyPose(pose)

	assert.Equal(t, live, o.Box)
	assert.Len(t, o.Keypoints, 7)
	assert.Equal(t, "grass", o.Label)
}
