// Package scan drives the camera over the target and decides, tick by tick,
// when a frame is captured and when a scene is complete.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/keypointsim/recorder/internal/dataset"
	"github.com/keypointsim/recorder/internal/geometry"
	"github.com/keypointsim/recorder/internal/pose"
	"github.com/keypointsim/recorder/internal/run"
	"github.com/keypointsim/recorder/internal/scene"
	"github.com/keypointsim/recorder/internal/storage"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
)

var (
	// ErrNonTermination is returned when a bounded search or repair runs out
	// of iterations.
	ErrNonTermination = errors.New("scan did not terminate")
	// ErrConfigurationMissing is returned when the controller has no scenes
	// or a required collaborator.
	ErrConfigurationMissing = scene.ErrConfigurationMissing
	// ErrNotStarted is returned by Tick before Start.
	ErrNotStarted = errors.New("controller not started")
)

// FatalError marks an error after which the controller refuses to tick.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err stopped the controller for good.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Dependencies holds the host primitives and services the controller drives.
type Dependencies struct {
	Scene     host.Scene
	Capturer  host.Capturer
	Lifecycle host.Lifecycle
	Clock     host.Clock
	Random    host.Random
	Sequencer *scene.Sequencer
	Storage   storage.Backend
	// Run receives a status snapshot after every tick; optional.
	Run *run.Context
	Log *slog.Logger
}

// Controller is the scan-and-capture state machine. It is not safe for
// concurrent use; Tick is called from a single goroutine.
type Controller struct {
	cfg     Config
	deps    Dependencies
	poses   *pose.Randomizer
	metrics *metrics
	log     *slog.Logger

	state State
	fatal error
}

// New validates the configuration and collaborators.
func New(cfg Config, deps Dependencies) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Sequencer == nil || deps.Sequencer.Len() == 0:
		return nil, fmt.Errorf("%w: no scenes", ErrConfigurationMissing)
	case deps.Scene == nil:
		return nil, fmt.Errorf("%w: scene host", ErrConfigurationMissing)
	case deps.Capturer == nil:
		return nil, fmt.Errorf("%w: capturer", ErrConfigurationMissing)
	case deps.Storage == nil:
		return nil, fmt.Errorf("%w: storage", ErrConfigurationMissing)
	case deps.Random == nil:
		return nil, fmt.Errorf("%w: random source", ErrConfigurationMissing)
	}
	if deps.Clock == nil {
		deps.Clock = host.SystemClock{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:     cfg,
		deps:    deps,
		poses:   pose.NewRandomizer(deps.Random),
		metrics: m,
		log:     deps.Log.With("component", "scan"),
	}, nil
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state
}

// Finished reports whether the last scene has been completed.
func (c *Controller) Finished() bool {
	return c.state.Phase == PhaseFinished
}

// Start applies the first scene and begins searching for a start position.
func (c *Controller) Start(ctx context.Context) error {
	if c.state.Phase != PhaseIdle {
		return nil
	}
	if err := c.deps.Sequencer.Apply(0); err != nil {
		return c.fail(fmt.Errorf("apply scene 0: %w", err))
	}
	if err := c.deps.Storage.StartScene(0, c.deps.Sequencer.Scene(0)); err != nil {
		return fmt.Errorf("start scene 0: %w", err)
	}

	initial := c.deps.Scene.Pose()
	c.state = State{
		Camera: initial.Camera,
		Target: initial.Target,
		Light:  initial.Light,
	}
	for _, t := range []*core.Transform{&c.state.Camera, &c.state.Target, &c.state.Light} {
		if t.Rotation == (core.Quaternion{}) {
			t.Rotation = core.IdentityRotation
		}
	}
	c.enterScene(0)
	c.log.InfoContext(ctx, "scan started", "scenes", c.deps.Sequencer.Len())
	c.publish()
	return nil
}

// enterScene resets the per-scene state and pushes the initial pose. The
// target keeps its position; only the camera moves.
func (c *Controller) enterScene(index int) {
	sc := c.deps.Sequencer.Scene(index)
	c.state.SceneIndex = index
	c.state.Captured = 0
	c.state.SearchTicks = 0
	c.state.Camera.Position = core.Vector3{}
	c.state.Target.Rotation = core.IdentityRotation
	if !sc.RandomizeRotation {
		c.state.Target.Rotation = sc.Rotation.Quaternion()
	}
	c.state.Phase = PhaseSearchingStart
	c.applyPose()
}

// Tick advances the state machine by one step. Errors marked fatal (see
// IsFatal) are returned again on every later call; other errors only cost
// the current tick.
func (c *Controller) Tick(ctx context.Context) error {
	if c.fatal != nil {
		return c.fatal
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	switch c.state.Phase {
	case PhaseIdle:
		return ErrNotStarted
	case PhaseFinished:
		return nil
	}

	c.state.Ticks++
	c.metrics.ticks.Add(ctx, 1)
	defer c.publish()

	box, ok := c.bbox(ctx)
	if !ok {
		return nil
	}

	switch c.state.Phase {
	case PhaseSearchingStart:
		next, err := searchStep(c.cfg, c.state, box, c.deps.Scene.ScreenSize())
		if err != nil {
			return c.fail(err)
		}
		c.state = next
		c.applyPose()
		if c.state.Phase == PhaseSweeping {
			c.log.DebugContext(ctx, "start position committed",
				"x", c.state.Start.X, "y", c.state.Start.Y, "z", c.state.Start.Z)
		}
		return nil
	case PhaseSweeping:
		return c.sweep(ctx, box)
	}
	return nil
}

func (c *Controller) sweep(ctx context.Context, box core.BoundingBox2D) error {
	inX, inY := inBounds(box, c.deps.Scene.ScreenSize())

	switch {
	case inX:
		c.state.Camera.Position.X -= c.cfg.OffsetX
		c.repose()
		c.applyPose()
		fresh, ok := c.bbox(ctx)
		if !ok {
			return nil
		}
		return c.decide(ctx, fresh)

	case inY:
		fresh, ok, err := c.descend(ctx)
		if err != nil {
			return c.fail(err)
		}
		if !ok {
			return nil
		}
		return c.decide(ctx, fresh)

	default:
		c.recenter(ctx)
		return nil
	}
}

// descend moves one row down and realigns x to the frozen start. While the
// realigned box misses the screen horizontally x is shifted by -OffsetX, at
// most MaxRowRepairs times. Repairs never move y again.
func (c *Controller) descend(ctx context.Context) (core.BoundingBox2D, bool, error) {
	width := float64(c.deps.Scene.ScreenSize().Width)
	c.state.Camera.Position.Y += c.cfg.OffsetY

	for k := 0; ; k++ {
		c.state.Camera.Position.X = c.state.Start.X - float64(k)*c.cfg.OffsetX
		c.applyPose()

		box, ok := c.bbox(ctx)
		if !ok {
			return box, false, nil
		}
		if geometry.InBoundsX(box, width) {
			if k > 0 {
				c.log.DebugContext(ctx, "row realigned", "repairs", k)
			}
			return box, true, nil
		}
		if k >= c.cfg.MaxRowRepairs {
			return box, false, fmt.Errorf("%w: row realignment failed after %d repairs", ErrNonTermination, k)
		}
	}
}

func (c *Controller) recenter(ctx context.Context) {
	c.state.Phase = PhaseRecentering
	sc := c.deps.Sequencer.Scene(c.state.SceneIndex)

	depth := sc.Distance
	if sc.RandomizeDistance {
		depth = c.poses.Distance(c.cfg.NearDistance, c.cfg.FarDistance)
	}
	c.state = recenterTo(c.state, depth)
	c.applyPose()
	c.metrics.recenters.Add(ctx, 1)
	c.log.DebugContext(ctx, "pass complete, recentered", "depth", depth)
}

// repose draws a new target and light orientation.
func (c *Controller) repose() {
	sc := c.deps.Sequencer.Scene(c.state.SceneIndex)
	if sc.RandomizeRotation {
		c.state.Target.Rotation = c.poses.TargetRotation().Quaternion()
	} else {
		c.state.Target.Rotation = sc.Rotation.Quaternion()
	}
	c.state.Light.Rotation = c.poses.LightRotation().Quaternion()
}

// decide runs the capture decision on a freshly computed box.
func (c *Controller) decide(ctx context.Context, box core.BoundingBox2D) error {
	inX, inY := inBounds(box, c.deps.Scene.ScreenSize())
	if !inX || !inY {
		return nil
	}

	sc := c.deps.Sequencer.Scene(c.state.SceneIndex)
	if c.state.Captured >= sc.CaptureQuota {
		return c.completeScene(ctx, sc)
	}
	return c.capture(ctx, sc, box)
}

func (c *Controller) capture(ctx context.Context, sc core.SceneConfig, box core.BoundingBox2D) error {
	now := c.deps.Clock.Now()
	c.state.Trail++
	key := dataset.FrameKey(now, c.state.Trail)
	rec := c.record(key, now, sc, box)

	if err := c.deps.Storage.RecordFrame(rec); err != nil {
		c.metrics.skip(ctx, "record")
		if errors.Is(err, dataset.ErrDuplicateKey) {
			c.log.WarnContext(ctx, "frame key already taken, capture skipped", "key", key)
			return nil
		}
		return fmt.Errorf("record frame %s: %w", key, err)
	}

	req := core.CaptureRequest{
		Key:         key,
		OutputLabel: sc.OutputLabel,
		Width:       int(rec.Screen.Width),
		Height:      int(rec.Screen.Height),
	}
	if err := c.deps.Capturer.RequestCapture(req); err != nil {
		c.log.ErrorContext(ctx, "capture request failed", "key", key, "error", err)
	}

	c.state.Captured++
	c.state.TotalCaptured++
	c.metrics.captures.Add(ctx, 1)
	c.log.DebugContext(ctx, "images taken on scene",
		"key", key, "captured", c.state.Captured, "quota", sc.CaptureQuota)
	return nil
}

func (c *Controller) record(key string, now time.Time, sc core.SceneConfig, box core.BoundingBox2D) *core.FrameRecord {
	screen := c.deps.Scene.ScreenSize()
	anchors := c.deps.Scene.Keypoints()
	kps := make([]core.Keypoint, len(anchors))
	for i, a := range anchors {
		kps[i] = core.Keypoint{
			Index:  i + 1,
			Name:   a.Name,
			Screen: c.deps.Scene.Project(a.World),
		}
	}

	return &core.FrameRecord{
		Key:         key,
		SceneIndex:  c.state.SceneIndex,
		OutputLabel: sc.OutputLabel,
		CapturedAt:  now,
		Screen:      screen,
		Keypoints:   kps,
		Camera:      c.state.Camera,
		Target:      c.state.Target,
		Box:         box,
		Visibility:  geometry.VisibleFraction(box, screen),
	}
}

// completeScene flushes the scene and moves to the next one, or finishes
// the run after the last. A failed flush keeps the scene active so the next
// eligible tick retries it.
func (c *Controller) completeScene(ctx context.Context, sc core.SceneConfig) error {
	index := c.state.SceneIndex
	c.state.Phase = PhaseSceneDone

	if err := c.deps.Storage.EndScene(); err != nil {
		c.state.Phase = PhaseSweeping
		c.metrics.skip(ctx, "flush")
		return fmt.Errorf("end scene %d (%s): %w", index, sc.OutputLabel, err)
	}
	c.metrics.advances.Add(ctx, 1)
	c.log.InfoContext(ctx, "scene complete", "scene", index, "label", sc.OutputLabel, "captured", c.state.Captured)

	next, ok, err := c.deps.Sequencer.Advance(index)
	if err != nil {
		return c.fail(fmt.Errorf("advance past scene %d: %w", index, err))
	}
	if !ok {
		return c.finish(ctx)
	}

	c.enterScene(next)
	if err := c.deps.Storage.StartScene(next, c.deps.Sequencer.Scene(next)); err != nil {
		return fmt.Errorf("start scene %d: %w", next, err)
	}
	return nil
}

// finish writes the run-wide view and stops the host exactly once.
func (c *Controller) finish(ctx context.Context) error {
	c.state.Phase = PhaseFinished
	err := c.deps.Storage.Finalize()
	if err != nil {
		c.log.ErrorContext(ctx, "final flush failed", "error", err)
		err = fmt.Errorf("finalize: %w", err)
	}
	if c.deps.Lifecycle != nil {
		c.deps.Lifecycle.Stop()
	}
	c.log.InfoContext(ctx, "scan finished", "frames", c.state.TotalCaptured, "ticks", c.state.Ticks)
	return err
}

func (c *Controller) fail(err error) error {
	c.fatal = &FatalError{Err: err}
	c.log.Error("scan stopped", "error", err)
	return c.fatal
}

// bbox projects the target mesh. An unreadable mesh makes the tick a no-op.
func (c *Controller) bbox(ctx context.Context) (core.BoundingBox2D, bool) {
	mesh, err := c.deps.Scene.TargetMesh()
	if err == nil {
		var box core.BoundingBox2D
		box, err = geometry.ProjectAndBound(mesh, c.deps.Scene)
		if err == nil {
			return box, true
		}
	}
	c.metrics.skip(ctx, "geometry")
	c.log.WarnContext(ctx, "target geometry unavailable", "error", err)
	return core.BoundingBox2D{}, false
}

func (c *Controller) applyPose() {
	c.deps.Scene.ApplyPose(host.Pose{
		Camera: c.state.Camera,
		Target: c.state.Target,
		Light:  c.state.Light,
	})
}

func (c *Controller) publish() {
	if c.deps.Run == nil {
		return
	}
	sc := c.deps.Sequencer.Scene(c.state.SceneIndex)
	c.deps.Run.SetStatus(run.Status{
		Phase:         c.state.Phase.String(),
		SceneIndex:    c.state.SceneIndex,
		SceneCount:    c.deps.Sequencer.Len(),
		SceneLabel:    sc.OutputLabel,
		Captured:      c.state.Captured,
		CaptureQuota:  sc.CaptureQuota,
		TotalCaptured: c.state.TotalCaptured,
		Ticks:         c.state.Ticks,
	})
}
