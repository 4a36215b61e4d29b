package influx

import (
	"context"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/keypointsim/recorder/pkg/core"
)

// Measurement names.
const (
	MeasurementFrame = "frame"
	MeasurementScene = "scene"
)

// Backend is a storage backend that records one telemetry point per frame
// and per scene boundary.
type Backend struct {
	manager *Manager
	runID   string

	index    int
	scene    core.SceneConfig
	captured int
	started  time.Time
}

// NewBackend wraps a manager for the given run.
func NewBackend(m *Manager, runID string) *Backend {
	return &Backend{manager: m, runID: runID}
}

// Init connects to InfluxDB.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return b.manager.Connect(ctx)
}

// Close flushes and closes the manager.
func (b *Backend) Close() error {
	return b.manager.Close()
}

// StartScene remembers the scene for frame tags.
func (b *Backend) StartScene(index int, scene core.SceneConfig) error {
	b.index = index
	b.scene = scene
	b.captured = 0
	b.started = time.Now()
	return nil
}

// RecordFrame writes a frame point.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	b.captured++
	return b.manager.WritePoint(b.manager.Bucket(), FramePoint(b.runID, f))
}

// EndScene writes a scene summary point.
func (b *Backend) EndScene() error {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementScene).
		AddTag("run", b.runID).
		AddTag("label", b.scene.OutputLabel).
		AddField("index", b.index).
		AddField("captured", b.captured).
		AddField("quota", b.scene.CaptureQuota).
		AddField("seconds", time.Since(b.started).Seconds()).
		SetTime(time.Now())
	if err := b.manager.WritePoint(b.manager.Bucket(), p); err != nil {
		return err
	}
	return b.manager.Flush()
}

// Finalize flushes outstanding points.
func (b *Backend) Finalize() error {
	return b.manager.Flush()
}

// FramePoint converts a frame to a telemetry point.
func FramePoint(runID string, f *core.FrameRecord) *influxdb2_write.Point {
	return influxdb2_write.NewPointWithMeasurement(MeasurementFrame).
		AddTag("run", runID).
		AddTag("label", f.OutputLabel).
		AddTag("key", f.Key).
		AddField("scene", f.SceneIndex).
		AddField("visibility", f.Visibility).
		AddField("bboxWidth", f.Box.Width()).
		AddField("bboxHeight", f.Box.Height()).
		AddField("bboxArea", f.Box.Width()*f.Box.Height()).
		AddField("keypoints", len(f.Keypoints)).
		AddField("cameraX", f.Camera.Position.X).
		AddField("cameraY", f.Camera.Position.Y).
		AddField("depth", f.Camera.Position.Z).
		SetTime(f.CapturedAt)
}
