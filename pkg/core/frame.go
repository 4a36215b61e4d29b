// pkg/core/frame.go
package core

import "time"

// KeypointAnchor is a named point attached to the target, in world space.
type KeypointAnchor struct {
	Name  string
	World Vector3
}

// Keypoint is a projected anchor. Index starts at 1 and follows anchor order.
type Keypoint struct {
	Index  int
	Name   string
	Screen ScreenPoint
}

// FrameRecord is the annotation captured for one image.
type FrameRecord struct {
	Key         string
	SceneIndex  int
	OutputLabel string
	CapturedAt  time.Time
	Screen      ScreenSize
	Keypoints   []Keypoint
	Camera      Transform
	Target      Transform
	Box         BoundingBox2D
	Visibility  float64
}

// CaptureRequest asks the host to render and save the current frame.
type CaptureRequest struct {
	Key         string
	OutputLabel string
	Width       int
	Height      int
}
