// Package streaming defines the messages a recorder pushes to a live
// viewer while a run is in progress.
package streaming

import (
	"encoding/json"
	"time"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartRun   = "start_run"
	TypeEndRun     = "end_run"
	TypeStartScene = "start_scene"
	TypeEndScene   = "end_scene"
	TypeFrame      = "frame"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartRunPayload announces a run.
type StartRunPayload struct {
	RunID      string    `json:"runId"`
	SceneCount int       `json:"sceneCount"`
	StartedAt  time.Time `json:"startedAt"`
}

// ScenePayload announces the start or end of a scene.
type ScenePayload struct {
	Index        int    `json:"index"`
	Label        string `json:"label"`
	CaptureQuota int    `json:"captureQuota"`
	Captured     int    `json:"captured"`
}

// FramePayload carries one captured frame. Annotation holds the frame in
// the flat dataset layout.
type FramePayload struct {
	Key        string          `json:"key"`
	Scene      int             `json:"scene"`
	Label      string          `json:"label"`
	CapturedAt time.Time       `json:"capturedAt"`
	Visibility float64         `json:"visibility"`
	Annotation json.RawMessage `json:"annotation"`
}

// EndRunPayload closes a run.
type EndRunPayload struct {
	RunID  string `json:"runId"`
	Frames int    `json:"frames"`
}
