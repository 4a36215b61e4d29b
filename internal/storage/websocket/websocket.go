package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/keypointsim/recorder/internal/dataset"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	Secret     string
	RunID      string
	SceneCount int
	// RetryDelay is the first redial backoff; zero means one second.
	RetryDelay time.Duration
}

// Backend streams frames to a live viewer while they are captured. It keeps
// no state on disk; a viewer that misses messages misses frames.
type Backend struct {
	stream *stream
	cfg    Config

	mu     sync.Mutex
	scene  streaming.ScenePayload
	frames int
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		stream: newStream(cfg.URL, cfg.Secret, cfg.RetryDelay, logger),
		cfg:    cfg,
	}
}

// Init connects to the WebSocket server and announces the run.
func (b *Backend) Init() error {
	if err := b.stream.open(); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeStartRun, streaming.StartRunPayload{
		RunID:      b.cfg.RunID,
		SceneCount: b.cfg.SceneCount,
		StartedAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	b.stream.setRun(data)
	return b.stream.sendAndWait(data, streaming.TypeStartRun, ackTimeout)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.stream.close()
}

// Dropped reports messages lost to a full send queue.
func (b *Backend) Dropped() int {
	return b.stream.droppedCount()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope queues a message without waiting; a full queue drops it.
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.stream.send(data)
	return nil
}

// StartScene implements storage.Backend.
func (b *Backend) StartScene(index int, scene core.SceneConfig) error {
	b.mu.Lock()
	b.scene = streaming.ScenePayload{
		Index:        index,
		Label:        scene.OutputLabel,
		CaptureQuota: scene.CaptureQuota,
	}
	payload := b.scene
	b.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeStartScene, payload)
	if err != nil {
		return err
	}
	b.stream.setScene(data)
	b.stream.send(data)
	return nil
}

// RecordFrame sends the frame in the flat dataset layout.
func (b *Backend) RecordFrame(f *core.FrameRecord) error {
	annotation, err := json.Marshal(dataset.Flat(f))
	if err != nil {
		return fmt.Errorf("marshal frame %s: %w", f.Key, err)
	}

	b.mu.Lock()
	b.scene.Captured++
	b.frames++
	b.mu.Unlock()

	return b.sendEnvelope(streaming.TypeFrame, streaming.FramePayload{
		Key:        f.Key,
		Scene:      f.SceneIndex,
		Label:      f.OutputLabel,
		CapturedAt: f.CapturedAt,
		Visibility: f.Visibility,
		Annotation: annotation,
	})
}

// EndScene implements storage.Backend.
func (b *Backend) EndScene() error {
	b.mu.Lock()
	payload := b.scene
	b.mu.Unlock()
	b.stream.setScene(nil)
	return b.sendEnvelope(streaming.TypeEndScene, payload)
}

// Finalize sends end_run and waits for the server ack.
func (b *Backend) Finalize() error {
	b.mu.Lock()
	payload := streaming.EndRunPayload{RunID: b.cfg.RunID, Frames: b.frames}
	b.mu.Unlock()

	data, err := marshalEnvelope(streaming.TypeEndRun, payload)
	if err != nil {
		return err
	}
	err = b.stream.sendAndWait(data, streaming.TypeEndRun, ackTimeout)
	b.stream.setScene(nil)
	b.stream.setRun(nil)
	return err
}
