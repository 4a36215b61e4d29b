package host

import (
	"fmt"
	"strconv"
	"time"

	"github.com/keypointsim/recorder/internal/dispatcher"
	"github.com/keypointsim/recorder/pkg/core"
)

// CommandCaptureImage is the dispatcher command for capture requests.
const CommandCaptureImage = ":CAPTURE:IMAGE:"

// CaptureFunc renders and saves one image.
type CaptureFunc func(req core.CaptureRequest) error

// Bridge forwards capture requests to the host through a dispatcher, so the
// tick loop never waits on image encoding.
type Bridge struct {
	dispatcher *dispatcher.Dispatcher
}

// NewBridge wraps d.
func NewBridge(d *dispatcher.Dispatcher) *Bridge {
	return &Bridge{dispatcher: d}
}

// HandleCapture registers fn as the capture handler. A bufferSize of zero
// runs fn synchronously on the caller's goroutine.
func (b *Bridge) HandleCapture(fn CaptureFunc, bufferSize int) {
	opts := []dispatcher.Option{dispatcher.Logged()}
	if bufferSize > 0 {
		opts = append(opts, dispatcher.Buffered(bufferSize))
	}

	b.dispatcher.Register(CommandCaptureImage, func(e dispatcher.Event) (any, error) {
		req, err := captureFromEvent(e)
		if err != nil {
			return nil, err
		}
		return req.Key, fn(req)
	}, opts...)
}

// RequestCapture implements Capturer.
func (b *Bridge) RequestCapture(req core.CaptureRequest) error {
	_, err := b.dispatcher.Dispatch(dispatcher.Event{
		Command: CommandCaptureImage,
		Args: []string{
			req.Key,
			req.OutputLabel,
			strconv.Itoa(req.Width),
			strconv.Itoa(req.Height),
		},
		Payload:   req,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("capture %s: %w", req.Key, err)
	}
	return nil
}

// Close waits for queued captures to finish.
func (b *Bridge) Close() {
	b.dispatcher.Close()
}

func captureFromEvent(e dispatcher.Event) (core.CaptureRequest, error) {
	if req, ok := e.Payload.(core.CaptureRequest); ok {
		return req, nil
	}
	return parseCaptureArgs(e.Args)
}

// parseCaptureArgs decodes [key, label, width, height].
func parseCaptureArgs(args []string) (core.CaptureRequest, error) {
	if len(args) != 4 {
		return core.CaptureRequest{}, fmt.Errorf("capture expects 4 args, got %d", len(args))
	}
	width, err := strconv.Atoi(args[2])
	if err != nil {
		return core.CaptureRequest{}, fmt.Errorf("invalid width %q: %w", args[2], err)
	}
	height, err := strconv.Atoi(args[3])
	if err != nil {
		return core.CaptureRequest{}, fmt.Errorf("invalid height %q: %w", args[3], err)
	}
	return core.CaptureRequest{
		Key:         args[0],
		OutputLabel: args[1],
		Width:       width,
		Height:      height,
	}, nil
}
