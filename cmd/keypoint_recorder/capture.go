package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/keypointsim/recorder/internal/dataset"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	backgroundColor = color.RGBA{R: 40, G: 44, B: 52, A: 255}
	boxColor        = color.RGBA{R: 80, G: 220, B: 100, A: 255}
	keypointColor   = color.RGBA{R: 230, G: 70, B: 70, A: 255}
	textColor       = color.RGBA{R: 235, G: 235, B: 235, A: 255}
)

const keypointRadius = 2

// overlayCapturer snapshots the host when a capture is requested and hands
// the request to the bridge. The bridge's handler draws the snapshot.
type overlayCapturer struct {
	host    *syntheticHost
	bridge  *host.Bridge
	root    string
	enabled bool
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]overlay
	written int
}

func newOverlayCapturer(h *syntheticHost, bridge *host.Bridge, root string, enabled bool, log *slog.Logger) *overlayCapturer {
	return &overlayCapturer{
		host:    h,
		bridge:  bridge,
		root:    root,
		enabled: enabled,
		log:     log,
		pending: make(map[string]overlay),
	}
}

// RequestCapture implements host.Capturer.
func (c *overlayCapturer) RequestCapture(req core.CaptureRequest) error {
	if c.enabled {
		o := c.host.snapshot(req)
		c.mu.Lock()
		c.pending[req.Key] = o
		c.mu.Unlock()
	}
	if err := c.bridge.RequestCapture(req); err != nil {
		c.take(req.Key)
		return err
	}
	return nil
}

func (c *overlayCapturer) take(key string) (overlay, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.pending[key]
	delete(c.pending, key)
	return o, ok
}

// Save is the bridge's capture handler.
func (c *overlayCapturer) Save(req core.CaptureRequest) error {
	if !c.enabled {
		return nil
	}
	o, ok := c.take(req.Key)
	if !ok {
		return fmt.Errorf("no snapshot for %s", req.Key)
	}

	path := dataset.ImagePath(c.root, req.OutputLabel, req.Key)
	if err := writePNG(path, renderOverlay(o)); err != nil {
		return err
	}

	c.mu.Lock()
	c.written++
	c.mu.Unlock()
	c.log.Debug("image written", "key", req.Key, "path", path)
	return nil
}

// Written returns the number of images saved so far.
func (c *overlayCapturer) Written() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.written
}

// renderOverlay draws the box outline, the keypoints and the key. Screen y
// grows upward, image rows grow downward.
func renderOverlay(o overlay) *image.RGBA {
	w, h := int(o.Screen.Width), int(o.Screen.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)

	toImage := func(p core.ScreenPoint) image.Point {
		return image.Pt(int(p.X), h-int(p.Y))
	}

	lo := toImage(core.ScreenPoint{X: o.Box.Min.X, Y: o.Box.Max.Y})
	hi := toImage(core.ScreenPoint{X: o.Box.Max.X, Y: o.Box.Min.Y})
	outline := image.NewUniform(boxColor)
	for _, edge := range []image.Rectangle{
		image.Rect(lo.X, lo.Y, hi.X+1, lo.Y+1),
		image.Rect(lo.X, hi.Y, hi.X+1, hi.Y+1),
		image.Rect(lo.X, lo.Y, lo.X+1, hi.Y+1),
		image.Rect(hi.X, lo.Y, hi.X+1, hi.Y+1),
	} {
		draw.Draw(img, edge.Intersect(img.Bounds()), outline, image.Point{}, draw.Src)
	}

	dot := image.NewUniform(keypointColor)
	for _, kp := range o.Keypoints {
		c := toImage(kp)
		r := image.Rect(c.X-keypointRadius, c.Y-keypointRadius, c.X+keypointRadius+1, c.Y+keypointRadius+1)
		draw.Draw(img, r.Intersect(img.Bounds()), dot, image.Point{}, draw.Src)
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, basicfont.Face7x13.Height),
	}
	d.DrawString(o.Label + " " + o.Key)
	return img
}

// writePNG encodes img next to path and renames it into place.
func writePNG(path string, img image.Image) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".capture-*.png")
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
