// Package dataset buffers captured frame records and writes them out as the
// per-scene descriptive view, the run-wide flat view, and the key lists
// that index both.
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/keypointsim/recorder/pkg/core"
)

// ErrDuplicateKey is returned when a key was already recorded in this run
// or in an earlier run writing to the same output directory.
var ErrDuplicateKey = errors.New("duplicate frame key")

// File layout under the output root.
const (
	ImagesDir       = "Images"
	DescriptiveFile = "DescriptiveFrameData.json"
	FlatFile        = "AllFrameData.json"
	KeysFile        = "FrameKeys.txt"
)

// SceneDir is the directory holding a scene's images and descriptive view.
func SceneDir(root, label string) string {
	return filepath.Join(root, ImagesDir, label)
}

// ImagePath is where the host stores the image of key.
func ImagePath(root, label, key string) string {
	return filepath.Join(SceneDir(root, label), ImageName(key))
}

type buffer struct {
	records map[string]*core.FrameRecord
	order   []string
}

func newBuffer() buffer {
	return buffer{records: make(map[string]*core.FrameRecord)}
}

func (b *buffer) add(r *core.FrameRecord) {
	b.records[r.Key] = r
	b.order = append(b.order, r.Key)
}

func (b *buffer) len() int { return len(b.order) }

// Dataset holds records between flushes. It is not safe for concurrent use.
type Dataset struct {
	root  string
	scene buffer
	all   buffer
	known map[string]struct{}
}

// New returns an empty dataset rooted at root.
func New(root string) *Dataset {
	return &Dataset{
		root:  root,
		scene: newBuffer(),
		all:   newBuffer(),
		known: make(map[string]struct{}),
	}
}

// Root returns the output directory.
func (d *Dataset) Root() string { return d.root }

// LoadKeys marks every key already listed in the root key file as taken.
func (d *Dataset) LoadKeys() error {
	keys, err := ReadKeys(filepath.Join(d.root, KeysFile))
	if err != nil {
		return err
	}
	for _, k := range keys {
		d.known[k] = struct{}{}
	}
	return nil
}

// Known reports whether key has been recorded.
func (d *Dataset) Known(key string) bool {
	_, ok := d.known[key]
	return ok
}

// Add stores r in both views.
func (d *Dataset) Add(r *core.FrameRecord) error {
	if d.Known(r.Key) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, r.Key)
	}
	d.known[r.Key] = struct{}{}
	d.scene.add(r)
	d.all.add(r)
	return nil
}

// Pending returns the number of unflushed records in each view.
func (d *Dataset) Pending() (scene, all int) {
	return d.scene.len(), d.all.len()
}

// FlushScene writes the descriptive view and key list of the current scene
// into its label directory. The buffer is kept if writing fails.
func (d *Dataset) FlushScene(label string) error {
	if d.scene.len() == 0 {
		return nil
	}

	dir := SceneDir(d.root, label)
	frames := make(map[string]DescriptiveFrame, d.scene.len())
	for key, r := range d.scene.records {
		frames[key] = Descriptive(r)
	}

	if err := AppendDescriptive(filepath.Join(dir, DescriptiveFile), frames); err != nil {
		return err
	}
	if err := AppendKeys(filepath.Join(dir, KeysFile), d.scene.order); err != nil {
		return err
	}

	d.scene = newBuffer()
	return nil
}

// FlushAll writes the flat view and the root key list. The buffer is kept if
// writing fails.
func (d *Dataset) FlushAll() error {
	if d.all.len() == 0 {
		return nil
	}

	frames := make(map[string]FlatFrame, d.all.len())
	for key, r := range d.all.records {
		frames[key] = Flat(r)
	}

	if err := AppendFlat(filepath.Join(d.root, FlatFile), frames); err != nil {
		return err
	}
	if err := AppendKeys(filepath.Join(d.root, KeysFile), d.all.order); err != nil {
		return err
	}

	d.all = newBuffer()
	return nil
}
