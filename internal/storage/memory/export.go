// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/keypointsim/recorder/internal/dataset"
)

// ManifestFile lists the scenes of the latest run.
const ManifestFile = "manifest.json"

// Manifest is the run summary written next to the flat view.
type Manifest struct {
	Scenes []SceneSummary `json:"scenes"`
	Frames int            `json:"frames"`
}

func (b *Backend) writeManifest() error {
	m := Manifest{Scenes: b.summary}
	for _, s := range b.summary {
		m.Frames += s.Captured
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	path := filepath.Join(b.cfg.OutputDir, ManifestFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing manifest: %w", dataset.ErrIOFailure, err)
	}
	return nil
}

// exportArchive gzips the flat view into a single portable file
func (b *Backend) exportArchive() error {
	src := filepath.Join(b.cfg.OutputDir, dataset.FlatFile)
	outputPath := src + ".gz"

	in, err := os.Open(src)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: opening flat view: %w", dataset.ErrIOFailure, err)
	}
	defer in.Close()

	if err := writeGzip(outputPath, in); err != nil {
		return fmt.Errorf("%w: %w", dataset.ErrIOFailure, err)
	}

	b.lastExportPath = outputPath
	return nil
}

func writeGzip(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if _, err := io.Copy(gzWriter, r); err != nil {
		return fmt.Errorf("failed to compress: %w", err)
	}
	return gzWriter.Close()
}
