// Package scene holds the ordered scene list of a capture run and applies
// each scene's environment to the host.
package scene

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"
)

var (
	// ErrConfigurationMissing is returned for an empty or invalid scene list.
	ErrConfigurationMissing = errors.New("scene configuration missing")
	// ErrTerrainLayer is returned when a scene names a layer the terrain lacks.
	ErrTerrainLayer = errors.New("terrain layer out of range")
)

// Validate checks that the list is usable for a run.
func Validate(scenes []core.SceneConfig) error {
	if len(scenes) == 0 {
		return fmt.Errorf("%w: no scenes configured", ErrConfigurationMissing)
	}
	for i, s := range scenes {
		switch {
		case s.OutputLabel == "":
			return fmt.Errorf("%w: scene %d has no output label", ErrConfigurationMissing, i)
		case s.CaptureQuota < 0:
			return fmt.Errorf("%w: scene %d has negative capture quota %d", ErrConfigurationMissing, i, s.CaptureQuota)
		case s.TerrainLayer < 0:
			return fmt.Errorf("%w: scene %d has negative terrain layer %d", ErrConfigurationMissing, i, s.TerrainLayer)
		}
	}
	return nil
}

// Sequencer walks an immutable scene list. The current position is owned by
// the caller and passed in explicitly.
type Sequencer struct {
	scenes  []core.SceneConfig
	mutator host.SceneMutator
	log     *slog.Logger
}

// NewSequencer validates scenes and returns a sequencer that applies them
// through mutator.
func NewSequencer(scenes []core.SceneConfig, mutator host.SceneMutator, log *slog.Logger) (*Sequencer, error) {
	if err := Validate(scenes); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	list := make([]core.SceneConfig, len(scenes))
	copy(list, scenes)
	return &Sequencer{scenes: list, mutator: mutator, log: log}, nil
}

// Len returns the number of scenes.
func (s *Sequencer) Len() int { return len(s.scenes) }

// Scene returns the scene at index.
func (s *Sequencer) Scene(index int) core.SceneConfig { return s.scenes[index] }

// Apply pushes the light intensity, terrain mask and material of scene
// index to the host.
func (s *Sequencer) Apply(index int) error {
	sc := s.scenes[index]

	s.mutator.SetLightIntensity(sc.LightIntensity)

	w, h, layers := s.mutator.TerrainResolution()
	mask, err := BuildAlphaMap(w, h, layers, sc.TerrainLayer)
	if err != nil {
		return fmt.Errorf("scene %d (%s): %w", index, sc.OutputLabel, err)
	}
	s.mutator.ApplyTerrainMask(mask)

	if sc.Material != "" {
		if err := s.mutator.ApplyMaterial(sc.Material); err != nil {
			s.log.Warn("material not applied, keeping previous", "scene", index, "material", sc.Material, "error", err)
		}
	}

	s.log.Info("scene applied",
		"scene", index,
		"label", sc.OutputLabel,
		"lightIntensity", sc.LightIntensity,
		"terrainLayer", sc.TerrainLayer,
		"material", sc.Material,
	)
	return nil
}

// Advance moves past index. It applies and returns the next index, or
// reports false when index was the last scene.
func (s *Sequencer) Advance(index int) (int, bool, error) {
	next := index + 1
	if next >= len(s.scenes) {
		return index, false, nil
	}
	if err := s.Apply(next); err != nil {
		return index, false, err
	}
	return next, true, nil
}

// BuildAlphaMap returns a one-hot mask where every texel is fully assigned
// to layer.
func BuildAlphaMap(width, height, layers, layer int) (*core.AlphaMap, error) {
	if layer < 0 || layer >= layers {
		return nil, fmt.Errorf("%w: layer %d of %d", ErrTerrainLayer, layer, layers)
	}

	mask := &core.AlphaMap{
		Width:   width,
		Height:  height,
		Layers:  layers,
		Weights: make([]float32, width*height*layers),
	}
	for texel := 0; texel < width*height; texel++ {
		mask.Weights[texel*layers+layer] = 1
	}
	return mask, nil
}
