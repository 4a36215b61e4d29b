package scene

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/keypointsim/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMutator struct {
	intensities []float64
	masks       []*core.AlphaMap
	materials   []string
	badMaterial string
}

func (f *fakeMutator) SetLightIntensity(v float64)          { f.intensities = append(f.intensities, v) }
func (f *fakeMutator) TerrainResolution() (int, int, int)   { return 4, 3, 3 }
func (f *fakeMutator) ApplyTerrainMask(mask *core.AlphaMap) { f.masks = append(f.masks, mask) }
func (f *fakeMutator) ApplyMaterial(name string) error {
	if name == f.badMaterial {
		return errors.New("no such material")
	}
	f.materials = append(f.materials, name)
	return nil
}

func testScenes() []core.SceneConfig {
	return []core.SceneConfig{
		{OutputLabel: "Grass", LightIntensity: 1.0, TerrainLayer: 0, Material: "Steel", CaptureQuota: 3},
		{OutputLabel: "Sand", LightIntensity: 0.5, TerrainLayer: 2, Material: "Rust", CaptureQuota: 3},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(testScenes()))
	assert.ErrorIs(t, Validate(nil), ErrConfigurationMissing)

	noLabel := testScenes()
	noLabel[1].OutputLabel = ""
	assert.ErrorIs(t, Validate(noLabel), ErrConfigurationMissing)

	negative := testScenes()
	negative[0].CaptureQuota = -1
	assert.ErrorIs(t, Validate(negative), ErrConfigurationMissing)
}

func TestNewSequencer_Empty(t *testing.T) {
	_, err := NewSequencer(nil, &fakeMutator{}, nil)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
}

func TestSequencer_ApplyAndAdvance(t *testing.T) {
	m := &fakeMutator{}
	seq, err := NewSequencer(testScenes(), m, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, seq.Len())

	require.NoError(t, seq.Apply(0))
	assert.Equal(t, []float64{1.0}, m.intensities)
	assert.Equal(t, []string{"Steel"}, m.materials)

	next, ok, err := seq.Advance(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, next)
	assert.Equal(t, []float64{1.0, 0.5}, m.intensities)
	require.Len(t, m.masks, 2)
	assert.Equal(t, float32(1), m.masks[1].At(0, 0, 2))

	next, ok, err = seq.Advance(1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, next)
	assert.Len(t, m.intensities, 2, "advancing past the end applies nothing")
}

func TestSequencer_MissingMaterialIsNotFatal(t *testing.T) {
	m := &fakeMutator{badMaterial: "Steel"}
	seq, err := NewSequencer(testScenes(), m, nil)
	require.NoError(t, err)

	require.NoError(t, seq.Apply(0))
	assert.Empty(t, m.materials)
	assert.Len(t, m.masks, 1)
}

func TestSequencer_TerrainLayerOutOfRange(t *testing.T) {
	scenes := testScenes()
	scenes[1].TerrainLayer = 5
	seq, err := NewSequencer(scenes, &fakeMutator{}, nil)
	require.NoError(t, err)

	_, ok, err := seq.Advance(0)
	assert.ErrorIs(t, err, ErrTerrainLayer)
	assert.False(t, ok)
}

func TestBuildAlphaMap_OneHot(t *testing.T) {
	mask, err := BuildAlphaMap(5, 4, 3, 1)
	require.NoError(t, err)
	require.Len(t, mask.Weights, 5*4*3)

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			var sum float32
			for l := 0; l < mask.Layers; l++ {
				sum += mask.At(x, y, l)
			}
			assert.Equal(t, float32(1), sum)
			assert.Equal(t, float32(1), mask.At(x, y, 1))
		}
	}
}

func TestBuildAlphaMap_BadLayer(t *testing.T) {
	_, err := BuildAlphaMap(2, 2, 2, 2)
	assert.ErrorIs(t, err, ErrTerrainLayer)
	_, err = BuildAlphaMap(2, 2, 2, -1)
	assert.ErrorIs(t, err, ErrTerrainLayer)
}

func TestSceneFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	scenes := testScenes()
	scenes[0].RandomizeRotation = true
	scenes[1].Rotation = core.EulerAngles{X: 10, Y: 20, Z: 30}
	scenes[1].Distance = -6

	require.NoError(t, WriteFile(path, scenes))
	got, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, scenes, got)
}

func TestReadFile_Hand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	doc := `
scenes:
  - outputLabel: Snow
    lightIntensity: 0.8
    terrainLayer: 1
    material: Chrome
    captureQuota: 250
    randomizeDistance: true
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Snow", got[0].OutputLabel)
	assert.Equal(t, 250, got[0].CaptureQuota)
	assert.True(t, got[0].RandomizeDistance)
}

func TestReadFile_RandomizeDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenes.yaml")
	doc := `
scenes:
  - outputLabel: Grass
    captureQuota: 10
  - outputLabel: Snow
    captureQuota: 10
    randomizeRotation: false
    rotation: {x: 0, y: 90, z: 0}
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	got, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].RandomizeRotation)
	assert.True(t, got[0].RandomizeDistance)
	assert.False(t, got[1].RandomizeRotation)
	assert.True(t, got[1].RandomizeDistance)
	assert.Equal(t, 90.0, got[1].Rotation.Y)
}

func TestReadFile_Errors(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scenes: []\n"), 0644))
	_, err = ReadFile(path)
	assert.ErrorIs(t, err, ErrConfigurationMissing)
}
