package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/keypointsim/recorder/internal/database"
	"github.com/keypointsim/recorder/internal/dataset"
	gormstorage "github.com/keypointsim/recorder/internal/storage/gorm"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func catalogFrame(key, label string, scene int) *core.FrameRecord {
	return &core.FrameRecord{
		Key:         key,
		SceneIndex:  scene,
		OutputLabel: label,
		CapturedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Screen:      core.ScreenSize{Width: 640, Height: 480},
		Keypoints: []core.Keypoint{
			{Index: 1, Name: "center", Screen: core.ScreenPoint{X: 100, Y: 400}},
		},
		Camera: core.Transform{Rotation: core.IdentityRotation},
		Target: core.Transform{Position: core.Vector3{Z: 6}, Rotation: core.IdentityRotation},
		Box:    core.BoundingBox2D{Min: core.ScreenPoint{X: 80, Y: 380}, Max: core.ScreenPoint{X: 120, Y: 420}},
	}
}

// writeCatalog records two scenes of one run into a catalog file.
func writeCatalog(t *testing.T, runID string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := database.GetSqliteDB(path)
	require.NoError(t, err)

	b := gormstorage.New(gormstorage.Dependencies{DB: db, RunID: runID, SceneCount: 2})
	require.NoError(t, b.Init())
	require.NoError(t, b.StartScene(0, core.SceneConfig{OutputLabel: "grass", CaptureQuota: 2}))
	require.NoError(t, b.RecordFrame(catalogFrame("sim_202403011200001", "grass", 0)))
	require.NoError(t, b.RecordFrame(catalogFrame("sim_202403011200002", "grass", 0)))
	require.NoError(t, b.EndScene())
	require.NoError(t, b.StartScene(1, core.SceneConfig{OutputLabel: "sand", CaptureQuota: 1}))
	require.NoError(t, b.RecordFrame(catalogFrame("sim_202403011200003", "sand", 1)))
	require.NoError(t, b.EndScene())
	require.NoError(t, b.Finalize())
	require.NoError(t, b.Close())

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
	return path
}

func TestExportCatalog(t *testing.T) {
	catalog := writeCatalog(t, "run-1")
	out := t.TempDir()

	require.NoError(t, exportCatalog([]string{catalog, out}))

	flat, err := dataset.ReadFlat(filepath.Join(out, dataset.FlatFile))
	require.NoError(t, err)
	assert.Len(t, flat, 3)

	grass, err := dataset.ReadDescriptive(filepath.Join(dataset.SceneDir(out, "grass"), dataset.DescriptiveFile))
	require.NoError(t, err)
	require.Len(t, grass, 2)
	frame := grass["sim_202403011200001"]
	require.Len(t, frame.Keypoints, 1)
	assert.Equal(t, "center", frame.Keypoints[0].Name)
	// stored y-up, exported y-down
	assert.Equal(t, 80.0, frame.Keypoints[0].Pos.Y)

	keys, err := dataset.ReadKeys(filepath.Join(dataset.SceneDir(out, "sand"), dataset.KeysFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"sim_202403011200003"}, keys)
}

func TestExportCatalog_SelectedRun(t *testing.T) {
	catalog := writeCatalog(t, "run-1")
	out := t.TempDir()

	require.NoError(t, exportCatalog([]string{catalog, out, "run-unknown"}))

	flat, err := dataset.ReadFlat(filepath.Join(out, dataset.FlatFile))
	require.NoError(t, err)
	assert.Empty(t, flat)
}

func TestExportCatalog_Usage(t *testing.T) {
	assert.ErrorIs(t, exportCatalog(nil), ErrExportUsage)
	assert.ErrorIs(t, exportCatalog([]string{"catalog.db"}), ErrExportUsage)
}
