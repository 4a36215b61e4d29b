package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keypointsim/recorder/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db.local")
	viper.Set("db.port", "5433")
	viper.Set("db.username", "rec")
	viper.Set("db.password", "secret")
	viper.Set("db.database", "keypoints")

	assert.Equal(t, "host=db.local port=5433 user=rec password=secret dbname=keypoints sslmode=disable", PostgresDSN())
}

func TestGetSqliteDB_InMemoryIsPrivate(t *testing.T) {
	a, err := GetSqliteDB("")
	require.NoError(t, err)
	b, err := GetSqliteDB("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a, zerolog.Nop()))
	require.NoError(t, a.Create(&model.Run{ID: "run-a"}).Error)

	assert.False(t, b.Migrator().HasTable(&model.Run{}))
}

func TestMigrateCreatesTables(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db, zerolog.Nop()))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db, zerolog.Nop()))
	require.NoError(t, db.Create(&model.Run{ID: "run-1", OutputDir: "/tmp/out"}).Error)

	path := filepath.Join(t.TempDir(), "catalog.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// second dump replaces the first
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	disk, err := GetSqliteDB(path)
	require.NoError(t, err)
	var run model.Run
	require.NoError(t, disk.First(&run, "id = ?", "run-1").Error)
	assert.Equal(t, "/tmp/out", run.OutputDir)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDB("")
	require.NoError(t, err)
	assert.ErrorIs(t, DumpMemoryDBToDisk(db, ""), ErrNoDumpPath)
}

func TestManager_LocalFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fallback.db")
	m := NewManager(zerolog.Nop(), path)
	require.NoError(t, m.connectLocal())
	require.NoError(t, m.Setup())

	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)
	require.NoError(t, m.DumpMemoryToDisk())
	_, err := os.Stat(path)
	assert.NoError(t, err)

	require.NoError(t, m.Close())
	assert.False(t, m.IsValid)
}

func TestManager_DumpSkippedOnPostgres(t *testing.T) {
	m := NewManager(zerolog.Nop(), "")
	assert.NoError(t, m.DumpMemoryToDisk())
	assert.Error(t, m.Setup())
}
