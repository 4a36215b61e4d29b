package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDescriptive_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Images", "Gravel", DescriptiveFile)
	frames := map[string]DescriptiveFrame{
		"sim_1": Descriptive(testRecord("sim_1")),
		"sim_2": Descriptive(testRecord("sim_2")),
	}

	require.NoError(t, AppendDescriptive(path, frames))

	got, err := ReadDescriptive(path)
	require.NoError(t, err)
	assert.Equal(t, frames, got)
}

func TestAppendFlat_MergesWithExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), FlatFile)

	first := map[string]FlatFrame{"sim_1": Flat(testRecord("sim_1"))}
	require.NoError(t, AppendFlat(path, first))

	second := map[string]FlatFrame{"sim_2": Flat(testRecord("sim_2"))}
	require.NoError(t, AppendFlat(path, second))

	got, err := ReadFlat(path)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, first["sim_1"], got["sim_1"])
	assert.Equal(t, second["sim_2"], got["sim_2"])
}

func TestAppendFlat_PreservesUnknownEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), FlatFile)
	require.NoError(t, os.WriteFile(path, []byte(`{"legacy": {"note": "kept"}}`), 0644))

	require.NoError(t, AppendFlat(path, map[string]FlatFrame{"sim_1": Flat(testRecord("sim_1"))}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"note": "kept"`)
	assert.Contains(t, string(data), `"sim_1"`)
}

func TestAppend_EmptyDeltaDoesNotTouchDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), FlatFile)
	require.NoError(t, AppendFlat(path, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAppend_EmptyExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FlatFile)
	require.NoError(t, os.WriteFile(path, nil, 0644))

	require.NoError(t, AppendFlat(path, map[string]FlatFrame{"sim_1": Flat(testRecord("sim_1"))}))
	got, err := ReadFlat(path)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAppend_CorruptFileLeftIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), FlatFile)
	corrupt := []byte(`{"sim_1": {`)
	require.NoError(t, os.WriteFile(path, corrupt, 0644))

	err := AppendFlat(path, map[string]FlatFrame{"sim_2": Flat(testRecord("sim_2"))})
	assert.ErrorIs(t, err, ErrIOFailure)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)
}

func TestAppend_NoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FlatFile)
	require.NoError(t, AppendFlat(path, map[string]FlatFrame{"sim_1": Flat(testRecord("sim_1"))}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FlatFile, entries[0].Name())
}

func TestAppend_UnwritableDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "Images")
	require.NoError(t, os.WriteFile(blocker, []byte("not a dir"), 0644))

	err := AppendDescriptive(filepath.Join(blocker, "Gravel", DescriptiveFile),
		map[string]DescriptiveFrame{"sim_1": Descriptive(testRecord("sim_1"))})
	assert.ErrorIs(t, err, ErrIOFailure)
}

func TestAppendKeys_Dedupe(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeysFile)

	require.NoError(t, AppendKeys(path, []string{"sim_1", "sim_2"}))
	require.NoError(t, AppendKeys(path, []string{"sim_2", "sim_3", "sim_3"}))

	got, err := ReadKeys(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"sim_1", "sim_2", "sim_3"}, got)
}

func TestAppendKeys_MissingTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), KeysFile)
	require.NoError(t, os.WriteFile(path, []byte("sim_1"), 0644))

	require.NoError(t, AppendKeys(path, []string{"sim_2"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sim_1\nsim_2\n", string(data))
}

func TestReadKeys_Missing(t *testing.T) {
	got, err := ReadKeys(filepath.Join(t.TempDir(), KeysFile))
	require.NoError(t, err)
	assert.Empty(t, got)
}
