package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"outputDir": "/data/captures",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "/data/captures", viper.GetString("outputDir"))
	assert.Equal(t, "10.0.0.1", viper.GetString("db.host"))
	assert.Equal(t, "5433", viper.GetString("db.port"))
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./logs", viper.GetString("logsDir"))
	assert.Equal(t, "./Captures", viper.GetString("outputDir"))
	assert.Equal(t, 64, viper.GetInt("capture.bufferSize"))
	assert.Equal(t, 640, viper.GetInt("host.width"))
	assert.Equal(t, 480, viper.GetInt("host.height"))
	assert.Equal(t, "localhost", viper.GetString("db.host"))
	assert.Equal(t, "5432", viper.GetString("db.port"))
	assert.Equal(t, "keypoints", viper.GetString("db.database"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "captures", viper.GetString("influx.bucket"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, 10*time.Second, viper.GetDuration("monitor.interval"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("testKey", "testValue")
	viper.Set("testInt", 42)
	viper.Set("testBool", true)
	viper.Set("testDuration", "90s")

	assert.Equal(t, "testValue", GetString("testKey"))
	assert.Equal(t, 42, GetInt("testInt"))
	assert.Equal(t, true, GetBool("testBool"))
	assert.Equal(t, 90*time.Second, GetDuration("testDuration"))
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "none", cfg.Catalog)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, "./Captures", cfg.Memory.OutputDir)
	assert.Equal(t, false, cfg.Memory.CompressOutput)
	assert.Equal(t, 3*time.Minute, cfg.SQLite.DumpInterval)
	assert.Equal(t, filepath.Join("./Captures", "catalog.db"), cfg.SQLite.DumpPath)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"outputDir": "/tmp/out",
		"compressOutput": true,
		"storage": {
			"catalog": "sqlite",
			"flushInterval": "500ms",
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/cat.db" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Catalog)
	assert.Equal(t, 500*time.Millisecond, sc.FlushInterval)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, true, sc.Memory.CompressOutput)
	assert.Equal(t, 10*time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, "/tmp/cat.db", sc.SQLite.DumpPath)
}

func TestGetHostConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"host": { "width": 320, "writeImages": false, "targetDistance": 8.5 }
	}`)))

	hc := GetHostConfig()
	assert.Equal(t, 320, hc.Width)
	assert.Equal(t, 480, hc.Height)
	assert.False(t, hc.WriteImages)
	assert.Equal(t, 60.0, hc.FieldOfView)
	assert.Equal(t, 8.5, hc.TargetDistance)
	assert.Equal(t, 1.0, hc.TargetSize)
}

func TestGetStreamConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"stream": { "enabled": true, "secret": "s3cret" }
	}`)))

	sc := GetStreamConfig()
	assert.True(t, sc.Enabled)
	assert.Equal(t, "ws://localhost:5000/api/stream", sc.URL)
	assert.Equal(t, "s3cret", sc.Secret)
}

func TestGetOTelConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetOTelConfig()
	assert.Equal(t, false, cfg.Enabled)
	assert.Equal(t, "keypoint-recorder", cfg.ServiceName)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
	assert.Equal(t, "", cfg.Endpoint)
	assert.Equal(t, true, cfg.Insecure)
}

func TestGetOTelConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"otel": {
			"enabled": true,
			"serviceName": "my-service",
			"batchTimeout": "30s",
			"endpoint": "localhost:4317",
			"insecure": false
		}
	}`)))

	oc := GetOTelConfig()
	assert.Equal(t, true, oc.Enabled)
	assert.Equal(t, "my-service", oc.ServiceName)
	assert.Equal(t, 30*time.Second, oc.BatchTimeout)
	assert.Equal(t, "localhost:4317", oc.Endpoint)
	assert.Equal(t, false, oc.Insecure)
}

func TestGetScenes(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"scenes": [
			{"outputLabel": "Grass", "lightIntensity": 1.2, "terrainLayer": 0, "material": "Steel", "captureQuota": 100},
			{"outputLabel": "Snow", "terrainLayer": 3, "captureQuota": 50,
			 "randomizeRotation": false, "rotation": {"x": 10, "y": 0, "z": 45}}
		]
	}`)))

	scenes, err := GetScenes()
	require.NoError(t, err)
	require.Len(t, scenes, 2)
	assert.Equal(t, "Grass", scenes[0].OutputLabel)
	assert.Equal(t, 1.2, scenes[0].LightIntensity)
	assert.Equal(t, 100, scenes[0].CaptureQuota)
	assert.Equal(t, 3, scenes[1].TerrainLayer)
	assert.Equal(t, 45.0, scenes[1].Rotation.Z)
}

func TestGetScenes_RandomizeDefaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"scenes": [
			{"outputLabel": "Grass", "captureQuota": 10},
			{"outputLabel": "Snow", "captureQuota": 10, "RandomizeRotation": false},
			{"outputLabel": "Sand", "captureQuota": 10, "randomizeDistance": false, "distance": -4}
		]
	}`)))

	scenes, err := GetScenes()
	require.NoError(t, err)
	require.Len(t, scenes, 3)
	assert.True(t, scenes[0].RandomizeRotation)
	assert.True(t, scenes[0].RandomizeDistance)
	assert.False(t, scenes[1].RandomizeRotation)
	assert.True(t, scenes[1].RandomizeDistance)
	assert.True(t, scenes[2].RandomizeRotation)
	assert.False(t, scenes[2].RandomizeDistance)
	assert.Equal(t, -4.0, scenes[2].Distance)
}

func TestGetScenes_None(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	scenes, err := GetScenes()
	require.NoError(t, err)
	assert.Empty(t, scenes)
}

func TestDecode(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{"scan": {"offsetX": 0.2}}`)))

	type scanSettings struct {
		OffsetX float64 `mapstructure:"offsetX"`
		OffsetY float64 `mapstructure:"offsetY"`
	}
	s := scanSettings{OffsetX: 0.05, OffsetY: 0.07}
	require.NoError(t, Decode("scan", &s))
	assert.Equal(t, 0.2, s.OffsetX)
	assert.Equal(t, 0.07, s.OffsetY, "absent keys keep their prior value")

	missing := scanSettings{OffsetX: 1}
	require.NoError(t, Decode("nothing", &missing))
	assert.Equal(t, 1.0, missing.OffsetX)
}
