package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/keypointsim/recorder/pkg/core"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "keypoint_recorder.cfg.json"

// MemoryConfig holds dataset output settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite catalog
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// StorageConfig selects and configures storage backends
type StorageConfig struct {
	Catalog       string
	FlushInterval time.Duration
	Memory        MemoryConfig
	SQLite        SQLiteConfig
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// HostConfig describes the synthetic camera and target.
type HostConfig struct {
	Width          int
	Height         int
	WriteImages    bool
	FieldOfView    float64
	TargetDistance float64
	TargetSize     float64
}

// StreamConfig holds the live frame stream settings.
type StreamConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("outputDir", "./Captures")
	viper.SetDefault("compressOutput", false)
	viper.SetDefault("scenesFile", "")

	viper.SetDefault("scan.maxTicks", 0)
	viper.SetDefault("scan.seed", 0)
	viper.SetDefault("capture.bufferSize", 64)

	viper.SetDefault("host.width", 640)
	viper.SetDefault("host.height", 480)
	viper.SetDefault("host.writeImages", true)
	viper.SetDefault("host.fieldOfView", 60)
	viper.SetDefault("host.targetDistance", 6)
	viper.SetDefault("host.targetSize", 1)

	viper.SetDefault("storage.catalog", "none")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "keypoints")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "keypoint-metrics")
	viper.SetDefault("influx.bucket", "captures")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5000/api/stream")
	viper.SetDefault("stream.secret", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "keypoint-recorder")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "10s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Decode unmarshals the subtree at key into out. Fields absent from the
// config keep the values already in out.
func Decode(key string, out any) error {
	if !viper.IsSet(key) {
		return nil
	}
	if err := viper.UnmarshalKey(key, out); err != nil {
		return fmt.Errorf("error decoding %s: %w", key, err)
	}
	return nil
}

// GetScenes returns the inline scene list. Randomization switches a scene
// leaves out default to true.
func GetScenes() ([]core.SceneConfig, error) {
	var scenes []core.SceneConfig
	if err := viper.UnmarshalKey("scenes", &scenes, viper.DecodeHook(sceneDefaultsHook)); err != nil {
		return nil, fmt.Errorf("error decoding scenes: %w", err)
	}
	return scenes, nil
}

var sceneConfigType = reflect.TypeOf(core.SceneConfig{})

// sceneDefaultsHook lays a scene entry over DefaultSceneConfig's switches.
// Viper lowercases keys it owns, so matching ignores case.
func sceneDefaultsHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	entry, ok := data.(map[string]any)
	if !ok || to != sceneConfigType {
		return data, nil
	}
	defaults := core.DefaultSceneConfig()
	out := map[string]any{
		"randomizeRotation": defaults.RandomizeRotation,
		"randomizeDistance": defaults.RandomizeDistance,
	}
	for k, v := range entry {
		for d := range out {
			if d != k && strings.EqualFold(d, k) {
				delete(out, d)
			}
		}
		out[k] = v
	}
	return out, nil
}

// GetStorageConfig returns storage settings.
func GetStorageConfig() StorageConfig {
	outputDir := viper.GetString("outputDir")
	dumpPath := viper.GetString("storage.sqlite.dumpPath")
	if dumpPath == "" {
		dumpPath = filepath.Join(outputDir, "catalog.db")
	}
	return StorageConfig{
		Catalog:       viper.GetString("storage.catalog"),
		FlushInterval: viper.GetDuration("storage.flushInterval"),
		Memory: MemoryConfig{
			OutputDir:      outputDir,
			CompressOutput: viper.GetBool("compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     dumpPath,
		},
	}
}

// GetOTelConfig returns OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetHostConfig returns synthetic host settings.
func GetHostConfig() HostConfig {
	return HostConfig{
		Width:          viper.GetInt("host.width"),
		Height:         viper.GetInt("host.height"),
		WriteImages:    viper.GetBool("host.writeImages"),
		FieldOfView:    viper.GetFloat64("host.fieldOfView"),
		TargetDistance: viper.GetFloat64("host.targetDistance"),
		TargetSize:     viper.GetFloat64("host.targetSize"),
	}
}

// GetStreamConfig returns live frame stream settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Secret:  viper.GetString("stream.secret"),
	}
}
