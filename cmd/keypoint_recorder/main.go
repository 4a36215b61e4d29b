package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/keypointsim/recorder/internal/config"
	"github.com/keypointsim/recorder/internal/dispatcher"
	"github.com/keypointsim/recorder/internal/logging"
	"github.com/keypointsim/recorder/internal/monitor"
	intOtel "github.com/keypointsim/recorder/internal/otel"
	"github.com/keypointsim/recorder/internal/pose"
	"github.com/keypointsim/recorder/internal/run"
	"github.com/keypointsim/recorder/internal/scan"
	"github.com/keypointsim/recorder/internal/scene"
	"github.com/keypointsim/recorder/pkg/core"
	"github.com/keypointsim/recorder/pkg/host"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	ExtensionName string = "keypoint_recorder"
)

var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && strings.ToLower(args[0]) == "export" {
		if err := exportCatalog(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	configDir := "."
	if len(args) > 0 {
		configDir = args[0]
	}
	if err := runRecorder(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", ExtensionName, err)
		os.Exit(1)
	}
}

// runRecorder sets up logging and telemetry, builds the storage backends and
// the synthetic host, and ticks the scan controller until the run ends.
func runRecorder(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	runCtx := run.NewContext()
	level := config.GetString("logLevel")

	var logWriter io.Writer = os.Stdout
	logFile, err := logging.OpenLogFile(config.GetString("logsDir"), ExtensionName, SessionStartTime)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err)
	} else {
		defer logFile.Close()
		logWriter = logFile
		Logger.Info("Begin logging in logs directory", "path", logFile.Name())
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.FromConfig(otelCfg, runCtx.ID(), logWriter))
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	var graylog io.WriteCloser
	if config.GetBool("graylog.enabled") {
		graylog, err = logging.NewGraylogWriter(config.GetString("graylog.address"), ExtensionName)
		if err != nil {
			Logger.Error("Failed to connect to graylog", "error", err)
		} else {
			defer graylog.Close()
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.SetRunAttrs(runCtx.LogAttrs)
	SlogManager.Setup(logWriter, level, otelLogProvider, graylog)
	Logger = SlogManager.Logger()
	Logger.Info("Starting", "version", CurrentVersion, "buildDate", BuildDate, "run", runCtx.ID())

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := SlogManager.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "flush logs: %v\n", err)
		}
		if OTelProvider != nil {
			if err := OTelProvider.Shutdown(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "shutdown otel: %v\n", err)
			}
		}
	}()

	scanCfg := scan.DefaultConfig()
	if err := config.Decode("scan", &scanCfg); err != nil {
		return err
	}
	scenes, err := loadScenes()
	if err != nil {
		return err
	}

	synthetic, err := newSyntheticHost(config.GetHostConfig())
	if err != nil {
		return err
	}
	sequencer, err := scene.NewSequencer(scenes, synthetic, Logger)
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	backends, err := createStorageBackend(storageCfg, runCtx, len(scenes), SlogManager, logWriter)
	if err != nil {
		return err
	}
	if err := backends.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			Logger.Error("Failed to close storage", "error", err)
		}
	}()

	d, err := dispatcher.New(logging.NewZerologAdapter(logging.NewComponentLogger(logWriter, "dispatcher", level)))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	bridge := host.NewBridge(d)
	capturer := newOverlayCapturer(synthetic, bridge, storageCfg.Memory.OutputDir, config.GetBool("host.writeImages"), Logger)
	bridge.HandleCapture(capturer.Save, config.GetInt("capture.bufferSize"))
	defer bridge.Close()

	if config.GetBool("monitor.enabled") {
		mon := monitor.NewService(monitor.Dependencies{
			LogManager:  SlogManager,
			RunContext:  runCtx,
			OutputDir:   storageCfg.Memory.OutputDir,
			Interval:    config.GetDuration("monitor.interval"),
			WriteQueues: backends.WriteQueues,
		})
		if err := mon.Start(); err != nil {
			Logger.Error("Failed to start status monitor", "error", err)
		} else {
			defer mon.Stop()
		}
	}

	ctrl, err := scan.New(scanCfg, scan.Dependencies{
		Scene:     synthetic,
		Capturer:  capturer,
		Lifecycle: synthetic,
		Random:    pose.NewSource(seed()),
		Sequencer: sequencer,
		Storage:   backends,
		Run:       runCtx,
		Log:       Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticks, err := runScan(ctx, ctrl, uint64(config.GetInt("scan.maxTicks")))
	st := ctrl.State()
	Logger.Info("Run ended",
		"ticks", ticks,
		"frames", st.TotalCaptured,
		"phase", st.Phase.String(),
		"images", capturer.Written(),
		"stopped", synthetic.Stopped(),
	)
	for _, s := range backends.Dataset.Summary() {
		Logger.Info("Scene summary", "scene", s.Index, "label", s.Label, "captured", s.Captured, "quota", s.Quota)
	}
	if path := backends.Dataset.GetExportedFilePath(); path != "" {
		Logger.Info("Dataset archive written", "path", path)
	}
	return err
}

// runScan starts the controller and ticks it until the run finishes, a
// fatal error occurs, ctx is cancelled or maxTicks (when non-zero) is hit.
func runScan(ctx context.Context, ctrl *scan.Controller, maxTicks uint64) (uint64, error) {
	if err := ctrl.Start(ctx); err != nil {
		return 0, err
	}

	var ticks uint64
	for !ctrl.Finished() {
		if maxTicks > 0 && ticks >= maxTicks {
			Logger.Warn("Tick limit reached before the last scene completed", "maxTicks", maxTicks)
			return ticks, nil
		}
		if ctx.Err() != nil {
			Logger.Warn("Run interrupted", "ticks", ticks)
			return ticks, nil
		}

		err := ctrl.Tick(ctx)
		ticks++
		switch {
		case err == nil:
		case scan.IsFatal(err):
			return ticks, err
		case errors.Is(err, context.Canceled):
			return ticks, nil
		default:
			Logger.Warn("Tick failed", "error", err)
		}
	}
	return ticks, nil
}

// loadScenes reads the scene file when one is configured and the inline
// list otherwise.
func loadScenes() ([]core.SceneConfig, error) {
	if path := config.GetString("scenesFile"); path != "" {
		return scene.ReadFile(path)
	}
	scenes, err := config.GetScenes()
	if err != nil {
		return nil, err
	}
	if err := scene.Validate(scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

func seed() uint64 {
	if s := config.GetInt("scan.seed"); s != 0 {
		return uint64(s)
	}
	return uint64(time.Now().UnixNano())
}
