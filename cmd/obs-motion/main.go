// Command obs-motion is the motion- and audio-triggered recording daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/otastet/obs-motion/internal/app"
	"github.com/otastet/obs-motion/internal/config"
	"github.com/otastet/obs-motion/internal/observe"
	"github.com/otastet/obs-motion/pkg/sensor"
	"github.com/otastet/obs-motion/pkg/sensor/cmdsource"
)

// version is stamped via -ldflags at release build time.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("obs-motion", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "obs-motion: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "obs-motion: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("obs-motion starting",
		"version", version,
		"config", *configPath,
		"recorder", cfg.Recorder.Address,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Metrics provider ──────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(ctx); err != nil {
			slog.Warn("metrics provider shutdown error", "err", err)
		}
	}()

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Sensor driver registry ────────────────────────────────────────────────
	reg := config.NewRegistry()
	closeDrivers := registerBuiltinDrivers(ctx, reg)
	defer closeDrivers()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, updated *config.Config) {
		d := config.Diff(old, updated)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.RestartRequired() {
			slog.Warn("sensor, trigger, or recorder settings changed; restart to apply")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("daemon ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Driver wiring ─────────────────────────────────────────────────────────────

// registerBuiltinDrivers wires the sensor drivers that ship with obs-motion
// into reg. The returned function stops any long-running capture helpers and
// is called during process teardown.
func registerBuiltinDrivers(ctx context.Context, reg *config.Registry) (cleanup func()) {
	var sources []*cmdsource.Source

	// "command" runs an external capture helper that prints one reading per
	// line (e.g. a script wrapping ffmpeg or pw-cat).
	reg.Register("command", func(entry config.SensorConfig) (sensor.Source, error) {
		command := optString(entry.Options, "command")
		if command == "" {
			return nil, fmt.Errorf("command driver: options.command is required")
		}
		src := cmdsource.New(command, optStrings(entry.Options, "args"))
		if err := src.Start(ctx); err != nil {
			return nil, err
		}
		sources = append(sources, src)
		slog.Debug("registered capture helper", "command", command)
		return src, nil
	})

	return func() {
		for _, src := range sources {
			if err := src.Close(); err != nil {
				slog.Warn("capture helper close error", "err", err)
			}
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       obs-motion — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Recorder", cfg.Recorder.Address)
	printSensor("Vision", cfg.Sensors.Vision)
	printSensor("Audio", cfg.Sensors.Audio)
	printField("Cooldown", cfg.Trigger.Cooldown().String())
	printField("Duration", cfg.Trigger.RecordingDuration().String())
	if cfg.Trigger.RetriggerPolicy != "" {
		printField("Retrigger", string(cfg.Trigger.RetriggerPolicy))
	} else {
		printField("Retrigger", "extend (default)")
	}
	if cfg.Server.ListenAddr != "" {
		printField("Ops addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printSensor(kind string, sc *config.SensorConfig) {
	if sc == nil {
		printField(kind, "(disabled)")
		return
	}
	printField(kind, fmt.Sprintf("%s @ %.4g", sc.Driver, sc.Threshold))
}

func printField(kind, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s : %-19s  ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

// newLogger builds the default text logger. The returned LevelVar lets the
// config watcher change verbosity at runtime.
func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a sensor Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optStrings extracts a string slice from a sensor Options map. YAML sequences
// decode as []any, so each element is converted individually.
func optStrings(opts map[string]any, key string) []string {
	if opts == nil {
		return nil
	}
	raw, ok := opts[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
