package config_test

import (
	"testing"

	"github.com/otastet/obs-motion/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: ":9090",
			LogLevel:   config.LogInfo,
		},
		Recorder: config.RecorderConfig{
			Address:  "localhost:4455",
			Password: "x",
		},
		Sensors: config.SensorsConfig{
			Vision: &config.SensorConfig{Driver: "command", Threshold: 5000, IntervalS: 1},
		},
		Trigger: config.TriggerConfig{
			CooldownS:          30,
			RecordingDurationS: 3600,
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)
	if d.LogLevelChanged || len(d.SensorChanges) != 0 || d.TriggerChanged || d.RecorderChanged {
		t.Errorf("expected empty diff, got %+v", d)
	}
	if d.RestartRequired() {
		t.Error("RestartRequired() = true for identical configs")
	}
}

func TestDiff_LogLevel(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("LogLevelChanged = false")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("NewLogLevel = %q, want %q", d.NewLogLevel, config.LogDebug)
	}
	if d.RestartRequired() {
		t.Error("log level change should not require a restart")
	}
}

func TestDiff_SensorThreshold(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Sensors.Vision.Threshold = 9000

	d := config.Diff(old, new)
	if len(d.SensorChanges) != 1 {
		t.Fatalf("SensorChanges = %+v, want one entry", d.SensorChanges)
	}
	sd := d.SensorChanges[0]
	if sd.Name != "vision" || !sd.ThresholdChanged {
		t.Errorf("unexpected sensor diff: %+v", sd)
	}
	if !d.RestartRequired() {
		t.Error("threshold change should require a restart")
	}
}

func TestDiff_SensorAddedAndRemoved(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Sensors.Vision = nil
	new.Sensors.Audio = &config.SensorConfig{Driver: "command", Threshold: 1}

	d := config.Diff(old, new)
	if len(d.SensorChanges) != 2 {
		t.Fatalf("SensorChanges = %+v, want two entries", d.SensorChanges)
	}
	for _, sd := range d.SensorChanges {
		switch sd.Name {
		case "vision":
			if !sd.Removed {
				t.Errorf("vision diff should be Removed: %+v", sd)
			}
		case "audio":
			if !sd.Added {
				t.Errorf("audio diff should be Added: %+v", sd)
			}
		default:
			t.Errorf("unexpected sensor diff name %q", sd.Name)
		}
	}
}

func TestDiff_SensorOptions(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	old.Sensors.Vision.Options = map[string]any{"device": "/dev/video0"}
	new.Sensors.Vision.Options = map[string]any{"device": "/dev/video1"}

	d := config.Diff(old, new)
	if len(d.SensorChanges) != 1 || !d.SensorChanges[0].OptionsChanged {
		t.Errorf("expected OptionsChanged, got %+v", d.SensorChanges)
	}
}

func TestDiff_TriggerAndRecorder(t *testing.T) {
	t.Parallel()
	old, new := baseConfig(), baseConfig()
	new.Trigger.CooldownS = 60
	new.Recorder.Address = "remote:4455"

	d := config.Diff(old, new)
	if !d.TriggerChanged {
		t.Error("TriggerChanged = false")
	}
	if !d.RecorderChanged {
		t.Error("RecorderChanged = false")
	}
	if !d.RestartRequired() {
		t.Error("RestartRequired() = false")
	}
}
