package config_test

import (
	"testing"
	"time"

	"github.com/otastet/obs-motion/internal/config"
	"github.com/otastet/obs-motion/internal/session"
)

func TestLogLevelIsValid(t *testing.T) {
	t.Parallel()
	valid := []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError}
	for _, l := range valid {
		if !l.IsValid() {
			t.Errorf("%q.IsValid() = false, want true", l)
		}
	}
	for _, l := range []config.LogLevel{"", "trace", "INFO"} {
		if l.IsValid() {
			t.Errorf("%q.IsValid() = true, want false", l)
		}
	}
}

func TestSensorConfigInterval(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		intervalS float64
		want      time.Duration
	}{
		{"default when zero", 0, time.Second},
		{"whole seconds", 2, 2 * time.Second},
		{"sub-second", 0.25, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := config.SensorConfig{IntervalS: tt.intervalS}
			if got := s.Interval(); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTriggerConfigDurations(t *testing.T) {
	t.Parallel()
	tc := config.TriggerConfig{
		CooldownS:          30,
		RecordingDurationS: 3600,
		StopGraceS:         2.5,
	}
	if got := tc.Cooldown(); got != 30*time.Second {
		t.Errorf("Cooldown() = %v, want 30s", got)
	}
	if got := tc.RecordingDuration(); got != time.Hour {
		t.Errorf("RecordingDuration() = %v, want 1h", got)
	}
	if got := tc.StopGrace(); got != 2500*time.Millisecond {
		t.Errorf("StopGrace() = %v, want 2.5s", got)
	}
}

func TestRecorderConfigConnectTimeout(t *testing.T) {
	t.Parallel()
	var r config.RecorderConfig
	if got := r.ConnectTimeout(); got != 10*time.Second {
		t.Errorf("default ConnectTimeout() = %v, want 10s", got)
	}
	r.ConnectTimeoutS = 3
	if got := r.ConnectTimeout(); got != 3*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 3s", got)
	}
}

func TestTriggerConfigPolicyType(t *testing.T) {
	t.Parallel()
	tc := config.TriggerConfig{RetriggerPolicy: session.RetriggerIgnore}
	if !tc.RetriggerPolicy.IsValid() {
		t.Error("configured policy should be valid")
	}
}
