// Package config provides the configuration schema, loader, sensor driver
// registry, and file watcher for the obs-motion daemon.
package config

import (
	"time"

	"github.com/otastet/obs-motion/internal/session"
)

// LogLevel controls log verbosity for the daemon.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for obs-motion.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Recorder RecorderConfig `yaml:"recorder"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Trigger  TriggerConfig  `yaml:"trigger"`
}

// ServerConfig holds the ops endpoint and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the ops HTTP server (metrics, health)
	// listens on (e.g., ":9090"). Empty disables the ops server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// RecorderConfig holds the connection settings for the remote recorder's
// websocket control endpoint.
type RecorderConfig struct {
	// Address is the host:port of the recorder control endpoint
	// (e.g., "localhost:4455").
	Address string `yaml:"address"`

	// Password authenticates the control connection. Leave empty when the
	// recorder has authentication disabled.
	Password string `yaml:"password"`

	// ConnectTimeoutS bounds the initial connection handshake, in seconds.
	// Defaults to 10 if zero.
	ConnectTimeoutS float64 `yaml:"connect_timeout_s"`
}

// ConnectTimeout returns the handshake timeout as a [time.Duration].
func (r RecorderConfig) ConnectTimeout() time.Duration {
	if r.ConnectTimeoutS <= 0 {
		return 10 * time.Second
	}
	return secondsToDuration(r.ConnectTimeoutS)
}

// SensorsConfig declares the detection sensors. A nil entry disables that
// sensor.
type SensorsConfig struct {
	Vision *SensorConfig `yaml:"vision"`
	Audio  *SensorConfig `yaml:"audio"`
}

// SensorConfig describes one detection sensor: which driver produces its
// readings, the detection threshold, and the sampling cadence.
type SensorConfig struct {
	// Driver selects the registered signal source implementation
	// (e.g., "command"). Looked up in the [Registry].
	Driver string `yaml:"driver"`

	// Threshold is the activity metric value at or above which a reading
	// counts as a detection.
	Threshold float64 `yaml:"threshold"`

	// IntervalS is the sampling cadence, in seconds. Defaults to 1 if zero.
	IntervalS float64 `yaml:"interval_s"`

	// Options holds driver-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or
	// nested maps.
	Options map[string]any `yaml:"options"`
}

// Interval returns the sampling cadence as a [time.Duration].
func (s SensorConfig) Interval() time.Duration {
	if s.IntervalS <= 0 {
		return time.Second
	}
	return secondsToDuration(s.IntervalS)
}

// TriggerConfig holds the debounce and session timing knobs.
type TriggerConfig struct {
	// CooldownS is the minimum spacing between accepted triggers, in
	// seconds. Zero disables debouncing.
	CooldownS float64 `yaml:"cooldown_s"`

	// RecordingDurationS is how long a recording session runs absent
	// retriggers, in seconds. Required.
	RecordingDurationS float64 `yaml:"recording_duration_s"`

	// StopGraceS bounds how long a stop command may take before local
	// session state is forced back to idle, in seconds. Defaults to 5 if zero.
	StopGraceS float64 `yaml:"stop_grace_s"`

	// RetriggerPolicy decides what an accepted trigger does while a
	// recording is active. Defaults to "extend".
	RetriggerPolicy session.RetriggerPolicy `yaml:"retrigger_policy"`

	// BusCapacity is the detection bus buffer size. Defaults to 8 if zero.
	BusCapacity int `yaml:"bus_capacity"`
}

// Cooldown returns the cooldown window as a [time.Duration].
func (t TriggerConfig) Cooldown() time.Duration {
	return secondsToDuration(t.CooldownS)
}

// RecordingDuration returns the session length as a [time.Duration].
func (t TriggerConfig) RecordingDuration() time.Duration {
	return secondsToDuration(t.RecordingDurationS)
}

// StopGrace returns the stop grace window as a [time.Duration].
func (t TriggerConfig) StopGrace() time.Duration {
	return secondsToDuration(t.StopGraceS)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
