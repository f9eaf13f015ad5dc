package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidDriverNames lists the sensor driver names shipped with the daemon.
// Used by [Validate] to warn about unrecognised driver names, which may be
// typos or externally registered drivers.
var ValidDriverNames = []string{"command"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Recorder
	if cfg.Recorder.Address == "" {
		errs = append(errs, errors.New("recorder.address is required"))
	}
	if cfg.Recorder.ConnectTimeoutS < 0 {
		errs = append(errs, fmt.Errorf("recorder.connect_timeout_s %.2f must not be negative", cfg.Recorder.ConnectTimeoutS))
	}
	if cfg.Recorder.Password == "" {
		slog.Warn("recorder.password is empty; connection will fail if the recorder requires authentication")
	}

	// Sensors
	if cfg.Sensors.Vision == nil && cfg.Sensors.Audio == nil {
		slog.Warn("no sensors configured; nothing will ever trigger a recording")
	}
	validateSensor(&errs, "sensors.vision", cfg.Sensors.Vision)
	validateSensor(&errs, "sensors.audio", cfg.Sensors.Audio)

	// Trigger
	if cfg.Trigger.RecordingDurationS <= 0 {
		errs = append(errs, errors.New("trigger.recording_duration_s is required and must be positive"))
	}
	if cfg.Trigger.CooldownS < 0 {
		errs = append(errs, fmt.Errorf("trigger.cooldown_s %.2f must not be negative", cfg.Trigger.CooldownS))
	}
	if cfg.Trigger.StopGraceS < 0 {
		errs = append(errs, fmt.Errorf("trigger.stop_grace_s %.2f must not be negative", cfg.Trigger.StopGraceS))
	}
	if cfg.Trigger.BusCapacity < 0 {
		errs = append(errs, fmt.Errorf("trigger.bus_capacity %d must not be negative", cfg.Trigger.BusCapacity))
	}
	if p := cfg.Trigger.RetriggerPolicy; p != "" && !p.IsValid() {
		errs = append(errs, fmt.Errorf("trigger.retrigger_policy %q is invalid; valid values: extend, ignore", p))
	}
	if cfg.Trigger.CooldownS > 0 && cfg.Trigger.RecordingDurationS > 0 &&
		cfg.Trigger.CooldownS >= cfg.Trigger.RecordingDurationS {
		slog.Warn("trigger.cooldown_s is at least trigger.recording_duration_s; sessions can never be extended before they expire",
			"cooldown_s", cfg.Trigger.CooldownS,
			"recording_duration_s", cfg.Trigger.RecordingDurationS,
		)
	}

	return errors.Join(errs...)
}

// validateSensor appends validation errors for one sensor block. A nil block
// means the sensor is disabled and is always valid.
func validateSensor(errs *[]error, prefix string, s *SensorConfig) {
	if s == nil {
		return
	}
	if s.Driver == "" {
		*errs = append(*errs, fmt.Errorf("%s.driver is required", prefix))
	} else {
		validateDriverName(prefix, s.Driver)
	}
	if s.Threshold <= 0 {
		*errs = append(*errs, fmt.Errorf("%s.threshold %.2f must be positive", prefix, s.Threshold))
	}
	if s.IntervalS < 0 {
		*errs = append(*errs, fmt.Errorf("%s.interval_s %.2f must not be negative", prefix, s.IntervalS))
	}
}

// validateDriverName logs a warning if name is not found in [ValidDriverNames].
func validateDriverName(prefix, name string) {
	if slices.Contains(ValidDriverNames, name) {
		return
	}
	slog.Warn("unknown sensor driver name — may be a typo or an externally registered driver",
		"sensor", prefix,
		"driver", name,
		"known", ValidDriverNames,
	)
}
