package config

import "reflect"

// ConfigDiff describes what changed between two configs. Fields that can be
// applied without a restart (log level) are distinguished from those that
// cannot (sensor and trigger timing), so the watcher callback can apply the
// former and warn about the latter.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// SensorChanges lists per-sensor differences. Non-empty means a restart
	// is needed for the new sensor settings to take effect.
	SensorChanges []SensorDiff

	// TriggerChanged is true if any cooldown, duration, or policy knob
	// changed. Requires a restart.
	TriggerChanged bool

	// RecorderChanged is true if the recorder address or credentials
	// changed. Requires a restart.
	RecorderChanged bool
}

// SensorDiff describes what changed for a single sensor between two configs.
type SensorDiff struct {
	Name             string
	DriverChanged    bool
	ThresholdChanged bool
	IntervalChanged  bool
	OptionsChanged   bool
	Added            bool
	Removed          bool
}

// RestartRequired reports whether any changed field needs a process restart
// to take effect.
func (d ConfigDiff) RestartRequired() bool {
	return len(d.SensorChanges) > 0 || d.TriggerChanged || d.RecorderChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if sd, changed := diffSensor("vision", old.Sensors.Vision, new.Sensors.Vision); changed {
		d.SensorChanges = append(d.SensorChanges, sd)
	}
	if sd, changed := diffSensor("audio", old.Sensors.Audio, new.Sensors.Audio); changed {
		d.SensorChanges = append(d.SensorChanges, sd)
	}

	if old.Trigger != new.Trigger {
		d.TriggerChanged = true
	}
	if old.Recorder != new.Recorder {
		d.RecorderChanged = true
	}

	return d
}

// diffSensor compares one sensor block across configs. Either side may be nil
// (sensor disabled).
func diffSensor(name string, old, new *SensorConfig) (SensorDiff, bool) {
	sd := SensorDiff{Name: name}

	switch {
	case old == nil && new == nil:
		return sd, false
	case old == nil:
		sd.Added = true
		return sd, true
	case new == nil:
		sd.Removed = true
		return sd, true
	}

	sd.DriverChanged = old.Driver != new.Driver
	sd.ThresholdChanged = old.Threshold != new.Threshold
	sd.IntervalChanged = old.IntervalS != new.IntervalS
	sd.OptionsChanged = !equalOptions(old.Options, new.Options)

	changed := sd.DriverChanged || sd.ThresholdChanged || sd.IntervalChanged || sd.OptionsChanged
	return sd, changed
}

// equalOptions compares option maps structurally, including nested maps and
// slices produced by the YAML decoder.
func equalOptions(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}
