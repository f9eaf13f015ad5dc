package config_test

import (
	"context"
	"errors"
	"testing"

	"github.com/otastet/obs-motion/internal/config"
	"github.com/otastet/obs-motion/pkg/sensor"
)

func TestRegistryCreate(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.Register("static", func(cfg config.SensorConfig) (sensor.Source, error) {
		v, _ := cfg.Options["value"].(float64)
		return sensor.SourceFunc(func(context.Context) (float64, error) {
			return v, nil
		}), nil
	})

	src, err := r.Create(config.SensorConfig{
		Driver:  "static",
		Options: map[string]any{"value": 42.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := src.Sample(context.Background())
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if got != 42.0 {
		t.Errorf("Sample() = %v, want 42", got)
	}
}

func TestRegistryCreateUnregistered(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	_, err := r.Create(config.SensorConfig{Driver: "nope"})
	if !errors.Is(err, config.ErrDriverNotRegistered) {
		t.Fatalf("err = %v, want ErrDriverNotRegistered", err)
	}
}

func TestRegistryRegisterOverwrites(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.Register("d", func(config.SensorConfig) (sensor.Source, error) {
		return sensor.SourceFunc(func(context.Context) (float64, error) { return 1, nil }), nil
	})
	r.Register("d", func(config.SensorConfig) (sensor.Source, error) {
		return sensor.SourceFunc(func(context.Context) (float64, error) { return 2, nil }), nil
	})

	src, err := r.Create(config.SensorConfig{Driver: "d"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got, _ := src.Sample(context.Background()); got != 2 {
		t.Errorf("Sample() = %v, want the later registration's 2", got)
	}
}
