// Package audio computes a normalized loudness metric from raw PCM chunks.
//
// Detection uses two measurements of each chunk: the peak sample level, which
// responds to sharp transients (claps, door slams), and the RMS level, which
// responds to sustained sound. Each is normalized against its own reference
// level and the larger ratio becomes the reading, so a reading of 1.0 means
// "at the reference level on at least one measurement". Sensors built on this
// source therefore use a threshold of 1.0 unless they want extra headroom.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/otastet/obs-motion/pkg/sensor"
)

// Default reference levels, chosen for clap-style triggering: a peak of half
// full scale, or a sustained level of 1% full scale.
const (
	defaultPeakReference = 0.5
	defaultRMSReference  = 0.01
)

// fullScale is the normalization divisor for int16 PCM.
const fullScale = 32768.0

// ChunkSource delivers raw PCM chunks (mono int16 samples). NextChunk blocks
// until a chunk is available or ctx is done. Transient capture failures
// should be wrapped in [sensor.ErrSourceUnavailable].
type ChunkSource interface {
	NextChunk(ctx context.Context) ([]int16, error)
}

// Peak returns the normalized peak level of chunk in [0, 1].
// An empty chunk yields 0.
func Peak(chunk []int16) float64 {
	var max int32
	for _, s := range chunk {
		v := int32(s)
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	return float64(max) / fullScale
}

// RMS returns the normalized root-mean-square level of chunk in [0, 1].
// An empty chunk yields 0.
func RMS(chunk []int16) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	for _, s := range chunk {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum/float64(len(chunk))) / fullScale
}

// Option configures a source built by [NewSource].
type Option func(*meter)

// WithPeakReference sets the peak level that maps to a reading of 1.0.
// The default is 0.5.
func WithPeakReference(ref float64) Option {
	return func(m *meter) { m.peakRef = ref }
}

// WithRMSReference sets the RMS level that maps to a reading of 1.0.
// The default is 0.01.
func WithRMSReference(ref float64) Option {
	return func(m *meter) { m.rmsRef = ref }
}

type meter struct {
	peakRef float64
	rmsRef  float64
}

// NewSource wraps a [ChunkSource] into a [sensor.Source] whose readings are
// max(peak/peakRef, rms/rmsRef) for each chunk.
func NewSource(chunks ChunkSource, opts ...Option) sensor.Source {
	m := &meter{peakRef: defaultPeakReference, rmsRef: defaultRMSReference}
	for _, o := range opts {
		o(m)
	}
	return sensor.SourceFunc(func(ctx context.Context) (float64, error) {
		chunk, err := chunks.NextChunk(ctx)
		if err != nil {
			if errors.Is(err, sensor.ErrSourceUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %v", sensor.ErrSourceUnavailable, err)
		}
		reading := Peak(chunk) / m.peakRef
		if m.rmsRef > 0 {
			if r := RMS(chunk) / m.rmsRef; r > reading {
				reading = r
			}
		}
		return reading, nil
	})
}
