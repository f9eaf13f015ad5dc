// Package vision computes a motion-intensity metric from camera frames by
// frame differencing: each grayscale frame is compared pixel-by-pixel against
// the previous one, and the number of pixels whose brightness changed by more
// than a sensitivity margin becomes the metric (the "changed-pixel area").
//
// The package deliberately knows nothing about cameras. Frames arrive through
// a [FrameSource] implemented by a capture integration; the detector is pure
// computation and the [sensor.Source] wrapper glues the two together.
package vision

import (
	"context"
	"errors"
	"fmt"

	"github.com/otastet/obs-motion/pkg/sensor"
)

// defaultSensitivity is the minimum per-pixel brightness delta that counts as
// a changed pixel.
const defaultSensitivity = 25

// Frame is a single grayscale camera frame. Pixels are row-major, one byte
// per pixel, len(Pixels) == Width*Height.
type Frame struct {
	Width  int
	Height int
	Pixels []uint8
}

// FrameSource delivers camera frames. NextFrame blocks until a frame is
// available or ctx is done. Transient capture failures should be wrapped in
// [sensor.ErrSourceUnavailable].
type FrameSource interface {
	NextFrame(ctx context.Context) (Frame, error)
}

// Detector computes the changed-pixel area between consecutive frames.
// Not safe for concurrent use; each sensor owns one detector.
type Detector struct {
	sensitivity uint8
	prev        []uint8
	width       int
	height      int
}

// DetectorOption configures a [Detector].
type DetectorOption func(*Detector)

// WithSensitivity sets the per-pixel brightness delta (0–255) above which a
// pixel counts as changed. The default is 25.
func WithSensitivity(s uint8) DetectorOption {
	return func(d *Detector) { d.sensitivity = s }
}

// NewDetector creates a Detector with the given options.
func NewDetector(opts ...DetectorOption) *Detector {
	d := &Detector{sensitivity: defaultSensitivity}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Process compares f against the previously processed frame and returns the
// changed-pixel area. The first frame, or a frame after a resolution change,
// establishes a new baseline and yields 0.
func (d *Detector) Process(f Frame) (float64, error) {
	if len(f.Pixels) != f.Width*f.Height {
		return 0, fmt.Errorf("vision: frame %dx%d has %d pixels", f.Width, f.Height, len(f.Pixels))
	}

	if d.prev == nil || d.width != f.Width || d.height != f.Height {
		d.prev = append(d.prev[:0], f.Pixels...)
		d.width = f.Width
		d.height = f.Height
		return 0, nil
	}

	changed := 0
	for i, p := range f.Pixels {
		delta := int(p) - int(d.prev[i])
		if delta < 0 {
			delta = -delta
		}
		if delta > int(d.sensitivity) {
			changed++
		}
	}
	copy(d.prev, f.Pixels)
	return float64(changed), nil
}

// NewSource wraps a [FrameSource] and a [Detector] into a [sensor.Source]
// whose readings are changed-pixel areas.
func NewSource(frames FrameSource, opts ...DetectorOption) sensor.Source {
	det := NewDetector(opts...)
	return sensor.SourceFunc(func(ctx context.Context) (float64, error) {
		f, err := frames.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, sensor.ErrSourceUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return 0, err
			}
			return 0, fmt.Errorf("%w: %v", sensor.ErrSourceUnavailable, err)
		}
		return det.Process(f)
	})
}
