// internal/imagebuf/image.go
//
// Fixed-shape pixel grids for the reveal engine.
// Responsibilities:
//   - Describe the image shape (height × width × channels, 8-bit samples).
//   - Convert between pixel grids and float64 buffers for linear algebra.
//   - Clamp out-of-range samples into [0,255] (no wraparound, no normalizing).
//
// Memory layout is row-major HWC: Pix[(y*Width+x)*Channels+c].
// Reading that buffer as rows of Width samples gives the (H·C)×W matrix the
// decomposer factorizes.

package imagebuf

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrDecode reports malformed or dimension-mismatched encoded images.
	ErrDecode = errors.New("imagebuf: cannot decode image")

	// ErrShape reports an unusable shape or a buffer that does not fit it.
	ErrShape = errors.New("imagebuf: invalid shape")
)

// Shape is the fixed geometry every image in a round shares.
type Shape struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"` // 1 (gray), 3 (RGB) or 4 (RGBA)
}

// DefaultShape matches the catalog artwork: 256×256 RGBA.
var DefaultShape = Shape{Height: 256, Width: 256, Channels: 4}

// Len is the number of samples in an image of this shape.
func (s Shape) Len() int { return s.Height * s.Width * s.Channels }

// Validate checks dimensions and channel count.
func (s Shape) Validate() error {
	if s.Height <= 0 || s.Width <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrShape, s.Height, s.Width)
	}
	switch s.Channels {
	case 1, 3, 4:
		return nil
	}
	return fmt.Errorf("%w: %d channels", ErrShape, s.Channels)
}

// String renders the shape as HxWxC.
func (s Shape) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Image is an immutable pixel grid. Reconstruction always builds a new one.
type Image struct {
	Shape
	Pix []uint8
}

// New wraps pix after checking it fits shape. pix is not copied.
func New(shape Shape, pix []uint8) (Image, error) {
	if err := shape.Validate(); err != nil {
		return Image{}, err
	}
	if len(pix) != shape.Len() {
		return Image{}, fmt.Errorf("%w: %d samples for %s", ErrShape, len(pix), shape)
	}
	return Image{Shape: shape, Pix: pix}, nil
}

// Empty reports whether the image carries no pixels (zero value).
func (im Image) Empty() bool { return len(im.Pix) == 0 }

// Floats copies the samples into a float64 buffer in the same order.
func (im Image) Floats() []float64 {
	out := make([]float64, len(im.Pix))
	for i, v := range im.Pix {
		out[i] = float64(v)
	}
	return out
}

// FromFloats clamps and rounds data into a new Image of the given shape.
func FromFloats(shape Shape, data []float64) (Image, error) {
	if err := shape.Validate(); err != nil {
		return Image{}, err
	}
	if len(data) != shape.Len() {
		return Image{}, fmt.Errorf("%w: %d samples for %s", ErrShape, len(data), shape)
	}
	pix := make([]uint8, len(data))
	for i, v := range data {
		pix[i] = Clamp(v)
	}
	return Image{Shape: shape, Pix: pix}, nil
}

// Clamp maps v into [0,255]: below 0 → 0, above 255 → 255, otherwise the
// nearest integer. NaN maps to 0.
func Clamp(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(math.Round(v))
}

// MSE is the mean squared error between two images of the same shape.
func MSE(a, b Image) (float64, error) {
	if a.Shape != b.Shape || len(a.Pix) != len(b.Pix) {
		return 0, fmt.Errorf("%w: %s vs %s", ErrShape, a.Shape, b.Shape)
	}
	if len(a.Pix) == 0 {
		return 0, nil
	}
	var sum float64
	for i := range a.Pix {
		d := float64(a.Pix[i]) - float64(b.Pix[i])
		sum += d * d
	}
	return sum / float64(len(a.Pix)), nil
}
