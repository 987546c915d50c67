// internal/svd/svd.go
//
// Singular value decomposition of fixed-shape images.
// Responsibilities:
//   - Factorize an image once per round (the expensive step).
//   - Rebuild rank-N approximations from the cached factors.
//
// The pixel buffer is read as an (H·C)×W matrix, rows of W samples in HWC
// order. A thin decomposition is kept: U is (H·C)×k, V is W×k and S holds the
// k = min(H·C, W) singular values in descending order. That is all the
// reconstruction ever needs, and at rank k it reproduces the input.

package svd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/robalobadob/svdguess/internal/imagebuf"
)

var (
	// ErrFactorize is returned when the SVD routine fails to converge.
	ErrFactorize = errors.New("svd: factorization failed")

	// ErrRank is returned for a reconstruction rank outside [1, Rank()].
	ErrRank = errors.New("svd: rank out of range")
)

// Decomposition caches the factors of one image. It is read-only after
// Factorize and safe for concurrent reconstruction.
type Decomposition struct {
	shape imagebuf.Shape
	u     mat.Dense // (H·C)×k left singular vectors
	s     []float64 // k singular values, descending
	v     mat.Dense // W×k right singular vectors (V, not Vᵗ)
}

// Factorize computes the decomposition of im.
func Factorize(im imagebuf.Image) (*Decomposition, error) {
	if err := im.Shape.Validate(); err != nil {
		return nil, err
	}
	if len(im.Pix) != im.Len() {
		return nil, fmt.Errorf("%w: %d samples for %s", imagebuf.ErrShape, len(im.Pix), im.Shape)
	}

	rows, cols := im.Height*im.Channels, im.Width
	a := mat.NewDense(rows, cols, im.Floats())

	var f mat.SVD
	if ok := f.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: %dx%d matrix", ErrFactorize, rows, cols)
	}

	d := &Decomposition{shape: im.Shape, s: f.Values(nil)}
	f.UTo(&d.u)
	f.VTo(&d.v)
	return d, nil
}

// Shape is the geometry of the factorized image.
func (d *Decomposition) Shape() imagebuf.Shape { return d.shape }

// Rank is the number of singular values, the upper bound for Reconstruct.
func (d *Decomposition) Rank() int { return len(d.s) }

// Values returns a copy of the singular values, largest first.
func (d *Decomposition) Values() []float64 {
	return append([]float64(nil), d.s...)
}

// Energy is the share of total squared singular value mass kept at rank n,
// in [0,1]. n is clipped to [0, Rank()].
func (d *Decomposition) Energy(n int) float64 {
	n = max(0, min(n, len(d.s)))
	var kept, total float64
	for i, v := range d.s {
		total += v * v
		if i < n {
			kept += v * v
		}
	}
	if total == 0 {
		return 1
	}
	return kept / total
}
