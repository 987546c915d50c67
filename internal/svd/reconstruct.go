// internal/svd/reconstruct.go
//
// Rank-N approximations from a cached decomposition. Samples are rounded to
// the nearest integer and clamped into [0,255].

package svd

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/robalobadob/svdguess/internal/imagebuf"
)

// Product returns the raw rank-n approximation U[:, :n]·diag(S[:n])·Vᵗ[:n, :]
// before clamping. Values may fall outside [0,255].
func (d *Decomposition) Product(n int) (*mat.Dense, error) {
	if n < 1 || n > len(d.s) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrRank, n, len(d.s))
	}
	rows, _ := d.u.Dims()
	cols, _ := d.v.Dims()

	// Scale the kept columns of U by their singular values, then multiply by
	// the kept rows of Vᵗ.
	var us mat.Dense
	us.Apply(func(_, j int, x float64) float64 {
		return x * d.s[j]
	}, d.u.Slice(0, rows, 0, n))

	var out mat.Dense
	out.Mul(&us, d.v.Slice(0, cols, 0, n).T())
	return &out, nil
}

// Reconstruct builds the rank-n image: the raw product clamped to [0,255],
// rounded to integers and reshaped to the original H×W×C. For a fixed
// decomposition and n the output is bit-for-bit reproducible.
func (d *Decomposition) Reconstruct(n int) (imagebuf.Image, error) {
	p, err := d.Product(n)
	if err != nil {
		return imagebuf.Image{}, err
	}
	return imagebuf.FromFloats(d.shape, p.RawMatrix().Data)
}
