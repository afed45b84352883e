package gaussian

import (
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"
	"github.com/sw965/raven/blas32/tensor/2d"
	"github.com/sw965/raven/blas32/vector"
	cmath "github.com/sw965/raven/math"
	crand "github.com/sw965/raven/math/rand"
)

// Diagonal is a batch of independent diagonal-gaussian distributions:
// one distribution per row, one dimension per column.
type Diagonal struct {
	mean blas32.General
	std  blas32.General
}

// New builds a batch diagonal gaussian. With validate on, the
// parameters are checked for finiteness and strictly positive
// standard deviations; with validate off (the hot sampling path)
// malformed parameters propagate into samples and entropies unchecked.
func New(mean, std blas32.General, validate bool) (*Diagonal, error) {
	if mean.Rows != std.Rows || mean.Cols != std.Cols {
		return nil, fmt.Errorf("mean shape (%dx%d) does not match std shape (%dx%d)", mean.Rows, mean.Cols, std.Rows, std.Cols)
	}

	if validate {
		for _, e := range mean.Data {
			if math32.IsNaN(e) || math32.IsInf(e, 0) {
				return nil, fmt.Errorf("mean contains a non-finite value: %f", e)
			}
		}
		for _, e := range std.Data {
			if !(e > 0) || math32.IsInf(e, 0) {
				return nil, fmt.Errorf("std must be strictly positive and finite: %f", e)
			}
		}
	}

	return &Diagonal{mean: mean, std: std}, nil
}

// Mean returns the internal mean tensor; callers must not modify it.
func (d *Diagonal) Mean() blas32.General {
	return d.mean
}

// Stddev returns the internal std tensor; callers must not modify it.
func (d *Diagonal) Stddev() blas32.General {
	return d.std
}

// Sample draws one reparameterized sample per row: mean + std*eps with
// eps drawn independently per dimension from the standard normal.
func (d *Diagonal) Sample(rng *rand.Rand) blas32.General {
	y := tensor2d.Clone(d.mean)
	for r := 0; r < y.Rows; r++ {
		offset := r * y.Stride
		stdOffset := r * d.std.Stride
		for c := 0; c < y.Cols; c++ {
			y.Data[offset+c] += d.std.Data[stdOffset+c] * crand.Normal(rng)
		}
	}
	return y
}

// Entropy returns the per-row entropy, summed over dimensions.
func (d *Diagonal) Entropy() blas32.Vector {
	y := vector.NewZeros(d.std.Rows)
	for r := 0; r < d.std.Rows; r++ {
		offset := r * d.std.Stride
		var sum float32
		for c := 0; c < d.std.Cols; c++ {
			sum += cmath.NormalEntropy(d.std.Data[offset+c])
		}
		y.Data[r] = sum
	}
	return y
}

// LogProb returns the per-row log density of x, summed over dimensions.
func (d *Diagonal) LogProb(x blas32.General) (blas32.Vector, error) {
	if x.Rows != d.mean.Rows || x.Cols != d.mean.Cols {
		return blas32.Vector{}, fmt.Errorf("value shape (%dx%d) does not match mean shape (%dx%d)", x.Rows, x.Cols, d.mean.Rows, d.mean.Cols)
	}

	y := vector.NewZeros(x.Rows)
	for r := 0; r < x.Rows; r++ {
		var sum float32
		for c := 0; c < x.Cols; c++ {
			sum += cmath.NormalLogProb(
				x.Data[tensor2d.At(x, r, c)],
				d.mean.Data[tensor2d.At(d.mean, r, c)],
				d.std.Data[tensor2d.At(d.std, r, c)],
			)
		}
		y.Data[r] = sum
	}
	return y, nil
}
