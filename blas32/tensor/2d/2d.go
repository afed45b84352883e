package tensor2d

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(rows, cols int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]float32, rows*cols),
	}
}

func NewZerosLike(gen blas32.General) blas32.General {
	return NewZeros(gen.Rows, gen.Cols)
}

func NewHe(rows, cols int, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	fanIn := float64(rows)
	std := math.Sqrt(2.0 / fanIn)
	for i := range gen.Data {
		gen.Data[i] = float32(rng.NormFloat64() * std)
	}
	return gen
}

// FromSlice wraps data row-major without copying it.
func FromSlice(rows, cols int, data []float32) (blas32.General, error) {
	if len(data) != rows*cols {
		return blas32.General{}, fmt.Errorf("data length (%d) does not match %dx%d", len(data), rows, cols)
	}
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   data,
	}, nil
}

func N(gen blas32.General) int {
	return gen.Rows * gen.Cols
}

func Clone(gen blas32.General) blas32.General {
	return blas32.General{
		Rows:   gen.Rows,
		Cols:   gen.Cols,
		Stride: gen.Stride,
		Data:   slices.Clone(gen.Data),
	}
}

func At(gen blas32.General, row, col int) int {
	return row*gen.Stride + col
}

func ToVector(gen blas32.General) blas32.Vector {
	return blas32.Vector{
		N:    N(gen),
		Inc:  1,
		Data: gen.Data,
	}
}

func Scal(alpha float32, gen blas32.General) {
	vec := ToVector(gen)
	blas32.Scal(alpha, vec)
}

func Axpy(alpha float32, x, y blas32.General) {
	xv := ToVector(x)
	yv := ToVector(y)
	blas32.Axpy(alpha, xv, yv)
}

func Dot(tA, tB blas.Transpose, a, b blas32.General) blas32.General {
	y := blas32.General{
		Rows:   a.Rows,
		Cols:   b.Cols,
		Stride: b.Cols,
		Data:   make([]float32, a.Rows*b.Cols),
	}
	blas32.Gemm(tA, tB, 1.0, a, b, 0.0, y)
	return y
}

// Mean0 returns the per-column mean.
func Mean0(gen blas32.General) blas32.Vector {
	means := make([]float32, gen.Cols)
	for c := 0; c < gen.Cols; c++ {
		var sum float32
		for r := 0; r < gen.Rows; r++ {
			sum += gen.Data[At(gen, r, c)]
		}
		means[c] = sum / float32(gen.Rows)
	}
	return blas32.Vector{
		N:    gen.Cols,
		Inc:  1,
		Data: means,
	}
}

// ConcatCols concatenates the given matrices along the column axis,
// preserving argument order. All matrices must share the same number of rows.
func ConcatCols(gens ...blas32.General) (blas32.General, error) {
	if len(gens) == 0 {
		return blas32.General{}, fmt.Errorf("nothing to concatenate")
	}

	rows := gens[0].Rows
	cols := 0
	for _, gen := range gens {
		if gen.Rows != rows {
			return blas32.General{}, fmt.Errorf("row count mismatch: %d != %d", gen.Rows, rows)
		}
		cols += gen.Cols
	}

	y := NewZeros(rows, cols)
	offset := 0
	for _, gen := range gens {
		for r := 0; r < rows; r++ {
			src := gen.Data[r*gen.Stride : r*gen.Stride+gen.Cols]
			copy(y.Data[r*y.Stride+offset:], src)
		}
		offset += gen.Cols
	}
	return y, nil
}
