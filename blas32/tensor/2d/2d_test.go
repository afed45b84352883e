package tensor2d_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sw965/raven/blas32/tensor/2d"
)

func TestConcatColsKeepsArgumentOrder(t *testing.T) {
	a, err := tensor2d.FromSlice(2, 2, []float32{1, 2, 3, 4})
	require.NoError(t, err)
	b, err := tensor2d.FromSlice(2, 1, []float32{5, 6})
	require.NoError(t, err)

	y, err := tensor2d.ConcatCols(a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, y.Rows)
	assert.Equal(t, 3, y.Cols)
	assert.Equal(t, []float32{1, 2, 5, 3, 4, 6}, y.Data)

	reversed, err := tensor2d.ConcatCols(b, a)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 1, 2, 6, 3, 4}, reversed.Data)
}

func TestConcatColsRowMismatch(t *testing.T) {
	a := tensor2d.NewZeros(2, 2)
	b := tensor2d.NewZeros(3, 2)
	_, err := tensor2d.ConcatCols(a, b)
	assert.Error(t, err)
}

func TestMean0(t *testing.T) {
	x, err := tensor2d.FromSlice(3, 2, []float32{1, 10, 2, 20, 3, 30})
	require.NoError(t, err)
	mean := tensor2d.Mean0(x)
	assert.InDelta(t, 2.0, float64(mean.Data[0]), 1e-6)
	assert.InDelta(t, 20.0, float64(mean.Data[1]), 1e-6)
}

func TestFromSliceLengthMismatch(t *testing.T) {
	_, err := tensor2d.FromSlice(2, 3, []float32{1, 2, 3})
	assert.Error(t, err)
}
