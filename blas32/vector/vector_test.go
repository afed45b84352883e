package vector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/sw965/raven/blas32/vector"
)

func TestNewFull(t *testing.T) {
	vec := vector.NewFull(3, 0.25)
	assert.Equal(t, []float32{0.25, 0.25, 0.25}, vec.Data)
	assert.Equal(t, 3, vec.N)
	assert.Equal(t, 1, vec.Inc)
}

func TestCloneIsIndependent(t *testing.T) {
	vec := vector.FromSlice([]float32{1, 2, 3})
	clone := vector.Clone(vec)
	clone.Data[0] = 9
	assert.Equal(t, []float32{1, 2, 3}, vec.Data)
}

func TestNewZerosLike(t *testing.T) {
	vec := vector.FromSlice([]float32{1, 2})
	zeros := vector.NewZerosLike(vec)
	assert.Equal(t, []float32{0, 0}, zeros.Data)
}
