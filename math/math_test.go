package math_test

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	cmath "github.com/sw965/raven/math"
)

func TestNormalEntropyClosedForm(t *testing.T) {
	for _, std := range []float32{0.05, 0.1, 1.0, 2.5} {
		want := 0.5 * stdmath.Log(2.0*stdmath.Pi*stdmath.E*float64(std)*float64(std))
		assert.InDelta(t, want, float64(cmath.NormalEntropy(std)), 1e-5)
	}
}

func TestNormalLogProb(t *testing.T) {
	x, mean, std := float32(0.3), float32(-0.2), float32(0.7)
	z := float64(x-mean) / float64(std)
	want := -0.5*z*z - stdmath.Log(float64(std)) - 0.5*stdmath.Log(2.0*stdmath.Pi)
	assert.InDelta(t, want, float64(cmath.NormalLogProb(x, mean, std)), 1e-5)
}
