package math

import (
	"github.com/chewxy/math32"
)

// log(2*pi*e) and 0.5*log(2*pi)
const (
	log2PiE    = 2.8378770664093453
	halfLog2Pi = 0.9189385332046727
)

// NormalEntropy returns the differential entropy of a univariate
// gaussian with the given standard deviation: 0.5*log(2*pi*e*std^2).
// The result is garbage for std <= 0; callers validate.
func NormalEntropy(std float32) float32 {
	return 0.5*log2PiE + math32.Log(std)
}

// NormalLogProb returns the log density of x under a univariate
// gaussian with the given mean and standard deviation.
func NormalLogProb(x, mean, std float32) float32 {
	z := (x - mean) / std
	return -0.5*z*z - math32.Log(std) - halfLog2Pi
}
