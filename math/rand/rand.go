package rand

import (
	"math/rand"
)

// Normal returns a float32 sample from the standard normal distribution.
func Normal(rng *rand.Rand) float32 {
	return float32(rng.NormFloat64())
}
