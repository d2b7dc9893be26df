package analysis

import "math"

// Generator maps a seed and an inclusive range to a reproducible integer.
type Generator interface {
	Between(seed float64, min, max int) int
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(seed float64, min, max int) int

func (f GeneratorFunc) Between(seed float64, min, max int) int {
	return f(seed, min, max)
}

// SineGenerator is the trigonometric pseudo-random source. Its output is
// only as portable as the host's float64 sine.
type SineGenerator struct{}

func (SineGenerator) Between(seed float64, min, max int) int {
	x := float64(math.Sin(seed) * 10000)
	frac := x - math.Floor(x)
	return int(math.Floor(frac*float64(max-min+1))) + min
}
