package calculator

import "math"

// Epsilon is the magnitude below which a denominator is treated as zero.
const Epsilon = 1e-9

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation. Fewer than 2 points yields 0.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	mu := Mean(xs)
	variance := 0.0
	for _, x := range xs {
		d := x - mu
		variance += d * d
	}
	variance /= float64(len(xs))
	return Finite(math.Sqrt(variance), 0)
}

// PearsonCorrelation returns the correlation of xs and ys over their common prefix.
// Fewer than 2 pairs, or a series with no variance, yields 0.
func PearsonCorrelation(xs, ys []float64) float64 {
	n := len(xs)
	if len(ys) < n {
		n = len(ys)
	}
	if n < 2 {
		return 0
	}
	mx, my := Mean(xs[:n]), Mean(ys[:n])
	var cov, vx, vy float64
	for i := 0; i < n; i++ {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	r := SafeDivide(cov, math.Sqrt(vx*vy), 0)
	return Clamp(r, -1, 1)
}

// SafeDivide returns numerator/denominator, or fallback when the denominator is
// within Epsilon of zero or the quotient is not finite.
func SafeDivide(numerator, denominator, fallback float64) float64 {
	if math.IsNaN(denominator) || math.Abs(denominator) < Epsilon {
		return fallback
	}
	return Finite(numerator/denominator, fallback)
}

// Clamp bounds x to [lo, hi]. NaN clamps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Finite returns x, or fallback when x is NaN or infinite.
func Finite(x, fallback float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fallback
	}
	return x
}
