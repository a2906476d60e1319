package errors

import (
	"math"
)

// CheckMatrix checks all values in a matrix for NaN or Inf and returns a
// NumericalInstabilityError for the first offending row.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		var unstable []float64
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				unstable = append(unstable, v)
			}
		}
		if len(unstable) > 0 {
			return NewNumericalInstabilityError(operation, unstable, i)
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
