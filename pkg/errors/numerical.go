package errors

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CheckScalar checks a single scalar value for NaN or Inf.
func CheckScalar(operation string, value float64, iteration int) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return NewNumericalInstabilityError(operation, []float64{value}, iteration)
	}
	return nil
}

// CheckVector checks a slice for NaN or Inf.
func CheckVector(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckMatrix reports the first row of m holding NaN or Inf values.
// Estimators call it on their inputs so that bad data fails fast in Fit.
func CheckMatrix(operation string, m mat.Matrix) error {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		var bad []float64
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				bad = append(bad, v)
			}
		}
		if len(bad) > 0 {
			return NewNumericalInstabilityError(operation, bad, i)
		}
	}
	return nil
}

// SafeDivide returns 0 when the denominator is zero or close to it.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// ClipValue clips a value to the range [min, max].
func ClipValue(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// StabilizeLog returns log(max(value, 1e-15)).
func StabilizeLog(value float64) float64 {
	const epsilon = 1e-15
	if value < epsilon {
		return math.Log(epsilon)
	}
	return math.Log(value)
}

// StabilizeExp clips the exponent so exp never returns Inf.
func StabilizeExp(value float64) float64 {
	const maxExp = 700.0
	if value > maxExp {
		return math.Exp(maxExp)
	}
	if value < -maxExp {
		return 0
	}
	return math.Exp(value)
}

// Sigmoid is the logistic function, evaluated without overflow for large |z|.
func Sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

// LogSumExp computes log(sum(exp(values))) in a numerically stable way.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}
	return maxVal + math.Log(sum)
}

// Softmax overwrites values with their softmax in place.
func Softmax(values []float64) {
	lse := LogSumExp(values)
	for i, v := range values {
		values[i] = math.Exp(v - lse)
	}
}
