package nn

import "math"

// Sat clamps value to [min, max].
func Sat(value, max, min float64) float64 {
	if value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// SatDeadZone clamps value to [min, max] while zeroing values inside dead-zone bounds.
func SatDeadZone(value, max, min, deadZoneMax, deadZoneMin float64) float64 {
	if value < deadZoneMax && value > deadZoneMin {
		return 0
	}
	return Sat(value, max, min)
}

// Finite maps NaN to zero and clamps to [min, max], so infinities saturate.
func Finite(value, max, min float64) float64 {
	if math.IsNaN(value) {
		return 0
	}
	return Sat(value, max, min)
}

// ScaleValue maps value from [min, max] to [-1, 1].
func ScaleValue(value, max, min float64) float64 {
	if max == min {
		return 0
	}
	return (value*2 - (max + min)) / (max - min)
}

func narrow(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

func widen(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
