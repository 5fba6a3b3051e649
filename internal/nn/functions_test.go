package nn

import (
	"math"
	"testing"
)

func TestSaturationHelpers(t *testing.T) {
	if got := Sat(2, 1, -1); got != 1 {
		t.Fatalf("sat high: got=%f", got)
	}
	if got := Sat(-2, 1, -1); got != -1 {
		t.Fatalf("sat low: got=%f", got)
	}
	if got := SatDeadZone(0.05, 1, -1, 0.1, -0.1); got != 0 {
		t.Fatalf("dead zone: got=%f", got)
	}
	if got := SatDeadZone(0.5, 1, -1, 0.1, -0.1); got != 0.5 {
		t.Fatalf("outside dead zone: got=%f", got)
	}
}

func TestFinite(t *testing.T) {
	if got := Finite(math.NaN(), 1, -1); got != 0 {
		t.Fatalf("nan: got=%f", got)
	}
	if got := Finite(math.Inf(1), 1, -1); got != 1 {
		t.Fatalf("+inf: got=%f", got)
	}
	if got := Finite(math.Inf(-1), 1, -1); got != -1 {
		t.Fatalf("-inf: got=%f", got)
	}
}

func TestScaleValue(t *testing.T) {
	if got := ScaleValue(5, 10, 0); got != 0 {
		t.Fatalf("midpoint: got=%f", got)
	}
	if got := ScaleValue(10, 10, 0); got != 1 {
		t.Fatalf("max: got=%f", got)
	}
	if got := ScaleValue(3, 3, 3); got != 0 {
		t.Fatalf("degenerate range: got=%f", got)
	}
}
