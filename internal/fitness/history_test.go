package fitness

import (
	"math"
	"testing"
)

func TestHistoryAppendsOnePerRecord(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < 5; i++ {
		h.Record(float64(i))
		if h.Len() != i+1 {
			t.Fatalf("expected %d values, got %d", i+1, h.Len())
		}
	}
	values := h.Values()
	for i, v := range values {
		if v != float64(i) {
			t.Fatalf("unexpected order: %+v", values)
		}
	}
}

func TestHistoryLimitKeepsNewest(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Record(float64(i))
	}
	values := h.Values()
	if len(values) != 3 || values[0] != 3 || values[2] != 5 {
		t.Fatalf("unexpected capped history: %+v", values)
	}
	if h.Total() != 5 {
		t.Fatalf("expected total 5, got %d", h.Total())
	}
	last, ok := h.Last()
	if !ok || last != 5 {
		t.Fatalf("unexpected last: %f %t", last, ok)
	}
}

func TestHistoryValuesIsACopy(t *testing.T) {
	h := NewHistory(0)
	h.Record(1)
	values := h.Values()
	values[0] = 99
	if got, _ := h.Last(); got != 1 {
		t.Fatalf("history mutated through copy: %f", got)
	}
}

func TestSummary(t *testing.T) {
	h := NewHistory(0)
	if s := h.Summary(); s.Count != 0 || s.Mean != 0 {
		t.Fatalf("unexpected empty summary: %+v", s)
	}
	for _, v := range []float64{1, 2, 3, 4} {
		h.Record(v)
	}
	s := h.Summary()
	if s.Count != 4 || s.Total != 4 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if math.Abs(s.Mean-2.5) > 1e-12 {
		t.Fatalf("unexpected mean: %f", s.Mean)
	}
	if math.Abs(s.Std-math.Sqrt(1.25)) > 1e-12 {
		t.Fatalf("unexpected std: %f", s.Std)
	}
	if s.Min != 1 || s.Max != 4 || s.Last != 4 {
		t.Fatalf("unexpected extremes: %+v", s)
	}
}
