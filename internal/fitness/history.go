package fitness

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// History is an append-only record of fitness values. A positive limit keeps
// only the most recent values; Total still counts every record.
type History struct {
	limit  int
	total  int
	values []float64
}

func NewHistory(limit int) *History {
	if limit < 0 {
		limit = 0
	}
	return &History{limit: limit}
}

func (h *History) Record(value float64) {
	h.total++
	h.values = append(h.values, value)
	if h.limit > 0 && len(h.values) > h.limit {
		drop := len(h.values) - h.limit
		h.values = append(h.values[:0], h.values[drop:]...)
	}
}

func (h *History) Len() int {
	return len(h.values)
}

func (h *History) Total() int {
	return h.total
}

func (h *History) Values() []float64 {
	return append([]float64(nil), h.values...)
}

func (h *History) Last() (float64, bool) {
	if len(h.values) == 0 {
		return 0, false
	}
	return h.values[len(h.values)-1], true
}

type Summary struct {
	Count int     `json:"count"`
	Total int     `json:"total"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Last  float64 `json:"last"`
}

func (h *History) Summary() Summary {
	return Summarize(h.values, h.total)
}

// Summarize describes values; total is the lifetime record count.
func Summarize(values []float64, total int) Summary {
	s := Summary{Count: len(values), Total: total}
	if len(values) == 0 {
		return s
	}
	s.Mean = stat.Mean(values, nil)
	if len(values) > 1 {
		s.Std = stat.PopStdDev(values, nil)
	}
	s.Min = floats.Min(values)
	s.Max = floats.Max(values)
	s.Last = values[len(values)-1]
	return s
}
