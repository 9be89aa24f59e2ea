package decompose

import (
	"gonum.org/v1/gonum/stat"
)

// Summary describes the size distribution of a decomposition.
type Summary struct {
	Count  int
	Leaves int
	Min    int
	Max    int
	Mean   float64
	StdDev float64 // sample standard deviation, 0 for fewer than two subsets
}

// Summarize computes the size distribution of subsets.
func Summarize(subsets []Subset) Summary {
	var s Summary
	if len(subsets) == 0 {
		return s
	}
	sizes := make([]float64, len(subsets))
	s.Count = len(subsets)
	s.Min = subsets[0].Len()
	for i, sub := range subsets {
		n := sub.Len()
		sizes[i] = float64(n)
		s.Leaves += n
		if n < s.Min {
			s.Min = n
		}
		if n > s.Max {
			s.Max = n
		}
	}
	if len(sizes) < 2 {
		s.Mean = sizes[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(sizes, nil)
	return s
}
