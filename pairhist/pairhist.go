package pairhist

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// PairHist is a density over uniform distance bins for one restrained pair.
type PairHist []float64

func New(nBins int) PairHist {
	return make(PairHist, nBins)
}

func (h PairHist) Clone() PairHist {
	n := make(PairHist, len(h))
	copy(n, h)

	return n
}

func (h PairHist) Reset() {
	for idx := range h {
		h[idx] = 0
	}
}

func (h PairHist) Sum() float64 {
	return floats.Sum(h)
}

// AsRow wraps the histogram as a 1xN matrix sharing the same backing storage.
// This is the shape crossing the ensemble reduction boundary.
func (h PairHist) AsRow() *mat.Dense {
	return mat.NewDense(1, len(h), h)
}

func FromRow(m *mat.Dense) (PairHist, error) {
	if m == nil {
		return nil, ErrBadShape
	}

	rows, cols := m.Dims()
	if rows != 1 || cols == 0 {
		return nil, ErrBadShape
	}

	h := New(cols)
	copy(h, m.RawRowView(0))

	return h, nil
}
