package pairhist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlurToGridBasic(t *testing.T) {
	blur, err := NewBlurToGrid(0, 1, 1)
	assert.Nil(t, err)

	grid := New(10)

	err = blur.Blur([]float64{5, 5, 5}, grid)
	assert.Nil(t, err)

	for _, v := range grid {
		assert.True(t, v >= 0)
	}

	// The bin at the sample location dominates.
	maxIdx := 0
	for idx, v := range grid {
		if v > grid[maxIdx] {
			maxIdx = idx
		}
	}

	assert.EqualValues(t, 5, maxIdx)

	// Peak value of a unit gaussian kernel: 1/(sqrt(2*pi)*sigma).
	assert.InDelta(t, 1/math.Sqrt(2*math.Pi), grid[5], 1e-12)
}

func TestBlurToGridSigmaSpreads(t *testing.T) {
	estimate := func(sigma float64) PairHist {
		blur, err := NewBlurToGrid(0, 1, sigma)
		assert.Nil(t, err)

		grid := New(10)

		err = blur.Blur([]float64{5}, grid)
		assert.Nil(t, err)

		return grid
	}

	narrow := estimate(0.5)
	medium := estimate(1)
	wide := estimate(2)

	// A wider kernel flattens the peak and leaks mass off the grid edges, so
	// the mean bin value drops with sigma too.
	assert.True(t, narrow[5] > medium[5])
	assert.True(t, medium[5] > wide[5])

	assert.True(t, narrow.Sum() > medium.Sum())
	assert.True(t, medium.Sum() > wide.Sum())
}

func TestBlurToGridAverageOverSamples(t *testing.T) {
	blur, err := NewBlurToGrid(0, 1, 1)
	assert.Nil(t, err)

	one := New(10)
	err = blur.Blur([]float64{3}, one)
	assert.Nil(t, err)

	many := New(10)
	err = blur.Blur([]float64{3, 3, 3, 3}, many)
	assert.Nil(t, err)

	// Normalization divides by the sample count: repeated identical samples
	// give the same grid.
	for idx := range one {
		assert.InDelta(t, one[idx], many[idx], 1e-12)
	}
}

func TestBlurToGridErrors(t *testing.T) {
	_, err := NewBlurToGrid(0, 0, 1)
	assert.NotNil(t, err)

	_, err = NewBlurToGrid(0, 1, 0)
	assert.NotNil(t, err)

	blur, err := NewBlurToGrid(0, 1, 1)
	assert.Nil(t, err)

	err = blur.Blur(nil, New(10))
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestPairHistRow(t *testing.T) {
	h := PairHist{1, 2, 3}

	row := h.AsRow()
	r, c := row.Dims()
	assert.EqualValues(t, 1, r)
	assert.EqualValues(t, 3, c)

	back, err := FromRow(row)
	assert.Nil(t, err)
	assert.EqualValues(t, h, back)
}
