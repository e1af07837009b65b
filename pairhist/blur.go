package pairhist

import "math"

// BlurToGrid builds a density grid from a list of distance samples by
// summing a Gaussian kernel centered at each sample. The area under each
// sample is normalized to 1/len(samples).
type BlurToGrid struct {
	low      float64
	binWidth float64
	sigma    float64
}

func NewBlurToGrid(low, binWidth, sigma float64) (*BlurToGrid, error) {
	if binWidth <= 0 || sigma <= 0 || low < 0 {
		return nil, ErrBadParam
	}

	return &BlurToGrid{
		low:      low,
		binWidth: binWidth,
		sigma:    sigma,
	}, nil
}

// Blur fills grid with the kernel density estimate of distances. Every bin
// receives a contribution from every sample: no tail cutoff, so the cost is
// O(len(distances)*len(grid)).
func (blur *BlurToGrid) Blur(distances []float64, grid PairHist) error {
	if len(distances) == 0 {
		return ErrNoSamples
	}

	if len(grid) == 0 {
		return ErrBadShape
	}

	denominator := 1 / (2 * blur.sigma * blur.sigma)
	normalization := 1 / (float64(len(distances)) * math.Sqrt(2*math.Pi) * blur.sigma)

	for idx := range grid {
		binX := blur.low + float64(idx)*blur.binWidth

		binValue := float64(0)

		for _, distance := range distances {
			relativeDistance := binX - distance
			binValue += normalization * math.Exp(-relativeDistance*relativeDistance*denominator)
		}

		grid[idx] = binValue
	}

	return nil
}
