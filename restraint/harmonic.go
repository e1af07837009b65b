package restraint

import (
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/spatial/r3"
)

// HarmonicPotential is a plain spring between the two sites with equilibrium
// distance R0. Stateless: the callback has nothing to advance.
type HarmonicPotential struct {
	params HarmonicParams
}

func NewHarmonicPotential(params HarmonicParams) (*HarmonicPotential, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &HarmonicPotential{params: params}, nil
}

func (impl *HarmonicPotential) Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData {
	rdiff, r := pairDistance(siteA, siteB)

	var out PotentialPointData

	out.Energy = 0.5 * impl.params.K * (r - impl.params.R0) * (r - impl.params.R0)

	if r != 0 {
		// F = -k * (1 - R0/r) * rdiff
		out.Force = r3.Scale(impl.params.K*(impl.params.R0/r-1), rdiff)
	}

	return out
}

func (impl *HarmonicPotential) Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error {
	return nil
}
