package restraint

import (
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/spatial/r3"
)

// PotentialPointData is the per-step output of a restraint: the force to
// apply to site A (site B receives the equal and opposite force) and an
// advisory energy term consistent with that force.
type PotentialPointData struct {
	Force  r3.Vec
	Energy float64
}

// Restraint is a pair-distance bias strategy.
//
// Evaluate runs on every force-evaluation step, possibly from several worker
// threads. It must stay cheap and must not mutate shared windowing state.
//
// Callback runs periodically on one designated rank. It advances the
// sampling state machine and may block on the ensemble resources.
type Restraint interface {
	Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData
	Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error
}

func pairDistance(siteA, siteB r3.Vec) (rdiff r3.Vec, r float64) {
	rdiff = r3.Sub(siteA, siteB)
	r = r3.Norm(rdiff)

	return
}
