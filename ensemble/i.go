package ensemble

import "gonum.org/v1/gonum/mat"

// Reducer is the cross-replica reduction port. The transport (in-process,
// redis, ...) is supplied by the surrounding runtime.
type Reducer interface {
	// Reduce performs a synchronous all-reduce sum of local across every
	// ensemble member and returns the summed matrix to each of them. Every
	// member must call Reduce the same number of times, in the same order,
	// or the ensemble deadlocks.
	Reduce(local *mat.Dense) (*mat.Dense, error)
}

// Stopper carries the out-of-band simulation stop signal. Stop is issued by
// a restraint on convergence; the host loop polls ShouldStop.
type Stopper interface {
	Stop() error
	ShouldStop() bool
}

type Resources interface {
	Reducer
	Stopper
}
