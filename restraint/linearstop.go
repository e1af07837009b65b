package restraint

import (
	"math"
	"sync"

	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/spatial/r3"
)

// LinearStopPotential is the linear bias plus a convergence check: once the
// pair distance is within tolerance of the target it closes the trace and
// asks the host runtime to stop the simulation, exactly once.
type LinearStopPotential struct {
	logger l.Wrapper
	params LinearStopParams

	lock           sync.Mutex
	initialized    bool
	startTime      float64
	nextSampleTime float64
	currentSample  int
	stopCalled     bool
	plog           *ParamLogger
}

func NewLinearStopPotential(params LinearStopParams, logger l.Wrapper) (*LinearStopPotential, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &LinearStopPotential{
		logger: logger.WithFields(l.StringField(l.ClsKey, "linearStopPotential")),
		params: params,
	}, nil
}

func (impl *LinearStopPotential) Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error {
	_, r := pairDistance(siteA, siteB)

	impl.lock.Lock()
	defer impl.lock.Unlock()

	converged := math.Abs(r-impl.params.Target) < impl.params.Tolerance

	if !impl.initialized {
		impl.logger.Info("initializing the linear stop restraint")

		impl.startTime = t
		impl.nextSampleTime = impl.startTime + impl.params.SamplePeriod

		if impl.params.LogFile != "" {
			plog, err := NewParamLogger(impl.params.LogFile, "time", "R", "target", "alpha")
			if err != nil {
				impl.logger.WithFields(l.ErrorField(err)).Error("open parameter trace failed")
			} else {
				impl.plog = plog
				impl.plog.Append(t, r, impl.params.Target, impl.params.Alpha)
			}
		}

		impl.initialized = true
	}

	if !converged && t >= impl.nextSampleTime {
		impl.plog.Append(t, r, impl.params.Target, impl.params.Alpha)

		impl.currentSample++
		impl.nextSampleTime = float64(impl.currentSample+1)*impl.params.SamplePeriod + impl.startTime
	}

	if converged && !impl.stopCalled {
		impl.stopCalled = true

		impl.plog.Append(t, r, impl.params.Target, impl.params.Alpha)
		impl.plog.Close()
		impl.plog = nil

		impl.logger.Info("converged, requesting stop at t =", t)

		if resources != nil {
			if err := resources.Stop(); err != nil {
				impl.logger.WithFields(l.ErrorField(err)).Error("stop signal failed")

				return err
			}
		}
	}

	return nil
}

func (impl *LinearStopPotential) Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData {
	rdiff, r := pairDistance(siteA, siteB)

	var out PotentialPointData

	out.Energy = impl.params.Alpha / impl.params.Target * r

	if r != 0 && r != impl.params.Target {
		magnitude := impl.params.Alpha / impl.params.Target / r
		if r > impl.params.Target {
			magnitude = -magnitude
		}

		out.Force = r3.Scale(magnitude, rdiff)
	}

	return out
}

func (impl *LinearStopPotential) StopCalled() bool {
	impl.lock.Lock()
	defer impl.lock.Unlock()

	return impl.stopCalled
}
