package restraint

import (
	"sync"

	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/spatial/r3"
)

// LinearPotential applies a constant-magnitude bias pushing the pair
// distance toward the target. The callback only maintains the parameter
// trace at the sample cadence.
type LinearPotential struct {
	logger l.Wrapper
	params LinearParams

	lock           sync.Mutex
	initialized    bool
	startTime      float64
	nextSampleTime float64
	currentSample  int
	plog           *ParamLogger
}

func NewLinearPotential(params LinearParams, logger l.Wrapper) (*LinearPotential, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &LinearPotential{
		logger: logger.WithFields(l.StringField(l.ClsKey, "linearPotential")),
		params: params,
	}, nil
}

func (impl *LinearPotential) Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error {
	_, r := pairDistance(siteA, siteB)

	impl.lock.Lock()
	defer impl.lock.Unlock()

	if !impl.initialized {
		impl.initTrace(t, r)
	}

	if t >= impl.nextSampleTime {
		impl.plog.Append(t, r, impl.params.Target, impl.params.Alpha)

		impl.currentSample++
		impl.nextSampleTime = float64(impl.currentSample+1)*impl.params.SamplePeriod + impl.startTime
	}

	return nil
}

func (impl *LinearPotential) initTrace(t, r float64) {
	impl.logger.Info("initializing the linear restraint")

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

func (impl *LinearPotential) Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData {
	rdiff, r := pairDistance(siteA, siteB)

	var out PotentialPointData

	out.Energy = impl.params.Alpha * r / impl.params.Target

	if r != 0 && r != impl.params.Target {
		magnitude := impl.params.Alpha / impl.params.Target / r
		if r > impl.params.Target {
			magnitude = -magnitude
		}

		out.Force = r3.Scale(magnitude, rdiff)
	}

	return out
}

func (impl *LinearPotential) Close() {
	impl.lock.Lock()
	defer impl.lock.Unlock()

	impl.plog.Close()
	impl.plog = nil
}
