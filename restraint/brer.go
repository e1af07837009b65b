package restraint

import (
	"fmt"
	"math"
	"sync"

	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/spatial/r3"
)

// BRERPotential adapts a scalar coupling constant alpha by stochastic
// gradient descent with a per-coordinate learning rate (Adagrad style). Each
// window of nSamples distance samples yields a gradient
// g = (1 - mean/target) * sumSquaredDev; alpha steps by -A/sqrt(sum g^2) * g.
// Convergence (|alpha - alphaPrev| < tolerance) issues the stop signal once.
type BRERPotential struct {
	logger l.Wrapper
	params BRERParams

	samplePeriod float64

	lock        sync.RWMutex
	initialized bool
	converged   bool

	alpha     float64
	alphaPrev float64
	alphaMax  float64
	g         float64
	gSqrSum   float64
	eta       float64
	tolerance float64

	stat          runningStat
	currentSample int

	windowStartTime float64
	nextSampleTime  float64
	nextUpdateTime  float64

	plog *ParamLogger
}

func NewBRERPotential(params BRERParams, logger l.Wrapper) (*BRERPotential, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &BRERPotential{
		logger:       logger.WithFields(l.StringField(l.ClsKey, "brerPotential")),
		params:       params,
		samplePeriod: params.Tau / float64(params.NSamples),
		alpha:        params.Alpha,
		alphaPrev:    params.AlphaPrev,
		alphaMax:     params.AlphaMax,
		gSqrSum:      params.GSqrSum,
		converged:    params.Converged,
		tolerance:    params.Tolerance,
	}, nil
}

func (impl *BRERPotential) Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error {
	impl.lock.Lock()
	defer impl.lock.Unlock()

	if impl.converged {
		// Nothing left to adapt; wait for the simulation to end.
		return nil
	}

	_, r := pairDistance(siteA, siteB)

	if !impl.initialized {
		impl.nextSampleTime = t + impl.samplePeriod
		impl.windowStartTime = t
		impl.nextUpdateTime = t + impl.params.Tau

		// The tolerance scales with the maximum energy input A.
		impl.tolerance *= impl.params.A

		if impl.params.LogFile != "" {
			plog, err := NewParamLogger(impl.params.LogFile,
				"time", "R", "target", "converged", "alpha", "alpha_max", "g", "eta")
			if err != nil {
				impl.logger.WithFields(l.ErrorField(err)).Error("open parameter trace failed")
			} else {
				impl.plog = plog
				impl.appendTrace(t, r)
			}
		}

		impl.initialized = true
	}

	if t >= impl.nextSampleTime {
		impl.stat.add(r)
		impl.currentSample++
		impl.nextSampleTime = float64(impl.currentSample+1)*impl.samplePeriod + impl.windowStartTime
	}

	if t >= impl.nextUpdateTime {
		if impl.currentSample != impl.params.NSamples {
			return fmt.Errorf("%w: %d of %d samples at t %v",
				ErrPartialWindow, impl.currentSample, impl.params.NSamples, t)
		}

		impl.g = (1 - impl.stat.mean/impl.params.Target) * impl.stat.m2
		impl.gSqrSum += impl.g * impl.g

		stepped := impl.gSqrSum > 0

		// A zero-gradient history would divide by zero; leave alpha alone for
		// that window and do not treat the non-step as convergence.
		if stepped {
			impl.eta = impl.params.A / math.Sqrt(impl.gSqrSum)
			impl.alphaPrev = impl.alpha
			impl.alpha -= impl.eta * impl.g
		}

		impl.logger.Debug("alpha:", impl.alpha)

		if math.Abs(impl.alpha) > impl.alphaMax {
			impl.alphaMax = math.Abs(impl.alpha)
		}

		impl.stat.reset()
		impl.windowStartTime = t
		impl.nextUpdateTime = float64(impl.params.NSamples)*impl.samplePeriod + impl.windowStartTime
		impl.currentSample = 0
		impl.nextSampleTime = t + impl.samplePeriod

		impl.appendTrace(t, r)

		if stepped && math.Abs(impl.alpha-impl.alphaPrev) < impl.tolerance {
			impl.converged = true

			impl.appendTrace(t, r)
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
	}

	return nil
}

func (impl *BRERPotential) appendTrace(t, r float64) {
	converged := 0
	if impl.converged {
		converged = 1
	}

	impl.plog.Append(t, r, impl.params.Target, converged, impl.alpha, impl.alphaMax, impl.g, impl.eta)
}

func (impl *BRERPotential) Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData {
	rdiff, r := pairDistance(siteA, siteB)

	impl.lock.RLock()
	alpha := impl.alpha
	impl.lock.RUnlock()

	var out PotentialPointData

	out.Energy = alpha * r / impl.params.Target

	if r != 0 {
		out.Force = r3.Scale(-alpha/impl.params.Target/r, rdiff)
	}

	return out
}

func (impl *BRERPotential) Alpha() float64 {
	impl.lock.RLock()
	defer impl.lock.RUnlock()

	return impl.alpha
}

func (impl *BRERPotential) Converged() bool {
	impl.lock.RLock()
	defer impl.lock.RUnlock()

	return impl.converged
}
