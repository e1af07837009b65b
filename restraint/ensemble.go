package restraint

import (
	"fmt"
	"math"
	"sync"

	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"github.com/sgostarter/librestraint/pairhist"
	"gonum.org/v1/gonum/spatial/r3"
)

// EnsemblePotential is the histogram-matching pair restraint applied across
// an ensemble of trajectories. It samples the pair distance on a fast
// cadence, and once per window blurs the samples into a histogram, sum-
// reduces it across the ensemble, and folds the result into a bounded window
// history. The force is a flat-bottom potential whose interior is driven by
// the mean difference between the reduced windows and the experimental
// distribution.
type EnsemblePotential struct {
	logger l.Wrapper

	params EnsembleParams
	blur   *pairhist.BlurToGrid

	samplesLock sync.Mutex
	samples     *sampleBuffer

	windows *pairhist.WindowHistory

	windowLock           sync.Mutex
	raw                  pairhist.PairHist
	currentWindow        int
	nextWindowUpdateTime float64
}

func NewEnsemblePotential(params EnsembleParams, logger l.Wrapper) (*EnsemblePotential, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if err := params.Validate(); err != nil {
		return nil, err
	}

	params.Experimental = params.Experimental.Clone()

	blur, err := pairhist.NewBlurToGrid(0, params.BinWidth, params.Sigma)
	if err != nil {
		return nil, err
	}

	windows, err := pairhist.NewWindowHistory(params.NWindows, params.NBins)
	if err != nil {
		return nil, err
	}

	return &EnsemblePotential{
		logger:               logger.WithFields(l.StringField(l.ClsKey, "ensemblePotential")),
		params:               params,
		blur:                 blur,
		samples:              newSampleBuffer(params.NSamples, params.SamplePeriod),
		windows:              windows,
		raw:                  pairhist.New(params.NBins),
		nextWindowUpdateTime: params.WindowUpdatePeriod,
	}, nil
}

// Callback advances the sampling state machine. It runs on one designated
// rank only and blocks on the ensemble reduction at window boundaries.
func (impl *EnsemblePotential) Callback(siteA, siteB r3.Vec, t float64, resources ensemble.Resources) error {
	_, r := pairDistance(siteA, siteB)

	impl.samplesLock.Lock()
	impl.samples.record(t, r)
	impl.samplesLock.Unlock()

	impl.windowLock.Lock()
	defer impl.windowLock.Unlock()

	if t < impl.nextWindowUpdateTime {
		return nil
	}

	impl.samplesLock.Lock()

	if !impl.samples.full() {
		cursor := impl.samples.cursor
		impl.samplesLock.Unlock()

		return fmt.Errorf("%w: %d of %d samples at window %d",
			ErrPartialWindow, cursor, impl.params.NSamples, impl.currentWindow)
	}

	err := impl.blur.Blur(impl.samples.view(), impl.raw)

	impl.samplesLock.Unlock()

	if err != nil {
		return err
	}

	if resources == nil {
		return fmt.Errorf("%w: no ensemble resources", ErrBadConfig)
	}

	// Blocking synchronization point with the rest of the ensemble.
	reduced, err := resources.Reduce(impl.raw.AsRow())
	if err != nil {
		impl.logger.WithFields(l.ErrorField(err)).Error("reduce failed")

		return err
	}

	reducedHist, err := pairhist.FromRow(reduced)
	if err != nil {
		return err
	}

	err = impl.windows.Push(reducedHist, impl.params.Experimental)
	if err != nil {
		return err
	}

	// The window is committed; only now give up its samples, so any failure
	// above leaves the buffer full and the next callback retries the update.
	impl.samplesLock.Lock()
	impl.samples.reset(t)
	impl.samplesLock.Unlock()

	impl.currentWindow++
	// Reschedule from t, not from an accumulated multiple of the period, so
	// floating point drift cannot starve or double-fire a window.
	impl.nextWindowUpdateTime = t + impl.params.WindowUpdatePeriod

	impl.logger.Debug("window updated:", impl.currentWindow)

	return nil
}

// Evaluate computes the instantaneous force on siteA (siteB receives the
// opposite force). Hot path: reads the published working histogram and the
// immutable params only.
func (impl *EnsemblePotential) Evaluate(siteA, siteB r3.Vec, t float64) PotentialPointData {
	rdiff, r := pairDistance(siteA, siteB)

	var out PotentialPointData

	var f float64

	switch {
	case r > impl.params.MaxDist:
		f = impl.params.K * (impl.params.MaxDist - r)
		out.Energy = 0.5 * impl.params.K * (r - impl.params.MaxDist) * (r - impl.params.MaxDist)
	case r < impl.params.MinDist:
		f = impl.params.K * (impl.params.MinDist - r)
		out.Energy = 0.5 * impl.params.K * (impl.params.MinDist - r) * (impl.params.MinDist - r)
	default:
		sigma := impl.params.Sigma
		normConst := math.Sqrt(2*math.Pi) * sigma * sigma * sigma

		var fScal, gaussSum float64

		impl.windows.ReadWorking(func(working pairhist.PairHist) {
			for n, h := range working {
				x := float64(n)*impl.params.BinWidth - r
				gauss := math.Exp(-0.5 * (x / sigma) * (x / sigma))

				fScal += h * x / normConst * gauss
				gaussSum += h * gauss
			}
		})

		f = -impl.params.K * fScal
		out.Energy = impl.params.K * gaussSum / (math.Sqrt(2*math.Pi) * sigma)
	}

	// Direction is undefined at zero separation: leave the force zero.
	if r != 0 {
		out.Force = r3.Scale(f/r, rdiff)
	}

	return out
}

func (impl *EnsemblePotential) CurrentWindow() int {
	impl.windowLock.Lock()
	defer impl.windowLock.Unlock()

	return impl.currentWindow
}

// WorkingHistogram returns a copy of the current working histogram.
func (impl *EnsemblePotential) WorkingHistogram() pairhist.PairHist {
	var out pairhist.PairHist

	impl.windows.ReadWorking(func(working pairhist.PairHist) {
		out = working.Clone()
	})

	return out
}
