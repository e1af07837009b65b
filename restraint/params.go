package restraint

import (
	"fmt"
	"math"

	"github.com/sgostarter/librestraint/pairhist"
	"github.com/spf13/cast"
)

// EnsembleParams configures the ensemble histogram-matching potential.
// Immutable after construction.
type EnsembleParams struct {
	NBins    int
	BinWidth float64

	MinDist float64
	MaxDist float64

	Experimental pairhist.PairHist

	NSamples     int
	SamplePeriod float64

	NWindows int
	// WindowUpdatePeriod must equal NSamples*SamplePeriod, otherwise the
	// sample buffer would be read while partially filled.
	WindowUpdatePeriod float64

	K     float64
	Sigma float64
}

func (params *EnsembleParams) Validate() error {
	if params.NBins <= 0 {
		return fmt.Errorf("%w: nBins %d", ErrBadConfig, params.NBins)
	}

	if params.BinWidth <= 0 {
		return fmt.Errorf("%w: binWidth %v", ErrBadConfig, params.BinWidth)
	}

	if params.MinDist > params.MaxDist {
		return fmt.Errorf("%w: minDist %v > maxDist %v", ErrBadConfig, params.MinDist, params.MaxDist)
	}

	if len(params.Experimental) != params.NBins {
		return fmt.Errorf("%w: experimental has %d bins, want %d", ErrBadConfig, len(params.Experimental), params.NBins)
	}

	for idx, v := range params.Experimental {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: experimental bin %d is %v", ErrBadConfig, idx, v)
		}
	}

	if params.NSamples <= 0 {
		return fmt.Errorf("%w: nSamples %d", ErrBadConfig, params.NSamples)
	}

	if params.SamplePeriod <= 0 {
		return fmt.Errorf("%w: samplePeriod %v", ErrBadConfig, params.SamplePeriod)
	}

	if params.NWindows <= 0 {
		return fmt.Errorf("%w: nWindows %d", ErrBadConfig, params.NWindows)
	}

	if params.WindowUpdatePeriod <= 0 {
		return fmt.Errorf("%w: windowUpdatePeriod %v", ErrBadConfig, params.WindowUpdatePeriod)
	}

	want := float64(params.NSamples) * params.SamplePeriod
	if math.Abs(params.WindowUpdatePeriod-want) > want*1e-9 {
		return fmt.Errorf("%w: windowUpdatePeriod %v != nSamples*samplePeriod %v",
			ErrBadConfig, params.WindowUpdatePeriod, want)
	}

	if params.K < 0 {
		return fmt.Errorf("%w: k %v", ErrBadConfig, params.K)
	}

	if params.Sigma <= 0 {
		return fmt.Errorf("%w: sigma %v", ErrBadConfig, params.Sigma)
	}

	return nil
}

// EnsembleParamsFromMap builds EnsembleParams from the loosely typed
// dictionary shape the host configuration layer hands over. Key names follow
// the workflow configuration files.
func EnsembleParamsFromMap(m map[string]interface{}) (params EnsembleParams, err error) {
	params.NBins, err = cast.ToIntE(m["nbins"])
	if err != nil {
		return
	}

	params.BinWidth, err = cast.ToFloat64E(m["binWidth"])
	if err != nil {
		return
	}

	params.MinDist, err = cast.ToFloat64E(m["min_dist"])
	if err != nil {
		return
	}

	params.MaxDist, err = cast.ToFloat64E(m["max_dist"])
	if err != nil {
		return
	}

	params.Experimental, err = toFloat64Slice(m["experimental"])
	if err != nil {
		return
	}

	params.NSamples, err = cast.ToIntE(m["nsamples"])
	if err != nil {
		return
	}

	params.SamplePeriod, err = cast.ToFloat64E(m["sample_period"])
	if err != nil {
		return
	}

	params.NWindows, err = cast.ToIntE(m["nwindows"])
	if err != nil {
		return
	}

	params.WindowUpdatePeriod, err = cast.ToFloat64E(m["window_update_period"])
	if err != nil {
		return
	}

	params.K, err = cast.ToFloat64E(m["K"])
	if err != nil {
		return
	}

	params.Sigma, err = cast.ToFloat64E(m["sigma"])
	if err != nil {
		return
	}

	err = params.Validate()

	return
}

type HarmonicParams struct {
	K  float64
	R0 float64
}

func (params *HarmonicParams) Validate() error {
	if params.K < 0 {
		return fmt.Errorf("%w: k %v", ErrBadConfig, params.K)
	}

	if params.R0 < 0 {
		return fmt.Errorf("%w: R0 %v", ErrBadConfig, params.R0)
	}

	return nil
}

type LinearParams struct {
	Alpha        float64
	Target       float64
	SamplePeriod float64

	// LogFile receives the tab-separated (time, R, target, alpha) trace.
	// Empty disables tracing.
	LogFile string
}

func (params *LinearParams) Validate() error {
	if params.Target <= 0 {
		return fmt.Errorf("%w: target %v", ErrBadConfig, params.Target)
	}

	if params.SamplePeriod <= 0 {
		return fmt.Errorf("%w: samplePeriod %v", ErrBadConfig, params.SamplePeriod)
	}

	return nil
}

func LinearParamsFromMap(m map[string]interface{}) (params LinearParams, err error) {
	params.Alpha, err = cast.ToFloat64E(m["alpha"])
	if err != nil {
		return
	}

	params.Target, err = cast.ToFloat64E(m["target"])
	if err != nil {
		return
	}

	params.SamplePeriod, err = cast.ToFloat64E(m["sample_period"])
	if err != nil {
		return
	}

	params.LogFile = cast.ToString(m["logging_filename"])

	err = params.Validate()

	return
}

type LinearStopParams struct {
	LinearParams

	Tolerance float64
}

func (params *LinearStopParams) Validate() error {
	if err := params.LinearParams.Validate(); err != nil {
		return err
	}

	if params.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance %v", ErrBadConfig, params.Tolerance)
	}

	return nil
}

func LinearStopParamsFromMap(m map[string]interface{}) (params LinearStopParams, err error) {
	params.LinearParams, err = LinearParamsFromMap(m)
	if err != nil {
		return
	}

	params.Tolerance, err = cast.ToFloat64E(m["tolerance"])
	if err != nil {
		return
	}

	err = params.Validate()

	return
}

// BRERParams configures the adaptive coupling-constant potential. The Alpha*
// G* and Converged fields carry restart state; a fresh run leaves them zero.
type BRERParams struct {
	A         float64
	Tau       float64
	Tolerance float64
	Target    float64
	NSamples  int

	Alpha     float64
	AlphaPrev float64
	AlphaMax  float64
	GSqrSum   float64
	Converged bool

	LogFile string
}

func (params *BRERParams) Validate() error {
	if params.A <= 0 {
		return fmt.Errorf("%w: A %v", ErrBadConfig, params.A)
	}

	if params.Tau <= 0 {
		return fmt.Errorf("%w: tau %v", ErrBadConfig, params.Tau)
	}

	if params.Tolerance <= 0 {
		return fmt.Errorf("%w: tolerance %v", ErrBadConfig, params.Tolerance)
	}

	if params.Target <= 0 {
		return fmt.Errorf("%w: target %v", ErrBadConfig, params.Target)
	}

	if params.NSamples <= 0 {
		return fmt.Errorf("%w: nSamples %d", ErrBadConfig, params.NSamples)
	}

	return nil
}

func BRERParamsFromMap(m map[string]interface{}) (params BRERParams, err error) {
	params.A, err = cast.ToFloat64E(m["A"])
	if err != nil {
		return
	}

	params.Tau, err = cast.ToFloat64E(m["tau"])
	if err != nil {
		return
	}

	params.Tolerance, err = cast.ToFloat64E(m["tolerance"])
	if err != nil {
		return
	}

	params.Target, err = cast.ToFloat64E(m["target"])
	if err != nil {
		return
	}

	params.NSamples, err = cast.ToIntE(m["nSamples"])
	if err != nil {
		return
	}

	params.Alpha = cast.ToFloat64(m["alpha"])
	params.AlphaPrev = cast.ToFloat64(m["alpha_prev"])
	params.AlphaMax = cast.ToFloat64(m["alpha_max"])
	params.GSqrSum = cast.ToFloat64(m["gsqrsum"])
	params.Converged = cast.ToBool(m["converged"])
	params.LogFile = cast.ToString(m["parameter_filename"])

	err = params.Validate()

	return
}

func toFloat64Slice(v interface{}) (pairhist.PairHist, error) {
	raw, err := cast.ToSliceE(v)
	if err != nil {
		return nil, err
	}

	out := pairhist.New(len(raw))

	for idx, item := range raw {
		out[idx], err = cast.ToFloat64E(item)
		if err != nil {
			return nil, err
		}
	}

	return out, nil
}
