package rundata

import (
	"sync"

	"github.com/sgostarter/i/commerr"
	"github.com/sgostarter/i/l"
	"github.com/sgostarter/i/stg"
	"github.com/sgostarter/libeasygo/stg/fs/rawfs"
	"github.com/sgostarter/libeasygo/stg/mwf"
)

type Phase string

const (
	PhaseTraining    Phase = "training"
	PhaseConvergence Phase = "convergence"
	PhaseProduction  Phase = "production"
)

func (p Phase) Next() Phase {
	switch p {
	case PhaseTraining:
		return PhaseConvergence
	case PhaseConvergence:
		return PhaseProduction
	default:
		return PhaseTraining
	}
}

// GeneralParams is the per-iteration workflow state shared by all restrained
// pairs of one ensemble member.
type GeneralParams struct {
	EnsembleNum int     `json:"ensemble_num" yaml:"ensemble_num"`
	Iteration   int     `json:"iteration" yaml:"iteration"`
	Phase       Phase   `json:"phase" yaml:"phase"`
	StartTime   float64 `json:"start_time" yaml:"start_time"`

	A              float64 `json:"A" yaml:"A"`
	Tau            float64 `json:"tau" yaml:"tau"`
	Tolerance      float64 `json:"tolerance" yaml:"tolerance"`
	NSamples       int     `json:"num_samples" yaml:"num_samples"`
	SamplePeriod   float64 `json:"sample_period" yaml:"sample_period"`
	ProductionTime float64 `json:"production_time" yaml:"production_time"`
}

func DefaultGeneralParams() GeneralParams {
	return GeneralParams{
		EnsembleNum:    1,
		Iteration:      0,
		Phase:          PhaseTraining,
		StartTime:      0,
		A:              50,
		Tau:            50,
		Tolerance:      0.25,
		NSamples:       50,
		SamplePeriod:   100,
		ProductionTime: 10000,
	}
}

// PairParams is the per-pair workflow state: the restrained atom sites, the
// current coupling constant and the target distance drawn from the
// experimental distribution.
type PairParams struct {
	Sites   []int   `json:"sites" yaml:"sites"`
	Alpha   float64 `json:"alpha" yaml:"alpha"`
	Target  float64 `json:"target" yaml:"target"`
	LogFile string  `json:"logging_filename" yaml:"logging_filename"`
}

type runState struct {
	General GeneralParams          `json:"general"`
	Pairs   map[string]*PairParams `json:"pairs"`
}

// RunData persists the workflow state between simulation phases through a
// memory-backed state file.
type RunData struct {
	logger l.Wrapper
	d      *mwf.MemWithFile[runState, mwf.Serial, mwf.Lock]
}

func NewRunData(file string, storage stg.FileStorage, logger l.Wrapper) *RunData {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if storage == nil {
		storage = rawfs.NewFSStorage("")
	}

	return &RunData{
		logger: logger.WithFields(l.StringField(l.ClsKey, "runData")),
		d: mwf.NewMemWithFile[runState, mwf.Serial, mwf.Lock](runState{
			General: DefaultGeneralParams(),
			Pairs:   make(map[string]*PairParams),
		}, &mwf.JSONSerial{
			MarshalIndent: true,
		}, &sync.RWMutex{}, file, storage),
	}
}

func (impl *RunData) General() (params GeneralParams) {
	impl.d.Read(func(v runState) {
		params = v.General
	})

	return
}

func (impl *RunData) UpdateGeneral(update func(params *GeneralParams)) error {
	return impl.d.Change(func(v runState) (newV runState, err error) {
		newV = v

		update(&newV.General)

		return
	})
}

func (impl *RunData) AddPair(name string, params PairParams) error {
	return impl.d.Change(func(v runState) (newV runState, err error) {
		newV = v

		if newV.Pairs == nil {
			newV.Pairs = make(map[string]*PairParams)
		}

		if _, ok := newV.Pairs[name]; ok {
			err = commerr.ErrAlreadyExists

			return
		}

		p := params
		newV.Pairs[name] = &p

		return
	})
}

func (impl *RunData) Pair(name string) (params PairParams, err error) {
	err = commerr.ErrNotFound

	impl.d.Read(func(v runState) {
		if p, ok := v.Pairs[name]; ok {
			params = *p
			err = nil
		}
	})

	return
}

func (impl *RunData) PairNames() (names []string) {
	impl.d.Read(func(v runState) {
		for name := range v.Pairs {
			names = append(names, name)
		}
	})

	return
}

func (impl *RunData) UpdatePair(name string, update func(params *PairParams)) error {
	return impl.d.Change(func(v runState) (newV runState, err error) {
		newV = v

		p, ok := newV.Pairs[name]
		if !ok {
			err = commerr.ErrNotFound

			return
		}

		np := *p

		update(&np)

		newV.Pairs[name] = &np

		return
	})
}

// NextPhase advances training -> convergence -> production; leaving
// production starts the next iteration.
func (impl *RunData) NextPhase() error {
	return impl.d.Change(func(v runState) (newV runState, err error) {
		newV = v

		if newV.General.Phase == PhaseProduction {
			newV.General.Iteration++
		}

		newV.General.Phase = newV.General.Phase.Next()

		return
	})
}

// SetTargets resamples a target distance for every pair from its
// experimental distribution and resets the coupling constants for the new
// iteration.
func (impl *RunData) SetTargets(pairs []PairData) error {
	targets := make(map[string]float64, len(pairs))

	for _, pd := range pairs {
		target, err := pd.ResampleTarget()
		if err != nil {
			impl.logger.WithFields(l.ErrorField(err)).Error("resample failed:", pd.Name)

			return err
		}

		targets[pd.Name] = target
	}

	return impl.d.Change(func(v runState) (newV runState, err error) {
		newV = v

		for name, target := range targets {
			p, ok := newV.Pairs[name]
			if !ok {
				err = commerr.ErrNotFound

				return
			}

			np := *p
			np.Target = target
			np.Alpha = 0

			newV.Pairs[name] = &np
		}

		return
	})
}
