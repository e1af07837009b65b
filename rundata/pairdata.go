package rundata

import (
	"fmt"
	"os"
	"sort"

	"github.com/sgostarter/i/commerr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
	"gopkg.in/yaml.v3"
)

// PairData describes one restrained pair: the atom sites and the
// experimental distance distribution over the bin centers.
type PairData struct {
	Name         string    `json:"name" yaml:"name"`
	Sites        []int     `json:"sites" yaml:"sites"`
	Bins         []float64 `json:"bins" yaml:"bins"`
	Distribution []float64 `json:"distribution" yaml:"distribution"`
}

func (pd *PairData) Validate() error {
	if pd.Name == "" {
		return fmt.Errorf("%w: pair name", commerr.ErrInvalidArgument)
	}

	if len(pd.Sites) < 2 {
		return fmt.Errorf("%w: pair %s has %d sites", commerr.ErrInvalidArgument, pd.Name, len(pd.Sites))
	}

	if len(pd.Bins) == 0 || len(pd.Bins) != len(pd.Distribution) {
		return fmt.Errorf("%w: pair %s has %d bins and %d weights",
			commerr.ErrInvalidArgument, pd.Name, len(pd.Bins), len(pd.Distribution))
	}

	for idx, w := range pd.Distribution {
		if w < 0 {
			return fmt.Errorf("%w: pair %s weight %d is %v", commerr.ErrInvalidArgument, pd.Name, idx, w)
		}
	}

	if floats.Sum(pd.Distribution) <= 0 {
		return fmt.Errorf("%w: pair %s distribution is empty", commerr.ErrInvalidArgument, pd.Name)
	}

	return nil
}

// ResampleTarget draws a bin center with probability proportional to the
// distribution weight.
func (pd *PairData) ResampleTarget() (float64, error) {
	if err := pd.Validate(); err != nil {
		return 0, err
	}

	idx, ok := sampleuv.NewWeighted(pd.Distribution, nil).Take()
	if !ok {
		return 0, fmt.Errorf("%w: pair %s exhausted", commerr.ErrUnknown, pd.Name)
	}

	return pd.Bins[idx], nil
}

// LoadPairs reads the pair definition file: a YAML map keyed by pair name.
// Pairs come back sorted by name so iteration order is stable.
func LoadPairs(file string) ([]PairData, error) {
	d, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var m map[string]PairData

	err = yaml.Unmarshal(d, &m)
	if err != nil {
		return nil, err
	}

	pairs := make([]PairData, 0, len(m))

	for name, pd := range m {
		pd.Name = name

		if err = pd.Validate(); err != nil {
			return nil, err
		}

		pairs = append(pairs, pd)
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Name < pairs[j].Name
	})

	return pairs, nil
}
