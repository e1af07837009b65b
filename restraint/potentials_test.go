package restraint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestHarmonicPotential(t *testing.T) {
	potential, err := NewHarmonicPotential(HarmonicParams{K: 2, R0: 3})
	assert.Nil(t, err)

	out := potential.Evaluate(r3.Vec{X: 5}, r3.Vec{}, 0)
	assert.InDelta(t, 4, out.Energy, 1e-12)
	assert.InDelta(t, -4, out.Force.X, 1e-12)

	out = potential.Evaluate(r3.Vec{X: 1}, r3.Vec{}, 0)
	assert.InDelta(t, 4, out.Energy, 1e-12)
	assert.InDelta(t, 4, out.Force.X, 1e-12)

	out = potential.Evaluate(r3.Vec{X: 3}, r3.Vec{}, 0)
	assert.InDelta(t, 0, out.Energy, 1e-12)
	assert.EqualValues(t, r3.Vec{}, out.Force)

	assert.Nil(t, potential.Callback(r3.Vec{}, r3.Vec{}, 0, nil))
}

func TestLinearPotential(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "linear.log")

	potential, err := NewLinearPotential(LinearParams{
		Alpha:        2,
		Target:       3,
		SamplePeriod: 1,
		LogFile:      logFile,
	}, nil)
	assert.Nil(t, err)

	// Above the target the force points back toward it.
	out := potential.Evaluate(r3.Vec{X: 6}, r3.Vec{}, 0)
	assert.InDelta(t, 4, out.Energy, 1e-12)
	assert.InDelta(t, -2.0/3, out.Force.X, 1e-12)

	// Below it pushes outward with the same magnitude.
	out = potential.Evaluate(r3.Vec{X: 1}, r3.Vec{}, 0)
	assert.InDelta(t, 2.0/3, out.Force.X, 1e-12)

	// At the target the force is zero.
	out = potential.Evaluate(r3.Vec{X: 3}, r3.Vec{}, 0)
	assert.EqualValues(t, r3.Vec{}, out.Force)

	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 0, nil))
	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 1, nil))
	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 2, nil))

	potential.Close()

	d, err := os.ReadFile(logFile)
	assert.Nil(t, err)

	lines := strings.Split(strings.TrimSpace(string(d)), "\n")
	assert.EqualValues(t, 4, len(lines))
	assert.EqualValues(t, "time\tR\ttarget\talpha", lines[0])
	assert.EqualValues(t, 4, len(strings.Split(lines[1], "\t")))
}

func TestLinearStopPotential(t *testing.T) {
	potential, err := NewLinearStopPotential(LinearStopParams{
		LinearParams: LinearParams{
			Alpha:        2,
			Target:       3,
			SamplePeriod: 1,
		},
		Tolerance: 0.5,
	}, nil)
	assert.Nil(t, err)

	resources := &fakeResources{}

	// Out of tolerance: keep running.
	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 0, resources))
	assert.False(t, potential.StopCalled())
	assert.False(t, resources.stopped)

	// Within tolerance: stop exactly once.
	assert.Nil(t, potential.Callback(r3.Vec{X: 3.2}, r3.Vec{}, 1, resources))
	assert.True(t, potential.StopCalled())
	assert.True(t, resources.stopped)

	resources.stopped = false

	assert.Nil(t, potential.Callback(r3.Vec{X: 3.2}, r3.Vec{}, 2, resources))
	assert.False(t, resources.stopped)
}

func TestBRERPotentialAdaptation(t *testing.T) {
	potential, err := NewBRERPotential(BRERParams{
		A:         1,
		Tau:       10,
		Tolerance: 0.1,
		Target:    2,
		NSamples:  2,
	}, nil)
	assert.Nil(t, err)

	resources := &fakeResources{}

	assert.Nil(t, potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 0, resources))
	assert.Nil(t, potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 5, resources))
	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 10, resources))

	// mean 5, m2 2, g = (1 - 5/2)*2 = -3, eta = 1/3, alpha = 1.
	assert.InDelta(t, 1, potential.Alpha(), 1e-12)
	assert.False(t, potential.Converged())
	assert.False(t, resources.stopped)

	out := potential.Evaluate(r3.Vec{X: 4}, r3.Vec{}, 11)
	assert.InDelta(t, 2, out.Energy, 1e-12)
	assert.InDelta(t, -0.5, out.Force.X, 1e-12)
}

func TestBRERPotentialConvergence(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "brer.log")

	potential, err := NewBRERPotential(BRERParams{
		A:         1,
		Tau:       10,
		Tolerance: 5,
		Target:    2,
		NSamples:  2,
		LogFile:   logFile,
	}, nil)
	assert.Nil(t, err)

	resources := &fakeResources{}

	assert.Nil(t, potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 0, resources))
	assert.Nil(t, potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 5, resources))
	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 10, resources))

	// |alpha - alphaPrev| = 1 < tolerance 5.
	assert.True(t, potential.Converged())
	assert.True(t, resources.stopped)

	// Converged restraints ignore further callbacks.
	resources.stopped = false

	assert.Nil(t, potential.Callback(r3.Vec{X: 6}, r3.Vec{}, 20, resources))
	assert.False(t, resources.stopped)
	assert.InDelta(t, 1, potential.Alpha(), 1e-12)

	d, err := os.ReadFile(logFile)
	assert.Nil(t, err)

	lines := strings.Split(strings.TrimSpace(string(d)), "\n")
	assert.EqualValues(t, "time\tR\ttarget\tconverged\talpha\talpha_max\tg\teta", lines[0])
	assert.EqualValues(t, 4, len(lines))
}

func TestBRERPotentialPartialWindow(t *testing.T) {
	potential, err := NewBRERPotential(BRERParams{
		A:         1,
		Tau:       10,
		Tolerance: 0.1,
		Target:    2,
		NSamples:  2,
	}, nil)
	assert.Nil(t, err)

	assert.Nil(t, potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 0, nil))

	err = potential.Callback(r3.Vec{X: 4}, r3.Vec{}, 10, nil)
	assert.ErrorIs(t, err, ErrPartialWindow)
}

func TestParamsFromMap(t *testing.T) {
	linear, err := LinearParamsFromMap(map[string]interface{}{
		"alpha":            2,
		"target":           3,
		"sample_period":    1,
		"logging_filename": "pair.log",
	})
	assert.Nil(t, err)
	assert.EqualValues(t, 2, linear.Alpha)
	assert.EqualValues(t, "pair.log", linear.LogFile)

	_, err = LinearStopParamsFromMap(map[string]interface{}{
		"alpha":         2,
		"target":        3,
		"sample_period": 1,
		"tolerance":     0,
	})
	assert.ErrorIs(t, err, ErrBadConfig)

	brer, err := BRERParamsFromMap(map[string]interface{}{
		"A":         50,
		"tau":       50,
		"tolerance": 0.25,
		"target":    4.5,
		"nSamples":  50,
		"alpha":     1.5,
	})
	assert.Nil(t, err)
	assert.EqualValues(t, 1.5, brer.Alpha)
	assert.False(t, brer.Converged)
}
