package localimpls

import (
	"sync"
	"testing"
	"time"

	"github.com/sgostarter/librestraint/ensemble"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestLocalEnsembleReduce(t *testing.T) {
	const memberCount = 4

	e, err := NewLocalEnsemble(memberCount, nil)
	assert.Nil(t, err)

	const rounds = 3

	results := make([][]*mat.Dense, memberCount)

	var wg sync.WaitGroup

	for member := 0; member < memberCount; member++ {
		wg.Add(1)

		go func(member int) {
			defer wg.Done()

			for round := 0; round < rounds; round++ {
				local := mat.NewDense(1, 3, []float64{
					float64(member), float64(round), 1,
				})

				reduced, err := e.Reduce(local)
				assert.Nil(t, err)

				results[member] = append(results[member], reduced)
			}
		}(member)
	}

	wg.Wait()

	// 0+1+2+3 summed across members, per round.
	for member := 0; member < memberCount; member++ {
		assert.EqualValues(t, rounds, len(results[member]))

		for round := 0; round < rounds; round++ {
			reduced := results[member][round]

			assert.InDelta(t, 6, reduced.At(0, 0), 1e-12)
			assert.InDelta(t, float64(round*memberCount), reduced.At(0, 1), 1e-12)
			assert.InDelta(t, memberCount, reduced.At(0, 2), 1e-12)
		}
	}
}

func TestLocalEnsembleSingleMember(t *testing.T) {
	e, err := NewLocalEnsemble(1, nil)
	assert.Nil(t, err)

	local := mat.NewDense(1, 2, []float64{3, 4})

	reduced, err := e.Reduce(local)
	assert.Nil(t, err)
	assert.InDelta(t, 3, reduced.At(0, 0), 1e-12)
	assert.InDelta(t, 4, reduced.At(0, 1), 1e-12)

	// The reduced matrix is a copy, not the caller's buffer.
	local.Set(0, 0, 100)
	assert.InDelta(t, 3, reduced.At(0, 0), 1e-12)
}

func TestLocalEnsembleShapeMismatch(t *testing.T) {
	e, err := NewLocalEnsemble(2, nil)
	assert.Nil(t, err)

	done := make(chan *mat.Dense, 1)

	go func() {
		reduced, _ := e.Reduce(mat.NewDense(1, 2, []float64{1, 2}))
		done <- reduced
	}()

	for {
		e.lock.Lock()
		arrived := e.arrived
		e.lock.Unlock()

		if arrived == 1 {
			break
		}

		time.Sleep(time.Millisecond)
	}

	_, err = e.Reduce(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, ensemble.ErrShapeMismatch)

	// Release the stalled member with a well-shaped contribution.
	reduced, err := e.Reduce(mat.NewDense(1, 2, []float64{10, 20}))
	assert.Nil(t, err)
	assert.InDelta(t, 11, reduced.At(0, 0), 1e-12)

	assert.InDelta(t, 11, (<-done).At(0, 0), 1e-12)
}

func TestLocalEnsembleStop(t *testing.T) {
	e, err := NewLocalEnsemble(2, nil)
	assert.Nil(t, err)

	assert.False(t, e.ShouldStop())

	assert.Nil(t, e.Stop())
	assert.Nil(t, e.Stop())
	assert.True(t, e.ShouldStop())
}

func TestLocalEnsembleBadMember(t *testing.T) {
	_, err := NewLocalEnsemble(0, nil)
	assert.ErrorIs(t, err, ensemble.ErrBadMember)

	e, err := NewLocalEnsemble(1, nil)
	assert.Nil(t, err)

	_, err = e.Reduce(nil)
	assert.ErrorIs(t, err, ensemble.ErrShapeMismatch)
}
