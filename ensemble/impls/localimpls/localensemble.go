package localimpls

import (
	"sync"

	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/mat"
)

// NewLocalEnsemble builds an all-reduce barrier for memberCount replicas
// co-located in one process. Every member shares the returned handle and
// calls Reduce once per window; the call blocks until all members of the
// round have contributed, then each receives the element-wise sum.
func NewLocalEnsemble(memberCount int, logger l.Wrapper) (*LocalEnsemble, error) {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	if memberCount <= 0 {
		return nil, ensemble.ErrBadMember
	}

	impl := &LocalEnsemble{
		logger:      logger.WithFields(l.StringField(l.ClsKey, "localEnsemble")),
		memberCount: memberCount,
	}

	impl.cond = sync.NewCond(&impl.lock)

	return impl, nil
}

type LocalEnsemble struct {
	logger l.Wrapper

	memberCount int

	lock     sync.Mutex
	cond     *sync.Cond
	draining bool
	arrived  int
	leaving  int
	sum      *mat.Dense

	stopLock sync.Mutex
	stopped  bool
}

func (impl *LocalEnsemble) Reduce(local *mat.Dense) (*mat.Dense, error) {
	if local == nil {
		return nil, ensemble.ErrShapeMismatch
	}

	impl.lock.Lock()
	defer impl.lock.Unlock()

	// Members of the next round wait until the previous one has drained.
	for impl.draining {
		impl.cond.Wait()
	}

	if impl.sum == nil {
		impl.sum = mat.DenseCopyOf(local)
	} else {
		sumRows, sumCols := impl.sum.Dims()

		rows, cols := local.Dims()
		if rows != sumRows || cols != sumCols {
			// The offending member errors out; the rest of the ensemble
			// stalls at the barrier, which is the documented fatal outcome.
			return nil, ensemble.ErrShapeMismatch
		}

		impl.sum.Add(impl.sum, local)
	}

	impl.arrived++

	if impl.arrived == impl.memberCount {
		impl.draining = true
		impl.leaving = impl.memberCount
		impl.cond.Broadcast()
	} else {
		for !impl.draining {
			impl.cond.Wait()
		}
	}

	reduced := mat.DenseCopyOf(impl.sum)

	impl.leaving--
	if impl.leaving == 0 {
		impl.sum = nil
		impl.arrived = 0
		impl.draining = false
		impl.cond.Broadcast()
	}

	return reduced, nil
}

func (impl *LocalEnsemble) Stop() error {
	impl.stopLock.Lock()
	defer impl.stopLock.Unlock()

	if !impl.stopped {
		impl.stopped = true

		impl.logger.Info("ensemble stop requested")
	}

	return nil
}

func (impl *LocalEnsemble) ShouldStop() bool {
	impl.stopLock.Lock()
	defer impl.stopLock.Unlock()

	return impl.stopped
}
