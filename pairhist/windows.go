package pairhist

import (
	"sync"

	"gonum.org/v1/gonum/floats"
)

// WindowHistory keeps the most recent nWindows ensemble-reduced histograms
// and the working histogram derived from them. Slots are preallocated and
// recycled through a circular write cursor, so pushing past capacity evicts
// the oldest window without reallocating.
type WindowHistory struct {
	lock sync.RWMutex

	nBins int

	slots  []PairHist
	cursor int
	count  int

	working PairHist
}

func NewWindowHistory(nWindows, nBins int) (*WindowHistory, error) {
	if nWindows <= 0 || nBins <= 0 {
		return nil, ErrBadParam
	}

	slots := make([]PairHist, nWindows)
	for idx := range slots {
		slots[idx] = New(nBins)
	}

	return &WindowHistory{
		nBins:   nBins,
		slots:   slots,
		working: New(nBins),
	}, nil
}

// Push copies reduced into the next slot, evicting the oldest window when at
// capacity, then rebuilds the working histogram from exactly the current
// window set: working[i] = mean over windows of (window[i] - experimental[i]).
func (history *WindowHistory) Push(reduced, experimental PairHist) error {
	if len(reduced) != history.nBins || len(experimental) != history.nBins {
		return ErrBadShape
	}

	history.lock.Lock()
	defer history.lock.Unlock()

	copy(history.slots[history.cursor], reduced)
	history.cursor = (history.cursor + 1) % len(history.slots)

	if history.count < len(history.slots) {
		history.count++
	}

	history.working.Reset()

	for idx := 0; idx < history.count; idx++ {
		floats.Add(history.working, history.windowAt(idx))
	}

	floats.Scale(1/float64(history.count), history.working)
	floats.Sub(history.working, experimental)

	return nil
}

// windowAt returns the idx-th oldest live window. Callers hold the lock.
func (history *WindowHistory) windowAt(idx int) PairHist {
	if history.count < len(history.slots) {
		return history.slots[idx]
	}

	return history.slots[(history.cursor+idx)%len(history.slots)]
}

func (history *WindowHistory) Count() int {
	history.lock.RLock()
	defer history.lock.RUnlock()

	return history.count
}

// Windows returns copies of the live windows, oldest first.
func (history *WindowHistory) Windows() []PairHist {
	history.lock.RLock()
	defer history.lock.RUnlock()

	windows := make([]PairHist, 0, history.count)
	for idx := 0; idx < history.count; idx++ {
		windows = append(windows, history.windowAt(idx).Clone())
	}

	return windows
}

// ReadWorking runs read against the current working histogram under the read
// lock. The working histogram is all zeros until the first window completes.
// read must not retain or mutate the slice.
func (history *WindowHistory) ReadWorking(read func(working PairHist)) {
	history.lock.RLock()
	defer history.lock.RUnlock()

	read(history.working)
}
