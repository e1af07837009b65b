package restraint

// sampleBuffer accumulates pair distances at a fixed cadence for one window.
// Overflow past capacity is an invariant violation upstream (window and
// sample periods are validated to be consistent), so record ignores samples
// once full and the window step checks full() before reading.
type sampleBuffer struct {
	samples []float64
	cursor  int

	samplePeriod   float64
	nextSampleTime float64
}

func newSampleBuffer(nSamples int, samplePeriod float64) *sampleBuffer {
	return &sampleBuffer{
		samples:        make([]float64, nSamples),
		samplePeriod:   samplePeriod,
		nextSampleTime: samplePeriod,
	}
}

func (buf *sampleBuffer) record(t, distance float64) bool {
	if t < buf.nextSampleTime || buf.cursor >= len(buf.samples) {
		return false
	}

	buf.samples[buf.cursor] = distance
	buf.cursor++
	buf.nextSampleTime += buf.samplePeriod

	return true
}

func (buf *sampleBuffer) full() bool {
	return buf.cursor == len(buf.samples)
}

// view hands back the filled samples without consuming them, so a window
// update that fails downstream can retry over the same data. The slice is
// only valid until the next record or reset.
func (buf *sampleBuffer) view() []float64 {
	return buf.samples[:buf.cursor]
}

// reset empties the buffer for the next window. The sample clock restarts
// from t to clean up accumulated drift.
func (buf *sampleBuffer) reset(t float64) {
	buf.cursor = 0
	buf.nextSampleTime = t + buf.samplePeriod
}

// runningStat tracks mean and summed squared deviation incrementally
// (Welford's recurrence), so the adaptive potential never stores its window
// samples.
type runningStat struct {
	count int
	mean  float64
	m2    float64
}

func (stat *runningStat) add(v float64) {
	stat.count++

	delta := v - stat.mean
	stat.mean += delta / float64(stat.count)
	stat.m2 += delta * (v - stat.mean)
}

func (stat *runningStat) reset() {
	stat.count = 0
	stat.mean = 0
	stat.m2 = 0
}
