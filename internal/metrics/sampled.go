package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Stamper is implemented by snapshot types that carry a capture time.
type Stamper[T any] interface {
	Stamped(at time.Time) T
}

type SampleFunc[T any] func(ctx context.Context) (T, error)

// Reading is the cached state of a SampledMetric. When Err is set it takes
// precedence over Value, which is the last adopted snapshot.
type Reading[T any] struct {
	Value T
	Err   error
}

// SampledMetric is a self-refreshing cache cell. A timer issues a sample every
// interval; readers only ever see the last adopted value and the last error.
//
// The first successful sample is never adopted: it only seeds whatever
// baseline the source keeps. Samples run concurrently when the source is
// slower than the interval. Each one carries a sequence number taken when it
// is issued, and a completion older than the last applied one is dropped.
type SampledMetric[T Stamper[T]] struct {
	name     string
	sample   SampleFunc[T]
	interval time.Duration
	now      func() time.Time
	logger   Logger

	issued atomic.Uint64

	mu       sync.RWMutex
	lastGood T
	lastErr  error
	count    int64
	applied  uint64
	cancel   context.CancelFunc

	wg sync.WaitGroup
}

func NewSampledMetric[T Stamper[T]](name string, initial T, sample SampleFunc[T], opts Options) *SampledMetric[T] {
	opts = opts.withDefaults()
	return &SampledMetric[T]{
		name:     name,
		sample:   sample,
		interval: opts.interval(),
		now:      opts.Clock,
		logger:   opts.Logger,
		lastGood: initial,
	}
}

func (m *SampledMetric[T]) Name() string { return m.name }

func (m *SampledMetric[T]) Interval() time.Duration { return m.interval }

// Read returns the cached value and error without touching the source.
func (m *SampledMetric[T]) Read() Reading[T] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Reading[T]{Value: m.lastGood, Err: m.lastErr}
}

// SampleCount is the number of successful samples applied so far, including
// the suppressed first one.
func (m *SampledMetric[T]) SampleCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}

// Sample performs one blocking call to the source and applies the result.
// A call whose ctx ended before it returned is discarded, so cancellation
// never shows up as a sample failure.
func (m *SampledMetric[T]) Sample(ctx context.Context) {
	seq := m.issued.Add(1)
	v, err := m.sample(ctx)
	if ctx.Err() != nil {
		m.logger.Debugf("%s: discarding sample %d: %v", m.name, seq, ctx.Err())
		return
	}
	m.complete(seq, v, err)
}

func (m *SampledMetric[T]) complete(seq uint64, v T, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq < m.applied {
		m.logger.Debugf("%s: dropping sample %d, %d already applied", m.name, seq, m.applied)
		return
	}
	m.applied = seq

	if err != nil {
		m.lastErr = &SampleFailure{Metric: m.name, Err: err}
		m.logger.Warnf("%s: %v", m.name, err)
		return
	}

	m.count++
	if m.count == 1 {
		return
	}
	m.lastGood = v.Stamped(m.now().UTC())
	m.lastErr = nil
}

// Fail records err as the current error without sampling. The last adopted
// value is kept.
func (m *SampledMetric[T]) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

// Start begins sampling every interval until ctx is done or Stop is called.
// The first sample is issued one interval after Start. Calling Start on a
// running metric does nothing.
func (m *SampledMetric[T]) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.logger.Debugf("%s: sampling every %s", m.name, m.interval)
	m.wg.Add(1)
	go m.run(ctx)
}

func (m *SampledMetric[T]) run(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				m.Sample(ctx)
			}()
		}
	}
}

// Stop cancels the timer and any in-flight samples and waits for them to
// return. The cached reading is left as is.
func (m *SampledMetric[T]) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Running reports whether the timer is active.
func (m *SampledMetric[T]) Running() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cancel != nil
}
