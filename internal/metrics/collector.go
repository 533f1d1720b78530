package metrics

import (
	"context"
	"sync"
	"time"
)

// Collector owns the CPU and network cells. Both start refreshing as soon as
// the collector is built; Close stops them.
type Collector struct {
	source  StatSource
	cpu     *SampledMetric[CpuSnapshot]
	network *NetworkMetric
	now     func() time.Time
	logger  Logger

	cancel    context.CancelFunc
	bootDone  chan struct{}
	closeOnce sync.Once
}

func NewCollector(ctx context.Context, source StatSource, opts Options) *Collector {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(ctx)

	c := &Collector{
		source:   source,
		cpu:      NewSampledMetric("cpu", DefaultCpuSnapshot(), source.CurrentLoad, opts),
		network:  NewNetworkMetric(source, opts),
		now:      opts.Clock,
		logger:   opts.Logger,
		cancel:   cancel,
		bootDone: make(chan struct{}),
	}

	c.cpu.Start(ctx)
	go func() {
		defer close(c.bootDone)
		if err := c.network.Run(ctx); err != nil {
			c.logger.Debugf("network: bootstrap stopped: %v", err)
		}
	}()
	return c
}

// CPU returns the cached CPU reading.
func (c *Collector) CPU() Reading[CpuSnapshot] {
	return c.cpu.Read()
}

// Network returns the cached network reading.
func (c *Collector) Network() Reading[NetworkSnapshot] {
	return c.network.Read()
}

// Memory fetches memory stats from the source on every call. Nothing is
// cached.
func (c *Collector) Memory(ctx context.Context) (MemorySnapshot, error) {
	m, err := c.source.Memory(ctx)
	if err != nil {
		return MemorySnapshot{}, &SampleFailure{Metric: "memory", Err: err}
	}
	return m.Stamped(c.now().UTC()), nil
}

func (c *Collector) CPUMetric() *SampledMetric[CpuSnapshot] { return c.cpu }

func (c *Collector) NetworkMetric() *NetworkMetric { return c.network }

// Close stops the bootstrap loop and both timers, waiting for in-flight
// samples to return. It is safe to call more than once.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.bootDone
		c.network.Stop()
		c.cpu.Stop()
		c.logger.Infof("collector stopped")
	})
}
