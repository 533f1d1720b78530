package metrics

import (
	"context"
	"sync"
	"time"
)

// NetworkMetric resolves the default interface once and then hands off to a
// SampledMetric that tracks that interface's throughput. Resolution is
// retried forever at a fixed delay.
type NetworkMetric struct {
	source     StatSource
	cell       *SampledMetric[NetworkSnapshot]
	retryDelay time.Duration
	logger     Logger

	mu    sync.RWMutex
	iface string
}

func NewNetworkMetric(source StatSource, opts Options) *NetworkMetric {
	opts = opts.withDefaults()
	n := &NetworkMetric{
		source:     source,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
	n.cell = NewSampledMetric("network", DefaultNetworkSnapshot(), n.sampleInterface, opts)
	return n
}

func (n *NetworkMetric) sampleInterface(ctx context.Context) (NetworkSnapshot, error) {
	iface := n.Interface()
	if iface == "" {
		return NetworkSnapshot{}, ErrNoInterface
	}
	return n.source.NetworkStats(ctx, iface)
}

// Interface returns the resolved interface name, or "" before resolution.
func (n *NetworkMetric) Interface() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.iface
}

func (n *NetworkMetric) Read() Reading[NetworkSnapshot] {
	return n.cell.Read()
}

func (n *NetworkMetric) Cell() *SampledMetric[NetworkSnapshot] {
	return n.cell
}

// Run blocks until the interface is resolved and periodic sampling has
// started, or until ctx is done. Each failed resolution is recorded as the
// cell's error before the next attempt.
func (n *NetworkMetric) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		err := n.bootstrap(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		n.cell.Fail(&BootstrapFailure{Attempt: attempt, Err: err})
		n.logger.Warnf("network: resolving interface failed (attempt %d), retrying in %s: %v", attempt, n.retryDelay, err)

		timer := time.NewTimer(n.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (n *NetworkMetric) bootstrap(ctx context.Context) error {
	iface, err := n.source.DefaultInterface(ctx)
	if err != nil {
		return err
	}
	n.mu.Lock()
	n.iface = iface
	n.mu.Unlock()
	n.logger.Infof("network: sampling interface %s", iface)

	// Seeds the source's baseline; the cell suppresses it.
	n.cell.Sample(ctx)
	n.cell.Start(ctx)
	return nil
}

func (n *NetworkMetric) Stop() {
	n.cell.Stop()
}
