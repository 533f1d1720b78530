package metrics

import "context"

// StatSource provides point-in-time OS measurements. Implementations may keep
// internal baselines between calls (network throughput is a delta against the
// previous call for the same interface), so the first reading of a series is
// not meaningful on its own.
type StatSource interface {
	CurrentLoad(ctx context.Context) (CpuSnapshot, error)
	Memory(ctx context.Context) (MemorySnapshot, error)
	DefaultInterface(ctx context.Context) (string, error)
	NetworkStats(ctx context.Context, iface string) (NetworkSnapshot, error)
}

// Logger is the subset of the gommon/echo logger used by this package.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
