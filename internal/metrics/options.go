package metrics

import (
	"time"

	"github.com/labstack/gommon/log"
)

const (
	DefaultIntervalMs = 1000
	DefaultRetryDelay = 1000 * time.Millisecond
)

type Options struct {
	// IntervalMs is the sampling period. Non-positive values fall back to
	// DefaultIntervalMs.
	IntervalMs int
	// RetryDelay is the wait between network interface resolution attempts.
	RetryDelay time.Duration
	Logger     Logger
	// Clock stamps adopted snapshots. Defaults to time.Now.
	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.IntervalMs <= 0 {
		o.IntervalMs = DefaultIntervalMs
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Logger == nil {
		o.Logger = log.New("hoststat")
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

func (o Options) interval() time.Duration {
	return time.Duration(o.IntervalMs) * time.Millisecond
}
