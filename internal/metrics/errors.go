package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoInterface is returned when no usable network interface is up.
var ErrNoInterface = errors.New("no active network interface")

type failureBody struct {
	Error   string `json:"error"`
	Metric  string `json:"metric"`
	Attempt int    `json:"attempt,omitempty"`
}

// SampleFailure records a StatSource call that failed for one metric.
type SampleFailure struct {
	Metric string
	Err    error
}

func (e *SampleFailure) Error() string {
	return fmt.Sprintf("error sampling %s: %v", e.Metric, e.Err)
}

func (e *SampleFailure) Unwrap() error { return e.Err }

func (e *SampleFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureBody{Error: e.Error(), Metric: e.Metric})
}

// BootstrapFailure records a failed attempt to resolve the network interface.
type BootstrapFailure struct {
	Attempt int
	Err     error
}

func (e *BootstrapFailure) Error() string {
	return fmt.Sprintf("error resolving network interface (attempt %d): %v", e.Attempt, e.Err)
}

func (e *BootstrapFailure) Unwrap() error { return e.Err }

func (e *BootstrapFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(failureBody{Error: e.Error(), Metric: "network", Attempt: e.Attempt})
}
