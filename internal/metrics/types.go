package metrics

import "time"

// CpuCoreLoad is the load breakdown of a single core. Percentages are over
// the interval since the previous reading; raw values are tick counts over
// the same interval.
type CpuCoreLoad struct {
	Load          float64 `json:"load"`
	LoadUser      float64 `json:"load_user"`
	LoadSystem    float64 `json:"load_system"`
	LoadNice      float64 `json:"load_nice"`
	LoadIdle      float64 `json:"load_idle"`
	LoadIrq       float64 `json:"load_irq"`
	RawLoad       float64 `json:"raw_load"`
	RawLoadUser   float64 `json:"raw_load_user"`
	RawLoadSystem float64 `json:"raw_load_system"`
	RawLoadNice   float64 `json:"raw_load_nice"`
	RawLoadIdle   float64 `json:"raw_load_idle"`
	RawLoadIrq    float64 `json:"raw_load_irq"`
}

type CpuSnapshot struct {
	DateCaptured int64 `json:"dateCaptured"`

	AvgLoad              float64 `json:"avgload"`
	CurrentLoad          float64 `json:"currentload"`
	CurrentLoadUser      float64 `json:"currentload_user"`
	CurrentLoadSystem    float64 `json:"currentload_system"`
	CurrentLoadNice      float64 `json:"currentload_nice"`
	CurrentLoadIdle      float64 `json:"currentload_idle"`
	CurrentLoadIrq       float64 `json:"currentload_irq"`
	RawCurrentLoad       float64 `json:"raw_currentload"`
	RawCurrentLoadUser   float64 `json:"raw_currentload_user"`
	RawCurrentLoadSystem float64 `json:"raw_currentload_system"`
	RawCurrentLoadNice   float64 `json:"raw_currentload_nice"`
	RawCurrentLoadIdle   float64 `json:"raw_currentload_idle"`
	RawCurrentLoadIrq    float64 `json:"raw_currentload_irq"`

	Cpus []CpuCoreLoad `json:"cpus"`
}

// DefaultCpuSnapshot is served until the first real CPU sample is adopted:
// fully idle, no cores.
func DefaultCpuSnapshot() CpuSnapshot {
	return CpuSnapshot{
		CurrentLoadIdle: 100,
		Cpus:            []CpuCoreLoad{},
	}
}

func (s CpuSnapshot) Stamped(at time.Time) CpuSnapshot {
	s.DateCaptured = at.Unix()
	return s
}

// MemorySnapshot passes the OS memory counters through unchanged. All values
// are bytes.
type MemorySnapshot struct {
	DateCaptured int64 `json:"dateCaptured"`

	Total     uint64 `json:"total"`
	Free      uint64 `json:"free"`
	Used      uint64 `json:"used"`
	Active    uint64 `json:"active"`
	Available uint64 `json:"available"`
	Buffers   uint64 `json:"buffers"`
	Cached    uint64 `json:"cached"`
	Slab      uint64 `json:"slab"`
	BuffCache uint64 `json:"buffcache"`
	SwapTotal uint64 `json:"swaptotal"`
	SwapUsed  uint64 `json:"swapused"`
	SwapFree  uint64 `json:"swapfree"`
}

func (s MemorySnapshot) Stamped(at time.Time) MemorySnapshot {
	s.DateCaptured = at.Unix()
	return s
}

const (
	unknownInterface = "unknown"
	unknownOperState = "unknown"

	// RateUnknown marks a throughput that has no previous reading to diff against.
	RateUnknown = -1
)

type NetworkSnapshot struct {
	DateCaptured int64 `json:"dateCaptured"`

	Iface     string  `json:"iface"`
	OperState string  `json:"operstate"`
	Rx        uint64  `json:"rx"`
	Tx        uint64  `json:"tx"`
	RxSec     float64 `json:"rx_sec"`
	TxSec     float64 `json:"tx_sec"`
	Ms        int64   `json:"ms"`
}

func DefaultNetworkSnapshot() NetworkSnapshot {
	return NetworkSnapshot{
		Iface:     unknownInterface,
		OperState: unknownOperState,
		RxSec:     RateUnknown,
		TxSec:     RateUnknown,
	}
}

func (s NetworkSnapshot) Stamped(at time.Time) NetworkSnapshot {
	s.DateCaptured = at.Unix()
	return s
}
