package metrics

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
)

// gopsutil reports CPU times in seconds; raw loads are reported in USER_HZ ticks.
const ticksPerSecond = 100

type netSample struct {
	rx, tx uint64
	at     time.Time
}

// SystemSource is the gopsutil backed StatSource. It is safe for concurrent
// use; CPU and network readings are deltas against the previous call.
type SystemSource struct {
	mu         sync.Mutex
	lastTotal  cpu.TimesStat
	lastPerCPU []cpu.TimesStat
	lastNet    map[string]netSample
	now        func() time.Time
}

func NewSystemSource() *SystemSource {
	return &SystemSource{
		lastNet: make(map[string]netSample),
		now:     time.Now,
	}
}

func (s *SystemSource) CurrentLoad(ctx context.Context) (CpuSnapshot, error) {
	total, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return CpuSnapshot{}, fmt.Errorf("error getting CPU times: %w", err)
	}
	if len(total) == 0 {
		return CpuSnapshot{}, fmt.Errorf("error getting CPU times: no data")
	}
	perCPU, err := cpu.TimesWithContext(ctx, true)
	if err != nil {
		return CpuSnapshot{}, fmt.Errorf("error getting per-CPU times: %w", err)
	}
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return CpuSnapshot{}, fmt.Errorf("error getting load average: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := DefaultCpuSnapshot()
	if len(perCPU) > 0 {
		snap.AvgLoad = round2(avg.Load1 / float64(len(perCPU)))
	}

	agg := coreLoad(s.lastTotal, total[0])
	snap.CurrentLoad = agg.Load
	snap.CurrentLoadUser = agg.LoadUser
	snap.CurrentLoadSystem = agg.LoadSystem
	snap.CurrentLoadNice = agg.LoadNice
	snap.CurrentLoadIdle = agg.LoadIdle
	snap.CurrentLoadIrq = agg.LoadIrq
	snap.RawCurrentLoad = agg.RawLoad
	snap.RawCurrentLoadUser = agg.RawLoadUser
	snap.RawCurrentLoadSystem = agg.RawLoadSystem
	snap.RawCurrentLoadNice = agg.RawLoadNice
	snap.RawCurrentLoadIdle = agg.RawLoadIdle
	snap.RawCurrentLoadIrq = agg.RawLoadIrq

	for i, cur := range perCPU {
		var prev cpu.TimesStat
		if i < len(s.lastPerCPU) {
			prev = s.lastPerCPU[i]
		}
		snap.Cpus = append(snap.Cpus, coreLoad(prev, cur))
	}

	s.lastTotal = total[0]
	s.lastPerCPU = perCPU
	return snap, nil
}

// coreLoad computes the load over the interval between two readings. A zero
// prev yields the average since boot.
func coreLoad(prev, cur cpu.TimesStat) CpuCoreLoad {
	user := ticks(cur.User - prev.User)
	system := ticks(cur.System - prev.System)
	nice := ticks(cur.Nice - prev.Nice)
	idle := ticks(cur.Idle - prev.Idle)
	irq := ticks((cur.Irq + cur.Softirq) - (prev.Irq + prev.Softirq))
	all := user + system + nice + idle + irq

	l := CpuCoreLoad{
		RawLoad:       user + system + nice + irq,
		RawLoadUser:   user,
		RawLoadSystem: system,
		RawLoadNice:   nice,
		RawLoadIdle:   idle,
		RawLoadIrq:    irq,
	}
	if all <= 0 {
		l.LoadIdle = 100
		return l
	}
	l.Load = l.RawLoad / all * 100
	l.LoadUser = user / all * 100
	l.LoadSystem = system / all * 100
	l.LoadNice = nice / all * 100
	l.LoadIdle = idle / all * 100
	l.LoadIrq = irq / all * 100
	return l
}

func ticks(seconds float64) float64 {
	if seconds < 0 {
		return 0
	}
	return math.Round(seconds * ticksPerSecond)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *SystemSource) Memory(ctx context.Context) (MemorySnapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemorySnapshot{}, fmt.Errorf("error getting memory usage: %w", err)
	}
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return MemorySnapshot{}, fmt.Errorf("error getting swap usage: %w", err)
	}
	return MemorySnapshot{
		Total:     vm.Total,
		Free:      vm.Free,
		Used:      vm.Used,
		Active:    vm.Active,
		Available: vm.Available,
		Buffers:   vm.Buffers,
		Cached:    vm.Cached,
		Slab:      vm.Slab,
		BuffCache: vm.Buffers + vm.Cached + vm.Slab,
		SwapTotal: swap.Total,
		SwapUsed:  swap.Used,
		SwapFree:  swap.Free,
	}, nil
}

// DefaultInterface picks the busiest interface that is up, is not loopback
// and has at least one address.
func (s *SystemSource) DefaultInterface(ctx context.Context) (string, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing network interfaces: %w", err)
	}
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return "", fmt.Errorf("error getting network usage: %w", err)
	}
	return pickInterface(ifaces, counters)
}

func pickInterface(ifaces []net.InterfaceStat, counters []net.IOCountersStat) (string, error) {
	traffic := make(map[string]uint64, len(counters))
	for _, c := range counters {
		traffic[c.Name] = c.BytesRecv + c.BytesSent
	}

	best := ""
	var bestTraffic uint64
	for _, iface := range ifaces {
		if !slices.Contains(iface.Flags, "up") || slices.Contains(iface.Flags, "loopback") || len(iface.Addrs) == 0 {
			continue
		}
		if best == "" || traffic[iface.Name] > bestTraffic {
			best = iface.Name
			bestTraffic = traffic[iface.Name]
		}
	}
	if best == "" {
		return "", ErrNoInterface
	}
	return best, nil
}

func (s *SystemSource) NetworkStats(ctx context.Context, iface string) (NetworkSnapshot, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return NetworkSnapshot{}, fmt.Errorf("error getting network usage: %w", err)
	}
	idx := slices.IndexFunc(counters, func(c net.IOCountersStat) bool { return c.Name == iface })
	if idx < 0 {
		return NetworkSnapshot{}, fmt.Errorf("error getting network usage: interface %q not found", iface)
	}

	operState := unknownOperState
	if ifaces, err := net.InterfacesWithContext(ctx); err == nil {
		operState = operStateOf(ifaces, iface)
	}

	cur := netSample{rx: counters[idx].BytesRecv, tx: counters[idx].BytesSent, at: s.now()}

	s.mu.Lock()
	prev, ok := s.lastNet[iface]
	s.lastNet[iface] = cur
	s.mu.Unlock()

	snap := NetworkSnapshot{
		Iface:     iface,
		OperState: operState,
		Rx:        cur.rx,
		Tx:        cur.tx,
		RxSec:     RateUnknown,
		TxSec:     RateUnknown,
	}
	if ok {
		snap.Ms, snap.RxSec, snap.TxSec = networkRates(prev, cur)
	}
	return snap, nil
}

// networkRates returns the elapsed milliseconds and the rx/tx bytes per second
// between two readings. Counters that went backwards report a zero rate.
func networkRates(prev, cur netSample) (ms int64, rxSec, txSec float64) {
	ms = cur.at.Sub(prev.at).Milliseconds()
	if ms <= 0 {
		return ms, RateUnknown, RateUnknown
	}
	perSec := func(before, after uint64) float64 {
		if after < before {
			return 0
		}
		return float64(after-before) / float64(ms) * 1000
	}
	return ms, perSec(prev.rx, cur.rx), perSec(prev.tx, cur.tx)
}

func operStateOf(ifaces []net.InterfaceStat, name string) string {
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		if slices.Contains(iface.Flags, "up") {
			return "up"
		}
		return "down"
	}
	return unknownOperState
}
