package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/jeffypooo/hoststat/internal/metrics"
)

type report struct {
	Host    string                  `json:"host"`
	Uptime  uint64                  `json:"uptime"`
	CPU     metrics.CpuSnapshot     `json:"cpu"`
	Network metrics.NetworkSnapshot `json:"network"`
	Memory  metrics.MemorySnapshot  `json:"memory"`
}

// Samples long enough for the warm-up reading to be discarded, then prints
// the cached readings as JSON.
func main() {
	intervalMs := flag.Int("interval", 500, "sampling interval in milliseconds")
	flag.Parse()

	logger := log.New("hoststat-cli")
	logger.SetLevel(log.WARN)

	ctx := context.Background()
	collector := metrics.NewCollector(ctx, metrics.NewSystemSource(), metrics.Options{
		IntervalMs: *intervalMs,
		Logger:     logger,
	})
	defer collector.Close()

	time.Sleep(collector.CPUMetric().Interval()*2 + collector.CPUMetric().Interval()/2)

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		log.Fatalf("Error getting host info: %v", err)
	}

	cpu := collector.CPU()
	if cpu.Err != nil {
		log.Fatalf("Error getting CPU load: %v", cpu.Err)
	}
	network := collector.Network()
	if network.Err != nil {
		log.Fatalf("Error getting network usage: %v", network.Err)
	}
	memory, err := collector.Memory(ctx)
	if err != nil {
		log.Fatalf("Error getting memory usage: %v", err)
	}

	out, err := json.MarshalIndent(report{
		Host:    fmt.Sprintf("%s (%s %s)", info.Hostname, info.Platform, info.PlatformVersion),
		Uptime:  info.Uptime,
		CPU:     cpu.Value,
		Network: network.Value,
		Memory:  memory,
	}, "", " ")
	if err != nil {
		log.Fatalf("Error marshalling metrics: %v", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
}
