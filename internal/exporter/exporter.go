// Package exporter publishes the cached host metrics in Prometheus format.
// Scrapes read the same cells as the JSON routes and never trigger a sample.
package exporter

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeffypooo/hoststat/internal/metrics"
)

const namespace = "hoststat"

type Cells interface {
	CPU() metrics.Reading[metrics.CpuSnapshot]
	Network() metrics.Reading[metrics.NetworkSnapshot]
}

// NewRegistry registers gauges over cells and a counter over total.
func NewRegistry(cells Cells, total func() int64) *prometheus.Registry {
	reg := prometheus.NewRegistry()

	cpu := func(f func(metrics.CpuSnapshot) float64) func() float64 {
		return func() float64 { return f(cells.CPU().Value) }
	}
	network := func(f func(metrics.NetworkSnapshot) float64) func() float64 {
		return func() float64 { return f(cells.Network().Value) }
	}

	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cpu", Name: "load_percent",
			Help: "Aggregate CPU load over the last sampling interval.",
		}, cpu(func(s metrics.CpuSnapshot) float64 { return s.CurrentLoad })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cpu", Name: "avgload",
			Help: "One minute load average divided by the number of cores.",
		}, cpu(func(s metrics.CpuSnapshot) float64 { return s.AvgLoad })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "network", Name: "rx_bytes",
			Help: "Cumulative bytes received on the sampled interface.",
		}, network(func(s metrics.NetworkSnapshot) float64 { return float64(s.Rx) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "network", Name: "tx_bytes",
			Help: "Cumulative bytes sent on the sampled interface.",
		}, network(func(s metrics.NetworkSnapshot) float64 { return float64(s.Tx) })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "network", Name: "rx_bytes_per_second",
			Help: "Receive rate on the sampled interface, -1 until measurable.",
		}, network(func(s metrics.NetworkSnapshot) float64 { return s.RxSec })),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "network", Name: "tx_bytes_per_second",
			Help: "Send rate on the sampled interface, -1 until measurable.",
		}, network(func(s metrics.NetworkSnapshot) float64 { return s.TxSec })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "requests_total",
			Help: "Requests counted by the metrics router.",
		}, func() float64 { return float64(total()) }),
		newErrorCollector(cells),
	)
	return reg
}

func Handler(cells Cells, total func() int64) http.Handler {
	return promhttp.HandlerFor(NewRegistry(cells, total), promhttp.HandlerOpts{})
}

// errorCollector reports 1 for each metric family whose cell holds an error.
type errorCollector struct {
	cells Cells
	desc  *prometheus.Desc
}

func newErrorCollector(cells Cells) *errorCollector {
	return &errorCollector{
		cells: cells,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sample_error"),
			"Whether the cached reading for a metric is an error.",
			[]string{"metric"}, nil,
		),
	}
}

func (c *errorCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *errorCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, flag(c.cells.CPU().Err), "cpu")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, flag(c.cells.Network().Err), "network")
}

func flag(err error) float64 {
	if err != nil {
		return 1
	}
	return 0
}
