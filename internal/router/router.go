package router

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/jeffypooo/hoststat/internal/metrics"
)

const DefaultAPIPath = "/metrics"

// Source is what the router reads from. CPU and Network must return cached
// values; Memory may hit the OS.
type Source interface {
	CPU() metrics.Reading[metrics.CpuSnapshot]
	Network() metrics.Reading[metrics.NetworkSnapshot]
	Memory(ctx context.Context) (metrics.MemorySnapshot, error)
}

type Config struct {
	APIPath string
}

// Router serves cached host metrics under a path prefix and counts traffic
// it does not serve.
type Router struct {
	prefix   string
	source   Source
	requests atomic.Int64
}

func New(cfg Config, source Source) *Router {
	return &Router{
		prefix: NormalizePrefix(cfg.APIPath),
		source: source,
	}
}

// NormalizePrefix strips trailing slashes. A prefix that is empty or blank
// afterwards becomes DefaultAPIPath.
func NormalizePrefix(p string) string {
	p = strings.TrimRight(p, "/")
	if strings.TrimSpace(p) == "" {
		return DefaultAPIPath
	}
	return p
}

func (rt *Router) Prefix() string { return rt.prefix }

// Total is the number of requests counted so far.
func (rt *Router) Total() int64 { return rt.requests.Load() }

// Handle serves r if its path is under the prefix and reports whether it
// did. Unclaimed requests have nothing written to w.
func (rt *Router) Handle(w http.ResponseWriter, r *http.Request) bool {
	path := r.URL.Path
	if path != rt.prefix && !strings.HasPrefix(path, rt.prefix+"/") {
		rt.requests.Add(1)
		return false
	}

	switch strings.TrimPrefix(path, rt.prefix) {
	case "/health":
		writeText(w, "ok")
	case "/requests/total":
		writeSuccess(w, metricBody{Metric: rt.requests.Load()})
	case "/cpu":
		cpu := rt.source.CPU()
		if cpu.Err != nil {
			writeFailure(w, cpu.Err)
			return true
		}
		writeSuccess(w, cpu.Value)
	case "/memory":
		mem, err := rt.source.Memory(r.Context())
		if err != nil {
			writeFailure(w, err)
			return true
		}
		writeSuccess(w, mem)
	case "/network":
		rt.serveNetwork(w, func(s metrics.NetworkSnapshot) any { return s })
	case "/network/rx":
		rt.serveNetwork(w, func(s metrics.NetworkSnapshot) any { return metricBody{Metric: s.Rx} })
	case "/network/tx":
		rt.serveNetwork(w, func(s metrics.NetworkSnapshot) any { return metricBody{Metric: s.Tx} })
	default:
		rt.requests.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}
	return true
}

func (rt *Router) serveNetwork(w http.ResponseWriter, view func(metrics.NetworkSnapshot) any) {
	net := rt.source.Network()
	if net.Err != nil {
		writeFailure(w, net.Err)
		return
	}
	writeSuccess(w, view(net.Value))
}

// Middleware mounts the router in an echo chain. Requests outside the
// prefix continue to next.
func (rt *Router) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if rt.Handle(c.Response(), c.Request()) {
				return nil
			}
			return next(c)
		}
	}
}
