package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jeffypooo/hoststat/internal/metrics"
)

type fakeSource struct {
	cpu      metrics.Reading[metrics.CpuSnapshot]
	network  metrics.Reading[metrics.NetworkSnapshot]
	memErr   error
	memCalls atomic.Int64
}

func (f *fakeSource) CPU() metrics.Reading[metrics.CpuSnapshot] { return f.cpu }

func (f *fakeSource) Network() metrics.Reading[metrics.NetworkSnapshot] { return f.network }

func (f *fakeSource) Memory(context.Context) (metrics.MemorySnapshot, error) {
	n := f.memCalls.Add(1)
	if f.memErr != nil {
		return metrics.MemorySnapshot{}, f.memErr
	}
	return metrics.MemorySnapshot{DateCaptured: 1700000000 + n, Total: 2048}, nil
}

func healthySource() *fakeSource {
	return &fakeSource{
		cpu: metrics.Reading[metrics.CpuSnapshot]{Value: metrics.CpuSnapshot{DateCaptured: 1700000000, CurrentLoad: 12.5, Cpus: []metrics.CpuCoreLoad{}}},
		network: metrics.Reading[metrics.NetworkSnapshot]{Value: metrics.NetworkSnapshot{
			DateCaptured: 1700000000, Iface: "eth0", OperState: "up", Rx: 1234, Tx: 567, RxSec: 10, TxSec: 5, Ms: 1000,
		}},
	}
}

func serve(rt *Router, path string) (*httptest.ResponseRecorder, bool) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	claimed := rt.Handle(rec, req)
	return rec, claimed
}

func TestRouter_Routes(t *testing.T) {
	rt := New(Config{}, healthySource())

	tests := []struct {
		path        string
		status      int
		contentType string
		body        string
	}{
		{"/metrics/health", http.StatusOK, "text/plain; charset=utf-8", "ok"},
		{"/metrics/requests/total", http.StatusOK, "application/json", `{"metric":0}`},
		{"/metrics/network/rx", http.StatusOK, "application/json", `{"metric":1234}`},
		{"/metrics/network/tx", http.StatusOK, "application/json", `{"metric":567}`},
		{"/metrics/network", http.StatusOK, "application/json", `{"dateCaptured":1700000000,"iface":"eth0","operstate":"up","rx":1234,"tx":567,"rx_sec":10,"tx_sec":5,"ms":1000}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec, claimed := serve(rt, tt.path)
			if !claimed {
				t.Fatal("request not claimed")
			}
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", got, tt.contentType)
			}
			if rec.Body.String() != tt.body {
				t.Errorf("body = %s, want %s", rec.Body.String(), tt.body)
			}
		})
	}
}

func TestRouter_CPU(t *testing.T) {
	rt := New(Config{}, healthySource())
	rec, _ := serve(rt, "/metrics/cpu")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got metrics.CpuSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.CurrentLoad != 12.5 || got.DateCaptured != 1700000000 {
		t.Errorf("cpu = %+v", got)
	}
}

func TestRouter_CachedErrors(t *testing.T) {
	src := healthySource()
	src.cpu.Err = &metrics.SampleFailure{Metric: "cpu", Err: errors.New("first sample failed")}
	src.network.Err = errors.New("plain failure")
	rt := New(Config{}, src)

	rec, _ := serve(rt, "/metrics/cpu")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("cpu status = %d, want 500", rec.Code)
	}
	if want := `{"error":"error sampling cpu: first sample failed","metric":"cpu"}`; rec.Body.String() != want {
		t.Errorf("cpu body = %s, want %s", rec.Body.String(), want)
	}

	for _, path := range []string{"/metrics/network", "/metrics/network/rx", "/metrics/network/tx"} {
		rec, _ := serve(rt, path)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want 500", path, rec.Code)
		}
		if want := `{"error":"plain failure"}`; rec.Body.String() != want {
			t.Errorf("%s body = %s, want %s", path, rec.Body.String(), want)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
	}
}

// rendezvousSource holds every Memory call until want calls are in flight.
type rendezvousSource struct {
	*fakeSource
	want    int64
	arrived atomic.Int64
	all     chan struct{}
}

func (s *rendezvousSource) Memory(ctx context.Context) (metrics.MemorySnapshot, error) {
	if s.arrived.Add(1) == s.want {
		close(s.all)
	}
	select {
	case <-s.all:
	case <-time.After(2 * time.Second):
		return metrics.MemorySnapshot{}, errors.New("memory calls did not overlap")
	}
	return s.fakeSource.Memory(ctx)
}

func TestRouter_MemoryFetchedPerRequest(t *testing.T) {
	src := &rendezvousSource{fakeSource: healthySource(), want: 2, all: make(chan struct{})}
	rt := New(Config{}, src)

	var wg sync.WaitGroup
	recs := make([]*httptest.ResponseRecorder, 2)
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i], _ = serve(rt, "/metrics/memory")
		}(i)
	}
	wg.Wait()

	for i, rec := range recs {
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, body = %s", i, rec.Code, rec.Body.String())
		}
	}
	if recs[0].Body.String() == recs[1].Body.String() {
		t.Errorf("concurrent memory responses identical: %s", recs[0].Body.String())
	}
	if src.memCalls.Load() != 2 {
		t.Errorf("Memory calls = %d, want 2", src.memCalls.Load())
	}
}

func TestRouter_MemoryFailure(t *testing.T) {
	src := healthySource()
	src.memErr = errors.New("meminfo unreadable")
	rt := New(Config{}, src)

	rec, _ := serve(rt, "/metrics/memory")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if want := `{"error":"meminfo unreadable"}`; rec.Body.String() != want {
		t.Errorf("body = %s, want %s", rec.Body.String(), want)
	}
}

func TestRouter_RequestCounting(t *testing.T) {
	rt := New(Config{}, healthySource())

	rec, claimed := serve(rt, "/other/path")
	if claimed {
		t.Error("request outside prefix was claimed")
	}
	if rec.Body.Len() != 0 || len(rec.Header()) != 0 {
		t.Error("response written for unclaimed request")
	}

	// Sibling paths that merely share the prefix string are not under it.
	if _, claimed := serve(rt, "/metricsfoo"); claimed {
		t.Error("/metricsfoo claimed")
	}

	rec, claimed = serve(rt, "/metrics/bogus")
	if !claimed || rec.Code != http.StatusNotFound || rec.Body.Len() != 0 {
		t.Errorf("/metrics/bogus: claimed=%v status=%d body=%q", claimed, rec.Code, rec.Body.String())
	}

	rec, _ = serve(rt, "/metrics")
	if rec.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404", rec.Code)
	}

	for _, p := range []string{"/metrics/health", "/metrics/cpu", "/metrics/memory", "/metrics/network", "/metrics/network/rx", "/metrics/network/tx"} {
		serve(rt, p)
	}

	rec, _ = serve(rt, "/metrics/requests/total")
	if want := `{"metric":4}`; rec.Body.String() != want {
		t.Errorf("total = %s, want %s", rec.Body.String(), want)
	}
	rec, _ = serve(rt, "/metrics/requests/total")
	if want := `{"metric":4}`; rec.Body.String() != want {
		t.Errorf("total after reading it = %s, want %s", rec.Body.String(), want)
	}
	if rt.Total() != 4 {
		t.Errorf("Total() = %d, want 4", rt.Total())
	}
}

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":          "/metrics",
		"   ":       "/metrics",
		"/":         "/metrics",
		"/m/":       "/m",
		"/m//":      "/m",
		"/api/stat": "/api/stat",
	}
	for in, want := range tests {
		if got := NormalizePrefix(in); got != want {
			t.Errorf("NormalizePrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRouter_CustomPrefix(t *testing.T) {
	rt := New(Config{APIPath: "/m/"}, healthySource())
	if rt.Prefix() != "/m" {
		t.Fatalf("Prefix = %q", rt.Prefix())
	}
	if rec, claimed := serve(rt, "/m/health"); !claimed || rec.Body.String() != "ok" {
		t.Errorf("/m/health: claimed=%v body=%q", claimed, rec.Body.String())
	}
	if _, claimed := serve(rt, "/metrics/health"); claimed {
		t.Error("default prefix still claimed")
	}
}

func TestRouter_Middleware(t *testing.T) {
	rt := New(Config{}, healthySource())
	e := echo.New()
	e.Use(rt.Middleware())
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "dashboard")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "dashboard" {
		t.Errorf("unclaimed request body = %q, want dashboard", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("claimed request: %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics/nope", nil))
	if rec.Code != http.StatusNotFound || strings.TrimSpace(rec.Body.String()) != "" {
		t.Errorf("unknown metric route: %d %q", rec.Code, rec.Body.String())
	}

	if rt.Total() != 2 {
		t.Errorf("Total() = %d, want 2", rt.Total())
	}
}
