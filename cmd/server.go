package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/jeffypooo/hoststat/internal/config"
	"github.com/jeffypooo/hoststat/internal/exporter"
	"github.com/jeffypooo/hoststat/internal/metrics"
	"github.com/jeffypooo/hoststat/internal/router"
	"github.com/jeffypooo/hoststat/internal/web"
)

func main() {
	configPath := flag.String("config", "hoststat.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(ctx, metrics.NewSystemSource(), metrics.Options{
		IntervalMs: cfg.IntervalMs,
		Logger:     e.Logger,
	})
	defer collector.Close()

	rt := router.New(router.Config{APIPath: cfg.APIPath}, collector)
	e.Use(rt.Middleware())

	if cfg.Dashboard {
		e.GET("/", func(c echo.Context) error {
			return web.Index(rt.Prefix(), int(collector.CPUMetric().Interval().Milliseconds())).Render(c.Request().Context(), c.Response().Writer)
		})
	}
	if cfg.PrometheusPath != "" {
		e.GET(cfg.PrometheusPath, echo.WrapHandler(exporter.Handler(collector, rt.Total)))
	}

	go func() {
		e.Logger.Infof("serving metrics under %s on %s", rt.Prefix(), cfg.Listen)
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Errorf("server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	e.Logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Errorf("shutdown: %v", err)
	}
}
