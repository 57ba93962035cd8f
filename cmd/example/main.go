// Command example is a small demo host application wired against the
// vigilant SDK: it loads overrides from the environment, calls Init, emits
// a handful of logs and metrics on a ticker, and shuts down cleanly on
// SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	vigilant "github.com/vigilant-run/vigilant-go"
	"github.com/vigilant-run/vigilant-go/internal/config"
)

func main() {
	printBanner()

	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("starting vigilant example", "name", cfg.Name, "endpoint", cfg.Endpoint, "noop", cfg.Noop)

	err := vigilant.Init(vigilant.UserConfig{
		Name:        cfg.Name,
		Token:       cfg.Token,
		Endpoint:    cfg.Endpoint,
		Insecure:    cfg.Insecure,
		Passthrough: vigilant.Bool(cfg.Passthrough),
		Autocapture: vigilant.Bool(cfg.Autocapture),
		Noop:        cfg.Noop,
		Attributes:  map[string]string{"deployment.environment": "example"},
	})
	if err != nil {
		slog.Error("failed to initialize vigilant", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := vigilant.Shutdown(); err != nil {
			slog.Error("vigilant shutdown reported errors", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go emitSampleTelemetry(ctx)

	<-stop
	slog.Info("shutting down vigilant example")
}

func emitSampleTelemetry(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var requestCount float64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requestCount++

			if err := vigilant.LogInfo(ctx, "handled request", map[string]string{"route": "/healthz"}); err != nil {
				slog.Error("LogInfo failed", "error", err)
			}
			if err := vigilant.Counter("requests_total", 1, map[string]string{"route": "/healthz"}); err != nil {
				slog.Error("Counter failed", "error", err)
			}
			if err := vigilant.GaugeSet("in_flight_requests", requestCount, nil); err != nil {
				slog.Error("GaugeSet failed", "error", err)
			}
			if err := vigilant.Histogram("request_latency_ms", 12.5, map[string]string{"route": "/healthz"}); err != nil {
				slog.Error("Histogram failed", "error", err)
			}
		}
	}
}

func printBanner() {
	banner := `
 __   __ _       _ _             _
 \ \ / /(_) __ _ (_) | __ _ _ __ | |_
  \ V / | |/ _` + "`" + ` || | |/ _` + "`" + ` | '_ \| __|
   | |  | | (_| || | | (_| | | | | |_
   |_|  |_|\__, ||_|_|\__,_|_| |_|\__|
            |___/

 client-side logs + metrics SDK — example host
`
	fmt.Println(banner)
}
