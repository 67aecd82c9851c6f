package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dashboard/internal/api"
	"dashboard/internal/config"
	"dashboard/internal/engine"
	"dashboard/internal/logger"
	"dashboard/internal/metrics"
	"dashboard/internal/source"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var (
	// Set by LDFLAGS
	version = "dev"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; real environment variables still apply.
	_ = godotenv.Load()

	cfg, err := config.Parse(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	log := logger.New(os.Stdout, cfg.Verbose)
	metrics.BuildInfo.WithLabelValues(version).Set(1)

	reader, err := source.Open(cfg.Source)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Initialize Echo (starts instantly)
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				log.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			log.Debug("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	// 2. Handler without data: dataset routes answer 503 until the load finishes
	clock := clockwork.NewRealClock()
	h := api.NewHandler(api.Config{
		Logger:     log,
		SessionTTL: cfg.SessionTTL,
		Clock:      clock,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	})
	h.RegisterRoutes(e)

	// Server and load failures both end run with an error.
	errCh := make(chan error, 2)

	// 3. Load the dataset in the background
	go func() {
		if err := load(ctx, log, reader, h, cfg.Source.Kind); err != nil {
			errCh <- fmt.Errorf("dataset load failed: %w", err)
		}
	}()

	go sweep(ctx, log, clock, h, cfg.SweepInterval)

	// 4. Start the server immediately
	go func() {
		log.Info("server listening (dataset loading in background)", "address", cfg.ListenAddr)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	runErr := wait(ctx, errCh)
	if runErr != nil {
		log.Error("shutting down", "error", runErr)
	} else {
		log.Info("shutting down")
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// wait blocks until a background task fails or ctx is done. A signal is a
// clean exit.
func wait(ctx context.Context, errCh <-chan error) error {
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return nil
	}
}

func load(ctx context.Context, log *slog.Logger, reader source.Reader, h *api.Handler, kind source.Kind) error {
	log.Info("loading dataset", "source", kind)
	t0 := time.Now()

	raw, err := reader.Read(ctx)
	if err != nil {
		return err
	}
	store, err := engine.Load(raw)
	if err != nil {
		return err
	}
	metrics.RowsLoaded.Set(float64(store.Len()))
	metrics.RowsDropped.Set(float64(store.Dropped()))

	if err := h.SetData(store); err != nil {
		return err
	}
	log.Info("dataset loaded, API is fully ready", "rows", store.Len(), "dropped", store.Dropped(), "duration", time.Since(t0))
	return nil
}

func sweep(ctx context.Context, log *slog.Logger, clock clockwork.Clock, h *api.Handler, every time.Duration) {
	ticker := clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := h.Sweep(); n > 0 {
				log.Debug("session sweep", "expired", n)
			}
		}
	}
}
