package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/neurovision/internal/config"
	"github.com/kirillkom/neurovision/internal/core/domain"
	"github.com/kirillkom/neurovision/internal/core/ports"
	"github.com/kirillkom/neurovision/internal/core/usecase"
	natsevents "github.com/kirillkom/neurovision/internal/infrastructure/events/nats"
	"github.com/kirillkom/neurovision/internal/infrastructure/imagefile"
	"github.com/kirillkom/neurovision/internal/infrastructure/inference/httpapi"
	"github.com/kirillkom/neurovision/internal/infrastructure/preview/localfs"
	"github.com/kirillkom/neurovision/internal/infrastructure/preview/memory"
	"github.com/kirillkom/neurovision/internal/infrastructure/resilience"
	"github.com/kirillkom/neurovision/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Session     *usecase.DiagnosticSessionController
	HTTPMetrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(_ context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	previews, err := newPreviewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("init preview store: %w", err)
	}

	timeout := time.Duration(cfg.InferenceTimeoutSeconds) * time.Second
	inference := httpapi.NewWithOptions(cfg.InferenceURL, httpapi.Options{
		Timeout:            timeout,
		ResilienceExecutor: resilience.NewExecutor(breakerConfig(cfg)),
	})

	var publisher ports.OutcomePublisher
	closeFn := func() {}
	if cfg.NATSURL != "" {
		events, err := natsevents.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsevents.Options{
			ResilienceExecutor: resilience.NewExecutor(breakerConfig(cfg)),
		})
		if err != nil {
			return nil, fmt.Errorf("init outcome publisher: %w", err)
		}
		publisher = events
		closeFn = events.Close
	}

	httpMetrics := metrics.NewHTTPServerMetrics("neurovision")
	sessionMetrics := metrics.NewSessionMetrics("neurovision", httpMetrics.Registry())

	session := usecase.NewDiagnosticSessionController(inference, previews, usecase.SessionOptions{
		RequestTimeout:          timeout,
		SubmitDelay:             time.Duration(cfg.SubmitDelayMS) * time.Millisecond,
		HighConfidenceThreshold: cfg.HighConfidenceThreshold,
		Publisher:               publisher,
		Observer:                sessionMetrics,
		Logger:                  logger,
	})

	return &App{
		Config:      cfg,
		Session:     session,
		HTTPMetrics: httpMetrics,
		closeFn:     closeFn,
	}, nil
}

// LoadImage reads a local file with the configured size limit.
func (a *App) LoadImage(path string) (domain.SelectedImage, error) {
	return imagefile.Load(path, a.Config.UploadMaxBytes)
}

// Close releases the session preview, waits for in-flight requests and
// closes outbound connections.
func (a *App) Close(ctx context.Context) {
	if err := a.Session.Close(ctx); err != nil {
		slog.Warn("session_close_incomplete", "error", err)
	}
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newPreviewStore(cfg config.Config) (ports.PreviewStore, error) {
	switch cfg.PreviewStore {
	case "", "memory":
		return memory.New(), nil
	case "localfs":
		store, err := localfs.New(cfg.PreviewDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown preview store %q", cfg.PreviewStore)
	}
}

func breakerConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.BreakerEnabled = cfg.BreakerEnabled
	if cfg.BreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	if cfg.BreakerFailureRatio > 0 {
		out.BreakerFailureRatio = cfg.BreakerFailureRatio
	}
	if cfg.BreakerOpenTimeoutSeconds > 0 {
		out.BreakerOpenTimeout = time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second
	}
	return out
}
