package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/kirillkom/neurovision/internal/config"
	"github.com/kirillkom/neurovision/internal/core/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		InferenceURL:            "http://127.0.0.1:1/api/predict",
		InferenceTimeoutSeconds: 1,
		HighConfidenceThreshold: 0.8,
		PreviewStore:            "localfs",
		PreviewDir:              filepath.Join(t.TempDir(), "previews"),
		BreakerEnabled:          true,
		UploadMaxBytes:          1024,
	}
}

func TestNewWiresSessionWithLocalPreviews(t *testing.T) {
	cfg := testConfig(t)
	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close(context.Background())

	imagePath := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\nrest"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	image, err := app.LoadImage(imagePath)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}
	if err := app.Session.SelectFile(context.Background(), image); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}

	snap := app.Session.Snapshot()
	if snap.State != domain.StateFileSelected || !snap.HasPreview {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	entries, err := os.ReadDir(cfg.PreviewDir)
	if err != nil {
		t.Fatalf("read preview dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one preview file, got %d", len(entries))
	}

	app.Session.Reset(context.Background())
	entries, err = os.ReadDir(cfg.PreviewDir)
	if err != nil {
		t.Fatalf("read preview dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected preview file to be released, got %d", len(entries))
	}
}

func TestNewRejectsUnknownPreviewStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.PreviewStore = "s3"
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for unknown preview store")
	}
}

func TestLoadImageEnforcesLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.PreviewStore = "memory"
	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close(context.Background())

	imagePath := filepath.Join(t.TempDir(), "big.png")
	if err := os.WriteFile(imagePath, make([]byte, 2048), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if _, err := app.LoadImage(imagePath); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized image, got %v", err)
	}
}

func TestBreakerConfigFromSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.BreakerEnabled = false
	cfg.BreakerMinRequests = 3
	cfg.BreakerFailureRatio = 0.5
	cfg.BreakerOpenTimeoutSeconds = 9

	out := breakerConfig(cfg)
	if out.BreakerEnabled || out.BreakerMinRequests != 3 || out.BreakerFailureRatio != 0.5 || out.BreakerOpenTimeout.Seconds() != 9 {
		t.Fatalf("unexpected breaker config %+v", out)
	}
}

func TestDefaultConfigSendsOneRequestPerSubmission(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	for _, key := range []string{
		config.FileEnvKey,
		"INFERENCE_TIMEOUT_SECONDS",
		"SUBMIT_DELAY_MS",
		"PREVIEW_STORE",
		"NATS_URL",
		"BREAKER_ENABLED",
		"BREAKER_MIN_REQUESTS",
		"BREAKER_FAILURE_RATIO",
		"BREAKER_OPEN_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("INFERENCE_URL", server.URL)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	app, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close(context.Background())

	imagePath := filepath.Join(t.TempDir(), "scan.png")
	if err := os.WriteFile(imagePath, []byte("\x89PNG\r\n\x1a\nrest"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	image, err := app.LoadImage(imagePath)
	if err != nil {
		t.Fatalf("LoadImage() error = %v", err)
	}

	const submissions = 8
	for i := 1; i <= submissions; i++ {
		ctx := context.Background()
		if err := app.Session.SelectFile(ctx, image); err != nil {
			t.Fatalf("submission %d: SelectFile() error = %v", i, err)
		}
		if !app.Session.Submit(ctx) {
			t.Fatalf("submission %d: Submit() refused", i)
		}
		if err := app.Session.WaitSettled(ctx); err != nil {
			t.Fatalf("submission %d: WaitSettled() error = %v", i, err)
		}
		if state := app.Session.Snapshot().State; state != domain.StateFailed {
			t.Fatalf("submission %d: expected failed state, got %s", i, state)
		}
		if got := requests.Load(); got != int32(i) {
			t.Fatalf("submission %d: expected %d outbound requests, got %d", i, i, got)
		}
	}
}
