package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/neurovision/internal/bootstrap"
	"github.com/kirillkom/neurovision/internal/config"
	"github.com/kirillkom/neurovision/internal/core/domain"
)

func TestCloseAppDoesNotWaitForSlowInference(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer server.Close()
	defer close(release)

	app, err := bootstrap.New(context.Background(), config.Config{
		InferenceURL:            server.URL,
		InferenceTimeoutSeconds: 30,
		HighConfidenceThreshold: 0.8,
		PreviewStore:            "memory",
		UploadMaxBytes:          1024,
	}, nil)
	if err != nil {
		t.Fatalf("bootstrap.New() error = %v", err)
	}

	image := domain.SelectedImage{Filename: "scan.png", ContentType: "image/png", Data: []byte("png")}
	if err := app.Session.SelectFile(context.Background(), image); err != nil {
		t.Fatalf("SelectFile() error = %v", err)
	}
	if !app.Session.Submit(context.Background()) {
		t.Fatalf("Submit() refused")
	}

	start := time.Now()
	closeApp(app, 50*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("closeApp blocked for %s", elapsed)
	}
	if state := app.Session.Snapshot().State; state != domain.StateIdle {
		t.Fatalf("expected idle session after close, got %s", state)
	}
}

func TestWithoutImagesMarksOmittedPreview(t *testing.T) {
	snap := domain.Snapshot{
		State:         domain.StateSucceeded,
		HasPreview:    true,
		PreviewHandle: "data:image/png;base64,AAAA",
		Result: &domain.PredictionResult{
			TumorClass:     "glioma",
			Confidence:     0.93,
			AnnotatedImage: "data:image/jpeg;base64,BBBB",
		},
	}

	out := withoutImages(snap)
	if out.PreviewHandle != "" || out.Result.AnnotatedImage != "" {
		t.Fatalf("expected image payloads stripped, got %+v", out)
	}
	if !out.HasPreview || !out.PreviewOmitted {
		t.Fatalf("expected preview marked as omitted, got %+v", out)
	}
	if snap.Result.AnnotatedImage == "" {
		t.Fatalf("original snapshot must keep its annotated image")
	}

	if idle := withoutImages(domain.Snapshot{State: domain.StateIdle}); idle.PreviewOmitted {
		t.Fatalf("idle snapshot has no preview to omit")
	}
}
