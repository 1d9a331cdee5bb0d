package localfs

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

func TestAcquireWritesPreviewFile(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	handle, err := store.Acquire(context.Background(), domain.SelectedImage{Filename: "brain scan 1.png", Data: []byte("pixels")})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if !strings.HasSuffix(handle.ID, "_brain_scan_1.png") {
		t.Fatalf("expected sanitized id suffix, got %s", handle.ID)
	}

	parsed, err := url.Parse(handle.URI)
	if err != nil || parsed.Scheme != "file" {
		t.Fatalf("expected file URI, got %q (%v)", handle.URI, err)
	}
	raw, err := os.ReadFile(filepath.FromSlash(parsed.Path))
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if string(raw) != "pixels" {
		t.Fatalf("unexpected preview content %q", raw)
	}
}

func TestReleaseRemovesFileOnce(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	handle, _ := store.Acquire(context.Background(), domain.SelectedImage{Filename: "a.png", Data: []byte("x")})

	if err := store.Release(context.Background(), handle); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, handle.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected preview file removed, stat err = %v", err)
	}
	if err := store.Release(context.Background(), handle); err == nil {
		t.Fatalf("expected error on double release")
	}
}

func TestReleaseRejectsPathTraversal(t *testing.T) {
	store, _ := New(t.TempDir())
	err := store.Release(context.Background(), domain.PreviewHandle{ID: "../outside.png"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"":               "preview.bin",
		"../../etc/pwd":  "pwd",
		"IRM crâne.jpg":  "IRM_cr_ne.jpg",
		"scan-01_v2.PNG": "scan-01_v2.PNG",
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Fatalf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
