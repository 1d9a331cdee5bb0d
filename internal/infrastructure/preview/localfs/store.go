package localfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

// Store writes each preview to its own file and hands out a file:// URI.
// Releasing a handle removes the file.
type Store struct {
	basePath string
}

func New(basePath string) (*Store, error) {
	if basePath == "" {
		basePath = "./data/previews"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve preview dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Store{basePath: abs}, nil
}

func (s *Store) Acquire(_ context.Context, image domain.SelectedImage) (domain.PreviewHandle, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(image.Filename))
	path := filepath.Join(s.basePath, name)
	if err := os.WriteFile(path, image.Data, 0o600); err != nil {
		return domain.PreviewHandle{}, fmt.Errorf("write preview file: %w", err)
	}
	uri := &url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return domain.PreviewHandle{ID: name, URI: uri.String()}, nil
}

func (s *Store) Release(_ context.Context, handle domain.PreviewHandle) error {
	name := filepath.Base(handle.ID)
	if name == "" || name == "." || name != handle.ID {
		return fmt.Errorf("%w: preview id %q", domain.ErrInvalidInput, handle.ID)
	}
	if err := os.Remove(filepath.Join(s.basePath, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("preview %s already released: %w", name, err)
		}
		return fmt.Errorf("remove preview file: %w", err)
	}
	return nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "preview.bin"
	}
	return base
}
