package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/kirillkom/neurovision/internal/core/domain"
)

const defaultContentType = "application/octet-stream"

// Store hands out data URIs and tracks which handles are still live, so a
// handle can only be released once.
type Store struct {
	mu   sync.Mutex
	live map[string]struct{}
}

func New() *Store {
	return &Store{live: make(map[string]struct{})}
}

func (s *Store) Acquire(_ context.Context, image domain.SelectedImage) (domain.PreviewHandle, error) {
	contentType := strings.TrimSpace(image.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	id := uuid.NewString()
	uri := "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(image.Data)

	s.mu.Lock()
	s.live[id] = struct{}{}
	s.mu.Unlock()
	return domain.PreviewHandle{ID: id, URI: uri}, nil
}

func (s *Store) Release(_ context.Context, handle domain.PreviewHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live[handle.ID]; !ok {
		return fmt.Errorf("%w: preview %q is not live", domain.ErrInvalidInput, handle.ID)
	}
	delete(s.live, handle.ID)
	return nil
}

// Live returns the number of unreleased handles.
func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
