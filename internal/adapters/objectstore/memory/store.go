// Package memory provee un object store en memoria para desarrollo y tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"breast-screening-service/internal/ports/objectstore"
)

type Store struct {
	mu         sync.RWMutex
	objects    map[string][]byte
	publicBase string
}

func NewStore(publicBase string) *Store {
	return &Store{
		objects:    make(map[string][]byte),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

func (s *Store) Upload(ctx context.Context, path string, data []byte, opts objectstore.UploadOptions) error {
	if path == "" {
		return fmt.Errorf("empty object path")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[path]; exists && !opts.Overwrite {
		return fmt.Errorf("object already exists: %s", path)
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	s.objects[path] = cp
	return nil
}

func (s *Store) Download(ctx context.Context, path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[path]
	if !ok {
		return nil, objectstore.ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (s *Store) PublicURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if s.publicBase == "" {
		return path
	}
	return s.publicBase + "/" + strings.TrimLeft(path, "/")
}

// Len es un helper de tests.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
