package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MemoryStorage keeps uploads in process memory. It backs development setups
// without a bucket and the tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	files   map[string][]byte
	baseURL string
}

// NewMemoryStorage creates an in-memory storage serving URLs under baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		files:   make(map[string][]byte),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload reads the file into memory.
func (s *MemoryStorage) Upload(_ context.Context, input *UploadInput) (*UploadResult, error) {
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	s.mu.Lock()
	s.files[input.Key] = data
	s.mu.Unlock()

	return &UploadResult{
		Key: input.Key,
		URL: fmt.Sprintf("%s/media/%s", s.baseURL, input.Key),
	}, nil
}

// Delete removes a file from memory.
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[key]; !exists {
		return fmt.Errorf("file not found: %s", key)
	}
	delete(s.files, key)
	return nil
}

// Get returns the stored bytes for key.
func (s *MemoryStorage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[key]
	return data, ok
}

// ServeHTTP serves stored files under /media/{key}, matching the URLs
// returned by Upload.
func (s *MemoryStorage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, ok := s.Get(strings.TrimPrefix(r.URL.Path, "/media/"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	_, _ = w.Write(data)
}
