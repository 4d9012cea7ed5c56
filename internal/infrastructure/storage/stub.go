package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
)

// StubImageStore keeps screenshots in memory and hands out placeholder URLs.
// Selected by storage.provider = "memory" for local development.
type StubImageStore struct {
	// BaseURL prefixes every returned URL
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

// NewStubImageStore creates a new StubImageStore
func NewStubImageStore() *StubImageStore {
	return &StubImageStore{
		BaseURL: "https://storage.example.com",
		objects: make(map[string][]byte),
	}
}

// Ensure StubImageStore implements ImageStore
var _ reviewapp.ImageStore = (*StubImageStore)(nil)

// Put records the image under owner/n.ext and returns its placeholder URL
func (s *StubImageStore) Put(ctx context.Context, ownerID uuid.UUID, img reviewapp.ImageUpload) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("image data is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s/%d%s", ownerID, len(s.objects)+1, imageExtension(img))
	s.objects[key] = append([]byte(nil), img.Data...)
	return s.BaseURL + "/" + key, nil
}

// Get returns the bytes stored under key
func (s *StubImageStore) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len returns the number of stored images
func (s *StubImageStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
