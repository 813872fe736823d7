package blob

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-faster/errors"
)

// LocalStore is the dev fallback used when no MinIO endpoint is configured.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.Clean(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound.WithMessage("file %s does not exist", key)
		}
		return nil, errors.Wrapf(err, "failed to read file %s", key)
	}
	return data, nil
}

// MemoryStore holds objects in memory. Test helper.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
}

func (s *MemoryStore) Read(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, ErrNotFound.WithMessage("object %s does not exist", key)
	}
	return data, nil
}
