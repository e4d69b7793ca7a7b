package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

// MemoryStorage is an ObjectStorage held in process memory.
// Tests use it in place of a bucket.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	baseURL string
}

// NewMemoryStorage returns an empty store whose URLs start with baseURL.
func NewMemoryStorage(baseURL string) *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]memoryObject),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (m *MemoryStorage) Put(ctx context.Context, obj Object) error {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return fmt.Errorf("read object %s: %w", obj.Key, err)
	}
	meta := make(map[string]string, len(obj.Metadata))
	for k, v := range obj.Metadata {
		meta[k] = v
	}
	m.mu.Lock()
	m.objects[obj.Key] = memoryObject{data: data, contentType: obj.ContentType, metadata: meta}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (m *MemoryStorage) URL(key string) string {
	return m.baseURL + "/" + key
}

// Metadata returns what was stored with key, or nil.
func (m *MemoryStorage) Metadata(key string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].metadata
}

// Keys lists stored keys in no particular order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
