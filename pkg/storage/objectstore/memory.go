package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Client used by the all-in-one pipeline and tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func memoryKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *Memory) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[memoryKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
	}
	return bytes.Clone(data), nil
}

func (m *Memory) Put(ctx context.Context, bucket, key string, reader io.Reader, size int64, opts PutOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("read object body: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("short object body: got %d bytes, want %d", len(data), size)
	}
	m.mu.Lock()
	m.objects[memoryKey(bucket, key)] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Download(ctx context.Context, bucket, key, localPath string) error {
	data, err := m.Get(ctx, bucket, key)
	if err != nil {
		return err
	}
	if err := ensureParent(localPath); err != nil {
		return err
	}
	return os.WriteFile(localPath, data, 0o644)
}

func (m *Memory) Upload(ctx context.Context, bucket, key, localPath string, opts PutOptions) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	return m.Put(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
}

func (m *Memory) Exists(ctx context.Context, bucket, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[memoryKey(bucket, key)]
	return ok, nil
}

// Keys lists the keys stored in bucket under prefix, sorted.
func (m *Memory) Keys(bucket, prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.objects {
		rest, ok := strings.CutPrefix(k, bucket+"/")
		if ok && strings.HasPrefix(rest, prefix) {
			keys = append(keys, rest)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *Memory) Close() error {
	return nil
}
