// Package storagetest provides an in-memory ObjectStore for tests.
package storagetest

import (
	"context"
	"errors"
	"io"
	"sync"

	"openstream/storage"
)

// Memory is an in-memory storage.ObjectStore. Set FailBucket to make Put
// fail for one bucket.
type Memory struct {
	mu         sync.Mutex
	objects    map[string][]byte
	FailBucket string
}

var _ storage.ObjectStore = (*Memory)(nil)

// ErrInjected is returned for writes to FailBucket.
var ErrInjected = errors.New("injected storage failure")

func New() *Memory { return &Memory{objects: map[string][]byte{}} }

func (m *Memory) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	if bucket == m.FailBucket {
		return ErrInjected
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = b
	return nil
}

func (m *Memory) Remove(ctx context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, bucket+"/"+key)
	return nil
}

func (m *Memory) PublicURL(bucket, key string) string {
	return storage.PublicURL("https://cdn.test", bucket, key)
}

// Has reports whether bucket/key is stored.
func (m *Memory) Has(bucket, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[bucket+"/"+key]
	return ok
}

// Count returns the number of objects in bucket.
func (m *Memory) Count(bucket string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	prefix := bucket + "/"
	for k := range m.objects {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}
