// Package memblob keeps blobs in memory. It is meant for development and
// tests.
package memblob

import (
	"context"
	"strings"
	"sync"
)

type Object struct {
	Body        []byte
	ContentType string
}

type Store struct {
	mu      sync.RWMutex
	base    string
	objects map[string]Object
}

// New creates a store whose URLs start with base.
func New(base string) *Store {
	return &Store{
		base:    strings.TrimRight(base, "/"),
		objects: make(map[string]Object),
	}
}

// Put stores body under key. Existing keys are overwritten.
func (s *Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	cp := make([]byte, len(body))
	copy(cp, body)

	s.mu.Lock()
	s.objects[key] = Object{Body: cp, ContentType: contentType}
	s.mu.Unlock()

	return s.base + "/" + key, nil
}

// Get returns the object stored under key.
func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
