package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/verte-zerg/tuiquiz/internal/model"
)

// Memory is an in-memory KV intended for tests and ephemeral runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
	fail   error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string]string{}}
}

// Fail makes every later operation return err wrapped as unavailable storage.
// A nil err restores normal operation.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Dump returns a copy of every stored value.
func (m *Memory) Dump() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Get implements KV.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fail != nil {
		return "", false, m.failure("get", key)
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.failure("set", key)
	}
	m.values[key] = value
	return nil
}

// Delete implements KV.
func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.failure("delete", "")
	}
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

// Apply implements KV.
func (m *Memory) Apply(_ context.Context, b Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.failure("apply", "")
	}
	for _, key := range b.Deletes {
		delete(m.values, key)
	}
	for _, prefix := range b.DeletePrefixes {
		for key := range m.values {
			if strings.HasPrefix(key, prefix) {
				delete(m.values, key)
			}
		}
	}
	for _, e := range b.Sets {
		m.values[e.Key] = e.Value
	}
	return nil
}

func (m *Memory) failure(op, key string) error {
	if key == "" {
		return fmt.Errorf("%w: %s: %v", model.ErrStorageUnavailable, op, m.fail)
	}
	return fmt.Errorf("%w: %s %q: %v", model.ErrStorageUnavailable, op, key, m.fail)
}
