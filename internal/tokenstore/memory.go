package tokenstore

import (
	"context"
	"sync"
)

// MemoryArea lives for the lifetime of the process. It is the ephemeral area
// used when the user does not ask to be remembered.
type MemoryArea struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryArea() *MemoryArea {
	return &MemoryArea{values: map[string]string{}}
}

func (a *MemoryArea) Name() string { return "memory" }

func (a *MemoryArea) Get(_ context.Context, key string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	v, ok := a.values[key]
	return v, ok, nil
}

func (a *MemoryArea) Set(_ context.Context, key string, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if value == "" {
		delete(a.values, key)
		return nil
	}
	a.values[key] = value
	return nil
}

func (a *MemoryArea) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.values, key)
	return nil
}
