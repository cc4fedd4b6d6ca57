// Package cache keeps the latest weeks per window key.
package cache

import (
	"context"
	"sync"

	"mwb/internal"
)

// Cache stores whole week lists per key; a Set replaces the previous value.
type Cache interface {
	Get(ctx context.Context, key string) ([]internal.WeekProgram, bool, error)
	Set(ctx context.Context, key string, weeks []internal.WeekProgram) error
}

type Memory struct {
	mu    sync.RWMutex
	items map[string][]internal.WeekProgram
}

func NewMemory() *Memory {
	return &Memory{items: map[string][]internal.WeekProgram{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]internal.WeekProgram, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	weeks, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]internal.WeekProgram(nil), weeks...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, weeks []internal.WeekProgram) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = append([]internal.WeekProgram(nil), weeks...)
	return nil
}
