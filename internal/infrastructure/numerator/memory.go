package numerator

import (
	"context"
	"sync"
	"time"

	corenumerator "shopfloor/internal/core/numerator"
)

// Memory is a process-local Generator used with the in-memory storage.
// Numbers restart with the process.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ corenumerator.Generator = (*Memory)(nil)

// NewMemory creates an empty in-process generator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// GetNextNumber implements corenumerator.Generator.
func (m *Memory) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := BuildKey(cfg, period)

	m.mu.Lock()
	m.counters[key]++
	num := m.counters[key]
	m.mu.Unlock()

	return FormatNumber(cfg, period, num), nil
}

// SetNextNumber implements corenumerator.Generator.
func (m *Memory) SetNextNumber(_ context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	m.mu.Lock()
	m.counters[BuildKey(cfg, period)] = value
	m.mu.Unlock()
	return nil
}
