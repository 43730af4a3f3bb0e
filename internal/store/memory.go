package store

import (
	"context"
	"sync"
	"time"

	"github.com/mesh-intelligence/cvalchemist/pkg/types"
)

// Memory keeps results in a process-local map. Results written by one
// worker process are invisible to the others.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
	closed  bool
}

type memoryEntry struct {
	analysis  *types.Analysis
	expiresAt time.Time
}

// NewMemory creates an empty in-process store whose entries live for ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores a copy of a and returns its new ID. Expired entries are
// swept on every write.
func (m *Memory) Put(ctx context.Context, a *types.Analysis) (string, error) {
	if a == nil {
		return "", types.ErrNilAnalysis
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return "", types.ErrStoreClosed
	}

	now := m.now()
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
		}
	}

	id := generateID()
	cp := a.Clone()
	cp.ResultID = ""
	m.entries[id] = memoryEntry{analysis: cp, expiresAt: now.Add(m.ttl)}
	return id, nil
}

// Get returns a copy of the analysis stored under id.
func (m *Memory) Get(ctx context.Context, id string) (*types.Analysis, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, types.ErrStoreClosed
	}

	e, ok := m.entries[id]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, types.ErrNotFound
	}

	out := e.analysis.Clone()
	out.ResultID = id
	return out, nil
}

// Len reports the number of entries, expired or not.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close drops all entries. Idempotent.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = make(map[string]memoryEntry)
	return nil
}

var _ types.ResultStore = (*Memory)(nil)
