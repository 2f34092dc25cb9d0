package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// InMemoryResultStore implements ResultStore for testing and one-shot runs.
type InMemoryResultStore struct {
	mu     sync.RWMutex
	sweeps map[string][]byte
}

// NewInMemoryResultStore creates a new in-memory store.
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{sweeps: make(map[string][]byte)}
}

// SaveSweep stores a copy of rec.
func (s *InMemoryResultStore) SaveSweep(ctx context.Context, rec *SweepRecord) (string, error) {
	if err := prepare(rec); err != nil {
		return "", fmt.Errorf("saving sweep: %w", err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sweep: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sweeps[rec.ID]; exists {
		return "", fmt.Errorf("saving sweep: id %s already exists", rec.ID)
	}
	s.sweeps[rec.ID] = data
	return rec.ID, nil
}

// GetSweep returns a copy of the sweep matching id or a unique id prefix.
func (s *InMemoryResultStore) GetSweep(ctx context.Context, id string) (*SweepRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fullID, err := s.resolveID(id)
	if err != nil {
		return nil, err
	}
	var rec SweepRecord
	if err := json.Unmarshal(s.sweeps[fullID], &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sweep: %w", err)
	}
	return &rec, nil
}

// ListSweeps returns summaries of all sweeps, newest first.
func (s *InMemoryResultStore) ListSweeps(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.sweeps))
	for id, data := range s.sweeps {
		var rec SweepRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("sweep %s: %w", id, err)
		}
		out = append(out, summarize(&rec))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteSweep removes a sweep.
func (s *InMemoryResultStore) DeleteSweep(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fullID, err := s.resolveID(id)
	if err != nil {
		return err
	}
	delete(s.sweeps, fullID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryResultStore) Close() error {
	return nil
}

func (s *InMemoryResultStore) resolveID(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrNotFound)
	}
	if _, ok := s.sweeps[id]; ok {
		return id, nil
	}
	var match string
	for candidate := range s.sweeps {
		if !strings.HasPrefix(candidate, id) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
		}
		match = candidate
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return match, nil
}
