package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/gridmind/gridmind/core"
)

// InMemoryStore is a naive process-local core.MemoryStore. Entries are
// append-only per agent; Search scores by case-insensitive substring overlap
// weighted by importance. Suitable for tests and demos; swap for a vector
// index for production retrieval.
//
// Concurrency: protected by RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]core.Memory // agentID -> appended memories
}

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]core.Memory)}
}

// Append adds a memory entry for the agent.
func (s *InMemoryStore) Append(agentID string, m core.Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[agentID] = append(s.entries[agentID], m)
	return nil
}

// Search returns up to limit entries relevant to the query, most relevant
// first. An empty query matches everything, ranked by importance then
// recency.
func (s *InMemoryStore) Search(agentID, query string, limit int) ([]core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[agentID]
	type scored struct {
		m     core.Memory
		score float64
		idx   int
	}
	var hits []scored
	q := strings.ToLower(query)
	for i, m := range stored {
		score := m.Importance
		if q != "" {
			if !strings.Contains(strings.ToLower(m.Text), q) {
				continue
			}
			score += 1.0
		}
		hits = append(hits, scored{m: m, score: score, idx: i})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].idx > hits[j].idx // newer first on ties
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	results := make([]core.Memory, len(hits))
	for i, h := range hits {
		results[i] = h.m
	}
	return results, nil
}

// Len returns the number of entries stored for an agent.
func (s *InMemoryStore) Len(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[agentID])
}
