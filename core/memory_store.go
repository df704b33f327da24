package core

import "time"

// Memory is one append-only memory entry recorded for an agent.
type Memory struct {
	Text       string    `json:"text"`
	Kind       string    `json:"kind"` // observation, lesson, plan, ...
	Importance float64   `json:"importance"`
	Timestamp  time.Time `json:"timestamp"`
}

// MemoryStore defines append + retrieval for per-agent memories.
// Implementations can back Search with embeddings, keywords or any heuristic;
// they are assumed to serialize their own per-agent writes.
type MemoryStore interface {
	Append(agentID string, m Memory) error
	Search(agentID, query string, limit int) ([]Memory, error)
}
