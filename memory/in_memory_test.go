package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/core"
)

func TestAppendAndSearch(t *testing.T) {
	s := NewInMemoryStore()
	now := time.Now()

	require.NoError(t, s.Append("alice", core.Memory{Text: "gathered wood near the river", Kind: "lesson", Importance: 0.4, Timestamp: now}))
	require.NoError(t, s.Append("alice", core.Memory{Text: "the river crossing floods at night", Kind: "lesson", Importance: 0.9, Timestamp: now}))
	require.NoError(t, s.Append("bob", core.Memory{Text: "rivers are wet", Kind: "observation", Importance: 0.1, Timestamp: now}))

	got, err := s.Search("alice", "river", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// higher importance first
	assert.Equal(t, "the river crossing floods at night", got[0].Text)

	// per-agent isolation
	got, err = s.Search("bob", "river", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	s := NewInMemoryStore()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append("alice", core.Memory{Text: "entry", Kind: "observation", Importance: float64(i)}))
	}

	got, err := s.Search("alice", "", 3)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, 4.0, got[0].Importance)
}

func TestSearchNoMatches(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Append("alice", core.Memory{Text: "stone", Kind: "observation"}))

	got, err := s.Search("alice", "ocean", 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.Search("nobody", "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
