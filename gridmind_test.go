package gridmind

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/agent"
	"github.com/gridmind/gridmind/backend/scripted"
	"github.com/gridmind/gridmind/behavior"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/goal"
	"github.com/gridmind/gridmind/protocol"
)

const step = 50 * time.Millisecond

type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (r *recorder) handle(m protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) rootReport() (protocol.Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if rep, ok := m.(protocol.Report); ok && rep.SubTaskID == "" {
			return rep, true
		}
	}
	return protocol.Report{}, false
}

func newTestMind(t *testing.T, backend core.ReasoningBackend) *Mind {
	t.Helper()
	m, err := New(func(o *Options) {
		o.Backend = backend
		o.WorldWidth = 16
		o.WorldHeight = 16
		o.MachineOptions = []behavior.Option{behavior.WithMoveInterval(step)}
		o.AgentOptions = []agent.Option{agent.WithCheckInterval(step)}
		o.ControllerOptions = []goal.Option{
			goal.WithTickIntervals(step, step, step),
			goal.WithEvaluateEvery(1),
		}
	})
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestNewRequiresBackend(t *testing.T) {
	_, err := New()
	require.Error(t, err)
}

func TestSubmitRunsTaskEndToEnd(t *testing.T) {
	backend := scripted.New(
		scripted.WithRule("Decompose the following task",
			`{"subtasks":[{"id":"s1","description":"walk east","actions":[{"kind":"travel_to","x":4,"y":1}]}]}`),
		scripted.WithRule("lessons worth remembering",
			`{"lessons":["walking east works"]}`),
	)
	m := newTestMind(t, backend)

	_, err := m.AddAgent("alice", core.Position{X: 1, Y: 1})
	require.NoError(t, err)

	rec := &recorder{}
	m.Router().Register("user", rec.handle)

	ctx := context.Background()
	_, err = m.Submit(ctx, "alice", "walk to the east wall", "user")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		m.TickAll(ctx, step)
		rep, ok := rec.rootReport()
		return ok && rep.Success
	}, 5*time.Second, 2*time.Millisecond)

	pos, ok := m.Grid().EntityPosition("alice")
	require.True(t, ok)
	assert.Equal(t, core.Position{X: 4, Y: 1}, pos)
}

func TestSubmitUnknownAgent(t *testing.T) {
	m := newTestMind(t, scripted.New())
	_, err := m.Submit(context.Background(), "ghost", "anything", "user")
	require.Error(t, err)
}

func TestGoalPursuitTracksResources(t *testing.T) {
	backend := scripted.New(
		scripted.WithRule("Score progress",
			`{"score":0.99,"summary":"done","should_escalate":false,"gap":""}`),
	)
	m := newTestMind(t, backend)

	_, err := m.AddAgent("alice", core.Position{X: 1, Y: 1})
	require.NoError(t, err)

	g := core.NewGoal("g1", "stand very still", 3, core.DifficultySimple)
	require.NoError(t, m.PursueGoal("alice", g))

	ctx := context.Background()
	require.Eventually(t, func() bool {
		m.TickAll(ctx, step)
		return !g.Active()
	}, 5*time.Second, 2*time.Millisecond)

	assert.Equal(t, core.GoalCompleted, g.Status)
	snap, err := m.ResourceSnapshot("alice")
	require.NoError(t, err)
	assert.Greater(t, snap.Tokens, 0)
	assert.Greater(t, snap.Ticks, 0)
}

func TestEpisodeResetClearsFlags(t *testing.T) {
	m := newTestMind(t, scripted.New())
	m.Flags().Set("gate_open")
	require.True(t, m.Flags().Has("gate_open"))

	m.ResetEpisode()
	assert.False(t, m.Flags().Has("gate_open"))
}
