package goal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/behavior"
	"github.com/gridmind/gridmind/condition"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/schedule"
	"github.com/gridmind/gridmind/world"
)

const tick = 10 * time.Millisecond

type stubStrategist struct {
	evals     []core.GoalEvaluation
	next      []core.Action
	deep      []core.Action
	nextErr   error
	deepErr   error
	nextCalls int
	deepCalls int
	evalCalls int
}

func (s *stubStrategist) NextActions(ctx context.Context, g *core.Goal, observation string) ([]core.Action, error) {
	s.nextCalls++
	return s.next, s.nextErr
}

func (s *stubStrategist) DeepPlan(ctx context.Context, g *core.Goal, gap string) ([]core.Action, error) {
	s.deepCalls++
	return s.deep, s.deepErr
}

func (s *stubStrategist) EvaluateProgress(ctx context.Context, g *core.Goal) (core.GoalEvaluation, error) {
	idx := s.evalCalls
	s.evalCalls++
	if idx >= len(s.evals) {
		idx = len(s.evals) - 1
	}
	return s.evals[idx], nil
}

func newController(t *testing.T, s Strategist, optFns ...Option) (*Controller, *behavior.Machine) {
	t.Helper()
	grid := world.NewGrid(10, 10)
	require.NoError(t, grid.Place("hero", core.Position{X: 1, Y: 1}))
	eval := condition.NewEvaluator(grid, condition.NewFlags())
	machine := behavior.NewMachine("hero", grid, grid, grid, eval,
		behavior.WithMoveInterval(tick))

	optFns = append([]Option{
		WithTickIntervals(tick, tick, tick),
		WithEvaluateEvery(1),
	}, optFns...)
	return NewController("hero", s, machine, optFns...), machine
}

func evalScores(scores []float64, escalate bool) []core.GoalEvaluation {
	out := make([]core.GoalEvaluation, len(scores))
	for i, sc := range scores {
		out[i] = core.GoalEvaluation{Score: sc, ShouldEscalate: escalate, GapAnalysis: "gap"}
	}
	return out
}

func TestHighScoreCompletesGoal(t *testing.T) {
	s := &stubStrategist{evals: evalScores([]float64{0.96}, false)}
	c, _ := newController(t, s)
	g := core.NewGoal("g1", "finish it", 3, core.DifficultySimple)
	c.SetGoal(g)

	c.Tick(context.Background(), tick)

	assert.Equal(t, core.GoalCompleted, g.Status)
	assert.Equal(t, 0, s.deepCalls)
	assert.Equal(t, 1, g.Ledger.Ticks)
}

func TestDiminishingReturnsEscalatesWithoutSignal(t *testing.T) {
	s := &stubStrategist{
		evals: evalScores([]float64{0.40, 0.42, 0.39}, false),
		deep:  []core.Action{core.MoveAction{DX: 1}},
	}
	c, machine := newController(t, s)
	c.SetGoal(core.NewGoal("g1", "stalled goal", 3, core.DifficultyModerate))

	c.Tick(context.Background(), tick)
	c.Tick(context.Background(), tick)
	assert.Equal(t, 0, s.deepCalls, "window not full yet")

	c.Tick(context.Background(), tick)
	assert.Equal(t, 1, s.deepCalls, "flat score window must trigger escalation")
	assert.True(t, machine.Busy(), "productive escalation hands actions to the machine")
}

func TestExplicitSignalEscalates(t *testing.T) {
	s := &stubStrategist{
		evals: evalScores([]float64{0.2}, true),
		deep:  []core.Action{core.MoveAction{DX: 1}},
	}
	c, _ := newController(t, s)
	c.SetGoal(core.NewGoal("g1", "hard goal", 3, core.DifficultyModerate))

	c.Tick(context.Background(), tick)

	assert.Equal(t, 1, s.deepCalls)
	assert.Equal(t, 1, c.Goal().Ledger.Escalations)
}

func TestExhaustedBudgetAbandonsWhenNotImproving(t *testing.T) {
	s := &stubStrategist{
		evals:   evalScores([]float64{0.1, 0.1, 0.1}, true),
		deepErr: assert.AnError,
	}
	c, _ := newController(t, s)
	g := core.NewGoal("g1", "hopeless goal", 3, core.DifficultyTrivial)
	c.SetGoal(g)

	// Trivial allows one unproductive escalation; the second exhausts it
	// and flat progress leaves no exception.
	c.Tick(context.Background(), tick)
	assert.Equal(t, core.GoalActive, g.Status)
	c.Tick(context.Background(), tick)

	assert.Equal(t, core.GoalAbandoned, g.Status)
	assert.Equal(t, 2, s.deepCalls)
	assert.Equal(t, 2, g.Ledger.Escalations)
}

func TestExhaustedBudgetUpgradesDifficultyWhenImproving(t *testing.T) {
	s := &stubStrategist{
		evals:   evalScores([]float64{0.1, 0.2, 0.3}, true),
		deepErr: assert.AnError,
	}
	c, _ := newController(t, s)
	g := core.NewGoal("g1", "slow goal", 3, core.DifficultyTrivial)
	c.SetGoal(g)

	c.Tick(context.Background(), tick)
	c.Tick(context.Background(), tick)

	assert.Equal(t, core.GoalActive, g.Status)
	assert.Equal(t, core.DifficultySimple, g.Difficulty)
}

func TestRunwayGrantedOnceAtMaxDifficulty(t *testing.T) {
	s := &stubStrategist{
		evals:   evalScores([]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8, 0.85}, true),
		deepErr: assert.AnError,
	}
	c, _ := newController(t, s)
	g := core.NewGoal("g1", "long goal", 3, core.DifficultyComplex)
	c.SetGoal(g)

	// Complex allows four unproductive escalations; the fifth exhausts
	// the budget while improving at max difficulty, granting the runway.
	for i := 0; i < 5; i++ {
		c.Tick(context.Background(), tick)
	}
	assert.Equal(t, core.GoalActive, g.Status)

	// The runway is one-time: the next exhaustion abandons.
	for i := 0; i < 5; i++ {
		c.Tick(context.Background(), tick)
	}
	assert.Equal(t, core.GoalAbandoned, g.Status)
}

func TestRoutineTickRequestsActions(t *testing.T) {
	s := &stubStrategist{next: []core.Action{core.WaitAction{Duration: time.Hour}}}
	c, machine := newController(t, s, WithEvaluateEvery(100))
	c.SetGoal(core.NewGoal("g1", "busy goal", 3, core.DifficultySimple))

	c.Tick(context.Background(), tick)
	require.Equal(t, 1, s.nextCalls)
	assert.True(t, machine.Busy())

	// A busy machine suppresses further action requests.
	c.Tick(context.Background(), tick)
	assert.Equal(t, 1, s.nextCalls)
}

func TestTickIntervalScalesWithPriority(t *testing.T) {
	low := &stubStrategist{evals: evalScores([]float64{0.1}, false)}
	c, _ := newController(t, low, WithTickIntervals(10*time.Millisecond, 100*time.Millisecond, time.Second))
	c.SetGoal(core.NewGoal("g1", "low priority", 1, core.DifficultySimple))

	c.Tick(context.Background(), 50*time.Millisecond)
	assert.Equal(t, 0, low.evalCalls, "priority 1 ticks every 100ms")

	high := &stubStrategist{evals: evalScores([]float64{0.1}, false)}
	c2, _ := newController(t, high, WithTickIntervals(10*time.Millisecond, 100*time.Millisecond, time.Second))
	c2.SetGoal(core.NewGoal("g2", "high priority", 10, core.DifficultySimple))

	c2.Tick(context.Background(), 50*time.Millisecond)
	assert.Equal(t, 5, high.evalCalls, "priority 10 floors at the minimum interval")
}

type cannedBackend struct {
	text string
}

func (b *cannedBackend) Complete(ctx context.Context, req core.BackendRequest) (*core.BackendResponse, error) {
	return &core.BackendResponse{
		Text:  b.text,
		Usage: core.TokenUsage{TotalTokens: 42},
	}, nil
}

func TestBackendStrategistChargesLedger(t *testing.T) {
	sched := schedule.New(&cannedBackend{
		text: `{"score":0.5,"summary":"half way","should_escalate":true,"gap":"missing key"}`,
	})
	defer sched.Stop()

	strategist := NewBackendStrategist(sched, "hero", 0.001)
	g := core.NewGoal("g1", "test goal", 3, core.DifficultySimple)

	eval, err := strategist.EvaluateProgress(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0.5, eval.Score)
	assert.True(t, eval.ShouldEscalate)
	assert.Equal(t, "missing key", eval.GapAnalysis)

	snap := g.Ledger.Snapshot()
	assert.Equal(t, 42, snap.Tokens)
	assert.Equal(t, 1, snap.Calls)
	assert.InDelta(t, 0.042, snap.Cost, 1e-9)
	assert.Equal(t, 1, g.Ledger.CallsByTier[TierEvaluate])
}
