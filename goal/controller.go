package goal

import (
	"context"
	"time"

	"github.com/gridmind/gridmind/behavior"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/logging"
)

// Strategist produces actions and progress evaluations for a goal.
// Implementations call the reasoning backend and record spend into the
// goal's ledger; errors make the controller idle until the next tick.
type Strategist interface {
	// NextActions is the cheap per-tick decision.
	NextActions(ctx context.Context, g *core.Goal, observation string) ([]core.Action, error)

	// DeepPlan is the expensive escalated decision, fed the gap analysis
	// from the latest evaluation.
	DeepPlan(ctx context.Context, g *core.Goal, gap string) ([]core.Action, error)

	// EvaluateProgress scores progress toward the goal's success criteria.
	EvaluateProgress(ctx context.Context, g *core.Goal) (core.GoalEvaluation, error)
}

// Options configures a Controller.
type Options struct {
	// MinTickInterval floors the priority-scaled tick interval.
	MinTickInterval time.Duration

	// BaseTickInterval is divided by the goal priority to give the tick
	// interval.
	BaseTickInterval time.Duration

	// IdleTickInterval applies when no goal is active.
	IdleTickInterval time.Duration

	// EvaluateEvery is the tick cadence of progress evaluations.
	EvaluateEvery int

	// HistoryWindow is the rolling score window for diminishing-returns
	// detection.
	HistoryWindow int

	// DiminishingThreshold is the score range below which the window
	// counts as stalled.
	DiminishingThreshold float64

	// CompletionScore finalizes the goal as completed.
	CompletionScore float64

	// RunwayScore is the minimum progress for the one-time runway grant.
	RunwayScore float64

	Logger logging.Logger
}

// Option customizes controller options.
type Option func(*Options)

// WithEvaluateEvery sets the evaluation cadence in ticks.
func WithEvaluateEvery(n int) Option {
	return func(o *Options) { o.EvaluateEvery = n }
}

// WithTickIntervals sets the tick pacing.
func WithTickIntervals(min, base, idle time.Duration) Option {
	return func(o *Options) {
		o.MinTickInterval = min
		o.BaseTickInterval = base
		o.IdleTickInterval = idle
	}
}

// WithLogger sets the controller logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Controller owns one agent's active goal. It is driven by Tick from the
// host loop and mutates the goal and its ledger exclusively.
type Controller struct {
	agentID    string
	strategist Strategist
	machine    *behavior.Machine
	opts       Options
	logger     logging.Logger

	goal      *core.Goal
	accum     time.Duration
	sinceEval int

	unproductive int
	runwayUsed   bool
}

// NewController creates a controller with no active goal.
func NewController(agentID string, strategist Strategist, machine *behavior.Machine, optFns ...Option) *Controller {
	opts := Options{
		MinTickInterval:      250 * time.Millisecond,
		BaseTickInterval:     4 * time.Second,
		IdleTickInterval:     10 * time.Second,
		EvaluateEvery:        5,
		HistoryWindow:        3,
		DiminishingThreshold: 0.05,
		CompletionScore:      0.95,
		RunwayScore:          0.5,
		Logger:               logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Controller{
		agentID:    agentID,
		strategist: strategist,
		machine:    machine,
		opts:       opts,
		logger:     opts.Logger,
	}
}

// SetGoal replaces the active goal and resets escalation accounting.
func (c *Controller) SetGoal(g *core.Goal) {
	c.goal = g
	c.sinceEval = 0
	c.unproductive = 0
	c.runwayUsed = false
	c.accum = 0
}

// Goal returns the active goal, which may be nil.
func (c *Controller) Goal() *core.Goal { return c.goal }

// Snapshot returns the active goal's resource usage.
func (c *Controller) Snapshot() core.ResourceSnapshot {
	if c.goal == nil {
		return core.ResourceSnapshot{}
	}
	return c.goal.Ledger.Snapshot()
}

// tickInterval scales inversely with goal priority, floored at the minimum.
func (c *Controller) tickInterval() time.Duration {
	if c.goal == nil || !c.goal.Active() {
		return c.opts.IdleTickInterval
	}
	p := c.goal.Priority
	if p < 1 {
		p = 1
	}
	iv := c.opts.BaseTickInterval / time.Duration(p)
	if iv < c.opts.MinTickInterval {
		iv = c.opts.MinTickInterval
	}
	return iv
}

// Tick accumulates elapsed time and runs goal ticks as their interval comes
// due.
func (c *Controller) Tick(ctx context.Context, elapsed time.Duration) {
	c.accum += elapsed
	for {
		iv := c.tickInterval()
		if c.accum < iv {
			return
		}
		c.accum -= iv
		if c.goal == nil || !c.goal.Active() {
			continue
		}
		c.runGoalTick(ctx)
	}
}

func (c *Controller) runGoalTick(ctx context.Context) {
	g := c.goal
	g.Ledger.Ticks++

	c.sinceEval++
	if c.sinceEval >= c.opts.EvaluateEvery {
		c.sinceEval = 0
		c.evaluate(ctx)
		return
	}

	if c.machine.Busy() {
		return
	}
	actions, err := c.strategist.NextActions(ctx, g, c.machine.Describe())
	if err != nil {
		// Backend unreachable: idle and retry on the next tick.
		c.logger.Debug("next-action request failed",
			"agent", c.agentID,
			"goal", g.ID,
			"error", err.Error())
		return
	}
	if len(actions) > 0 {
		c.machine.Execute(core.SequenceAction{Steps: actions})
	}
}

// evaluate scores progress, finalizes completion, and escalates on an
// explicit signal or on diminishing returns over the rolling window.
func (c *Controller) evaluate(ctx context.Context) {
	g := c.goal
	eval, err := c.strategist.EvaluateProgress(ctx, g)
	if err != nil {
		c.logger.Debug("progress evaluation failed",
			"agent", c.agentID,
			"goal", g.ID,
			"error", err.Error())
		return
	}
	eval.EvaluatedAt = time.Now()
	g.LastEvaluation = &eval
	g.History = append(g.History, eval)
	if len(g.History) > c.opts.HistoryWindow {
		g.History = g.History[len(g.History)-c.opts.HistoryWindow:]
	}

	c.logger.Info("goal progress",
		"agent", c.agentID,
		"goal", g.ID,
		"score", eval.Score,
		"should_escalate", eval.ShouldEscalate)

	if eval.Score >= c.opts.CompletionScore {
		g.Status = core.GoalCompleted
		c.logger.Info("goal completed", "agent", c.agentID, "goal", g.ID)
		return
	}

	if eval.ShouldEscalate || c.diminishing() {
		c.escalate(ctx, eval.GapAnalysis)
	}
}

// diminishing reports whether the full rolling window moved less than the
// threshold.
func (c *Controller) diminishing() bool {
	h := c.goal.History
	if len(h) < c.opts.HistoryWindow {
		return false
	}
	min, max := h[0].Score, h[0].Score
	for _, e := range h[1:] {
		if e.Score < min {
			min = e.Score
		}
		if e.Score > max {
			max = e.Score
		}
	}
	return max-min < c.opts.DiminishingThreshold
}

// escalate pays for one deep-reasoning round. A round that yields concrete
// actions is productive and free against the budget; anything else burns it.
func (c *Controller) escalate(ctx context.Context, gap string) {
	g := c.goal
	g.Ledger.Escalations++

	actions, err := c.strategist.DeepPlan(ctx, g, gap)
	if err == nil && len(actions) > 0 {
		c.logger.Info("productive escalation",
			"agent", c.agentID,
			"goal", g.ID,
			"actions", len(actions))
		c.machine.Execute(core.SequenceAction{Steps: actions})
		return
	}

	c.unproductive++
	budget := g.Difficulty.EscalationBudget()
	c.logger.Warn("unproductive escalation",
		"agent", c.agentID,
		"goal", g.ID,
		"used", c.unproductive,
		"budget", budget)
	if c.unproductive <= budget {
		return
	}

	improving := c.improving()
	switch {
	case improving && g.Difficulty < core.DifficultyComplex:
		g.Difficulty++
		c.unproductive = 0
		c.logger.Info("difficulty upgraded",
			"agent", c.agentID,
			"goal", g.ID,
			"difficulty", g.Difficulty.String())
	case improving && !c.runwayUsed && c.lastScore() >= c.opts.RunwayScore:
		c.runwayUsed = true
		c.unproductive = 0
		c.logger.Info("runway granted", "agent", c.agentID, "goal", g.ID)
	default:
		g.Status = core.GoalAbandoned
		c.logger.Warn("goal abandoned",
			"agent", c.agentID,
			"goal", g.ID,
			"error", core.ErrEscalationBudgetExhausted.Error())
	}
}

func (c *Controller) improving() bool {
	h := c.goal.History
	if len(h) < 2 {
		return false
	}
	return h[len(h)-1].Score > h[0].Score
}

func (c *Controller) lastScore() float64 {
	if len(c.goal.History) == 0 {
		return 0
	}
	return c.goal.History[len(c.goal.History)-1].Score
}
