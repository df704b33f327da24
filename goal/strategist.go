package goal

import (
	"context"
	"fmt"

	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/internal/llmjson"
	"github.com/gridmind/gridmind/schedule"
)

// Reasoning tiers recorded in the goal ledger.
const (
	TierRoutine  = "routine"
	TierDeep     = "deep"
	TierEvaluate = "evaluate"
)

// backendStrategist implements Strategist on top of the request scheduler.
// Routine decisions go out at the goal's priority; deep plans jump the queue.
type backendStrategist struct {
	scheduler    *schedule.Scheduler
	agentID      string
	costPerToken float64
}

// NewBackendStrategist creates a Strategist that issues its calls through
// the scheduler and charges them to the goal's ledger.
func NewBackendStrategist(s *schedule.Scheduler, agentID string, costPerToken float64) Strategist {
	return &backendStrategist{
		scheduler:    s,
		agentID:      agentID,
		costPerToken: costPerToken,
	}
}

func (b *backendStrategist) NextActions(ctx context.Context, g *core.Goal, observation string) ([]core.Action, error) {
	prompt := fmt.Sprintf(`Agent %q pursues the goal: %s
Success criteria: %s
Current activity: %s

Decide the next few actions. Respond with JSON only:
{"actions":[{"kind":"travel_to","x":0,"y":0}]}
Action kinds: move {dx,dy}, wait {seconds}, speak {text}, travel_to {x,y}, pursue {target}, flee_from {target}, say_to {target,text}.`,
		b.agentID, g.Description, g.SuccessCriteria, observation)

	resp, err := b.scheduler.Call(ctx, g.Priority, core.BackendRequest{
		System:    "You pick the next concrete actions for a grid-world agent.",
		Prompt:    prompt,
		MaxTokens: 512,
	})
	if err != nil {
		return nil, err
	}
	b.charge(g, TierRoutine, resp)
	return parseActions(resp.Text)
}

func (b *backendStrategist) DeepPlan(ctx context.Context, g *core.Goal, gap string) ([]core.Action, error) {
	prompt := fmt.Sprintf(`Agent %q is stuck on the goal: %s
Success criteria: %s
Gap analysis: %s

Think carefully about why progress stalled and produce a concrete plan.
Respond with JSON only: {"actions":[...]} using the same action schema.`,
		b.agentID, g.Description, g.SuccessCriteria, gap)

	resp, err := b.scheduler.Call(ctx, core.PriorityUrgent, core.BackendRequest{
		System:    "You are a careful strategist. Diagnose the stall before planning.",
		Prompt:    prompt,
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, err
	}
	b.charge(g, TierDeep, resp)
	return parseActions(resp.Text)
}

func (b *backendStrategist) EvaluateProgress(ctx context.Context, g *core.Goal) (core.GoalEvaluation, error) {
	prompt := fmt.Sprintf(`Agent %q pursues the goal: %s
Success criteria: %s

Score progress. Respond with JSON only:
{"score":0.0,"summary":"...","should_escalate":false,"gap":"..."}`,
		b.agentID, g.Description, g.SuccessCriteria)

	resp, err := b.scheduler.Call(ctx, core.PriorityRoutine, core.BackendRequest{
		System:    "You judge goal progress honestly. Score 1.0 means fully achieved.",
		Prompt:    prompt,
		MaxTokens: 512,
	})
	if err != nil {
		return core.GoalEvaluation{}, err
	}
	b.charge(g, TierEvaluate, resp)

	var out struct {
		Score          float64 `json:"score"`
		Summary        string  `json:"summary"`
		ShouldEscalate bool    `json:"should_escalate"`
		Gap            string  `json:"gap"`
	}
	if err := llmjson.Unmarshal(resp.Text, &out); err != nil {
		return core.GoalEvaluation{}, fmt.Errorf("parse evaluation: %w", err)
	}
	if out.Score < 0 {
		out.Score = 0
	}
	if out.Score > 1 {
		out.Score = 1
	}
	return core.GoalEvaluation{
		Score:          out.Score,
		Summary:        out.Summary,
		ShouldEscalate: out.ShouldEscalate,
		GapAnalysis:    out.Gap,
	}, nil
}

func (b *backendStrategist) charge(g *core.Goal, tier string, resp *core.BackendResponse) {
	tokens := resp.Usage.TotalTokens
	g.Ledger.RecordCall(tier, tokens, float64(tokens)*b.costPerToken, resp.Latency)
}

func parseActions(text string) ([]core.Action, error) {
	var out struct {
		Actions []llmjson.ActionSpec `json:"actions"`
	}
	if err := llmjson.Unmarshal(text, &out); err != nil {
		return nil, fmt.Errorf("parse actions: %w", err)
	}
	return llmjson.DecodeActions(out.Actions)
}
