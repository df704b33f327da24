package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/internal/llmjson"
	"github.com/gridmind/gridmind/schedule"
)

// Critique is the verdict of one self-critique round.
type Critique struct {
	Approved bool
	Concern  string
	Kind     string
}

// Planner produces and refines task decompositions. Implementations call the
// reasoning backend and surface errors as-is; retry policy belongs to the
// caller, never here.
type Planner interface {
	Decompose(ctx context.Context, agentID, description string) ([]core.SubTask, error)
	Critique(ctx context.Context, description string, subTasks []core.SubTask) (Critique, error)
	Revise(ctx context.Context, description string, subTasks []core.SubTask, concern string) ([]core.SubTask, error)
	Lessons(ctx context.Context, description, outcome string) ([]string, error)
}

// backendPlanner implements Planner on top of the request scheduler.
type backendPlanner struct {
	scheduler *schedule.Scheduler
	priority  int
	maxTokens int
}

// NewBackendPlanner creates a Planner that issues its calls through the
// scheduler at the given priority.
func NewBackendPlanner(s *schedule.Scheduler, priority int) Planner {
	return &backendPlanner{
		scheduler: s,
		priority:  priority,
		maxTokens: 1024,
	}
}

func (p *backendPlanner) Decompose(ctx context.Context, agentID, description string) ([]core.SubTask, error) {
	prompt := fmt.Sprintf(`Decompose the following task into sub-tasks for agent %q.
Task: %s

Respond with JSON only:
{"subtasks":[{"id":"...","description":"...","assignee":"...","criterion_text":"...","depends_on":[],"actions":[{"kind":"travel_to","x":0,"y":0}]}]}
Action kinds: move {dx,dy}, wait {seconds}, speak {text}, travel_to {x,y}, pursue {target}, flee_from {target}, say_to {target,text}.`,
		agentID, description)

	resp, err := p.scheduler.Call(ctx, p.priority, core.BackendRequest{
		System:    "You are a task planner for a grid-world agent.",
		Prompt:    prompt,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return parseSubTasks(resp.Text)
}

func (p *backendPlanner) Critique(ctx context.Context, description string, subTasks []core.SubTask) (Critique, error) {
	prompt := fmt.Sprintf(`Review this plan for the task %q:
%s

Respond with JSON only: {"approved":true|false,"concern":"...","kind":"feasibility|ordering|coverage|other"}`,
		description, renderSubTasks(subTasks))

	resp, err := p.scheduler.Call(ctx, p.priority, core.BackendRequest{
		System:    "You are a plan reviewer. Be brief and concrete.",
		Prompt:    prompt,
		MaxTokens: 256,
	})
	if err != nil {
		return Critique{}, err
	}

	var out struct {
		Approved bool   `json:"approved"`
		Concern  string `json:"concern"`
		Kind     string `json:"kind"`
	}
	if err := llmjson.Unmarshal(resp.Text, &out); err != nil {
		return Critique{}, fmt.Errorf("parse critique: %w", err)
	}
	return Critique{Approved: out.Approved, Concern: out.Concern, Kind: out.Kind}, nil
}

func (p *backendPlanner) Revise(ctx context.Context, description string, subTasks []core.SubTask, concern string) ([]core.SubTask, error) {
	prompt := fmt.Sprintf(`The plan for task %q has a problem: %s
Current plan:
%s

Respond with the full revised plan as JSON only, same schema as before.`,
		description, concern, renderSubTasks(subTasks))

	resp, err := p.scheduler.Call(ctx, p.priority, core.BackendRequest{
		System:    "You are a task planner for a grid-world agent.",
		Prompt:    prompt,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return nil, err
	}
	return parseSubTasks(resp.Text)
}

func (p *backendPlanner) Lessons(ctx context.Context, description, outcome string) ([]string, error) {
	prompt := fmt.Sprintf(`The task %q finished with outcome: %s
List up to three short lessons worth remembering.
Respond with JSON only: {"lessons":["..."]}`, description, outcome)

	resp, err := p.scheduler.Call(ctx, core.PriorityBackground, core.BackendRequest{
		System:    "You distill reusable lessons from finished tasks.",
		Prompt:    prompt,
		MaxTokens: 256,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Lessons []string `json:"lessons"`
	}
	if err := llmjson.Unmarshal(resp.Text, &out); err != nil {
		return nil, fmt.Errorf("parse lessons: %w", err)
	}
	return out.Lessons, nil
}

// subTaskSpec is the wire schema the backend answers with.
type subTaskSpec struct {
	ID            string               `json:"id"`
	Description   string               `json:"description"`
	Assignee      string               `json:"assignee,omitempty"`
	CriterionText string               `json:"criterion_text,omitempty"`
	DependsOn     []string             `json:"depends_on,omitempty"`
	Actions       []llmjson.ActionSpec `json:"actions,omitempty"`
}

func parseSubTasks(text string) ([]core.SubTask, error) {
	var out struct {
		SubTasks []subTaskSpec `json:"subtasks"`
	}
	if err := llmjson.Unmarshal(text, &out); err != nil {
		return nil, fmt.Errorf("parse decomposition: %w", err)
	}
	if len(out.SubTasks) == 0 {
		return nil, fmt.Errorf("decomposition contains no sub-tasks")
	}

	subs := make([]core.SubTask, 0, len(out.SubTasks))
	for i, spec := range out.SubTasks {
		st := core.SubTask{
			ID:            spec.ID,
			Description:   spec.Description,
			Assignee:      spec.Assignee,
			CriterionText: spec.CriterionText,
			DependsOn:     spec.DependsOn,
		}
		if st.ID == "" {
			st.ID = fmt.Sprintf("st-%d", i+1)
		}
		actions, err := llmjson.DecodeActions(spec.Actions)
		if err != nil {
			return nil, err
		}
		st.Actions = actions
		subs = append(subs, st)
	}
	return subs, nil
}

func renderSubTasks(subs []core.SubTask) string {
	var b strings.Builder
	for _, st := range subs {
		fmt.Fprintf(&b, "- [%s] %s", st.ID, st.Description)
		if st.Assignee != "" {
			fmt.Fprintf(&b, " (assignee: %s)", st.Assignee)
		}
		if len(st.DependsOn) > 0 {
			fmt.Fprintf(&b, " (after: %s)", strings.Join(st.DependsOn, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
