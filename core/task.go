package core

// SubTask is the atomic unit of decomposed work. It is owned by exactly one
// agent at a time and moves between owned and delegated sets as proposals are
// routed. A sub-task with unmet dependencies is never scheduled.
type SubTask struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	// Assignee names the agent meant to execute the sub-task; empty means the
	// proposing agent keeps it.
	Assignee string `json:"assignee,omitempty"`
	// Criterion, when non-nil, is a mechanical completion check evaluated
	// against world state without invoking the reasoning backend.
	Criterion Condition `json:"-"`
	// CriterionText is the textual completion criterion used when no
	// mechanical condition was derived.
	CriterionText string   `json:"criterion,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty"`
	Actions       []Action `json:"-"`
}

// Clone returns a copy with duplicated slices so callers can mutate
// dependency and action lists independently.
func (st SubTask) Clone() SubTask {
	cp := st
	cp.DependsOn = append([]string(nil), st.DependsOn...)
	cp.Actions = append([]Action(nil), st.Actions...)
	return cp
}
