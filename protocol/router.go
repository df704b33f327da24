package protocol

import (
	"sync"

	"github.com/gridmind/gridmind/logging"
)

// TaskStatus tracks the lifecycle of a task context. It is monotonic: a
// completed or failed task never becomes active again.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskContext is the message thread rooted at one proposal.
type TaskContext struct {
	ID           string
	Origin       Propose
	Messages     []Message
	Status       TaskStatus
	Participants []string
}

// Handler receives messages fanned out by the Router.
type Handler func(Message)

type registration struct {
	agentID string
	handler Handler
}

// Router owns every TaskContext and broadcasts protocol messages to the
// registered per-agent handlers. Fan-out for one Send is synchronous and in
// registration order.
type Router struct {
	mu       sync.Mutex
	handlers []registration
	tasks    map[string]*TaskContext
	logger   logging.Logger
}

// NewRouter creates an empty router.
func NewRouter(logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Router{
		tasks:  make(map[string]*TaskContext),
		logger: logger,
	}
}

// Register adds a handler for an agent. Registration order fixes fan-out
// order.
func (r *Router) Register(agentID string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, registration{agentID: agentID, handler: h})
}

// Send records the message in its task context and broadcasts it. The sender
// never receives its own message; a targeted message reaches only its
// recipient.
func (r *Router) Send(msg Message) {
	r.mu.Lock()
	r.record(msg)
	targets := make([]registration, len(r.handlers))
	copy(targets, r.handlers)
	r.mu.Unlock()

	recipient := recipientOf(msg)
	for _, reg := range targets {
		if reg.agentID == msg.Sender() {
			continue
		}
		if recipient != "" && reg.agentID != recipient {
			continue
		}
		reg.handler(msg)
	}
}

// Context returns a copy of the task context, or false if unknown.
func (r *Router) Context(taskID string) (TaskContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc, ok := r.tasks[taskID]
	if !ok {
		return TaskContext{}, false
	}
	out := TaskContext{
		ID:     tc.ID,
		Origin: tc.Origin,
		Status: tc.Status,
	}
	out.Messages = append(out.Messages, tc.Messages...)
	out.Participants = append(out.Participants, tc.Participants...)
	return out, true
}

// record resolves the owning task context and appends the message. Caller
// holds r.mu.
func (r *Router) record(msg Message) {
	taskID := taskIDOf(msg)
	if taskID == "" {
		return
	}

	if p, ok := msg.(Propose); ok && p.ParentID == "" {
		if _, exists := r.tasks[taskID]; !exists {
			r.tasks[taskID] = &TaskContext{
				ID:     taskID,
				Origin: p,
				Status: TaskActive,
			}
		}
	}

	tc, ok := r.tasks[taskID]
	if !ok {
		// Advisory routing: unknown task ids are logged, never fatal.
		r.logger.Debug("message for unknown task",
			"task_id", taskID,
			"kind", Kind(msg),
			"from", msg.Sender())
		return
	}

	tc.Messages = append(tc.Messages, msg)
	tc.addParticipant(msg.Sender())
	if to := recipientOf(msg); to != "" {
		tc.addParticipant(to)
	}

	// Only a root-level report settles the task, and settling is one-way.
	if rep, ok := msg.(Report); ok && rep.SubTaskID == "" && tc.Status == TaskActive {
		if rep.Success {
			tc.Status = TaskCompleted
		} else {
			tc.Status = TaskFailed
		}
	}
}

func (tc *TaskContext) addParticipant(agentID string) {
	if agentID == "" {
		return
	}
	for _, p := range tc.Participants {
		if p == agentID {
			return
		}
	}
	tc.Participants = append(tc.Participants, agentID)
}

func taskIDOf(msg Message) string {
	switch m := msg.(type) {
	case Propose:
		return m.TaskID
	case Accept:
		return m.TaskID
	case Report:
		return m.TaskID
	case Question:
		return m.TaskID
	case Revise:
		return m.TaskID
	}
	return ""
}

func recipientOf(msg Message) string {
	switch m := msg.(type) {
	case Propose:
		return m.To
	case Report:
		return m.To
	}
	return ""
}
