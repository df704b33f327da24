package protocol

import "github.com/gridmind/gridmind/core"

// Message is the closed set of protocol messages. Every message carries an
// id and a sender; task-scoped messages also carry task lineage.
type Message interface {
	isMessage()
	MessageID() string
	Sender() string
}

// Header holds the fields common to every message.
type Header struct {
	ID   string
	From string
}

func (h Header) MessageID() string { return h.ID }
func (h Header) Sender() string    { return h.From }

// Propose announces a task decomposition. An empty To broadcasts; a set To
// targets one agent. The root proposal of a task has an empty ParentID.
type Propose struct {
	Header
	To          string
	TaskID      string
	ParentID    string
	Description string
	SubTasks    []core.SubTask
}

func (Propose) isMessage() {}

// Accept confirms that the sender will execute the listed sub-tasks of a
// proposal.
type Accept struct {
	Header
	ProposalID string
	TaskID     string
	SubTaskIDs []string
}

func (Accept) isMessage() {}

// Attempt is a free-form progress note. It is not task-scoped.
type Attempt struct {
	Header
	Description string
}

func (Attempt) isMessage() {}

// Report announces the outcome of a sub-task, or of the whole task when
// SubTaskID is empty.
type Report struct {
	Header
	To        string
	TaskID    string
	SubTaskID string
	Success   bool
	Detail    string
}

func (Report) isMessage() {}

// Question raises a concern about a proposal during self-critique or review.
type Question struct {
	Header
	TaskID  string
	Concern string
	Kind    string
}

func (Question) isMessage() {}

// Revise replaces the sub-tasks of an existing proposal.
type Revise struct {
	Header
	TaskID   string
	Reason   string
	SubTasks []core.SubTask
}

func (Revise) isMessage() {}

// Remember publishes lessons distilled from a finished task. It is not
// task-scoped.
type Remember struct {
	Header
	TaskID  string
	Lessons []string
}

func (Remember) isMessage() {}

// Kind returns the wire tag for a message.
func Kind(m Message) string {
	switch m.(type) {
	case Propose:
		return "propose"
	case Accept:
		return "accept"
	case Attempt:
		return "attempt"
	case Report:
		return "report"
	case Question:
		return "question"
	case Revise:
		return "revise"
	case Remember:
		return "remember"
	default:
		return "unknown"
	}
}
