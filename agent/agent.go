package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gridmind/gridmind/behavior"
	"github.com/gridmind/gridmind/condition"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/logging"
	"github.com/gridmind/gridmind/protocol"
)

// Options configures a protocol Agent.
type Options struct {
	// MaxReplans bounds how often a failing task is replanned before it
	// is abandoned.
	MaxReplans int

	// CritiqueRounds bounds the self-critique loop on multi-sub-task
	// decompositions.
	CritiqueRounds int

	// CheckInterval is how often mechanical completion criteria are
	// evaluated.
	CheckInterval time.Duration

	// ProgressInterval is how often a progress note is emitted while a
	// sub-task runs.
	ProgressInterval time.Duration

	// PlanRetryInterval is how long the agent idles after a failed
	// decomposition before asking the backend again.
	PlanRetryInterval time.Duration

	// BackgroundLimit bounds concurrent fire-and-forget work such as
	// delegation reports and lesson distillation.
	BackgroundLimit int

	Logger logging.Logger
}

// Option customizes agent options.
type Option func(*Options)

// WithMaxReplans bounds the replan budget.
func WithMaxReplans(n int) Option {
	return func(o *Options) { o.MaxReplans = n }
}

// WithCritiqueRounds bounds the self-critique loop.
func WithCritiqueRounds(n int) Option {
	return func(o *Options) { o.CritiqueRounds = n }
}

// WithCheckInterval sets the mechanical completion polling interval.
func WithCheckInterval(d time.Duration) Option {
	return func(o *Options) { o.CheckInterval = d }
}

// WithPlanRetryInterval sets the decomposition retry interval.
func WithPlanRetryInterval(d time.Duration) Option {
	return func(o *Options) { o.PlanRetryInterval = d }
}

// WithLogger sets the agent logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

type machineEvent struct {
	actionDone   bool
	success      bool
	observations []string
}

// planRetry holds a decomposition that failed and is waiting to be asked
// again.
type planRetry struct {
	description string
	from        string
}

// Agent coordinates one agent's task work: decomposition, delegation,
// execution and replanning. Register its HandleMessage with the Router and
// drive it with Tick.
type Agent struct {
	id      string
	planner Planner
	machine *behavior.Machine
	router  *protocol.Router
	eval    *condition.Evaluator
	memory  core.MemoryStore
	opts    Options
	logger  logging.Logger

	bg *errgroup.Group

	mu       sync.Mutex
	gen      int
	taskID   string
	taskFrom string
	original string
	replans  int

	owned     map[string]*core.SubTask
	order     []string
	completed map[string]bool
	taskOf    map[string]string
	assigners map[string]string
	delegated map[string]*core.SubTask
	delegates map[string]string
	currentID string

	checkAccum    time.Duration
	progressAccum time.Duration

	retry      *planRetry
	retryAccum time.Duration

	evMu   sync.Mutex
	events []machineEvent
}

// New creates a protocol agent and wires it to its behavior machine. The
// caller registers the returned agent's HandleMessage with the router.
func New(id string, planner Planner, machine *behavior.Machine, router *protocol.Router, eval *condition.Evaluator, memory core.MemoryStore, optFns ...Option) *Agent {
	opts := Options{
		MaxReplans:        3,
		CritiqueRounds:    2,
		CheckInterval:     500 * time.Millisecond,
		ProgressInterval:  5 * time.Second,
		PlanRetryInterval: 2 * time.Second,
		BackgroundLimit:   4,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	bg := &errgroup.Group{}
	bg.SetLimit(opts.BackgroundLimit)

	a := &Agent{
		id:        id,
		planner:   planner,
		machine:   machine,
		router:    router,
		eval:      eval,
		memory:    memory,
		opts:      opts,
		logger:    opts.Logger,
		bg:        bg,
		owned:     make(map[string]*core.SubTask),
		completed: make(map[string]bool),
		taskOf:    make(map[string]string),
		assigners: make(map[string]string),
		delegated: make(map[string]*core.SubTask),
		delegates: make(map[string]string),
	}
	return a
}

// ID returns the agent's name.
func (a *Agent) ID() string { return a.id }

// CurrentSubTask returns the id of the running sub-task, or empty.
func (a *Agent) CurrentSubTask() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentID
}

// OnActionDone is the behavior machine settle callback.
func (a *Agent) OnActionDone(action core.Action, success bool) {
	a.evMu.Lock()
	a.events = append(a.events, machineEvent{actionDone: true, success: success})
	a.evMu.Unlock()
}

// OnIdle is the behavior machine idle callback.
func (a *Agent) OnIdle(observations []string) {
	a.evMu.Lock()
	a.events = append(a.events, machineEvent{observations: observations})
	a.evMu.Unlock()
}

// ReceiveTask supersedes any prior task and plans the new one. It blocks on
// backend calls; hosts invoke it from a background goroutine.
func (a *Agent) ReceiveTask(ctx context.Context, description, from string) {
	a.receiveTask(ctx, description, from, false)
}

func (a *Agent) receiveTask(ctx context.Context, description, from string, replanning bool) {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	a.machine.Cancel()
	a.resetTaskLocked()
	if !replanning {
		a.original = description
		a.replans = 0
		a.taskID = uuid.NewString()
	}
	a.taskFrom = from
	taskID := a.taskID
	agentID := a.id
	a.mu.Unlock()

	a.logger.Info("received task",
		"agent", agentID,
		"task_id", taskID,
		"replanning", replanning)

	subs, err := a.planner.Decompose(ctx, agentID, description)
	if err != nil || len(subs) == 0 {
		// Backend unavailable or malformed output: stay idle and ask
		// again on a later tick. Nothing is proposed or reported until
		// a real plan exists.
		a.logger.Warn("decomposition failed, will retry",
			"agent", agentID,
			"error", errString(err))
		a.mu.Lock()
		if a.gen == gen {
			a.retry = &planRetry{description: description, from: from}
			a.retryAccum = 0
		}
		a.mu.Unlock()
		return
	}

	if len(subs) > 1 {
		subs = a.critiqueLoop(ctx, description, taskID, subs)
	}

	a.mu.Lock()
	if a.gen != gen {
		// Superseded while planning.
		a.mu.Unlock()
		return
	}
	proposalID := uuid.NewString()
	outbox := []protocol.Message{protocol.Propose{
		Header:      protocol.Header{ID: proposalID, From: a.id},
		TaskID:      taskID,
		Description: description,
		SubTasks:    cloneSubTasks(subs),
	}}

	for i := range subs {
		st := subs[i].Clone()
		if st.Assignee != "" && st.Assignee != a.id {
			a.delegated[st.ID] = &st
			a.delegates[st.ID] = st.Assignee
			outbox = append(outbox, protocol.Propose{
				Header:   protocol.Header{ID: uuid.NewString(), From: a.id},
				To:       st.Assignee,
				TaskID:   taskID,
				ParentID: proposalID,
				SubTasks: []core.SubTask{st.Clone()},
			})
			continue
		}
		a.adoptLocked(&st, taskID, "")
	}
	a.mu.Unlock()

	for _, msg := range outbox {
		a.router.Send(msg)
	}

	a.mu.Lock()
	a.scheduleNextLocked()
	a.mu.Unlock()
}

// critiqueLoop runs the bounded self-critique cycle. It exits early when the
// backend approves, errors, or raises the same concern kind twice in a row.
func (a *Agent) critiqueLoop(ctx context.Context, description, taskID string, subs []core.SubTask) []core.SubTask {
	prevKind := ""
	for round := 0; round < a.opts.CritiqueRounds; round++ {
		crit, err := a.planner.Critique(ctx, description, subs)
		if err != nil || crit.Approved {
			return subs
		}
		if crit.Kind != "" && crit.Kind == prevKind {
			// The same concern category twice in a row: accept the
			// plan rather than keep paying for revisions.
			a.logger.Debug("critique repeated, accepting plan",
				"agent", a.id,
				"kind", crit.Kind)
			return subs
		}
		prevKind = crit.Kind

		a.router.Send(protocol.Question{
			Header:  protocol.Header{ID: uuid.NewString(), From: a.id},
			TaskID:  taskID,
			Concern: crit.Concern,
			Kind:    crit.Kind,
		})

		revised, err := a.planner.Revise(ctx, description, subs, crit.Concern)
		if err != nil || len(revised) == 0 {
			return subs
		}
		subs = revised

		a.router.Send(protocol.Revise{
			Header:   protocol.Header{ID: uuid.NewString(), From: a.id},
			TaskID:   taskID,
			Reason:   crit.Concern,
			SubTasks: cloneSubTasks(subs),
		})
	}
	return subs
}

// HandleMessage is the router fan-in for this agent.
func (a *Agent) HandleMessage(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.Propose:
		a.handlePropose(m)
	case protocol.Report:
		a.handleReport(m)
	default:
		a.logger.Debug("message received",
			"agent", a.id,
			"kind", protocol.Kind(msg),
			"from", msg.Sender())
	}
}

// handlePropose accepts only sub-tasks explicitly assigned to this agent.
func (a *Agent) handlePropose(m protocol.Propose) {
	var mine []string
	a.mu.Lock()
	for i := range m.SubTasks {
		if m.SubTasks[i].Assignee != a.id {
			continue
		}
		st := m.SubTasks[i].Clone()
		a.adoptLocked(&st, m.TaskID, m.From)
		mine = append(mine, st.ID)
	}
	a.mu.Unlock()

	if len(mine) == 0 {
		return
	}
	a.router.Send(protocol.Accept{
		Header:     protocol.Header{ID: uuid.NewString(), From: a.id},
		ProposalID: m.ID,
		TaskID:     m.TaskID,
		SubTaskIDs: mine,
	})

	a.mu.Lock()
	a.scheduleNextLocked()
	a.mu.Unlock()
}

// handleReport settles a delegated sub-task from its assignee's report.
func (a *Agent) handleReport(m protocol.Report) {
	if m.SubTaskID == "" {
		return
	}
	a.mu.Lock()
	st, ok := a.delegated[m.SubTaskID]
	if !ok || a.delegates[m.SubTaskID] != m.From {
		a.mu.Unlock()
		return
	}
	delete(a.delegated, m.SubTaskID)
	delete(a.delegates, m.SubTaskID)
	if m.Success {
		a.completed[m.SubTaskID] = true
	}
	a.mu.Unlock()

	a.logger.Info("delegated sub-task reported",
		"agent", a.id,
		"sub_task", m.SubTaskID,
		"assignee", m.From,
		"success", m.Success)

	if !m.Success {
		a.spawnReplan(st)
		return
	}
	a.afterProgress()
}

// Tick drives the behavior machine and the periodic checks.
func (a *Agent) Tick(elapsed time.Duration) {
	a.mu.Lock()
	a.machine.Tick(elapsed)
	a.checkAccum += elapsed
	doCheck := a.checkAccum >= a.opts.CheckInterval
	if doCheck {
		a.checkAccum = 0
	}
	doProgress := false
	if a.currentID != "" {
		a.progressAccum += elapsed
		if a.progressAccum >= a.opts.ProgressInterval {
			a.progressAccum = 0
			doProgress = true
		}
	}
	var retry *planRetry
	if a.retry != nil {
		a.retryAccum += elapsed
		if a.retryAccum >= a.opts.PlanRetryInterval {
			retry = a.retry
			a.retry = nil
			a.retryAccum = 0
		}
	}
	a.mu.Unlock()

	if retry != nil {
		a.bg.Go(func() error {
			a.receiveTask(context.Background(), retry.description, retry.from, true)
			return nil
		})
	}

	a.processEvents(a.drainEvents())
	if doCheck {
		a.checkCompletions()
	}
	if doProgress {
		a.emitProgress()
	}
}

func (a *Agent) drainEvents() []machineEvent {
	a.evMu.Lock()
	defer a.evMu.Unlock()
	evts := a.events
	a.events = nil
	return evts
}

// processEvents attributes a drained batch to the sub-task that was current
// when the batch was produced; at most one event in a batch finalizes it.
func (a *Agent) processEvents(evts []machineEvent) {
	if len(evts) == 0 {
		return
	}
	a.mu.Lock()
	id := a.currentID
	a.mu.Unlock()

	finalized := false
	for _, ev := range evts {
		if len(ev.observations) > 0 {
			a.storeObservations(ev.observations)
		}
		if id == "" || finalized {
			continue
		}
		switch {
		case ev.actionDone && !ev.success:
			// Any action failing inside the sequence fails the
			// sub-task.
			a.finishSubTask(id, false)
			finalized = true
		case !ev.actionDone:
			// Machine drained back to idle: the whole sequence
			// succeeded.
			a.finishSubTask(id, true)
			finalized = true
		}
	}
}

// checkCompletions evaluates mechanical criteria on owned sub-tasks,
// completing them exactly as execution-driven completion would.
func (a *Agent) checkCompletions() {
	a.mu.Lock()
	var ready []string
	for _, id := range a.order {
		if a.completed[id] {
			continue
		}
		st := a.owned[id]
		if st == nil || st.Criterion == nil {
			continue
		}
		if a.eval.Evaluate(st.Criterion) {
			ready = append(ready, id)
		}
	}
	for _, id := range ready {
		if id == a.currentID {
			a.machine.Cancel()
		}
	}
	a.mu.Unlock()

	for _, id := range ready {
		a.finishSubTask(id, true)
	}
}

func (a *Agent) emitProgress() {
	a.mu.Lock()
	id := a.currentID
	st := a.owned[id]
	state := a.machine.Describe()
	a.mu.Unlock()
	if st == nil {
		return
	}
	a.router.Send(protocol.Attempt{
		Header:      protocol.Header{ID: uuid.NewString(), From: a.id},
		Description: fmt.Sprintf("working on %q: %s", st.Description, state),
	})
}

// scheduleNextLocked starts the first runnable owned sub-task. It never
// interrupts a running one. Caller holds a.mu.
func (a *Agent) scheduleNextLocked() {
	if a.currentID != "" {
		return
	}
	for _, id := range a.order {
		if a.completed[id] {
			continue
		}
		st := a.owned[id]
		if st == nil || len(st.Actions) == 0 {
			continue
		}
		if !a.depsMetLocked(st) {
			continue
		}
		a.currentID = id
		a.progressAccum = 0
		a.logger.Info("starting sub-task",
			"agent", a.id,
			"sub_task", id,
			"description", st.Description)
		a.machine.Execute(core.SequenceAction{Steps: st.Actions})
		return
	}
}

func (a *Agent) depsMetLocked(st *core.SubTask) bool {
	for _, dep := range st.DependsOn {
		if !a.completed[dep] {
			return false
		}
	}
	return true
}

// finishSubTask settles one sub-task and decides what happens next: report
// to the assigner, replan on failure, distill on full completion, or just
// schedule the next sub-task.
func (a *Agent) finishSubTask(id string, success bool) {
	a.mu.Lock()
	st, ok := a.owned[id]
	if !ok || a.completed[id] {
		a.mu.Unlock()
		return
	}
	if success {
		a.completed[id] = true
	}
	if a.currentID == id {
		a.currentID = ""
		if !success {
			// Drop the rest of the failed sequence.
			a.machine.Cancel()
		}
	}
	assigner := a.assigners[id]
	taskID := a.taskOf[id]
	a.mu.Unlock()

	a.logger.Info("sub-task finished",
		"agent", a.id,
		"sub_task", id,
		"success", success)

	if assigner != "" {
		// Delegation report back to the original assigner; its failure
		// must never block this agent.
		a.bg.Go(func() error {
			a.router.Send(protocol.Report{
				Header:    protocol.Header{ID: uuid.NewString(), From: a.id},
				To:        assigner,
				TaskID:    taskID,
				SubTaskID: id,
				Success:   success,
				Detail:    st.Description,
			})
			return nil
		})
	}

	if !success {
		if assigner != "" {
			// The assigner owns replanning for work accepted from its
			// proposal; this agent only reports and moves on.
			a.mu.Lock()
			a.scheduleNextLocked()
			a.mu.Unlock()
			return
		}
		a.spawnReplan(st)
		return
	}
	a.afterProgress()
}

// afterProgress runs after any successful completion: distill if the task is
// done, otherwise schedule more work.
func (a *Agent) afterProgress() {
	a.mu.Lock()
	done := a.original != "" && !a.hasRemainingLocked()
	if !done {
		a.scheduleNextLocked()
	}
	a.mu.Unlock()

	if done {
		a.spawnDistill(true)
	}
}

func (a *Agent) hasRemainingLocked() bool {
	if len(a.delegated) > 0 {
		return true
	}
	for _, id := range a.order {
		if a.assigners[id] != "" {
			// Accepted from another agent; not part of our own task.
			continue
		}
		if !a.completed[id] {
			return true
		}
	}
	return false
}

// spawnReplan burns one replan attempt in the background, or gives up when
// the budget is exhausted.
func (a *Agent) spawnReplan(failed *core.SubTask) {
	a.bg.Go(func() error {
		a.mu.Lock()
		if a.original == "" {
			// A delegated sub-task failed locally; the assigner owns
			// replanning. Just move on.
			a.scheduleNextLocked()
			a.mu.Unlock()
			return nil
		}
		a.replans++
		if a.replans > a.opts.MaxReplans {
			a.mu.Unlock()
			a.logger.Warn("replan budget exhausted, abandoning task",
				"agent", a.id,
				"error", core.ErrReplanBudgetExhausted.Error())
			a.spawnDistill(false)
			return nil
		}
		desc := a.replanDescriptionLocked(failed)
		from := a.taskFrom
		a.mu.Unlock()

		a.receiveTask(context.Background(), desc, from, true)
		return nil
	})
}

// replanDescriptionLocked synthesizes the replan prompt from the original
// task, the failed sub-task and the remaining ones. Caller holds a.mu.
func (a *Agent) replanDescriptionLocked(failed *core.SubTask) string {
	var remaining []string
	for _, id := range a.order {
		if a.completed[id] || id == failed.ID {
			continue
		}
		if st := a.owned[id]; st != nil {
			remaining = append(remaining, st.Description)
		}
	}
	desc := fmt.Sprintf("Original task: %s. The sub-task %q failed.", a.original, failed.Description)
	if len(remaining) > 0 {
		desc += " Remaining work: " + strings.Join(remaining, "; ") + "."
	}
	return desc + " Produce a fresh plan for what is left."
}

// spawnDistill extracts lessons, stores them, announces them and resets the
// task state.
func (a *Agent) spawnDistill(success bool) {
	a.mu.Lock()
	description := a.original
	taskID := a.taskID
	from := a.taskFrom
	a.mu.Unlock()
	if description == "" {
		return
	}

	a.bg.Go(func() error {
		outcome := "failed"
		if success {
			outcome = "completed"
		}
		lessons, err := a.planner.Lessons(context.Background(), description, outcome)
		if err != nil {
			a.logger.Warn("lesson distillation failed",
				"agent", a.id,
				"error", err.Error())
		}
		for _, lesson := range lessons {
			if err := a.memory.Append(a.id, core.Memory{
				Text:       lesson,
				Kind:       "lesson",
				Importance: 0.8,
				Timestamp:  time.Now(),
			}); err != nil {
				a.logger.Warn("storing lesson failed",
					"agent", a.id,
					"error", err.Error())
			}
		}
		if len(lessons) > 0 {
			a.router.Send(protocol.Remember{
				Header:  protocol.Header{ID: uuid.NewString(), From: a.id},
				TaskID:  taskID,
				Lessons: lessons,
			})
		}
		a.router.Send(protocol.Report{
			Header:  protocol.Header{ID: uuid.NewString(), From: a.id},
			To:      from,
			TaskID:  taskID,
			Success: success,
		})

		a.mu.Lock()
		a.resetTaskLocked()
		a.original = ""
		a.taskFrom = ""
		a.replans = 0
		a.mu.Unlock()
		return nil
	})
}

func (a *Agent) storeObservations(names []string) {
	for _, name := range names {
		if err := a.memory.Append(a.id, core.Memory{
			Text:       "noticed " + name + " nearby",
			Kind:       "observation",
			Importance: 0.3,
			Timestamp:  time.Now(),
		}); err != nil {
			a.logger.Debug("storing observation failed",
				"agent", a.id,
				"error", err.Error())
		}
	}
}

// adoptLocked takes ownership of a sub-task. Caller holds a.mu.
func (a *Agent) adoptLocked(st *core.SubTask, taskID, assigner string) {
	if _, exists := a.owned[st.ID]; exists {
		return
	}
	a.owned[st.ID] = st
	a.order = append(a.order, st.ID)
	a.taskOf[st.ID] = taskID
	if assigner != "" {
		a.assigners[st.ID] = assigner
	}
}

// resetTaskLocked clears sub-task tracking. Caller holds a.mu.
func (a *Agent) resetTaskLocked() {
	a.owned = make(map[string]*core.SubTask)
	a.order = nil
	a.completed = make(map[string]bool)
	a.taskOf = make(map[string]string)
	a.assigners = make(map[string]string)
	a.delegated = make(map[string]*core.SubTask)
	a.delegates = make(map[string]string)
	a.currentID = ""
	a.checkAccum = 0
	a.progressAccum = 0
	a.retry = nil
	a.retryAccum = 0
}

func cloneSubTasks(subs []core.SubTask) []core.SubTask {
	out := make([]core.SubTask, len(subs))
	for i := range subs {
		out[i] = subs[i].Clone()
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return "empty decomposition"
	}
	return err.Error()
}
