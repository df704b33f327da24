// Package gridmind provides a high-level façade over the task-orchestration
// core: the request scheduler, per-agent behavior machines, the task
// protocol, and the goal escalation controllers. Most hosts interact with
// this package by:
//  1. Creating a Mind via New() with a reasoning backend (optionally
//     overriding the default in-memory world and memory store)
//  2. Adding agents with AddAgent
//  3. Submitting tasks or goals and driving the simulation with TickAll
//
// The façade delegates the real work to the schedule, behavior, agent and
// goal packages while keeping setup concise. All defaults are safe for local
// development and testing; production hosts typically supply their own world
// implementation and a structured logger.
package gridmind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridmind/gridmind/agent"
	"github.com/gridmind/gridmind/behavior"
	"github.com/gridmind/gridmind/condition"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/goal"
	"github.com/gridmind/gridmind/logging"
	"github.com/gridmind/gridmind/memory"
	"github.com/gridmind/gridmind/protocol"
	"github.com/gridmind/gridmind/schedule"
	"github.com/gridmind/gridmind/world"
)

// Options configures a Mind.
type Options struct {
	// Backend is the reasoning backend all agents share. Required.
	Backend core.ReasoningBackend

	// World, Pathfinder and Mover default to a shared in-memory grid.
	World      core.WorldQuery
	Pathfinder core.Pathfinder
	Mover      core.Mover

	// WorldWidth and WorldHeight size the default grid.
	WorldWidth  int
	WorldHeight int

	// MemoryStore defaults to an in-memory implementation.
	MemoryStore core.MemoryStore

	// PlanPriority is the scheduler priority for task decomposition.
	PlanPriority int

	// CostPerToken prices backend usage in the goal ledgers.
	CostPerToken float64

	// SchedulerOptions are passed through to the request scheduler.
	SchedulerOptions []schedule.Option

	// AgentOptions are passed through to every protocol agent.
	AgentOptions []agent.Option

	// MachineOptions are passed through to every behavior machine.
	MachineOptions []behavior.Option

	// ControllerOptions are passed through to every goal controller.
	ControllerOptions []goal.Option

	// Logger defaults to the NoOp logger.
	Logger logging.Logger
}

// handle bundles everything owned by one agent.
type handle struct {
	agent      *agent.Agent
	machine    *behavior.Machine
	controller *goal.Controller
}

// Mind is the high-level façade aggregating the scheduler, router, world and
// per-agent components.
type Mind struct {
	opts      Options
	logger    logging.Logger
	scheduler *schedule.Scheduler
	router    *protocol.Router
	flags     *condition.Flags
	grid      *world.Grid

	mu     sync.Mutex
	agents map[string]*handle
}

// New creates a Mind with optional overrides. Any unset collaborator is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) (*Mind, error) {
	opts := Options{
		WorldWidth:   64,
		WorldHeight:  64,
		PlanPriority: core.PriorityElevated,
		MemoryStore:  memory.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Backend == nil {
		return nil, fmt.Errorf("a reasoning backend is required")
	}

	m := &Mind{
		opts:   opts,
		logger: opts.Logger,
		flags:  condition.NewFlags(),
		agents: make(map[string]*handle),
	}

	if opts.World == nil || opts.Pathfinder == nil || opts.Mover == nil {
		m.grid = world.NewGrid(opts.WorldWidth, opts.WorldHeight)
		if opts.World == nil {
			opts.World = m.grid
		}
		if opts.Pathfinder == nil {
			opts.Pathfinder = m.grid
		}
		if opts.Mover == nil {
			opts.Mover = m.grid
		}
		m.opts = opts
	}

	schedOpts := append([]schedule.Option{schedule.WithLogger(opts.Logger)}, opts.SchedulerOptions...)
	m.scheduler = schedule.New(opts.Backend, schedOpts...)
	m.router = protocol.NewRouter(opts.Logger)
	return m, nil
}

// Grid returns the default in-memory grid, or nil when the host supplied its
// own world.
func (m *Mind) Grid() *world.Grid { return m.grid }

// Router returns the protocol router, for hosts that want to observe or
// inject protocol traffic.
func (m *Mind) Router() *protocol.Router { return m.router }

// Flags returns the process-wide condition flag set.
func (m *Mind) Flags() *condition.Flags { return m.flags }

// AddAgent creates and wires a new agent at the given position on the
// default grid. With a host-supplied world the position is ignored and the
// entity must already exist there.
func (m *Mind) AddAgent(id string, pos core.Position) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agents[id]; exists {
		return nil, fmt.Errorf("agent %q already added", id)
	}
	if m.grid != nil {
		if err := m.grid.Place(id, pos); err != nil {
			return nil, fmt.Errorf("placing agent %q: %w", id, err)
		}
	}

	eval := condition.NewEvaluator(m.opts.World, m.flags)

	var protoAgent *agent.Agent
	machineOpts := append([]behavior.Option{
		behavior.WithLogger(m.logger),
		behavior.WithCallbacks(
			func(a core.Action, success bool) { protoAgent.OnActionDone(a, success) },
			func(obs []string) { protoAgent.OnIdle(obs) },
		),
	}, m.opts.MachineOptions...)
	machine := behavior.NewMachine(id, m.opts.World, m.opts.Pathfinder, m.opts.Mover, eval, machineOpts...)

	planner := agent.NewBackendPlanner(m.scheduler, m.opts.PlanPriority)
	agentOpts := append([]agent.Option{agent.WithLogger(m.logger)}, m.opts.AgentOptions...)
	protoAgent = agent.New(id, planner, machine, m.router, eval, m.opts.MemoryStore, agentOpts...)
	m.router.Register(id, protoAgent.HandleMessage)

	strategist := goal.NewBackendStrategist(m.scheduler, id, m.opts.CostPerToken)
	ctrlOpts := append([]goal.Option{goal.WithLogger(m.logger)}, m.opts.ControllerOptions...)
	controller := goal.NewController(id, strategist, machine, ctrlOpts...)

	m.agents[id] = &handle{
		agent:      protoAgent,
		machine:    machine,
		controller: controller,
	}
	m.logger.Info("agent added", "agent", id)
	return protoAgent, nil
}

// Submit hands a task description to an agent asynchronously and returns the
// submission id. Planning happens in the background; progress surfaces as
// protocol messages addressed to requester.
func (m *Mind) Submit(ctx context.Context, agentID, description, requester string) (string, error) {
	m.mu.Lock()
	h, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown agent %q", agentID)
	}

	id := uuid.NewString()
	go h.agent.ReceiveTask(ctx, description, requester)
	m.logger.Info("task submitted",
		"agent", agentID,
		"submission", id)
	return id, nil
}

// PursueGoal installs a goal on an agent's escalation controller. The
// controller and the task pipeline share the agent's behavior machine, so a
// goal and a submitted task must not run on the same agent at the same time.
func (m *Mind) PursueGoal(agentID string, g *core.Goal) error {
	m.mu.Lock()
	h, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}
	h.controller.SetGoal(g)
	return nil
}

// Tick advances one agent by elapsed simulated time.
func (m *Mind) Tick(ctx context.Context, agentID string, elapsed time.Duration) error {
	m.mu.Lock()
	h, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}
	h.agent.Tick(elapsed)
	h.controller.Tick(ctx, elapsed)
	return nil
}

// TickAll advances every agent by elapsed simulated time.
func (m *Mind) TickAll(ctx context.Context, elapsed time.Duration) {
	m.mu.Lock()
	handles := make([]*handle, 0, len(m.agents))
	for _, h := range m.agents {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		h.agent.Tick(elapsed)
		h.controller.Tick(ctx, elapsed)
	}
}

// QueueDepth exposes scheduler backpressure.
func (m *Mind) QueueDepth() int { return m.scheduler.QueueDepth() }

// ResourceSnapshot returns the active goal's resource usage for an agent.
func (m *Mind) ResourceSnapshot(agentID string) (core.ResourceSnapshot, error) {
	m.mu.Lock()
	h, ok := m.agents[agentID]
	m.mu.Unlock()
	if !ok {
		return core.ResourceSnapshot{}, fmt.Errorf("unknown agent %q", agentID)
	}
	return h.controller.Snapshot(), nil
}

// ResetEpisode clears the process-wide condition flags.
func (m *Mind) ResetEpisode() {
	m.flags.ClearAll()
}

// Close stops the scheduler, rejecting all pending backend requests.
func (m *Mind) Close() {
	m.scheduler.Stop()
}
