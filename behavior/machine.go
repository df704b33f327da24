package behavior

import (
	"fmt"
	"time"

	"github.com/gridmind/gridmind/condition"
	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/logging"
)

// State identifies what the machine is currently doing.
type State string

const (
	StateIdle              State = "idle"
	StateTraveling         State = "traveling"
	StatePursuing          State = "pursuing"
	StateFleeing           State = "fleeing"
	StateWaiting           State = "waiting"
	StateWaitingUntil      State = "waiting_until"
	StateConversing        State = "conversing"
	StateSpeaking          State = "speaking"
	StateExecutingSequence State = "executing_sequence"
)

// Options configures a Machine.
type Options struct {
	// MoveInterval is the time one grid step takes.
	MoveInterval time.Duration

	// RepathInterval is how often pursue and flee recompute their path.
	RepathInterval time.Duration

	// PollInterval is how often wait_until re-evaluates its condition.
	PollInterval time.Duration

	// PursueTimeout applies to pursue actions that declare none.
	PursueTimeout time.Duration

	// SpeakDuration applies to speak actions that declare none.
	SpeakDuration time.Duration

	// ConverseDuration is how long a conversation occupies the machine
	// after the partner is reached.
	ConverseDuration time.Duration

	// SafeDistance applies to flee actions that declare none.
	SafeDistance float64

	// ObservationRadius bounds the nearby-entity scan while moving.
	ObservationRadius float64

	Logger logging.Logger

	// OnActionDone fires when an action settles. Cancelled actions never
	// fire it.
	OnActionDone func(action core.Action, success bool)

	// OnIdle fires when the machine returns to idle with the deduplicated
	// observations collected since the last idle.
	OnIdle func(observations []string)

	// OnConverse dispatches a conversation once the partner is reached.
	OnConverse func(target, topic string)
}

// Option customizes machine options.
type Option func(*Options)

// WithMoveInterval sets the time one grid step takes.
func WithMoveInterval(d time.Duration) Option {
	return func(o *Options) { o.MoveInterval = d }
}

// WithPollInterval sets the wait_until polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *Options) { o.PollInterval = d }
}

// WithLogger sets the machine logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCallbacks sets the settle and idle callbacks.
func WithCallbacks(onDone func(core.Action, bool), onIdle func([]string)) Option {
	return func(o *Options) {
		o.OnActionDone = onDone
		o.OnIdle = onIdle
	}
}

// WithConverseDispatch sets the conversation dispatch callback.
func WithConverseDispatch(fn func(target, topic string)) Option {
	return func(o *Options) { o.OnConverse = fn }
}

// Machine executes actions for a single agent. It is not safe for concurrent
// use; the owning agent drives it from its own tick.
type Machine struct {
	agentID string
	world   core.WorldQuery
	finder  core.Pathfinder
	mover   core.Mover
	eval    *condition.Evaluator
	opts    Options
	logger  logging.Logger

	state   State
	current core.Action
	queue   []core.Action

	path    []core.Position
	pathIdx int

	moveAccum   time.Duration
	repathAccum time.Duration
	pollAccum   time.Duration
	timer       time.Duration
	elapsed     time.Duration

	// converseReached marks that a converse_with pursuit caught its
	// partner and the conversation timer is running.
	converseReached bool

	observations map[string]struct{}
}

// NewMachine creates an idle machine for the named agent.
func NewMachine(agentID string, world core.WorldQuery, finder core.Pathfinder, mover core.Mover, eval *condition.Evaluator, optFns ...Option) *Machine {
	opts := Options{
		MoveInterval:      250 * time.Millisecond,
		RepathInterval:    2 * time.Second,
		PollInterval:      250 * time.Millisecond,
		PursueTimeout:     30 * time.Second,
		SpeakDuration:     2 * time.Second,
		ConverseDuration:  5 * time.Second,
		SafeDistance:      6.0,
		ObservationRadius: 5.0,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Machine{
		agentID:      agentID,
		world:        world,
		finder:       finder,
		mover:        mover,
		eval:         eval,
		opts:         opts,
		logger:       opts.Logger,
		state:        StateIdle,
		observations: make(map[string]struct{}),
	}
}

// State reports the current machine state.
func (m *Machine) State() State { return m.state }

// Busy reports whether an action is running or queued.
func (m *Machine) Busy() bool { return m.state != StateIdle || len(m.queue) > 0 }

// QueueLen reports the number of pending queued actions.
func (m *Machine) QueueLen() int { return len(m.queue) }

// Describe renders the current activity for progress reporting.
func (m *Machine) Describe() string {
	switch m.state {
	case StateTraveling, StatePursuing, StateFleeing:
		remaining := len(m.path) - m.pathIdx
		return fmt.Sprintf("%s (%d steps remaining)", m.state, remaining)
	case StateIdle:
		return string(StateIdle)
	default:
		return string(m.state)
	}
}

// Execute cancels any current activity and starts the given action. No
// completion callback fires for the cancelled action.
func (m *Machine) Execute(action core.Action) {
	if m.state != StateIdle {
		m.logger.Debug("cancelling current action",
			"agent", m.agentID,
			"state", string(m.state))
	}
	m.reset()

	if seq, ok := action.(core.SequenceAction); ok {
		m.queue = flatten(seq.Steps)
		m.advance()
		return
	}
	m.start(action)
}

// Cancel aborts the current action and queued continuations silently.
func (m *Machine) Cancel() {
	m.reset()
	m.state = StateIdle
}

// Tick advances the machine by elapsed simulated time.
func (m *Machine) Tick(elapsed time.Duration) {
	switch m.state {
	case StateIdle:
		return
	case StateWaiting, StateSpeaking, StateConversing:
		m.timer -= elapsed
		if m.timer <= 0 {
			m.settle(true)
		}
	case StateWaitingUntil:
		m.tickWaitUntil(elapsed)
	case StateTraveling, StatePursuing, StateFleeing:
		m.tickMovement(elapsed)
	}
}

func (m *Machine) tickWaitUntil(elapsed time.Duration) {
	a := m.current.(core.WaitUntilAction)
	m.elapsed += elapsed
	if a.Timeout > 0 && m.elapsed >= a.Timeout {
		m.settleOutcome(outcomeTimeout)
		return
	}
	m.pollAccum += elapsed
	if m.pollAccum < m.opts.PollInterval {
		return
	}
	m.pollAccum = 0
	if m.eval.Evaluate(a.Cond) {
		m.settle(true)
	}
}

func (m *Machine) tickMovement(elapsed time.Duration) {
	m.elapsed += elapsed
	m.repathAccum += elapsed

	if m.state == StatePursuing && !m.converseReached {
		timeout := m.pursueTimeout()
		if timeout > 0 && m.elapsed >= timeout {
			m.settleOutcome(outcomeTimeout)
			return
		}
	}

	m.moveAccum += elapsed
	for m.moveAccum >= m.opts.MoveInterval {
		m.moveAccum -= m.opts.MoveInterval
		if done := m.step(); done {
			return
		}
	}
}

// step performs one grid move. It returns true when the action settled.
func (m *Machine) step() bool {
	switch m.state {
	case StateTraveling:
		return m.stepTravel()
	case StatePursuing:
		return m.stepPursue()
	case StateFleeing:
		return m.stepFlee()
	}
	return false
}

func (m *Machine) stepTravel() bool {
	if m.pathIdx >= len(m.path) {
		m.settle(true)
		return true
	}
	next := m.path[m.pathIdx]
	if err := m.mover.MoveEntity(m.agentID, next); err != nil {
		// Another entity moved in to block the path. Re-path once; give
		// up if the destination became unreachable.
		dest := m.path[len(m.path)-1]
		self, ok := m.world.EntityPosition(m.agentID)
		if !ok {
			m.settle(false)
			return true
		}
		fresh := m.finder.FindPath(self, dest, m.agentID)
		if fresh == nil {
			m.logger.Debug("travel re-path failed",
				"agent", m.agentID,
				"error", core.ErrPathUnreachable.Error())
			m.settle(false)
			return true
		}
		m.path = fresh
		m.pathIdx = 0
		return false
	}
	m.pathIdx++
	m.observe()
	if m.pathIdx >= len(m.path) {
		m.settle(true)
		return true
	}
	return false
}

func (m *Machine) stepPursue() bool {
	target := m.pursueTarget()
	if m.world.Adjacent(m.agentID, target) {
		m.onCaught()
		return true
	}

	if m.pathIdx >= len(m.path) || m.repathAccum >= m.opts.RepathInterval {
		m.repathAccum = 0
		path, ok := m.pathToward(target)
		if !ok {
			m.logger.Debug("pursue target unreachable",
				"agent", m.agentID,
				"target", target,
				"error", core.ErrPathUnreachable.Error())
			m.settle(false)
			return true
		}
		m.path = path
		m.pathIdx = 0
	}
	if m.pathIdx >= len(m.path) {
		// Already as close as the path gets; wait for the target to move.
		return false
	}

	next := m.path[m.pathIdx]
	if err := m.mover.MoveEntity(m.agentID, next); err != nil {
		m.path = nil
		m.pathIdx = 0
		return false
	}
	m.pathIdx++
	m.observe()
	if m.world.Adjacent(m.agentID, target) {
		m.onCaught()
		return true
	}
	return false
}

func (m *Machine) stepFlee() bool {
	a := m.current.(core.FleeFromAction)
	safe := a.SafeDistance
	if safe <= 0 {
		safe = m.opts.SafeDistance
	}
	dist, ok := m.world.Distance(m.agentID, a.Threat)
	if !ok {
		// Threat gone; that counts as safe.
		m.settle(true)
		return true
	}
	if dist >= safe {
		m.settle(true)
		return true
	}

	self, ok := m.world.EntityPosition(m.agentID)
	if !ok {
		m.settle(false)
		return true
	}
	threat, _ := m.world.EntityPosition(a.Threat)

	var best core.Position
	bestDist := -1.0
	for _, n := range self.Neighbors() {
		if !m.world.Walkable(n) {
			continue
		}
		d := n.Distance(threat)
		if d > bestDist {
			bestDist = d
			best = n
		}
	}
	if bestDist < 0 {
		// Boxed in with nowhere to go.
		m.settle(false)
		return true
	}
	if bestDist <= self.Distance(threat) {
		// No neighbor improves; hold position this step.
		return false
	}
	if err := m.mover.MoveEntity(m.agentID, best); err != nil {
		return false
	}
	m.observe()
	return false
}

func (m *Machine) onCaught() {
	if cw, ok := m.current.(core.ConverseWithAction); ok && !m.converseReached {
		m.converseReached = true
		m.state = StateConversing
		m.timer = m.opts.ConverseDuration
		if m.opts.OnConverse != nil {
			m.opts.OnConverse(cw.Target, cw.Topic)
		}
		return
	}
	m.settleOutcome(outcomeCatch)
}

func (m *Machine) pursueTarget() string {
	switch a := m.current.(type) {
	case core.PursueAction:
		return a.Target
	case core.ConverseWithAction:
		return a.Target
	}
	return ""
}

func (m *Machine) pursueTimeout() time.Duration {
	if a, ok := m.current.(core.PursueAction); ok && a.Timeout > 0 {
		return a.Timeout
	}
	return m.opts.PursueTimeout
}

// start begins executing a single non-sequence action.
func (m *Machine) start(action core.Action) {
	m.current = action
	m.elapsed = 0
	m.moveAccum = 0
	m.repathAccum = 0
	m.pollAccum = 0
	m.path = nil
	m.pathIdx = 0
	m.converseReached = false

	m.logger.Debug("starting action",
		"agent", m.agentID,
		"kind", core.ActionKind(action))

	switch a := action.(type) {
	case core.MoveAction:
		m.startMove(a)
	case core.WaitAction:
		m.state = StateWaiting
		m.timer = a.Duration
		if m.timer <= 0 {
			m.settle(true)
		}
	case core.SpeakAction:
		m.state = StateSpeaking
		m.timer = a.Duration
		if m.timer <= 0 {
			m.timer = m.opts.SpeakDuration
		}
		m.logger.Info("speaking", "agent", m.agentID, "text", a.Text)
	case core.TravelToAction:
		m.startTravel(a)
	case core.PursueAction:
		m.state = StatePursuing
	case core.FleeFromAction:
		m.state = StateFleeing
	case core.WaitUntilAction:
		if m.eval.Evaluate(a.Cond) {
			m.settle(true)
			return
		}
		m.state = StateWaitingUntil
	case core.SayToAction:
		// Expand into a pursuit chained with speech.
		m.start(core.PursueAction{
			Target: a.Target,
			OnCatch: []core.Action{core.SpeakAction{
				Text:        a.Text,
				OnDelivered: a.OnDelivered,
			}},
			OnFail: a.OnFail,
		})
	case core.ConverseWithAction:
		m.state = StatePursuing
	case core.SequenceAction:
		m.queue = append(flatten(a.Steps), m.queue...)
		m.state = StateExecutingSequence
		m.advance()
	}
}

func (m *Machine) startMove(a core.MoveAction) {
	self, ok := m.world.EntityPosition(m.agentID)
	if !ok {
		m.settle(false)
		return
	}
	dest := core.Position{X: self.X + a.DX, Y: self.Y + a.DY}
	if !m.world.Walkable(dest) {
		m.settle(false)
		return
	}
	m.state = StateTraveling
	m.path = []core.Position{dest}
}

func (m *Machine) startTravel(a core.TravelToAction) {
	self, ok := m.world.EntityPosition(m.agentID)
	if !ok {
		m.settle(false)
		return
	}
	path := m.finder.FindPath(self, a.Dest, m.agentID)
	if path == nil {
		// Destination blocked or unreachable; fall back to the nearest
		// reachable adjacent tile.
		path = m.bestAdjacentPath(self, a.Dest)
	}
	if path == nil {
		m.logger.Debug("travel destination unreachable",
			"agent", m.agentID,
			"error", core.ErrPathUnreachable.Error())
		m.settle(false)
		return
	}
	if len(path) == 0 {
		m.settle(true)
		return
	}
	m.state = StateTraveling
	m.path = path
}

// bestAdjacentPath finds the shortest path to any walkable neighbor of dest.
func (m *Machine) bestAdjacentPath(from, dest core.Position) []core.Position {
	var best []core.Position
	for _, n := range dest.Neighbors() {
		if !m.world.Walkable(n) {
			continue
		}
		if n == from {
			return []core.Position{}
		}
		p := m.finder.FindPath(from, n, m.agentID)
		if p == nil {
			continue
		}
		if best == nil || len(p) < len(best) {
			best = p
		}
	}
	return best
}

// pathToward computes a path ending adjacent to the named entity.
func (m *Machine) pathToward(target string) ([]core.Position, bool) {
	self, ok := m.world.EntityPosition(m.agentID)
	if !ok {
		return nil, false
	}
	tp, ok := m.world.EntityPosition(target)
	if !ok {
		return nil, false
	}
	path := m.bestAdjacentPath(self, tp)
	if path == nil {
		return nil, false
	}
	return path, true
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFail
	outcomeTimeout
	outcomeCatch
)

func (m *Machine) settle(success bool) {
	if success {
		m.settleOutcome(outcomeSuccess)
	} else {
		m.settleOutcome(outcomeFail)
	}
}

// settleOutcome finishes the current action, prepends its continuations for
// the outcome, and advances the queue.
func (m *Machine) settleOutcome(oc outcome) {
	action := m.current
	success := oc == outcomeSuccess || oc == outcomeCatch

	cont := continuations(action, oc)
	if len(cont) > 0 {
		m.queue = append(flatten(cont), m.queue...)
	}

	m.current = nil
	m.state = StateIdle
	m.path = nil
	m.pathIdx = 0
	m.converseReached = false

	m.logger.Debug("action settled",
		"agent", m.agentID,
		"kind", core.ActionKind(action),
		"success", success)

	if m.opts.OnActionDone != nil {
		m.opts.OnActionDone(action, success)
	}
	m.advance()
}

// advance starts the next queued action, or goes idle and surfaces the
// collected observations.
func (m *Machine) advance() {
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.start(next)
		return
	}
	m.state = StateIdle
	obs := m.drainObservations()
	if m.opts.OnIdle != nil {
		m.opts.OnIdle(obs)
	}
}

// continuations returns the declared continuation list for an outcome.
func continuations(action core.Action, oc outcome) []core.Action {
	switch a := action.(type) {
	case core.MoveAction:
		if oc == outcomeSuccess {
			return a.OnArrive
		}
		return a.OnFail
	case core.WaitAction:
		if oc == outcomeSuccess {
			return a.OnComplete
		}
	case core.SpeakAction:
		if oc == outcomeSuccess {
			return a.OnDelivered
		}
	case core.TravelToAction:
		if oc == outcomeSuccess {
			return a.OnArrive
		}
		return a.OnFail
	case core.PursueAction:
		switch oc {
		case outcomeCatch:
			return a.OnCatch
		case outcomeTimeout:
			return a.OnTimeout
		default:
			return a.OnFail
		}
	case core.FleeFromAction:
		if oc == outcomeSuccess {
			return a.OnSafe
		}
		return a.OnFail
	case core.WaitUntilAction:
		if oc == outcomeSuccess {
			return a.OnComplete
		}
		if oc == outcomeTimeout {
			return a.OnTimeout
		}
	case core.SayToAction:
		if oc == outcomeSuccess {
			return a.OnDelivered
		}
		return a.OnFail
	case core.ConverseWithAction:
		if oc == outcomeSuccess || oc == outcomeCatch {
			return a.OnComplete
		}
		return a.OnFail
	}
	return nil
}

// observe records nearby entities into the deduplicated observation set.
func (m *Machine) observe() {
	self, ok := m.world.EntityPosition(m.agentID)
	if !ok {
		return
	}
	for _, name := range m.world.EntitiesWithin(self, m.opts.ObservationRadius, m.agentID) {
		m.observations[name] = struct{}{}
	}
}

func (m *Machine) drainObservations() []string {
	if len(m.observations) == 0 {
		return nil
	}
	out := make([]string, 0, len(m.observations))
	for name := range m.observations {
		out = append(out, name)
	}
	m.observations = make(map[string]struct{})
	return out
}

func (m *Machine) reset() {
	m.current = nil
	m.queue = nil
	m.path = nil
	m.pathIdx = 0
	m.moveAccum = 0
	m.repathAccum = 0
	m.pollAccum = 0
	m.timer = 0
	m.elapsed = 0
	m.converseReached = false
	m.state = StateIdle
}

// flatten expands nested sequences into a flat action list.
func flatten(actions []core.Action) []core.Action {
	out := make([]core.Action, 0, len(actions))
	for _, a := range actions {
		if seq, ok := a.(core.SequenceAction); ok {
			out = append(out, flatten(seq.Steps)...)
			continue
		}
		out = append(out, a)
	}
	return out
}
