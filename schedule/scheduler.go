package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gridmind/gridmind/core"
	"github.com/gridmind/gridmind/logging"
)

// Result carries the outcome of a scheduled backend call. Exactly one of
// Response and Err is set.
type Result struct {
	Response *core.BackendResponse
	Err      error
}

// request is a pending backend call in the queue.
type request struct {
	id       string
	priority int
	payload  core.BackendRequest
	result   chan Result
	enqueued time.Time
}

// Options configures a Scheduler.
type Options struct {
	// QueueTimeout is how long a request may wait before it is rejected
	// with core.ErrQueueTimeout.
	QueueTimeout time.Duration

	// DefaultCooldown is the pause applied after a rate-limit error that
	// carries no retry hint.
	DefaultCooldown time.Duration

	// CooldownBuffer is added on top of any cooldown before dispatch
	// resumes.
	CooldownBuffer time.Duration

	// DispatchDelay, when positive, makes the dispatch loop pause after
	// waking from idle so that a burst of near-simultaneous enqueues is
	// ordered by priority rather than by arrival.
	DispatchDelay time.Duration

	// Pacer, when set, bounds the steady-state dispatch rate.
	Pacer *rate.Limiter

	Logger logging.Logger
}

// Option customizes scheduler options.
type Option func(*Options)

// WithQueueTimeout sets the maximum time a request may wait in the queue.
func WithQueueTimeout(d time.Duration) Option {
	return func(o *Options) { o.QueueTimeout = d }
}

// WithDispatchDelay sets the idle-wake coalescing delay.
func WithDispatchDelay(d time.Duration) Option {
	return func(o *Options) { o.DispatchDelay = d }
}

// WithPacer bounds the steady-state dispatch rate.
func WithPacer(l *rate.Limiter) Option {
	return func(o *Options) { o.Pacer = l }
}

// WithLogger sets the scheduler logger.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// Scheduler owns the single in-flight backend call. Create one with New and
// share it between every component that needs the backend.
type Scheduler struct {
	backend core.ReasoningBackend
	opts    Options
	logger  logging.Logger

	mu            sync.Mutex
	queue         []*request
	running       bool
	cooldownUntil time.Time
	stopped       bool

	ctx    context.Context
	cancel context.CancelFunc

	totalCalls atomic.Int64
	rejected   atomic.Int64
}

// New creates a scheduler in front of the given backend.
func New(backend core.ReasoningBackend, optFns ...Option) *Scheduler {
	opts := Options{
		QueueTimeout:    60 * time.Second,
		DefaultCooldown: 5 * time.Second,
		CooldownBuffer:  500 * time.Millisecond,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		backend: backend,
		opts:    opts,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue queues a backend call at the given priority and returns a channel
// that receives exactly one Result. Higher priority dispatches first; within
// a priority, earlier enqueues dispatch first.
func (s *Scheduler) Enqueue(priority int, payload core.BackendRequest) <-chan Result {
	req := &request{
		id:       uuid.NewString(),
		priority: priority,
		payload:  payload,
		result:   make(chan Result, 1),
		enqueued: time.Now(),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		req.result <- Result{Err: core.ErrSchedulerStopped}
		return req.result
	}

	// Sorted insert, descending priority, stable for equal priority.
	idx := len(s.queue)
	for i, q := range s.queue {
		if q.priority < priority {
			idx = i
			break
		}
	}
	s.queue = append(s.queue, nil)
	copy(s.queue[idx+1:], s.queue[idx:])
	s.queue[idx] = req

	wasIdle := !s.running
	if wasIdle {
		s.running = true
	}
	s.mu.Unlock()

	s.logger.Debug("request enqueued", "request_id", req.id, "priority", priority)

	if wasIdle {
		go s.loop()
	}
	return req.result
}

// Call enqueues a request and blocks until it resolves or ctx is done.
func (s *Scheduler) Call(ctx context.Context, priority int, payload core.BackendRequest) (*core.BackendResponse, error) {
	res := s.Enqueue(priority, payload)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-res:
		return r.Response, r.Err
	}
}

// QueueDepth reports the number of requests currently waiting.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// TotalCalls reports how many backend calls have been attempted.
func (s *Scheduler) TotalCalls() int64 {
	return s.totalCalls.Load()
}

// Stop rejects all pending requests with core.ErrSchedulerStopped and
// prevents further enqueues. In-flight calls are cancelled via context.
func (s *Scheduler) Stop() {
	s.cancel()

	s.mu.Lock()
	s.stopped = true
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, req := range pending {
		req.result <- Result{Err: core.ErrSchedulerStopped}
	}
}

// loop drains the queue one call at a time. It exits when the queue is
// empty; the next Enqueue starts a fresh loop.
func (s *Scheduler) loop() {
	if s.opts.DispatchDelay > 0 {
		select {
		case <-time.After(s.opts.DispatchDelay):
		case <-s.ctx.Done():
			return
		}
	}

	for {
		s.mu.Lock()
		wait := time.Until(s.cooldownUntil)
		s.mu.Unlock()
		if wait > 0 {
			select {
			case <-time.After(wait + s.opts.CooldownBuffer):
			case <-s.ctx.Done():
				return
			}
		}

		s.mu.Lock()
		s.expireLocked(time.Now())
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		req := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.dispatch(req)

		select {
		case <-s.ctx.Done():
			return
		default:
		}
	}
}

// expireLocked rejects requests that have waited longer than QueueTimeout.
// Caller holds s.mu.
func (s *Scheduler) expireLocked(now time.Time) {
	kept := s.queue[:0]
	for _, req := range s.queue {
		if now.Sub(req.enqueued) > s.opts.QueueTimeout {
			s.rejected.Add(1)
			s.logger.Warn("request expired in queue",
				"request_id", req.id,
				"priority", req.priority,
				"waited", now.Sub(req.enqueued).String())
			req.result <- Result{Err: core.ErrQueueTimeout}
			continue
		}
		kept = append(kept, req)
	}
	s.queue = kept
}

func (s *Scheduler) dispatch(req *request) {
	if s.opts.Pacer != nil {
		if err := s.opts.Pacer.Wait(s.ctx); err != nil {
			req.result <- Result{Err: core.ErrSchedulerStopped}
			return
		}
	}

	start := time.Now()
	resp, err := s.backend.Complete(s.ctx, req.payload)
	latency := time.Since(start)
	s.totalCalls.Add(1)

	if err != nil {
		if rl, ok := core.AsRateLimit(err); ok {
			cooldown := rl.RetryAfter
			if cooldown <= 0 {
				cooldown = s.opts.DefaultCooldown
			}
			s.mu.Lock()
			s.cooldownUntil = time.Now().Add(cooldown)
			s.mu.Unlock()
			s.logger.Warn("backend rate limited",
				"request_id", req.id,
				"cooldown", cooldown.String())
		} else {
			s.logger.Error("backend call failed",
				"request_id", req.id,
				"error", err.Error())
		}
		req.result <- Result{Err: err}
		return
	}

	resp.Latency = latency
	if resp.Usage.TotalTokens > 0 {
		s.logger.Debug("backend call complete",
			"request_id", req.id,
			"priority", req.priority,
			"latency", latency.String(),
			"tokens", resp.Usage.TotalTokens)
	}
	req.result <- Result{Response: resp}
}
