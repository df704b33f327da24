package schedule

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmind/gridmind/core"
)

// recordingBackend records the order in which prompts arrive.
type recordingBackend struct {
	mu      sync.Mutex
	prompts []string
	gate    chan struct{}
	times   []time.Time
	fail    func(prompt string) error
}

func (b *recordingBackend) Complete(ctx context.Context, req core.BackendRequest) (*core.BackendResponse, error) {
	b.mu.Lock()
	b.prompts = append(b.prompts, req.Prompt)
	b.times = append(b.times, time.Now())
	fail := b.fail
	b.mu.Unlock()

	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(req.Prompt); err != nil {
			return nil, err
		}
	}
	return &core.BackendResponse{
		Text:  "ok:" + req.Prompt,
		Usage: core.TokenUsage{TotalTokens: 10},
	}, nil
}

func (b *recordingBackend) seen() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.prompts))
	copy(out, b.prompts)
	return out
}

func TestBurstOrdersByPriority(t *testing.T) {
	backend := &recordingBackend{}
	s := New(backend, WithDispatchDelay(50*time.Millisecond))
	defer s.Stop()

	r1 := s.Enqueue(1, core.BackendRequest{Prompt: "low"})
	r2 := s.Enqueue(5, core.BackendRequest{Prompt: "high"})
	r3 := s.Enqueue(3, core.BackendRequest{Prompt: "mid"})

	for _, ch := range []<-chan Result{r1, r2, r3} {
		res := <-ch
		require.NoError(t, res.Err)
		require.NotNil(t, res.Response)
	}

	assert.Equal(t, []string{"high", "mid", "low"}, backend.seen())
}

func TestFIFOWithinEqualPriority(t *testing.T) {
	backend := &recordingBackend{}
	s := New(backend, WithDispatchDelay(50*time.Millisecond))
	defer s.Stop()

	r1 := s.Enqueue(3, core.BackendRequest{Prompt: "a"})
	r2 := s.Enqueue(3, core.BackendRequest{Prompt: "b"})
	r3 := s.Enqueue(3, core.BackendRequest{Prompt: "c"})

	for _, ch := range []<-chan Result{r1, r2, r3} {
		res := <-ch
		require.NoError(t, res.Err)
	}

	assert.Equal(t, []string{"a", "b", "c"}, backend.seen())
}

func TestPriorityReorderWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	backend := &recordingBackend{gate: gate}
	s := New(backend)
	defer s.Stop()

	first := s.Enqueue(2, core.BackendRequest{Prompt: "first"})

	// Wait for the first call to be in flight, then queue behind it.
	require.Eventually(t, func() bool {
		return len(backend.seen()) == 1
	}, time.Second, 5*time.Millisecond)

	low := s.Enqueue(1, core.BackendRequest{Prompt: "low"})
	high := s.Enqueue(5, core.BackendRequest{Prompt: "high"})
	close(gate)

	for _, ch := range []<-chan Result{first, low, high} {
		res := <-ch
		require.NoError(t, res.Err)
	}

	assert.Equal(t, []string{"first", "high", "low"}, backend.seen())
}

func TestSingleCallInFlight(t *testing.T) {
	gate := make(chan struct{})
	backend := &recordingBackend{gate: gate}
	s := New(backend)
	defer s.Stop()

	s.Enqueue(3, core.BackendRequest{Prompt: "a"})
	s.Enqueue(3, core.BackendRequest{Prompt: "b"})

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, backend.seen(), 1, "second call must wait for the first")
	close(gate)
}

func TestQueueTimeoutExpiresStale(t *testing.T) {
	gate := make(chan struct{})
	backend := &recordingBackend{gate: gate}
	s := New(backend, WithQueueTimeout(30*time.Millisecond))
	defer s.Stop()

	first := s.Enqueue(3, core.BackendRequest{Prompt: "first"})
	require.Eventually(t, func() bool {
		return len(backend.seen()) == 1
	}, time.Second, 5*time.Millisecond)

	stale := s.Enqueue(3, core.BackendRequest{Prompt: "stale"})

	time.Sleep(60 * time.Millisecond)
	close(gate)

	res := <-first
	require.NoError(t, res.Err)

	staleRes := <-stale
	require.ErrorIs(t, staleRes.Err, core.ErrQueueTimeout)
	assert.Equal(t, []string{"first"}, backend.seen())
}

func TestRateLimitCooldown(t *testing.T) {
	var calls int
	var mu sync.Mutex
	backend := &recordingBackend{}
	backend.fail = func(prompt string) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return &core.RateLimitError{RetryAfter: 80 * time.Millisecond}
		}
		return nil
	}
	s := New(backend)
	defer s.Stop()

	first := s.Enqueue(3, core.BackendRequest{Prompt: "limited"})
	second := s.Enqueue(3, core.BackendRequest{Prompt: "retry"})

	res1 := <-first
	var rl *core.RateLimitError
	require.ErrorAs(t, res1.Err, &rl)

	res2 := <-second
	require.NoError(t, res2.Err)

	times := func() []time.Time {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		out := make([]time.Time, len(backend.times))
		copy(out, backend.times)
		return out
	}()
	require.Len(t, times, 2)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 80*time.Millisecond)
}

func TestErrorRejectsWithoutRetry(t *testing.T) {
	backend := &recordingBackend{}
	backend.fail = func(prompt string) error {
		return assert.AnError
	}
	s := New(backend)
	defer s.Stop()

	res := <-s.Enqueue(3, core.BackendRequest{Prompt: "boom"})
	require.ErrorIs(t, res.Err, assert.AnError)
	assert.Len(t, backend.seen(), 1)
}

func TestStopRejectsPending(t *testing.T) {
	gate := make(chan struct{})
	backend := &recordingBackend{gate: gate}
	s := New(backend)

	s.Enqueue(3, core.BackendRequest{Prompt: "in-flight"})
	require.Eventually(t, func() bool {
		return len(backend.seen()) == 1
	}, time.Second, 5*time.Millisecond)

	pending := s.Enqueue(3, core.BackendRequest{Prompt: "pending"})
	s.Stop()
	close(gate)

	res := <-pending
	require.ErrorIs(t, res.Err, core.ErrSchedulerStopped)

	after := <-s.Enqueue(3, core.BackendRequest{Prompt: "late"})
	require.ErrorIs(t, after.Err, core.ErrSchedulerStopped)
}

func TestCallRespectsContext(t *testing.T) {
	gate := make(chan struct{})
	backend := &recordingBackend{gate: gate}
	s := New(backend)
	defer s.Stop()
	defer close(gate)

	s.Enqueue(5, core.BackendRequest{Prompt: "blocker"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.Call(ctx, 1, core.BackendRequest{Prompt: "waiting"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatencyAndQueueDepth(t *testing.T) {
	backend := &recordingBackend{}
	s := New(backend)
	defer s.Stop()

	resp, err := s.Call(context.Background(), 3, core.BackendRequest{Prompt: "hello"})
	require.NoError(t, err)
	assert.Greater(t, resp.Latency, time.Duration(0))
	assert.Equal(t, int64(1), s.TotalCalls())
	assert.Equal(t, 0, s.QueueDepth())
}
