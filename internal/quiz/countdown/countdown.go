// Package countdown runs one per-user question countdown that ticks at a fixed
// interval and expires once.
package countdown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
)

// Handler receives countdown events. Calls for one run are sequential.
type Handler interface {
	Tick(ctx context.Context, userID int64, token string, remaining time.Duration)
	Timeout(ctx context.Context, userID int64, token string)
}

// Ticker abstracts time.Ticker for tests.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ *time.Ticker }

func (t realTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// Options configures a Scheduler.
type Options struct {
	Window time.Duration
	Tick   time.Duration
	// NewTicker defaults to NewTicker.
	NewTicker func(d time.Duration) Ticker
}

type run struct {
	token  string
	cancel context.CancelFunc
}

// Scheduler owns at most one countdown per user.
type Scheduler struct {
	window    time.Duration
	tick      time.Duration
	newTicker func(d time.Duration) Ticker

	mu   sync.Mutex
	runs map[int64]*run
	wg   sync.WaitGroup
}

// New returns a Scheduler; zero durations default to a 30s window and 1s tick.
func New(opts Options) *Scheduler {
	if opts.Window <= 0 {
		opts.Window = 30 * time.Second
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	return &Scheduler{
		window:    opts.Window,
		tick:      opts.Tick,
		newTicker: opts.NewTicker,
		runs:      make(map[int64]*run),
	}
}

// Window returns the countdown length.
func (s *Scheduler) Window() time.Duration { return s.window }

// Start begins a countdown for userID tagged with token, cancelling any run
// the user already has. It never blocks on handler calls.
func (s *Scheduler) Start(userID int64, token string, h Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{token: token, cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.runs[userID]; ok {
		prev.cancel()
	}
	s.runs[userID] = r
	s.mu.Unlock()

	ticker := s.newTicker(s.tick)
	s.wg.Add(1)
	go s.loop(ctx, userID, r, ticker, h)
}

func (s *Scheduler) loop(ctx context.Context, userID int64, r *run, ticker Ticker, h Handler) {
	defer s.wg.Done()
	defer ticker.Stop()

	remaining := s.window
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		if ctx.Err() != nil {
			return
		}
		remaining -= s.tick
		if remaining > 0 {
			h.Tick(ctx, userID, r.token, remaining)
			continue
		}

		if !s.remove(userID, r) {
			return
		}
		logger.Debug(ctx, "quiz.countdown", "countdown.expire",
			slog.Int64("user_id", userID),
			slog.String("token", r.token),
		)
		h.Timeout(context.WithoutCancel(ctx), userID, r.token)
		return
	}
}

// remove drops r if it is still the user's current run.
func (s *Scheduler) remove(userID int64, r *run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runs[userID] != r {
		return false
	}
	delete(s.runs, userID)
	r.cancel()
	return true
}

// Cancel stops the user's countdown, if any. It does not wait for the run's
// goroutine.
func (s *Scheduler) Cancel(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[userID]; ok {
		r.cancel()
		delete(s.runs, userID)
	}
}

// Active returns the number of running countdowns.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Stop cancels every countdown and waits for their goroutines.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	for id, r := range s.runs {
		r.cancel()
		delete(s.runs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
