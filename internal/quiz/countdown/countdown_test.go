package countdown

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	ch      chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

type tickers struct {
	mu  sync.Mutex
	all []*fakeTicker
	new chan *fakeTicker
}

func newTickers() *tickers {
	return &tickers{new: make(chan *fakeTicker, 8)}
}

func (ts *tickers) factory(time.Duration) Ticker {
	t := &fakeTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	ts.mu.Lock()
	ts.all = append(ts.all, t)
	ts.mu.Unlock()
	ts.new <- t
	return t
}

type event struct {
	kind      string
	token     string
	remaining time.Duration
}

type recorder struct {
	events chan event
}

func (r *recorder) Tick(_ context.Context, _ int64, token string, remaining time.Duration) {
	r.events <- event{kind: "tick", token: token, remaining: remaining}
}

func (r *recorder) Timeout(_ context.Context, _ int64, token string) {
	r.events <- event{kind: "timeout", token: token}
}

func TestCountdownTicksThenExpiresOnce(t *testing.T) {
	ts := newTickers()
	s := New(Options{Window: 3 * time.Second, Tick: time.Second, NewTicker: ts.factory})
	rec := &recorder{events: make(chan event, 8)}

	s.Start(1, "t1", rec)
	tk := <-ts.new
	assert.Equal(t, 1, s.Active())

	tk.ch <- time.Now()
	assert.Equal(t, event{kind: "tick", token: "t1", remaining: 2 * time.Second}, <-rec.events)
	tk.ch <- time.Now()
	assert.Equal(t, event{kind: "tick", token: "t1", remaining: time.Second}, <-rec.events)
	tk.ch <- time.Now()
	assert.Equal(t, event{kind: "timeout", token: "t1"}, <-rec.events)

	<-tk.stopped
	assert.Equal(t, 0, s.Active())
	s.Stop()
	assert.Empty(t, rec.events)
}

func TestStartReplacesPriorRun(t *testing.T) {
	ts := newTickers()
	s := New(Options{Window: 2 * time.Second, Tick: time.Second, NewTicker: ts.factory})
	rec := &recorder{events: make(chan event, 8)}

	s.Start(1, "old", rec)
	first := <-ts.new
	s.Start(1, "new", rec)
	second := <-ts.new

	<-first.stopped
	assert.Equal(t, 1, s.Active())

	second.ch <- time.Now()
	assert.Equal(t, "new", (<-rec.events).token)
	second.ch <- time.Now()
	ev := <-rec.events
	assert.Equal(t, "timeout", ev.kind)
	assert.Equal(t, "new", ev.token)
	s.Stop()
}

func TestCancelStopsWithoutTimeout(t *testing.T) {
	ts := newTickers()
	s := New(Options{Window: time.Second, Tick: time.Second, NewTicker: ts.factory})
	rec := &recorder{events: make(chan event, 8)}

	s.Start(7, "t", rec)
	tk := <-ts.new
	s.Cancel(7)
	s.Cancel(7)
	<-tk.stopped

	assert.Equal(t, 0, s.Active())
	s.Stop()
	assert.Empty(t, rec.events)
}

func TestRealTicker(t *testing.T) {
	s := New(Options{Window: 20 * time.Millisecond, Tick: 5 * time.Millisecond})
	rec := &recorder{events: make(chan event, 8)}
	s.Start(1, "real", rec)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-rec.events:
			if ev.kind == "timeout" {
				s.Stop()
				return
			}
		case <-deadline:
			require.FailNow(t, "countdown did not expire")
		}
	}
}
