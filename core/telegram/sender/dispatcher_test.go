package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func TestDispatcherPreservesPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{Workers: 3, QueueSize: 30})

	var mu sync.Mutex
	got := map[int64][]int{}
	for i := 0; i < 10; i++ {
		for _, chat := range []int64{1, 2, -7} {
			i, chat := i, chat
			err := d.Enqueue(context.Background(), Job{Action: "send.text", ChatID: chat, Run: func() error {
				mu.Lock()
				got[chat] = append(got[chat], i)
				mu.Unlock()
				return nil
			}})
			if err != nil {
				t.Fatalf("enqueue: %v", err)
			}
		}
	}
	d.Close()

	for chat, seq := range got {
		if len(seq) != 10 {
			t.Fatalf("chat %d: got %d jobs", chat, len(seq))
		}
		for i, v := range seq {
			if v != i {
				t.Fatalf("chat %d out of order: %v", chat, seq)
			}
		}
	}
}

func TestDispatcherRetriesFlood(t *testing.T) {
	rec := &sleepRecorder{}
	d := NewDispatcher(Options{Workers: 1, Sleep: rec.sleep})

	calls := 0
	done := make(chan struct{})
	err := d.Enqueue(context.Background(), Job{Action: "send.question", ChatID: 5, Run: func() error {
		calls++
		if calls < 3 {
			return tele.FloodError{RetryAfter: 2}
		}
		close(done)
		return nil
	}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-done
	d.Close()

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(rec.waits) != 2 || rec.waits[0] != 2*time.Second {
		t.Fatalf("unexpected waits %v", rec.waits)
	}
	if d.ErrorCount() != 0 {
		t.Fatalf("unexpected errors %d", d.ErrorCount())
	}
}

func TestDispatcherNetworkRetryIsBounded(t *testing.T) {
	rec := &sleepRecorder{}
	d := NewDispatcher(Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Second, Sleep: rec.sleep})

	calls := 0
	dial := &net.OpError{Op: "dial", Err: errors.New("refused")}
	if err := d.Enqueue(context.Background(), Job{Action: "send.text", Run: func() error {
		calls++
		return dial
	}}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	d.Close()

	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(rec.waits) != 2 || rec.waits[1] != 2*time.Second {
		t.Fatalf("expected linear backoff, got %v", rec.waits)
	}
	if d.ErrorCount() != 1 {
		t.Fatalf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestDispatcherBestEffortDropsWhenFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})

	blocker := Job{Action: "send.text", Run: func() error {
		close(started)
		<-release
		return nil
	}}
	if err := d.Enqueue(context.Background(), blocker); err != nil {
		t.Fatalf("enqueue blocker: %v", err)
	}
	<-started
	fill := Job{Action: "edit.question", BestEffort: true, Run: func() error { return nil }}
	if err := d.Enqueue(context.Background(), fill); err != nil {
		t.Fatalf("first best-effort job should fit: %v", err)
	}
	if err := d.Enqueue(context.Background(), fill); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	close(release)
	d.Close()

	if err := d.Enqueue(context.Background(), fill); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
}
