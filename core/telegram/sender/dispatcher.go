package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/metrics"
	"github.com/m3rciful/quizbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned for best-effort jobs when their shard is saturated.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job, flood waits included.
	MaxDuration time.Duration
	// MaxFloodRetries bounds how many 429 responses a job may absorb.
	MaxFloodRetries int
	// Sleep waits between attempts; tests replace it to avoid real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Job is a single outbound Telegram call.
type Job struct {
	Action   string
	Endpoint string
	// ChatID selects the shard; jobs for one chat run in submission order.
	ChatID int64
	// BestEffort jobs are dropped instead of blocking when the shard is full,
	// and their failures are logged at debug.
	BestEffort bool
	Run        func() error
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Each worker owns one shard so per-chat ordering survives retries.
type Dispatcher struct {
	opts   Options
	shards []chan queued
	stop   chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 30 * time.Second
	}
	if opts.MaxFloodRetries <= 0 {
		opts.MaxFloodRetries = 5
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}

	d := &Dispatcher{
		opts:   opts,
		shards: make([]chan queued, opts.Workers),
		stop:   make(chan struct{}),
	}
	perShard := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan queued, perShard)
		go d.worker(d.shards[i])
	}
	return d
}

// FromConfig converts millisecond config values into Options.
func FromConfig(queueSize, workers, maxRetries, backoffMS, maxDurationMS, maxFlood int) Options {
	return Options{
		QueueSize:       queueSize,
		Workers:         workers,
		MaxRetries:      maxRetries,
		RetryBackoff:    time.Duration(backoffMS) * time.Millisecond,
		MaxDuration:     time.Duration(maxDurationMS) * time.Millisecond,
		MaxFloodRetries: maxFlood,
	}
}

// Enqueue schedules j on its chat's shard. Regular jobs wait for room;
// best-effort jobs fail fast with ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}

	q := queued{ctx: context.WithoutCancel(ctx), Job: j}
	shard := d.shards[d.shardFor(j.ChatID)]
	if j.BestEffort {
		select {
		case shard <- q:
			metrics.QueueDepth.Inc()
			return nil
		default:
			metrics.Sends.WithLabelValues(j.Action, "dropped").Inc()
			return ErrQueueFull
		}
	}
	select {
	case shard <- q:
		metrics.QueueDepth.Inc()
		return nil
	case <-d.stop:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shardFor(chatID int64) int {
	n := int64(len(d.shards))
	idx := chatID % n
	if idx < 0 {
		idx += n
	}
	return int(idx)
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		for _, s := range d.shards {
			close(s)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(in <-chan queued) {
	defer d.wg.Done()
	for q := range in {
		metrics.QueueDepth.Dec()
		d.handle(q)
	}
}

func (d *Dispatcher) handle(q queued) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempt, floods := 0, 0
	for {
		attempt++
		err := q.Run()
		if err == nil {
			metrics.Sends.WithLabelValues(q.Action, "ok").Inc()
			logger.Debug(q.ctx, "tg.sender", "send.success",
				append(jobAttrs(q), slog.Int("attempts", attempt), slog.Duration("duration", logger.Took(start)))...)
			return
		}

		wait, reason, ok := d.retryPlan(err, attempt, floods)
		if !ok {
			d.fail(q, err, attempt, start)
			return
		}
		if reason == "flood" {
			floods++
		}
		metrics.SendRetries.WithLabelValues(reason).Inc()
		logger.Debug(q.ctx, "tg.sender", "send.retry",
			append(jobAttrs(q),
				slog.String("reason", reason),
				slog.Int("attempts", attempt),
				slog.Duration("backoff", wait),
			)...)

		if err := d.opts.Sleep(ctx, wait); err != nil {
			d.fail(q, err, attempt, start)
			return
		}
	}
}

// retryPlan decides whether err warrants another attempt and how long to wait.
func (d *Dispatcher) retryPlan(err error, attempt, floods int) (time.Duration, string, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		if floods >= d.opts.MaxFloodRetries {
			return 0, "", false
		}
		return time.Duration(max(flood.RetryAfter, 1)) * time.Second, "flood", true
	}
	if netutil.ShouldRetry(err) && attempt <= d.opts.MaxRetries {
		return d.opts.RetryBackoff * time.Duration(attempt), "network", true
	}
	return 0, "", false
}

func (d *Dispatcher) fail(q queued, err error, attempts int, start time.Time) {
	d.errs.Add(1)
	metrics.Sends.WithLabelValues(q.Action, "fail").Inc()
	attrs := append(jobAttrs(q),
		slog.String("err", netutil.Redact(err)),
		slog.String("err_code", netutil.Classify(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", logger.Took(start)),
	)
	if q.BestEffort {
		logger.Debug(q.ctx, "tg.sender", "send.fail", attrs...)
		return
	}
	logger.Error(q.ctx, "tg.sender", "send.fail", attrs...)
}

func jobAttrs(q queued) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", q.Action)}
	if q.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", q.Endpoint))
	}
	if q.ChatID != 0 && logger.ChatIDFrom(q.ctx) == 0 {
		attrs = append(attrs, slog.Int64("chat_id", q.ChatID))
	}
	return attrs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
