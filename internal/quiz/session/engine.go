// Package session implements the per-user quiz state machine: start, answer,
// timeout, pause, resume and stop, with one countdown per active session.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/quizbot/core/logger"
	"github.com/m3rciful/quizbot/core/metrics"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/quiz/records"
)

const component = "quiz.session"

// Topics resolves topic keys against the question bank.
type Topics interface {
	Lookup(key string) (bank.Topic, bool)
}

// Config wires an Engine.
type Config struct {
	Topics  Topics
	Records Records
	Gateway Gateway
	Timer   Timer

	// MaxActive caps concurrent sessions; 0 means 30.
	MaxActive int
	// GradeScale is the top grade; 0 means 5.
	GradeScale int

	Now  func() time.Time
	Intn func(n int) int
}

type state struct {
	id        string
	user      User
	subject   string
	topic     string
	questions []bank.Question
	index     int
	correct   int
	startedAt time.Time
	token     string
	ref       Ref
}

func (s *state) key() string { return bank.TopicKey(s.subject, s.topic) }

func (s *state) progress() Progress {
	return Progress{
		UserID:    s.user.ID,
		Name:      s.user.Name,
		Subject:   s.subject,
		Topic:     s.topic,
		Index:     s.index,
		Total:     len(s.questions),
		Correct:   s.correct,
		StartedAt: s.startedAt,
	}
}

// Engine owns every active session. All transitions and persistence writes
// run under one mutex; gateway calls are queued and run after it is released.
type Engine struct {
	topics     Topics
	records    Records
	gateway    Gateway
	timer      Timer
	maxActive  int
	gradeScale int
	now        func() time.Time
	intn       func(n int) int

	mu     sync.Mutex
	active map[int64]*state
	seq    uint64
}

// NewEngine returns an Engine with no active sessions.
func NewEngine(c Config) *Engine {
	e := &Engine{
		topics:     c.Topics,
		records:    c.Records,
		gateway:    c.Gateway,
		timer:      c.Timer,
		maxActive:  c.MaxActive,
		gradeScale: c.GradeScale,
		now:        c.Now,
		intn:       c.Intn,
		active:     make(map[int64]*state),
	}
	if e.maxActive <= 0 {
		e.maxActive = 30
	}
	if e.gradeScale <= 0 {
		e.gradeScale = 5
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

type outbox []func(ctx context.Context)

func (o *outbox) add(fn func(ctx context.Context)) { *o = append(*o, fn) }

func (o outbox) flush(ctx context.Context) {
	for _, fn := range o {
		fn(ctx)
	}
}

// Start opens a session for user on topicKey.
func (e *Engine) Start(ctx context.Context, user User, topicKey string) error {
	var out outbox
	err := e.start(ctx, user, topicKey, &out)
	e.observe(ctx, "start", user.ID, topicKey, err)
	out.flush(ctx)
	return err
}

func (e *Engine) start(ctx context.Context, user User, topicKey string, out *outbox) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.records.CourseActive(ctx) {
		return reject(ReasonCourseInactive, topicKey)
	}
	if len(e.active) >= e.maxActive {
		return reject(ReasonCapacity, topicKey)
	}
	if _, ok := e.active[user.ID]; ok {
		return reject(ReasonAlreadyInSession, topicKey)
	}
	topic, ok := e.topics.Lookup(topicKey)
	if !ok || len(topic.Questions) == 0 {
		return reject(ReasonInvalidTopic, topicKey)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate session id: %w", err)
	}
	s := &state{
		id:        id.String(),
		user:      user,
		subject:   topic.Subject,
		topic:     topic.Name,
		questions: bank.Shuffle(topic.Questions, e.intn),
		startedAt: e.now(),
	}
	e.active[user.ID] = s
	e.history(ctx, s, records.ActionStarted)
	e.ask(s, out)
	return nil
}

// Submit records option as the answer to question index. Stale indexes and
// users without a session are ignored.
func (e *Engine) Submit(ctx context.Context, userID int64, index, option int) error {
	var out outbox
	e.mu.Lock()
	s, ok := e.active[userID]
	if !ok || s.index != index {
		e.mu.Unlock()
		logger.Debug(ctx, component, "session.answer.stale",
			slog.Int64("user_id", userID),
			slog.Int("question", index),
		)
		return nil
	}
	e.resolve(ctx, s, option, false, &out)
	e.mu.Unlock()

	out.flush(ctx)
	return nil
}

// Timeout resolves the current question as unanswered if token still names it.
func (e *Engine) Timeout(ctx context.Context, userID int64, token string) {
	var out outbox
	e.mu.Lock()
	s, ok := e.active[userID]
	if !ok || s.token != token {
		e.mu.Unlock()
		return
	}
	e.resolve(ctx, s, NoAnswer, true, &out)
	e.mu.Unlock()

	out.flush(ctx)
}

// Tick refreshes the countdown on the outstanding question.
func (e *Engine) Tick(ctx context.Context, userID int64, token string, remaining time.Duration) {
	e.mu.Lock()
	s, ok := e.active[userID]
	if !ok || s.token != token || s.ref.IsZero() {
		e.mu.Unlock()
		return
	}
	p := e.prompt(s)
	p.Remaining = remaining
	ref := s.ref
	e.mu.Unlock()

	current := func() bool { return e.isCurrent(userID, token) }
	if err := e.gateway.EditQuestion(ctx, ref, p, current); err != nil && logger.ShouldSampleDebug() {
		logger.Debug(ctx, component, "session.tick.edit",
			slog.Int64("user_id", userID),
			slog.Duration("remaining", remaining),
			slog.Any("err", err),
		)
	}
}

// Pause moves the user's session into the paused store.
func (e *Engine) Pause(ctx context.Context, userID int64) (Progress, error) {
	e.mu.Lock()
	p, err := e.pause(ctx, userID)
	e.mu.Unlock()
	e.observe(ctx, "pause", userID, p.Key(), err)
	return p, err
}

func (e *Engine) pause(ctx context.Context, userID int64) (Progress, error) {
	s, ok := e.active[userID]
	if !ok {
		return Progress{}, reject(ReasonNoSession, "")
	}
	e.timer.Cancel(userID)
	snap := records.Snapshot{
		ID:        s.id,
		UserID:    s.user.ID,
		Name:      s.user.Name,
		Subject:   s.subject,
		Topic:     s.topic,
		Questions: s.questions,
		Index:     s.index,
		Correct:   s.correct,
		StartedAt: s.startedAt,
		PausedAt:  e.now(),
	}
	if err := e.records.SavePaused(ctx, userID, s.key(), snap); err != nil {
		e.writeFailed(ctx, "paused", userID, err)
	}
	e.drop(userID)
	e.history(ctx, s, records.ActionPaused)
	return s.progress(), nil
}

// PauseAll pauses every active session and returns how many were paused.
func (e *Engine) PauseAll(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id := range e.active {
		if _, err := e.pause(ctx, id); err == nil {
			n++
		}
	}
	if n > 0 {
		logger.Info(ctx, component, "session.pause_all", slog.Int("total", n))
	}
	return n
}

// Resume reinstates the user's paused session for topicKey and re-sends its
// current question.
func (e *Engine) Resume(ctx context.Context, user User, topicKey string) error {
	var out outbox
	err := e.resume(ctx, user, topicKey, &out)
	e.observe(ctx, "resume", user.ID, topicKey, err)
	out.flush(ctx)
	return err
}

func (e *Engine) resume(ctx context.Context, user User, topicKey string, out *outbox) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.records.Paused(ctx, user.ID)[topicKey]
	if !ok {
		return reject(ReasonNotPaused, topicKey)
	}
	if e.records.HasScore(ctx, user.ID, topicKey) {
		if err := e.records.DeletePaused(ctx, user.ID, topicKey); err != nil {
			e.writeFailed(ctx, "paused", user.ID, err)
		}
		return reject(ReasonAlreadyFinished, topicKey)
	}
	if _, ok := e.active[user.ID]; ok {
		return reject(ReasonAlreadyInSession, topicKey)
	}
	if len(e.active) >= e.maxActive {
		return reject(ReasonCapacity, topicKey)
	}
	if snap.Index < 0 || snap.Index >= len(snap.Questions) {
		if err := e.records.DeletePaused(ctx, user.ID, topicKey); err != nil {
			e.writeFailed(ctx, "paused", user.ID, err)
		}
		return reject(ReasonInvalidTopic, topicKey)
	}

	name := user.Name
	if name == "" {
		name = snap.Name
	}
	s := &state{
		id:        snap.ID,
		user:      User{ID: user.ID, Name: name},
		subject:   snap.Subject,
		topic:     snap.Topic,
		questions: snap.Questions,
		index:     snap.Index,
		correct:   snap.Correct,
		startedAt: snap.StartedAt,
	}
	e.active[user.ID] = s
	if err := e.records.DeletePaused(ctx, user.ID, topicKey); err != nil {
		e.writeFailed(ctx, "paused", user.ID, err)
	}
	e.history(ctx, s, records.ActionResumed)
	e.ask(s, out)
	return nil
}

// Stop abandons the user's session without recording a score.
func (e *Engine) Stop(ctx context.Context, userID int64) (Progress, error) {
	e.mu.Lock()
	p, err := e.stop(ctx, userID)
	e.mu.Unlock()
	e.observe(ctx, "stop", userID, p.Key(), err)
	return p, err
}

func (e *Engine) stop(ctx context.Context, userID int64) (Progress, error) {
	s, ok := e.active[userID]
	if !ok {
		return Progress{}, reject(ReasonNoSession, "")
	}
	e.timer.Cancel(userID)
	e.drop(userID)
	e.history(ctx, s, records.ActionStopped)
	return s.progress(), nil
}

// Active lists active sessions ordered by topic, then user id.
func (e *Engine) Active() []Progress {
	e.mu.Lock()
	out := make([]Progress, 0, len(e.active))
	for _, s := range e.active {
		out = append(out, s.progress())
	}
	e.mu.Unlock()

	slices.SortFunc(out, func(a, b Progress) int {
		if k := cmp.Compare(a.Key(), b.Key()); k != 0 {
			return k
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	return out
}

// Current returns the user's active session, if any.
func (e *Engine) Current(userID int64) (Progress, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.active[userID]
	if !ok {
		return Progress{}, false
	}
	return s.progress(), true
}

// resolve scores the current question and advances. Callers hold e.mu.
func (e *Engine) resolve(ctx context.Context, s *state, option int, expired bool, out *outbox) {
	e.timer.Cancel(s.user.ID)

	q := s.questions[s.index]
	right := q.IsCorrect(option)
	if right {
		s.correct++
	}
	if ref := s.ref; !ref.IsZero() {
		p := e.prompt(s)
		v := Verdict{Chosen: option, Correct: q.Correct, Right: right, Expired: expired}
		out.add(func(ctx context.Context) {
			if err := e.gateway.CloseQuestion(ctx, ref, p, v); err != nil {
				logger.Debug(ctx, component, "session.close.fail", slog.Any("err", err))
			}
		})
	}

	event := "answered"
	if expired {
		event = "timeout"
	}
	metrics.SessionEvents.WithLabelValues(event).Inc()
	logger.Debug(ctx, component, "session."+event,
		slog.Int64("user_id", s.user.ID),
		slog.String("topic", s.key()),
		slog.Int("question", s.index),
		slog.Bool("correct", right),
	)

	s.index++
	s.token = ""
	s.ref = Ref{}
	if s.index < len(s.questions) {
		e.ask(s, out)
		return
	}
	e.finish(ctx, s, out)
}

func (e *Engine) finish(ctx context.Context, s *state, out *outbox) {
	key := s.key()
	total := len(s.questions)
	e.drop(s.user.ID)

	score := records.Score{Correct: s.correct, Total: total, Name: s.user.Name, FinishedAt: e.now()}
	if err := e.records.SaveScore(ctx, s.user.ID, key, score); err != nil {
		e.writeFailed(ctx, "score", s.user.ID, err)
	}
	if err := e.records.DeletePaused(ctx, s.user.ID, key); err != nil {
		e.writeFailed(ctx, "paused", s.user.ID, err)
	}
	e.history(ctx, s, records.ActionFinished)

	res := Result{
		UserID:  s.user.ID,
		Subject: s.subject,
		Topic:   s.topic,
		Correct: s.correct,
		Total:   total,
		Grade:   records.Grade(s.correct, total, e.gradeScale),
	}
	metrics.SessionEvents.WithLabelValues("finished").Inc()
	logger.Info(ctx, component, "session.finish",
		slog.Int64("user_id", s.user.ID),
		slog.String("topic", key),
		slog.Int("correct", s.correct),
		slog.Int("total", total),
	)
	out.add(func(ctx context.Context) {
		if err := e.gateway.SendResult(ctx, res); err != nil {
			logger.Warn(ctx, component, "session.result.fail", slog.Any("err", err))
		}
	})
}

// ask issues a fresh token for the current question, queues its delivery and
// starts the countdown. Callers hold e.mu.
func (e *Engine) ask(s *state, out *outbox) {
	e.seq++
	s.token = s.id + "." + strconv.FormatUint(e.seq, 36)
	s.ref = Ref{}

	p := e.prompt(s)
	userID, token := s.user.ID, s.token
	out.add(func(ctx context.Context) {
		err := e.gateway.SendQuestion(ctx, p, func(ref Ref) { e.attach(userID, token, ref) })
		if err != nil {
			logger.Warn(ctx, component, "session.question.fail",
				slog.Int64("user_id", userID),
				slog.Any("err", err),
			)
		}
	})
	e.timer.Start(userID, token, e)
	metrics.ActiveSessions.Set(float64(len(e.active)))
}

// isCurrent reports whether token still names the user's outstanding question.
func (e *Engine) isCurrent(userID int64, token string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.active[userID]
	return ok && s.token == token
}

// attach records the delivered message for the question named by token.
func (e *Engine) attach(userID int64, token string, ref Ref) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.active[userID]; ok && s.token == token {
		s.ref = ref
	}
}

func (e *Engine) prompt(s *state) Prompt {
	q := s.questions[s.index]
	window := e.timer.Window()
	return Prompt{
		UserID:    s.user.ID,
		Subject:   s.subject,
		Topic:     s.topic,
		Index:     s.index,
		Total:     len(s.questions),
		Text:      q.Prompt,
		Options:   q.Options,
		Remaining: window,
		Window:    window,
	}
}

func (e *Engine) drop(userID int64) {
	delete(e.active, userID)
	metrics.ActiveSessions.Set(float64(len(e.active)))
}

func (e *Engine) history(ctx context.Context, s *state, action string) {
	entry := records.Entry{Name: s.user.Name, Action: action, Topic: s.key(), At: e.now()}
	if action == records.ActionFinished {
		entry.Correct, entry.Total = s.correct, len(s.questions)
	}
	if err := e.records.AppendHistory(ctx, s.user.ID, entry); err != nil {
		e.writeFailed(ctx, "history", s.user.ID, err)
	}
}

func (e *Engine) writeFailed(ctx context.Context, doc string, userID int64, err error) {
	logger.Error(ctx, component, "session.persist.fail",
		slog.String("key", doc),
		slog.Int64("user_id", userID),
		slog.Any("err", err),
	)
}

func (e *Engine) observe(ctx context.Context, op string, userID int64, topic string, err error) {
	if r, ok := AsRejection(err); ok {
		metrics.Rejections.WithLabelValues(r.Code()).Inc()
		logger.Info(ctx, component, "session."+op,
			slog.String("status", "rejected"),
			slog.String("reason", r.Code()),
			slog.Int64("user_id", userID),
			slog.String("topic", topic),
		)
		return
	}
	if err != nil {
		logger.Error(ctx, component, "session."+op,
			slog.Int64("user_id", userID),
			slog.String("topic", topic),
			slog.Any("err", err),
		)
		return
	}
	metrics.SessionEvents.WithLabelValues(op).Inc()
	logger.Info(ctx, component, "session."+op,
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("topic", topic),
	)
}

// Key returns the progress' topic key, or "" for an empty Progress.
func (p Progress) Key() string {
	if p.Subject == "" {
		return ""
	}
	return bank.TopicKey(p.Subject, p.Topic)
}
