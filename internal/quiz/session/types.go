package session

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/quizbot/internal/quiz/countdown"
	"github.com/m3rciful/quizbot/internal/quiz/records"
)

// NoAnswer is the option recorded when the countdown expires.
const NoAnswer = -1

// User identifies who is taking a quiz. ID doubles as the private chat id.
type User struct {
	ID   int64
	Name string
}

// Ref points at a sent question message.
type Ref struct {
	ChatID    int64
	MessageID int
}

// IsZero reports whether the message was never delivered.
func (r Ref) IsZero() bool { return r.MessageID == 0 }

// Prompt is everything needed to render one question.
type Prompt struct {
	UserID    int64
	Subject   string
	Topic     string
	Index     int
	Total     int
	Text      string
	Options   []string
	Remaining time.Duration
	Window    time.Duration
}

// Number is the 1-based question number.
func (p Prompt) Number() int { return p.Index + 1 }

// Verdict describes how a question was resolved.
type Verdict struct {
	Chosen  int
	Correct int
	Right   bool
	Expired bool
}

// Result is sent when a session finishes.
type Result struct {
	UserID  int64
	Subject string
	Topic   string
	Correct int
	Total   int
	Grade   decimal.Decimal
}

// Gateway delivers session output. Calls happen outside the engine lock.
type Gateway interface {
	// SendQuestion sends p and reports the delivered message via sent.
	SendQuestion(ctx context.Context, p Prompt, sent func(Ref)) error
	// EditQuestion refreshes the countdown shown on ref. The edit is skipped
	// when current reports false at delivery time. Failures are non-fatal.
	EditQuestion(ctx context.Context, ref Ref, p Prompt, current func() bool) error
	// CloseQuestion replaces the question's buttons with the verdict.
	CloseQuestion(ctx context.Context, ref Ref, p Prompt, v Verdict) error
	SendResult(ctx context.Context, r Result) error
}

// Records is the persistence the engine needs.
type Records interface {
	CourseActive(ctx context.Context) bool
	HasScore(ctx context.Context, userID int64, topicKey string) bool
	SaveScore(ctx context.Context, userID int64, topicKey string, s records.Score) error
	Paused(ctx context.Context, userID int64) map[string]records.Snapshot
	SavePaused(ctx context.Context, userID int64, topicKey string, snap records.Snapshot) error
	DeletePaused(ctx context.Context, userID int64, topicKey string) error
	AppendHistory(ctx context.Context, userID int64, e records.Entry) error
}

// Timer schedules per-user countdowns.
type Timer interface {
	Start(userID int64, token string, h countdown.Handler)
	Cancel(userID int64)
	Window() time.Duration
}

// Progress is a read-only view of an active session.
type Progress struct {
	UserID    int64
	Name      string
	Subject   string
	Topic     string
	Index     int
	Total     int
	Correct   int
	StartedAt time.Time
}
