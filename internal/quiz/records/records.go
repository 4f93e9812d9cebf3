// Package records reads and writes the quiz documents: scores, paused
// snapshots, history and the course flag.
package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/storage"
)

// History actions.
const (
	ActionStarted  = "started"
	ActionFinished = "finished"
	ActionPaused   = "paused"
	ActionResumed  = "resumed"
	ActionStopped  = "stopped"
)

// Score is the last completed attempt of a user at a topic. Documents
// written by older deployments hold only a grade string; those decode with
// Legacy set and zero counts.
type Score struct {
	Correct    int       `json:"correct"`
	Total      int       `json:"total"`
	Name       string    `json:"name,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	Legacy *decimal.Decimal `json:"-"`
}

func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		g, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("legacy grade %q: %w", raw, err)
		}
		*s = Score{Legacy: &g}
		return nil
	}
	type plain Score
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*s = Score(p)
	return nil
}

// Ratio returns correct/total, or the legacy grade divided by scale.
func (s Score) Ratio(scale int) decimal.Decimal {
	if s.Total > 0 {
		return decimal.NewFromInt(int64(s.Correct)).Div(decimal.NewFromInt(int64(s.Total)))
	}
	if s.Legacy != nil && scale > 0 {
		return s.Legacy.Div(decimal.NewFromInt(int64(scale)))
	}
	return decimal.Zero
}

// Grade returns the score on a 0..scale grade, rounded to two decimals.
func (s Score) Grade(scale int) decimal.Decimal {
	if s.Total == 0 && s.Legacy != nil {
		return s.Legacy.Round(2)
	}
	return Grade(s.Correct, s.Total, scale)
}

// Grade computes correct/total*scale rounded to two decimals.
func Grade(correct, total, scale int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(correct)).
		Mul(decimal.NewFromInt(int64(scale))).
		Div(decimal.NewFromInt(int64(total))).
		Round(2)
}

// Scores maps user id -> topic key -> score.
type Scores map[string]map[string]Score

// Snapshot is a paused session preserved verbatim.
type Snapshot struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Subject   string          `json:"subject"`
	Topic     string          `json:"topic"`
	Questions []bank.Question `json:"questions"`
	Index     int             `json:"index"`
	Correct   int             `json:"correct"`
	StartedAt time.Time       `json:"started_at"`
	PausedAt  time.Time       `json:"paused_at"`
}

// Key returns the snapshot's topic key.
func (s Snapshot) Key() string { return bank.TopicKey(s.Subject, s.Topic) }

// Entry is one history line.
type Entry struct {
	Name    string    `json:"name"`
	Action  string    `json:"action"`
	Topic   string    `json:"topic,omitempty"`
	Correct int       `json:"correct,omitempty"`
	Total   int       `json:"total,omitempty"`
	At      time.Time `json:"at"`
}

type courseState struct {
	Active *bool `json:"activo,omitempty"`
}

// Records is the quiz view over a document store.
type Records struct {
	store *storage.Store
}

// New returns Records backed by store.
func New(store *storage.Store) *Records {
	return &Records{store: store}
}

func uid(userID int64) string { return strconv.FormatInt(userID, 10) }

// Scores returns every stored score.
func (r *Records) Scores(ctx context.Context) Scores {
	return storage.Read[Scores](ctx, r.store, storage.KeyScores)
}

// UserScores returns the user's scores by topic key.
func (r *Records) UserScores(ctx context.Context, userID int64) map[string]Score {
	return r.Scores(ctx)[uid(userID)]
}

// HasScore reports whether the user completed topicKey before.
func (r *Records) HasScore(ctx context.Context, userID int64, topicKey string) bool {
	_, ok := r.UserScores(ctx, userID)[topicKey]
	return ok
}

// SaveScore overwrites the user's score for topicKey.
func (r *Records) SaveScore(ctx context.Context, userID int64, topicKey string, s Score) error {
	return storage.Update(ctx, r.store, storage.KeyScores, func(doc *Scores) error {
		if *doc == nil {
			*doc = Scores{}
		}
		user := (*doc)[uid(userID)]
		if user == nil {
			user = map[string]Score{}
			(*doc)[uid(userID)] = user
		}
		user[topicKey] = s
		return nil
	})
}

// Paused returns the user's paused snapshots by topic key.
func (r *Records) Paused(ctx context.Context, userID int64) map[string]Snapshot {
	doc := storage.Read[map[string]map[string]Snapshot](ctx, r.store, storage.KeyPaused)
	return doc[uid(userID)]
}

// PausedTopics returns the user's paused topic keys, sorted.
func (r *Records) PausedTopics(ctx context.Context, userID int64) []string {
	paused := r.Paused(ctx, userID)
	keys := make([]string, 0, len(paused))
	for k := range paused {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SavePaused stores snap under (user, topicKey), replacing any older one.
func (r *Records) SavePaused(ctx context.Context, userID int64, topicKey string, snap Snapshot) error {
	return storage.Update(ctx, r.store, storage.KeyPaused, func(doc *map[string]map[string]Snapshot) error {
		if *doc == nil {
			*doc = map[string]map[string]Snapshot{}
		}
		user := (*doc)[uid(userID)]
		if user == nil {
			user = map[string]Snapshot{}
			(*doc)[uid(userID)] = user
		}
		user[topicKey] = snap
		return nil
	})
}

// DeletePaused removes the snapshot for (user, topicKey) if present.
func (r *Records) DeletePaused(ctx context.Context, userID int64, topicKey string) error {
	if _, ok := r.Paused(ctx, userID)[topicKey]; !ok {
		return nil
	}
	return storage.Update(ctx, r.store, storage.KeyPaused, func(doc *map[string]map[string]Snapshot) error {
		user := (*doc)[uid(userID)]
		delete(user, topicKey)
		if len(user) == 0 {
			delete(*doc, uid(userID))
		}
		return nil
	})
}

// AppendHistory appends e to the user's history.
func (r *Records) AppendHistory(ctx context.Context, userID int64, e Entry) error {
	return storage.Update(ctx, r.store, storage.KeyHistory, func(doc *map[string][]Entry) error {
		if *doc == nil {
			*doc = map[string][]Entry{}
		}
		(*doc)[uid(userID)] = append((*doc)[uid(userID)], e)
		return nil
	})
}

// History returns the user's history in insertion order.
func (r *Records) History(ctx context.Context, userID int64) []Entry {
	return storage.Read[map[string][]Entry](ctx, r.store, storage.KeyHistory)[uid(userID)]
}

// CourseActive reports the course flag; a missing document means active.
func (r *Records) CourseActive(ctx context.Context) bool {
	st := storage.Read[courseState](ctx, r.store, storage.KeyCourse)
	return st.Active == nil || *st.Active
}

// SetCourseActive stores the course flag.
func (r *Records) SetCourseActive(ctx context.Context, active bool) error {
	return storage.Write(ctx, r.store, storage.KeyCourse, courseState{Active: &active})
}
