// Package ranking builds read-only rollups over stored scores and the active
// session set.
package ranking

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"
)

// ErrPermissionDenied is returned when a non-admin asks for the roster.
var ErrPermissionDenied = errors.New("ranking: permission denied")

// Band is a qualitative grade bucket.
type Band string

const (
	BandExcellent        Band = "excellent"
	BandGood             Band = "good"
	BandNeedsImprovement Band = "needs_improvement"
)

// Scores is the read side of records.
type Scores interface {
	Scores(ctx context.Context) records.Scores
	UserScores(ctx context.Context, userID int64) map[string]records.Score
	History(ctx context.Context, userID int64) []records.Entry
}

// ActiveSessions lists sessions in progress.
type ActiveSessions interface {
	Active() []session.Progress
}

// Config wires a Service.
type Config struct {
	Scores  Scores
	Active  ActiveSessions
	AdminID int64

	// Excellent and Good are ratio thresholds; zero values mean 1.0 and 0.7.
	Excellent  decimal.Decimal
	Good       decimal.Decimal
	GradeScale int
}

// Service answers ranking, personal score, roster and history queries.
type Service struct {
	scores     Scores
	active     ActiveSessions
	adminID    int64
	excellent  decimal.Decimal
	good       decimal.Decimal
	gradeScale int
}

func NewService(c Config) *Service {
	s := &Service{
		scores:     c.Scores,
		active:     c.Active,
		adminID:    c.AdminID,
		excellent:  c.Excellent,
		good:       c.Good,
		gradeScale: c.GradeScale,
	}
	if s.excellent.IsZero() {
		s.excellent = decimal.NewFromInt(1)
	}
	if s.good.IsZero() {
		s.good = decimal.NewFromFloat(0.7)
	}
	if s.gradeScale <= 0 {
		s.gradeScale = 5
	}
	return s
}

// Entry is one ranked user.
type Entry struct {
	Rank    int
	UserID  int64
	Name    string
	Correct int
	Total   int
	Grade   decimal.Decimal
}

// TopicRanking is the ranking of a single topic.
type TopicRanking struct {
	Topic   string
	Entries []Entry
}

// Ranking returns users with a record for topicKey, best first. Ties keep
// ascending user id order. limit <= 0 returns everyone.
func (s *Service) Ranking(ctx context.Context, topicKey string, limit int) []Entry {
	return s.rank(s.scores.Scores(ctx), topicKey, limit)
}

func (s *Service) rank(all records.Scores, topicKey string, limit int) []Entry {
	var out []Entry
	for uid, topics := range all {
		sc, ok := topics[topicKey]
		if !ok {
			continue
		}
		id, _ := strconv.ParseInt(uid, 10, 64)
		name := sc.Name
		if name == "" {
			name = "ID " + uid
		}
		out = append(out, Entry{
			UserID:  id,
			Name:    name,
			Correct: sc.Correct,
			Total:   sc.Total,
			Grade:   sc.Grade(s.gradeScale),
		})
	}

	slices.SortFunc(out, func(a, b Entry) int { return cmp.Compare(a.UserID, b.UserID) })
	slices.SortStableFunc(out, func(a, b Entry) int {
		if c := cmp.Compare(b.Correct, a.Correct); c != 0 {
			return c
		}
		// legacy records carry only a grade
		return b.Grade.Cmp(a.Grade)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Topics returns every topic key that has at least one record, sorted.
func (s *Service) Topics(ctx context.Context) []string {
	return topicsOf(s.scores.Scores(ctx))
}

func topicsOf(all records.Scores) []string {
	seen := map[string]bool{}
	var out []string
	for _, topics := range all {
		for k := range topics {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Overview ranks every topic, keeping perTopic entries each.
func (s *Service) Overview(ctx context.Context, perTopic int) []TopicRanking {
	all := s.scores.Scores(ctx)
	keys := topicsOf(all)
	out := make([]TopicRanking, 0, len(keys))
	for _, k := range keys {
		out = append(out, TopicRanking{Topic: k, Entries: s.rank(all, k, perTopic)})
	}
	return out
}

// Personal is one line of a user's own report.
type Personal struct {
	Topic   string
	Correct int
	Total   int
	Grade   decimal.Decimal
	Band    Band
}

// Personal returns the user's records by topic key order.
func (s *Service) Personal(ctx context.Context, userID int64) []Personal {
	scores := s.scores.UserScores(ctx, userID)
	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]Personal, 0, len(keys))
	for _, k := range keys {
		sc := scores[k]
		out = append(out, Personal{
			Topic:   k,
			Correct: sc.Correct,
			Total:   sc.Total,
			Grade:   sc.Grade(s.gradeScale),
			Band:    s.band(sc.Ratio(s.gradeScale)),
		})
	}
	return out
}

// PersonalTopic returns the user's record for one topic.
func (s *Service) PersonalTopic(ctx context.Context, userID int64, topicKey string) (Personal, bool) {
	for _, p := range s.Personal(ctx, userID) {
		if p.Topic == topicKey {
			return p, true
		}
	}
	return Personal{}, false
}

func (s *Service) band(ratio decimal.Decimal) Band {
	switch {
	case ratio.GreaterThanOrEqual(s.excellent):
		return BandExcellent
	case ratio.GreaterThanOrEqual(s.good):
		return BandGood
	}
	return BandNeedsImprovement
}

// TopicCount is the number of active users on a topic.
type TopicCount struct {
	Topic string
	Count int
}

// Roster is the admin view of sessions in progress.
type Roster struct {
	Total   int
	ByTopic []TopicCount
	Users   []session.Progress
}

// Roster returns the active sessions grouped by topic. Only the admin may
// call it.
func (s *Service) Roster(callerID int64) (Roster, error) {
	if s.adminID == 0 || callerID != s.adminID {
		return Roster{}, ErrPermissionDenied
	}
	users := s.active.Active()
	r := Roster{Total: len(users), Users: users}
	for _, u := range users {
		key := u.Key()
		if n := len(r.ByTopic); n > 0 && r.ByTopic[n-1].Topic == key {
			r.ByTopic[n-1].Count++
			continue
		}
		r.ByTopic = append(r.ByTopic, TopicCount{Topic: key, Count: 1})
	}
	return r, nil
}

// History returns the user's history entries in order.
func (s *Service) History(ctx context.Context, userID int64) []records.Entry {
	return s.scores.History(ctx, userID)
}
