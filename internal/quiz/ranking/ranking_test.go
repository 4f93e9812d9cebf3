package ranking

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"
	"github.com/m3rciful/quizbot/internal/storage"
)

const kinematics = "Física/Cinemática"

type fakeActive []session.Progress

func (f fakeActive) Active() []session.Progress { return f }

func newService(t *testing.T, active fakeActive) (*Service, *records.Records) {
	t.Helper()
	b, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	rec := records.New(storage.New(b))
	return NewService(Config{Scores: rec, Active: active, AdminID: 100}), rec
}

func TestRankingOrdersByCorrect(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, rec.SaveScore(ctx, 2, kinematics, records.Score{Correct: 1, Total: 3, Name: "Beto"}))
	require.NoError(t, rec.SaveScore(ctx, 1, kinematics, records.Score{Correct: 2, Total: 3, Name: "Ana"}))
	require.NoError(t, rec.SaveScore(ctx, 4, kinematics, records.Score{Correct: 1, Total: 3}))
	require.NoError(t, rec.SaveScore(ctx, 3, "Física/Ondas", records.Score{Correct: 1, Total: 1, Name: "Caro"}))

	got := svc.Ranking(ctx, kinematics, 0)
	require.Len(t, got, 3)
	assert.Equal(t, Entry{Rank: 1, UserID: 1, Name: "Ana", Correct: 2, Total: 3, Grade: got[0].Grade}, got[0])
	assert.Equal(t, "3.33", got[0].Grade.StringFixed(2))
	assert.Equal(t, int64(2), got[1].UserID)
	assert.Equal(t, int64(4), got[2].UserID)
	assert.Equal(t, "ID 4", got[2].Name)

	top := svc.Ranking(ctx, kinematics, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "Ana", top[0].Name)

	assert.Empty(t, svc.Ranking(ctx, "Física/Óptica", 10))
	assert.Equal(t, []string{kinematics, "Física/Ondas"}, svc.Topics(ctx))

	overview := svc.Overview(ctx, 2)
	require.Len(t, overview, 2)
	assert.Len(t, overview[0].Entries, 2)
	assert.Equal(t, "Caro", overview[1].Entries[0].Name)
}

func TestPersonalBands(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()

	require.NoError(t, rec.SaveScore(ctx, 1, "A/full", records.Score{Correct: 4, Total: 4}))
	require.NoError(t, rec.SaveScore(ctx, 1, "A/good", records.Score{Correct: 7, Total: 10}))
	require.NoError(t, rec.SaveScore(ctx, 1, "A/weak", records.Score{Correct: 1, Total: 3}))

	got := svc.Personal(ctx, 1)
	require.Len(t, got, 3)
	assert.Equal(t, BandExcellent, got[0].Band)
	assert.Equal(t, BandGood, got[1].Band)
	assert.Equal(t, "3.50", got[1].Grade.StringFixed(2))
	assert.Equal(t, BandNeedsImprovement, got[2].Band)

	p, ok := svc.PersonalTopic(ctx, 1, "A/good")
	require.True(t, ok)
	assert.Equal(t, 7, p.Correct)
	_, ok = svc.PersonalTopic(ctx, 2, "A/good")
	assert.False(t, ok)

	strict := NewService(Config{Scores: rec, Good: decimal.NewFromFloat(0.8)})
	assert.Equal(t, BandNeedsImprovement, strict.Personal(ctx, 1)[1].Band)
}

func TestRosterRequiresAdmin(t *testing.T) {
	active := fakeActive{
		{UserID: 1, Name: "Ana", Subject: "Física", Topic: "Cinemática", Index: 1, Total: 3},
		{UserID: 2, Name: "Beto", Subject: "Física", Topic: "Cinemática", Index: 0, Total: 3},
		{UserID: 3, Name: "Caro", Subject: "Física", Topic: "Ondas", Index: 0, Total: 1},
	}
	svc, _ := newService(t, active)

	r, err := svc.Roster(7)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Zero(t, r.Total)
	assert.Nil(t, r.Users)

	r, err = svc.Roster(100)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, []TopicCount{{Topic: kinematics, Count: 2}, {Topic: "Física/Ondas", Count: 1}}, r.ByTopic)
	assert.Equal(t, "Ana", r.Users[0].Name)
}

func TestHistory(t *testing.T) {
	svc, rec := newService(t, nil)
	ctx := context.Background()
	require.NoError(t, rec.AppendHistory(ctx, 5, records.Entry{Action: records.ActionStarted}))
	assert.Len(t, svc.History(ctx, 5), 1)
}
