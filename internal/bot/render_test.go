package bot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/quizbot/internal/quiz/ranking"
	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"
)

func TestCountdownBar(t *testing.T) {
	w := 30 * time.Second
	assert.Equal(t, "▓▓▓▓▓▓▓▓▓▓", countdownBar(w, w))
	assert.Equal(t, "▓▓▓▓▓░░░░░", countdownBar(15*time.Second, w))
	assert.Equal(t, "▓░░░░░░░░░", countdownBar(time.Second, w))
	assert.Equal(t, "░░░░░░░░░░", countdownBar(0, w))
	assert.Equal(t, "░░░░░░░░░░", countdownBar(time.Second, 0))
}

func TestQuestionMarkupEncodesIndex(t *testing.T) {
	p := session.Prompt{Index: 2, Total: 5, Topic: "Ondas", Options: []string{"a", "b"}}
	rm := questionMarkup(p)
	assert.Equal(t, "r:2:0", rm.InlineKeyboard[0][0].Data)
	assert.Equal(t, "r:2:1", rm.InlineKeyboard[1][0].Data)
	assert.Contains(t, questionText(session.Prompt{Index: 0, Total: 3, Topic: "Ondas", Remaining: 1500 * time.Millisecond, Window: 30 * time.Second}), "⏳ 2s")
}

func TestVerdictText(t *testing.T) {
	p := session.Prompt{Total: 1, Text: "¿x?", Options: []string{"uno", "dos"}}
	assert.Contains(t, verdictText(p, session.Verdict{Chosen: 1, Correct: 1, Right: true}), "Correcto")
	assert.Contains(t, verdictText(p, session.Verdict{Chosen: session.NoAnswer, Correct: 0, Expired: true}), "Tiempo agotado")
	assert.Contains(t, verdictText(p, session.Verdict{Chosen: 1, Correct: 0}), "Elegiste: dos")
}

func TestRankingTextFallsBackWhenEmpty(t *testing.T) {
	assert.Equal(t, msgNoRanking, rankingText("Física/Ondas", nil))

	text := rankingText("Física/Ondas", []ranking.Entry{
		{Rank: 1, Name: "Ana", Correct: 3, Total: 3, Grade: decimal.NewFromInt(5)},
		{Rank: 2, Name: "Luis", Grade: decimal.RequireFromString("4.2")},
	})
	assert.Contains(t, text, "Física / Ondas")
	assert.Contains(t, text, " 1. Ana - 3/3 (5.00)")
	assert.Contains(t, text, " 2. Luis - 4.20")
}

func TestHistoryTextUsesLocation(t *testing.T) {
	loc := time.FixedZone("COT", -5*3600)
	at := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	text := historyText([]records.Entry{
		{Name: "Ana", Action: records.ActionFinished, Topic: "Física/Ondas", Correct: 2, Total: 3, At: at},
	}, loc)
	assert.Contains(t, text, "01/03/2024 10:00:00")
	assert.Contains(t, text, "Finalizó quiz: Física / Ondas con 2/3")
}

func TestRejectionMessageDefault(t *testing.T) {
	assert.Equal(t, rejectionText[session.ReasonCapacity], rejectionMessage(&session.Rejection{Reason: session.ReasonCapacity}))
	assert.NotEmpty(t, rejectionMessage(&session.Rejection{Reason: "other"}))
}
