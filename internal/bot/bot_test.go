package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/quiz/countdown"
	"github.com/m3rciful/quizbot/internal/quiz/ranking"
	"github.com/m3rciful/quizbot/internal/quiz/records"
	"github.com/m3rciful/quizbot/internal/quiz/session"
	"github.com/m3rciful/quizbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

const adminID = 99

// call is one Bot API request seen by the fake server.
type call struct {
	Method string
	ChatID string
	Text   string
}

// fakeAPI answers Bot API requests with canned results.
type fakeAPI struct {
	mu    sync.Mutex
	calls []call
	next  int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	body, _ := io.ReadAll(r.Body)
	params := map[string]any{}
	_ = json.Unmarshal(body, &params)

	f.mu.Lock()
	f.next++
	id := f.next
	f.calls = append(f.calls, call{
		Method: method,
		ChatID: fmt.Sprint(params["chat_id"]),
		Text:   fmt.Sprint(params["text"]),
	})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "sendMessage", "editMessageText":
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":7,"type":"private"}}}`, id)
	default:
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeAPI) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeAPI) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type idleTimer struct{}

func (idleTimer) Start(int64, string, countdown.Handler) {}

func (idleTimer) Cancel(int64) {}

func (idleTimer) Window() time.Duration { return 30 * time.Second }

type fixture struct {
	api      *fakeAPI
	bot      *tele.Bot
	handlers *Handlers
	engine   *session.Engine
	records  *records.Records
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{URL: srv.URL, Token: "test-token", Offline: true})
	require.NoError(t, err)

	backend, err := storage.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	recs := records.New(storage.New(backend))

	qb := bank.New(bank.Document{
		"Física": {
			"Cinemática": {
				{Prompt: "¿Unidad de velocidad?", Options: []string{"m/s", "kg"}, Correct: 0},
				{Prompt: "¿Unidad de masa?", Options: []string{"m", "kg"}, Correct: 1},
			},
		},
	})
	engine := session.NewEngine(session.Config{
		Topics:  qb,
		Records: recs,
		Gateway: NewGateway(b, nil),
		Timer:   idleTimer{},
		Intn:    func(n int) int { return n - 1 },
	})
	rank := ranking.NewService(ranking.Config{Scores: recs, Active: engine, AdminID: adminID})

	h := NewHandlers(Options{
		Engine:  engine,
		Ranking: rank,
		Catalog: qb,
		Course:  recs,
		TopN:    10,
	})
	return &fixture{api: api, bot: b, handlers: h, engine: engine, records: recs}
}

func (f *fixture) command(userID int64, text string) tele.Context {
	return f.bot.NewContext(tele.Update{Message: &tele.Message{
		ID:     1,
		Text:   text,
		Sender: &tele.User{ID: userID, FirstName: "Ana"},
		Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
	}})
}

func (f *fixture) callback(userID int64, data string) tele.Context {
	return f.bot.NewContext(tele.Update{Callback: &tele.Callback{
		ID:     "cb",
		Data:   data,
		Sender: &tele.User{ID: userID, FirstName: "Ana"},
		Message: &tele.Message{
			ID:   50,
			Chat: &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	}})
}

func TestStartSendsWelcome(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handlers.Start(f.command(7, "/start")))

	calls := f.api.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, "sendMessage", calls[0].Method)
	require.Contains(t, calls[0].Text, "PhysicsBank")
}

func TestSubjectsRespectCourseFlag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handlers.Subjects(f.command(7, "/temas")))
	require.Contains(t, f.api.recorded()[0].Text, msgChooseSubject)

	require.NoError(t, f.records.SetCourseActive(ctx, false))
	f.api.reset()
	require.NoError(t, f.handlers.Subjects(f.command(7, "/temas")))
	require.Equal(t, rejectionText[session.ReasonCourseInactive], f.api.recorded()[0].Text)
}

func TestQuizFlowThroughCallbacks(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Cinemática")))
	calls := f.api.recorded()
	require.Len(t, calls, 2)
	require.Equal(t, "sendMessage", calls[0].Method)
	require.Contains(t, calls[0].Text, "Pregunta 1/2")
	require.Equal(t, "editMessageText", calls[1].Method)
	require.Contains(t, calls[1].Text, "Comienza")

	f.api.reset()
	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:0:0")))
	calls = f.api.recorded()
	require.Len(t, calls, 2)
	require.Equal(t, "editMessageText", calls[0].Method)
	require.Contains(t, calls[0].Text, "Correcto")
	require.Contains(t, calls[1].Text, "Pregunta 2/2")

	f.api.reset()
	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:1:0")))
	calls = f.api.recorded()
	require.Len(t, calls, 2)
	require.Contains(t, calls[0].Text, "Incorrecto")
	require.Contains(t, calls[1].Text, "Aciertos: 1/2")

	_, ok := f.engine.Current(7)
	require.False(t, ok)
	require.True(t, f.records.HasScore(context.Background(), 7, "Física/Cinemática"))
}

func TestStaleAnswerIsIgnored(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Cinemática")))
	f.api.reset()

	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:1:0")))
	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:x")))
	require.Empty(t, f.api.recorded())
}

func TestRejectionsAreRendered(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handlers.Pause(f.command(7, "/pausar")))
	require.Equal(t, rejectionText[session.ReasonNoSession], f.api.recorded()[0].Text)

	f.api.reset()
	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Óptica")))
	require.Equal(t, rejectionText[session.ReasonInvalidTopic], f.api.recorded()[0].Text)
}

func TestPauseAndResume(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Cinemática")))
	f.api.reset()

	require.NoError(t, f.handlers.Pause(f.command(7, "/pausar")))
	require.Contains(t, f.api.recorded()[0].Text, "pausado en la pregunta 1/2")

	f.api.reset()
	require.NoError(t, f.handlers.Resume(f.command(7, "/reanudar")))
	calls := f.api.recorded()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Text, "Pregunta 1/2")

	f.api.reset()
	require.NoError(t, f.handlers.Resume(f.command(7, "/reanudar")))
	require.Equal(t, msgNoPaused, f.api.recorded()[0].Text)
}

func TestRosterIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.handlers.Roster(f.command(7, "/activos")))
	require.Equal(t, msgAdminOnly, f.api.recorded()[0].Text)

	f.api.reset()
	require.NoError(t, f.handlers.Roster(f.command(adminID, "/activos")))
	require.Equal(t, msgNoActive, f.api.recorded()[0].Text)

	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Cinemática")))
	f.api.reset()
	require.NoError(t, f.handlers.Roster(f.command(adminID, "/activos")))
	text := f.api.recorded()[0].Text
	require.Contains(t, text, "Estudiantes activos: 1")
	require.Contains(t, text, "Ana")
}

func TestCourseToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.handlers.Deactivate(f.command(adminID, "/desactivar")))
	require.False(t, f.records.CourseActive(ctx))
	require.Equal(t, msgCourseOff, f.api.recorded()[0].Text)

	require.NoError(t, f.handlers.Activate(f.command(adminID, "/activar")))
	require.True(t, f.records.CourseActive(ctx))
}

func TestGradesAndRankingAfterFinish(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.handlers.Grades(f.command(7, "/minota")))
	require.Equal(t, msgNoGrades, f.api.recorded()[0].Text)

	require.NoError(t, f.handlers.OnTopic(f.callback(7, "topico:Física:Cinemática")))
	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:0:0")))
	require.NoError(t, f.handlers.OnAnswer(f.callback(7, "r:1:1")))

	f.api.reset()
	require.NoError(t, f.handlers.Grades(f.command(7, "/minota")))
	require.Contains(t, f.api.recorded()[0].Text, "5.00")

	f.api.reset()
	require.NoError(t, f.handlers.OnRanking(f.callback(7, "ranking:Física/Cinemática")))
	require.Contains(t, f.api.recorded()[0].Text, "1. Ana - 2/2")

	f.api.reset()
	require.NoError(t, f.handlers.History(f.command(7, "/historial")))
	text := f.api.recorded()[0].Text
	require.Contains(t, text, "Inició quiz")
	require.Contains(t, text, "Finalizó quiz")
}

func TestCountdownEditSkipsAnsweredQuestion(t *testing.T) {
	f := newFixture(t)
	g := NewGateway(f.bot, nil)
	ctx := context.Background()
	ref := session.Ref{ChatID: 7, MessageID: 3}
	p := session.Prompt{
		UserID:    7,
		Subject:   "Física",
		Topic:     "Cinemática",
		Total:     2,
		Text:      "¿Unidad de velocidad?",
		Options:   []string{"m/s", "kg"},
		Remaining: 10 * time.Second,
		Window:    30 * time.Second,
	}

	require.NoError(t, g.EditQuestion(ctx, ref, p, func() bool { return false }))
	require.Empty(t, f.api.recorded())

	require.NoError(t, g.EditQuestion(ctx, ref, p, func() bool { return true }))
	calls := f.api.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, "editMessageText", calls[0].Method)
	require.Equal(t, "7", calls[0].ChatID)
}
