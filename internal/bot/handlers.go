// Package bot adapts the quiz engine to Telegram: command and callback
// handlers, message rendering and the outbound gateway.
package bot

import (
	"context"
	"errors"
	"time"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"
	"github.com/m3rciful/quizbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"
	"github.com/m3rciful/quizbot/internal/quiz/bank"
	"github.com/m3rciful/quizbot/internal/quiz/ranking"
	"github.com/m3rciful/quizbot/internal/quiz/session"

	tele "gopkg.in/telebot.v4"
)

// Catalog lists the question bank's menus.
type Catalog interface {
	Subjects() []string
	Topics(subject string) []string
}

// Course reads and toggles the course flag and lists paused topics.
type Course interface {
	CourseActive(ctx context.Context) bool
	SetCourseActive(ctx context.Context, active bool) error
	PausedTopics(ctx context.Context, userID int64) []string
}

// Options configures Handlers.
type Options struct {
	Engine  *session.Engine
	Ranking *ranking.Service
	Catalog Catalog
	Course  Course

	// TopN bounds the per-topic ranking; 0 shows everyone.
	TopN int
	// OverviewTop bounds each topic in the /ranking overview; 0 means 3.
	OverviewTop int
	Location    *time.Location
}

// Handlers implements every quiz command and callback.
type Handlers struct {
	engine      *session.Engine
	ranking     *ranking.Service
	catalog     Catalog
	course      Course
	topN        int
	overviewTop int
	loc         *time.Location
}

func NewHandlers(opts Options) *Handlers {
	h := &Handlers{
		engine:      opts.Engine,
		ranking:     opts.Ranking,
		catalog:     opts.Catalog,
		course:      opts.Course,
		topN:        opts.TopN,
		overviewTop: opts.OverviewTop,
		loc:         opts.Location,
	}
	if h.overviewTop <= 0 {
		h.overviewTop = 3
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	return h
}

// Register adds the quiz commands, callbacks and fallbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{"/start", commands.Command{Handler: h.Start, Description: "Bienvenida y ayuda", Aliases: []string{"help", "ayuda"}}},
		{"/temas", commands.Command{Handler: h.Subjects, Description: "Elegir materia y tópico"}},
		{"/minota", commands.Command{Handler: h.Grades, Description: "Ver mis notas"}},
		{"/ranking", commands.Command{Handler: h.Ranking, Description: "Ranking por tema"}},
		{"/pausar", commands.Command{Handler: h.Pause, Description: "Pausar el quiz actual"}},
		{"/reanudar", commands.Command{Handler: h.Resume, Description: "Reanudar un quiz pausado"}},
		{"/terminar", commands.Command{Handler: h.Stop, Description: "Abandonar el quiz actual"}},
		{"/historial", commands.Command{Handler: h.History, Description: "Ver mi historial"}},
		{"/activos", commands.Command{Handler: h.Roster, Description: "Estudiantes activos", AdminOnly: true}},
		{"/activar", commands.Command{Handler: h.Activate, Description: "Activar el curso", AdminOnly: true}},
		{"/desactivar", commands.Command{Handler: h.Deactivate, Description: "Desactivar el curso", AdminOnly: true}},
	}
	for _, c := range cmds {
		if err := reg.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}

	cbs := map[string]tele.HandlerFunc{
		cbSubject: h.OnSubject,
		cbTopic:   h.OnTopic,
		cbAnswer:  h.OnAnswer,
		cbRanking: h.OnRanking,
		cbGrade:   h.OnGrade,
		cbResume:  h.OnResume,
	}
	for key, fn := range cbs {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error { return tghelpers.SendMD(c, msgBadButton) })
	reg.SetTextFallback(func(c tele.Context) error { return tghelpers.SendMD(c, msgUnknown) })
	return nil
}

// RejectAdmin answers non-admin callers of admin commands.
func RejectAdmin(c tele.Context) error {
	return tghelpers.SendMD(c, msgAdminOnly)
}

func user(c tele.Context) session.User {
	u := c.Sender()
	if u == nil {
		return session.User{}
	}
	return session.User{ID: u.ID, Name: tghelpers.DisplayName(u)}
}

// reply sends the rejection text for err, or returns err unchanged.
func reply(c tele.Context, err error) error {
	if r, ok := session.AsRejection(err); ok {
		return tghelpers.SendMD(c, rejectionMessage(r))
	}
	return err
}

func (h *Handlers) Start(c tele.Context) error {
	return tghelpers.SendMD(c, msgWelcome)
}

func (h *Handlers) Subjects(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if !h.course.CourseActive(ctx) {
		return tghelpers.SendMD(c, rejectionText[session.ReasonCourseInactive])
	}
	subjects := h.catalog.Subjects()
	if len(subjects) == 0 {
		return tghelpers.SendMD(c, msgNoSubjects)
	}
	return tghelpers.SendMD(c, msgChooseSubject, subjectMenu(subjects))
}

func (h *Handlers) OnSubject(c tele.Context) error {
	subject := callbacks.Payload(c)
	topics := h.catalog.Topics(subject)
	if len(topics) == 0 {
		return tghelpers.SendMD(c, msgNoTopics)
	}
	return tghelpers.EditOrSendMD(c, chooseTopicText(subject), topicMenu(subject, topics))
}

func (h *Handlers) OnTopic(c tele.Context) error {
	parts, err := callbacks.PayloadParts(c, 2)
	if err != nil {
		return tghelpers.SendMD(c, rejectionText[session.ReasonInvalidTopic])
	}
	ctx := tghelpers.BuildContext(c)
	key := bank.TopicKey(parts[0], parts[1])
	if err := h.engine.Start(ctx, user(c), key); err != nil {
		return reply(c, err)
	}
	return tghelpers.EditOrSendMD(c, startedText(key))
}

func (h *Handlers) OnAnswer(c tele.Context) error {
	vals, err := callbacks.PayloadInts(c, 2)
	if err != nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return h.engine.Submit(ctx, user(c).ID, vals[0], vals[1])
}

func (h *Handlers) Pause(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	p, err := h.engine.Pause(ctx, user(c).ID)
	if err != nil {
		return reply(c, err)
	}
	return tghelpers.SendMD(c, pausedText(p))
}

func (h *Handlers) Resume(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	u := user(c)
	topics := h.course.PausedTopics(ctx, u.ID)
	switch len(topics) {
	case 0:
		return tghelpers.SendMD(c, msgNoPaused)
	case 1:
		return reply(c, h.engine.Resume(ctx, u, topics[0]))
	}
	return tghelpers.SendMD(c, msgChoosePaused, topicKeyMenu(cbResume, topics, 1))
}

func (h *Handlers) OnResume(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	key := callbacks.Payload(c)
	if err := h.engine.Resume(ctx, user(c), key); err != nil {
		return reply(c, err)
	}
	return tghelpers.EditOrSendMD(c, resumedText(key))
}

func (h *Handlers) Stop(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if _, err := h.engine.Stop(ctx, user(c).ID); err != nil {
		return reply(c, err)
	}
	return tghelpers.SendMD(c, msgStopped)
}

func (h *Handlers) Grades(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	list := h.ranking.Personal(ctx, user(c).ID)
	if len(list) == 0 {
		return tghelpers.SendMD(c, msgNoGrades)
	}
	keys := make([]string, 0, len(list))
	for _, p := range list {
		keys = append(keys, p.Topic)
	}
	return tghelpers.SendMD(c, gradesText(list), topicKeyMenu(cbGrade, keys, 2))
}

func (h *Handlers) OnGrade(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	p, ok := h.ranking.PersonalTopic(ctx, user(c).ID, callbacks.Payload(c))
	if !ok {
		return tghelpers.SendMD(c, msgNoGrades)
	}
	return tghelpers.SendMD(c, gradeDetailText(p))
}

func (h *Handlers) Ranking(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	overview := h.ranking.Overview(ctx, h.overviewTop)
	if len(overview) == 0 {
		return tghelpers.SendMD(c, msgNoRanking)
	}
	keys := make([]string, 0, len(overview))
	for _, t := range overview {
		keys = append(keys, t.Topic)
	}
	return tghelpers.SendMD(c, overviewText(overview), topicKeyMenu(cbRanking, keys, 2))
}

func (h *Handlers) OnRanking(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	key := callbacks.Payload(c)
	return tghelpers.SendMD(c, rankingText(key, h.ranking.Ranking(ctx, key, h.topN)))
}

func (h *Handlers) Roster(c tele.Context) error {
	r, err := h.ranking.Roster(user(c).ID)
	if errors.Is(err, ranking.ErrPermissionDenied) {
		return RejectAdmin(c)
	}
	if err != nil {
		return err
	}
	if r.Total == 0 {
		return tghelpers.SendMD(c, msgNoActive)
	}
	return tghelpers.SendMD(c, rosterText(r))
}

func (h *Handlers) History(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	entries := h.ranking.History(ctx, user(c).ID)
	if len(entries) == 0 {
		return tghelpers.SendMD(c, msgNoHistory)
	}
	return tghelpers.SendMD(c, historyText(entries, h.loc))
}

func (h *Handlers) Activate(c tele.Context) error {
	return h.setCourse(c, true)
}

func (h *Handlers) Deactivate(c tele.Context) error {
	return h.setCourse(c, false)
}

func (h *Handlers) setCourse(c tele.Context, active bool) error {
	ctx := tghelpers.BuildContext(c)
	if err := h.course.SetCourseActive(ctx, active); err != nil {
		return err
	}
	if active {
		return tghelpers.SendMD(c, msgCourseOn)
	}
	return tghelpers.SendMD(c, msgCourseOff)
}
