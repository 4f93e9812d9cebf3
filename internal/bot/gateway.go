package bot

import (
	"context"
	"errors"
	"strconv"

	"github.com/m3rciful/quizbot/core/telegram/sender"
	"github.com/m3rciful/quizbot/internal/quiz/session"

	tele "gopkg.in/telebot.v4"
)

// API is the part of *tele.Bot the gateway uses.
type API interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
	Edit(msg tele.Editable, what any, opts ...any) (*tele.Message, error)
}

// Enqueuer accepts outbound jobs; *sender.Dispatcher implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, j sender.Job) error
}

// Gateway renders session output and delivers it through the dispatcher.
type Gateway struct {
	api  API
	jobs Enqueuer
}

// NewGateway returns a Gateway; a nil jobs runs every call inline.
func NewGateway(api API, jobs Enqueuer) *Gateway {
	return &Gateway{api: api, jobs: jobs}
}

func (g *Gateway) submit(ctx context.Context, j sender.Job) error {
	if g.jobs == nil {
		return j.Run()
	}
	err := g.jobs.Enqueue(ctx, j)
	if errors.Is(err, sender.ErrQueueClosed) {
		return j.Run()
	}
	return err
}

func markdown(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeMarkdown, ReplyMarkup: markup}
}

func stored(ref session.Ref) tele.StoredMessage {
	return tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
}

func (g *Gateway) SendQuestion(ctx context.Context, p session.Prompt, sent func(session.Ref)) error {
	text, markup := questionText(p), questionMarkup(p)
	return g.submit(ctx, sender.Job{
		Action:   "send.question",
		Endpoint: "sendMessage",
		ChatID:   p.UserID,
		Run: func() error {
			msg, err := g.api.Send(tele.ChatID(p.UserID), text, markdown(markup))
			if err != nil {
				return err
			}
			if sent != nil && msg != nil {
				sent(session.Ref{ChatID: p.UserID, MessageID: msg.ID})
			}
			return nil
		},
	})
}

// EditQuestion queues a countdown refresh. current is checked when the job
// runs so an edit queued before the verdict cannot restore the keyboard.
func (g *Gateway) EditQuestion(ctx context.Context, ref session.Ref, p session.Prompt, current func() bool) error {
	text, markup := questionText(p), questionMarkup(p)
	return g.submit(ctx, sender.Job{
		Action:     "edit.countdown",
		Endpoint:   "editMessageText",
		ChatID:     ref.ChatID,
		BestEffort: true,
		Run: func() error {
			if current != nil && !current() {
				return nil
			}
			_, err := g.api.Edit(stored(ref), text, markdown(markup))
			return err
		},
	})
}

// CloseQuestion edits the question without a keyboard, which removes it.
func (g *Gateway) CloseQuestion(ctx context.Context, ref session.Ref, p session.Prompt, v session.Verdict) error {
	text := verdictText(p, v)
	return g.submit(ctx, sender.Job{
		Action:   "edit.verdict",
		Endpoint: "editMessageText",
		ChatID:   ref.ChatID,
		Run: func() error {
			_, err := g.api.Edit(stored(ref), text, markdown(nil))
			return err
		},
	})
}

func (g *Gateway) SendResult(ctx context.Context, r session.Result) error {
	text := resultText(r)
	return g.submit(ctx, sender.Job{
		Action:   "send.result",
		Endpoint: "sendMessage",
		ChatID:   r.UserID,
		Run: func() error {
			_, err := g.api.Send(tele.ChatID(r.UserID), text, markdown(nil))
			return err
		},
	})
}
