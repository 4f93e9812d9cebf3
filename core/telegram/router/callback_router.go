package router

import (
	"log/slog"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns the OnCallback route that dispatches "<key>:<payload>"
// data to the handler registered for key.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Parse(cb.Data)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		h, ok := reg.GetCallback(key)
		if !ok {
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, func() error {
				if fb := reg.CallbackNotFound(); fb != nil {
					return fb(c)
				}
				return nil
			}, extras...)
		}
		return handleWithSummary(c, name, func() error {
			// stop the button spinner before doing the work
			_ = c.Respond()
			return h(c)
		}, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
