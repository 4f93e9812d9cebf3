package router

import (
	"time"

	tg "github.com/m3rciful/quizbot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// TextOptions controls fallback behaviour for free text.
type TextOptions struct {
	UnknownText tele.HandlerFunc
}

// TextRoute handles plain text: commands telebot did not match directly
// (aliases, "/cmd@bot" forms), then the registry fallback, then UnknownText.
func TextRoute(reg *tg.Registry, opts TextOptions) tg.Route {
	handler := func(c tele.Context) error {
		if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
			return handleWithSummary(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
		}
		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "fallback", func() error { return fb(c) })
		}
		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", func() error { return opts.UnknownText(c) })
		}
		logHandlerSummary(c, "unknown_text", time.Now(), "skip", nil)
		return nil
	}
	return tg.Route{Endpoint: tele.OnText, Handler: handler}
}
