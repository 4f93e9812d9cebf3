package middleware

import (
	"github.com/m3rciful/quizbot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind names the update type used for metrics labels and rate-limit exclusions.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message != nil:
		return "message"
	case u.Query != nil:
		return "inline_query"
	}
	return "other"
}

// MetricsMiddleware counts inbound updates by kind.
func MetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		metrics.Updates.WithLabelValues(UpdateKind(c.Update())).Inc()
		return next(c)
	}
}
