package middleware

import (
	"errors"
	"testing"
	"time"

	tghelpers "github.com/m3rciful/quizbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

func messageFrom(updateID int, userID int64) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID},
			Text:   "/temas",
		},
	})
}

func callbackFrom(updateID int, userID int64) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Callback: &tele.Callback{
			Sender: &tele.User{ID: userID},
			Data:   "r:0:1",
		},
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := time.Unix(0, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return clock },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(messageFrom(1, 7))
	_ = h(messageFrom(2, 7))
	clock = clock.Add(500 * time.Millisecond)
	_ = h(messageFrom(3, 7))
	_ = h(messageFrom(4, 8))
	// answering buttons is never limited
	_ = h(callbackFrom(5, 7))
	clock = clock.Add(time.Second)
	_ = h(messageFrom(6, 7))

	if calls != 4 {
		t.Fatalf("calls = %d, want 4", calls)
	}
	if limited != 2 {
		t.Fatalf("limited = %d, want 2", limited)
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{
		AdminID:  8136071960,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	_ = h(messageFrom(1, 8136071960))
	_ = h(messageFrom(2, 42))

	if calls != 1 || rejected != 1 {
		t.Fatalf("calls = %d, rejected = %d", calls, rejected)
	}
	if (AdminOptions{}).IsAdmin(messageFrom(3, 0)) {
		t.Fatal("zero admin id must match nobody")
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(messageFrom(1, 7)); err == nil {
		t.Fatal("expected panic converted to error")
	}

	sentinel := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	if err := h(messageFrom(2, 7)); !errors.Is(err, sentinel) {
		t.Fatalf("unexpected err %v", err)
	}
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := messageFrom(99, 7)
	_ = LoggerMiddleware(func(tele.Context) error { return nil })(c)

	ctx, ok := tghelpers.ContextFrom(c)
	if !ok {
		t.Fatal("context not stored")
	}
	if rid, _ := c.Get("rid").(string); rid != "99:7:7" {
		t.Fatalf("rid = %q", rid)
	}
	if ctx == nil {
		t.Fatal("nil context")
	}
}
