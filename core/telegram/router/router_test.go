package router

import (
	"errors"
	"testing"

	tg "github.com/m3rciful/quizbot/core/telegram"
	"github.com/m3rciful/quizbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

type codedErr struct{}

func (codedErr) Error() string { return "rejected" }
func (codedErr) Code() string  { return "capacity_reached" }

type plainErr struct{}

func (*plainErr) Error() string { return "x" }

func TestErrorCode(t *testing.T) {
	if got := errorCode(codedErr{}); got != "CAPACITY_REACHED" {
		t.Fatalf("errorCode = %s", got)
	}
	if got := errorCode(&plainErr{}); got != "PLAINERR" {
		t.Fatalf("errorCode = %s", got)
	}
	if got := errorCode(errors.New("x")); got != "ERRORSTRING" {
		t.Fatalf("errorCode = %s", got)
	}
}

func TestCallbackRouteDispatchesByKey(t *testing.T) {
	reg := tg.NewRegistry()
	_ = reg.RegisterCallback("materia", func(tele.Context) error {
		t.Fatal("materia handler must not run for an unknown key")
		return nil
	})
	missing := 0
	reg.SetCallbackNotFound(func(tele.Context) error { missing++; return nil })

	route := CallbackRoute(reg)
	if route.Endpoint != tele.OnCallback {
		t.Fatalf("endpoint = %v", route.Endpoint)
	}

	c := tele.NewContext(nil, tele.Update{ID: 1, Callback: &tele.Callback{ID: "cb", Sender: &tele.User{ID: 1}, Data: "nope:1"}})
	if err := route.Handler(c); err != nil {
		t.Fatal(err)
	}
	if missing != 1 {
		t.Fatalf("fallback calls = %d", missing)
	}
}

func TestTextRouteResolvesAliases(t *testing.T) {
	reg := tg.NewRegistry()
	calls := 0
	_ = reg.RegisterCommand("/temas", commands.Command{
		Handler:     func(tele.Context) error { calls++; return nil },
		Description: "Temas",
		Aliases:     []string{"quiz"},
	})
	_ = reg.RegisterCommand("/activos", commands.Command{
		Handler:     func(tele.Context) error { t.Fatal("admin command must not run from text route"); return nil },
		Description: "Activos",
		AdminOnly:   true,
	})
	unknown := 0
	route := TextRoute(reg, TextOptions{UnknownText: func(tele.Context) error { unknown++; return nil }})

	for i, text := range []string{"/quiz", "/temas@PhysicsBankBot", "/activos", "hola"} {
		c := tele.NewContext(nil, tele.Update{ID: i, Message: &tele.Message{Text: text, Sender: &tele.User{ID: 5}, Chat: &tele.Chat{ID: 5}}})
		if err := route.Handler(c); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 2 || unknown != 2 {
		t.Fatalf("calls = %d, unknown = %d", calls, unknown)
	}
}
