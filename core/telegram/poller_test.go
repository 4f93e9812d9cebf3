package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/quizbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{Token: "123:abc", RunMode: coreconfig.RunModeWebhook},
		Webhook:  coreconfig.WebhookConfig{URL: "https://quiz.example.com/", Port: 3000, SecretToken: "s3cret"},
	}
	hook, ok := BuildPoller(cfg).(*tele.Webhook)
	if !ok {
		t.Fatal("expected webhook poller")
	}
	if hook.Listen != ":3000" {
		t.Fatalf("listen = %q", hook.Listen)
	}
	if hook.Endpoint.PublicURL != "https://quiz.example.com/bot123:abc" {
		t.Fatalf("public url = %q", hook.Endpoint.PublicURL)
	}
	if hook.SecretToken != "s3cret" {
		t.Fatal("secret token not propagated")
	}
}

func TestBuildPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{Token: "t", RunMode: coreconfig.RunModeLongpoll}}
	lp, ok := BuildPoller(cfg).(*tele.LongPoller)
	if !ok {
		t.Fatal("expected long poller")
	}
	if lp.Timeout != defaultLongPollTimeout {
		t.Fatalf("timeout = %s", lp.Timeout)
	}

	cfg.Telegram.LongPollTimeoutSeconds = 25
	if lp := BuildPoller(cfg).(*tele.LongPoller); lp.Timeout != 25*time.Second {
		t.Fatalf("timeout = %s", lp.Timeout)
	}
}

func TestDefaultMiddlewares(t *testing.T) {
	mws := DefaultMiddlewares(&coreconfig.Config{}, nil)
	if len(mws) != 3 {
		t.Fatalf("expected 3 middlewares without rate limit, got %d", len(mws))
	}
	cfg := &coreconfig.Config{RateLimit: coreconfig.RateLimitConfig{IntervalMS: 500}}
	mws = DefaultMiddlewares(cfg, nil)
	if mws[len(mws)-1].Name != "rate_limit" {
		t.Fatalf("rate limiter missing: %+v", mws)
	}
}
