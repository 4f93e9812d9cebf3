package telegram

import (
	"fmt"
	"log/slog"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	"github.com/m3rciful/quizbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// WebhookInfo summarises Telegram's view of the registered webhook.
type WebhookInfo struct {
	URL            string
	PendingUpdates int
	LastError      string
}

// SetWebhook registers <webhook.url>/bot<token> with Telegram.
func SetWebhook(cfg *coreconfig.Config, dropPending bool) (string, error) {
	if cfg.Webhook.URL == "" {
		return "", fmt.Errorf("webhook.url is not configured")
	}
	bot, err := NewBot(cfg, nil, false)
	if err != nil {
		return "", err
	}
	public := PublicWebhookURL(cfg.Webhook.URL, cfg.Telegram.Token)
	hook := &tele.Webhook{
		SecretToken:    cfg.Webhook.SecretToken,
		DropUpdates:    dropPending,
		AllowedUpdates: []string{"message", "callback_query"},
		Endpoint:       &tele.WebhookEndpoint{PublicURL: public},
	}
	if err := bot.SetWebhook(hook); err != nil {
		return "", fmt.Errorf("set webhook: %w", err)
	}
	logger.TG.Info("webhook set",
		slog.String("event", "tg.webhook.set"),
		slog.String("public_url", cfg.Webhook.URL+"/bot<redacted>"),
	)
	return public, nil
}

// DeleteWebhook removes the webhook so long polling can be used.
func DeleteWebhook(cfg *coreconfig.Config, dropPending bool) error {
	bot, err := NewBot(cfg, nil, false)
	if err != nil {
		return err
	}
	if err := bot.RemoveWebhook(dropPending); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}

// GetWebhookInfo reports the webhook currently registered with Telegram.
func GetWebhookInfo(cfg *coreconfig.Config) (WebhookInfo, error) {
	bot, err := NewBot(cfg, nil, false)
	if err != nil {
		return WebhookInfo{}, err
	}
	hook, err := bot.Webhook()
	if err != nil {
		return WebhookInfo{}, fmt.Errorf("get webhook info: %w", err)
	}
	// telebot decodes getWebhookInfo's "url" into Listen
	return WebhookInfo{URL: hook.Listen, PendingUpdates: hook.PendingUpdates, LastError: hook.ErrorMessage}, nil
}
