package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"dollhouse/pkg/channel"
	"dollhouse/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Adapter bridges Telegram chats into the room.
type Adapter struct {
	cfg       config.TelegramConfig
	allowFrom map[string]struct{}
	log       *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("channels.telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		allowFrom: allowFromSet(cfg.AllowFrom),
		log:       log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in sender keys and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run starts Telegram long polling and hands every text message to handler.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	bot, err := telego.NewBot(strings.TrimSpace(a.cfg.Token))
	if err != nil {
		return fmt.Errorf("initialize telegram bot: %w", err)
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			inbound, ok := a.toInbound(update)
			if !ok {
				continue
			}
			a.log.Info("Received message", "chat_id", inbound.ChatID, "sender_id", inbound.SenderID, "content", previewText(inbound.Content))

			reply, err := handler(ctx, inbound)
			if err != nil {
				a.log.Error("Failed to bridge message", "error", err)
				reply = channel.Reply{Error: "Could not post that to the room, try again in a moment."}
			}

			text := strings.TrimSpace(reply.Content)
			if text == "" {
				text = strings.TrimSpace(reply.Error)
			}
			if text == "" {
				continue
			}

			if _, err := bot.SendMessage(ctx, tu.Message(tu.ID(update.Message.Chat.ID), text)); err != nil {
				a.log.Error("Failed to send telegram message", "error", err)
			}
		}
	}
}

// toInbound keeps text messages from allowed senders.
func (a *Adapter) toInbound(update telego.Update) (channel.Inbound, bool) {
	message := update.Message
	if message == nil {
		return channel.Inbound{}, false
	}

	content := strings.TrimSpace(message.Text)
	if content == "" {
		return channel.Inbound{}, false
	}
	if message.From == nil {
		a.log.Debug("Ignoring message without sender")
		return channel.Inbound{}, false
	}

	senderID := strconv.FormatInt(message.From.ID, 10)
	if !a.senderAllowed(senderID) {
		a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
		return channel.Inbound{}, false
	}

	return channel.Inbound{
		Channel:    channelName,
		SenderID:   senderID,
		SenderName: displayName(message.From),
		ChatID:     strconv.FormatInt(message.Chat.ID, 10),
		Content:    content,
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
		},
	}, true
}

// displayName prefers the first name, then the username.
func displayName(user *telego.User) string {
	if name := strings.TrimSpace(user.FirstName); name != "" {
		return name
	}
	return strings.TrimSpace(user.Username)
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
