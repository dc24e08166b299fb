package bot

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"events_bot/internal/card"
	"events_bot/internal/delivery"
)

// maxCaption is Telegram's limit for photo captions.
const maxCaption = 1024

// Platform resolves Telegram chats as delivery channels.
type Platform struct {
	api API
	log *slog.Logger
}

// NewPlatform creates a Platform on top of api.
func NewPlatform(api API, log *slog.Logger) *Platform {
	return &Platform{api: api, log: log}
}

// Channel returns the chat with the given ID. It fails when the bot cannot
// see the chat, for example after being removed from it.
func (p *Platform) Channel(ctx context.Context, id int64) (delivery.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chat, err := p.api.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: id}})
	if err != nil {
		return nil, fmt.Errorf("get chat %d: %w", id, err)
	}
	return &chatChannel{api: p.api, chat: chat, log: p.log}, nil
}

type chatChannel struct {
	api  API
	chat tgbotapi.Chat
	log  *slog.Logger
}

func (c *chatChannel) ID() int64 { return c.chat.ID }

func (c *chatChannel) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(c.chat.ID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendCard posts the card as a photo with caption when it has an image and
// fits into a caption, and as an HTML message otherwise. A rejected photo
// falls back to the HTML message; only that send can fail the card.
func (c *chatChannel) SendCard(ctx context.Context, cd card.Card) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := FormatCard(cd)

	if cd.ImageURL != "" && utf8.RuneCountInString(text) <= maxCaption {
		photo := tgbotapi.NewPhoto(c.chat.ID, tgbotapi.FileURL(cd.ImageURL))
		photo.Caption = text
		photo.ParseMode = tgbotapi.ModeHTML
		_, err := c.api.Send(photo)
		if err == nil {
			return nil
		}
		c.log.Warn("send photo failed, posting card as text",
			"chat_id", c.chat.ID, "image_url", cd.ImageURL, "error", err)
	}

	msg := tgbotapi.NewMessage(c.chat.ID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = cd.ImageURL == ""
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send card: %w", err)
	}
	return nil
}
