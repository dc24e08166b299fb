package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// handleCallback serves the inline buttons attached to /status.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}

	req := request{
		chatID:  cb.Message.Chat.ID,
		private: cb.Message.Chat.IsPrivate(),
		userID:  cb.From.ID,
	}

	b.log.Info("callback",
		"action", cb.Data,
		"chat_id", req.chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	ack := tgbotapi.NewCallback(cb.ID, "")
	if !b.isAdmin(req.chatID, req.private, req.userID) {
		ack.Text = msgNotAdmin
		ack.ShowAlert = true
	}
	if _, err := b.api.Request(ack); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
	if ack.ShowAlert {
		return
	}

	switch cb.Data {
	case cmdEnable:
		b.handleEnable(ctx, req)
	case cmdDisable:
		b.handleDisable(ctx, req)
	case cmdFetch:
		b.handleFetch(ctx, req)
	}
}
