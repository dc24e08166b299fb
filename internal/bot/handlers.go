package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"events_bot/internal/scheduler"
)

const (
	msgNotAdmin       = "You need to be a chat admin to use this command!"
	msgNoChannel      = "No channel has been configured for this chat, use /setchannel to set one!"
	msgEnabled        = "The bot has been enabled!"
	msgAlreadyEnabled = "The bot is already enabled!"
	msgDisabled       = "The bot has been disabled!"
	msgNotEnabled     = "The bot is not enabled!"
	msgFetching       = "Fetching events..."
	msgPosted         = "Events have been posted."
	msgRunInProgress  = "Events are already being posted, please wait."
)

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Campus events bot: posts the events of the next 7 days every week.

Setup:
/setchannel [chat_id] — post events to this chat, or to the given chat
/enable — post events every week
/disable — stop weekly posting

Other commands:
/fetch — post the events of the next 7 days now
/status — show the configuration of this chat
/ping — check the bot's response time
/hello — say hello

Setup commands require chat admin rights.`)
}

func (b *Bot) handleHello(chatID int64) {
	b.reply(chatID, "Hey!")
}

func (b *Bot) handlePing(req request) {
	latency := time.Since(req.sentAt)
	if req.sentAt.IsZero() || latency < 0 {
		latency = 0
	}
	b.reply(req.chatID, fmt.Sprintf("Pong! Latency: %dms", latency.Milliseconds()))
}

// isAdmin reports whether userID may configure chatID. Private chats belong
// to the user talking to the bot.
func (b *Bot) isAdmin(chatID int64, private bool, userID int64) bool {
	if private || chatID == userID {
		return true
	}
	if userID == 0 {
		return false
	}
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		b.log.Warn("get chat member", "chat_id", chatID, "user_id", userID, "error", err)
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

func (b *Bot) requireAdmin(req request) bool {
	if b.isAdmin(req.chatID, req.private, req.userID) {
		return true
	}
	b.reply(req.chatID, msgNotAdmin)
	return false
}

func (b *Bot) handleSetChannel(ctx context.Context, req request) {
	if !b.requireAdmin(req) {
		return
	}

	target, explicit, err := ParseChatIDArg(req.args)
	if err != nil {
		b.reply(req.chatID, err.Error())
		return
	}
	if !explicit {
		target = req.chatID
	}

	if explicit && target != req.chatID {
		if _, err := b.platform.Channel(ctx, target); err != nil {
			b.log.Warn("set channel: target not reachable", "chat_id", req.chatID, "target", target, "error", err)
			b.reply(req.chatID, fmt.Sprintf("I can't access chat %d. Add me to it first.", target))
			return
		}
		if !b.isAdmin(target, false, req.userID) {
			b.reply(req.chatID, fmt.Sprintf("You need to be an admin of chat %d to post events there!", target))
			return
		}
	}

	if err := b.store.SetChannel(ctx, req.chatID, target); err != nil {
		b.log.Error("set channel", "chat_id", req.chatID, "target", target, "error", err)
		b.reply(req.chatID, fmt.Sprintf("Error saving channel: %v", err))
		return
	}

	b.log.Info("channel set", "chat_id", req.chatID, "target", target)
	if target == req.chatID {
		b.reply(req.chatID, "Events will be posted to this chat.")
		return
	}
	b.reply(req.chatID, fmt.Sprintf("Events will be posted to chat %d.", target))
}

func (b *Bot) handleEnable(ctx context.Context, req request) {
	if !b.requireAdmin(req) {
		return
	}

	err := b.sched.Enable(ctx, req.chatID)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyEnabled):
		b.reply(req.chatID, msgAlreadyEnabled)
		return
	case err != nil:
		b.log.Error("enable", "chat_id", req.chatID, "error", err)
		b.reply(req.chatID, fmt.Sprintf("Error enabling the bot: %v", err))
		return
	}

	text := msgEnabled
	if _, ok, err := b.store.GetChannel(ctx, req.chatID); err == nil && !ok {
		text += "\n" + msgNoChannel
	}
	b.reply(req.chatID, text)
}

func (b *Bot) handleDisable(ctx context.Context, req request) {
	if !b.requireAdmin(req) {
		return
	}

	err := b.sched.Disable(ctx, req.chatID)
	switch {
	case errors.Is(err, scheduler.ErrAlreadyDisabled):
		b.reply(req.chatID, msgNotEnabled)
	case err != nil:
		b.log.Error("disable", "chat_id", req.chatID, "error", err)
		b.reply(req.chatID, fmt.Sprintf("Error disabling the bot: %v", err))
	default:
		b.reply(req.chatID, msgDisabled)
	}
}

// handleFetch starts a manual run without blocking the update loop and
// reports its outcome when it completes.
func (b *Bot) handleFetch(ctx context.Context, req request) {
	if !b.requireAdmin(req) {
		return
	}

	b.reply(req.chatID, msgFetching)

	b.runs.Add(1)
	go func() {
		defer b.runs.Done()

		err := b.sched.RunNow(ctx, req.chatID)
		switch {
		case err == nil:
			b.reply(req.chatID, msgPosted)
		case errors.Is(err, scheduler.ErrNotConfigured):
			b.reply(req.chatID, msgNoChannel)
		case errors.Is(err, scheduler.ErrRunInProgress):
			b.reply(req.chatID, msgRunInProgress)
		case errors.Is(err, context.Canceled):
			b.log.Info("manual run cancelled", "chat_id", req.chatID)
		default:
			b.log.Error("manual run", "chat_id", req.chatID, "error", err)
			b.reply(req.chatID, fmt.Sprintf("Failed to post events: %v", err))
		}
	}()
}

func (b *Bot) handleStatus(ctx context.Context, req request) {
	cfg, err := b.store.GetServerConfig(ctx, req.chatID)
	if err != nil {
		b.log.Error("get server config", "chat_id", req.chatID, "error", err)
		b.reply(req.chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	stats, err := b.store.GetStats(ctx)
	if err != nil {
		b.log.Error("get stats", "error", err)
		b.reply(req.chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	enabled := b.sched.Enabled(req.chatID)
	var next *time.Time
	if t, ok := b.sched.Next(req.chatID); ok {
		next = &t
	}

	toggle := tgbotapi.NewInlineKeyboardButtonData("Enable", cmdEnable)
	if enabled {
		toggle = tgbotapi.NewInlineKeyboardButtonData("Disable", cmdDisable)
	}

	msg := tgbotapi.NewMessage(req.chatID, FormatStatus(cfg, enabled, next, stats))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			toggle,
			tgbotapi.NewInlineKeyboardButtonData("Post now", cmdFetch),
		),
	)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send status", "chat_id", req.chatID, "error", err)
	}
}
