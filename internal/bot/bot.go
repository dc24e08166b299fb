// Package bot implements the Telegram command surface and the Telegram
// delivery platform.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"events_bot/internal/storage"
)

// API is the subset of the Telegram Bot API used by the bot.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Scheduler manages the weekly posting job of each chat.
type Scheduler interface {
	Enable(ctx context.Context, serverID int64) error
	Disable(ctx context.Context, serverID int64) error
	RunNow(ctx context.Context, serverID int64) error
	Enabled(serverID int64) bool
	Next(serverID int64) (time.Time, bool)
}

// Bot is the Telegram bot that handles administrative commands.
type Bot struct {
	api      API
	store    storage.Storage
	sched    Scheduler
	platform *Platform
	log      *slog.Logger

	// runs tracks /fetch runs started from command handlers.
	runs sync.WaitGroup
}

// New creates a Bot.
func New(api API, store storage.Storage, sched Scheduler, log *slog.Logger) *Bot {
	return &Bot{
		api:      api,
		store:    store,
		sched:    sched,
		platform: NewPlatform(api, log),
		log:      log,
	}
}

// request is a command invocation, either typed or from an inline button.
type request struct {
	chatID  int64
	private bool
	userID  int64
	args    string
	sentAt  time.Time
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
// Manual runs still delivering are awaited before Run returns.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.runs.Wait()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			b.handleCommand(ctx, update.Message)
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send reply", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	req := request{
		chatID:  msg.Chat.ID,
		private: msg.Chat.IsPrivate(),
		args:    strings.TrimSpace(msg.CommandArguments()),
		sentAt:  msg.Time(),
	}
	if msg.From != nil {
		req.userID = msg.From.ID
	}

	b.log.Debug("command", "cmd", cmd, "args", req.args, "chat_id", req.chatID, "user_id", req.userID)

	switch cmd {
	case "start", "help":
		b.handleHelp(req.chatID)
	case cmdHello:
		b.handleHello(req.chatID)
	case cmdPing:
		b.handlePing(req)
	case cmdSetChannel:
		b.handleSetChannel(ctx, req)
	case cmdEnable:
		b.handleEnable(ctx, req)
	case cmdDisable:
		b.handleDisable(ctx, req)
	case cmdFetch:
		b.handleFetch(ctx, req)
	case cmdStatus:
		b.handleStatus(ctx, req)
	default:
		b.reply(req.chatID, "Unknown command. Use /help for a list of commands.")
	}
}
