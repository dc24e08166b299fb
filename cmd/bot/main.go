package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/urfave/cli"

	"events_bot/internal/bot"
	"events_bot/internal/card"
	"events_bot/internal/config"
	"events_bot/internal/delivery"
	"events_bot/internal/fetcher"
	"events_bot/internal/filter"
	"events_bot/internal/scheduler"
	"events_bot/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "events-bot",
		Usage: "post the campus events of the next 7 days to Telegram chats every week",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:   "config, c",
				Usage:  "path to an optional YAML config file",
				EnvVar: "CONFIG_FILE",
			},
			cli.BoolFlag{
				Name:  "register-commands",
				Usage: "publish the command list to Telegram on startup",
			},
		},
		Action:      run,
		HideVersion: true,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("events-bot", "error", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create data directory %s: %w", dir, err)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DatabasePath, err)
	}
	defer func() { _ = store.Close() }()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return fmt.Errorf("create bot api: %w", err)
	}
	log.Info("authorized", "username", api.Self.UserName)

	if c.Bool("register-commands") {
		if err := bot.RegisterCommands(api); err != nil {
			return err
		}
		log.Info("registered commands", "count", len(bot.Commands))
	}

	exclude, err := filter.NewExcluder(cfg.ExcludeKeywords)
	if err != nil {
		return fmt.Errorf("exclude keywords: %w", err)
	}

	source := fetcher.New(&http.Client{}, cfg.EventsURL, log)
	source.SetTimeout(cfg.FetchTimeout)

	renderer := card.NewRenderer(card.Options{
		EventURLBase:    cfg.EventURLBase,
		PhotoBaseURL:    cfg.PhotoBaseURL,
		PhotoCollection: cfg.PhotoCollection,
		Location:        cfg.DisplayZone(),
	})

	pipeline := scheduler.NewPipeline(scheduler.PipelineConfig{
		Store:     store,
		Source:    source,
		Exclude:   exclude,
		Renderer:  renderer,
		Platform:  bot.NewPlatform(api, log),
		Pump:      delivery.NewPump(cfg.SendInterval, log),
		MaxEvents: cfg.MaxEvents,
	}, log)

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}
	reg, err := scheduler.NewRegistry(store, pipeline, scheduler.Options{Spec: cfg.Schedule, Location: loc}, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	n, err := reg.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("restore weekly jobs: %w", err)
	}
	log.Info("restored weekly jobs", "count", n, "schedule", cfg.Schedule, "timezone", cfg.Timezone)

	b := bot.New(api, store, reg, log)

	log.Info("starting bot")

	done := make(chan struct{})
	go func() {
		defer close(done)
		reg.Run(ctx)
	}()

	notify(log, daemon.SdNotifyReady)
	b.Run(ctx)
	notify(log, daemon.SdNotifyStopping)

	<-done
	log.Info("bot stopped")
	return nil
}

// notify reports the service state to systemd. It is a no-op when the bot
// is not started by systemd.
func notify(log *slog.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		log.Warn("sd_notify", "state", state, "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
