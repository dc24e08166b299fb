package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"events_bot/internal/card"
	"events_bot/internal/model"
)

const (
	statusEnabled  = "enabled"
	statusDisabled = "disabled"
)

// FormatCard formats a card as a Telegram HTML message.
func FormatCard(c card.Card) string {
	var b strings.Builder

	title := escape(c.Title)
	if c.URL != "" {
		fmt.Fprintf(&b, "<b><a href=\"%s\">%s</a></b>\n", escapeAttr(c.URL), title)
	} else {
		fmt.Fprintf(&b, "<b>%s</b>\n", title)
	}

	if c.Description != "" {
		b.WriteString("\n")
		b.WriteString(escape(html.UnescapeString(c.Description)))
		b.WriteString("\n")
	}

	if len(c.Fields) > 0 {
		b.WriteString("\n")
	}
	for _, f := range c.Fields {
		value := escape(f.Value)
		if f.URL != "" {
			value = fmt.Sprintf("<a href=\"%s\">%s</a>", escapeAttr(f.URL), value)
		}
		fmt.Fprintf(&b, "<b>%s:</b> %s\n", escape(f.Name), value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStatus describes the configuration of a chat and the global stats.
func FormatStatus(cfg *model.ServerConfig, enabled bool, next *time.Time, stats model.Stats) string {
	var b strings.Builder

	if cfg.ChannelID != nil {
		if *cfg.ChannelID == cfg.ServerID {
			b.WriteString("Channel: this chat\n")
		} else {
			fmt.Fprintf(&b, "Channel: %d\n", *cfg.ChannelID)
		}
	} else {
		b.WriteString("Channel: not configured (use /setchannel)\n")
	}

	status := statusDisabled
	if enabled {
		status = statusEnabled
	}
	fmt.Fprintf(&b, "Weekly posting: %s\n", status)
	if enabled && next != nil {
		fmt.Fprintf(&b, "Next run: %s\n", next.Format("Mon, Jan 2 2006 15:04 MST"))
	}

	b.WriteString("\nStats:\n")
	fmt.Fprintf(&b, "  events fetched: %d\n", stats.EventsTotal)
	fmt.Fprintf(&b, "  events this week: %d\n", stats.EventsThisWeek)
	fmt.Fprintf(&b, "  fetch errors: %d\n", stats.FetchErrors)
	if stats.LastFetchAt != nil {
		fmt.Fprintf(&b, "  last fetch: %s\n", stats.LastFetchAt.Format("2006-01-02 15:04 UTC"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(escape(s), `"`, "&quot;")
}
