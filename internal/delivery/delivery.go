// Package delivery posts rendered cards to a chat channel at a bounded rate.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"events_bot/internal/card"
)

// ErrChannelUnavailable is returned when the destination cannot be resolved
// or rejects a message.
var ErrChannelUnavailable = errors.New("channel unavailable")

// Channel is a destination that accepts messages.
type Channel interface {
	ID() int64
	SendText(ctx context.Context, text string) error
	SendCard(ctx context.Context, c card.Card) error
}

// Platform resolves channel IDs to channels.
type Platform interface {
	Channel(ctx context.Context, id int64) (Channel, error)
}

// Pump sends a summary followed by cards, one at a time.
type Pump struct {
	interval time.Duration
	log      *slog.Logger
}

// NewPump creates a Pump that leaves at least interval between two cards.
func NewPump(interval time.Duration, log *slog.Logger) *Pump {
	return &Pump{interval: interval, log: log}
}

// Deliver posts summary and then every card in order. It returns the number of
// cards sent. The first failed send aborts the rest of the delivery; cards
// that were already sent are not retracted.
func (p *Pump) Deliver(ctx context.Context, ch Channel, summary string, cards []card.Card) (int, error) {
	if err := ch.SendText(ctx, summary); err != nil {
		return 0, fmt.Errorf("%w: send summary: %w", ErrChannelUnavailable, err)
	}

	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	sent := 0
	for i, c := range cards {
		if err := limiter.Wait(ctx); err != nil {
			p.logPartial(ch, sent, len(cards), err)
			return sent, fmt.Errorf("wait before card %d: %w", i, err)
		}
		if err := ch.SendCard(ctx, c); err != nil {
			p.logPartial(ch, sent, len(cards), err)
			return sent, fmt.Errorf("%w: send card %d: %w", ErrChannelUnavailable, i, err)
		}
		sent++
	}

	p.log.Info("delivered events", "channel_id", ch.ID(), "count", sent)
	return sent, nil
}

func (p *Pump) logPartial(ch Channel, sent, total int, err error) {
	p.log.Error("delivery aborted",
		"channel_id", ch.ID(), "sent", sent, "total", total, "error", err)
}
