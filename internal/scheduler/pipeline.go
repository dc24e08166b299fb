package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"events_bot/internal/card"
	"events_bot/internal/delivery"
	"events_bot/internal/filter"
	"events_bot/internal/model"
	"events_bot/internal/storage"
)

// ErrNotConfigured is returned when a server has no destination channel.
var ErrNotConfigured = errors.New("no channel configured")

// EventSource returns the raw event list.
type EventSource interface {
	FetchAll(ctx context.Context) ([]model.Event, error)
}

// Pipeline fetches, filters, renders and delivers events for one server.
type Pipeline struct {
	store    storage.Storage
	source   EventSource
	exclude  *filter.Excluder
	renderer *card.Renderer
	platform delivery.Platform
	pump     *delivery.Pump
	log      *slog.Logger

	maxEvents int
	now       func() time.Time
}

// PipelineConfig groups the collaborators of a Pipeline.
type PipelineConfig struct {
	Store    storage.Storage
	Source   EventSource
	Exclude  *filter.Excluder
	Renderer *card.Renderer
	Platform delivery.Platform
	Pump     *delivery.Pump

	// MaxEvents caps the number of posted cards; zero means no cap.
	MaxEvents int
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:     cfg.Store,
		source:    cfg.Source,
		exclude:   cfg.Exclude,
		renderer:  cfg.Renderer,
		platform:  cfg.Platform,
		pump:      cfg.Pump,
		log:       log,
		maxEvents: cfg.MaxEvents,
		now:       time.Now,
	}
}

// Post runs the pipeline for serverID and posts the upcoming events into its
// configured channel. Nothing is posted if fetching fails.
func (p *Pipeline) Post(ctx context.Context, serverID int64) error {
	channelID, ok, err := p.store.GetChannel(ctx, serverID)
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}
	if !ok {
		return ErrNotConfigured
	}

	p.log.Info("fetching events", "server_id", serverID)
	raw, err := p.source.FetchAll(ctx)
	if err != nil {
		if serr := p.store.RecordFetchError(ctx); serr != nil {
			p.log.Error("record fetch error", "error", serr)
		}
		return fmt.Errorf("fetch events: %w", err)
	}

	now := p.now()
	events := p.exclude.Apply(filter.Upcoming(raw, now, p.log))
	if p.maxEvents > 0 && len(events) > p.maxEvents {
		events = events[:p.maxEvents]
	}
	p.log.Info("found upcoming events", "server_id", serverID, "total", len(raw), "upcoming", len(events))

	if err := p.store.RecordFetch(ctx, len(raw), len(events)); err != nil {
		p.log.Error("record fetch", "error", err)
	}

	ch, err := p.platform.Channel(ctx, channelID)
	if err != nil {
		return fmt.Errorf("%w: resolve channel %d: %w", delivery.ErrChannelUnavailable, channelID, err)
	}

	cards := make([]card.Card, 0, len(events))
	for _, ev := range events {
		cards = append(cards, p.renderer.Render(ev))
	}

	summary := card.Summary(len(cards), now, p.renderer.Location())
	if _, err := p.pump.Deliver(ctx, ch, summary, cards); err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}
