package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"events_bot/internal/card"
)

type sent struct {
	Text string
	At   time.Time
}

type fakeChannel struct {
	mu       sync.Mutex
	sent     []sent
	failAt   int // 1-based index of the send that fails, 0 never fails
	attempts int
}

func (f *fakeChannel) ID() int64 { return 99 }

func (f *fakeChannel) record(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failAt > 0 && f.attempts == f.failAt {
		return errors.New("chat not found")
	}
	f.sent = append(f.sent, sent{Text: text, At: time.Now()})
	return nil
}

func (f *fakeChannel) SendText(_ context.Context, text string) error {
	return f.record("text:" + text)
}

func (f *fakeChannel) SendCard(_ context.Context, c card.Card) error {
	return f.record("card:" + c.Title)
}

func (f *fakeChannel) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		out = append(out, s.Text)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cards(titles ...string) []card.Card {
	var out []card.Card
	for _, t := range titles {
		out = append(out, card.Card{Title: t})
	}
	return out
}

func TestDeliver(t *testing.T) {
	tests := []struct {
		name     string
		failAt   int
		cards    []card.Card
		wantSent int
		wantText []string
		wantErr  error
	}{
		{
			name:     "summary then cards in order",
			cards:    cards("a", "b", "c"),
			wantSent: 3,
			wantText: []string{"text:summary", "card:a", "card:b", "card:c"},
		},
		{
			name:     "no cards sends summary only",
			wantText: []string{"text:summary"},
		},
		{
			name:     "summary failure sends nothing",
			failAt:   1,
			cards:    cards("a"),
			wantErr:  ErrChannelUnavailable,
			wantText: nil,
		},
		{
			name:     "card failure aborts the rest",
			failAt:   3,
			cards:    cards("a", "b", "c"),
			wantSent: 1,
			wantText: []string{"text:summary", "card:a"},
			wantErr:  ErrChannelUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{failAt: tt.failAt}
			p := NewPump(time.Millisecond, discardLogger())

			n, err := p.Deliver(context.Background(), ch, "summary", tt.cards)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.wantSent, n); diff != "" {
				t.Errorf("sent count mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantText, ch.texts()); diff != "" {
				t.Errorf("messages mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDeliverWaitsBetweenCards(t *testing.T) {
	const interval = 50 * time.Millisecond
	ch := &fakeChannel{}
	p := NewPump(interval, discardLogger())

	if _, err := p.Deliver(context.Background(), ch, "summary", cards("a", "b", "c")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ch.mu.Lock()
	defer ch.mu.Unlock()
	for i := 2; i < len(ch.sent); i++ {
		gap := ch.sent[i].At.Sub(ch.sent[i-1].At)
		if gap < interval-10*time.Millisecond {
			t.Errorf("gap between card %d and %d = %v, want >= %v", i-2, i-1, gap, interval)
		}
	}
}

func TestDeliverCancelled(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPump(time.Hour, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := p.Deliver(ctx, ch, "summary", cards("a", "b"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, ErrChannelUnavailable) {
		t.Errorf("cancellation should not be reported as %v", ErrChannelUnavailable)
	}
	if diff := cmp.Diff(1, n); diff != "" {
		t.Errorf("sent count mismatch (-want +got):\n%s", diff)
	}
}
