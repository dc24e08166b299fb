// Package card renders events as platform-neutral message cards.
package card

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"events_bot/internal/model"
)

// Display constants.
const (
	DefaultColor   = 0xA60F2D
	MaxDescription = 1024
	Ellipsis       = "..."
	StartFormat    = "Monday, January 02, 2006 at 03:04 PM"
	RSVPLabel      = "Click Here"
)

// Field names.
const (
	FieldStartTime    = "Start Time"
	FieldLocation     = "Location"
	FieldOrganization = "Organization"
	FieldRSVP         = "RSVP"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Field is a named line of a card. When URL is set, Value is its link label.
type Field struct {
	Name  string
	Value string
	URL   string
}

// Card is a rich message describing a single event.
type Card struct {
	Title       string
	Description string
	URL         string
	Color       int
	ImageURL    string
	Fields      []Field
}

// Options control how events are turned into cards.
type Options struct {
	EventURLBase    string
	PhotoBaseURL    string
	PhotoCollection string
	Location        *time.Location
	Color           int
}

// Renderer builds cards from filtered events.
type Renderer struct {
	opts Options
}

// NewRenderer creates a Renderer. A nil Location displays times in UTC and a
// zero Color falls back to DefaultColor.
func NewRenderer(opts Options) *Renderer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Color == 0 {
		opts.Color = DefaultColor
	}
	return &Renderer{opts: opts}
}

// Location returns the zone used for displayed times.
func (r *Renderer) Location() *time.Location {
	return r.opts.Location
}

// Render builds the card for ev. Optional fields are left out when the
// event carries no value for them.
func (r *Renderer) Render(ev model.FilteredEvent) Card {
	c := Card{
		Title:       ev.EventName,
		Description: Truncate(StripTags(ev.Description), MaxDescription),
		URL:         r.opts.EventURLBase + ev.URI,
		Color:       r.opts.Color,
		Fields: []Field{
			{Name: FieldStartTime, Value: ev.Start.In(r.opts.Location).Format(StartFormat)},
		},
	}

	if ev.PhotoURI != "" {
		c.ImageURL = joinURL(r.opts.PhotoBaseURL, r.opts.PhotoCollection, ev.PhotoURI)
	}
	if ev.Location != "" {
		c.Fields = append(c.Fields, Field{Name: FieldLocation, Value: ev.Location})
	}
	if ev.OrganizationName != "" {
		c.Fields = append(c.Fields, Field{Name: FieldOrganization, Value: ev.OrganizationName})
	}
	if ev.RSVPLink != "" {
		c.Fields = append(c.Fields, Field{Name: FieldRSVP, Value: RSVPLabel, URL: ev.RSVPLink})
	}
	return c
}

// StripTags removes anything that looks like an HTML tag. The result is
// plain text for display and is not safe markup.
func StripTags(s string) string {
	return tagPattern.ReplaceAllString(s, "")
}

// Truncate shortens s to at most limit runes. A truncated result is exactly
// limit runes long and ends with Ellipsis.
func Truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-len(Ellipsis)]) + Ellipsis
}

// Summary is the message posted ahead of the cards.
func Summary(n int, now time.Time, loc *time.Location) string {
	date := now.In(loc).Format("Monday, January 2, 2006")
	switch n {
	case 0:
		return fmt.Sprintf("No events in the next 7 days (as of %s).", date)
	case 1:
		return fmt.Sprintf("Here is 1 event for the next 7 days (as of %s):", date)
	default:
		return fmt.Sprintf("Here are %d events for the next 7 days (as of %s):", n, date)
	}
}

func joinURL(parts ...string) string {
	var nonEmpty []string
	for i, p := range parts {
		if i > 0 {
			p = strings.TrimLeft(p, "/")
		}
		if i < len(parts)-1 {
			p = strings.TrimRight(p, "/")
		}
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "/")
}
