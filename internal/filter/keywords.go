package filter

import (
	"fmt"
	"regexp"
	"strings"

	"events_bot/internal/model"
)

const regexPrefix = "re:"

// Excluder drops events whose name or description mention a blocked keyword.
// Plain keywords match as case-insensitive substrings; entries prefixed with
// "re:" are case-insensitive regular expressions.
type Excluder struct {
	words   []string
	regexes []*regexp.Regexp
}

// NewExcluder compiles the given keyword list. An empty list excludes nothing.
func NewExcluder(keywords []string) (*Excluder, error) {
	e := &Excluder{}
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(k, regexPrefix); ok {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
			}
			e.regexes = append(e.regexes, re)
			continue
		}
		e.words = append(e.words, strings.ToLower(k))
	}
	return e, nil
}

// Excluded reports whether ev matches any of the keywords.
func (e *Excluder) Excluded(ev model.Event) bool {
	if e == nil {
		return false
	}
	text := strings.ToLower(ev.EventName + " " + ev.Description)
	for _, w := range e.words {
		if strings.Contains(text, w) {
			return true
		}
	}
	for _, re := range e.regexes {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Apply returns the events that are not excluded, preserving order.
func (e *Excluder) Apply(events []model.FilteredEvent) []model.FilteredEvent {
	if e == nil || (len(e.words) == 0 && len(e.regexes) == 0) {
		return events
	}
	out := events[:0:0]
	for _, ev := range events {
		if !e.Excluded(ev.Event) {
			out = append(out, ev)
		}
	}
	return out
}
