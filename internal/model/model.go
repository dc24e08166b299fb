// Package model defines the domain types used across the application.
package model

import "time"

// StartLayout is the format of Event.StartDateTimeUTC as served by the events API.
const StartLayout = "2006-01-02T15:04:05Z"

// ServerConfig holds the per-server bot settings.
// A server is the chat in which administrative commands are issued.
type ServerConfig struct {
	ServerID  int64
	ChannelID *int64
	Enabled   bool
}

// Event is a single record returned by the remote events API.
// Optional string fields are empty when the source omits them.
type Event struct {
	EventNoSQLID     string `json:"eventNoSqlId"`
	EventName        string `json:"eventName"`
	Description      string `json:"description"`
	StartDateTimeUTC string `json:"startDateTimeUtc"`
	EndDateTimeUTC   string `json:"endDateTimeUtc"`
	URI              string `json:"uri"`
	PhotoURI         string `json:"photoUri"`
	Location         string `json:"location"`
	OrganizationName string `json:"organizationName"`
	RSVPLink         string `json:"rsvpLink"`
}

// FilteredEvent is an Event that falls inside the posting window,
// together with its parsed start time.
type FilteredEvent struct {
	Event
	Start time.Time
}

// Stats are process-wide counters about event fetching.
type Stats struct {
	FetchErrors    int
	EventsTotal    int
	EventsThisWeek int
	LastFetchAt    *time.Time
}
