// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"events_bot/internal/model"
)

// Storage is the interface for all persistence operations.
//
// Channel bindings and enabled flags are two independent key-value stores
// keyed by server ID. Writes are last-write-wins and durable on return.
type Storage interface {
	GetChannel(ctx context.Context, serverID int64) (int64, bool, error)
	SetChannel(ctx context.Context, serverID, channelID int64) error

	GetEnabled(ctx context.Context, serverID int64) (bool, error)
	SetEnabled(ctx context.Context, serverID int64, enabled bool) error

	ListServerIDs(ctx context.Context) ([]int64, error)
	GetServerConfig(ctx context.Context, serverID int64) (*model.ServerConfig, error)

	RecordFetch(ctx context.Context, total, upcoming int) error
	RecordFetchError(ctx context.Context) error
	GetStats(ctx context.Context) (model.Stats, error)

	Close() error
}
