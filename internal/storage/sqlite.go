package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"events_bot/internal/model"
	"events_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serialises writers and keeps :memory: databases
	// shared between queries.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	if _, err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetChannel returns the destination channel bound to a server.
// The boolean is false when no channel has been configured.
func (s *SQLite) GetChannel(ctx context.Context, serverID int64) (int64, bool, error) {
	var channelID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_id FROM server_channels WHERE server_id = ?`, serverID,
	).Scan(&channelID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get channel: %w", err)
	}
	return channelID, true, nil
}

// SetChannel binds channelID as the destination for serverID.
func (s *SQLite) SetChannel(ctx context.Context, serverID, channelID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_channels (server_id, channel_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(server_id) DO UPDATE SET channel_id = excluded.channel_id, updated_at = excluded.updated_at`,
		serverID, channelID, now(),
	)
	if err != nil {
		return fmt.Errorf("set channel: %w", err)
	}
	return nil
}

// GetEnabled reports whether the weekly job is enabled for serverID.
// Servers that were never toggled are disabled.
func (s *SQLite) GetEnabled(ctx context.Context, serverID int64) (bool, error) {
	var enabled int
	err := s.db.QueryRowContext(ctx,
		`SELECT enabled FROM server_enables WHERE server_id = ?`, serverID,
	).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get enabled: %w", err)
	}
	return enabled == 1, nil
}

// SetEnabled persists the enabled flag for serverID.
func (s *SQLite) SetEnabled(ctx context.Context, serverID int64, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO server_enables (server_id, enabled, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(server_id) DO UPDATE SET enabled = excluded.enabled, updated_at = excluded.updated_at`,
		serverID, boolToInt(enabled), now(),
	)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	return nil
}

// ListServerIDs returns every server that has a channel binding or an
// enabled flag, in ascending order.
func (s *SQLite) ListServerIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT server_id FROM server_channels
		 UNION
		 SELECT server_id FROM server_enables
		 ORDER BY server_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query server ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan server id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetServerConfig combines the channel binding and enabled flag of a server.
func (s *SQLite) GetServerConfig(ctx context.Context, serverID int64) (*model.ServerConfig, error) {
	cfg := &model.ServerConfig{ServerID: serverID}

	channelID, ok, err := s.GetChannel(ctx, serverID)
	if err != nil {
		return nil, err
	}
	if ok {
		cfg.ChannelID = &channelID
	}

	cfg.Enabled, err = s.GetEnabled(ctx, serverID)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// RecordFetch stores the outcome of a successful fetch: the number of events
// returned by the API and how many of them fall into the posting window.
func (s *SQLite) RecordFetch(ctx context.Context, total, upcoming int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE stats SET events_total = events_total + ?, events_this_week = ?, last_fetch_at = ?
		 WHERE id = 1`,
		total, upcoming, now(),
	)
	if err != nil {
		return fmt.Errorf("record fetch: %w", err)
	}
	return nil
}

// RecordFetchError increments the failed fetch counter.
func (s *SQLite) RecordFetchError(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE stats SET fetch_errors = fetch_errors + 1 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("record fetch error: %w", err)
	}
	return nil
}

// GetStats returns the global fetch counters.
func (s *SQLite) GetStats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	var lastFetch sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT fetch_errors, events_total, events_this_week, last_fetch_at FROM stats WHERE id = 1`,
	).Scan(&st.FetchErrors, &st.EventsTotal, &st.EventsThisWeek, &lastFetch)
	if err != nil {
		return st, fmt.Errorf("get stats: %w", err)
	}
	if lastFetch.Valid {
		t, _ := time.Parse(timeLayout, lastFetch.String)
		st.LastFetchAt = &t
	}
	return st, nil
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
