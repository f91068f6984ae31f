// Package store persists indexed room events in Postgres.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// Store wraps DB access.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS room_events (
	signature  TEXT        NOT NULL,
	log_index  INT         NOT NULL,
	slot       BIGINT      NOT NULL,
	block_time TIMESTAMPTZ,
	event_type TEXT        NOT NULL,
	room       TEXT        NOT NULL,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (signature, log_index)
);
CREATE INDEX IF NOT EXISTS room_events_room_idx ON room_events (room, slot);

CREATE TABLE IF NOT EXISTS indexer_cursor (
	id        INT  PRIMARY KEY,
	signature TEXT NOT NULL
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

// RoomEvent is one decoded program event attributed to a transaction log
// line.
type RoomEvent struct {
	Signature string
	LogIndex  int
	Slot      uint64
	BlockTime time.Time
	EventType string
	Room      string
	Payload   []byte
}

// InsertRoomEvent writes one event. Duplicate (signature, log_index) pairs
// are ignored, so replaying a signature range is safe.
func (s *Store) InsertRoomEvent(ctx context.Context, e RoomEvent) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO room_events (signature, log_index, slot, block_time, event_type, room, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (signature, log_index) DO NOTHING`,
		e.Signature, e.LogIndex, e.Slot, e.BlockTime, e.EventType, e.Room, e.Payload)
	return err
}

// ListRoomEvents returns events for one room, newest first.
func (s *Store) ListRoomEvents(ctx context.Context, room string, limit int) ([]RoomEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT signature, log_index, slot, block_time, event_type, room, payload
		FROM room_events WHERE room = $1
		ORDER BY slot DESC, log_index DESC
		LIMIT $2`, room, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RoomEvent
	for rows.Next() {
		var e RoomEvent
		if err := rows.Scan(&e.Signature, &e.LogIndex, &e.Slot, &e.BlockTime, &e.EventType, &e.Room, &e.Payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cursor returns the newest signature the indexer has fully processed.
func (s *Store) Cursor(ctx context.Context) (string, error) {
	var sig string
	err := s.Pool.QueryRow(ctx, `SELECT signature FROM indexer_cursor WHERE id = 1`).Scan(&sig)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return sig, nil
}

// SetCursor records the newest processed signature.
func (s *Store) SetCursor(ctx context.Context, signature string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO indexer_cursor (id, signature) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET signature = EXCLUDED.signature`, signature)
	return err
}
