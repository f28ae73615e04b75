package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// DefaultSlot is the snapshot row used when no slot is configured.
const DefaultSlot = "default"

// SQLiteStorage implements [session.Storage] on the session_snapshots table.
type SQLiteStorage struct {
	db   *sql.DB
	slot string
}

// NewSQLiteStorage creates a [SQLiteStorage] for the given slot. Migrations must already have run.
func NewSQLiteStorage(db *sql.DB, slot string) *SQLiteStorage {
	if slot == "" {
		slot = DefaultSlot
	}
	return &SQLiteStorage{db: db, slot: slot}
}

// Load reads the snapshot for the slot, returning (nil, nil) when none exists.
func (r *SQLiteStorage) Load(ctx context.Context) (*session.Snapshot, error) {
	var payload string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM session_snapshots WHERE slot = ?`, r.slot).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query snapshot: %v", shared.ErrStorage, err)
	}

	return session.DecodeSnapshot([]byte(payload))
}

// Save upserts the snapshot for the slot.
func (r *SQLiteStorage) Save(ctx context.Context, snap session.Snapshot) error {
	payload, err := session.EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO session_snapshots (slot, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, r.slot, string(payload), time.Now().UTC()); err != nil {
		return fmt.Errorf("%w: failed to save snapshot: %v", shared.ErrStorage, err)
	}
	return nil
}

// Clear deletes the snapshot for the slot.
func (r *SQLiteStorage) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE slot = ?`, r.slot); err != nil {
		return fmt.Errorf("%w: failed to clear snapshot: %v", shared.ErrStorage, err)
	}
	return nil
}
