package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

// State is the in-memory session.
type State struct {
	User            *models.User
	AccessToken     string
	RefreshToken    string
	ExpiresIn       int
	ExpiresAt       time.Time
	IsAuthenticated bool
	IsRefreshing    bool
}

// Expired reports whether the access token is known to have expired at now.
// A zero ExpiresAt is never expired.
func (s State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Snapshot is the durable session record.
type Snapshot struct {
	User            *models.User `json:"user,omitempty"`
	AccessToken     string       `json:"accessToken,omitempty"`
	RefreshToken    string       `json:"refreshToken,omitempty"`
	ExpiresIn       int          `json:"expiresIn,omitempty"`
	ExpiresAt       time.Time    `json:"expiresAt,omitzero"`
	IsAuthenticated bool         `json:"isAuthenticated"`
}

// Storage persists a single session snapshot.
//
// Load returns (nil, nil) when nothing has been stored.
type Storage interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Clear(ctx context.Context) error
}

// Serialize maps state to its durable record, dropping IsRefreshing.
func Serialize(s State) Snapshot {
	return Snapshot{
		User:            cloneUser(s.User),
		AccessToken:     s.AccessToken,
		RefreshToken:    s.RefreshToken,
		ExpiresIn:       s.ExpiresIn,
		ExpiresAt:       s.ExpiresAt,
		IsAuthenticated: s.IsAuthenticated,
	}
}

// Deserialize restores state from a durable record.
//
// A snapshot claiming authentication without an access token is restored as
// unauthenticated.
func Deserialize(snap Snapshot) State {
	return State{
		User:            cloneUser(snap.User),
		AccessToken:     snap.AccessToken,
		RefreshToken:    snap.RefreshToken,
		ExpiresIn:       snap.ExpiresIn,
		ExpiresAt:       snap.ExpiresAt,
		IsAuthenticated: snap.IsAuthenticated && snap.AccessToken != "",
	}
}

// EncodeSnapshot renders snap as JSON for byte-oriented storages.
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", shared.ErrStorage, err)
	}
	return data, nil
}

// DecodeSnapshot parses a JSON snapshot written by [EncodeSnapshot].
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrSnapshotCorrupt, err)
	}
	return &snap, nil
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
