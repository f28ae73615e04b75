package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

const storageTimeout = 5 * time.Second

// Store is the single source of truth for identity and tokens.
//
// Mutations are applied under a mutex, persisted through [Storage] and then
// published to subscribers outside the lock.
type Store struct {
	mu        sync.Mutex
	state     State
	hydrated  bool
	epoch     uint64
	storage   Storage
	logger    *log.Logger
	observers shared.Observers[State]
	now       func() time.Time
}

// NewStore creates a store backed by storage. A nil storage keeps the session in memory.
func NewStore(storage Storage, logger *log.Logger) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Store{
		storage: storage,
		logger:  logger.With("component", "session"),
		now:     time.Now,
	}
}

// Hydrate restores the persisted snapshot. It runs once; later calls are no-ops.
//
// The hydrated flag is set even when nothing was stored or the load failed, in
// which case the session is treated as unauthenticated and the error returned.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if s.hydrated {
		s.mu.Unlock()
		return nil
	}

	snap, err := s.storage.Load(ctx)
	s.hydrated = true
	if err != nil {
		s.logger.Warn("failed to restore session", "error", err)
	} else if snap != nil {
		s.state = Deserialize(*snap)
		s.logger.Debug("session restored", "authenticated", s.state.IsAuthenticated)
	}
	state := s.state
	state.User = cloneUser(state.User)
	s.mu.Unlock()

	s.observers.Notify(state)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStorage, err)
	}
	return nil
}

// IsHydrated distinguishes "not yet known" from "known to be unauthenticated".
func (s *Store) IsHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hydrated
}

// SetAuth establishes a session from a successful login or registration confirmation.
func (s *Store) SetAuth(res models.LoginResult) error {
	if res.User == nil || res.AccessToken == "" {
		return fmt.Errorf("%w: login result requires user and access token", shared.ErrInvalidInput)
	}

	s.mutate(true, func(st *State) {
		s.epoch++
		*st = State{
			User:            cloneUser(res.User),
			AccessToken:     res.AccessToken,
			RefreshToken:    res.RefreshToken,
			ExpiresIn:       res.ExpiresIn,
			ExpiresAt:       expiryFor(res.AccessToken, res.ExpiresIn, s.now()),
			IsAuthenticated: true,
			IsRefreshing:    st.IsRefreshing,
		}
	})
	return nil
}

// SetAccessToken replaces the access token after a refresh.
//
// A non-positive expiresIn keeps the previous expiry unless the token carries
// an exp claim. IsAuthenticated and the refresh token are left alone.
func (s *Store) SetAccessToken(token string, expiresIn int) {
	s.mutate(true, func(st *State) {
		st.AccessToken = token
		if expiresIn > 0 {
			st.ExpiresIn = expiresIn
			st.ExpiresAt = expiryFor(token, expiresIn, s.now())
		} else if exp := TokenExpiry(token); !exp.IsZero() {
			st.ExpiresAt = exp
		}
	})
}

// Epoch identifies the current session. It changes on every login and logout.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// ApplyRefresh stores a refreshed token pair issued for the session identified
// by epoch. It reports false, leaving the store untouched, when the session has
// since been replaced or cleared.
func (s *Store) ApplyRefresh(epoch uint64, pair models.TokenPair) bool {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	s.state.AccessToken = pair.AccessToken
	if pair.ExpiresIn > 0 {
		s.state.ExpiresIn = pair.ExpiresIn
		s.state.ExpiresAt = expiryFor(pair.AccessToken, pair.ExpiresIn, s.now())
	} else if exp := TokenExpiry(pair.AccessToken); !exp.IsZero() {
		s.state.ExpiresAt = exp
	}
	if pair.RefreshToken != "" {
		s.state.RefreshToken = pair.RefreshToken
	}
	s.save()
	state := s.state
	state.User = cloneUser(state.User)
	s.mu.Unlock()

	s.observers.Notify(state)
	return true
}

// SetRefreshToken stores a rotated refresh token.
func (s *Store) SetRefreshToken(token string) {
	s.mutate(true, func(st *State) { st.RefreshToken = token })
}

// SetUser replaces the identity record without touching tokens.
func (s *Store) SetUser(u *models.User) {
	s.mutate(true, func(st *State) { st.User = cloneUser(u) })
}

// SetRefreshing toggles the transient in-flight refresh flag. It is never persisted.
func (s *Store) SetRefreshing(v bool) {
	s.mutate(false, func(st *State) { st.IsRefreshing = v })
}

// Logout clears every field, including IsRefreshing, and removes the persisted snapshot.
func (s *Store) Logout() {
	s.mu.Lock()
	s.epoch++
	s.state = State{}
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	if err := s.storage.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted session", "error", err)
	}
	cancel()
	s.mu.Unlock()

	s.logger.Debug("session cleared")
	s.observers.Notify(State{})
}

func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RefreshToken
}

func (s *Store) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneUser(s.state.User)
}

func (s *Store) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsAuthenticated
}

func (s *Store) IsRefreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsRefreshing
}

// State returns a copy of the current session.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	st.User = cloneUser(st.User)
	return st
}

// Token implements [oauth2.TokenSource].
func (s *Store) Token() (*oauth2.Token, error) {
	st := s.State()
	if st.AccessToken == "" {
		return nil, shared.ErrNotAuthenticated
	}
	return &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: st.RefreshToken,
		Expiry:       st.ExpiresAt,
	}, nil
}

// Subscribe registers fn to run after every mutation, in registration order.
// The returned function detaches it.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.observers.Add(fn)
}

func (s *Store) mutate(persist bool, fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	if s.state.AccessToken == "" {
		s.state.IsAuthenticated = false
	}
	if persist {
		s.save()
	}
	state := s.state
	state.User = cloneUser(state.User)
	s.mu.Unlock()

	s.observers.Notify(state)
}

// save must be called with mu held so snapshots reach storage in mutation order.
func (s *Store) save() {
	ctx, cancel := context.WithTimeout(context.Background(), storageTimeout)
	defer cancel()

	if err := s.storage.Save(ctx, Serialize(s.state)); err != nil {
		s.logger.Warn("failed to persist session", "error", err)
	}
}
