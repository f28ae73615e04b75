package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/shared"
)

type failingStorage struct {
	loadErr  error
	saveErr  error
	clearErr error
	saves    int
}

func (f *failingStorage) Load(ctx context.Context) (*Snapshot, error) { return nil, f.loadErr }
func (f *failingStorage) Save(ctx context.Context, snap Snapshot) error {
	f.saves++
	return f.saveErr
}
func (f *failingStorage) Clear(ctx context.Context) error { return f.clearErr }

func newTestStore(t *testing.T, storage Storage) *Store {
	t.Helper()
	return NewStore(storage, shared.NewLogger(io.Discard))
}

func loginResult() models.LoginResult {
	return models.LoginResult{
		User:         &models.User{ID: "u1", Email: "maker@example.com", Role: models.RoleCreator},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    900,
	}
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(exp)}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return tok
}

func TestStore(t *testing.T) {
	t.Run("SetAuth", func(t *testing.T) {
		storage := NewMemoryStorage()
		store := newTestStore(t, storage)
		now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
		store.now = func() time.Time { return now }

		if err := store.SetAuth(loginResult()); err != nil {
			t.Fatalf("SetAuth failed: %v", err)
		}

		st := store.State()
		if !st.IsAuthenticated {
			t.Error("expected authenticated")
		}
		if st.AccessToken != "access-1" || st.RefreshToken != "refresh-1" {
			t.Errorf("unexpected tokens %q %q", st.AccessToken, st.RefreshToken)
		}
		if want := now.Add(900 * time.Second); !st.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, st.ExpiresAt)
		}

		snap, _ := storage.Load(context.Background())
		if snap == nil || snap.AccessToken != "access-1" {
			t.Fatalf("expected snapshot to be persisted, got %+v", snap)
		}
	})

	t.Run("SetAuth Rejects Incomplete Result", func(t *testing.T) {
		store := newTestStore(t, nil)
		err := store.SetAuth(models.LoginResult{AccessToken: "a"})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if store.IsAuthenticated() {
			t.Error("store should remain unauthenticated")
		}
	})

	t.Run("SetAccessToken Keeps Auth And Refresh Token", func(t *testing.T) {
		store := newTestStore(t, nil)
		_ = store.SetAuth(loginResult())
		before := store.State().ExpiresAt

		store.SetAccessToken("access-2", 0)

		st := store.State()
		if st.AccessToken != "access-2" {
			t.Errorf("expected access-2, got %q", st.AccessToken)
		}
		if !st.IsAuthenticated || st.RefreshToken != "refresh-1" {
			t.Errorf("refresh must not alter auth or refresh token: %+v", st)
		}
		if !st.ExpiresAt.Equal(before) {
			t.Errorf("expiry should be kept when expiresIn is absent")
		}
	})

	t.Run("SetAccessToken Reads JWT Expiry", func(t *testing.T) {
		store := newTestStore(t, nil)
		_ = store.SetAuth(loginResult())
		exp := time.Now().Add(time.Hour).Truncate(time.Second)

		store.SetAccessToken(signedToken(t, exp), 0)

		if got := store.State().ExpiresAt; !got.Equal(exp) {
			t.Errorf("expected JWT expiry %v, got %v", exp, got)
		}
	})

	t.Run("SetRefreshToken", func(t *testing.T) {
		store := newTestStore(t, nil)
		_ = store.SetAuth(loginResult())
		store.SetRefreshToken("refresh-2")

		if store.RefreshToken() != "refresh-2" {
			t.Errorf("expected rotated refresh token, got %q", store.RefreshToken())
		}
		if store.AccessToken() != "access-1" {
			t.Error("access token should be untouched")
		}
	})

	t.Run("SetRefreshing Is Not Persisted", func(t *testing.T) {
		storage := NewMemoryStorage()
		store := newTestStore(t, storage)
		_ = store.SetAuth(loginResult())
		saves := storage.Saves()

		store.SetRefreshing(true)

		if !store.IsRefreshing() {
			t.Error("expected refreshing flag set")
		}
		if storage.Saves() != saves {
			t.Errorf("SetRefreshing should not save, saves went %d -> %d", saves, storage.Saves())
		}
	})

	t.Run("Logout Clears Everything", func(t *testing.T) {
		storage := NewMemoryStorage()
		store := newTestStore(t, storage)
		_ = store.SetAuth(loginResult())
		store.SetRefreshing(true)

		store.Logout()

		st := store.State()
		if st.IsAuthenticated || st.IsRefreshing || st.AccessToken != "" || st.RefreshToken != "" || st.User != nil {
			t.Errorf("expected empty state, got %+v", st)
		}
		if snap, _ := storage.Load(context.Background()); snap != nil {
			t.Errorf("expected storage cleared, got %+v", snap)
		}
	})

	t.Run("Epoch Changes On Login And Logout", func(t *testing.T) {
		store := newTestStore(t, nil)
		start := store.Epoch()

		store.SetAuth(loginResult())
		afterLogin := store.Epoch()
		store.SetAccessToken("access-2", 900)
		store.SetRefreshing(true)
		if store.Epoch() != afterLogin || afterLogin == start {
			t.Errorf("only login should move the epoch, got %d -> %d -> %d", start, afterLogin, store.Epoch())
		}

		store.Logout()
		if store.Epoch() == afterLogin {
			t.Error("logout should move the epoch")
		}
	})

	t.Run("ApplyRefresh", func(t *testing.T) {
		storage := &failingStorage{}
		store := newTestStore(t, storage)
		store.SetAuth(loginResult())
		epoch := store.Epoch()

		var notified int
		store.Subscribe(func(State) { notified++ })

		if !store.ApplyRefresh(epoch, models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 60}) {
			t.Fatal("refresh for the current session should apply")
		}
		st := store.State()
		if st.AccessToken != "access-2" || st.RefreshToken != "refresh-2" || st.ExpiresIn != 60 || !st.IsAuthenticated {
			t.Errorf("unexpected state %+v", st)
		}
		if notified != 1 || storage.saves != 2 {
			t.Errorf("expected one notification and a save after login's, got %d notifications and %d saves", notified, storage.saves)
		}

		if !store.ApplyRefresh(epoch, models.TokenPair{AccessToken: "access-3"}) || store.RefreshToken() != "refresh-2" {
			t.Error("a pair without a refresh token keeps the current one")
		}
	})

	t.Run("ApplyRefresh After Logout", func(t *testing.T) {
		storage := NewMemoryStorage()
		store := newTestStore(t, storage)
		store.SetAuth(loginResult())
		epoch := store.Epoch()
		store.Logout()

		if store.ApplyRefresh(epoch, models.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"}) {
			t.Fatal("refresh for a cleared session must be discarded")
		}
		if st := store.State(); st.AccessToken != "" || st.RefreshToken != "" {
			t.Errorf("expected cleared session, got %+v", st)
		}
		if snap, _ := storage.Load(context.Background()); snap != nil {
			t.Errorf("nothing should be persisted, got %+v", snap)
		}
	})

	t.Run("Storage Failure Does Not Block Transition", func(t *testing.T) {
		storage := &failingStorage{saveErr: errors.New("disk full"), clearErr: errors.New("disk gone")}
		store := newTestStore(t, storage)

		if err := store.SetAuth(loginResult()); err != nil {
			t.Fatalf("SetAuth should not surface storage errors: %v", err)
		}
		if !store.IsAuthenticated() {
			t.Error("expected in-memory state to be authenticated")
		}

		store.Logout()
		if store.IsAuthenticated() {
			t.Error("expected logout despite clear failure")
		}
	})

	t.Run("Token", func(t *testing.T) {
		store := newTestStore(t, nil)
		if _, err := store.Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}

		_ = store.SetAuth(loginResult())
		tok, err := store.Token()
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		if tok.AccessToken != "access-1" || tok.Type() != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}
	})

	t.Run("User Is A Copy", func(t *testing.T) {
		store := newTestStore(t, nil)
		_ = store.SetAuth(loginResult())

		u := store.User()
		u.Email = "changed@example.com"

		if store.User().Email != "maker@example.com" {
			t.Error("mutating returned user should not affect the store")
		}
	})
}

func TestStore_Hydrate(t *testing.T) {
	t.Run("Restores Snapshot", func(t *testing.T) {
		storage := NewMemoryStorage()
		_ = storage.Save(context.Background(), Serialize(State{
			User:            &models.User{ID: "u1", Email: "maker@example.com"},
			AccessToken:     "persisted",
			IsAuthenticated: true,
		}))
		store := newTestStore(t, storage)

		if store.IsHydrated() {
			t.Fatal("store should not be hydrated before Hydrate")
		}
		if err := store.Hydrate(context.Background()); err != nil {
			t.Fatalf("Hydrate failed: %v", err)
		}

		if !store.IsHydrated() || !store.IsAuthenticated() {
			t.Error("expected hydrated authenticated store")
		}
		if store.AccessToken() != "persisted" {
			t.Errorf("expected persisted token, got %q", store.AccessToken())
		}
	})

	t.Run("Empty Storage", func(t *testing.T) {
		store := newTestStore(t, NewMemoryStorage())
		if err := store.Hydrate(context.Background()); err != nil {
			t.Fatalf("Hydrate failed: %v", err)
		}
		if !store.IsHydrated() || store.IsAuthenticated() {
			t.Error("expected hydrated unauthenticated store")
		}
	})

	t.Run("Load Failure Still Hydrates", func(t *testing.T) {
		store := newTestStore(t, &failingStorage{loadErr: errors.New("boom")})

		err := store.Hydrate(context.Background())
		if !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}
		if !store.IsHydrated() {
			t.Error("hydration flag should be set after a failed load")
		}
		if store.IsAuthenticated() {
			t.Error("failed load should be treated as unauthenticated")
		}
	})

	t.Run("Runs Once", func(t *testing.T) {
		storage := NewMemoryStorage()
		store := newTestStore(t, storage)
		_ = store.Hydrate(context.Background())
		_ = store.SetAuth(loginResult())
		_ = storage.Clear(context.Background())

		_ = store.Hydrate(context.Background())
		if !store.IsAuthenticated() {
			t.Error("second Hydrate should not overwrite in-memory state")
		}
	})
}

func TestStore_Subscribe(t *testing.T) {
	t.Run("Notifies In Order", func(t *testing.T) {
		store := newTestStore(t, nil)
		var calls []string

		store.Subscribe(func(State) { calls = append(calls, "first") })
		store.Subscribe(func(State) { calls = append(calls, "second") })
		_ = store.SetAuth(loginResult())

		if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
			t.Errorf("unexpected call order %v", calls)
		}
	})

	t.Run("Observer May Read Store", func(t *testing.T) {
		store := newTestStore(t, nil)
		var seen string
		store.Subscribe(func(st State) { seen = store.AccessToken() })

		_ = store.SetAuth(loginResult())
		if seen != "access-1" {
			t.Errorf("expected observer to read access-1, got %q", seen)
		}
	})

	t.Run("Unsubscribe", func(t *testing.T) {
		store := newTestStore(t, nil)
		count := 0
		unsubscribe := store.Subscribe(func(State) { count++ })

		_ = store.SetAuth(loginResult())
		unsubscribe()
		unsubscribe()
		store.Logout()

		if count != 1 {
			t.Errorf("expected 1 notification, got %d", count)
		}
	})
}

func TestSerialize(t *testing.T) {
	t.Run("Drops Refreshing Flag", func(t *testing.T) {
		st := State{AccessToken: "a", IsAuthenticated: true, IsRefreshing: true}
		restored := Deserialize(Serialize(st))
		if restored.IsRefreshing {
			t.Error("IsRefreshing must not survive serialization")
		}
		if !restored.IsAuthenticated || restored.AccessToken != "a" {
			t.Errorf("unexpected restored state %+v", restored)
		}
	})

	t.Run("Authenticated Requires Token", func(t *testing.T) {
		restored := Deserialize(Snapshot{IsAuthenticated: true})
		if restored.IsAuthenticated {
			t.Error("snapshot without access token must restore unauthenticated")
		}
	})

	t.Run("Decode Corrupt Snapshot", func(t *testing.T) {
		if _, err := DecodeSnapshot([]byte("{not json")); !errors.Is(err, shared.ErrSnapshotCorrupt) {
			t.Errorf("expected ErrSnapshotCorrupt, got %v", err)
		}
	})

	t.Run("Encode Then Decode", func(t *testing.T) {
		exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		data, err := EncodeSnapshot(Snapshot{AccessToken: "a", ExpiresAt: exp, IsAuthenticated: true})
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		snap, err := DecodeSnapshot(data)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if !snap.ExpiresAt.Equal(exp) || snap.AccessToken != "a" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)

	tc := []struct {
		name  string
		token string
		want  time.Time
	}{
		{name: "jwt with exp", token: signedToken(t, exp), want: exp},
		{name: "opaque token", token: "not-a-jwt"},
		{name: "empty token"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpiry(tt.token); !got.Equal(tt.want) {
				t.Errorf("TokenExpiry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_Expired(t *testing.T) {
	now := time.Now()
	if (State{}).Expired(now) {
		t.Error("zero expiry should never be expired")
	}
	if !(State{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Error("past expiry should be expired")
	}
	if (State{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Error("future expiry should not be expired")
	}
}
