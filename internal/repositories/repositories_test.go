package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/desertthunder/reelx/internal/models"
	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if _, err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func testSnapshot() session.Snapshot {
	return session.Snapshot{
		User:            &models.User{ID: "u1", Email: "maker@example.com", Role: models.RoleCreator},
		AccessToken:     "access-1",
		RefreshToken:    "refresh-1",
		ExpiresIn:       900,
		ExpiresAt:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		IsAuthenticated: true,
	}
}

// exerciseStorage runs the shared contract every backend must satisfy.
func exerciseStorage(t *testing.T, storage session.Storage) {
	t.Helper()
	ctx := context.Background()

	snap, err := storage.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty storage failed: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snapshot, got %+v", snap)
	}

	if err := storage.Save(ctx, testSnapshot()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	updated := testSnapshot()
	updated.AccessToken = "access-2"
	if err := storage.Save(ctx, updated); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	snap, err = storage.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if snap == nil {
		t.Fatal("expected snapshot after Save")
	}
	if snap.AccessToken != "access-2" {
		t.Errorf("expected last write to win, got %q", snap.AccessToken)
	}
	if snap.User == nil || snap.User.Email != "maker@example.com" {
		t.Errorf("expected user to round trip, got %+v", snap.User)
	}
	if !snap.ExpiresAt.Equal(updated.ExpiresAt) {
		t.Errorf("expected expiry %v, got %v", updated.ExpiresAt, snap.ExpiresAt)
	}

	if err := storage.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if snap, _ := storage.Load(ctx); snap != nil {
		t.Errorf("expected nil after Clear, got %+v", snap)
	}
	if err := storage.Clear(ctx); err != nil {
		t.Errorf("Clear on empty storage should succeed: %v", err)
	}
}

func TestSQLiteStorage(t *testing.T) {
	t.Run("Contract", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		exerciseStorage(t, NewSQLiteStorage(db, ""))
	})

	t.Run("Slots Are Independent", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()
		ctx := context.Background()

		a := NewSQLiteStorage(db, "a")
		b := NewSQLiteStorage(db, "b")
		if err := a.Save(ctx, testSnapshot()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		if snap, _ := b.Load(ctx); snap != nil {
			t.Errorf("slot b should be empty, got %+v", snap)
		}
	})

	t.Run("Corrupt Payload", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if _, err := db.Exec(`INSERT INTO session_snapshots (slot, payload) VALUES (?, ?)`, DefaultSlot, "{oops"); err != nil {
			t.Fatalf("failed to seed payload: %v", err)
		}

		_, err := NewSQLiteStorage(db, "").Load(context.Background())
		if !errors.Is(err, shared.ErrSnapshotCorrupt) {
			t.Errorf("expected ErrSnapshotCorrupt, got %v", err)
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		db.Close()

		err := NewSQLiteStorage(db, "").Save(context.Background(), testSnapshot())
		if !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}

func TestFileStorage(t *testing.T) {
	t.Run("Contract", func(t *testing.T) {
		exerciseStorage(t, NewFileStorage(filepath.Join(t.TempDir(), "nested", "session.json")))
	})

	t.Run("Owner Only Permissions", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		storage := NewFileStorage(path)

		if err := storage.Save(context.Background(), testSnapshot()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat failed: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("expected 0600, got %o", perm)
		}
	})

	t.Run("Corrupt File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		_, err := NewFileStorage(path).Load(context.Background())
		if !errors.Is(err, shared.ErrSnapshotCorrupt) {
			t.Errorf("expected ErrSnapshotCorrupt, got %v", err)
		}
	})
}

func TestRedisStorage(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := DialRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer client.Close()

	key := "reelx:test:" + shared.GenerateID()
	defer client.Del(ctx, key)

	exerciseStorage(t, NewRedisStorage(client, key))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("SQLite", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Storage.Driver = "sqlite"
		cfg.Storage.Path = filepath.Join(t.TempDir(), "reelx.db")

		storage, closer, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer closer.Close()

		if _, ok := storage.(*SQLiteStorage); !ok {
			t.Errorf("expected *SQLiteStorage, got %T", storage)
		}
		exerciseStorage(t, storage)
	})

	t.Run("File", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Storage.Driver = "file"
		cfg.Storage.FilePath = filepath.Join(t.TempDir(), "session.json")

		storage, closer, err := Open(ctx, cfg)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		defer closer.Close()

		if fs, ok := storage.(*FileStorage); !ok || fs.Path() != cfg.Storage.FilePath {
			t.Errorf("expected *FileStorage at %s, got %T", cfg.Storage.FilePath, storage)
		}
	})

	t.Run("Unknown Driver", func(t *testing.T) {
		cfg := shared.DefaultConfig()
		cfg.Storage.Driver = "etcd"

		if _, _, err := Open(ctx, cfg); !errors.Is(err, shared.ErrUnknownStorage) {
			t.Errorf("expected ErrUnknownStorage, got %v", err)
		}
	})
}

func TestStoreWithSQLite(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	storage := NewSQLiteStorage(db, "")
	first := session.NewStore(storage, shared.NewLogger(nil))
	_ = first.Hydrate(ctx)
	if err := first.SetAuth(models.LoginResult{
		User:         &models.User{ID: "u1", Email: "maker@example.com"},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    60,
	}); err != nil {
		t.Fatalf("SetAuth failed: %v", err)
	}
	first.SetRefreshing(true)

	second := session.NewStore(storage, shared.NewLogger(nil))
	if err := second.Hydrate(ctx); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}

	if !second.IsAuthenticated() || second.RefreshToken() != "refresh-1" {
		t.Errorf("expected session restored from sqlite, got %+v", second.State())
	}
	if second.IsRefreshing() {
		t.Error("refreshing flag should not be restored")
	}
}
