package repositories

import (
	"context"
	"fmt"
	"io"

	"github.com/desertthunder/reelx/internal/session"
	"github.com/desertthunder/reelx/internal/shared"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the [session.Storage] selected by cfg.Storage.Driver.
//
// The returned closer releases the database or redis connection.
func Open(ctx context.Context, cfg *shared.Config) (session.Storage, io.Closer, error) {
	switch cfg.Storage.Driver {
	case "", "sqlite":
		db, err := shared.NewDatabase(cfg.Storage.Path)
		if err != nil {
			return nil, nil, err
		}
		shared.ConfigureDatabase(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
		if _, err := shared.RunMigrations(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
		return NewSQLiteStorage(db, DefaultSlot), db, nil
	case "file":
		return NewFileStorage(cfg.Storage.FilePath), nopCloser{}, nil
	case "redis":
		client, err := DialRedis(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStorage(client, cfg.Storage.RedisKey), client, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", shared.ErrUnknownStorage, cfg.Storage.Driver)
	}
}
