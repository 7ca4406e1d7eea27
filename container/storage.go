package container

import (
	"context"
	"fmt"
	"io"

	"github.com/yusufsyaifudin/emailer/internal/svc/recipientrepo"
	"github.com/yusufsyaifudin/emailer/pkg/kvstore"
	"github.com/yusufsyaifudin/emailer/pkg/multidb"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

const postgresLabel = "emailer"

// Storage owns the connection behind recipient repository.
// It must be closed in deferred mode by the caller.
type Storage struct {
	kv      kvstore.KV
	repo    recipientrepo.Repo
	closers []Closer
}

var _ io.Closer = (*Storage)(nil)

func SetupStorage(ctx context.Context, conf ConfigStorage) (storage *Storage, err error) {
	storage = &Storage{
		closers: make([]Closer, 0),
	}

	defer func() {
		if err == nil {
			return
		}

		if _err := storage.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close storage error: %w", _err))
		}

		storage = nil
	}()

	switch conf.Driver {
	case "redis":
		if conf.Redis == nil {
			err = fmt.Errorf("storage driver redis needs redis section")
			return
		}

		redisClient, _err := newRedisClient(ctx, *conf.Redis)
		if _err != nil {
			err = _err
			return
		}

		storage.closers = append(storage.closers, NewNamedCloser("redis", redisClient))
		storage.kv, err = kvstore.NewRedis(kvstore.RedisConfig{
			DB:        redisClient,
			KeyPrefix: conf.Redis.KeyPrefix,
		})

	case "postgres":
		if conf.Postgres == nil {
			err = fmt.Errorf("storage driver postgres needs postgres section")
			return
		}

		storage.kv, err = setupPostgresKV(ctx, storage, *conf.Postgres)

	case "memory":
		storage.kv, err = kvstore.NewInMemory(kvstore.InMemoryConfig{
			SnapshotFile: conf.Memory.SnapshotFile,
		})

	default:
		err = fmt.Errorf("not supported storage driver '%s'", conf.Driver)
	}

	if err != nil {
		return
	}

	if conf.Cache.Enabled && conf.Driver != "memory" {
		storage.kv, err = kvstore.NewCached(kvstore.CachedConfig{
			Next:     storage.kv,
			MaxBytes: conf.Cache.MaxBytes,
		})
		if err != nil {
			return
		}
	}

	// kv is closed before the connection under it
	storage.closers = append([]Closer{NewNamedCloser("kv "+conf.Driver, storage.kv)}, storage.closers...)

	storage.repo, err = recipientrepo.NewKV(recipientrepo.KVConfig{
		KV:        storage.kv,
		Namespace: conf.Namespace,
	})
	if err != nil {
		return
	}

	ylog.Info(ctx, "storage ready", ylog.KV("driver", conf.Driver), ylog.KV("namespace", conf.Namespace),
		ylog.KV("cache", conf.Cache.Enabled && conf.Driver != "memory"),
	)
	return
}

func setupPostgresKV(ctx context.Context, storage *Storage, conf ConfigGoSqlDb) (kvstore.KV, error) {
	dbSqlConn, err := multidb.NewSqlDbConnMaker(multidb.SqlDbConnMakerConfig{
		Ctx: ctx,
		Config: multidb.DatabaseResources{
			postgresLabel: multidb.DatabaseResource{
				Driver:   multidb.Postgres,
				Postgres: multidb.GoSqlDb(conf),
			},
		},
	})
	if err != nil {
		return nil, err
	}

	storage.closers = append(storage.closers, NewNamedCloser("postgres", dbSqlConn))

	sqlConn, err := dbSqlConn.GetSqlx(multidb.Postgres, postgresLabel)
	if err != nil {
		return nil, err
	}

	pg, err := kvstore.NewPostgres(kvstore.PostgresConfig{DB: sqlConn})
	if err != nil {
		return nil, err
	}

	err = pg.Migrate(ctx)
	if err != nil {
		return nil, err
	}

	return pg, nil
}

func (s *Storage) RecipientRepo() recipientrepo.Repo {
	return s.repo
}

// Close will close all dependencies, the kv first.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}

	err := CloseAll(s.closers...)
	s.closers = nil
	return err
}
