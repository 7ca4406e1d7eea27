package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/segmentio/encoding/json"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
)

const (
	sqlCreateTable = `CREATE TABLE IF NOT EXISTS emailer_kv (
		key        TEXT PRIMARY KEY,
		value      BYTEA NOT NULL,
		updated_at BIGINT NOT NULL
	);`

	sqlGetValue = `SELECT value FROM emailer_kv WHERE key = $1 LIMIT 1;`

	sqlUpsertValue = `
		INSERT INTO emailer_kv (key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
		    value = EXCLUDED.value,
		    updated_at = EXCLUDED.updated_at;`

	sqlDeleteValues = `DELETE FROM emailer_kv WHERE key = ANY($1);`
)

type PostgresConfig struct {
	DB *sqlx.DB `validate:"required"`
}

// Postgres keeps every key as one row in table emailer_kv.
type Postgres struct {
	db *sqlx.DB
}

var _ KV = (*Postgres)(nil)

func NewPostgres(conf PostgresConfig) (*Postgres, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("error validate kv postgres: %w", err)
		return nil, err
	}

	return &Postgres{db: conf.DB}, nil
}

// Migrate creates the table when not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, sqlCreateTable)
	if err != nil {
		return fmt.Errorf("create table emailer_kv: %w", err)
	}

	return nil
}

func (p *Postgres) GetAs(ctx context.Context, key string, out interface{}) error {
	ctx, span := tracer.StartSpan(ctx, "kvstore.Postgres.GetAs")
	defer span.End()

	var val []byte
	err := p.db.GetContext(ctx, &val, sqlGetValue, key)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrKeyNotExist, key)
	}

	if err != nil {
		return fmt.Errorf("error occurred on postgres: %w", err)
	}

	return json.Unmarshal(val, out)
}

func (p *Postgres) Set(ctx context.Context, key string, inValue interface{}) error {
	ctx, span := tracer.StartSpan(ctx, "kvstore.Postgres.Set")
	defer span.End()

	val, err := json.Marshal(inValue)
	if err != nil {
		err = fmt.Errorf("cannot marshal json value: %w", err)
		return err
	}

	_, err = p.db.ExecContext(ctx, sqlUpsertValue, key, val, time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("error occurred on postgres: %w", err)
	}

	return nil
}

func (p *Postgres) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := p.db.ExecContext(ctx, sqlDeleteValues, pq.Array(keys))
	if err != nil {
		return fmt.Errorf("error occurred on postgres: %w", err)
	}

	return nil
}

// Close does nothing, the connection is owned by multidb.
func (p *Postgres) Close() error {
	return nil
}
