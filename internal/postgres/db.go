package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id           UUID PRIMARY KEY,
	name         TEXT NOT NULL UNIQUE,
	price_cents  INT  NOT NULL,
	total_supply INT  NOT NULL,
	sold_count   INT  NOT NULL DEFAULT 0,
	CHECK (sold_count >= 0 AND sold_count <= total_supply)
);

CREATE TABLE IF NOT EXISTS orders (
	id                UUID PRIMARY KEY,
	order_code        TEXT NOT NULL UNIQUE,
	name              TEXT NOT NULL,
	city              TEXT NOT NULL,
	status            TEXT NOT NULL DEFAULT 'pending',
	stripe_session_id TEXT,
	city_lat          DOUBLE PRECISION,
	city_lon          DOUBLE PRECISION,
	reserved_until    TIMESTAMPTZ,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS orders_status_created_idx ON orders (status, created_at DESC);
CREATE INDEX IF NOT EXISTS orders_reserved_until_idx ON orders (reserved_until) WHERE status = 'pending';
`

// EnsureSchema creates the tables and seeds the single catalog row if it is
// missing. Price and supply are only applied on the very first startup; an
// existing row is never mutated here.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool, name string, priceCents, supply int) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return err
	}

	var id string
	err := db.QueryRow(ctx, `SELECT id FROM products WHERE name=$1`, name).Scan(&id)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	_, err = db.Exec(ctx, `
		INSERT INTO products (id, name, price_cents, total_supply, sold_count)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (name) DO NOTHING`,
		uuid.NewString(), name, priceCents, supply)
	return err
}
