package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	queryGetBlob = `SELECT payload FROM cart_blobs
WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`
	queryUpsertBlob = `INSERT INTO cart_blobs (key, payload, updated_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at, expires_at = EXCLUDED.expires_at`
	queryDeleteBlob = `DELETE FROM cart_blobs WHERE key = $1`
)

// Postgres stores blobs in the cart_blobs table.
type Postgres struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewPostgres constructs a PostgreSQL-backed store. A non-positive ttl keeps rows forever.
func NewPostgres(pool *pgxpool.Pool, ttl time.Duration) *Postgres {
	return &Postgres{pool: pool, ttl: ttl, now: time.Now}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	if p == nil || p.pool == nil {
		return nil, errors.New("storage: postgres pool not configured")
	}
	var payload []byte
	err := p.pool.QueryRow(ctx, queryGetBlob, key, p.now()).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payload, nil
}

func (p *Postgres) Set(ctx context.Context, key string, payload []byte) error {
	if p == nil || p.pool == nil {
		return errors.New("storage: postgres pool not configured")
	}
	now := p.now()
	var expires pgtype.Timestamptz
	if p.ttl > 0 {
		expires = pgtype.Timestamptz{Time: now.Add(p.ttl), Valid: true}
	}
	_, err := p.pool.Exec(ctx, queryUpsertBlob, key, payload, now, expires)
	return err
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if p == nil || p.pool == nil {
		return errors.New("storage: postgres pool not configured")
	}
	_, err := p.pool.Exec(ctx, queryDeleteBlob, key)
	return err
}

func (p *Postgres) Ping(ctx context.Context) error {
	if p == nil || p.pool == nil {
		return errors.New("storage: postgres pool not configured")
	}
	return p.pool.Ping(ctx)
}
