// Package postgres provides the Postgres-backed catalog store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trendtube/ingest/internal/video"
)

// VideoStoreConfig controls the Postgres connection pool.
type VideoStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs; pgxmock
// satisfies it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// VideoStore persists video records in Postgres.
type VideoStore struct {
	pool querier
}

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id      TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL,
	channel_title TEXT NOT NULL,
	view_count    BIGINT NOT NULL,
	like_count    BIGINT NOT NULL,
	tags          TEXT[] NOT NULL DEFAULT '{}',
	fetched_at    TIMESTAMPTZ NOT NULL
)`

// NewVideoStore opens a pool and ensures the schema exists.
func NewVideoStore(ctx context.Context, cfg VideoStoreConfig) (*VideoStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &VideoStore{pool: pool}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

// NewVideoStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewVideoStoreWithPool(pool querier) (*VideoStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &VideoStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *VideoStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Upsert writes the record, fully replacing any prior row for the same
// identifier. Calling it repeatedly with the same record is a no-op
// beyond refreshing the row, and concurrent writers for the same key
// resolve to whichever write commits last.
func (s *VideoStore) Upsert(ctx context.Context, rec video.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := `
INSERT INTO videos (video_id, title, description, channel_title, view_count, like_count, tags, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (video_id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	channel_title = EXCLUDED.channel_title,
	view_count = EXCLUDED.view_count,
	like_count = EXCLUDED.like_count,
	tags = EXCLUDED.tags,
	fetched_at = EXCLUDED.fetched_at`

	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	if _, err := s.pool.Exec(ctx, query,
		string(rec.ID),
		rec.Title,
		rec.Description,
		rec.ChannelTitle,
		rec.ViewCount,
		rec.LikeCount,
		tags,
		rec.FetchedAt,
	); err != nil {
		return fmt.Errorf("upsert video %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `video_id, title, description, channel_title, view_count, like_count, tags, fetched_at`

// Get returns the record for an identifier or video.ErrNotFound.
func (s *VideoStore) Get(ctx context.Context, id video.ID) (video.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM videos WHERE video_id = $1`, string(id))
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return video.Record{}, video.ErrNotFound
		}
		return video.Record{}, fmt.Errorf("get video %s: %w", id, err)
	}
	return rec, nil
}

// ExistsByID reports whether a record exists for the identifier.
func (s *VideoStore) ExistsByID(ctx context.Context, id video.ID) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM videos WHERE video_id = $1)`, string(id))
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("exists video %s: %w", id, err)
	}
	return exists, nil
}

// Trending returns up to limit records ordered by view count descending.
func (s *VideoStore) Trending(ctx context.Context, limit int) ([]video.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM videos ORDER BY view_count DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query trending: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Search matches records whose title contains the query (case-insensitive)
// or whose tags contain it exactly.
func (s *VideoStore) Search(ctx context.Context, query string) ([]video.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM videos
		 WHERE title ILIKE '%' || $1 || '%' OR $1 = ANY(tags)
		 ORDER BY view_count DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("search videos: %w", err)
	}
	defer rows.Close()
	return collectRecords(rows)
}

func scanRecord(row pgx.Row) (video.Record, error) {
	var (
		rec video.Record
		id  string
	)
	if err := row.Scan(
		&id,
		&rec.Title,
		&rec.Description,
		&rec.ChannelTitle,
		&rec.ViewCount,
		&rec.LikeCount,
		&rec.Tags,
		&rec.FetchedAt,
	); err != nil {
		return video.Record{}, err
	}
	rec.ID = video.ID(id)
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec, nil
}

func collectRecords(rows pgx.Rows) ([]video.Record, error) {
	var out []video.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video rows: %w", err)
	}
	return out, nil
}
