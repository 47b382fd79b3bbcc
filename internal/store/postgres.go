package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmylchreest/rentwatch/internal/logger"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS listings (
	id                  BIGSERIAL PRIMARY KEY,
	url                 TEXT NOT NULL,
	title               TEXT,
	rent                INTEGER,
	area                INTEGER,
	address             TEXT,
	ai_elapsed_time     DOUBLE PRECISION,
	ai_selector_time    DOUBLE PRECISION,
	ai_memory_usage     DOUBLE PRECISION,
	manual_elapsed_time DOUBLE PRECISION,
	manual_memory_usage DOUBLE PRECISION,
	CONSTRAINT listings_url_key UNIQUE (url)
)`

const listingColumns = `id, url, title, rent, area, address,
	ai_elapsed_time, ai_selector_time, ai_memory_usage,
	manual_elapsed_time, manual_memory_usage`

const urlConstraint = "listings_url_key"

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and creates the listings table if needed.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 4
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	logger.Debug("postgres store ready", "max_conns", maxConns)
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) FindByURL(ctx context.Context, url string) (*listing.Listing, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE url = $1`, url)
	return scanListing(row)
}

func (p *Postgres) Get(ctx context.Context, id int64) (*listing.Listing, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	return scanListing(row)
}

func (p *Postgres) Create(ctx context.Context, l listing.Listing) (*listing.Listing, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO listings
		(url, title, rent, area, address,
		 ai_elapsed_time, ai_selector_time, ai_memory_usage,
		 manual_elapsed_time, manual_memory_usage)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+listingColumns,
		l.URL, l.Title, l.Rent, l.Area, l.Address,
		l.AIElapsedTime, l.AISelectorTime, l.AIMemoryUsage,
		l.ManualElapsedTime, l.ManualMemoryUsage,
	)
	created, err := scanListing(row)
	if isUniqueViolation(err, urlConstraint) {
		return nil, ErrDuplicateURL
	}
	return created, err
}

func (p *Postgres) Update(ctx context.Context, id int64, l listing.Listing) (*listing.Listing, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE listings SET
			url = $2, title = $3, rent = $4, area = $5, address = $6,
			ai_elapsed_time = $7, ai_selector_time = $8, ai_memory_usage = $9,
			manual_elapsed_time = $10, manual_memory_usage = $11
		WHERE id = $1
		RETURNING `+listingColumns,
		id, l.URL, l.Title, l.Rent, l.Area, l.Address,
		l.AIElapsedTime, l.AISelectorTime, l.AIMemoryUsage,
		l.ManualElapsedTime, l.ManualMemoryUsage,
	)
	updated, err := scanListing(row)
	if isUniqueViolation(err, urlConstraint) {
		return nil, ErrDuplicateURL
	}
	return updated, err
}

func (p *Postgres) List(ctx context.Context, f Filter) ([]listing.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings`
	var args []any
	if f.URL != "" {
		query += ` WHERE url = $1`
		args = append(args, f.URL)
	}
	query += ` ORDER BY id`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list: %w", err)
	}
	defer rows.Close()

	out := []listing.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanListing(row pgx.Row) (*listing.Listing, error) {
	var l listing.Listing
	err := row.Scan(
		&l.ID, &l.URL, &l.Title, &l.Rent, &l.Area, &l.Address,
		&l.AIElapsedTime, &l.AISelectorTime, &l.AIMemoryUsage,
		&l.ManualElapsedTime, &l.ManualMemoryUsage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &l, nil
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

var _ Store = (*Postgres)(nil)
