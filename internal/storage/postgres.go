package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists scrape runs and canonical product records.
type Store struct {
	pool *pgxpool.Pool
}

// Run is one recorded pipeline execution.
type Run struct {
	ID              string
	Query           string
	PagesFetched    int
	PagesFailed     int
	ProductsParsed  int
	ProductsDropped int
	RecordCount     int
	Blocked         bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS scrape_runs (
			id               UUID PRIMARY KEY,
			query            TEXT NOT NULL,
			pages_fetched    INT NOT NULL DEFAULT 0,
			pages_failed     INT NOT NULL DEFAULT 0,
			products_parsed  INT NOT NULL DEFAULT 0,
			products_dropped INT NOT NULL DEFAULT 0,
			record_count     INT NOT NULL DEFAULT 0,
			blocked          BOOLEAN NOT NULL DEFAULT FALSE,
			started_at       TIMESTAMPTZ NOT NULL,
			finished_at      TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS products (
			id            TEXT PRIMARY KEY,
			title         TEXT NOT NULL,
			price_amount  DOUBLE PRECISION,
			price_high    DOUBLE PRECISION,
			currency      TEXT,
			moq           INT,
			supplier_id   TEXT NOT NULL DEFAULT '',
			url           TEXT NOT NULL,
			image_url     TEXT,
			rating        DOUBLE PRECISION,
			source_urls   JSONB NOT NULL DEFAULT '[]',
			first_seen_at TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`

	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// SaveRun records the summary of a finished pipeline execution.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO scrape_runs (
			id, query, pages_fetched, pages_failed, products_parsed,
			products_dropped, record_count, blocked, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		run.ID, run.Query, run.PagesFetched, run.PagesFailed,
		run.ProductsParsed, run.ProductsDropped, run.RecordCount,
		run.Blocked, run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// SaveRecords upserts canonical records by id. An existing row keeps
// its first_seen_at and has the incoming source URLs merged in.
func (s *Store) SaveRecords(ctx context.Context, records []*models.ProductRecord) error {
	query := `
		INSERT INTO products (
			id, title, price_amount, price_high, currency, moq,
			supplier_id, url, image_url, rating, source_urls, first_seen_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			source_urls = (
				SELECT jsonb_agg(DISTINCT u)
				FROM jsonb_array_elements(products.source_urls || EXCLUDED.source_urls) AS u
			),
			updated_at = NOW()`

	for _, rec := range records {
		var amount, high, rating *float64
		var currency *string
		if rec.Price != nil {
			amount = &rec.Price.Amount
			currency = &rec.Price.Currency
			if rec.Price.High > 0 {
				high = &rec.Price.High
			}
		}
		if rec.Rating > 0 {
			rating = &rec.Rating
		}

		sources, err := json.Marshal(rec.SourceURLs)
		if err != nil {
			return fmt.Errorf("failed to marshal source urls: %w", err)
		}

		_, err = s.pool.Exec(ctx, query,
			rec.ID, rec.Title, amount, high, currency, rec.MOQ,
			rec.SupplierID, rec.URL, rec.ImageURL, rating, sources,
			rec.FirstSeenAt)
		if err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", rec.ID, err)
		}
	}

	return nil
}

// ListRecords returns persisted records in first-seen order.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]*models.ProductRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT id, title, price_amount, price_high, currency, moq,
		       supplier_id, url, image_url, rating, source_urls, first_seen_at
		FROM products
		ORDER BY first_seen_at, id
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var records []*models.ProductRecord
	for rows.Next() {
		var (
			rec      models.ProductRecord
			amount   *float64
			high     *float64
			currency *string
			rating   *float64
			sources  []byte
		)
		err := rows.Scan(&rec.ID, &rec.Title, &amount, &high, &currency,
			&rec.MOQ, &rec.SupplierID, &rec.URL, &rec.ImageURL, &rating,
			&sources, &rec.FirstSeenAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		if amount != nil {
			rec.Price = &models.Price{Amount: *amount}
			if currency != nil {
				rec.Price.Currency = *currency
			}
			if high != nil {
				rec.Price.High = *high
			}
		}
		if rating != nil {
			rec.Rating = *rating
		}
		if err := json.Unmarshal(sources, &rec.SourceURLs); err != nil {
			return nil, fmt.Errorf("failed to decode source urls: %w", err)
		}

		records = append(records, &rec)
	}

	return records, rows.Err()
}
