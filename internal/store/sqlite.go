// Package store persists the durable price cache and assumption overrides in
// a local SQLite database. One database file serves a whole process; the
// sqlite driver serializes writers, so the store needs no locking of its own.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/cloudmeter/volcost/internal/assumptions"
	"github.com/cloudmeter/volcost/internal/pricing"
)

const schema = `
CREATE TABLE IF NOT EXISTS meter_prices (
	region     TEXT    NOT NULL,
	meter_key  TEXT    NOT NULL,
	payload    BLOB    NOT NULL,
	expires_at INTEGER NOT NULL,
	PRIMARY KEY (region, meter_key)
);

CREATE TABLE IF NOT EXISTS assumption_overrides (
	job_id             TEXT NOT NULL,
	volume_id          TEXT NOT NULL DEFAULT '',
	cool_data_pct      REAL NOT NULL,
	cool_retrieval_pct REAL NOT NULL,
	PRIMARY KEY (job_id, volume_id)
);
`

// SQLite backs pricing.Store and assumptions.Store with one database file.
// Job-level assumption overrides are rows with an empty volume_id.
type SQLite struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for an ephemeral store.
func Open(path string, logger zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", path, err)
	}
	// A single connection sidesteps SQLITE_BUSY between the price cache and
	// override writers sharing the file.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	logger.Debug().Str("path", path).Msg("sqlite store opened")
	return &SQLite{db: db, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get implements pricing.Store.
func (s *SQLite) Get(ctx context.Context, region string, key pricing.MeterKey) (pricing.MeterPrice, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM meter_prices WHERE region = ? AND meter_key = ?`,
		region, key.String(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return pricing.MeterPrice{}, false, nil
	}
	if err != nil {
		return pricing.MeterPrice{}, false, fmt.Errorf("querying meter price: %w", err)
	}

	var price pricing.MeterPrice
	if err := json.Unmarshal(payload, &price); err != nil {
		return pricing.MeterPrice{}, false, fmt.Errorf("decoding meter price payload: %w", err)
	}
	return price, true, nil
}

// Put implements pricing.Store with an upsert keyed on (region, meter_key).
func (s *SQLite) Put(ctx context.Context, price pricing.MeterPrice) error {
	payload, err := json.Marshal(price)
	if err != nil {
		return fmt.Errorf("encoding meter price payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO meter_prices (region, meter_key, payload, expires_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (region, meter_key) DO UPDATE SET
		   payload = excluded.payload,
		   expires_at = excluded.expires_at`,
		price.Region, price.MeterKey, payload, price.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upserting meter price: %w", err)
	}
	return nil
}

// PruneExpired deletes durable price entries whose TTL passed before now.
// Reads already treat expired rows as misses; pruning just keeps the file
// from growing across long-lived processes.
func (s *SQLite) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM meter_prices WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning expired prices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Debug().Int64("pruned", n).Msg("expired price entries removed")
	}
	return n, nil
}

// VolumeOverride implements assumptions.Store.
func (s *SQLite) VolumeOverride(ctx context.Context, jobID, volumeID string) (assumptions.Override, bool, error) {
	return s.override(ctx, jobID, volumeID)
}

// JobOverride implements assumptions.Store. Job-level records are stored with
// an empty volume_id.
func (s *SQLite) JobOverride(ctx context.Context, jobID string) (assumptions.Override, bool, error) {
	return s.override(ctx, jobID, "")
}

func (s *SQLite) override(ctx context.Context, jobID, volumeID string) (assumptions.Override, bool, error) {
	var o assumptions.Override
	err := s.db.QueryRowContext(ctx,
		`SELECT cool_data_pct, cool_retrieval_pct FROM assumption_overrides
		 WHERE job_id = ? AND volume_id = ?`,
		jobID, volumeID,
	).Scan(&o.CoolDataPercentage, &o.CoolRetrievalPercentage)
	if errors.Is(err, sql.ErrNoRows) {
		return assumptions.Override{}, false, nil
	}
	if err != nil {
		return assumptions.Override{}, false, fmt.Errorf("querying assumption override: %w", err)
	}
	return o, true, nil
}

// SetOverride records an assumption override. An empty volumeID writes the
// job-level record.
func (s *SQLite) SetOverride(ctx context.Context, jobID, volumeID string, o assumptions.Override) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assumption_overrides (job_id, volume_id, cool_data_pct, cool_retrieval_pct)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (job_id, volume_id) DO UPDATE SET
		   cool_data_pct = excluded.cool_data_pct,
		   cool_retrieval_pct = excluded.cool_retrieval_pct`,
		jobID, volumeID, o.CoolDataPercentage, o.CoolRetrievalPercentage,
	)
	if err != nil {
		return fmt.Errorf("upserting assumption override: %w", err)
	}
	return nil
}

// DeleteOverride removes an override record if present.
func (s *SQLite) DeleteOverride(ctx context.Context, jobID, volumeID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM assumption_overrides WHERE job_id = ? AND volume_id = ?`,
		jobID, volumeID)
	if err != nil {
		return fmt.Errorf("deleting assumption override: %w", err)
	}
	return nil
}
