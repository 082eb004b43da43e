// Package postgres stores advisory history in a Postgres table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/travel-advisory-etl/internal/domain"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const schema = `CREATE TABLE IF NOT EXISTS advisory_history (
	id            BIGSERIAL PRIMARY KEY,
	country_code  TEXT NOT NULL,
	published_on  DATE NOT NULL,
	threat_level  TEXT NOT NULL,
	threat_number SMALLINT,
	inserted_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectAll = `SELECT country_code, published_on, threat_level, COALESCE(threat_number, 0)
		FROM advisory_history ORDER BY id`
	insertRow = `INSERT INTO advisory_history (country_code, published_on, threat_level, threat_number)
		VALUES ($1, $2, $3, $4)`
)

// Store is an append-only history store.
type Store struct {
	db *sql.DB
}

// Open connects to dsn, verifies the connection, and creates the history
// table if it does not exist.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create advisory_history: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns every stored record in insertion order.
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectAll)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var r domain.Record
		if err := rows.Scan(&r.CountryCode, &r.PublishedOn, &r.ThreatLevel, &r.ThreatNumber); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.PublishedOn = domain.Date(r.PublishedOn, time.UTC)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return records, nil
}

// Append inserts batch in a single transaction.
func (s *Store) Append(ctx context.Context, batch []domain.Record) error {
	return s.write(ctx, batch, false)
}

// Save replaces the table contents with records in a single transaction.
func (s *Store) Save(ctx context.Context, records []domain.Record) error {
	return s.write(ctx, records, true)
}

func (s *Store) write(ctx context.Context, records []domain.Record, replace bool) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin write: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM advisory_history`); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, insertRow)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var num sql.NullInt16
		if r.ThreatNumber != 0 {
			num = sql.NullInt16{Int16: int16(r.ThreatNumber), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.CountryCode, r.PublishedOn, r.ThreatLevel, num); err != nil {
			return fmt.Errorf("insert %s: %w", r.CountryCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit write: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
