// Package store handles SQLite persistence of imported datasets.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/gapdash/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNoImport is returned when the database holds no imported dataset.
var ErrNoImport = errors.New("no dataset imported")

// Store wraps SQLite access for dataset records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS imports (
			id INTEGER PRIMARY KEY,
			imported_at TEXT NOT NULL,
			source TEXT NOT NULL,
			row_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS records (
			row_order INTEGER NOT NULL,
			country TEXT NOT NULL,
			continent TEXT NOT NULL,
			year INTEGER NOT NULL,
			population INTEGER NOT NULL,
			gdp_per_capita REAL NOT NULL,
			life_expectancy REAL NOT NULL,
			iso3 TEXT NOT NULL,
			PRIMARY KEY (country, year)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_records_row_order ON records(row_order);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceRecords swaps the stored dataset for records in one transaction
// and logs the import.
func (s *Store) ReplaceRecords(ctx context.Context, source string, records []model.Record) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM records`); err != nil {
		return 0, err
	}

	if len(records) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO records (row_order, country, continent, year, population, gdp_per_capita, life_expectancy, iso3)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for i, r := range records {
			if _, err = stmt.ExecContext(ctx, i, r.Country, r.Continent, r.Year, r.Population, r.GDPPerCapita, r.LifeExpectancy, r.ISO3); err != nil {
				return 0, fmt.Errorf("failed to insert %s %d: %w", r.Country, r.Year, err)
			}
		}
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx,
		`INSERT INTO imports (imported_at, source, row_count) VALUES (?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), source, len(records))
	if err != nil {
		return 0, err
	}
	var id int64
	id, err = res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// LoadRecords returns the stored dataset in import order.
func (s *Store) LoadRecords(ctx context.Context) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT country, continent, year, population, gdp_per_capita, life_expectancy, iso3
		 FROM records
		 ORDER BY row_order ASC`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Record
	for rows.Next() {
		var r model.Record
		if err := rows.Scan(&r.Country, &r.Continent, &r.Year, &r.Population, &r.GDPPerCapita, &r.LifeExpectancy, &r.ISO3); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// LastImport describes the most recent import.
func (s *Store) LastImport(ctx context.Context) (model.ImportInfo, error) {
	var info model.ImportInfo
	var importedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, imported_at, source, row_count FROM imports ORDER BY id DESC LIMIT 1`).
		Scan(&info.ID, &importedAt, &info.Source, &info.Rows)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ImportInfo{}, ErrNoImport
	}
	if err != nil {
		return model.ImportInfo{}, err
	}
	parsed, err := time.Parse(time.RFC3339Nano, importedAt)
	if err != nil {
		return model.ImportInfo{}, err
	}
	info.ImportedAt = parsed
	return info, nil
}
