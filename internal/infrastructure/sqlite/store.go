package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"

	_ "modernc.org/sqlite"
)

// Store keeps local settings and the export history in a single SQLite file.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS export_runs (
			id TEXT PRIMARY KEY,
			chain_id TEXT NOT NULL,
			chain_name TEXT NOT NULL,
			address TEXT NOT NULL,
			transactions INTEGER NOT NULL,
			row_count INTEGER NOT NULL,
			partial INTEGER NOT NULL,
			filename TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_export_runs_address ON export_runs (address, created_at)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	if !application.KnownSetting(key) {
		return fmt.Errorf("%w: %q", application.ErrUnknownSetting, key)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	return err
}

func (s *Store) DeleteSetting(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	return err
}

func (s *Store) RecordRun(ctx context.Context, run domain.ExportRun) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	partial := 0
	if run.Partial {
		partial = 1
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO export_runs
		(id, chain_id, chain_name, address, transactions, row_count, partial, filename, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		run.ID, run.ChainID, run.ChainName, strings.ToLower(run.Address),
		run.Transactions, run.Rows, partial, run.Filename, run.CreatedAt.UnixMilli())
	return err
}

// Runs returns export runs, newest first.
func (s *Store) Runs(ctx context.Context, filter application.RunQuery) ([]domain.ExportRun, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.ChainID != "" {
		clauses = append(clauses, "chain_id = ?")
		args = append(args, filter.ChainID)
	}
	if filter.Address != "" {
		clauses = append(clauses, "address = ?")
		args = append(args, strings.ToLower(filter.Address))
	}

	query := `SELECT id, chain_id, chain_name, address, transactions, row_count, partial, filename, created_at FROM export_runs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.ExportRun
	for rows.Next() {
		var run domain.ExportRun
		var partial int
		var created int64
		if err := rows.Scan(&run.ID, &run.ChainID, &run.ChainName, &run.Address, &run.Transactions, &run.Rows, &partial, &run.Filename, &created); err != nil {
			return nil, err
		}
		run.Partial = partial != 0
		run.CreatedAt = time.UnixMilli(created).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}
