package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"
	"walletcsv/internal/ledger"

	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Archive keeps canonical transactions per (chain, wallet) so that earlier
// exports can be queried without hitting the explorer again.
type Archive struct {
	db *sql.DB
}

func NewArchive(dsn string) (*Archive, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Archive{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS archived_transactions (
			chain_id VARCHAR(32) NOT NULL,
			address VARCHAR(42) NOT NULL,
			tx_hash VARCHAR(66) NOT NULL,
			timestamp BIGINT NOT NULL,
			from_addr VARCHAR(42) NOT NULL,
			to_addr VARCHAR(42) NOT NULL DEFAULT '',
			is_error TINYINT(1) NOT NULL,
			gas_price DECIMAL(65,0) NOT NULL,
			gas_used DECIMAL(65,0) NOT NULL,
			function_name VARCHAR(512) NOT NULL DEFAULT '',
			input MEDIUMTEXT NOT NULL,
			tag VARCHAR(16) NOT NULL,
			PRIMARY KEY (chain_id, address, tx_hash),
			KEY archived_tx_time_idx (chain_id, address, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS archived_movements (
			chain_id VARCHAR(32) NOT NULL,
			address VARCHAR(42) NOT NULL,
			tx_hash VARCHAR(66) NOT NULL,
			position INT UNSIGNED NOT NULL,
			direction VARCHAR(3) NOT NULL,
			amount VARCHAR(80) NOT NULL,
			currency VARCHAR(64) NOT NULL,
			decimals INT UNSIGNED NOT NULL,
			PRIMARY KEY (chain_id, address, tx_hash, position)
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) Close() error {
	return a.db.Close()
}

// StoreTransactions upserts txs for address on chain. The movements of an
// already archived transaction are replaced, not appended.
func (a *Archive) StoreTransactions(ctx context.Context, chain domain.Chain, address string, txs []domain.Transaction) (err error) {
	if len(txs) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.StoreTransactions",
		attribute.String("chain.id", chain.ID),
		attribute.Int("tx.count", len(txs)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	address = strings.ToLower(address)
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert, err := tx.PrepareContext(ctx, `INSERT INTO archived_transactions
		(chain_id, address, tx_hash, timestamp, from_addr, to_addr, is_error, gas_price, gas_used, function_name, input, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			timestamp = VALUES(timestamp),
			from_addr = VALUES(from_addr),
			to_addr = VALUES(to_addr),
			is_error = VALUES(is_error),
			gas_price = VALUES(gas_price),
			gas_used = VALUES(gas_used),
			function_name = VALUES(function_name),
			input = VALUES(input),
			tag = VALUES(tag)`)
	if err != nil {
		return err
	}
	defer upsert.Close()

	clearMovements, err := tx.PrepareContext(ctx, `DELETE FROM archived_movements WHERE chain_id = ? AND address = ? AND tx_hash = ?`)
	if err != nil {
		return err
	}
	defer clearMovements.Close()

	insertMovement, err := tx.PrepareContext(ctx, `INSERT INTO archived_movements
		(chain_id, address, tx_hash, position, direction, amount, currency, decimals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertMovement.Close()

	for _, entry := range txs {
		isError := 0
		if entry.IsError {
			isError = 1
		}
		if _, err = upsert.ExecContext(ctx, chain.ID, address, entry.Hash, entry.Timestamp,
			entry.From, entry.To, isError, zeroIfEmpty(entry.GasPrice), zeroIfEmpty(entry.GasUsed),
			entry.FunctionName, entry.Input, string(ledger.Classify(entry))); err != nil {
			return fmt.Errorf("archive tx %s: %w", entry.Hash, err)
		}
		if _, err = clearMovements.ExecContext(ctx, chain.ID, address, entry.Hash); err != nil {
			return err
		}
		for i, movement := range entry.Movements {
			if _, err = insertMovement.ExecContext(ctx, chain.ID, address, entry.Hash, i,
				string(movement.Direction), movement.Amount, movement.Currency, movement.Decimals); err != nil {
				return fmt.Errorf("archive movement %s/%d: %w", entry.Hash, i, err)
			}
		}
	}

	return tx.Commit()
}

// QueryTransactions returns archived transactions, newest first, with their
// movements in fold order.
func (a *Archive) QueryTransactions(ctx context.Context, filter application.ArchiveQuery) ([]domain.Transaction, error) {
	ctx, span := startDBSpan(ctx, "mysql.QueryTransactions")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query, args := archiveQuerySQL(filter)
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	type txKey struct{ chainID, address, hash string }
	var (
		transactions []domain.Transaction
		keys         []txKey
	)
	for rows.Next() {
		var entry domain.Transaction
		var key txKey
		var isError int
		if err := rows.Scan(&key.chainID, &key.address, &entry.Hash, &entry.Timestamp, &entry.From, &entry.To,
			&isError, &entry.GasPrice, &entry.GasUsed, &entry.FunctionName, &entry.Input); err != nil {
			return nil, err
		}
		entry.IsError = isError != 0
		key.hash = entry.Hash
		transactions = append(transactions, entry)
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(transactions) == 0 {
		return nil, nil
	}

	placeholders := make([]string, 0, len(keys))
	movementArgs := make([]any, 0, 3*len(keys))
	index := make(map[txKey]int, len(keys))
	for i, key := range keys {
		placeholders = append(placeholders, "(?, ?, ?)")
		movementArgs = append(movementArgs, key.chainID, key.address, key.hash)
		index[key] = i
	}
	movementRows, err := a.db.QueryContext(ctx, `SELECT chain_id, address, tx_hash, direction, amount, currency, decimals
		FROM archived_movements
		WHERE (chain_id, address, tx_hash) IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY chain_id, address, tx_hash, position`, movementArgs...)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer movementRows.Close()

	for movementRows.Next() {
		var key txKey
		var movement domain.Movement
		var direction string
		if err := movementRows.Scan(&key.chainID, &key.address, &key.hash, &direction, &movement.Amount, &movement.Currency, &movement.Decimals); err != nil {
			return nil, err
		}
		movement.Direction = domain.Direction(direction)
		if i, ok := index[key]; ok {
			transactions[i].Movements = append(transactions[i].Movements, movement)
		}
	}
	if err := movementRows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (a *Archive) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.db.PingContext(ctx)
}

func archiveQuerySQL(filter application.ArchiveQuery) (string, []any) {
	clauses := make([]string, 0, 5)
	args := make([]any, 0, 6)

	if filter.ChainID != "" {
		clauses = append(clauses, "chain_id = ?")
		args = append(args, filter.ChainID)
	}
	if filter.Address != "" {
		clauses = append(clauses, "address = ?")
		args = append(args, strings.ToLower(filter.Address))
	}
	if filter.TxHash != "" {
		clauses = append(clauses, "tx_hash = ?")
		args = append(args, strings.ToLower(filter.TxHash))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, filter.Since.Unix())
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, filter.Until.Unix())
	}

	query := `SELECT chain_id, address, tx_hash, timestamp, from_addr, to_addr, is_error, gas_price, gas_used, function_name, input FROM archived_transactions`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, tx_hash ASC LIMIT ?"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	args = append(args, limit)
	return query, args
}

func zeroIfEmpty(value string) string {
	if value == "" {
		return "0"
	}
	return value
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("walletcsv/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
