// Package sqlite keeps the ledger in a local SQLite database, one row per
// product and per history line.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3"

	"stockledger/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_balance (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	amount TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS products (
	name     TEXT PRIMARY KEY,
	price    TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS transactions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	description TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps every statement on the same database handle.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, defaults domain.Snapshot) (domain.Snapshot, error) {
	snap := defaults.Clone()

	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `SELECT amount FROM ledger_balance WHERE id = 1`).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return defaults.Clone(), fmt.Errorf("read balance: %w", err)
	default:
		snap.Balance = balance
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, price, quantity FROM products`)
	if err != nil {
		return defaults.Clone(), fmt.Errorf("read products: %w", err)
	}
	warehouse := make(map[string]domain.Product)
	for rows.Next() {
		var name string
		var p domain.Product
		if err := rows.Scan(&name, &p.Price, &p.Quantity); err != nil {
			rows.Close()
			return defaults.Clone(), fmt.Errorf("scan product: %w", err)
		}
		warehouse[name] = p
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return defaults.Clone(), fmt.Errorf("read products: %w", err)
	}
	snap.Warehouse = warehouse

	history, err := s.history(ctx)
	if err != nil {
		return defaults.Clone(), err
	}
	snap.History = history
	return snap, nil
}

func (s *Store) history(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT description FROM transactions ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, 64)
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		out = append(out, line)
	}
	return out, rows.Err()
}

// Save writes the whole snapshot in one transaction. History is append-only,
// so only lines past the stored count are inserted.
func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_balance (id, amount) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET amount = excluded.amount`,
		snap.Balance,
	); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for name, p := range snap.Warehouse {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO products (name, price, quantity) VALUES (?, ?, ?)`,
			name, p.Price, p.Quantity,
		); err != nil {
			return fmt.Errorf("write product %q: %w", name, err)
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if stored > len(snap.History) {
		if _, err := tx.ExecContext(ctx, `DELETE FROM transactions`); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
		stored = 0
	}
	if stored < len(snap.History) {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO transactions (description) VALUES (?)`)
		if err != nil {
			return fmt.Errorf("prepare history insert: %w", err)
		}
		defer stmt.Close()
		for _, line := range snap.History[stored:] {
			if _, err := stmt.ExecContext(ctx, line); err != nil {
				return fmt.Errorf("append history: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
