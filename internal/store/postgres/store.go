package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
)

const schema = `
create table if not exists ledger_balance (
	id     smallint primary key check (id = 1),
	amount numeric not null
);
create table if not exists products (
	name     text primary key,
	price    numeric not null,
	quantity bigint not null default 0
);
create table if not exists transactions (
	id          bigserial primary key,
	description text not null,
	created_at  timestamptz not null default now()
);`

type Store struct {
	db *sql.DB
}

func NewStore(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Load(ctx context.Context, defaults domain.Snapshot) (domain.Snapshot, error) {
	snap := defaults.Clone()

	var balance decimal.Decimal
	err := s.db.QueryRowContext(ctx, `select amount from ledger_balance where id = 1`).Scan(&balance)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return defaults.Clone(), fmt.Errorf("read balance: %w", err)
	default:
		snap.Balance = balance
	}

	rows, err := s.db.QueryContext(ctx, `select name, price, quantity from products`)
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

	var history []string
	err = s.db.QueryRowContext(ctx,
		`select coalesce(array_agg(description order by id), '{}') from transactions`,
	).Scan(pq.Array(&history))
	if err != nil {
		return defaults.Clone(), fmt.Errorf("read history: %w", err)
	}
	snap.History = history
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`insert into ledger_balance (id, amount) values (1, $1)
		 on conflict (id) do update set amount = excluded.amount`,
		snap.Balance,
	); err != nil {
		return fmt.Errorf("write balance: %w", err)
	}

	names := make([]string, 0, len(snap.Warehouse))
	prices := make([]string, 0, len(snap.Warehouse))
	quantities := make([]int64, 0, len(snap.Warehouse))
	for name, p := range snap.Warehouse {
		names = append(names, name)
		prices = append(prices, p.Price.String())
		quantities = append(quantities, p.Quantity)
	}
	if _, err := tx.ExecContext(ctx, `delete from products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	if len(names) > 0 {
		if _, err := tx.ExecContext(ctx,
			`insert into products (name, price, quantity)
			 select * from unnest($1::text[], $2::numeric[], $3::bigint[])`,
			pq.Array(names), pq.Array(prices), pq.Array(quantities),
		); err != nil {
			return fmt.Errorf("write products: %w", err)
		}
	}

	var stored int
	if err := tx.QueryRowContext(ctx, `select count(*) from transactions`).Scan(&stored); err != nil {
		return fmt.Errorf("count history: %w", err)
	}
	if stored > len(snap.History) {
		if _, err := tx.ExecContext(ctx, `delete from transactions`); err != nil {
			return fmt.Errorf("reset history: %w", err)
		}
		stored = 0
	}
	if stored < len(snap.History) {
		if _, err := tx.ExecContext(ctx,
			`insert into transactions (description)
			 select line from unnest($1::text[]) with ordinality as t(line, n) order by n`,
			pq.Array(snap.History[stored:]),
		); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}
