// Package flatfile persists the ledger as three plain files: the balance as a
// single decimal line, the warehouse as one JSON object and the history as
// newline-delimited text.
package flatfile

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"stockledger/internal/domain"
	"stockledger/internal/store"
)

type Paths struct {
	Balance   string
	Warehouse string
	History   string
}

type Store struct {
	paths Paths
}

func NewStore(paths Paths) (*Store, error) {
	for _, p := range []string{paths.Balance, paths.Warehouse, paths.History} {
		if p == "" {
			return nil, errors.New("flatfile: all three paths are required")
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("flatfile: create data dir: %w", err)
		}
	}
	return &Store{paths: paths}, nil
}

// record mirrors one warehouse entry on disk; json.Number keeps prices as bare numbers.
type record struct {
	Price    json.Number `json:"price"`
	Quantity int64       `json:"quantity"`
}

func (s *Store) Load(_ context.Context, defaults domain.Snapshot) (domain.Snapshot, error) {
	snap := defaults.Clone()
	var errs []error

	if balance, ok, err := s.loadBalance(); err != nil {
		errs = append(errs, err)
	} else if ok {
		snap.Balance = balance
	}

	if warehouse, ok, err := s.loadWarehouse(); err != nil {
		errs = append(errs, err)
	} else if ok {
		snap.Warehouse = warehouse
	}

	if history, ok, err := s.loadHistory(); err != nil {
		errs = append(errs, err)
	} else if ok {
		snap.History = history
	}

	return snap, errors.Join(errs...)
}

func (s *Store) loadBalance() (decimal.Decimal, bool, error) {
	raw, err := os.ReadFile(s.paths.Balance)
	if errors.Is(err, fs.ErrNotExist) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("read balance %s: %w", s.paths.Balance, err)
	}
	line, _, _ := strings.Cut(string(raw), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return decimal.Zero, false, nil
	}
	balance, err := decimal.NewFromString(line)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("balance %s: %w: %v", s.paths.Balance, store.ErrCorrupt, err)
	}
	return balance, true, nil
}

func (s *Store) loadWarehouse() (map[string]domain.Product, bool, error) {
	raw, err := os.ReadFile(s.paths.Warehouse)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read warehouse %s: %w", s.paths.Warehouse, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, false, nil
	}

	var records map[string]record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, false, fmt.Errorf("warehouse %s: %w: %v", s.paths.Warehouse, store.ErrCorrupt, err)
	}

	warehouse := make(map[string]domain.Product, len(records))
	for name, rec := range records {
		price, err := decimal.NewFromString(rec.Price.String())
		if err != nil {
			return nil, false, fmt.Errorf("warehouse %s: %w: price of %q: %v", s.paths.Warehouse, store.ErrCorrupt, name, err)
		}
		if !price.IsPositive() {
			return nil, false, fmt.Errorf("warehouse %s: %w: price of %q must be positive", s.paths.Warehouse, store.ErrCorrupt, name)
		}
		if rec.Quantity < 0 {
			return nil, false, fmt.Errorf("warehouse %s: %w: negative quantity for %q", s.paths.Warehouse, store.ErrCorrupt, name)
		}
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := warehouse[key]; dup {
			return nil, false, fmt.Errorf("warehouse %s: %w: %q listed more than once", s.paths.Warehouse, store.ErrCorrupt, key)
		}
		warehouse[key] = domain.Product{Price: price, Quantity: rec.Quantity}
	}
	return warehouse, true, nil
}

func (s *Store) loadHistory() ([]string, bool, error) {
	f, err := os.Open(s.paths.History)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read history %s: %w", s.paths.History, err)
	}
	defer f.Close()

	history := make([]string, 0, 64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		history = append(history, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, false, fmt.Errorf("history %s: %w: %v", s.paths.History, store.ErrCorrupt, err)
	}
	return history, true, nil
}

// Save rewrites all three files. Each file is replaced atomically; the set of
// three is not.
func (s *Store) Save(_ context.Context, snap domain.Snapshot) error {
	warehouse, err := encodeWarehouse(snap.Warehouse)
	if err != nil {
		return err
	}
	var history bytes.Buffer
	for _, line := range snap.History {
		history.WriteString(line)
		history.WriteByte('\n')
	}

	var errs []error
	if err := writeAtomic(s.paths.Balance, []byte(snap.Balance.String())); err != nil {
		errs = append(errs, err)
	}
	if err := writeAtomic(s.paths.Warehouse, warehouse); err != nil {
		errs = append(errs, err)
	}
	if err := writeAtomic(s.paths.History, history.Bytes()); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) Close() error { return nil }

func encodeWarehouse(warehouse map[string]domain.Product) ([]byte, error) {
	names := make([]string, 0, len(warehouse))
	for name := range warehouse {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteString(", ")
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("encode product name %q: %w", name, err)
		}
		rec, err := json.Marshal(record{
			Price:    json.Number(warehouse[name].Price.String()),
			Quantity: warehouse[name].Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("encode product %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.Write(rec)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeAtomic writes data to a temp file next to path and renames it into place,
// so a crash mid-write never leaves a truncated file behind.
func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
