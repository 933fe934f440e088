package store

import (
	"context"
	"errors"

	"stockledger/internal/domain"
)

// ErrCorrupt marks a persisted part that could not be parsed and was replaced by its default.
var ErrCorrupt = errors.New("corrupt ledger data")

// Store is the wholesale persistence contract used by the ledger.
//
// Load always returns a usable snapshot: parts that are missing keep the value
// from defaults. A non-nil error describes parts that existed but could not be
// read; the ledger logs it and carries on.
type Store interface {
	Load(ctx context.Context, defaults domain.Snapshot) (domain.Snapshot, error)
	Save(ctx context.Context, snap domain.Snapshot) error
	Close() error
}
