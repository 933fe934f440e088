package memory

import (
	"context"
	"errors"
	"sync"

	"stockledger/internal/domain"
)

// ErrInjected is returned by Save when a failure has been armed with FailSaves.
var ErrInjected = errors.New("memory store: injected save failure")

type Store struct {
	mu sync.RWMutex

	saved     *domain.Snapshot
	saves     int
	failSaves bool
}

func NewStore() *Store {
	return &Store{}
}

// Seed sets the snapshot the next Load will return.
func (s *Store) Seed(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := snap.Clone()
	s.saved = &c
}

func (s *Store) Load(_ context.Context, defaults domain.Snapshot) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return defaults.Clone(), nil
	}
	return s.saved.Clone(), nil
}

func (s *Store) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return ErrInjected
	}
	c := snap.Clone()
	s.saved = &c
	s.saves++
	return nil
}

func (s *Store) Close() error { return nil }

// Saved returns the last successfully saved snapshot.
func (s *Store) Saved() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return domain.Snapshot{}, false
	}
	return s.saved.Clone(), true
}

func (s *Store) SaveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

func (s *Store) FailSaves(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = fail
}
