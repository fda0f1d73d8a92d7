package store

import (
	"context"

	"github.com/tanudai/Nuclear-SCADA/internal/engine"
)

// Journal adapts a Store to engine.Observer.
type Journal struct {
	store *Store
}

// NewJournal returns an observer that writes every Report to s.
func NewJournal(s *Store) *Journal {
	return &Journal{store: s}
}

// Observe implements engine.Observer.
func (j *Journal) Observe(ctx context.Context, r engine.Report) error {
	return j.store.WriteReport(ctx, r)
}
