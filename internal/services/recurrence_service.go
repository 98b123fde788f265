package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ricorrenze/internal/core"
)

// Ports the service depends on. The storage package provides the SQLite
// implementations; tests use in-memory fakes.
type (
	// TransactionStore is the append/read store for raw transactions.
	// AppendBatch enforces trans_id uniqueness.
	TransactionStore interface {
		AppendBatch(ctx context.Context, batch []core.Transaction) ([]core.Transaction, error)
		FetchAll(ctx context.Context) ([]core.Transaction, error)
	}

	// StateStore holds one UserRecurrenceState per user. Replace performs a
	// compare-and-swap on the version read by GetByUser and fails with
	// core.ErrStateConflict on a concurrent write.
	StateStore interface {
		GetByUser(ctx context.Context, userID string) (state core.UserRecurrenceState, version int64, found bool, err error)
		Create(ctx context.Context, state core.UserRecurrenceState) error
		Replace(ctx context.Context, userID string, state core.UserRecurrenceState, expectedVersion int64) error
	}

	// SyncPublisher notifies downstream consumers (the export worker) that a
	// user's recurrence state changed. Publishing is best effort.
	SyncPublisher interface {
		PublishRecurrenceSync(ctx context.Context, userID string) error
	}
)

// RecurrenceService is the core entry point: it ingests transaction batches,
// folds them into per-user recurrence state, and reports currently active
// recurring transactions.
type RecurrenceService struct {
	transactions TransactionStore
	states       StateStore
	builder      SeriesBuilder
	filter       ActivityFilter
	publisher    SyncPublisher

	// Ingest reads the whole prior state, folds in memory, and writes it
	// back wholesale, so batches for the same user must not interleave.
	// Different users proceed independently.
	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

func NewRecurrenceService(transactions TransactionStore, states StateStore, builder SeriesBuilder, filter ActivityFilter, publisher SyncPublisher) *RecurrenceService {
	return &RecurrenceService{
		transactions: transactions,
		states:       states,
		builder:      builder,
		filter:       filter,
		publisher:    publisher,
		userLocks:    make(map[string]*sync.Mutex),
	}
}

func (s *RecurrenceService) lockUser(userID string) *sync.Mutex {
	s.mu.Lock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	s.mu.Unlock()
	lock.Lock()
	return lock
}

// Ingest validates and persists a batch of one user's transactions, folds
// them into the user's recurrence state, and stores the new state. The whole
// batch is atomic: validation failures abort before any mutation, and
// duplicate ids or store conflicts surface to the caller for retry.
func (s *RecurrenceService) Ingest(ctx context.Context, batch []core.Transaction) (core.UserRecurrenceState, error) {
	if len(batch) == 0 {
		return core.UserRecurrenceState{}, core.ErrEmptyBatch
	}

	userID := batch[0].UserID
	for i, tx := range batch {
		if err := tx.Validate(); err != nil {
			return core.UserRecurrenceState{}, fmt.Errorf("transaction %d (%s): %w", i, tx.TransID, err)
		}
		if tx.UserID != userID {
			return core.UserRecurrenceState{}, fmt.Errorf("%w: batch mixes users %q and %q", core.ErrInvalidInput, userID, tx.UserID)
		}
	}

	lock := s.lockUser(userID)
	defer lock.Unlock()

	stored, err := s.transactions.AppendBatch(ctx, batch)
	if err != nil {
		return core.UserRecurrenceState{}, fmt.Errorf("append transactions: %w", err)
	}

	sorted := append([]core.Transaction(nil), stored...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	state, version, found, err := s.states.GetByUser(ctx, userID)
	if err != nil {
		return core.UserRecurrenceState{}, fmt.Errorf("load recurrence state: %w", err)
	}
	if !found {
		state = core.NewUserRecurrenceState(userID)
	}

	newState := s.builder.Fold(state, sorted)

	if found {
		err = s.states.Replace(ctx, userID, newState, version)
	} else {
		err = s.states.Create(ctx, newState)
	}
	if err != nil {
		return core.UserRecurrenceState{}, fmt.Errorf("save recurrence state: %w", err)
	}

	slog.InfoContext(ctx, "Ingested transaction batch",
		"user_id", userID,
		"batch_size", len(batch),
		"merchants", len(newState.Buckets))

	// Best effort: a lost message only delays the downstream export.
	if s.publisher != nil {
		if err := s.publisher.PublishRecurrenceSync(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Failed to publish recurrence sync message",
				"user_id", userID, "error", err)
		}
	}

	return newState, nil
}

// ListActive returns the user's currently active recurring transactions as
// of the given day. An unknown user yields an empty list, not an error.
func (s *RecurrenceService) ListActive(ctx context.Context, userID string, today core.Date) ([]core.ActiveRecurrence, error) {
	state, _, found, err := s.states.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load recurrence state: %w", err)
	}
	if !found {
		return []core.ActiveRecurrence{}, nil
	}
	return s.filter.Active(state, today), nil
}

// ListTransactions returns every transaction recorded so far.
func (s *RecurrenceService) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	transactions, err := s.transactions.FetchAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	return transactions, nil
}
