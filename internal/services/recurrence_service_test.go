package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"ricorrenze/internal/core"
)

type fakeTransactionStore struct {
	transactions []core.Transaction
	seen         map[string]bool
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{seen: make(map[string]bool)}
}

func (f *fakeTransactionStore) AppendBatch(_ context.Context, batch []core.Transaction) ([]core.Transaction, error) {
	for _, tx := range batch {
		if f.seen[tx.TransID] {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateTransaction, tx.TransID)
		}
	}
	for _, tx := range batch {
		f.seen[tx.TransID] = true
		f.transactions = append(f.transactions, tx)
	}
	return batch, nil
}

func (f *fakeTransactionStore) FetchAll(_ context.Context) ([]core.Transaction, error) {
	return append([]core.Transaction(nil), f.transactions...), nil
}

type fakeStateStore struct {
	states    map[string]core.UserRecurrenceState
	versions  map[string]int64
	conflicts bool
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{
		states:   make(map[string]core.UserRecurrenceState),
		versions: make(map[string]int64),
	}
}

func (f *fakeStateStore) GetByUser(_ context.Context, userID string) (core.UserRecurrenceState, int64, bool, error) {
	state, ok := f.states[userID]
	if !ok {
		return core.UserRecurrenceState{}, 0, false, nil
	}
	return state.Clone(), f.versions[userID], true, nil
}

func (f *fakeStateStore) Create(_ context.Context, state core.UserRecurrenceState) error {
	if _, ok := f.states[state.UserID]; ok {
		return core.ErrStateConflict
	}
	f.states[state.UserID] = state.Clone()
	f.versions[state.UserID] = 1
	return nil
}

func (f *fakeStateStore) Replace(_ context.Context, userID string, state core.UserRecurrenceState, expectedVersion int64) error {
	if f.conflicts || f.versions[userID] != expectedVersion {
		return core.ErrStateConflict
	}
	f.states[userID] = state.Clone()
	f.versions[userID] = expectedVersion + 1
	return nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishRecurrenceSync(_ context.Context, userID string) error {
	f.published = append(f.published, userID)
	return nil
}

func newTestService(txs *fakeTransactionStore, states *fakeStateStore, pub SyncPublisher) *RecurrenceService {
	return NewRecurrenceService(txs, states, testBuilder(), NewActivityFilter(5), pub)
}

func TestIngestAndListActive(t *testing.T) {
	ctx := context.Background()
	txStore := newFakeTransactionStore()
	stateStore := newFakeStateStore()
	pub := &fakePublisher{}
	svc := newTestService(txStore, stateStore, pub)

	batch := []core.Transaction{
		tx("t-1", "NETFLIX123", 1500, day(0)),
		tx("t-2", "NETFLIX124", 1500, day(30)),
		tx("t-3", "NETFLIX125", 1500, day(60)),
	}

	state, err := svc.Ingest(ctx, batch)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(recurringSeries(state, "NETFLIX")) != 1 {
		t.Fatal("expected one recurring NETFLIX series after ingest")
	}
	if len(pub.published) != 1 || pub.published[0] != "u-1" {
		t.Errorf("published = %v, want one sync for u-1", pub.published)
	}

	active, err := svc.ListActive(ctx, "u-1", day(61))
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("active = %d, want 1", len(active))
	}
	if !active[0].NextDate.Equal(day(90).Time) {
		t.Errorf("next_date = %v, want day 90", active[0].NextDate)
	}
}

func TestIngestSecondBatchExtendsState(t *testing.T) {
	ctx := context.Background()
	stateStore := newFakeStateStore()
	svc := newTestService(newFakeTransactionStore(), stateStore, nil)

	if _, err := svc.Ingest(ctx, []core.Transaction{
		tx("t-1", "SPOTIFY", 999, day(0)),
		tx("t-2", "SPOTIFY", 999, day(30)),
	}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	state, err := svc.Ingest(ctx, []core.Transaction{
		tx("t-3", "SPOTIFY", 999, day(60)),
	})
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(recurringSeries(state, "SPOTIFY")) != 1 {
		t.Fatal("expected a recurring series spanning both batches")
	}
	if stateStore.versions["u-1"] != 2 {
		t.Errorf("state version = %d, want 2 after create and replace", stateStore.versions["u-1"])
	}
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeTransactionStore(), newFakeStateStore(), nil)

	tests := []struct {
		name    string
		batch   []core.Transaction
		wantErr error
	}{
		{"empty batch", nil, core.ErrEmptyBatch},
		{
			"missing field",
			[]core.Transaction{{TransID: "t-1", UserID: "u-1", Date: day(0)}},
			core.ErrInvalidInput,
		},
		{
			"mixed users",
			[]core.Transaction{
				tx("t-1", "ACME", 2000, day(0)),
				{TransID: "t-2", UserID: "u-2", Name: "ACME", Amount: core.Money{Cents: 2000}, Date: day(30)},
			},
			core.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Ingest(ctx, tt.batch); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIngestRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeTransactionStore(), newFakeStateStore(), nil)

	batch := []core.Transaction{tx("t-1", "ACME", 2000, day(0))}
	if _, err := svc.Ingest(ctx, batch); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	if _, err := svc.Ingest(ctx, batch); !errors.Is(err, core.ErrDuplicateTransaction) {
		t.Errorf("err = %v, want ErrDuplicateTransaction", err)
	}
}

func TestIngestSurfacesStateConflict(t *testing.T) {
	ctx := context.Background()
	stateStore := newFakeStateStore()
	svc := newTestService(newFakeTransactionStore(), stateStore, nil)

	if _, err := svc.Ingest(ctx, []core.Transaction{tx("t-1", "ACME", 2000, day(0))}); err != nil {
		t.Fatalf("first ingest: %v", err)
	}

	stateStore.conflicts = true
	_, err := svc.Ingest(ctx, []core.Transaction{tx("t-2", "ACME", 2000, day(30))})
	if !errors.Is(err, core.ErrStateConflict) {
		t.Errorf("err = %v, want ErrStateConflict", err)
	}
}

func TestListActiveUnknownUser(t *testing.T) {
	svc := newTestService(newFakeTransactionStore(), newFakeStateStore(), nil)

	active, err := svc.ListActive(context.Background(), "nobody", day(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("active = %d, want empty list for unknown user", len(active))
	}
}

func TestListTransactions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeTransactionStore(), newFakeStateStore(), nil)

	if _, err := svc.Ingest(ctx, []core.Transaction{
		tx("t-1", "ACME", 2000, day(0)),
		tx("t-2", "NETFLIX1", 1500, day(1)),
	}); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	all, err := svc.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("transactions = %d, want 2", len(all))
	}
}
