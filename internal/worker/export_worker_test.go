package worker

import (
	"context"
	"errors"
	"testing"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/services"
	"ricorrenze/internal/sheets/memory"
)

type fakeStateReader struct {
	states map[string]core.UserRecurrenceState
	err    error
}

func (f *fakeStateReader) GetByUser(_ context.Context, userID string) (core.UserRecurrenceState, int64, bool, error) {
	if f.err != nil {
		return core.UserRecurrenceState{}, 0, false, f.err
	}
	state, ok := f.states[userID]
	return state, 1, ok, nil
}

func (f *fakeStateReader) ListUserIDs(_ context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	ids := make([]string, 0, len(f.states))
	for id := range f.states {
		ids = append(ids, id)
	}
	return ids, nil
}

func recurringState(userID string) core.UserRecurrenceState {
	base := core.NewDate(2024, 1, 1)
	txs := []core.Transaction{
		{TransID: "t-1", UserID: userID, Name: "NETFLIX123", Amount: core.Money{Cents: 1500}, Date: base},
		{TransID: "t-2", UserID: userID, Name: "NETFLIX124", Amount: core.Money{Cents: 1500}, Date: base.AddDays(30)},
		{TransID: "t-3", UserID: userID, Name: "NETFLIX125", Amount: core.Money{Cents: 1500}, Date: base.AddDays(60)},
	}
	state := core.NewUserRecurrenceState(userID)
	state.Buckets["NETFLIX"] = core.MerchantBucket{
		MerchantKey: "NETFLIX",
		Possibilities: []core.CandidateSeries{{
			LastName:      "NETFLIX125",
			NextAmt:       1500,
			LastDate:      base.AddDays(60),
			MeanPeriod:    30,
			RecurringFlag: true,
			Transactions:  txs,
		}},
	}
	return state
}

func newTestWorker(states *fakeStateReader, exporter *memory.Store, today core.Date) *ExportWorker {
	w := NewExportWorker(states, services.NewActivityFilter(5), exporter)
	w.now = func() core.Date { return today }
	return w
}

func TestHandleSyncMessageExportsActiveList(t *testing.T) {
	exporter := memory.New()
	states := &fakeStateReader{states: map[string]core.UserRecurrenceState{
		"u-1": recurringState("u-1"),
	}}
	// Day 90 is exactly when the next occurrence is predicted.
	w := newTestWorker(states, exporter, core.NewDate(2024, 1, 1).AddDays(90))

	err := w.HandleSyncMessage(context.Background(), amqp.NewRecurrenceSyncMessage("u-1"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	rows := exporter.Exported("u-1")
	if len(rows) != 1 {
		t.Fatalf("exported rows = %d, want 1", len(rows))
	}
	if rows[0].Name != "NETFLIX125" {
		t.Errorf("name = %q, want NETFLIX125", rows[0].Name)
	}
	if got := rows[0].NextDate.String(); got != "2024-03-31" {
		t.Errorf("next date = %s, want 2024-03-31", got)
	}
}

func TestHandleSyncMessageLapsedSeriesExportsNothing(t *testing.T) {
	exporter := memory.New()
	states := &fakeStateReader{states: map[string]core.UserRecurrenceState{
		"u-1": recurringState("u-1"),
	}}
	// Far past the predicted date plus tolerance.
	w := newTestWorker(states, exporter, core.NewDate(2024, 1, 1).AddDays(120))

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecurrenceSyncMessage("u-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if rows := exporter.Exported("u-1"); len(rows) != 0 {
		t.Errorf("exported rows = %d, want 0", len(rows))
	}
}

func TestHandleSyncMessageUnknownUserExportsEmpty(t *testing.T) {
	exporter := memory.New()
	states := &fakeStateReader{states: map[string]core.UserRecurrenceState{}}
	w := newTestWorker(states, exporter, core.NewDate(2024, 1, 1))

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecurrenceSyncMessage("ghost")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	users := exporter.Users()
	if len(users) != 1 || users[0] != "ghost" {
		t.Errorf("users = %v, want [ghost]", users)
	}
}

func TestExportAllCoversEveryUser(t *testing.T) {
	exporter := memory.New()
	states := &fakeStateReader{states: map[string]core.UserRecurrenceState{
		"u-1": recurringState("u-1"),
		"u-2": recurringState("u-2"),
	}}
	w := newTestWorker(states, exporter, core.NewDate(2024, 1, 1).AddDays(90))

	if err := w.ExportAll(context.Background()); err != nil {
		t.Fatalf("export all: %v", err)
	}

	if users := exporter.Users(); len(users) != 2 {
		t.Fatalf("exported users = %d, want 2", len(users))
	}
	for _, id := range []string{"u-1", "u-2"} {
		if rows := exporter.Exported(id); len(rows) != 1 {
			t.Errorf("%s rows = %d, want 1", id, len(rows))
		}
	}
}

func TestHandleSyncMessagePropagatesStoreError(t *testing.T) {
	exporter := memory.New()
	states := &fakeStateReader{err: errors.New("db closed")}
	w := newTestWorker(states, exporter, core.NewDate(2024, 1, 1))

	if err := w.HandleSyncMessage(context.Background(), amqp.NewRecurrenceSyncMessage("u-1")); err == nil {
		t.Fatal("handle should fail when the state store errors")
	}
}
