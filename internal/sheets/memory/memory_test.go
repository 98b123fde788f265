package memory

import (
	"context"
	"testing"

	"ricorrenze/internal/core"
)

func TestExportReplacesPreviousRows(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := []core.ActiveRecurrence{
		{UserID: "u-1", Name: "NETFLIX123", NextAmt: 1500, NextDate: core.NewDate(2024, 3, 1)},
		{UserID: "u-1", Name: "SPOTIFY9", NextAmt: 999, NextDate: core.NewDate(2024, 3, 4)},
	}
	if err := store.Export(ctx, "u-1", first); err != nil {
		t.Fatalf("export: %v", err)
	}

	second := []core.ActiveRecurrence{
		{UserID: "u-1", Name: "NETFLIX123", NextAmt: 1500, NextDate: core.NewDate(2024, 4, 1)},
	}
	if err := store.Export(ctx, "u-1", second); err != nil {
		t.Fatalf("export: %v", err)
	}

	got := store.Exported("u-1")
	if len(got) != 1 {
		t.Fatalf("exported rows = %d, want 1", len(got))
	}
	if got[0].Name != "NETFLIX123" {
		t.Errorf("name = %q, want NETFLIX123", got[0].Name)
	}
}

func TestExportIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.Export(ctx, "u-1", []core.ActiveRecurrence{{UserID: "u-1", Name: "GYM"}}); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := store.Export(ctx, "u-2", nil); err != nil {
		t.Fatalf("export: %v", err)
	}

	if got := store.Exported("u-1"); len(got) != 1 {
		t.Errorf("u-1 rows = %d, want 1", len(got))
	}
	if got := store.Exported("u-2"); len(got) != 0 {
		t.Errorf("u-2 rows = %d, want 0", len(got))
	}
	if users := store.Users(); len(users) != 2 {
		t.Errorf("users = %d, want 2", len(users))
	}
}

func TestExportedCopyIsIndependent(t *testing.T) {
	ctx := context.Background()
	store := New()

	rows := []core.ActiveRecurrence{{UserID: "u-1", Name: "GYM"}}
	if err := store.Export(ctx, "u-1", rows); err != nil {
		t.Fatalf("export: %v", err)
	}

	got := store.Exported("u-1")
	got[0].Name = "mutated"

	if again := store.Exported("u-1"); again[0].Name != "GYM" {
		t.Errorf("stored row mutated through returned copy: %q", again[0].Name)
	}
}
