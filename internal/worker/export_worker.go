// Package worker re-exports a user's active recurrences whenever their
// recurrence state changes.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/services"
	"ricorrenze/internal/sheets"
)

// StateReader is the slice of the state store the worker needs.
type StateReader interface {
	GetByUser(ctx context.Context, userID string) (core.UserRecurrenceState, int64, bool, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// ExportWorker consumes recurrence sync messages and pushes the affected
// user's active list to the configured exporter.
type ExportWorker struct {
	states   StateReader
	filter   services.ActivityFilter
	exporter sheets.RecurrenceExporter

	// now is swapped in tests to pin the reference day.
	now func() core.Date
}

func NewExportWorker(states StateReader, filter services.ActivityFilter, exporter sheets.RecurrenceExporter) *ExportWorker {
	return &ExportWorker{
		states:   states,
		filter:   filter,
		exporter: exporter,
		now:      core.Today,
	}
}

// HandleSyncMessage processes a single recurrence sync message.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.RecurrenceSyncMessage) error {
	if msg.UserID == "" {
		slog.WarnContext(ctx, "Dropping sync message without user ID")
		return nil
	}

	state, version, found, err := w.states.GetByUser(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load recurrence state: %w", err)
	}
	if !found {
		// The state may have been removed since the message was queued.
		// Export an empty list so downstream rows don't go stale.
		state = core.NewUserRecurrenceState(msg.UserID)
	}

	active := w.filter.Active(state, w.now())

	if err := w.exporter.Export(ctx, msg.UserID, active); err != nil {
		return fmt.Errorf("export active recurrences: %w", err)
	}

	slog.InfoContext(ctx, "Exported user recurrences",
		"user_id", msg.UserID,
		"version", version,
		"active_count", len(active))

	return nil
}

// ExportAll re-exports every known user. This is the periodic backup path
// for sync messages lost while the worker was down.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	userIDs, err := w.states.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	today := w.now()
	exported := 0
	for _, userID := range userIDs {
		state, _, found, err := w.states.GetByUser(ctx, userID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load state during full export",
				"user_id", userID, "error", err)
			continue
		}
		if !found {
			continue
		}

		if err := w.exporter.Export(ctx, userID, w.filter.Active(state, today)); err != nil {
			slog.ErrorContext(ctx, "Failed to export during full export",
				"user_id", userID, "error", err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Full export completed",
		"users", len(userIDs),
		"exported", exported)

	return nil
}
