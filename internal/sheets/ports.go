package sheets

import (
	"context"

	"ricorrenze/internal/core"
)

// Ports for outbound export adapters.
type (
	// RecurrenceExporter replaces a user's exported rows with the given
	// active recurrences. Export is idempotent per user.
	RecurrenceExporter interface {
		Export(ctx context.Context, userID string, recurrences []core.ActiveRecurrence) error
	}
)
