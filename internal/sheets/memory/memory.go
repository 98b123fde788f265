// Package memory provides an in-process RecurrenceExporter, used in
// development and in worker tests where no spreadsheet is configured.
package memory

import (
	"context"
	"sync"

	"ricorrenze/internal/core"
	ports "ricorrenze/internal/sheets"
)

type Store struct {
	mu      sync.Mutex
	exports map[string][]core.ActiveRecurrence
}

var _ ports.RecurrenceExporter = (*Store)(nil)

func New() *Store {
	return &Store{exports: make(map[string][]core.ActiveRecurrence)}
}

// Export replaces the stored rows for the user.
func (s *Store) Export(_ context.Context, userID string, recurrences []core.ActiveRecurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exports[userID] = append([]core.ActiveRecurrence(nil), recurrences...)
	return nil
}

// Exported returns a copy of the last export for the user.
func (s *Store) Exported(userID string) []core.ActiveRecurrence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ActiveRecurrence(nil), s.exports[userID]...)
}

// Users returns the IDs of every user that has been exported at least once.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.exports))
	for id := range s.exports {
		users = append(users, id)
	}
	return users
}
