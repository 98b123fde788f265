package services

import (
	"math"
	"sort"
	"strings"

	"ricorrenze/internal/core"
)

// ActivityFilter turns a user's candidate series state into the list of
// recurring transactions that are currently due or about to be.
type ActivityFilter struct {
	dateTolerance int // days past the predicted date before a series lapses
}

func NewActivityFilter(dateToleranceDays int) ActivityFilter {
	return ActivityFilter{dateTolerance: dateToleranceDays}
}

// Active returns every confirmed recurring series whose predicted next
// occurrence is no more than the tolerance behind today. Series not yet due
// are included; series further overdue are treated as lapsed and omitted.
// The result is sorted by name, case-insensitively, preserving bucket order
// for equal names.
func (f ActivityFilter) Active(state core.UserRecurrenceState, today core.Date) []core.ActiveRecurrence {
	active := make([]core.ActiveRecurrence, 0)

	// Buckets live in a map; walk the keys sorted so equal-name ties keep a
	// reproducible encounter order.
	keys := make([]string, 0, len(state.Buckets))
	for key := range state.Buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, possibility := range state.Buckets[key].Possibilities {
			if !possibility.RecurringFlag {
				continue
			}

			nextDate := possibility.LastDate.AddDays(int(math.Ceil(possibility.MeanPeriod)))
			overdueDays := core.DaysBetween(nextDate, today)
			if overdueDays > f.dateTolerance {
				continue
			}

			active = append(active, core.ActiveRecurrence{
				UserID:       state.UserID,
				Name:         possibility.LastName,
				NextAmt:      possibility.NextAmt,
				NextDate:     nextDate,
				Transactions: append([]core.Transaction(nil), possibility.Transactions...),
			})
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		return strings.ToLower(active[i].Name) < strings.ToLower(active[j].Name)
	})

	return active
}
