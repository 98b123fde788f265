package services

import (
	"math"
	"sort"

	"ricorrenze/internal/core"
)

// SeriesBuilder folds chronologically sorted transaction batches into a
// user's candidate series state. The fold is a pure transformation: the
// input state is never mutated, a new state is returned.
type SeriesBuilder struct {
	matcher Matcher

	// singletonHorizonDays, when positive, drops never-recurring singleton
	// possibilities whose transaction is older than this many days relative
	// to the newest transaction seen for the merchant. Zero disables
	// pruning and keeps every hypothesis alive indefinitely.
	singletonHorizonDays int
}

func NewSeriesBuilder(matcher Matcher, singletonHorizonDays int) SeriesBuilder {
	return SeriesBuilder{
		matcher:              matcher,
		singletonHorizonDays: singletonHorizonDays,
	}
}

// Fold absorbs a batch of one user's transactions into the given state and
// returns the resulting state. Transactions are processed in ascending date
// order; within a merchant the order determines which hypotheses form, so
// the fold sorts defensively even though the service already does.
func (b SeriesBuilder) Fold(state core.UserRecurrenceState, batch []core.Transaction) core.UserRecurrenceState {
	out := state.Clone()

	sorted := append([]core.Transaction(nil), batch...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	for _, tx := range sorted {
		key := core.MerchantKey(tx.Name)
		bucket, ok := out.Buckets[key]
		if !ok {
			bucket = core.MerchantBucket{MerchantKey: key}
		}

		single := core.NewSingleton(tx)
		next := make([]core.CandidateSeries, 0, len(bucket.Possibilities)+2)

		for _, possibility := range bucket.Possibilities {
			decision, merged := b.matcher.Combine(possibility, single)
			switch decision {
			case Rejected:
				next = append(next, possibility)
			case ExtendedFork:
				// Keep the one-transaction original so it can still pair
				// with other later transactions; add the merged series only
				// if no near-identical hypothesis is already queued.
				next = append(next, possibility)
				if !b.hasRedundant(next, merged) {
					next = append(next, merged)
				}
			case ExtendedReplace:
				next = append(next, merged)
			}
		}

		// The current transaction always seeds a fresh singleton, even when
		// it was absorbed into a merged series above.
		next = append(next, single)

		if b.singletonHorizonDays > 0 {
			next = b.pruneStaleSingletons(next, tx.Date)
		}

		bucket.Possibilities = next
		out.Buckets[key] = bucket
	}

	return out
}

// hasRedundant reports whether the accumulated list already carries a series
// with the same tail label and a mean period within the date tolerance of
// the candidate. Such near-duplicates add no information.
func (b SeriesBuilder) hasRedundant(accumulated []core.CandidateSeries, candidate core.CandidateSeries) bool {
	for _, p := range accumulated {
		if p.LastName == candidate.LastName &&
			math.Abs(p.MeanPeriod-candidate.MeanPeriod) < b.matcher.DateTolerance() {
			return true
		}
	}
	return false
}

// pruneStaleSingletons drops single-transaction hypotheses that have gone
// longer than the horizon without a follow-up. Anything with two or more
// transactions is kept regardless of age.
func (b SeriesBuilder) pruneStaleSingletons(possibilities []core.CandidateSeries, newest core.Date) []core.CandidateSeries {
	kept := possibilities[:0]
	for _, p := range possibilities {
		if len(p.Transactions) > 1 || core.DaysBetween(p.LastDate, newest) <= b.singletonHorizonDays {
			kept = append(kept, p)
		}
	}
	return kept
}
