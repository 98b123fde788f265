// Package services implements the recurrence detection pipeline: the
// pairwise group matcher, the series builder that folds transaction batches
// into per-merchant candidate series, the activity filter that reports
// currently-due recurrences, and the service orchestrating them over the
// transaction and state stores.
package services

import (
	"math"

	"ricorrenze/internal/core"
)

// Decision classifies the outcome of matching an incoming transaction
// against an existing candidate series.
type Decision int

const (
	// Rejected: the incoming transaction does not extend the series; the
	// caller keeps the series unchanged.
	Rejected Decision = iota

	// ExtendedFork: the series had a single transaction. Both the original
	// (it may still seed a different pattern with a later transaction) and
	// the merged series survive.
	ExtendedFork

	// ExtendedReplace: the series already had two or more transactions, so
	// the merged series subsumes it and only the merged one survives.
	ExtendedReplace
)

// Matcher decides whether a transaction can extend a candidate series.
// Tolerances are injected rather than hard-coded so the detection window can
// be tuned per deployment.
type Matcher struct {
	amountTolerance float64 // cents
	dateTolerance   float64 // days
}

func NewMatcher(amountToleranceCents int64, dateToleranceDays int) Matcher {
	return Matcher{
		amountTolerance: float64(amountToleranceCents),
		dateTolerance:   float64(dateToleranceDays),
	}
}

// DateTolerance returns the configured date tolerance in days.
func (m Matcher) DateTolerance() float64 {
	return m.dateTolerance
}

// Combine matches a singleton series wrapping an incoming transaction
// against an existing series. On ExtendedFork or ExtendedReplace the second
// return value holds the merged series; on Rejected it is the zero value.
func (m Matcher) Combine(existing, incoming core.CandidateSeries) (Decision, core.CandidateSeries) {
	gap := math.Abs(float64(core.DaysBetween(existing.LastDate, incoming.LastDate)))

	// A series with an established period only accepts transactions that
	// land within the tolerance band around it.
	if existing.MeanPeriod != 0 && math.Abs(gap-existing.MeanPeriod) > m.dateTolerance {
		return Rejected, core.CandidateSeries{}
	}

	// The batch is processed in date order; anything chronologically behind
	// the series tail cannot extend it.
	if incoming.LastDate.Before(existing.LastDate.Time) {
		return Rejected, core.CandidateSeries{}
	}

	if math.Abs(existing.NextAmt-incoming.NextAmt) > m.amountTolerance {
		return Rejected, core.CandidateSeries{}
	}

	n := len(existing.Transactions) + len(incoming.Transactions)

	transactions := make([]core.Transaction, 0, n)
	transactions = append(transactions, existing.Transactions...)
	transactions = append(transactions, incoming.Transactions...)

	merged := core.CandidateSeries{
		LastName:     incoming.LastName,
		LastDate:     incoming.LastDate,
		Transactions: transactions,
		// Incremental means: the stored values already average the first
		// n-1 transactions (n-2 gaps), so one multiply-add folds in the
		// newcomer without rescanning the series.
		NextAmt:       (existing.NextAmt*float64(n-1) + incoming.NextAmt) / float64(n),
		MeanPeriod:    (existing.MeanPeriod*float64(n-2) + gap) / float64(n-1),
		RecurringFlag: n >= 3,
	}

	if len(existing.Transactions) == 1 {
		return ExtendedFork, merged
	}
	return ExtendedReplace, merged
}
