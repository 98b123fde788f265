package core

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Transaction is a single raw bank transaction as recorded by the
	// transaction store. Immutable once recorded.
	Transaction struct {
		TransID string `json:"trans_id"`
		UserID  string `json:"user_id"`
		Name    string `json:"name"`
		Amount  Money  `json:"amount_cents"`
		Date    Date   `json:"date"`
	}

	// CandidateSeries is one hypothesized recurring pattern ("possibility"):
	// a chain of transactions judged to share a period and an amount.
	CandidateSeries struct {
		LastName      string        `json:"last_name"`
		NextAmt       float64       `json:"next_amt"` // running mean, cents
		LastDate      Date          `json:"last_date"`
		MeanPeriod    float64       `json:"mean_period"` // days; 0 until 2 transactions absorbed
		RecurringFlag bool          `json:"recurring_flag"`
		Transactions  []Transaction `json:"transactions"`
	}

	// MerchantBucket holds every live candidate series for one merchant key
	// under one user.
	MerchantBucket struct {
		MerchantKey   string            `json:"merchant_key"`
		Possibilities []CandidateSeries `json:"possibilities"`
	}

	// UserRecurrenceState is the unit of persistence: one record per user,
	// read-modify-written wholesale on every ingested batch.
	UserRecurrenceState struct {
		UserID  string                    `json:"user_id"`
		Buckets map[string]MerchantBucket `json:"buckets"`
	}

	// ActiveRecurrence is the externally visible record for a recurring
	// series that is currently due (or about to be).
	ActiveRecurrence struct {
		UserID       string        `json:"user_id"`
		Name         string        `json:"name"`
		NextAmt      float64       `json:"next_amt"` // cents
		NextDate     Date          `json:"next_date"`
		Transactions []Transaction `json:"transactions"`
	}
)

var (
	// ErrInvalidInput covers any malformed transaction in an ingest batch.
	// Field-level errors below wrap it so callers can match the category.
	ErrInvalidInput = errors.New("invalid input")

	ErrEmptyBatch           = errors.New("empty transaction batch")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrStateConflict        = errors.New("user recurrence state conflict")

	ErrMissingTransID = fmt.Errorf("%w: missing trans_id", ErrInvalidInput)
	ErrMissingUserID  = fmt.Errorf("%w: missing user_id", ErrInvalidInput)
	ErrMissingName    = fmt.Errorf("%w: missing name", ErrInvalidInput)
	ErrInvalidAmount  = fmt.Errorf("%w: invalid amount", ErrInvalidInput)
	ErrInvalidDate    = fmt.Errorf("%w: invalid date", ErrInvalidInput)
)

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.TransID) == "" {
		return ErrMissingTransID
	}
	if strings.TrimSpace(t.UserID) == "" {
		return ErrMissingUserID
	}
	if strings.TrimSpace(t.Name) == "" {
		return ErrMissingName
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// NewSingleton wraps a transaction as a one-element candidate series.
// The period is undefined (0) until a second transaction is absorbed.
func NewSingleton(t Transaction) CandidateSeries {
	return CandidateSeries{
		LastName:      t.Name,
		NextAmt:       float64(t.Amount.Cents),
		LastDate:      t.Date,
		MeanPeriod:    0,
		RecurringFlag: false,
		Transactions:  []Transaction{t},
	}
}

// Clone returns a deep copy so the fold can produce a new state without
// mutating the stored one.
func (s CandidateSeries) Clone() CandidateSeries {
	out := s
	out.Transactions = append([]Transaction(nil), s.Transactions...)
	return out
}

func (b MerchantBucket) Clone() MerchantBucket {
	out := MerchantBucket{MerchantKey: b.MerchantKey}
	if b.Possibilities != nil {
		out.Possibilities = make([]CandidateSeries, len(b.Possibilities))
		for i, p := range b.Possibilities {
			out.Possibilities[i] = p.Clone()
		}
	}
	return out
}

// NewUserRecurrenceState returns an empty state for a first-time user.
func NewUserRecurrenceState(userID string) UserRecurrenceState {
	return UserRecurrenceState{
		UserID:  userID,
		Buckets: make(map[string]MerchantBucket),
	}
}

func (u UserRecurrenceState) Clone() UserRecurrenceState {
	out := NewUserRecurrenceState(u.UserID)
	for key, bucket := range u.Buckets {
		out.Buckets[key] = bucket.Clone()
	}
	return out
}
