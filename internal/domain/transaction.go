package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when the input carries no currency information.
const DefaultCurrency = "PHP"

// Transaction is one normalized financial movement, derived from an Upload or
// entered manually (UploadID empty).
//
// Amount is always a non-negative magnitude; Direction carries the sign
// semantics of the movement.
type Transaction struct {
	ID       string
	UserID   string
	UploadID string

	Date        time.Time
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string

	Direction   Direction
	Category    Category
	Subcategory string

	// AI provenance.
	AICategorized bool
	AIConfidence  Confidence
	AIRationale   string

	ManuallyVerified bool
	ManualNotes      string

	SourcePlatform string
	Counterparty   string

	IsAnomaly     bool
	AnomalyReason string
	IsRecurring   bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsIncome reports whether the transaction is an income movement.
func (t *Transaction) IsIncome() bool { return t.Direction == DirectionIncome }

// IsExpense reports whether the transaction is an expense movement.
func (t *Transaction) IsExpense() bool { return t.Direction == DirectionExpense }

// Uncategorized reports whether the transaction still carries no meaningful
// category assignment. The materializer defaults every transaction to
// CategoryOther, so both the empty category and CategoryOther count.
func (t *Transaction) Uncategorized() bool {
	return t.Category == "" || t.Category == CategoryOther
}
