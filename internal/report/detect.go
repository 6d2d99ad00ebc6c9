package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/store"
)

// deviationThreshold flags a transaction when its amount deviates from the
// category average by more than 200%.
var deviationThreshold = decimal.NewFromInt(2)

// Detector is the category-average anomaly pass, separate from the 3×-mean
// flagging inside aggregation. The two use different thresholds and scopes
// and are deliberately kept apart.
type Detector struct {
	txs store.Transactions
}

// NewDetector wires a Detector to the transaction store.
func NewDetector(txs store.Transactions) *Detector {
	return &Detector{txs: txs}
}

// DetectAnomalies compares each candidate transaction against the average
// amount of its category across all of the user's transactions, flags those
// deviating by more than 200% and persists the flag with the deviation
// percentage. When txIDs is empty every transaction is a candidate. Returns
// the flagged transactions.
func (d *Detector) DetectAnomalies(ctx context.Context, userID string, txIDs []string) ([]*domain.Transaction, error) {
	log := logger.FromContext(ctx)

	all, err := d.txs.List(ctx, userID, store.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("DetectAnomalies: listing transactions: %w", err)
	}

	sums := map[domain.Category]decimal.Decimal{}
	counts := map[domain.Category]int64{}
	for _, tx := range all {
		sums[tx.Category] = sums[tx.Category].Add(tx.Amount)
		counts[tx.Category]++
	}

	candidates := all
	if len(txIDs) > 0 {
		idSet := make(map[string]bool, len(txIDs))
		for _, id := range txIDs {
			idSet[id] = true
		}
		candidates = candidates[:0:0]
		for _, tx := range all {
			if idSet[tx.ID] {
				candidates = append(candidates, tx)
			}
		}
	}

	var flagged []*domain.Transaction
	for _, tx := range candidates {
		avg := sums[tx.Category].Div(decimal.NewFromInt(counts[tx.Category]))
		if avg.IsZero() {
			continue
		}

		deviation := tx.Amount.Sub(avg).Abs().Div(avg)
		if deviation.LessThanOrEqual(deviationThreshold) {
			continue
		}

		tx.IsAnomaly = true
		tx.AnomalyReason = fmt.Sprintf("Amount deviation: %s%% from category average",
			deviation.Mul(decimal.NewFromInt(100)).Round(1))
		if err := d.txs.Update(ctx, tx); err != nil {
			return nil, fmt.Errorf("DetectAnomalies: persisting flag on %s: %w", tx.ID, err)
		}
		flagged = append(flagged, tx)
	}

	log.Info().
		Str("user_id", userID).
		Int("candidates", len(candidates)).
		Int("flagged", len(flagged)).
		Msg("anomaly detection pass finished")
	return flagged, nil
}
