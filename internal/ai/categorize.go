package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/logger"
)

// txInput is the per-transaction payload sent to the model. The id is the
// transaction's stable identity; results are joined back by it.
type txInput struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Amount       string `json:"amount"`
	Description  string `json:"description"`
	Reference    string `json:"reference,omitempty"`
	Counterparty string `json:"counterparty,omitempty"`
}

// txResult is one model verdict.
type txResult struct {
	ID         string `json:"id"`
	Direction  string `json:"direction"`
	Category   string `json:"category"`
	Confidence string `json:"confidence"`
	Rationale  string `json:"rationale"`
}

// BatchResult summarizes one categorization batch.
type BatchResult struct {
	Total      int
	Updated    int
	Mismatched int
	// Unparseable marks a response that was not valid JSON. The batch still
	// completes, with zero updates, so the failure is observable on the job.
	Unparseable bool

	InputTokens  int64
	OutputTokens int64
	LatencyMS    int64
}

// Categorizer sends transaction batches to the model and merges the verdicts
// back onto the transactions.
type Categorizer struct {
	client Client
}

// NewCategorizer wires a Categorizer to a model client.
func NewCategorizer(client Client) *Categorizer {
	return &Categorizer{client: client}
}

// CategorizeBatch sends exactly one request for the whole batch and mutates
// the given transactions in place. Verdicts carrying an unknown id are
// counted as mismatches, not errors; invalid categories are demoted to
// other/very_low.
func (c *Categorizer) CategorizeBatch(ctx context.Context, txs []*domain.Transaction) (*BatchResult, error) {
	log := logger.FromContext(ctx)

	res := &BatchResult{Total: len(txs)}
	if len(txs) == 0 {
		return res, nil
	}

	inputs := make([]txInput, len(txs))
	byID := make(map[string]*domain.Transaction, len(txs))
	for i, tx := range txs {
		amount := tx.Amount
		if tx.Direction == domain.DirectionExpense {
			amount = amount.Neg()
		}
		inputs[i] = txInput{
			ID:           tx.ID,
			Date:         tx.Date.Format("2006-01-02"),
			Amount:       amount.String(),
			Description:  tx.Description,
			Reference:    tx.Reference,
			Counterparty: tx.Counterparty,
		}
		byID[tx.ID] = tx
	}

	payload, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("CategorizeBatch: encoding batch: %w", err)
	}
	userPrompt := "Please categorize these transactions:\n\n" + string(payload)

	start := time.Now()
	completion, err := c.client.Complete(ctx, categorizeSystemPrompt, userPrompt, Params{
		Temperature:     0.1,
		MaxOutputTokens: 4000,
	})
	if err != nil {
		return nil, fmt.Errorf("CategorizeBatch: model request: %w", err)
	}
	res.LatencyMS = time.Since(start).Milliseconds()
	res.InputTokens = completion.InputTokens
	res.OutputTokens = completion.OutputTokens

	var verdicts []txResult
	if err := json.Unmarshal([]byte(cleanModelJSON(completion.Text)), &verdicts); err != nil {
		log.Warn().
			Err(err).
			Int("batch_size", len(txs)).
			Msg("model response was not parseable JSON")
		res.Unparseable = true
		return res, nil
	}

	now := time.Now()
	for _, v := range verdicts {
		tx, ok := byID[v.ID]
		if !ok {
			res.Mismatched++
			continue
		}
		applyVerdict(tx, v, now)
		res.Updated++
	}

	return res, nil
}

func applyVerdict(tx *domain.Transaction, v txResult, now time.Time) {
	if d := domain.Direction(v.Direction); domain.ValidDirection(d) {
		tx.Direction = d
	}

	category := domain.Category(v.Category)
	confidence := domain.Confidence(v.Confidence)
	if !domain.ValidCategory(category) {
		category = domain.CategoryOther
		confidence = domain.ConfidenceVeryLow
	} else if !domain.ValidConfidence(confidence) {
		confidence = domain.ConfidenceMedium
	}

	tx.Category = category
	tx.AICategorized = true
	tx.AIConfidence = confidence
	tx.AIRationale = v.Rationale
	tx.UpdatedAt = now
}
