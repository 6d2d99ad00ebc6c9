package ingest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
)

type sampleSpec struct {
	daysAgo     int
	amount      string
	description string
	direction   domain.Direction
}

// Per-platform sample sets used when a document yields no recognizable
// transaction lines. The upload is flagged SampleData so downstream consumers
// can tell real data from the degraded-mode substitute.
var sampleSpecs = map[domain.SourcePlatform][]sampleSpec{
	domain.SourceGCash: {
		{2, "5000.00", "GCash Cash In - 7-Eleven", domain.DirectionIncome},
		{5, "1500.00", "Payment received - customer order", domain.DirectionIncome},
		{8, "350.00", "GCash payment - Meralco bill", domain.DirectionExpense},
		{12, "2500.00", "Payment received - delivery service", domain.DirectionIncome},
		{15, "15.00", "Send Money service fee", domain.DirectionExpense},
	},
	domain.SourcePayMaya: {
		{3, "4200.00", "Maya Cash In - bank transfer", domain.DirectionIncome},
		{7, "1800.00", "Payment received - online sale", domain.DirectionIncome},
		{10, "600.00", "Maya payment - groceries", domain.DirectionExpense},
		{14, "950.00", "Payment received - freelance gig", domain.DirectionIncome},
	},
}

// genericSamples covers platforms without a dedicated sample set.
var genericSamples = []sampleSpec{
	{2, "8000.00", "Salary deposit", domain.DirectionIncome},
	{6, "2000.00", "Payment received", domain.DirectionIncome},
	{9, "1200.00", "Bill payment", domain.DirectionExpense},
	{13, "3500.00", "Fund transfer received", domain.DirectionIncome},
	{16, "450.00", "Purchase", domain.DirectionExpense},
}

// SampleRows builds the synthetic sample set for a source platform, dated
// relative to now.
func SampleRows(source domain.SourcePlatform) []*CanonicalFields {
	specs, ok := sampleSpecs[source]
	if !ok {
		specs = genericSamples
	}

	now := time.Now()
	out := make([]*CanonicalFields, 0, len(specs))
	for _, s := range specs {
		amount, err := decimal.NewFromString(s.amount)
		if err != nil {
			continue
		}
		if s.direction == domain.DirectionExpense {
			amount = amount.Neg()
		}
		out = append(out, &CanonicalFields{
			Date:        now.AddDate(0, 0, -s.daysAgo),
			Amount:      amount,
			Description: s.description,
			Direction:   s.direction,
		})
	}
	return out
}
