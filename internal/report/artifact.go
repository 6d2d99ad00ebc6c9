package report

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"time"

	"github.com/shopspring/decimal"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/filestore"
	"github.com/kitako/incomeproof/internal/logger"
	"github.com/kitako/incomeproof/internal/store"
)

// ArtifactGenerator renders a computed report into downloadable bytes.
type ArtifactGenerator interface {
	Render(r *domain.IncomeReport, verificationURL string) ([]byte, error)
	Extension() string
}

// TextArtifact renders a deterministic plain-text proof-of-income document.
// Maps are emitted in sorted key order so the same report always hashes the
// same.
type TextArtifact struct{}

// Extension returns the artifact file extension.
func (TextArtifact) Extension() string { return "txt" }

// Render produces the document text.
func (TextArtifact) Render(r *domain.IncomeReport, verificationURL string) ([]byte, error) {
	var b strings.Builder

	b.WriteString("PROOF OF INCOME REPORT\n")
	b.WriteString("======================\n\n")
	fmt.Fprintf(&b, "Title:        %s\n", r.Title)
	fmt.Fprintf(&b, "Period:       %s to %s\n", r.DateFrom.Format("2006-01-02"), r.DateTo.Format("2006-01-02"))
	fmt.Fprintf(&b, "Purpose:      %s\n", r.Purpose)
	fmt.Fprintf(&b, "Generated:    %s\n\n", r.CreatedAt.Format("2006-01-02"))

	b.WriteString("SUMMARY (PHP)\n")
	b.WriteString("-------------\n")
	fmt.Fprintf(&b, "Total income:           %s\n", r.TotalIncome.StringFixed(2))
	fmt.Fprintf(&b, "Total expenses:         %s\n", r.TotalExpenses.StringFixed(2))
	fmt.Fprintf(&b, "Net income:             %s\n", r.NetIncome.StringFixed(2))
	fmt.Fprintf(&b, "Average monthly income: %s\n", r.AverageMonthlyIncome.StringFixed(2))
	fmt.Fprintf(&b, "Transactions:           %d\n", r.TransactionCount)
	fmt.Fprintf(&b, "Data sources:           %s\n", strings.Join(sortedStrings(r.DataSources), ", "))
	fmt.Fprintf(&b, "Confidence score:       %d/100\n\n", r.ConfidenceScore)

	writeBreakdown(&b, "INCOME BY CATEGORY", r.IncomeBreakdown)
	writeBreakdown(&b, "EXPENSES BY CATEGORY", r.ExpenseBreakdown)

	if len(r.MonthlyTrends) > 0 {
		b.WriteString("MONTHLY TRENDS\n")
		b.WriteString("--------------\n")
		for _, month := range sortedKeys(r.MonthlyTrends) {
			mt := r.MonthlyTrends[month]
			fmt.Fprintf(&b, "%s  income %s  expenses %s\n", month, mt.Income.StringFixed(2), mt.Expenses.StringFixed(2))
		}
		b.WriteString("\n")
	}

	if r.AIInsights != "" {
		b.WriteString("OBSERVATIONS\n")
		b.WriteString("------------\n")
		b.WriteString(r.AIInsights)
		b.WriteString("\n\n")
	}
	if r.Summary != "" {
		b.WriteString("NARRATIVE SUMMARY\n")
		b.WriteString("-----------------\n")
		b.WriteString(r.Summary)
		b.WriteString("\n\n")
	}
	if len(r.AnomaliesDetected) > 0 {
		b.WriteString("ANOMALIES\n")
		b.WriteString("---------\n")
		for _, a := range r.AnomaliesDetected {
			fmt.Fprintf(&b, "- %s\n", a)
		}
		b.WriteString("\n")
	}

	b.WriteString("VERIFICATION\n")
	b.WriteString("------------\n")
	fmt.Fprintf(&b, "Verification code: %s\n", r.VerificationCode)
	fmt.Fprintf(&b, "Verify online at:  %s\n", verificationURL)

	return []byte(b.String()), nil
}

func writeBreakdown(b *strings.Builder, title string, m map[string]decimal.Decimal) {
	if len(m) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", len(title)))
	b.WriteString("\n")
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(b, "%-24s %s\n", k, m[k].StringFixed(2))
	}
	b.WriteString("\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStrings(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

// Finalizer turns a computed report into its stored artifact and completes
// the report.
type Finalizer struct {
	reports store.Reports
	files   filestore.Store
	gen     ArtifactGenerator
	issuer  *Issuer
}

// NewFinalizer wires a Finalizer.
func NewFinalizer(reports store.Reports, files filestore.Store, gen ArtifactGenerator, issuer *Issuer) *Finalizer {
	return &Finalizer{reports: reports, files: files, gen: gen, issuer: issuer}
}

// Finalize renders the artifact, stores it, records size and content hash
// (computed exactly once, here) and moves the report generating→completed.
// The compare-and-swap at the end means a racing finalizer loses cleanly.
func (f *Finalizer) Finalize(ctx context.Context, userID, reportID string) error {
	log := logger.FromContext(ctx)

	r, err := f.reports.Get(ctx, userID, reportID)
	if err != nil {
		return fmt.Errorf("Finalize: loading report: %w", err)
	}
	if r.Status != domain.ReportStatusGenerating {
		log.Info().
			Str("report_id", reportID).
			Str("status", string(r.Status)).
			Msg("report not in generating state, skipping finalization")
		return nil
	}

	content, err := f.gen.Render(r, f.issuer.VerificationURL(r.VerificationCode))
	if err != nil {
		return f.fail(ctx, r, fmt.Sprintf("could not render artifact: %v", err))
	}

	object := fmt.Sprintf("reports/%s/%s.%s", userID, reportID, f.gen.Extension())
	uri, err := f.files.Save(ctx, object, content)
	if err != nil {
		return f.fail(ctx, r, fmt.Sprintf("could not store artifact: %v", err))
	}

	now := time.Now()
	r.ArtifactURI = uri
	r.FileSize = int64(len(content))
	r.DocumentHash = Hash(content)
	r.CompletedAt = &now
	if err := f.reports.Update(ctx, r); err != nil {
		return f.fail(ctx, r, fmt.Sprintf("could not record artifact: %v", err))
	}

	if _, err := f.reports.CompareAndSwapStatus(ctx, reportID, domain.ReportStatusGenerating, domain.ReportStatusCompleted); err != nil {
		return fmt.Errorf("Finalize: completing report: %w", err)
	}

	log.Info().
		Str("report_id", reportID).
		Str("artifact_uri", uri).
		Int64("file_size", r.FileSize).
		Msg("report finalized")
	return nil
}

func (f *Finalizer) fail(ctx context.Context, r *domain.IncomeReport, reason string) error {
	r.Status = domain.ReportStatusFailed
	r.GenerationError = reason
	log := logger.FromContext(ctx)
	if err := f.reports.Update(ctx, r); err != nil {
		log.Error().
			Err(err).
			Str("report_id", r.ID).
			Msg("could not record report failure")
	}

	log.Error().
		Str("report_id", r.ID).
		Str("reason", reason).
		Msg("report finalization failed")
	return nil
}
