package report

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kitako/incomeproof/internal/domain"
	"github.com/kitako/incomeproof/internal/store"
)

var (
	// ErrReportNotCompleted is returned when signature submission is
	// attempted before the report artifact exists.
	ErrReportNotCompleted = errors.New("report: report is not completed")
	// ErrSignatureNotPending is returned when a decision is attempted on a
	// report that is not awaiting one.
	ErrSignatureNotPending = errors.New("report: no pending signature submission")
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 12

	tokenBytes = 32

	// maxIssueAttempts bounds the collision retry loops.
	maxIssueAttempts = 10
)

// Issuer hands out verification codes and access tokens, both globally unique
// and immutable once assigned, and runs the signature state machine.
type Issuer struct {
	reports store.Reports
	baseURL string
}

// NewIssuer wires an Issuer to the report store. baseURL is the public
// verification site, e.g. "https://verify.kitako.ph".
func NewIssuer(reports store.Reports, baseURL string) *Issuer {
	return &Issuer{reports: reports, baseURL: strings.TrimRight(baseURL, "/")}
}

// NewVerificationCode generates a 12-character uppercase alphanumeric code,
// retrying until it is unused.
func (i *Issuer) NewVerificationCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", fmt.Errorf("NewVerificationCode: %w", err)
		}
		exists, err := i.reports.VerificationCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("NewVerificationCode: uniqueness probe: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("NewVerificationCode: could not find an unused code after %d attempts", maxIssueAttempts)
}

// NewAccessToken generates a URL-safe download token, retrying until it is
// unused.
func (i *Issuer) NewAccessToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		buf := make([]byte, tokenBytes)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("NewAccessToken: %w", err)
		}
		token := base64.RawURLEncoding.EncodeToString(buf)

		exists, err := i.reports.AccessTokenExists(ctx, token)
		if err != nil {
			return "", fmt.Errorf("NewAccessToken: uniqueness probe: %w", err)
		}
		if !exists {
			return token, nil
		}
	}
	return "", fmt.Errorf("NewAccessToken: could not find an unused token after %d attempts", maxIssueAttempts)
}

// VerificationURL builds the public verification link for a code.
func (i *Issuer) VerificationURL(code string) string {
	return i.baseURL + "/verify/" + code
}

// Hash is the content hash recorded on a finished artifact. It is computed
// exactly once, after the artifact bytes exist, and never recomputed.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// SubmitSignature enters a completed report into the signature verification
// flow. Submitting an already-submitted report is a no-op; submitting a
// report without a finished artifact is a validation error and changes
// nothing.
func (i *Issuer) SubmitSignature(ctx context.Context, userID, reportID string) error {
	r, err := i.reports.Get(ctx, userID, reportID)
	if err != nil {
		return fmt.Errorf("SubmitSignature: loading report: %w", err)
	}

	if r.SignatureSubmitted() {
		return nil
	}
	if r.Status != domain.ReportStatusCompleted || r.ArtifactURI == "" {
		return ErrReportNotCompleted
	}

	now := time.Now()
	r.SignatureStatus = domain.SignaturePending
	r.SignatureSubmittedAt = &now
	if err := i.reports.Update(ctx, r); err != nil {
		return fmt.Errorf("SubmitSignature: persisting submission: %w", err)
	}
	return nil
}

// DecideSignature records an approve or reject decision on a pending
// submission. Decisions are terminal.
func (i *Issuer) DecideSignature(ctx context.Context, reportID string, approve bool, reviewerID, notes string) error {
	r, err := i.reports.GetAny(ctx, reportID)
	if err != nil {
		return fmt.Errorf("DecideSignature: loading report: %w", err)
	}

	if r.SignatureStatus != domain.SignaturePending {
		return ErrSignatureNotPending
	}

	now := time.Now()
	if approve {
		r.SignatureStatus = domain.SignatureApproved
	} else {
		r.SignatureStatus = domain.SignatureRejected
	}
	r.SignatureDecidedAt = &now
	r.SignatureReviewerID = reviewerID
	r.AdminNotes = notes
	if err := i.reports.Update(ctx, r); err != nil {
		return fmt.Errorf("DecideSignature: persisting decision: %w", err)
	}
	return nil
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, codeLength)
	for i, b := range buf {
		out[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(out), nil
}
