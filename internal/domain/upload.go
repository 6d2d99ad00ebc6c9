package domain

import (
	"time"
)

// FileKind is the declared kind of an uploaded document.
type FileKind string

const (
	FileKindBankStatement    FileKind = "bank_statement"
	FileKindEwalletStatement FileKind = "ewallet_statement"
	FileKindReceipt          FileKind = "receipt"
	FileKindInvoice          FileKind = "invoice"
	FileKindPayslip          FileKind = "payslip"
	FileKindOther            FileKind = "other"
)

// SourcePlatform is the declared origin of an uploaded document.
type SourcePlatform string

const (
	SourceGCash        SourcePlatform = "gcash"
	SourcePayMaya      SourcePlatform = "paymaya"
	SourceGrabPay      SourcePlatform = "grabpay"
	SourceCoinsPH      SourcePlatform = "coins_ph"
	SourceBPI          SourcePlatform = "bpi"
	SourceBDO          SourcePlatform = "bdo"
	SourceMetrobank    SourcePlatform = "metrobank"
	SourceUnionBank    SourcePlatform = "unionbank"
	SourceSecurityBank SourcePlatform = "security_bank"
	SourcePNB          SourcePlatform = "pnb"
	SourceLandbank     SourcePlatform = "landbank"
	SourceOtherBank    SourcePlatform = "other_bank"
	SourceOtherEwallet SourcePlatform = "other_ewallet"
	SourceManualEntry  SourcePlatform = "manual_entry"
	SourceOther        SourcePlatform = "other"
)

// UploadStatus is the processing state of an Upload.
//
// The status field doubles as the single-writer gate for the ingestion
// pipeline: the only transition out of "uploaded" is a compare-and-swap to
// "processing", so a second processor racing on the same upload observes a
// failed swap and backs off.
type UploadStatus string

const (
	// UploadStatusUploaded is the initial state after ingestion.
	UploadStatusUploaded UploadStatus = "uploaded"
	// UploadStatusProcessing means a pipeline run holds the upload.
	UploadStatusProcessing UploadStatus = "processing"
	// UploadStatusAwaitingReview means transactions were materialized and
	// wait for the owner's accept/reject pass.
	UploadStatusAwaitingReview UploadStatus = "awaiting_review"
	// UploadStatusProcessed means the review pass finished.
	UploadStatusProcessed UploadStatus = "processed"
	// UploadStatusFailed is terminal; Error holds the reason.
	UploadStatusFailed UploadStatus = "failed"
)

// Upload is one ingested financial document and its processing state.
type Upload struct {
	ID     string
	UserID string

	// StorageURI points at the raw bytes in the binary file store.
	StorageURI       string
	OriginalFilename string
	FileSize         int64
	FileKind         FileKind
	Source           SourcePlatform

	Status UploadStatus
	Error  string

	// SampleData marks degraded-mode extraction: no transaction pattern
	// matched the document text and synthetic sample rows were substituted.
	SampleData bool
	// SkippedRows counts input rows dropped for missing date or amount.
	SkippedRows int

	DateRangeStart *time.Time
	DateRangeEnd   *time.Time
	Description    string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
}
