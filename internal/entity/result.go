package entity

import (
	"encoding/json"
	"time"

	"github.com/amara-obi/invoicetrack/constants"
)

// ProcessingResult is the outcome of one successful pipeline run.
// Extracted field values are immutable once written; human validation mutates
// only the validation fields.
type ProcessingResult struct {
	ID         int64     `db:"id" json:"id"`
	DocumentID int64     `db:"document_id" json:"document_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	ModifiedAt time.Time `db:"modified_at" json:"modified_at"`

	InvoiceNumber *string    `db:"invoice_number" json:"invoice_number,omitempty"`
	VendorName    *string    `db:"vendor_name" json:"vendor_name,omitempty"`
	InvoiceDate   *time.Time `db:"invoice_date" json:"invoice_date,omitempty"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	TotalAmount   *float64   `db:"total_amount" json:"total_amount,omitempty"`

	ConfidenceScore float64 `db:"confidence_score" json:"confidence_score"`

	// Per-stage timings in seconds, all non-negative.
	OCRSeconds         float64 `db:"ocr_seconds" json:"ocr_seconds"`
	ExtractionSeconds  float64 `db:"extraction_seconds" json:"extraction_seconds"`
	PersistenceSeconds float64 `db:"persistence_seconds" json:"persistence_seconds"`
	TotalSeconds       float64 `db:"total_seconds" json:"total_seconds"`

	// RawExtraction retains the full extraction payload for audit/debugging.
	RawExtraction json.RawMessage `db:"raw_extraction" json:"raw_extraction,omitempty"`

	Status          constants.ValidationStatus `db:"status" json:"status"`
	ValidationNotes *string                    `db:"validation_notes" json:"validation_notes,omitempty"`
	ValidatedBy     *int64                     `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt     *time.Time                 `db:"validated_at" json:"validated_at,omitempty"`
}
