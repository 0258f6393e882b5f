package entity

import (
	"time"

	"github.com/amara-obi/invoicetrack/constants"
)

// QueueItem represents one scheduled attempt to run the pipeline against a
// document. A document accumulates one item per attempt; the most recently
// created item is the authoritative in-flight or last-completed attempt.
type QueueItem struct {
	ID           int64                 `db:"id" json:"id"`
	DocumentID   int64                 `db:"document_id" json:"document_id"`
	Status       constants.QueueStatus `db:"status" json:"status"`
	Priority     int                   `db:"priority" json:"priority"`
	CreatedAt    time.Time             `db:"created_at" json:"created_at"`
	ModifiedAt   time.Time             `db:"modified_at" json:"modified_at"`
	ProcessStart *time.Time            `db:"process_start" json:"process_start,omitempty"`
	ProcessEnd   *time.Time            `db:"process_end" json:"process_end,omitempty"`
	ErrorMessage *string               `db:"error_message" json:"error_message,omitempty"`
}
