package entity

import (
	"time"

	"github.com/amara-obi/invoicetrack/constants"
)

// Document represents an uploaded file for data transfer between layers.
type Document struct {
	ID          int64                    `db:"id" json:"id"`
	Filename    string                   `db:"filename" json:"filename"`
	ContentType string                   `db:"content_type" json:"content_type"`
	FilePath    string                   `db:"file_path" json:"file_path"`
	FileSize    int64                    `db:"file_size" json:"file_size"`
	UploadedBy  *int64                   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	Status      constants.DocumentStatus `db:"status" json:"status"`
	UploadedAt  time.Time                `db:"uploaded_at" json:"uploaded_at"`
	ModifiedAt  time.Time                `db:"modified_at" json:"modified_at"`
}
