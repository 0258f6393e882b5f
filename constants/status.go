package constants

// DocumentStatus is the canonical status for rows in documents.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	DocumentPending    DocumentStatus = "pending"    // uploaded, waiting for a run
	DocumentProcessing DocumentStatus = "processing" // a run is in flight
	DocumentProcessed  DocumentStatus = "processed"  // terminal success
	DocumentFailed     DocumentStatus = "failed"     // terminal failure
)

// QueueStatus is the canonical status for rows in queue_items.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed" // terminal success
	QueueFailed     QueueStatus = "failed"    // terminal failure
)

// ValidationStatus is the canonical status for rows in processing_results.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending_validation"
	ValidationValidated ValidationStatus = "validated"
	ValidationRejected  ValidationStatus = "rejected"
)

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentPending:    {DocumentProcessing},
	DocumentProcessing: {DocumentProcessed, DocumentFailed},
}

var queueTransitions = map[QueueStatus][]QueueStatus{
	QueuePending:    {QueueProcessing},
	QueueProcessing: {QueueCompleted, QueueFailed},
}

// CanTransitionDocument reports whether from -> to is a legal document status
// transition. A reprocess reset back to pending is not a transition; it goes
// through the repository reset path instead.
func CanTransitionDocument(from, to DocumentStatus) bool {
	for _, next := range documentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanTransitionQueue reports whether from -> to is a legal queue item status transition.
func CanTransitionQueue(from, to QueueStatus) bool {
	for _, next := range queueTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further automatic transition can occur.
func (s DocumentStatus) Terminal() bool {
	return s == DocumentProcessed || s == DocumentFailed
}

func (s QueueStatus) Terminal() bool {
	return s == QueueCompleted || s == QueueFailed
}

// ValidDocumentStatus reports whether s is one of the closed document statuses.
func ValidDocumentStatus(s string) bool {
	switch DocumentStatus(s) {
	case DocumentPending, DocumentProcessing, DocumentProcessed, DocumentFailed:
		return true
	}
	return false
}

// ValidValidationStatus reports whether s is one of the closed validation statuses.
func ValidValidationStatus(s string) bool {
	switch ValidationStatus(s) {
	case ValidationPending, ValidationValidated, ValidationRejected:
		return true
	}
	return false
}
