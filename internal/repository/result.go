package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/entity"
)

// ResultRepository persists processing results. The pipeline is the only
// writer of extracted values (append-only, one row per successful run);
// Validate mutates the validation fields and nothing else.
type ResultRepository interface {
	Create(ctx context.Context, result *entity.ProcessingResult) (*entity.ProcessingResult, error)
	GetByID(ctx context.Context, id int64) (*entity.ProcessingResult, error)
	GetLatestForDocument(ctx context.Context, documentID int64) (*entity.ProcessingResult, error)
	List(ctx context.Context, limit, offset int) ([]entity.ProcessingResult, error)
	ListByDocument(ctx context.Context, documentID int64, limit, offset int) ([]entity.ProcessingResult, error)
	CountForDocument(ctx context.Context, documentID int64) (int64, error)
	UpdateTimings(ctx context.Context, id int64, persistenceSeconds, totalSeconds float64) error
	Validate(ctx context.Context, id int64, status constants.ValidationStatus, validatedBy *int64, notes *string) (*entity.ProcessingResult, error)
	AvgConfidence(ctx context.Context) (float64, error)
	AvgProcessingTime(ctx context.Context) (float64, error)
}

type resultRepo struct {
	db  *DB
	log *slog.Logger
}

func NewResultRepository(db *DB, log *slog.Logger) ResultRepository {
	if log == nil {
		log = slog.Default()
	}
	return &resultRepo{db: db, log: log}
}

func (r *resultRepo) Create(ctx context.Context, result *entity.ProcessingResult) (*entity.ProcessingResult, error) {
	now := time.Now().UTC()
	result.CreatedAt = now
	result.ModifiedAt = now
	if result.Status == "" {
		result.Status = constants.ValidationPending
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO processing_results (
			document_id, created_at, modified_at,
			invoice_number, vendor_name, invoice_date, due_date, total_amount,
			confidence_score, ocr_seconds, extraction_seconds, persistence_seconds, total_seconds,
			raw_extraction, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id`,
		result.DocumentID, result.CreatedAt, result.ModifiedAt,
		result.InvoiceNumber, result.VendorName, result.InvoiceDate, result.DueDate, result.TotalAmount,
		result.ConfidenceScore, result.OCRSeconds, result.ExtractionSeconds, result.PersistenceSeconds, result.TotalSeconds,
		[]byte(result.RawExtraction), result.Status,
	).Scan(&result.ID)
	if err != nil {
		r.log.Error("result create failed", "document_id", result.DocumentID, "err", err)
		return nil, common.WrapError(err, "create result")
	}
	r.log.Info("result created", "result_id", result.ID, "document_id", result.DocumentID,
		"confidence", result.ConfidenceScore)
	return result, nil
}

func (r *resultRepo) GetByID(ctx context.Context, id int64) (*entity.ProcessingResult, error) {
	var res entity.ProcessingResult
	err := r.db.GetContext(ctx, &res, `SELECT * FROM processing_results WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("result %d not found", id)
	}
	if err != nil {
		return nil, common.WrapError(err, "get result")
	}
	return &res, nil
}

func (r *resultRepo) GetLatestForDocument(ctx context.Context, documentID int64) (*entity.ProcessingResult, error) {
	var res entity.ProcessingResult
	err := r.db.GetContext(ctx, &res, `
		SELECT * FROM processing_results
		WHERE document_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("no result for document %d", documentID)
	}
	if err != nil {
		return nil, common.WrapError(err, "get latest result")
	}
	return &res, nil
}

func (r *resultRepo) List(ctx context.Context, limit, offset int) ([]entity.ProcessingResult, error) {
	if limit <= 0 {
		limit = 100
	}
	var results []entity.ProcessingResult
	err := r.db.SelectContext(ctx, &results, `
		SELECT * FROM processing_results ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return results, common.WrapError(err, "list results")
}

func (r *resultRepo) ListByDocument(ctx context.Context, documentID int64, limit, offset int) ([]entity.ProcessingResult, error) {
	if limit <= 0 {
		limit = 100
	}
	var results []entity.ProcessingResult
	err := r.db.SelectContext(ctx, &results, `
		SELECT * FROM processing_results
		WHERE document_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		documentID, limit, offset)
	return results, common.WrapError(err, "list results for document")
}

// UpdateTimings completes the timing columns after the insert. A row cannot
// carry the duration of its own write, so the pipeline measures Create and
// records it here.
func (r *resultRepo) UpdateTimings(ctx context.Context, id int64, persistenceSeconds, totalSeconds float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processing_results
		SET persistence_seconds = $1, total_seconds = $2, modified_at = $3
		WHERE id = $4`,
		persistenceSeconds, totalSeconds, time.Now().UTC(), id)
	return common.WrapError(err, "update result timings")
}

func (r *resultRepo) CountForDocument(ctx context.Context, documentID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM processing_results WHERE document_id = $1`, documentID)
	return n, common.WrapError(err, "count results")
}

func (r *resultRepo) Validate(ctx context.Context, id int64, status constants.ValidationStatus, validatedBy *int64, notes *string) (*entity.ProcessingResult, error) {
	if status != constants.ValidationValidated && status != constants.ValidationRejected {
		return nil, common.InvalidInputf("validation status must be %q or %q",
			constants.ValidationValidated, constants.ValidationRejected)
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE processing_results
		SET status = $1, validated_by = $2, validated_at = $3, validation_notes = $4, modified_at = $5
		WHERE id = $6`,
		status, validatedBy, now, notes, now, id)
	if err != nil {
		return nil, common.WrapError(err, "validate result")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, common.NotFoundf("result %d not found", id)
	}
	r.log.Info("result validated", "result_id", id, "status", status)
	return r.GetByID(ctx, id)
}

func (r *resultRepo) AvgConfidence(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.GetContext(ctx, &avg, `SELECT AVG(confidence_score) FROM processing_results`)
	if err != nil {
		return 0, common.WrapError(err, "avg confidence")
	}
	return avg.Float64, nil
}

func (r *resultRepo) AvgProcessingTime(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.GetContext(ctx, &avg, `SELECT AVG(total_seconds) FROM processing_results`)
	if err != nil {
		return 0, common.WrapError(err, "avg processing time")
	}
	return avg.Float64, nil
}
