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

// DocumentRepository persists documents. Status changes go through the
// transition-validated UpdateStatus; ResetToPending is the reprocess escape
// hatch and is legal from any state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *entity.Document) (*entity.Document, error)
	GetByID(ctx context.Context, id int64) (*entity.Document, error)
	List(ctx context.Context, limit, offset int) ([]entity.Document, error)
	Recent(ctx context.Context, limit int) ([]entity.Document, error)
	UpdateStatus(ctx context.Context, id int64, status constants.DocumentStatus) error
	ResetToPending(ctx context.Context, id int64) error
	UpdatePathAndSize(ctx context.Context, id int64, path string, size int64) error
	UpdateFilename(ctx context.Context, id int64, filename string) error
	Delete(ctx context.Context, id int64) error
	CountByStatus(ctx context.Context, status constants.DocumentStatus) (int64, error)
}

type documentRepo struct {
	db  *DB
	log *slog.Logger
}

func NewDocumentRepository(db *DB, log *slog.Logger) DocumentRepository {
	if log == nil {
		log = slog.Default()
	}
	return &documentRepo{db: db, log: log}
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) (*entity.Document, error) {
	now := time.Now().UTC()
	doc.UploadedAt = now
	doc.ModifiedAt = now
	if doc.Status == "" {
		doc.Status = constants.DocumentPending
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO documents (filename, content_type, file_path, file_size, uploaded_by, status, uploaded_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		doc.Filename, doc.ContentType, doc.FilePath, doc.FileSize, doc.UploadedBy, doc.Status, doc.UploadedAt, doc.ModifiedAt,
	).Scan(&doc.ID)
	if err != nil {
		r.log.Error("document create failed", "filename", doc.Filename, "err", err)
		return nil, common.WrapError(err, "create document")
	}
	r.log.Info("document created", "document_id", doc.ID, "filename", doc.Filename)
	return doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id int64) (*entity.Document, error) {
	var doc entity.Document
	err := r.db.GetContext(ctx, &doc, `SELECT * FROM documents WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("document %d not found", id)
	}
	if err != nil {
		return nil, common.WrapError(err, "get document")
	}
	return &doc, nil
}

func (r *documentRepo) List(ctx context.Context, limit, offset int) ([]entity.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	var docs []entity.Document
	err := r.db.SelectContext(ctx, &docs, `
		SELECT * FROM documents ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return docs, common.WrapError(err, "list documents")
}

func (r *documentRepo) Recent(ctx context.Context, limit int) ([]entity.Document, error) {
	return r.List(ctx, limit, 0)
}

// UpdateStatus applies a validated status transition. The update is guarded
// on the observed current status so two racing transitions cannot both win.
func (r *documentRepo) UpdateStatus(ctx context.Context, id int64, status constants.DocumentStatus) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !constants.CanTransitionDocument(cur.Status, status) {
		return common.NewAppError("INVALID_TRANSITION",
			"document "+cur.Filename+": cannot transition "+string(cur.Status)+" -> "+string(status),
			common.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = $1, modified_at = $2 WHERE id = $3 AND status = $4`,
		status, time.Now().UTC(), id, cur.Status)
	if err != nil {
		r.log.Error("document status update failed", "document_id", id, "status", status, "err", err)
		return common.WrapError(err, "update document status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("TRANSITION_RACE",
			"document status changed concurrently", common.ErrConflict)
	}
	r.log.Info("document status updated", "document_id", id, "status", status)
	return nil
}

// ResetToPending forces a document back to pending regardless of its current
// state. Only the reprocess path calls this.
func (r *documentRepo) ResetToPending(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE documents SET status = $1, modified_at = $2 WHERE id = $3`,
		constants.DocumentPending, time.Now().UTC(), id)
	if err != nil {
		return common.WrapError(err, "reset document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("document %d not found", id)
	}
	r.log.Info("document reset to pending", "document_id", id)
	return nil
}

func (r *documentRepo) UpdatePathAndSize(ctx context.Context, id int64, path string, size int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET file_path = $1, file_size = $2, modified_at = $3 WHERE id = $4`,
		path, size, time.Now().UTC(), id)
	return common.WrapError(err, "update document path")
}

func (r *documentRepo) UpdateFilename(ctx context.Context, id int64, filename string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE documents SET filename = $1, modified_at = $2 WHERE id = $3`,
		filename, time.Now().UTC(), id)
	return common.WrapError(err, "update document filename")
}

func (r *documentRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_results WHERE document_id = $1`, id)
	if err != nil {
		return common.WrapError(err, "delete document results")
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM queue_items WHERE document_id = $1`, id)
	if err != nil {
		return common.WrapError(err, "delete document queue items")
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return common.WrapError(err, "delete document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NotFoundf("document %d not found", id)
	}
	r.log.Info("document deleted", "document_id", id)
	return nil
}

func (r *documentRepo) CountByStatus(ctx context.Context, status constants.DocumentStatus) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE status = $1`, status)
	return n, common.WrapError(err, "count documents")
}
