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

// QueueRepository persists queue items, one per processing attempt.
// Historical items are never mutated once terminal; a reprocess creates a new
// row instead.
type QueueRepository interface {
	Create(ctx context.Context, documentID int64, priority int) (*entity.QueueItem, error)
	GetByID(ctx context.Context, id int64) (*entity.QueueItem, error)
	List(ctx context.Context, limit, offset int) ([]entity.QueueItem, error)
	ListByDocument(ctx context.Context, documentID int64) ([]entity.QueueItem, error)
	GetLatestForDocument(ctx context.Context, documentID int64) (*entity.QueueItem, error)

	// Claim atomically moves a pending item to processing and stamps the
	// process start time. Returns false when the item was not pending, which
	// is how a run that lost the dispatch race finds out.
	Claim(ctx context.Context, id int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status constants.QueueStatus, errorMessage *string) error
	SetProcessEnd(ctx context.Context, id int64) error

	// NextPending returns claimable items in advisory dispatch order:
	// priority descending, then earliest created. minAge skips items the
	// direct dispatch path is probably still holding in memory.
	NextPending(ctx context.Context, limit int, minAge time.Duration) ([]entity.QueueItem, error)
	CountByStatus(ctx context.Context, status constants.QueueStatus) (int64, error)
}

type queueRepo struct {
	db  *DB
	log *slog.Logger
}

func NewQueueRepository(db *DB, log *slog.Logger) QueueRepository {
	if log == nil {
		log = slog.Default()
	}
	return &queueRepo{db: db, log: log}
}

func (r *queueRepo) Create(ctx context.Context, documentID int64, priority int) (*entity.QueueItem, error) {
	if priority <= 0 {
		priority = 1
	}
	now := time.Now().UTC()
	item := &entity.QueueItem{
		DocumentID: documentID,
		Status:     constants.QueuePending,
		Priority:   priority,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO queue_items (document_id, status, priority, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		item.DocumentID, item.Status, item.Priority, item.CreatedAt, item.ModifiedAt,
	).Scan(&item.ID)
	if err != nil {
		r.log.Error("queue item create failed", "document_id", documentID, "err", err)
		return nil, common.WrapError(err, "create queue item")
	}
	r.log.Info("queue item created", "queue_id", item.ID, "document_id", documentID, "priority", priority)
	return item, nil
}

func (r *queueRepo) GetByID(ctx context.Context, id int64) (*entity.QueueItem, error) {
	var item entity.QueueItem
	err := r.db.GetContext(ctx, &item, `SELECT * FROM queue_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("queue item %d not found", id)
	}
	if err != nil {
		return nil, common.WrapError(err, "get queue item")
	}
	return &item, nil
}

func (r *queueRepo) List(ctx context.Context, limit, offset int) ([]entity.QueueItem, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []entity.QueueItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM queue_items ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	return items, common.WrapError(err, "list queue items")
}

func (r *queueRepo) ListByDocument(ctx context.Context, documentID int64) ([]entity.QueueItem, error) {
	var items []entity.QueueItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM queue_items WHERE document_id = $1 ORDER BY created_at DESC, id DESC`, documentID)
	return items, common.WrapError(err, "list queue items for document")
}

func (r *queueRepo) GetLatestForDocument(ctx context.Context, documentID int64) (*entity.QueueItem, error) {
	var item entity.QueueItem
	err := r.db.GetContext(ctx, &item, `
		SELECT * FROM queue_items WHERE document_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, documentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFoundf("no queue items for document %d", documentID)
	}
	if err != nil {
		return nil, common.WrapError(err, "get latest queue item")
	}
	return &item, nil
}

func (r *queueRepo) Claim(ctx context.Context, id int64) (bool, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $1, process_start = $2, modified_at = $3
		WHERE id = $4 AND status = $5`,
		constants.QueueProcessing, now, now, id, constants.QueuePending)
	if err != nil {
		return false, common.WrapError(err, "claim queue item")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		r.log.Warn("queue item claim lost", "queue_id", id)
		return false, nil
	}
	r.log.Info("queue item claimed", "queue_id", id)
	return true, nil
}

func (r *queueRepo) UpdateStatus(ctx context.Context, id int64, status constants.QueueStatus, errorMessage *string) error {
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !constants.CanTransitionQueue(cur.Status, status) {
		return common.NewAppError("INVALID_TRANSITION",
			"queue item: cannot transition "+string(cur.Status)+" -> "+string(status),
			common.ErrInvalidInput)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $1, error_message = COALESCE($2, error_message), modified_at = $3
		WHERE id = $4 AND status = $5`,
		status, errorMessage, time.Now().UTC(), id, cur.Status)
	if err != nil {
		r.log.Error("queue status update failed", "queue_id", id, "status", status, "err", err)
		return common.WrapError(err, "update queue status")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.NewAppError("TRANSITION_RACE",
			"queue item status changed concurrently", common.ErrConflict)
	}
	if status == constants.QueueFailed && errorMessage != nil {
		r.log.Warn("queue item failed", "queue_id", id, "error", *errorMessage)
	} else {
		r.log.Info("queue status updated", "queue_id", id, "status", status)
	}
	return nil
}

func (r *queueRepo) SetProcessEnd(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE queue_items SET process_end = $1, modified_at = $2 WHERE id = $3`, now, now, id)
	return common.WrapError(err, "set process end")
}

func (r *queueRepo) NextPending(ctx context.Context, limit int, minAge time.Duration) ([]entity.QueueItem, error) {
	if limit <= 0 {
		limit = 10
	}
	cutoff := time.Now().UTC().Add(-minAge)
	var items []entity.QueueItem
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM queue_items
		WHERE status = $1 AND created_at <= $2
		ORDER BY priority DESC, created_at ASC, id ASC
		LIMIT $3`,
		constants.QueuePending, cutoff, limit)
	return items, common.WrapError(err, "next pending queue items")
}

func (r *queueRepo) CountByStatus(ctx context.Context, status constants.QueueStatus) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM queue_items WHERE status = $1`, status)
	return n, common.WrapError(err, "count queue items")
}
