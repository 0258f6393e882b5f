package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/entity"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	return db
}

func createDoc(t *testing.T, docs DocumentRepository) *entity.Document {
	t.Helper()
	doc, err := docs.Create(context.Background(), &entity.Document{
		Filename:    "invoice.pdf",
		ContentType: "application/pdf",
		FilePath:    "abc.pdf",
		FileSize:    1024,
	})
	require.NoError(t, err)
	return doc
}

func TestDocumentLifecycle(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)
	assert.Greater(t, doc.ID, int64(0))
	assert.Equal(t, constants.DocumentPending, doc.Status)

	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, constants.DocumentProcessing))
	require.NoError(t, docs.UpdateStatus(ctx, doc.ID, constants.DocumentProcessed))

	got, err := docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentProcessed, got.Status)

	// terminal states only move via ResetToPending
	err = docs.UpdateStatus(ctx, doc.ID, constants.DocumentProcessing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))

	require.NoError(t, docs.ResetToPending(ctx, doc.ID))
	got, err = docs.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentPending, got.Status)
}

func TestDocumentNotFound(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)

	_, err := docs.GetByID(context.Background(), 12345)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestQueueIDsStrictlyIncrease(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)

	var last int64
	for i := 0; i < 5; i++ {
		item, err := queue.Create(ctx, doc.ID, 1)
		require.NoError(t, err)
		assert.Greater(t, item.ID, last)
		last = item.ID
	}
}

func TestQueueClaimIsCompareAndSwap(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)
	item, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)

	claimed, err := queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// second claim loses
	claimed, err = queue.Claim(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := queue.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.QueueProcessing, got.Status)
	assert.NotNil(t, got.ProcessStart)
	assert.Nil(t, got.ProcessEnd)
}

func TestQueueFailureKeepsProcessEndEmpty(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)
	item, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)

	_, err = queue.Claim(ctx, item.ID)
	require.NoError(t, err)

	msg := "file path does not exist: gone.pdf"
	require.NoError(t, queue.UpdateStatus(ctx, item.ID, constants.QueueFailed, &msg))

	got, err := queue.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.QueueFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
	assert.Nil(t, got.ProcessEnd)

	// terminal items reject further transitions
	err = queue.UpdateStatus(ctx, item.ID, constants.QueueCompleted, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestNextPendingOrdering(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)

	low, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	highOld, err := queue.Create(ctx, doc.ID, 5)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	highNew, err := queue.Create(ctx, doc.ID, 5)
	require.NoError(t, err)

	items, err := queue.NextPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, highOld.ID, items[0].ID)
	assert.Equal(t, highNew.ID, items[1].ID)
	assert.Equal(t, low.ID, items[2].ID)

	// claimed items drop out of the pending sweep
	_, err = queue.Claim(ctx, highOld.ID)
	require.NoError(t, err)
	items, err = queue.NextPending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestGetLatestForDocument(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)

	first, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)

	latest, err := queue.GetLatestForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	history, err := queue.ListByDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)
}

func TestResultCreateAndValidate(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	results := NewResultRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)

	num := "INV-2024-07"
	total := 1234.56
	due := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	created, err := results.Create(ctx, &entity.ProcessingResult{
		DocumentID:      doc.ID,
		InvoiceNumber:   &num,
		TotalAmount:     &total,
		DueDate:         &due,
		ConfidenceScore: 0.8,
		RawExtraction:   []byte(`{"fields":{}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.ValidationPending, created.Status)

	got, err := results.GetLatestForDocument(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvoiceNumber)
	assert.Equal(t, num, *got.InvoiceNumber)
	require.NotNil(t, got.TotalAmount)
	assert.Equal(t, total, *got.TotalAmount)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))

	// only validated/rejected are accepted
	_, err = results.Validate(ctx, got.ID, constants.ValidationPending, nil, nil)
	require.Error(t, err)

	by := int64(42)
	notes := "checked against the paper copy"
	validated, err := results.Validate(ctx, got.ID, constants.ValidationValidated, &by, &notes)
	require.NoError(t, err)
	assert.Equal(t, constants.ValidationValidated, validated.Status)
	require.NotNil(t, validated.ValidatedBy)
	assert.Equal(t, by, *validated.ValidatedBy)
	assert.NotNil(t, validated.ValidatedAt)
	// extracted values stay untouched
	require.NotNil(t, validated.InvoiceNumber)
	assert.Equal(t, num, *validated.InvoiceNumber)
}

func TestListByDocumentScopesPagination(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	results := NewResultRepository(db, nil)
	ctx := context.Background()

	mine := createDoc(t, docs)
	other := createDoc(t, docs)
	for i := 0; i < 3; i++ {
		_, err := results.Create(ctx, &entity.ProcessingResult{DocumentID: other.ID})
		require.NoError(t, err)
		_, err = results.Create(ctx, &entity.ProcessingResult{DocumentID: mine.ID})
		require.NoError(t, err)
	}

	// limit and offset count only this document's rows
	page, err := results.ListByDocument(ctx, mine.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	for _, res := range page {
		assert.Equal(t, mine.ID, res.DocumentID)
	}

	rest, err := results.ListByDocument(ctx, mine.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, mine.ID, rest[0].DocumentID)
}

func TestResultUpdateTimings(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	results := NewResultRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)
	created, err := results.Create(ctx, &entity.ProcessingResult{
		DocumentID: doc.ID,
		OCRSeconds: 1.5,
	})
	require.NoError(t, err)

	require.NoError(t, results.UpdateTimings(ctx, created.ID, 0.25, 2.0))

	got, err := results.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.25, got.PersistenceSeconds)
	assert.Equal(t, 2.0, got.TotalSeconds)
	assert.Equal(t, 1.5, got.OCRSeconds)
}

func TestResultAverages(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	results := NewResultRepository(db, nil)
	ctx := context.Background()

	// empty table averages to zero, not an error
	avg, err := results.AvgConfidence(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	doc := createDoc(t, docs)
	for _, score := range []float64{0.2, 0.6} {
		_, err := results.Create(ctx, &entity.ProcessingResult{
			DocumentID:      doc.ID,
			ConfidenceScore: score,
			TotalSeconds:    2,
		})
		require.NoError(t, err)
	}

	avg, err = results.AvgConfidence(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, avg, 1e-9)

	avgTime, err := results.AvgProcessingTime(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, avgTime, 1e-9)
}

func TestDocumentDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	docs := NewDocumentRepository(db, nil)
	queue := NewQueueRepository(db, nil)
	results := NewResultRepository(db, nil)
	ctx := context.Background()

	doc := createDoc(t, docs)
	_, err := queue.Create(ctx, doc.ID, 1)
	require.NoError(t, err)
	_, err = results.Create(ctx, &entity.ProcessingResult{DocumentID: doc.ID})
	require.NoError(t, err)

	require.NoError(t, docs.Delete(ctx, doc.ID))

	_, err = docs.GetByID(ctx, doc.ID)
	assert.True(t, errors.Is(err, common.ErrNotFound))
	n, err := queue.CountByStatus(ctx, constants.QueuePending)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = results.CountForDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
