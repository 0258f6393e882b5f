package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amara-obi/invoicetrack/constants"
	"github.com/amara-obi/invoicetrack/internal/common"
	"github.com/amara-obi/invoicetrack/internal/entity"
)

type countingProcessor struct {
	mu   sync.Mutex
	jobs []Job
}

func (c *countingProcessor) Run(_ context.Context, documentID, queueID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, Job{DocumentID: documentID, QueueID: queueID})
}

func (c *countingProcessor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func TestProcessorQueueRunsJobs(t *testing.T) {
	proc := &countingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(2), WithQueueSize(8))

	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		require.NoError(t, q.Enqueue(ctx, Job{DocumentID: i, QueueID: i * 10}))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	q.Shutdown(shutdownCtx)

	assert.Equal(t, 5, proc.count())
}

func TestProcessorQueueEnqueueAfterShutdown(t *testing.T) {
	proc := &countingProcessor{}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))

	ctx := context.Background()
	q.Shutdown(ctx)

	// dropped, not a panic on a closed channel
	require.NoError(t, q.Enqueue(ctx, Job{DocumentID: 1, QueueID: 1}))
	assert.Equal(t, 0, proc.count())
}

func TestProcessorQueueShutdownIdempotent(t *testing.T) {
	q := NewProcessorQueue(&countingProcessor{}, nil, WithWorkers(1))
	ctx := context.Background()
	q.Shutdown(ctx)
	q.Shutdown(ctx)
}

type stubDocs struct {
	docs   map[int64]*entity.Document
	resets []int64
}

func (s *stubDocs) Create(_ context.Context, d *entity.Document) (*entity.Document, error) {
	s.docs[d.ID] = d
	return d, nil
}
func (s *stubDocs) GetByID(_ context.Context, id int64) (*entity.Document, error) {
	d, ok := s.docs[id]
	if !ok {
		return nil, common.NotFoundf("document %d not found", id)
	}
	return d, nil
}
func (s *stubDocs) List(context.Context, int, int) ([]entity.Document, error) { return nil, nil }
func (s *stubDocs) Recent(context.Context, int) ([]entity.Document, error)    { return nil, nil }
func (s *stubDocs) UpdateStatus(context.Context, int64, constants.DocumentStatus) error {
	return nil
}
func (s *stubDocs) ResetToPending(_ context.Context, id int64) error {
	s.resets = append(s.resets, id)
	s.docs[id].Status = constants.DocumentPending
	return nil
}
func (s *stubDocs) UpdatePathAndSize(context.Context, int64, string, int64) error { return nil }
func (s *stubDocs) UpdateFilename(context.Context, int64, string) error           { return nil }
func (s *stubDocs) Delete(context.Context, int64) error                           { return nil }
func (s *stubDocs) CountByStatus(context.Context, constants.DocumentStatus) (int64, error) {
	return 0, nil
}

type stubQueue struct {
	items  map[int64]*entity.QueueItem
	nextID int64
}

func (s *stubQueue) Create(_ context.Context, documentID int64, priority int) (*entity.QueueItem, error) {
	s.nextID++
	item := &entity.QueueItem{
		ID:         s.nextID,
		DocumentID: documentID,
		Status:     constants.QueuePending,
		Priority:   priority,
		CreatedAt:  time.Now().UTC(),
	}
	s.items[item.ID] = item
	return item, nil
}
func (s *stubQueue) GetByID(_ context.Context, id int64) (*entity.QueueItem, error) {
	return s.items[id], nil
}
func (s *stubQueue) List(context.Context, int, int) ([]entity.QueueItem, error)        { return nil, nil }
func (s *stubQueue) ListByDocument(context.Context, int64) ([]entity.QueueItem, error) { return nil, nil }
func (s *stubQueue) GetLatestForDocument(context.Context, int64) (*entity.QueueItem, error) {
	return nil, nil
}
func (s *stubQueue) Claim(context.Context, int64) (bool, error) { return true, nil }
func (s *stubQueue) UpdateStatus(context.Context, int64, constants.QueueStatus, *string) error {
	return nil
}
func (s *stubQueue) SetProcessEnd(context.Context, int64) error { return nil }
func (s *stubQueue) NextPending(context.Context, int, time.Duration) ([]entity.QueueItem, error) {
	var out []entity.QueueItem
	for _, item := range s.items {
		if item.Status == constants.QueuePending {
			out = append(out, *item)
		}
	}
	return out, nil
}
func (s *stubQueue) CountByStatus(context.Context, constants.QueueStatus) (int64, error) {
	return 0, nil
}

func TestServiceEnqueueDocument(t *testing.T) {
	proc := &countingProcessor{}
	pool := NewProcessorQueue(proc, nil, WithWorkers(1))
	docs := &stubDocs{docs: map[int64]*entity.Document{
		7: {ID: 7, Status: constants.DocumentPending},
	}}
	queue := &stubQueue{items: map[int64]*entity.QueueItem{}}
	svc := NewService(nil, docs, queue, pool)

	ctx := context.Background()
	item, err := svc.EnqueueDocument(ctx, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.DocumentID)
	assert.Equal(t, 3, item.Priority)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool.Shutdown(shutdownCtx)
	assert.Equal(t, 1, proc.count())
}

func TestServiceEnqueueUnknownDocument(t *testing.T) {
	pool := NewProcessorQueue(&countingProcessor{}, nil, WithWorkers(1))
	defer pool.Shutdown(context.Background())
	docs := &stubDocs{docs: map[int64]*entity.Document{}}
	queue := &stubQueue{items: map[int64]*entity.QueueItem{}}
	svc := NewService(nil, docs, queue, pool)

	_, err := svc.EnqueueDocument(context.Background(), 404, 1)
	assert.Error(t, err)
	assert.Empty(t, queue.items)
}

func TestServiceReprocessCreatesNewItem(t *testing.T) {
	proc := &countingProcessor{}
	pool := NewProcessorQueue(proc, nil, WithWorkers(1))
	docs := &stubDocs{docs: map[int64]*entity.Document{
		7: {ID: 7, Status: constants.DocumentFailed},
	}}
	queue := &stubQueue{items: map[int64]*entity.QueueItem{}}
	// a finished earlier attempt that must stay untouched
	old := &entity.QueueItem{ID: 99, DocumentID: 7, Status: constants.QueueFailed}
	queue.items[old.ID] = old
	queue.nextID = 99

	svc := NewService(nil, docs, queue, pool)

	item, err := svc.Reprocess(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.NotEqual(t, old.ID, item.ID)
	assert.Greater(t, item.ID, old.ID)
	assert.Equal(t, constants.QueuePending, item.Status)

	assert.Equal(t, []int64{7}, docs.resets)
	assert.Equal(t, constants.QueueFailed, queue.items[old.ID].Status)
	assert.Equal(t, constants.DocumentPending, docs.docs[7].Status)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool.Shutdown(shutdownCtx)
	assert.Equal(t, 1, proc.count())
}
