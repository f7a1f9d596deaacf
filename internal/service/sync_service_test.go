package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pscprep/examengine/internal/api"
	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/repository"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncFixture() (SyncService, repository.PendingOperationRepository, *fakeAPI) {
	repo := repository.NewPendingOperationRepository(storage.NewMemory(), func() time.Time {
		return time.UnixMilli(1_700_000_000_000)
	})
	fake := newFakeAPI()
	return NewSyncService(repo, fake), repo, fake
}

func TestFlushDrainsInOrder(t *testing.T) {
	svc, repo, fake := newSyncFixture()

	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Method: "POST", Endpoint: "/api/first/"})
	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Method: "POST", Endpoint: "/api/second/"})
	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Method: "POST", Endpoint: "/api/third/"})

	drained := svc.Flush(context.Background())

	assert.Equal(t, 3, drained)
	assert.Equal(t, 0, repo.Count())
	assert.Equal(t, []string{"/api/first/", "/api/second/", "/api/third/"}, fake.requestCalls)
}

func TestFlushHaltsAtFirstFailure(t *testing.T) {
	svc, repo, fake := newSyncFixture()

	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Endpoint: "/api/first/"})
	failing := repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Endpoint: "/api/second/"})
	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Endpoint: "/api/third/"})

	fake.requestErr["/api/second/"] = api.ErrOffline

	drained := svc.Flush(context.Background())

	assert.Equal(t, 1, drained)
	remaining := repo.ListAll()
	require.Len(t, remaining, 2, "the failed operation and everything behind it stay queued")
	assert.Equal(t, failing.ID, remaining[0].ID)
	assert.Equal(t, "/api/third/", remaining[1].Endpoint)

	// The third operation must never have been attempted.
	assert.Equal(t, []string{"/api/first/", "/api/second/"}, fake.requestCalls)
}

func TestFlushReplaysCompoundSubmission(t *testing.T) {
	svc, repo, fake := newSyncFixture()

	repo.Enqueue(model.PendingOperation{
		Type:       model.OperationMockTestSubmission,
		MockTestID: 9,
		Answers: []model.Answer{
			{QuestionID: 1, SelectedAnswerID: int64Ptr(14), TimeTakenSeconds: 20},
			{QuestionID: 2, IsSkipped: true},
		},
	})

	drained := svc.Flush(context.Background())

	assert.Equal(t, 1, drained)
	assert.Equal(t, 0, repo.Count())

	// Replay runs start, bulk answers, finalize, in that order, wiring the
	// fresh attempt id into every answer row.
	require.Equal(t, []int64{9}, fake.startCalls)
	require.Len(t, fake.bulkCalls, 1)
	attemptID := fake.bulkCalls[0][0].UserAttempt
	for _, p := range fake.bulkCalls[0] {
		assert.Equal(t, attemptID, p.UserAttempt)
	}
	assert.Equal(t, []int64{attemptID}, fake.submitCalls)
}

func TestFlushCompoundFailureKeepsOperation(t *testing.T) {
	svc, repo, fake := newSyncFixture()

	repo.Enqueue(model.PendingOperation{
		Type:       model.OperationMockTestSubmission,
		MockTestID: 9,
		Answers:    []model.Answer{{QuestionID: 1, IsSkipped: true}},
	})
	fake.bulkErr = errors.New("boom")

	drained := svc.Flush(context.Background())

	assert.Equal(t, 0, drained)
	assert.Equal(t, 1, repo.Count(), "a half-replayed submission stays queued")
	assert.Empty(t, fake.submitCalls, "finalize must not run after a failed bulk write")
}

func TestFlushUnknownOperationTypeHalts(t *testing.T) {
	svc, repo, _ := newSyncFixture()

	repo.Enqueue(model.PendingOperation{Type: "FUTURE_TYPE"})
	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Endpoint: "/api/after/"})

	drained := svc.Flush(context.Background())
	assert.Equal(t, 0, drained)
	assert.Equal(t, 2, repo.Count())
}

func TestFlushEmptyQueue(t *testing.T) {
	svc, _, fake := newSyncFixture()
	assert.Equal(t, 0, svc.Flush(context.Background()))
	assert.Empty(t, fake.requestCalls)
}

func TestConcurrentFlushIsNoOp(t *testing.T) {
	repo := repository.NewPendingOperationRepository(storage.NewMemory(), nil)
	fake := newFakeAPI()

	release := make(chan struct{})
	entered := make(chan struct{})
	fake.requestErr["/api/slow/"] = nil
	slow := &blockingAPI{fakeAPI: fake, entered: entered, release: release}
	svc := NewSyncService(repo, slow)

	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP, Endpoint: "/api/slow/"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Flush(context.Background())
	}()

	<-entered
	// A second flush while the first is mid-drain must bail out.
	assert.Equal(t, 0, svc.Flush(context.Background()))
	assert.True(t, svc.Stats().Draining)
	close(release)
	wg.Wait()

	assert.Equal(t, 0, repo.Count())
	assert.False(t, svc.Stats().Draining)
}

// blockingAPI parks the first Request until released, exposing the drain
// window to the overlap test.
type blockingAPI struct {
	*fakeAPI
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (b *blockingAPI) Request(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	b.once.Do(func() {
		close(b.entered)
		<-b.release
	})
	return b.fakeAPI.Request(ctx, method, endpoint, body)
}

func TestStatsReportQueueDepthAndAge(t *testing.T) {
	svc, repo, _ := newSyncFixture()

	stats := svc.Stats()
	assert.Equal(t, 0, stats.PendingOperations)
	assert.Zero(t, stats.OldestCreatedAt)

	repo.Enqueue(model.PendingOperation{Type: model.OperationHTTP})
	stats = svc.Stats()
	assert.Equal(t, 1, stats.PendingOperations)
	assert.Equal(t, int64(1_700_000_000_000), stats.OldestCreatedAt)
}
