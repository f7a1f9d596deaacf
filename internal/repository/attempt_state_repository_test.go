package repository

import (
	"testing"

	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestAttemptStateAnswersRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	repo := NewAttemptStateRepository(store)

	answers := map[int64]model.Answer{
		10: {QuestionID: 10, SelectedAnswerID: int64Ptr(3), TimeTakenSeconds: 42},
		11: {QuestionID: 11, IsSkipped: true, IsMarkedForReview: true},
	}
	repo.SaveAnswers("77", answers)

	loaded := repo.LoadAnswers("77")
	require.Len(t, loaded, 2)
	assert.Equal(t, int64(3), *loaded[10].SelectedAnswerID)
	assert.Equal(t, 42, loaded[10].TimeTakenSeconds)
	assert.True(t, loaded[11].IsSkipped)
	assert.True(t, loaded[11].IsMarkedForReview)
}

func TestAttemptStateLoadAnswersEmpty(t *testing.T) {
	repo := NewAttemptStateRepository(storage.NewMemory())
	loaded := repo.LoadAnswers("never_saved")
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestAttemptStateCorruptAnswersFallBackToEmpty(t *testing.T) {
	store := storage.NewMemory()
	store.Set("attempt:77:answers", "{broken json")

	repo := NewAttemptStateRepository(store)
	loaded := repo.LoadAnswers("77")
	require.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestAttemptStateTimeLeft(t *testing.T) {
	repo := NewAttemptStateRepository(storage.NewMemory())

	_, ok := repo.LoadTimeLeft("77")
	assert.False(t, ok)

	repo.SaveTimeLeft("77", 1795)
	secs, ok := repo.LoadTimeLeft("77")
	require.True(t, ok)
	assert.Equal(t, 1795, secs)
}

func TestAttemptStateKeysAreAttemptScoped(t *testing.T) {
	repo := NewAttemptStateRepository(storage.NewMemory())

	repo.SaveTimeLeft("offline_test_5", 600)
	repo.SaveTimeLeft("42", 900)

	secs, ok := repo.LoadTimeLeft("offline_test_5")
	require.True(t, ok)
	assert.Equal(t, 600, secs)

	secs, ok = repo.LoadTimeLeft("42")
	require.True(t, ok)
	assert.Equal(t, 900, secs)
}

func TestAttemptStateClearRemovesBothEntries(t *testing.T) {
	store := storage.NewMemory()
	repo := NewAttemptStateRepository(store)

	repo.SaveAnswers("77", map[int64]model.Answer{1: {QuestionID: 1}})
	repo.SaveTimeLeft("77", 30)
	repo.Clear("77")

	assert.Empty(t, repo.LoadAnswers("77"))
	_, ok := repo.LoadTimeLeft("77")
	assert.False(t, ok)
	assert.Empty(t, store.Keys("attempt:77:"))
}
