package repository

import (
	"encoding/json"
	"fmt"

	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/storage"
	"github.com/rs/zerolog/log"
)

// AttemptStateRepository persists the crash-protection state of a single
// attempt: the full answer map and the countdown. Writes are synchronous;
// a process kill immediately after a write must not lose data.
type AttemptStateRepository interface {
	SaveAnswers(attemptKey string, answers map[int64]model.Answer)
	// LoadAnswers returns the persisted answer map, or an empty map when
	// nothing was stored or the stored JSON is corrupt.
	LoadAnswers(attemptKey string) map[int64]model.Answer
	SaveTimeLeft(attemptKey string, seconds int)
	LoadTimeLeft(attemptKey string) (int, bool)
	// Clear removes both entries; called once the attempt's data is either
	// acknowledged by the server or safely queued.
	Clear(attemptKey string)
}

type attemptStateRepository struct {
	store storage.Store
}

func NewAttemptStateRepository(store storage.Store) AttemptStateRepository {
	return &attemptStateRepository{store: store}
}

func answersKey(attemptKey string) string {
	return fmt.Sprintf("attempt:%s:answers", attemptKey)
}

func timeLeftKey(attemptKey string) string {
	return fmt.Sprintf("attempt:%s:timeLeft", attemptKey)
}

func (r *attemptStateRepository) SaveAnswers(attemptKey string, answers map[int64]model.Answer) {
	encoded, err := json.Marshal(answers)
	if err != nil {
		log.Error().Err(err).Str("attemptKey", attemptKey).Msg("Failed to encode answer map")
		return
	}
	r.store.Set(answersKey(attemptKey), string(encoded))
}

func (r *attemptStateRepository) LoadAnswers(attemptKey string) map[int64]model.Answer {
	answers := make(map[int64]model.Answer)
	raw, ok := r.store.GetString(answersKey(attemptKey))
	if !ok {
		return answers
	}
	if err := json.Unmarshal([]byte(raw), &answers); err != nil {
		log.Warn().Err(err).Str("attemptKey", attemptKey).Msg("Corrupt persisted answers, starting empty")
		return make(map[int64]model.Answer)
	}
	return answers
}

func (r *attemptStateRepository) SaveTimeLeft(attemptKey string, seconds int) {
	r.store.SetNumber(timeLeftKey(attemptKey), float64(seconds))
}

func (r *attemptStateRepository) LoadTimeLeft(attemptKey string) (int, bool) {
	n, ok := r.store.GetNumber(timeLeftKey(attemptKey))
	if !ok {
		return 0, false
	}
	return int(n), true
}

func (r *attemptStateRepository) Clear(attemptKey string) {
	r.store.Remove(answersKey(attemptKey))
	r.store.Remove(timeLeftKey(attemptKey))
}
