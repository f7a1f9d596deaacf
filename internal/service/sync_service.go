package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/repository"
	"github.com/rs/zerolog/log"
)

// ReplayAPI is the slice of the API client the drainer needs. Replay uses
// the same request primitive as live calls.
type ReplayAPI interface {
	Request(ctx context.Context, method, endpoint string, body any) ([]byte, error)
	StartAttempt(ctx context.Context, testID int64) (*dto.UserAttempt, error)
	BulkSubmitAnswers(ctx context.Context, answers []dto.AnswerPayload) error
	SubmitAttempt(ctx context.Context, attemptID int64) error
}

// SyncService drains the pending-operation queue after a reconnect.
type SyncService interface {
	// Flush replays queued operations in insertion order, removing each one
	// only after its replay succeeded. It stops at the first failure,
	// leaving that operation and everything behind it queued for the next
	// reconnection. Returns the number of operations drained. A flush that
	// finds another flush in progress is a no-op.
	Flush(ctx context.Context) int
	Stats() dto.QueueStatsDTO
}

type syncService struct {
	pendingRepo repository.PendingOperationRepository
	api         ReplayAPI

	mu       sync.Mutex
	draining bool
}

func NewSyncService(pendingRepo repository.PendingOperationRepository, api ReplayAPI) SyncService {
	return &syncService{pendingRepo: pendingRepo, api: api}
}

func (s *syncService) Flush(ctx context.Context) int {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		log.Debug().Msg("Flush skipped, drain already in progress")
		return 0
	}
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.mu.Unlock()
	}()

	ops := s.pendingRepo.ListAll()
	if len(ops) == 0 {
		return 0
	}
	log.Info().Int("queued", len(ops)).Msg("Draining pending operations")

	drained := 0
	for _, op := range ops {
		if err := s.replay(ctx, op); err != nil {
			// Halt here: replaying op N+1 against a server that never saw
			// op N would break ordering guarantees.
			log.Warn().Err(err).Int64("id", op.ID).Str("type", string(op.Type)).
				Msg("Replay failed, leaving remainder queued")
			break
		}
		s.pendingRepo.Remove(op.ID)
		drained++
	}

	log.Info().Int("drained", drained).Int("remaining", s.pendingRepo.Count()).
		Msg("Drain finished")
	return drained
}

func (s *syncService) replay(ctx context.Context, op model.PendingOperation) error {
	switch op.Type {
	case model.OperationHTTP:
		_, err := s.api.Request(ctx, op.Method, op.Endpoint, op.Body)
		return err

	case model.OperationMockTestSubmission:
		// The attempt must exist server-side before the answers can
		// reference it, so the compound variant replays in three steps.
		started, err := s.api.StartAttempt(ctx, op.MockTestID)
		if err != nil {
			return fmt.Errorf("start attempt for queued submission: %w", err)
		}
		answers := make([]dto.AnswerPayload, 0, len(op.Answers))
		for _, a := range op.Answers {
			answers = append(answers, dto.AnswerPayload{
				UserAttempt:       started.ID,
				Question:          a.QuestionID,
				SelectedAnswer:    a.SelectedAnswerID,
				TimeTakenSeconds:  a.TimeTakenSeconds,
				IsSkipped:         a.IsSkipped,
				IsMarkedForReview: a.IsMarkedForReview,
			})
		}
		if err := s.api.BulkSubmitAnswers(ctx, answers); err != nil {
			return fmt.Errorf("bulk submit queued answers: %w", err)
		}
		if err := s.api.SubmitAttempt(ctx, started.ID); err != nil {
			return fmt.Errorf("finalize queued attempt: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown pending operation type %q", op.Type)
	}
}

func (s *syncService) Stats() dto.QueueStatsDTO {
	s.mu.Lock()
	draining := s.draining
	s.mu.Unlock()

	stats := dto.QueueStatsDTO{Draining: draining}
	ops := s.pendingRepo.ListAll()
	stats.PendingOperations = len(ops)
	if len(ops) > 0 {
		stats.OldestCreatedAt = ops[0].CreatedAt
	}
	return stats
}
