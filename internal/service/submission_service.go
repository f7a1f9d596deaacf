package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pscprep/examengine/internal/api"
	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/network"
	"github.com/pscprep/examengine/internal/repository"
	"github.com/rs/zerolog/log"
)

// SubmissionAPI is the slice of the API client the submission protocol
// needs.
type SubmissionAPI interface {
	StartAttempt(ctx context.Context, testID int64) (*dto.UserAttempt, error)
	BulkSubmitAnswers(ctx context.Context, answers []dto.AnswerPayload) error
	SubmitAttempt(ctx context.Context, attemptID int64) error
}

// SubmissionRequest carries a finished session's fully materialized
// answers: exactly one record per question, skips included.
type SubmissionRequest struct {
	TestID int64
	// AttemptID is the server-assigned attempt, nil when the session ran in
	// offline mode under a synthetic key.
	AttemptID  *int64
	AttemptKey string
	Answers    []model.Answer
}

// SubmissionService performs the all-or-nothing final write of an attempt:
// bulk-create every answer, then finalize. Both must succeed for the
// attempt to count as submitted.
type SubmissionService interface {
	Submit(ctx context.Context, req SubmissionRequest) (*dto.SubmitResponseDTO, error)
}

type submissionService struct {
	api         SubmissionAPI
	stateRepo   repository.AttemptStateRepository
	pendingRepo repository.PendingOperationRepository
	monitor     *network.Monitor
}

func NewSubmissionService(
	submitAPI SubmissionAPI,
	stateRepo repository.AttemptStateRepository,
	pendingRepo repository.PendingOperationRepository,
	monitor *network.Monitor,
) SubmissionService {
	return &submissionService{
		api:         submitAPI,
		stateRepo:   stateRepo,
		pendingRepo: pendingRepo,
		monitor:     monitor,
	}
}

// Submit routes the final write. Three outcomes:
//   - server acknowledged both writes: local attempt state cleared, SUBMITTED;
//   - failure with connectivity absent: one compound operation queued, local
//     state cleared (the data is now safely queued), QUEUED_OFFLINE;
//   - failure with connectivity present: a genuine server error; nothing is
//     queued and local state stays intact so the learner can retry without
//     re-answering.
func (s *submissionService) Submit(ctx context.Context, req SubmissionRequest) (*dto.SubmitResponseDTO, error) {
	attemptID := req.AttemptID

	// A session that started offline may have regained connectivity by
	// submit time: try the live three-step path before queueing.
	if attemptID == nil && s.monitor.IsOnline() {
		started, err := s.api.StartAttempt(ctx, req.TestID)
		if err == nil {
			attemptID = &started.ID
		} else if !s.shouldQueue(err) {
			return nil, fmt.Errorf("start attempt at submit time: %w", err)
		}
	}

	if attemptID != nil {
		err := s.submitLive(ctx, *attemptID, req.Answers)
		if err == nil {
			s.stateRepo.Clear(req.AttemptKey)
			log.Info().Int64("attemptID", *attemptID).Int("answers", len(req.Answers)).
				Msg("Attempt submitted")
			return &dto.SubmitResponseDTO{Outcome: "SUBMITTED", AttemptID: attemptID}, nil
		}
		if !s.shouldQueue(err) {
			log.Error().Err(err).Int64("attemptID", *attemptID).Msg("Submission rejected by server")
			return nil, err
		}
	}

	// Connectivity is confirmed absent: queue one compound operation
	// carrying the full payload, then clear the local caches.
	op := s.pendingRepo.Enqueue(model.PendingOperation{
		Type:           model.OperationMockTestSubmission,
		MockTestID:     req.TestID,
		Answers:        req.Answers,
		IdempotencyKey: uuid.NewString(),
	})
	s.stateRepo.Clear(req.AttemptKey)
	log.Info().Int64("opID", op.ID).Int64("testID", req.TestID).
		Msg("Submission queued for replay on reconnect")

	return &dto.SubmitResponseDTO{
		Outcome: "QUEUED_OFFLINE",
		Message: "Your answers have been saved and will sync when you're back online.",
	}, nil
}

func (s *submissionService) submitLive(ctx context.Context, attemptID int64, answers []model.Answer) error {
	payloads := make([]dto.AnswerPayload, 0, len(answers))
	for _, a := range answers {
		payloads = append(payloads, dto.AnswerPayload{
			UserAttempt:       attemptID,
			Question:          a.QuestionID,
			SelectedAnswer:    a.SelectedAnswerID,
			TimeTakenSeconds:  a.TimeTakenSeconds,
			IsSkipped:         a.IsSkipped,
			IsMarkedForReview: a.IsMarkedForReview,
		})
	}
	if err := s.api.BulkSubmitAnswers(ctx, payloads); err != nil {
		return fmt.Errorf("bulk submit answers: %w", err)
	}
	if err := s.api.SubmitAttempt(ctx, attemptID); err != nil {
		return fmt.Errorf("finalize attempt: %w", err)
	}
	return nil
}

// shouldQueue is the load-bearing classification: queue only when the
// failure was connectivity, never for a server rejection that would keep
// repeating on replay.
func (s *submissionService) shouldQueue(err error) bool {
	if api.IsConnectivity(err) {
		return true
	}
	return !s.monitor.IsOnline()
}
