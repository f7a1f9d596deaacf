package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/pscprep/examengine/internal/api"
	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
	"github.com/pscprep/examengine/internal/network"
	"github.com/pscprep/examengine/internal/repository"
	"github.com/rs/zerolog/log"
)

// SessionAPI is the slice of the API client a session needs during
// initialization.
type SessionAPI interface {
	StartAttempt(ctx context.Context, testID int64) (*dto.UserAttempt, error)
	FetchMockTest(ctx context.Context, testID int64) (*model.MockTest, bool, error)
}

// SessionDeps bundles everything a TestSession needs. Now may be nil and
// defaults to time.Now; tests inject a fake clock through it.
type SessionDeps struct {
	API       SessionAPI
	StateRepo repository.AttemptStateRepository
	Submitter SubmissionService
	Monitor   *network.Monitor
	Now       func() time.Time
}

// ErrSessionNotActive is returned by mutations arriving outside the
// Active state.
var ErrSessionNotActive = errors.New("session is not active")

// ErrBackNavigation is the refusal for hardware-back during an active
// attempt; a learner leaves a timed attempt only through submit.
var ErrBackNavigation = errors.New("cannot leave an active attempt, use submit")

// timeLeftPersistInterval bounds countdown writes to the durable store:
// every 5th tick, not every second.
const timeLeftPersistInterval = 5

// TestSession owns the lifecycle of one timed attempt: question
// navigation, answer capture, per-question timing, countdown persistence
// and restoration, and auto-submit on expiry. All exported methods are
// safe for concurrent use by the bridge handlers and the ticker.
type TestSession struct {
	deps   SessionDeps
	testID int64

	mu              sync.Mutex
	status          model.AttemptStatus
	attemptID       *int64
	attemptKey      string
	offlineMode     bool
	offlineTestData bool
	test            *model.MockTest

	answers         map[int64]model.Answer
	currentIndex    int
	questionShownAt time.Time

	remaining          int
	totalDuration      int
	ticksSincePersist  int
	autoSubmitFired    bool
	timerStop          chan struct{}
	lastSubmitResponse *dto.SubmitResponseDTO
}

// NewTestSession creates a session in NOT_STARTED; call Start to run the
// initialization sequence.
func NewTestSession(deps SessionDeps, testID int64) *TestSession {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &TestSession{
		deps:    deps,
		testID:  testID,
		status:  model.StatusNotStarted,
		answers: make(map[int64]model.Answer),
	}
}

// Start runs the gated initialization sequence:
//  1. create the attempt server-side (or fall into offline mode when
//     connectivity is absent),
//  2. fetch the test's question set,
//  3. restore cached answers and remaining time for this attempt key,
//  4. seed the countdown from the test duration when nothing was cached.
//
// A failed initialization is retryable: Start may be called again from
// the FAILED state.
func (s *TestSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.status != model.StatusNotStarted && s.status != model.StatusFailed {
		s.mu.Unlock()
		return fmt.Errorf("session already started (status %s)", s.status)
	}
	s.mu.Unlock()

	var (
		attemptID   *int64
		offlineMode bool
	)

	if s.deps.Monitor.IsOnline() {
		attempt, err := s.deps.API.StartAttempt(ctx, s.testID)
		switch {
		case err == nil:
			attemptID = &attempt.ID
		case api.IsConnectivity(err) || !s.deps.Monitor.IsOnline():
			// Fully offline attempt flow under a synthetic key.
			offlineMode = true
			log.Info().Int64("testID", s.testID).Msg("Starting attempt in offline mode")
		default:
			s.fail()
			return fmt.Errorf("start attempt for test %d: %w", s.testID, err)
		}
	} else {
		offlineMode = true
		log.Info().Int64("testID", s.testID).Msg("Offline at session start, using offline attempt key")
	}

	test, fromCache, err := s.deps.API.FetchMockTest(ctx, s.testID)
	if err != nil {
		s.fail()
		return fmt.Errorf("fetch test %d: %w", s.testID, err)
	}
	sortQuestions(test)

	attemptKey := fmt.Sprintf("offline_test_%d", s.testID)
	if attemptID != nil {
		attemptKey = strconv.FormatInt(*attemptID, 10)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attemptID = attemptID
	s.attemptKey = attemptKey
	s.offlineMode = offlineMode
	s.offlineTestData = fromCache
	s.test = test

	// Restore covers an app kill mid-attempt: cached answers win over an
	// empty map, cached remaining time wins over the configured duration.
	s.answers = s.deps.StateRepo.LoadAnswers(attemptKey)
	s.totalDuration = test.DurationMinutes * 60
	if cached, ok := s.deps.StateRepo.LoadTimeLeft(attemptKey); ok && cached > 0 {
		s.remaining = cached
		log.Info().Str("attemptKey", attemptKey).Int("remaining", cached).
			Int("restoredAnswers", len(s.answers)).Msg("Restored attempt state")
	} else {
		s.remaining = s.totalDuration
	}

	s.currentIndex = 0
	s.questionShownAt = s.deps.Now()
	s.status = model.StatusInProgress
	return nil
}

func (s *TestSession) fail() {
	s.mu.Lock()
	s.status = model.StatusFailed
	s.mu.Unlock()
}

// SelectAnswer records the learner's choice for a question, persists the
// whole answer map synchronously, and folds the elapsed display time into
// that question's accumulated seconds. Re-selecting never resets the
// accumulated time. A nil answerID reverts the question to skipped.
func (s *TestSession) SelectAnswer(questionID int64, answerID *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress {
		return ErrSessionNotActive
	}
	if _, ok := s.questionByID(questionID); !ok {
		return fmt.Errorf("question %d is not part of test %d", questionID, s.testID)
	}

	s.accumulateElapsedLocked(questionID)

	entry := s.answers[questionID]
	entry.QuestionID = questionID
	entry.SelectedAnswerID = answerID
	entry.IsSkipped = answerID == nil
	s.answers[questionID] = entry

	s.deps.StateRepo.SaveAnswers(s.attemptKey, s.answers)
	return nil
}

// MarkForReview toggles the review flag and persists the map.
func (s *TestSession) MarkForReview(questionID int64, marked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress {
		return ErrSessionNotActive
	}
	if _, ok := s.questionByID(questionID); !ok {
		return fmt.Errorf("question %d is not part of test %d", questionID, s.testID)
	}

	entry := s.answers[questionID]
	if entry.QuestionID == 0 {
		entry.QuestionID = questionID
		entry.IsSkipped = true
	}
	entry.IsMarkedForReview = marked
	s.answers[questionID] = entry

	s.deps.StateRepo.SaveAnswers(s.attemptKey, s.answers)
	return nil
}

// Navigate moves to an absolute question index, flushing the current
// question's accumulated display time before the index changes.
func (s *TestSession) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != model.StatusInProgress {
		return ErrSessionNotActive
	}
	if index < 0 || index >= len(s.test.TestQuestions) {
		return fmt.Errorf("question index %d out of range [0,%d)", index, len(s.test.TestQuestions))
	}
	if index == s.currentIndex {
		return nil
	}

	if current, ok := s.questionAtLocked(s.currentIndex); ok {
		s.accumulateElapsedLocked(current.ID)
		s.deps.StateRepo.SaveAnswers(s.attemptKey, s.answers)
	}
	s.currentIndex = index
	s.questionShownAt = s.deps.Now()
	return nil
}

// Next advances one question; at the last question it is a no-op.
func (s *TestSession) Next() error {
	s.mu.Lock()
	index := s.currentIndex + 1
	total := 0
	if s.test != nil {
		total = len(s.test.TestQuestions)
	}
	s.mu.Unlock()
	if index >= total {
		return nil
	}
	return s.Navigate(index)
}

// Previous steps one question back; at the first question it is a no-op.
func (s *TestSession) Previous() error {
	s.mu.Lock()
	index := s.currentIndex - 1
	s.mu.Unlock()
	if index < 0 {
		return nil
	}
	return s.Navigate(index)
}

// Tick advances the countdown by one second. It is a no-op outside the
// active/submitting states, so a straggling timer firing after teardown or
// terminal transition cannot corrupt anything; the guard is evaluated at
// fire time, not schedule time. Every 5th tick persists the remaining
// seconds. The returned fire flag is true exactly once, on the tick that
// reaches zero.
func (s *TestSession) Tick() (remaining int, fire bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The countdown keeps running while a submission request is in flight.
	if s.status != model.StatusInProgress && s.status != model.StatusSubmitting {
		return s.remaining, false
	}
	if s.remaining <= 0 {
		return 0, false
	}

	s.remaining--
	s.ticksSincePersist++
	if s.ticksSincePersist >= timeLeftPersistInterval || s.remaining == 0 {
		s.ticksSincePersist = 0
		s.deps.StateRepo.SaveTimeLeft(s.attemptKey, s.remaining)
	}

	if s.remaining == 0 && !s.autoSubmitFired && s.status == model.StatusInProgress {
		s.autoSubmitFired = true
		return 0, true
	}
	return s.remaining, false
}

// StartTimer launches the one-second countdown loop. Starting an already
// running timer is a no-op: the countdown is uniquely owned, a second
// ticker for the same attempt is a bug class this guards against.
func (s *TestSession) StartTimer() {
	s.mu.Lock()
	if s.timerStop != nil || s.status != model.StatusInProgress {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, fire := s.Tick(); fire {
					log.Info().Int64("testID", s.testID).Msg("Timer expired, auto-submitting attempt")
					if _, err := s.Submit(context.Background()); err != nil {
						log.Error().Err(err).Int64("testID", s.testID).Msg("Auto-submit failed")
					}
				}
			}
		}
	}()
}

// Close tears the session down: the timer is cancelled and any callback
// that fires afterwards is a no-op through the status guards.
func (s *TestSession) Close() {
	s.mu.Lock()
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
	s.mu.Unlock()
}

// Submit materializes one answer per question, with explicit skips for
// anything the learner never touched, and runs the bulk submission
// protocol. The session mutex is released while the network write is in
// flight so the countdown keeps ticking.
func (s *TestSession) Submit(ctx context.Context) (*dto.SubmitResponseDTO, error) {
	s.mu.Lock()
	if s.status == model.StatusSubmitting {
		s.mu.Unlock()
		return nil, errors.New("submission already in progress")
	}
	if s.status.Terminal() {
		resp := s.lastSubmitResponse
		s.mu.Unlock()
		return resp, nil
	}
	if s.status != model.StatusInProgress {
		s.mu.Unlock()
		return nil, ErrSessionNotActive
	}

	if current, ok := s.questionAtLocked(s.currentIndex); ok {
		s.accumulateElapsedLocked(current.ID)
	}
	req := SubmissionRequest{
		TestID:     s.testID,
		AttemptID:  s.attemptID,
		AttemptKey: s.attemptKey,
		Answers:    s.materializeAnswersLocked(),
	}
	s.status = model.StatusSubmitting
	s.mu.Unlock()

	resp, err := s.deps.Submitter.Submit(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		// Retryable server error: local state stays intact, the learner can
		// submit again without re-answering.
		s.status = model.StatusInProgress
		return nil, err
	}

	switch resp.Outcome {
	case "QUEUED_OFFLINE":
		s.status = model.StatusQueuedOffline
	default:
		s.status = model.StatusSubmitted
	}
	s.lastSubmitResponse = resp
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
	return resp, nil
}

// materializeAnswersLocked returns exactly one Answer per question of the
// test, ordered by question order. Unanswered questions become explicit
// skipped records rather than being omitted.
func (s *TestSession) materializeAnswersLocked() []model.Answer {
	out := make([]model.Answer, 0, len(s.test.TestQuestions))
	for _, tq := range s.test.TestQuestions {
		if entry, ok := s.answers[tq.Question.ID]; ok {
			entry.IsSkipped = entry.SelectedAnswerID == nil
			out = append(out, entry)
			continue
		}
		out = append(out, model.Answer{
			QuestionID: tq.Question.ID,
			IsSkipped:  true,
		})
	}
	return out
}

// accumulateElapsedLocked folds wall-clock time since the question was
// last shown into its running total, then restarts the stopwatch.
func (s *TestSession) accumulateElapsedLocked(questionID int64) {
	now := s.deps.Now()
	elapsed := int(now.Sub(s.questionShownAt).Round(time.Second) / time.Second)
	s.questionShownAt = now
	if elapsed <= 0 {
		return
	}
	entry := s.answers[questionID]
	if entry.QuestionID == 0 {
		entry.QuestionID = questionID
		entry.IsSkipped = true
	}
	entry.TimeTakenSeconds += elapsed
	s.answers[questionID] = entry
}

func (s *TestSession) questionByID(id int64) (model.Question, bool) {
	for _, tq := range s.test.TestQuestions {
		if tq.Question.ID == id {
			return tq.Question, true
		}
	}
	return model.Question{}, false
}

func (s *TestSession) questionAtLocked(index int) (model.Question, bool) {
	if s.test == nil || index < 0 || index >= len(s.test.TestQuestions) {
		return model.Question{}, false
	}
	return s.test.TestQuestions[index].Question, true
}

// Status returns the current lifecycle state.
func (s *TestSession) Status() model.AttemptStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State snapshots the session for the UI.
func (s *TestSession) State() dto.SessionStateDTO {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := dto.SessionStateDTO{
		Status:           string(s.status),
		AttemptID:        s.attemptID,
		AttemptKey:       s.attemptKey,
		TestID:           s.testID,
		CurrentIndex:     s.currentIndex,
		RemainingSeconds: s.remaining,
		TimeDisplay:      formatTime(s.remaining),
		OfflineMode:      s.offlineMode,
		OfflineTestData:  s.offlineTestData,
	}
	if s.test != nil {
		state.TestTitle = s.test.TitleEn
		state.TotalQuestions = len(s.test.TestQuestions)
		state.PassPercentage = s.test.PassPercentage
	}
	for _, a := range s.answers {
		if !a.IsSkipped && a.SelectedAnswerID != nil {
			state.AnsweredCount++
		}
		if a.IsMarkedForReview {
			state.MarkedCount++
		}
	}
	return state
}

func sortQuestions(test *model.MockTest) {
	sort.SliceStable(test.TestQuestions, func(i, j int) bool {
		return test.TestQuestions[i].QuestionOrder < test.TestQuestions[j].QuestionOrder
	})
}

func formatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
