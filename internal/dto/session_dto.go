package dto

// --- Bridge DTOs consumed by the UI shell ---

type StartSessionRequest struct {
	TestID int64 `json:"test_id" binding:"required"`
}

type SelectAnswerRequest struct {
	QuestionID int64 `json:"question_id" binding:"required"`
	// AnswerID nil clears the selection back to skipped.
	AnswerID *int64 `json:"answer_id"`
}

type NavigateRequest struct {
	// Index jumps to an absolute question index when set; otherwise
	// Direction must be "next" or "previous".
	Index     *int   `json:"index"`
	Direction string `json:"direction,omitempty"`
}

type MarkReviewRequest struct {
	QuestionID int64 `json:"question_id" binding:"required"`
	Marked     bool  `json:"marked"`
}

type ConnectivityRequest struct {
	Online bool `json:"online"`
}

// SessionStateDTO is the snapshot the UI renders from.
type SessionStateDTO struct {
	Status           string  `json:"status"`
	AttemptID        *int64  `json:"attempt_id,omitempty"`
	AttemptKey       string  `json:"attempt_key"`
	TestID           int64   `json:"test_id"`
	TestTitle        string  `json:"test_title,omitempty"`
	CurrentIndex     int     `json:"current_index"`
	TotalQuestions   int     `json:"total_questions"`
	AnsweredCount    int     `json:"answered_count"`
	MarkedCount      int     `json:"marked_count"`
	RemainingSeconds int     `json:"remaining_seconds"`
	TimeDisplay      string  `json:"time_display"`
	OfflineMode      bool    `json:"offline_mode"`
	OfflineTestData  bool    `json:"offline_test_data"`
	PassPercentage   float64 `json:"pass_percentage"`
}

// SubmitResponseDTO reports where a finished session ended up.
type SubmitResponseDTO struct {
	Outcome   string `json:"outcome"` // "SUBMITTED" or "QUEUED_OFFLINE"
	AttemptID *int64 `json:"attempt_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// QueueStatsDTO exposes pending-operation queue state for diagnostics.
type QueueStatsDTO struct {
	PendingOperations int   `json:"pending_operations"`
	OldestCreatedAt   int64 `json:"oldest_created_at,omitempty"`
	Draining          bool  `json:"draining"`
}

type ErrorResponse struct {
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}
