package dto

// --- Wire shapes of the exam backend (owned by the server) ---

// StartAttemptRequest creates a server-side attempt record.
type StartAttemptRequest struct {
	MockTestID int64  `json:"mock_test_id"`
	Mode       string `json:"mode"` // "MOCK_TEST" or "PRACTICE"
}

// UserAttempt is the server's attempt resource.
type UserAttempt struct {
	ID       int64   `json:"id"`
	Status   string  `json:"status"`
	Mode     string  `json:"mode"`
	Score    float64 `json:"score_obtained"`
	Total    float64 `json:"total_score"`
	Percent  float64 `json:"percentage"`
	TimeUsed int     `json:"total_time_taken"`
}

// AnswerPayload is one answer row of the bulk-create request.
type AnswerPayload struct {
	UserAttempt       int64  `json:"user_attempt"`
	Question          int64  `json:"question"`
	SelectedAnswer    *int64 `json:"selected_answer"`
	TimeTakenSeconds  int    `json:"time_taken_seconds"`
	IsSkipped         bool   `json:"is_skipped"`
	IsMarkedForReview bool   `json:"is_marked_for_review"`
}

// BulkAnswersRequest wraps the answer rows for /api/answers/bulk/.
type BulkAnswersRequest struct {
	Answers []AnswerPayload `json:"answers"`
}

// PaginatedResponse is the server's envelope for list endpoints.
type PaginatedResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}
