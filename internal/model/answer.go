package model

// Answer is one learner response to one question within an attempt.
// Exactly one record exists per question at submission time; questions the
// learner never touched are materialized as skipped, not omitted.
type Answer struct {
	QuestionID int64 `json:"question_id"`
	// SelectedAnswerID is nil for skipped questions.
	SelectedAnswerID *int64 `json:"selected_answer_id"`
	// TimeTakenSeconds accumulates across visits to the question and is
	// never reset by re-selection.
	TimeTakenSeconds  int  `json:"time_taken_seconds"`
	IsMarkedForReview bool `json:"is_marked_for_review"`
	IsSkipped         bool `json:"is_skipped"`
}
