package model

// MockTest mirrors the server's mock-test resource, including the full
// question set when fetched through the detail endpoint.
type MockTest struct {
	ID              int64          `json:"id"`
	TitleEn         string         `json:"title_en"`
	TitleNp         string         `json:"title_np,omitempty"`
	TestType        string         `json:"test_type"` // "OFFICIAL", "COMMUNITY", "CUSTOM"
	Branch          int64          `json:"branch"`
	SubBranch       *int64         `json:"sub_branch,omitempty"`
	TotalQuestions  int            `json:"total_questions"`
	DurationMinutes int            `json:"duration_minutes"`
	PassPercentage  float64        `json:"pass_percentage"`
	IsPublic        bool           `json:"is_public"`
	TestQuestions   []TestQuestion `json:"test_questions,omitempty"`
}

// TestQuestion binds a question to its position within a mock test.
type TestQuestion struct {
	QuestionOrder  int      `json:"question_order"`
	MarksAllocated float64  `json:"marks_allocated"`
	Question       Question `json:"question"`
}

type Question struct {
	ID             int64          `json:"id"`
	CategoryID     int64          `json:"category,omitempty"`
	QuestionTextEn string         `json:"question_text_en"`
	QuestionTextNp string         `json:"question_text_np,omitempty"`
	Answers        []AnswerOption `json:"answers,omitempty"`
}

type AnswerOption struct {
	ID           int64  `json:"id"`
	AnswerTextEn string `json:"answer_text_en"`
	AnswerTextNp string `json:"answer_text_np,omitempty"`
}
