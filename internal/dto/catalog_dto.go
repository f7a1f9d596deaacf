package dto

// TestSummaryDTO is a catalog row for the tests screen, sorted so the
// learner's own branch surfaces first.
type TestSummaryDTO struct {
	ID              int64   `json:"id"`
	TitleEn         string  `json:"title_en"`
	TitleNp         string  `json:"title_np,omitempty"`
	TestType        string  `json:"test_type"`
	Branch          int64   `json:"branch"`
	SubBranch       *int64  `json:"sub_branch,omitempty"`
	TotalQuestions  int     `json:"total_questions"`
	DurationMinutes int     `json:"duration_minutes"`
	PassPercentage  float64 `json:"pass_percentage"`
	FromCache       bool    `json:"from_cache"`
}

// CatalogCountsDTO holds per-filter-tab counts.
type CatalogCountsDTO struct {
	All       int `json:"all"`
	MyBranch  int `json:"my_branch"`
	Official  int `json:"official"`
	Community int `json:"community"`
	Custom    int `json:"custom"`
}

// CachedCategoryDTO describes one downloaded offline question pack.
type CachedCategoryDTO struct {
	CategoryID    int64  `json:"category_id"`
	CategoryName  string `json:"category_name"`
	QuestionCount int    `json:"question_count"`
	CachedAt      int64  `json:"cached_at"`
}
