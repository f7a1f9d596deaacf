package service

import (
	"context"
	"sync"

	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
)

// fakeAPI implements every API slice the services consume, with
// programmable failures and full call recording.
type fakeAPI struct {
	mu sync.Mutex

	nextAttemptID int64
	startErr      error
	bulkErr       error
	submitErr     error
	requestErr    map[string]error

	test           *model.MockTest
	fetchFromCache bool
	fetchErr       error

	testPages map[int]*dto.PaginatedResponse[model.MockTest]
	listErr   error

	questionPages map[string]*dto.PaginatedResponse[model.Question]
	questionErr   error

	startCalls    []int64
	bulkCalls     [][]dto.AnswerPayload
	submitCalls   []int64
	requestCalls  []string
	questionCalls []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		nextAttemptID: 100,
		requestErr:    make(map[string]error),
		testPages:     make(map[int]*dto.PaginatedResponse[model.MockTest]),
		questionPages: make(map[string]*dto.PaginatedResponse[model.Question]),
	}
}

func (f *fakeAPI) StartAttempt(ctx context.Context, testID int64) (*dto.UserAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls = append(f.startCalls, testID)
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.nextAttemptID++
	return &dto.UserAttempt{ID: f.nextAttemptID, Status: "IN_PROGRESS"}, nil
}

func (f *fakeAPI) BulkSubmitAnswers(ctx context.Context, answers []dto.AnswerPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls = append(f.bulkCalls, answers)
	return f.bulkErr
}

func (f *fakeAPI) SubmitAttempt(ctx context.Context, attemptID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, attemptID)
	return f.submitErr
}

func (f *fakeAPI) Request(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requestCalls = append(f.requestCalls, endpoint)
	if err := f.requestErr[endpoint]; err != nil {
		return nil, err
	}
	return []byte(`{}`), nil
}

func (f *fakeAPI) FetchMockTest(ctx context.Context, testID int64) (*model.MockTest, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, false, f.fetchErr
	}
	return f.test, f.fetchFromCache, nil
}

func (f *fakeAPI) ListMockTests(ctx context.Context, page int) (*dto.PaginatedResponse[model.MockTest], bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	return f.testPages[page], f.fetchFromCache, nil
}

func (f *fakeAPI) ListQuestions(ctx context.Context, categoryID int64, pageSize int, pageURL string) (*dto.PaginatedResponse[model.Question], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionCalls = append(f.questionCalls, pageURL)
	if f.questionErr != nil {
		return nil, f.questionErr
	}
	return f.questionPages[pageURL], nil
}

func int64Ptr(v int64) *int64 { return &v }

// sampleTest builds a test with n sequentially numbered questions, four
// options each.
func sampleTest(id int64, n int) *model.MockTest {
	test := &model.MockTest{
		ID:              id,
		TitleEn:         "General Knowledge Set",
		TestType:        "OFFICIAL",
		Branch:          1,
		TotalQuestions:  n,
		DurationMinutes: 30,
		PassPercentage:  40,
	}
	for i := 1; i <= n; i++ {
		q := model.Question{ID: int64(i), QuestionTextEn: "Question"}
		for j := 1; j <= 4; j++ {
			q.Answers = append(q.Answers, model.AnswerOption{ID: int64(i*10 + j)})
		}
		test.TestQuestions = append(test.TestQuestions, model.TestQuestion{
			QuestionOrder:  i,
			MarksAllocated: 1,
			Question:       q,
		})
	}
	return test
}
