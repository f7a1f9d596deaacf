package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pscprep/examengine/internal/dto"
	"github.com/pscprep/examengine/internal/model"
)

const (
	endpointStartAttempt = "/api/attempts/start/"
	endpointBulkAnswers  = "/api/answers/bulk/"
	endpointMockTests    = "/api/mock-tests/"
	endpointQuestions    = "/api/questions/"
)

func endpointSubmitAttempt(attemptID int64) string {
	return fmt.Sprintf("/api/attempts/%d/submit/", attemptID)
}

func endpointMockTestDetail(testID int64) string {
	return fmt.Sprintf("/api/mock-tests/%d/", testID)
}

// StartAttempt creates a server-side attempt for the given mock test and
// returns its assigned id.
func (c *Client) StartAttempt(ctx context.Context, testID int64) (*dto.UserAttempt, error) {
	payload, err := c.Request(ctx, http.MethodPost, endpointStartAttempt, dto.StartAttemptRequest{
		MockTestID: testID,
		Mode:       "MOCK_TEST",
	})
	if err != nil {
		return nil, err
	}
	var attempt dto.UserAttempt
	if err := json.Unmarshal(payload, &attempt); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpointStartAttempt, err)
	}
	return &attempt, nil
}

// FetchMockTest loads the full test definition (question set, duration,
// pass percentage) with cache write-through and stale fallback. The bool
// reports whether the result came from cache.
func (c *Client) FetchMockTest(ctx context.Context, testID int64) (*model.MockTest, bool, error) {
	var test model.MockTest
	fromCache, err := c.GetJSONCached(ctx, endpointMockTestDetail(testID), &test)
	if err != nil {
		return nil, false, err
	}
	return &test, fromCache, nil
}

// BulkSubmitAnswers creates every answer row of an attempt in one write.
func (c *Client) BulkSubmitAnswers(ctx context.Context, answers []dto.AnswerPayload) error {
	_, err := c.Request(ctx, http.MethodPost, endpointBulkAnswers, dto.BulkAnswersRequest{Answers: answers})
	return err
}

// SubmitAttempt finalizes a server-side attempt.
func (c *Client) SubmitAttempt(ctx context.Context, attemptID int64) error {
	_, err := c.Request(ctx, http.MethodPost, endpointSubmitAttempt(attemptID), struct{}{})
	return err
}

// ListMockTests fetches one catalog page with stale fallback.
func (c *Client) ListMockTests(ctx context.Context, page int) (*dto.PaginatedResponse[model.MockTest], bool, error) {
	endpoint := endpointMockTests
	if page > 1 {
		endpoint = fmt.Sprintf("%s?page=%d", endpointMockTests, page)
	}
	var resp dto.PaginatedResponse[model.MockTest]
	fromCache, err := c.GetJSONCached(ctx, endpoint, &resp)
	if err != nil {
		return nil, false, err
	}
	return &resp, fromCache, nil
}

// ListQuestions fetches one page of a category's questions. pageURL, when
// non-empty, is the server-provided `next` link and is followed verbatim.
func (c *Client) ListQuestions(ctx context.Context, categoryID int64, pageSize int, pageURL string) (*dto.PaginatedResponse[model.Question], error) {
	endpoint := pageURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s?category=%d&page_size=%d", endpointQuestions, categoryID, pageSize)
	}
	var resp dto.PaginatedResponse[model.Question]
	if err := c.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
