package model

import "encoding/json"

// OperationType discriminates the queued-operation variants. Replay code
// switches exhaustively on it; unknown values are a replay error, never a
// silent skip.
type OperationType string

const (
	// OperationHTTP is a plain request replayed verbatim.
	OperationHTTP OperationType = "HTTP"
	// OperationMockTestSubmission is the compound variant: the attempt must
	// be re-created server-side before the answers can reference it, so
	// replay is start -> bulk-submit -> finalize rather than one call.
	OperationMockTestSubmission OperationType = "MOCK_TEST_SUBMISSION"
)

// PendingOperation is a durable record of a write that failed due to
// absent connectivity, queued for FIFO replay on reconnect.
type PendingOperation struct {
	// ID is locally generated and monotonic within this installation.
	ID   int64         `json:"id"`
	Type OperationType `json:"type"`

	// HTTP variant fields.
	Endpoint string          `json:"endpoint,omitempty"`
	Method   string          `json:"method,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`

	// Mock-test submission variant fields.
	MockTestID int64    `json:"mock_test_id,omitempty"`
	Answers    []Answer `json:"answers,omitempty"`
	// IdempotencyKey identifies the submission across replay retries, so a
	// crash between server success and local removal stays detectable by a
	// deduplicating server.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	CreatedAt int64 `json:"created_at"`
}
