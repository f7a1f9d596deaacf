package model

// AttemptStatus is the lifecycle state of a timed session.
type AttemptStatus string

const (
	StatusNotStarted AttemptStatus = "NOT_STARTED"
	StatusInProgress AttemptStatus = "IN_PROGRESS"
	StatusSubmitting AttemptStatus = "SUBMITTING"
	// StatusSubmitted means the server acknowledged both the bulk answer
	// write and the finalize call.
	StatusSubmitted AttemptStatus = "SUBMITTED"
	// StatusQueuedOffline means the completed session was handed to the
	// pending-operation queue for replay on reconnect; local attempt state
	// has been cleared.
	StatusQueuedOffline AttemptStatus = "QUEUED_OFFLINE"
	// StatusFailed is the terminal error state of a failed initialization.
	// Submission failures never land here.
	StatusFailed AttemptStatus = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s AttemptStatus) Terminal() bool {
	return s == StatusSubmitted || s == StatusQueuedOffline
}
