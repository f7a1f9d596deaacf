package api

import (
	"errors"
	"fmt"
)

// ErrOffline marks a request that failed because connectivity was absent,
// either known up front from the monitor or discovered as a transport
// error while the monitor already reported offline. Callers route these
// to the pending-operation queue or the stale-cache fallback; they are
// never surfaced as hard failures when such a path exists.
var ErrOffline = errors.New("no connectivity")

// APIError is a non-2xx response with connectivity present: a genuine
// server or validation failure. Not queued, not silently retried.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// IsConnectivity reports whether err was classified as a connectivity
// failure rather than a server-side rejection.
func IsConnectivity(err error) bool {
	return errors.Is(err, ErrOffline)
}
