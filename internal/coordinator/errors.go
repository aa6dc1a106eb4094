package coordinator

import "errors"

// ErrClusterCommunicationFailed is the sentinel wrapped when a peer send
// failed after retries or was short-circuited by the breaker, and the
// coordinator was in sync mode so the failure propagates to the caller.
var ErrClusterCommunicationFailed = errors.New("coordinator: cluster communication failed")

type clusterCommunicationError struct {
	cause error
}

func (e *clusterCommunicationError) Error() string {
	return "coordinator: cluster communication failed: " + e.cause.Error()
}

func (e *clusterCommunicationError) Unwrap() error {
	return ErrClusterCommunicationFailed
}

func errClusterCommunicationFailed(cause error) error {
	return &clusterCommunicationError{cause: cause}
}
