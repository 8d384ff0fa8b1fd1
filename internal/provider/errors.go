// Package provider holds what the engine shares across its outbound
// dependencies: the error taxonomy for remote failures and the retry policy
// applied to every external call.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// StatusError is a remote call that completed with a non-success HTTP status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote status %d: %s", e.Code, e.Body)
}

// IsRetryable classifies an outbound-call error. Server-side failures and
// throttling (5xx, 429) and network timeouts are transient; any other 4xx is
// a fatal input error and must not be retried.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
