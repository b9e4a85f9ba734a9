package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/castnote/castnote/engine/core"
)

// IsNetworkError reports whether err stems from a transport failure
// rather than the remote rejecting the request.
func IsNetworkError(err error) bool {
	if core.IsTransport(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsTimeoutError reports whether err is a deadline, cancellation, or
// stream idle timeout.
func IsTimeoutError(err error) bool {
	if core.IsIdleTimeout(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsAuthError reports whether the remote rejected the credentials.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case "UNAUTHORIZED", "FORBIDDEN", "INVALID_TOKEN", "TOKEN_EXPIRED":
		return true
	}
	return false
}

// FormatError adds an actionable hint to classified failures.
func FormatError(err error) string {
	switch {
	case IsAuthError(err):
		return fmt.Sprintf("%v (check CASTNOTE_API_TOKEN)", err)
	case IsTimeoutError(err):
		return fmt.Sprintf("%v (the job keeps running remotely; retry with 'castnote resume')", err)
	case IsNetworkError(err):
		return fmt.Sprintf("%v (check CASTNOTE_API_BASE_URL and connectivity)", err)
	default:
		return err.Error()
	}
}
