package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// HTTPError represents a non-success provider response, signaled via status
// code per the adapter contract.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d from %s", e.Status, e.URL)
}

// Transient reports whether the status indicates a server-side issue that is
// safe to retry.
func (e *HTTPError) Transient() bool {
	switch e.Status {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}

// IsTransient returns true if the error (or any error in its chain) is a
// retryable provider failure: a transient HTTP status, a network timeout, or
// a broken connection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return he.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Heuristics for wrapped transport errors that lose their type.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
