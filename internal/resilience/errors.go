package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as retryable. Boundary clients wrap
// throttling and server-side failures in it so the retry loop can tell
// them from real mistakes like a bad request or a missing dataset.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient, with the HTTP status that
// caused it when one exists.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// retryableStatus holds the HTTP statuses worth another attempt: request
// timeout, throttling, and the 5xx family the census API and catalog
// emit under load.
var retryableStatus = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// IsTransientHTTPStatus reports whether a response status is retryable.
func IsTransientHTTPStatus(statusCode int) bool {
	return retryableStatus[statusCode]
}

// connFailures are dropped-connection messages that surface as plain
// wrapped errors from net/http and the FTP client. Census mirrors drop
// idle control connections routinely.
var connFailures = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether err is safe to retry: an explicit
// TransientError anywhere in the chain, a network timeout, a refused or
// reset connection, or a dropped-connection message from a transport
// that does not expose a typed error.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range connFailures {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
