package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an upstream failure as safe to retry. The model batch
// API, the embeddings API, and the vector index all wrap their retryable
// failures in it so Do can tell them apart from permanent ones.
type TransientError struct {
	Err        error
	StatusCode int // 0 when the failure was not an HTTP response
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient (status %d): %s", e.StatusCode, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient. statusCode may be 0.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// IsTransient reports whether the error is worth retrying: an explicit
// TransientError anywhere in the chain, a network-level timeout or broken
// connection, or a wrapped HTTP client error matching a known transient
// failure message.
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
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// HTTP clients stringify transport failures; match the usual suspects.
	msg := strings.ToLower(err.Error())
	for _, p := range transientMessages {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
	"overloaded_error", // Anthropic 529 body
}

// IsTransientHTTPStatus reports whether an HTTP status from the model or
// embeddings API is a server-side condition that clears on its own.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504,
		529: // Anthropic: overloaded
		return true
	default:
		return false
	}
}
