package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientExplicit(t *testing.T) {
	assert.True(t, IsTransient(NewTransientError(errors.New("overloaded"), 529)))

	wrapped := fmt.Errorf("batch submit failed: %w", NewTransientError(errors.New("rate limited"), 429))
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientNilAndPermanent(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("invalid request: missing model")))
}

func TestIsTransientNetworkFailures(t *testing.T) {
	assert.True(t, IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)))
	assert.True(t, IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)))
	assert.True(t, IsTransient(&net.DNSError{IsTimeout: true, Err: "timeout"}))
}

func TestIsTransientMessagePatterns(t *testing.T) {
	for _, msg := range []string{
		"connection reset by peer",
		"broken pipe",
		"TLS handshake timeout",
		"i/o timeout",
		"api error: overloaded_error",
	} {
		assert.True(t, IsTransient(errors.New(msg)), msg)
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 409, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientErrorMessageAndUnwrap(t *testing.T) {
	inner := errors.New("root cause")

	te := NewTransientError(inner, 503)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "transient (status 503): root cause", te.Error())

	noStatus := NewTransientError(inner, 0)
	assert.Equal(t, "root cause", noStatus.Error())
}
