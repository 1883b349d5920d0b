package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns the client used for calls to sibling services. The
// timeout is deliberately short; callers wrap requests in a circuit breaker
// and treat failures as non-fatal.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
	}
}
