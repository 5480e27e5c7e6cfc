// Package aierr holds the sentinel errors shared by every completion provider.
package aierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// Transport maps transport-level errors to sentinel errors.
func Transport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}

// Status maps a non-2xx HTTP status to a sentinel error. Throttling and server
// faults count as unavailability; anything else means the request or reply was bad.
func Status(code int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		body = body[:200]
	}
	if code == http.StatusTooManyRequests || code >= 500 {
		return fmt.Errorf("%w: status %d: %s", ErrProviderUnavailable, code, body)
	}
	return fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, code, body)
}
