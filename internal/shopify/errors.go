package shopify

import (
	"errors"
	"fmt"
	"net/http"
)

// UpstreamError is a failed call to the Shopify API or a staged-upload target.
type UpstreamError struct {
	URL     string
	Status  int // 0 when the request never got a response
	Message string
	Err     error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("shopify %s: status %d: %s", e.URL, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("shopify %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("shopify %s: %s", e.URL, e.Message)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status
	}
	return 0
}

// IsRateLimited reports whether err is a 429 response.
func IsRateLimited(err error) bool {
	return StatusOf(err) == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// IsUnauthorized reports whether the token was rejected.
func IsUnauthorized(err error) bool {
	status := StatusOf(err)
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}
