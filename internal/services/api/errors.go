package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// RequestError is a non-2xx answer from the API.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
	RetryAfter time.Duration
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// StatusCode extracts the HTTP status carried by err, or 0 when err is not
// (and does not wrap) a RequestError.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}
