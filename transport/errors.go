package transport

import (
	"errors"
	"fmt"
)

// NetworkError reports a failed HTTP exchange: either the request never
// completed (Err set) or the server answered with a non-2xx status.
type NetworkError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s -> %d %s", e.Op, e.URL, e.StatusCode, e.Body)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError builds a NetworkError for an unexpected response status.
func StatusError(op, url string, resp *Response) *NetworkError {
	return &NetworkError{
		Op:         op,
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       string(resp.Body),
	}
}

// IsNetworkError reports whether err wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
