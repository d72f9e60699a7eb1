package rest

import "fmt"

// NetworkError is returned for any response with status >= 400 (other
// than 401) and for transport-level failures. Callers abort the operation
// and log; only the retry-poll coordinator retries, within its bounded loop.
type NetworkError struct {
	Status int
	URL    string
	Body   string
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request %s failed with status %d", e.URL, e.Status)
}

// AuthRequired is returned for 401 responses. It carries the auth location
// found in the body; the caller is expected to redirect, not to treat the
// response as a failure.
type AuthRequired struct {
	Location string
}

func (e *AuthRequired) Error() string {
	return fmt.Sprintf("authentication required (location %q)", e.Location)
}
