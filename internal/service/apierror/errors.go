// Package apierror defines the errors shared by the outbound API clients.
package apierror

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration means a required credential or setting is missing.
	// No network call is made when it is returned.
	ErrConfiguration = errors.New("configuration error")

	// ErrMalformedResponse means a 2xx response did not have the expected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// ServiceError is a non-2xx response from a remote service. Body holds the
// full response body as returned by the service.
type ServiceError struct {
	Service string
	Status  int
	Body    string
}

func (e *ServiceError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s error: status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s error: status %d: %s", e.Service, e.Status, e.Body)
}

// Missing returns a configuration error naming the missing setting.
func Missing(setting string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfiguration, setting)
}

// AsServiceError unwraps err into a *ServiceError.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Kind classifies err for metrics labels and API responses.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	}
	if _, ok := AsServiceError(err); ok {
		return "service"
	}
	return "transport"
}
