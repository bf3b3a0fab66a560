package session

import (
	"fmt"

	"github.com/tuniway/tuniway-web/backend"
	"github.com/tuniway/tuniway-web/internal/errors"
)

// AuthenticationError is returned by Login and Register when the backend
// rejects the attempt, the call fails in transit, or the response does not
// decode into a usable session. Transient and permanent failures are not
// distinguished.
type AuthenticationError struct {
	Status  int    // HTTP status when the backend answered, 0 otherwise
	Message string // Backend message suitable for display
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return errors.ErrAuthentication.Error()
	}
	return fmt.Sprintf("%s: %s", errors.ErrAuthentication, e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, errors.ErrAuthentication) hold for every
// AuthenticationError.
func (e *AuthenticationError) Is(target error) bool {
	return target == errors.ErrAuthentication
}

func newAuthenticationError(err error) *AuthenticationError {
	authErr := &AuthenticationError{Message: err.Error(), Err: err}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		authErr.Status = apiErr.Status
		authErr.Message = apiErr.Message
	}
	return authErr
}
