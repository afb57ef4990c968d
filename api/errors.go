package api

import "fmt"

// ApiError is any backend failure: a non-2xx response, or a request that never
// reached the backend at all (Status 0). Network-unreachable failures are
// deliberately not distinguished from generic backend errors.
type ApiError struct {
	Status  int
	Message string
}

func (e *ApiError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: request failed: %s", e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("api: backend returned status %d", e.Status)
	}
	return fmt.Sprintf("api: backend returned status %d: %s", e.Status, e.Message)
}

// AuthenticationError is a failed login: invalid credentials or any other
// failure of the login endpoint. Message is safe to show to the user.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// genericLoginFailure is shown when the backend gave no usable message.
const genericLoginFailure = "could not sign in, check your credentials and try again"
