package gate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScan rejects empty or blank QR payloads before they ever reach
	// the backend.
	ErrInvalidScan = errors.New("invalid or empty QR payload")

	// ErrPrecondition is returned when Submit is called before both the QR and
	// the location checks passed, or after the gate already completed. A
	// correctly wired UI never hits this; log it and move on, do not crash.
	ErrPrecondition = errors.New("attendance gate preconditions not met")

	// ErrBiometricCancelled means the user dismissed or failed the biometric
	// prompt. The submission is aborted before any backend call; this is a
	// normal outcome, not a crash to report upward.
	ErrBiometricCancelled = errors.New("biometric confirmation cancelled")

	// ErrBiometricsUnsupported is returned by BiometricPrompter implementations
	// on devices without biometric hardware. The confirmation step is skipped.
	ErrBiometricsUnsupported = errors.New("biometrics unsupported on this device")

	// ErrNoCachedFix is returned by LocationProvider.LastKnownCoordinate when
	// the device has no cached position.
	ErrNoCachedFix = errors.New("no cached location fix")
)

// LocationUnavailableError wraps a failed location acquisition: permission
// denied, provider disabled, or the 5-second timeout. The user may retry
// manually; nothing retries automatically.
type LocationUnavailableError struct {
	Err error
}

func (e *LocationUnavailableError) Error() string {
	return fmt.Sprintf("location unavailable: %v", e.Err)
}

func (e *LocationUnavailableError) Unwrap() error {
	return e.Err
}
