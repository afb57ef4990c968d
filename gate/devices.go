package gate

import (
	"context"
	"time"

	"github.com/spotin-app/spotin-go/geo"
)

// LocationProvider abstracts the device geolocation service.
type LocationProvider interface {
	// CurrentCoordinate acquires a fresh fix. Honour ctx: the gate imposes a
	// hard timeout and discards late results.
	CurrentCoordinate(ctx context.Context) (geo.Coordinate, error)

	// LastKnownCoordinate returns the most recent cached fix and when it was
	// taken, or ErrNoCachedFix.
	LastKnownCoordinate(ctx context.Context) (geo.Coordinate, time.Time, error)
}

// BiometricPrompter abstracts the device biometric confirmation dialog.
// Implementations on devices without the hardware return
// ErrBiometricsUnsupported, which skips the step entirely.
type BiometricPrompter interface {
	Confirm(ctx context.Context, message string) (bool, error)
}
