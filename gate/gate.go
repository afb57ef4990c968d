// Package gate implements the attendance-eligibility state machine: a gate
// instance decides, for one in-progress marking flow, whether a mark may be
// submitted. A gate combines the QR capture, the geofence verification and the
// optional biometric confirmation, then issues the mark call exactly once.
package gate

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/spotin-app/spotin-go/api"
	"github.com/spotin-app/spotin-go/geo"
)

// State is the explicit position of a gate in its lifecycle. The QR and
// location checks are order-independent; both must pass before Ready.
type State int

const (
	StateIdle State = iota
	StateQRCaptured
	StateLocationVerified
	StateReady
	StateSubmitting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateQRCaptured:
		return "qr_captured"
	case StateLocationVerified:
		return "location_verified"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

const (
	locationTimeout = 5 * time.Second
	cachedFixMaxAge = 2 * time.Minute

	biometricMessage = "Confirm your identity to mark attendance"
)

// AttendanceAPI is the slice of the api client the gate needs.
type AttendanceAPI interface {
	MarkAttendance(ctx context.Context, qrToken string, lat, lng float64) (*api.AttendanceRecord, error)
}

// Gate is a single-flow eligibility gate. Construct a fresh instance when the
// marking screen is entered and discard it after a successful submission,
// an explicit cancel, or navigation away. Never persisted.
type Gate struct {
	flowID     uuid.UUID
	target     geo.GeofenceTarget
	locations  LocationProvider
	biometrics BiometricPrompter
	backend    AttendanceAPI
	log        zerolog.Logger
	nowTime    func() time.Time

	mu           sync.Mutex
	state        State
	token        string
	qrScanned    bool
	verified     bool
	submitting   bool
	done         bool
	lastCoord    *geo.Coordinate
	lastDistance *float64
	failure      error
}

// Option modifies a Gate instance.
type Option func(*Gate)

// WithBiometrics enables the biometric confirmation step. Without it the step
// is skipped, matching devices that lack the hardware.
func WithBiometrics(prompter BiometricPrompter) Option {
	return func(g *Gate) { g.biometrics = prompter }
}

// WithLogger sets the logger; every event carries the gate's flow ID.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(g *Gate) { g.nowTime = nowFunc }
}

// New initialises a gate for one marking flow.
func New(target geo.GeofenceTarget, locations LocationProvider, backend AttendanceAPI, options ...Option) (*Gate, error) {
	if target.RadiusMeters <= 0 {
		return nil, errors.New("[gate.New] target radius must be positive")
	}
	if locations == nil {
		return nil, errors.New("[gate.New] location provider is required")
	}
	if backend == nil {
		return nil, errors.New("[gate.New] attendance API is required")
	}

	g := &Gate{
		flowID:    uuid.New(),
		target:    target,
		locations: locations,
		backend:   backend,
		log:       zerolog.Nop(),
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	g.log = g.log.With().Str("flow_id", g.flowID.String()).Logger()
	return g, nil
}

// FlowID identifies this gate instance in logs.
func (g *Gate) FlowID() uuid.UUID { return g.flowID }

// ScanQR records a decoded QR payload. The payload is an opaque capability:
// it is forwarded verbatim to the backend, never parsed locally beyond
// non-emptiness. Empty or blank payloads are rejected with ErrInvalidScan and
// the gate does not advance. Scans arriving while a submission is in flight,
// or after the gate completed, are dropped.
func (g *Gate) ScanQR(rawPayload string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.submitting || g.done {
		g.log.Debug().Msg("ignoring QR scan on a busy or completed gate")
		return nil
	}

	token := strings.TrimSpace(rawPayload)
	if token == "" {
		return ErrInvalidScan
	}

	g.token = token
	g.qrScanned = true
	g.advanceLocked()
	g.log.Debug().Str("state", g.state.String()).Msg("qr captured")
	return nil
}

// VerifyLocation acquires the device position and checks it against the fence.
// The measured distance is recorded whether or not the check passes, so the UI
// can show how far away the user is. Acquisition failures surface as
// *LocationUnavailableError and leave the gate's flags untouched.
//
// The strategy is two-tier: a cached fix fresher than two minutes that already
// falls inside the fence is accepted without waking the GPS; otherwise a live
// fix is fetched under a hard 5-second timeout. A fresh cached fix outside the
// fence still serves as a fallback when the live fetch fails, so out-of-range
// users get a distance instead of an opaque error.
func (g *Gate) VerifyLocation(ctx context.Context) (bool, float64, error) {
	g.mu.Lock()
	if g.submitting || g.done {
		verified := g.verified
		distance := 0.0
		if g.lastDistance != nil {
			distance = *g.lastDistance
		}
		g.mu.Unlock()
		g.log.Debug().Msg("ignoring location check on a busy or completed gate")
		return verified, distance, nil
	}
	g.mu.Unlock()

	coord, err := g.acquireCoordinate(ctx)
	if err != nil {
		g.log.Warn().Err(err).Msg("location acquisition failed")
		return false, 0, &LocationUnavailableError{Err: err}
	}

	within, distance := g.target.Contains(coord)

	g.mu.Lock()
	g.lastCoord = &coord
	g.lastDistance = &distance
	g.verified = within
	g.advanceLocked()
	state := g.state
	g.mu.Unlock()

	g.log.Debug().
		Float64("distance_m", distance).
		Bool("within_fence", within).
		Str("state", state.String()).
		Msg("location checked")
	return within, distance, nil
}

// Submit performs the optional biometric confirmation and issues the mark
// call. Valid only when both the QR and the location checks passed and no
// submission is in flight; otherwise it fails locally with ErrPrecondition and
// no network call is made. On success the gate is terminal: a second Submit on
// the same instance fails with ErrPrecondition. On a backend failure the gate
// stays retryable from Submit, unless the backend reported the token itself as
// spent, in which case the QR flag is cleared and the user must rescan.
func (g *Gate) Submit(ctx context.Context) (*api.AttendanceRecord, error) {
	g.mu.Lock()
	if g.done || g.submitting || !g.qrScanned || !g.verified || g.lastCoord == nil {
		state := g.state
		g.mu.Unlock()
		g.log.Warn().Str("state", state.String()).Msg("submit refused: preconditions not met")
		return nil, ErrPrecondition
	}
	g.submitting = true
	g.state = StateSubmitting
	token := g.token
	coord := *g.lastCoord
	g.mu.Unlock()

	if g.biometrics != nil {
		confirmed, err := g.biometrics.Confirm(ctx, biometricMessage)
		switch {
		case errors.Is(err, ErrBiometricsUnsupported):
			// No hardware: the confirmation is a soft requirement, skip it.
		case err != nil, !confirmed:
			g.mu.Lock()
			g.submitting = false
			g.state = StateReady
			g.mu.Unlock()
			g.log.Debug().Msg("biometric confirmation not given, submission aborted")
			return nil, ErrBiometricCancelled
		}
	}

	record, err := g.backend.MarkAttendance(ctx, token, coord.Lat, coord.Lng)

	g.mu.Lock()
	defer g.mu.Unlock()
	g.submitting = false

	if err != nil {
		g.failure = err
		g.state = StateFailed
		if tokenSpent(err) {
			// The backend burned the token; a retry with it can never succeed.
			g.token = ""
			g.qrScanned = false
			g.log.Warn().Err(err).Msg("backend rejected the QR token, rescan required")
		} else {
			g.log.Warn().Err(err).Msg("mark attendance failed, submit may be retried")
		}
		return nil, err
	}

	g.done = true
	g.state = StateDone
	g.log.Info().
		Str("attendance_id", record.ID).
		Str("result", string(record.Result)).
		Msg("attendance marked")
	return record, nil
}

// State returns the gate's current lifecycle state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// QRScanned reports whether a usable QR payload has been captured.
func (g *Gate) QRScanned() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qrScanned
}

// LocationVerified reports whether the last location check passed.
func (g *Gate) LocationVerified() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verified
}

// Submitting reports whether a submission is in flight.
func (g *Gate) Submitting() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.submitting
}

// LastMeasuredDistanceMeters returns the distance recorded by the most recent
// location check, if any.
func (g *Gate) LastMeasuredDistanceMeters() (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lastDistance == nil {
		return 0, false
	}
	return *g.lastDistance, true
}

// Failure returns the error that moved the gate to StateFailed, if any.
func (g *Gate) Failure() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failure
}

func (g *Gate) advanceLocked() {
	switch {
	case g.qrScanned && g.verified:
		g.state = StateReady
	case g.qrScanned:
		g.state = StateQRCaptured
	case g.verified:
		g.state = StateLocationVerified
	default:
		g.state = StateIdle
	}
}

func (g *Gate) acquireCoordinate(ctx context.Context) (geo.Coordinate, error) {
	cached, cachedFresh := g.freshCachedFix(ctx)
	if cachedFresh {
		if within, _ := g.target.Contains(cached); within {
			return cached, nil
		}
	}

	liveCtx, cancel := context.WithTimeout(ctx, locationTimeout)
	defer cancel()
	coord, err := g.locations.CurrentCoordinate(liveCtx)
	if err == nil {
		return coord, nil
	}
	if cachedFresh {
		return cached, nil
	}
	return geo.Coordinate{}, err
}

func (g *Gate) freshCachedFix(ctx context.Context) (geo.Coordinate, bool) {
	coord, takenAt, err := g.locations.LastKnownCoordinate(ctx)
	if err != nil {
		return geo.Coordinate{}, false
	}
	if g.nowTime().Sub(takenAt) > cachedFixMaxAge {
		return geo.Coordinate{}, false
	}
	return coord, true
}

// tokenSpent reports whether the backend said the QR token itself is no longer
// valid, as opposed to a transient failure worth retrying with the same token.
func tokenSpent(err error) bool {
	var apiErr *api.ApiError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Status {
	case http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
