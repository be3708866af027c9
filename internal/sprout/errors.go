package sprout

import "errors"

// Error taxonomy for remote and local operations. Remote backends wrap these
// sentinels so callers can branch with errors.Is regardless of the backend.
var (
	// ErrNotFound indicates an expected document is missing. Callers often
	// treat this as "use the empty value" rather than a failure.
	ErrNotFound = errors.New("not found")

	// ErrRemoteUnavailable indicates a network or service failure. The
	// operation may be retried or surfaced to the user.
	ErrRemoteUnavailable = errors.New("remote unavailable")

	// ErrPermissionDenied indicates the principal lacks rights for the
	// operation. Fatal to the operation; never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrValidation indicates invalid input caught before any remote call.
	ErrValidation = errors.New("validation failed")

	// ErrTimerRunning is returned by TimerTracker.Start when a timer of the
	// requested category is already running.
	ErrTimerRunning = errors.New("timer already running for category")

	// ErrTornDown is returned when an operation is attempted on a
	// coordinator that has been torn down.
	ErrTornDown = errors.New("coordinator torn down")
)
