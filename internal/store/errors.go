package store

import "errors"

// Domain errors for the store package.
//
// Validation errors (ErrInvalid*) are caller bugs: they are raised
// synchronously and never retried. ErrNotConnected, ErrConnectionLost and
// ErrQueryFailed are connectivity conditions; convenience methods absorb
// them with their retry budget and only surface ErrQueryFailed once the
// budget is exhausted.
//
// Check with errors.Is():
//
//	if errors.Is(err, store.ErrNoData) {
//	    // row missing or store unreachable; fail closed
//	}
var (
	// ErrInvalidSite is returned when a site id is not in the registry.
	ErrInvalidSite = errors.New("store: invalid site id")

	// ErrInvalidSensor is returned when a sensor/device id is not
	// configured for the given site.
	ErrInvalidSensor = errors.New("store: invalid sensor id")

	// ErrInvalidRequest is returned when a control request is empty, or a
	// whole-site request is outside the fixed vocabulary.
	ErrInvalidRequest = errors.New("store: invalid request")

	// ErrInvalidEvent is returned when an event message is empty.
	ErrInvalidEvent = errors.New("store: invalid event")

	// ErrInvalidSeverity is returned when an event severity is not one of
	// the known levels.
	ErrInvalidSeverity = errors.New("store: invalid severity")

	// ErrInvalidStatus is returned when a status field is empty.
	ErrInvalidStatus = errors.New("store: invalid status")

	// ErrInvalidCount is returned when a reading count is not positive.
	ErrInvalidCount = errors.New("store: invalid number of readings")

	// ErrNotConnected is returned when a request is made while the actor
	// has no live store session. Fatal for the call; the caller decides
	// whether to try again later.
	ErrNotConnected = errors.New("store: not connected")

	// ErrConnectionLost is returned to callers whose pending requests were
	// abandoned by a disconnect. The request was not replayed.
	ErrConnectionLost = errors.New("store: connection lost")

	// ErrQueryFailed is returned when a query still fails after the retry
	// budget is exhausted.
	ErrQueryFailed = errors.New("store: query failed")

	// ErrNoData is returned when a lookup finds no row.
	ErrNoData = errors.New("store: no data available")

	// ErrShuttingDown is returned to requests abandoned by shutdown.
	ErrShuttingDown = errors.New("store: shutting down")
)
