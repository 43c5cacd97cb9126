package reading

import (
	"errors"
	"fmt"
	"strings"
)

// Validation errors for Reading construction.
//
// These can be checked with errors.Is():
//
//	if errors.Is(err, reading.ErrInvalidID) {
//	    // handle malformed probe identity
//	}
var (
	// ErrInvalidTime is returned when the timestamp string is empty.
	ErrInvalidTime = errors.New("reading: invalid time")

	// ErrInvalidTick is returned when the tick is negative.
	ErrInvalidTick = errors.New("reading: invalid tick")

	// ErrInvalidID is returned when the composite identity is not of the
	// form "<site>:<sensor>" with exactly one separator and non-empty halves.
	ErrInvalidID = errors.New("reading: invalid id")

	// ErrInvalidStatus is returned when the status string is empty.
	ErrInvalidStatus = errors.New("reading: invalid status")
)

// IDSeparator separates the site half from the sensor half of a probe
// identity, e.g. "G4:M0".
const IDSeparator = ":"

// Reading is one sensor observation. The zero value is not valid; use New.
//
// Fields are unexported so a constructed Reading cannot be mutated. A
// Reading is destroyed by normal scope exit; there is no teardown.
type Reading struct {
	time   string
	tick   int
	id     string
	value  string
	status string
}

// New validates its arguments and constructs a Reading.
//
// Parameters:
//   - timestamp: wall-clock time of the observation, already formatted
//     (must be non-empty; the caller owns the format)
//   - tick: logical clock value at observation time (must be >= 0)
//   - id: composite identity "<site>:<sensor>", exactly one separator,
//     both halves non-empty
//   - value: device-specific value encoding (e.g. "400" for 400 mm)
//   - status: probe status, e.g. "OK" or "Fault Detected" (non-empty)
//
// Returns:
//   - Reading: the constructed value
//   - error: one of the ErrInvalid* sentinels, wrapped with detail
func New(timestamp string, tick int, id, value, status string) (Reading, error) {
	if timestamp == "" {
		return Reading{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	if tick < 0 {
		return Reading{}, fmt.Errorf("%w: %d", ErrInvalidTick, tick)
	}

	if err := validateID(id); err != nil {
		return Reading{}, err
	}

	if status == "" {
		return Reading{}, fmt.Errorf("%w: empty", ErrInvalidStatus)
	}

	return Reading{
		time:   timestamp,
		tick:   tick,
		id:     id,
		value:  value,
		status: status,
	}, nil
}

// validateID checks the "<site>:<sensor>" composite identity format.
func validateID(id string) error {
	parts := strings.Split(id, IDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// SplitID decomposes a composite identity into its site and sensor halves.
//
// Returns an error if the identity is malformed (missing separator, extra
// separators, or an empty half).
func SplitID(id string) (siteID, sensorID string, err error) {
	if err := validateID(id); err != nil {
		return "", "", err
	}
	site, sensor, _ := strings.Cut(id, IDSeparator)
	return site, sensor, nil
}

// ID returns the full composite identity, e.g. "G4:M0".
func (r Reading) ID() string { return r.id }

// SiteID returns the site half of the identity, e.g. "G4".
func (r Reading) SiteID() string {
	site, _, _ := strings.Cut(r.id, IDSeparator)
	return site
}

// SensorID returns the sensor half of the identity, e.g. "M0".
func (r Reading) SensorID() string {
	_, sensor, _ := strings.Cut(r.id, IDSeparator)
	return sensor
}

// Time returns the formatted observation time.
func (r Reading) Time() string { return r.time }

// Tick returns the logical clock value the reading was taken on.
func (r Reading) Tick() int { return r.tick }

// Value returns the device-specific value encoding.
func (r Reading) Value() string { return r.value }

// Status returns the probe status at observation time.
func (r Reading) Status() string { return r.status }

// Equal reports whether two readings carry the same content.
//
// Time and tick are deliberately ignored: two readings are equal iff their
// id, value and status match, which makes content-based deduplication
// independent of when or on which tick a value was recorded.
func (r Reading) Equal(other Reading) bool {
	return r.id == other.id &&
		r.value == other.value &&
		r.status == other.status
}

// String renders the reading for logs and diagnostics.
func (r Reading) String() string {
	return fmt.Sprintf("Reading at time %s, and tick %d, from probe: %s, with value: %s, and status: %s",
		r.time, r.tick, r.id, r.value, r.status)
}

// AsCSV renders the reading as one comma-separated row in field order
// time, tick, id, value, status. Fields are not quoted; values containing
// the delimiter are the caller's problem.
func (r Reading) AsCSV() string {
	return fmt.Sprintf("%s,%d,%s,%s,%s", r.time, r.tick, r.id, r.value, r.status)
}
