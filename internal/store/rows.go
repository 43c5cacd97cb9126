package store

import (
	"database/sql"

	"github.com/riverwatch/rivercore/internal/reading"
)

// Device lock states in the control tables.
const (
	StatusLocked   = "Locked"
	StatusUnlocked = "Unlocked"
)

// NoneValue is the literal recorded in control rows for "no request" and
// "no owner".
const NoneValue = "None"

// DeviceState is the decoded control row for one device.
type DeviceState struct {
	// Status is StatusLocked or StatusUnlocked.
	Status string

	// Request is the desired state recorded by the lock owner, or
	// NoneValue when unlocked.
	Request string

	// LockedBy is the site id of the owning node, or NoneValue.
	LockedBy string
}

// Locked reports whether the device is currently locked.
func (s DeviceState) Locked() bool {
	return s.Status == StatusLocked
}

// SiteStatus is the decoded SystemStatus row for one site.
type SiteStatus struct {
	PiStatus       string
	SoftwareStatus string
	CurrentAction  string
}

// Severity is an event log severity level.
type Severity string

// Event log severities.
const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// The scan functions below are the single deserialization boundary for the
// shared store: every row read by the node is decoded here, so arity and
// type checking live in one place instead of being repeated per accessor.

// scanState decodes one control row into a DeviceState.
//
// An empty result set or a malformed row yields a nil value, which the
// client layer reports as ErrNoData; a broken row is recovered from, not
// propagated, so one bad write by a peer cannot wedge every reader.
func scanState(rows *sql.Rows) (any, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var deviceID string
	var state DeviceState
	if err := rows.Scan(&deviceID, &state.Status, &state.Request, &state.LockedBy); err != nil {
		return nil, nil // malformed row, treat as no data
	}
	return state, nil
}

// scanStatus decodes one SystemStatus row into a SiteStatus.
// Empty or malformed result sets yield nil, reported as ErrNoData.
func scanStatus(rows *sql.Rows) (any, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var systemID string
	var status SiteStatus
	if err := rows.Scan(&systemID, &status.PiStatus, &status.SoftwareStatus, &status.CurrentAction); err != nil {
		return nil, nil
	}
	return status, nil
}

// scanTick decodes the newest SystemTick row into an int.
// Empty or malformed result sets yield nil, reported as ErrNoData.
func scanTick(rows *sql.Rows) (any, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	var id int64
	var tick int
	var systemTime string
	if err := rows.Scan(&id, &tick, &systemTime); err != nil {
		return nil, nil
	}
	return tick, nil
}

// scanReadings decodes reading rows for the given probe, newest first.
//
// Malformed rows are skipped, not fatal: a row with unscannable fields, a
// mismatched probe id, or values Reading construction rejects is dropped
// so the batch still returns as many good readings as possible.
func scanReadings(siteID, sensorID string) scanFunc {
	return func(rows *sql.Rows) (any, error) {
		var readings []reading.Reading

		for rows.Next() {
			var id int64
			var probeID string
			var tick int
			var measureTime, value, status string

			if err := rows.Scan(&id, &probeID, &tick, &measureTime, &value, &status); err != nil {
				continue // malformed row, deliver the rest
			}
			if probeID != sensorID {
				continue
			}

			r, err := reading.New(measureTime, tick, siteID+reading.IDSeparator+probeID, value, status)
			if err != nil {
				continue
			}
			readings = append(readings, r)
		}

		if err := rows.Err(); err != nil {
			return nil, err
		}
		return readings, nil
	}
}
