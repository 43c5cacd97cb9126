package store

import (
	"context"
	"errors"
	"fmt"
)

// siteRequests is the fixed vocabulary accepted for whole-site virtual
// devices. Individual devices take free-form requests ("On", "50%").
var siteRequests = map[string]struct{}{
	"Manual":   {},
	"Update":   {},
	"Reboot":   {},
	"Shutdown": {},
}

// AttemptToControl tries to take the lock on a device by updating its
// control row. The returned bool reports whether this site now holds the
// lock with the given request recorded.
//
// Arbitration is cooperative and fail-closed:
//   - a device locked by another site is never touched; returns false
//   - a missing or unreadable control row is treated as locked; returns false
//   - re-locking with the identical request is an acquired no-op
//
// Parameters:
//   - siteID: site whose control table holds the device
//   - deviceID: device to lock, or the site id for the whole-site device
//   - request: desired state to record alongside the lock
func (c *Connection) AttemptToControl(ctx context.Context, siteID, deviceID, request string) (bool, error) {
	if err := c.validateSite(siteID); err != nil {
		return false, err
	}
	if err := c.validateSensor(siteID, deviceID, true); err != nil {
		return false, err
	}
	if err := validateRequest(siteID, deviceID, request); err != nil {
		return false, err
	}

	state, err := c.GetState(ctx, siteID, deviceID)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			// No control row means the device's state is unknown.
			// Fail closed rather than invent one.
			return false, nil
		}
		return false, err
	}

	if state.Locked() {
		if state.LockedBy != c.siteID {
			return false, nil
		}
		if state.Request == request {
			// Already ours with the same request recorded.
			return true, nil
		}
	}

	// The guard re-checks ownership inside the write so two sites racing
	// past the read above cannot both claim the row.
	query := `UPDATE ` + controlTable(siteID) +
		` SET "Device Status" = ?, "Request" = ?, "Locked By" = ?` +
		` WHERE "Device ID" = ? AND ("Device Status" = ? OR "Locked By" = ?)`

	affected, err := c.exec(ctx, c.retries, query,
		StatusLocked, request, c.siteID,
		deviceID, StatusUnlocked, c.siteID)
	if err != nil {
		return false, err
	}
	if affected == 0 {
		// Another site won the race between our read and write.
		return false, nil
	}

	event := fmt.Sprintf("Taking control of %s:%s, Request: %s", siteID, deviceID, request)
	if err := c.LogEvent(ctx, event, SeverityInfo); err != nil {
		c.log.Warn("event log write failed", "event", event, "error", err)
	}
	return true, nil
}

// ReleaseControl gives up the lock on a device if this site holds it.
// Releasing a device that is unlocked, missing, or locked by another site
// is a no-op, so release is always safe to call during cleanup.
func (c *Connection) ReleaseControl(ctx context.Context, siteID, deviceID string) error {
	if err := c.validateSite(siteID); err != nil {
		return err
	}
	if err := c.validateSensor(siteID, deviceID, true); err != nil {
		return err
	}

	state, err := c.GetState(ctx, siteID, deviceID)
	if err != nil {
		if errors.Is(err, ErrNoData) {
			return nil
		}
		return err
	}
	if !state.Locked() || state.LockedBy != c.siteID {
		return nil
	}

	query := `UPDATE ` + controlTable(siteID) +
		` SET "Device Status" = ?, "Request" = ?, "Locked By" = ?` +
		` WHERE "Device ID" = ? AND "Locked By" = ?`

	if _, err := c.exec(ctx, c.retries, query,
		StatusUnlocked, NoneValue, NoneValue, deviceID, c.siteID); err != nil {
		return err
	}

	event := fmt.Sprintf("Releasing control of %s:%s", siteID, deviceID)
	if err := c.LogEvent(ctx, event, SeverityInfo); err != nil {
		c.log.Warn("event log write failed", "event", event, "error", err)
	}
	return nil
}

// validateRequest checks the request string for a control attempt. The
// whole-site virtual device only accepts the fixed site-level vocabulary.
func validateRequest(siteID, deviceID, request string) error {
	if request == "" || request == NoneValue {
		return fmt.Errorf("%w: %q", ErrInvalidRequest, request)
	}
	if deviceID == siteID {
		if _, ok := siteRequests[request]; !ok {
			return fmt.Errorf("%w: %q is not a site-level request", ErrInvalidRequest, request)
		}
	}
	return nil
}
