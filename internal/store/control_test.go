package store

import (
	"context"
	"errors"
	"testing"
)

// setControlRow forces a device's control row to an arbitrary state, as if
// another site had written it.
func setControlRow(t *testing.T, c *Connection, siteID, deviceID, status, request, lockedBy string) {
	t.Helper()
	query := `UPDATE ` + controlTable(siteID) +
		` SET "Device Status" = ?, "Request" = ?, "Locked By" = ? WHERE "Device ID" = ?`
	if _, err := c.exec(context.Background(), 0, query, status, request, lockedBy, deviceID); err != nil {
		t.Fatalf("setting control row: %v", err)
	}
}

func newControlConn(t *testing.T) *Connection {
	t.Helper()
	c, _ := newTestConn(t, "NAS", true)
	if err := c.Initialise(context.Background()); err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	return c
}

func TestAttemptToControl(t *testing.T) {
	ctx := context.Background()

	t.Run("validates arguments", func(t *testing.T) {
		c := newControlConn(t)
		if _, err := c.AttemptToControl(ctx, "RIVER", "P0", "On"); !errors.Is(err, ErrInvalidSite) {
			t.Errorf("unknown site error = %v, want ErrInvalidSite", err)
		}
		if _, err := c.AttemptToControl(ctx, "NAS", "P9", "On"); !errors.Is(err, ErrInvalidSensor) {
			t.Errorf("unknown device error = %v, want ErrInvalidSensor", err)
		}
		if _, err := c.AttemptToControl(ctx, "NAS", "P0", ""); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("empty request error = %v, want ErrInvalidRequest", err)
		}
		if _, err := c.AttemptToControl(ctx, "NAS", "P0", NoneValue); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("None request error = %v, want ErrInvalidRequest", err)
		}
		// The whole-site device only takes the fixed vocabulary.
		if _, err := c.AttemptToControl(ctx, "NAS", "NAS", "On"); !errors.Is(err, ErrInvalidRequest) {
			t.Errorf("site-level free-form request error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("acquires an unlocked device", func(t *testing.T) {
		c := newControlConn(t)
		acquired, err := c.AttemptToControl(ctx, "SUMP", "P0", "On")
		if err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if !acquired {
			t.Fatal("AttemptToControl() = false, want acquired")
		}

		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		want := DeviceState{Status: StatusLocked, Request: "On", LockedBy: "NAS"}
		if state != want {
			t.Errorf("GetState() = %+v, want %+v", state, want)
		}

		events := countRows(t, c, `"EventLog" WHERE "Event" = 'Taking control of SUMP:P0, Request: On'`)
		if events != 1 {
			t.Errorf("takeover events = %d, want 1", events)
		}
	})

	t.Run("identical repeat is an acquired no-op", func(t *testing.T) {
		c := newControlConn(t)
		if _, err := c.AttemptToControl(ctx, "SUMP", "P0", "On"); err != nil {
			t.Fatalf("first AttemptToControl() error = %v", err)
		}

		before := totalChanges(t, c)
		acquired, err := c.AttemptToControl(ctx, "SUMP", "P0", "On")
		if err != nil {
			t.Fatalf("second AttemptToControl() error = %v", err)
		}
		if !acquired {
			t.Error("second AttemptToControl() = false, want acquired")
		}
		if after := totalChanges(t, c); after != before {
			t.Errorf("idempotent re-lock wrote %d rows", after-before)
		}
	})

	t.Run("own lock with a new request is rewritten", func(t *testing.T) {
		c := newControlConn(t)
		if _, err := c.AttemptToControl(ctx, "SUMP", "P0", "On"); err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		acquired, err := c.AttemptToControl(ctx, "SUMP", "P0", "50%")
		if err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if !acquired {
			t.Fatal("AttemptToControl() = false, want acquired")
		}
		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.Request != "50%" || state.LockedBy != "NAS" {
			t.Errorf("GetState() = %+v, want request 50%% held by NAS", state)
		}
	})

	t.Run("never overrides a foreign lock", func(t *testing.T) {
		c := newControlConn(t)
		setControlRow(t, c, "SUMP", "P0", StatusLocked, "50%", "SUMP")

		before := totalChanges(t, c)
		acquired, err := c.AttemptToControl(ctx, "SUMP", "P0", "On")
		if err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if acquired {
			t.Fatal("AttemptToControl() = true against a foreign lock")
		}
		if after := totalChanges(t, c); after != before {
			t.Errorf("losing attempt wrote %d rows", after-before)
		}

		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.LockedBy != "SUMP" || state.Request != "50%" {
			t.Errorf("foreign lock disturbed: %+v", state)
		}
	})

	t.Run("fails closed when the row is missing", func(t *testing.T) {
		c := newControlConn(t)
		if _, err := c.exec(ctx, 0, `DELETE FROM `+controlTable("SUMP")+` WHERE "Device ID" = ?`, "P0"); err != nil {
			t.Fatalf("deleting row: %v", err)
		}

		acquired, err := c.AttemptToControl(ctx, "SUMP", "P0", "On")
		if err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if acquired {
			t.Fatal("AttemptToControl() = true with no control row")
		}
	})

	t.Run("whole-site device takes the fixed vocabulary", func(t *testing.T) {
		c := newControlConn(t)
		acquired, err := c.AttemptToControl(ctx, "SUMP", "SUMP", "Reboot")
		if err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if !acquired {
			t.Fatal("AttemptToControl(site device) = false, want acquired")
		}
		state, err := c.GetState(ctx, "SUMP", "SUMP")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.Request != "Reboot" {
			t.Errorf("GetState().Request = %q, want Reboot", state.Request)
		}
	})
}

func TestReleaseControl(t *testing.T) {
	ctx := context.Background()

	t.Run("releases an owned lock", func(t *testing.T) {
		c := newControlConn(t)
		if _, err := c.AttemptToControl(ctx, "SUMP", "P0", "On"); err != nil {
			t.Fatalf("AttemptToControl() error = %v", err)
		}
		if err := c.ReleaseControl(ctx, "SUMP", "P0"); err != nil {
			t.Fatalf("ReleaseControl() error = %v", err)
		}

		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		want := DeviceState{Status: StatusUnlocked, Request: NoneValue, LockedBy: NoneValue}
		if state != want {
			t.Errorf("GetState() = %+v, want %+v", state, want)
		}

		events := countRows(t, c, `"EventLog" WHERE "Event" = 'Releasing control of SUMP:P0'`)
		if events != 1 {
			t.Errorf("release events = %d, want 1", events)
		}
	})

	t.Run("leaves foreign locks alone", func(t *testing.T) {
		c := newControlConn(t)
		setControlRow(t, c, "SUMP", "P0", StatusLocked, "50%", "SUMP")

		before := totalChanges(t, c)
		if err := c.ReleaseControl(ctx, "SUMP", "P0"); err != nil {
			t.Fatalf("ReleaseControl() error = %v", err)
		}
		if after := totalChanges(t, c); after != before {
			t.Errorf("release of a foreign lock wrote %d rows", after-before)
		}

		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.LockedBy != "SUMP" {
			t.Errorf("foreign lock disturbed: %+v", state)
		}
	})

	t.Run("unlocked and missing rows are no-ops", func(t *testing.T) {
		c := newControlConn(t)
		if err := c.ReleaseControl(ctx, "SUMP", "P0"); err != nil {
			t.Fatalf("ReleaseControl(unlocked) error = %v", err)
		}
		if _, err := c.exec(ctx, 0, `DELETE FROM `+controlTable("SUMP")+` WHERE "Device ID" = ?`, "P0"); err != nil {
			t.Fatalf("deleting row: %v", err)
		}
		if err := c.ReleaseControl(ctx, "SUMP", "P0"); err != nil {
			t.Fatalf("ReleaseControl(missing) error = %v", err)
		}
	})
}

func TestInitialise(t *testing.T) {
	ctx := context.Background()

	t.Run("coordinator builds every site", func(t *testing.T) {
		c := newControlConn(t)
		if !c.Initialised() {
			t.Fatal("Initialised() = false after Initialise")
		}

		for _, probe := range []struct{ site, device string }{
			{"NAS", "NAS"}, {"NAS", "P0"}, {"NAS", "P1"},
			{"SUMP", "SUMP"}, {"SUMP", "P0"},
		} {
			state, err := c.GetState(ctx, probe.site, probe.device)
			if err != nil {
				t.Fatalf("GetState(%s, %s) error = %v", probe.site, probe.device, err)
			}
			want := DeviceState{Status: StatusUnlocked, Request: NoneValue, LockedBy: NoneValue}
			if state != want {
				t.Errorf("GetState(%s, %s) = %+v, want %+v", probe.site, probe.device, state, want)
			}
		}

		status, err := c.GetStatus(ctx, "NAS")
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if status.PiStatus != "Up" || status.SoftwareStatus != "Initialising..." {
			t.Errorf("GetStatus() = %+v, want fresh boot state", status)
		}
	})

	t.Run("reinitialise clears stale locks", func(t *testing.T) {
		c := newControlConn(t)
		setControlRow(t, c, "SUMP", "P0", StatusLocked, "On", "SUMP")

		if err := c.Initialise(ctx); err != nil {
			t.Fatalf("second Initialise() error = %v", err)
		}
		state, err := c.GetState(ctx, "SUMP", "P0")
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		if state.Locked() {
			t.Errorf("stale lock survived reinitialisation: %+v", state)
		}
	})

	t.Run("non-coordinator leaves global lock state alone", func(t *testing.T) {
		c, _ := newTestConn(t, "SUMP", true)
		if err := c.Initialise(ctx); err != nil {
			t.Fatalf("Initialise() error = %v", err)
		}

		// Own tables exist but no control rows were created.
		if _, err := c.GetState(ctx, "SUMP", "P0"); !errors.Is(err, ErrNoData) {
			t.Errorf("GetState() error = %v, want ErrNoData", err)
		}

		status, err := c.GetStatus(ctx, "SUMP")
		if err != nil {
			t.Fatalf("GetStatus() error = %v", err)
		}
		if status.PiStatus != "Up" {
			t.Errorf("GetStatus().PiStatus = %q, want Up", status.PiStatus)
		}
	})

	t.Run("requires a live session", func(t *testing.T) {
		c, _ := newTestConn(t, "SUMP", false)
		if err := c.Initialise(ctx); !errors.Is(err, ErrNotConnected) {
			t.Fatalf("Initialise() error = %v, want ErrNotConnected", err)
		}
	})
}
