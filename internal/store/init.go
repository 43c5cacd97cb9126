package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverwatch/rivercore/internal/reading"
)

// Initialise prepares the shared store for this node.
//
// Every node ensures its own site tables exist and resets its own row in
// the status table to a clean "Initialising..." state. The coordinator
// additionally runs an integrity check and rebuilds the control rows for
// every configured site, so a cold boot of the coordinator yields a clean
// slate of lock state while other nodes can come and go without touching
// global locks.
//
// Requires a live store session; returns ErrNotConnected otherwise.
func (c *Connection) Initialise(ctx context.Context) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	if c.cfg.IsCoordinator() {
		if err := c.initCoordinator(ctx); err != nil {
			return err
		}
	} else {
		if err := c.ensureSiteTables(ctx, c.siteID); err != nil {
			return err
		}
	}

	if err := c.resetOwnStatus(ctx); err != nil {
		return err
	}

	c.initDone.Store(true)
	c.log.Info("store initialised", "coordinator", c.cfg.IsCoordinator())
	return nil
}

// initCoordinator runs the coordinator-only reinitialisation: integrity
// check, then a control-table rebuild for every registered site.
func (c *Connection) initCoordinator(ctx context.Context) error {
	if err := c.integrityCheck(ctx); err != nil {
		return err
	}

	for _, siteID := range c.cfg.SiteIDs() {
		if err := c.ensureSiteTables(ctx, siteID); err != nil {
			return err
		}
		if err := c.rebuildControlRows(ctx, siteID); err != nil {
			return err
		}
	}
	return nil
}

// integrityCheck asks the store to verify itself. A non-ok verdict is
// logged but not fatal: a partly damaged store still beats no store, and
// the damage is surfaced for an operator.
func (c *Connection) integrityCheck(ctx context.Context) error {
	verdict := "ok"
	scan := func(rows *sql.Rows) (any, error) {
		if !rows.Next() {
			return nil, nil
		}
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		return v, rows.Err()
	}

	value, err := c.fetch(ctx, c.retries, scan, "PRAGMA quick_check")
	if err != nil {
		return err
	}
	if v, ok := value.(string); ok {
		verdict = v
	}
	if verdict != "ok" {
		c.log.Warn("store integrity check reported damage", "verdict", verdict)
	}
	return nil
}

// ensureSiteTables creates a site's control and readings tables if they do
// not exist yet. Table names come from the validated site registry.
func (c *Connection) ensureSiteTables(ctx context.Context, siteID string) error {
	control := `CREATE TABLE IF NOT EXISTS ` + controlTable(siteID) + ` (
		"Device ID" TEXT PRIMARY KEY,
		"Device Status" TEXT NOT NULL,
		"Request" TEXT NOT NULL,
		"Locked By" TEXT NOT NULL
	)`
	if _, err := c.exec(ctx, c.retries, control); err != nil {
		return fmt.Errorf("creating control table for %s: %w", siteID, err)
	}

	readings := `CREATE TABLE IF NOT EXISTS ` + readingsTable(siteID) + ` (
		"ID" INTEGER PRIMARY KEY AUTOINCREMENT,
		"Probe ID" TEXT NOT NULL,
		"Tick" INTEGER NOT NULL,
		"Measure Time" TEXT NOT NULL,
		"Value" TEXT NOT NULL,
		"Status" TEXT NOT NULL
	)`
	if _, err := c.exec(ctx, c.retries, readings); err != nil {
		return fmt.Errorf("creating readings table for %s: %w", siteID, err)
	}
	return nil
}

// rebuildControlRows clears a site's control table and reinserts Unlocked
// rows for the whole-site device and every configured device.
func (c *Connection) rebuildControlRows(ctx context.Context, siteID string) error {
	if _, err := c.exec(ctx, c.retries, `DELETE FROM `+controlTable(siteID)); err != nil {
		return fmt.Errorf("clearing control table for %s: %w", siteID, err)
	}

	insert := `INSERT INTO ` + controlTable(siteID) +
		` ("Device ID", "Device Status", "Request", "Locked By") VALUES (?, ?, ?, ?)`

	// Registry entries are composite "<site>:<sensor>" ids; control rows
	// key on the sensor half. The whole-site device keys on the site id.
	devices := []string{siteID}
	for _, id := range c.cfg.Sites[siteID].Devices {
		_, sensor, err := reading.SplitID(id)
		if err != nil {
			return fmt.Errorf("registry device id %q: %w", id, err)
		}
		devices = append(devices, sensor)
	}
	for _, deviceID := range devices {
		if _, err := c.exec(ctx, c.retries, insert,
			deviceID, StatusUnlocked, NoneValue, NoneValue); err != nil {
			return fmt.Errorf("inserting control row %s:%s: %w", siteID, deviceID, err)
		}
	}
	return nil
}

// resetOwnStatus deletes and reinserts this node's status row so boot
// always starts from a known state.
func (c *Connection) resetOwnStatus(ctx context.Context) error {
	if _, err := c.exec(ctx, c.retries,
		`DELETE FROM "SystemStatus" WHERE "System ID" = ?`, c.siteID); err != nil {
		return err
	}

	insert := `INSERT INTO "SystemStatus" ("System ID", "Pi Status", "Software Status", "Current Action") ` +
		`VALUES (?, ?, ?, ?)`
	if _, err := c.exec(ctx, c.retries,
		insert, c.siteID, "Up", "Initialising...", NoneValue); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastPiStatus = "Up"
	c.lastSwStatus = "Initialising..."
	c.lastAction = NoneValue
	c.mu.Unlock()
	return nil
}
