package store

import (
	"context"
	"fmt"

	"github.com/riverwatch/rivercore/internal/reading"
)

// timeLayout formats event and reading timestamps written to the store.
const timeLayout = "2006-01-02 15:04:05.000000"

// controlTable returns the quoted control table name for a site.
// Site ids are validated against the registry before use, so building the
// table name from them is safe.
func controlTable(siteID string) string {
	return `"` + siteID + `Control"`
}

// readingsTable returns the quoted readings table name for a site.
func readingsTable(siteID string) string {
	return `"` + siteID + `Readings"`
}

// validateSite checks a site id against the registry.
func (c *Connection) validateSite(siteID string) error {
	if siteID == "" || !c.cfg.HasSite(siteID) {
		return fmt.Errorf("%w: %q", ErrInvalidSite, siteID)
	}
	return nil
}

// validateSensor checks a sensor/device id against the registry.
// When allowVirtual is true the whole-site virtual device (sensor id equal
// to the site id) is accepted, as the control path needs.
func (c *Connection) validateSensor(siteID, sensorID string, allowVirtual bool) error {
	if allowVirtual && sensorID == siteID {
		return nil
	}
	if sensorID == "" || !c.cfg.HasSensor(siteID, sensorID) {
		return fmt.Errorf("%w: %q", ErrInvalidSensor, sensorID)
	}
	return nil
}

// GetLatestReading returns the most recent reading for the given sensor at
// the given site.
//
// Returns ErrNoData when the sensor has no readings yet.
func (c *Connection) GetLatestReading(ctx context.Context, siteID, sensorID string) (reading.Reading, error) {
	// Argument validation happens in GetNLatestReadings.
	readings, err := c.GetNLatestReadings(ctx, siteID, sensorID, 1)
	if err != nil {
		return reading.Reading{}, err
	}
	if len(readings) == 0 {
		return reading.Reading{}, ErrNoData
	}
	return readings[0], nil
}

// GetNLatestReadings returns up to n most recent readings for the given
// sensor, newest first. Fewer than n readings means the history is short;
// malformed stored rows are skipped so the batch returns as many good
// readings as possible rather than failing outright.
//
// Parameters:
//   - siteID: site that owns the readings table
//   - sensorID: probe whose readings to fetch, e.g. "M0"
//   - n: maximum readings to return (must be positive)
func (c *Connection) GetNLatestReadings(ctx context.Context, siteID, sensorID string, n int) ([]reading.Reading, error) {
	if err := c.validateSite(siteID); err != nil {
		return nil, err
	}
	if err := c.validateSensor(siteID, sensorID, false); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}

	query := `SELECT "ID", "Probe ID", "Tick", "Measure Time", "Value", "Status" FROM ` +
		readingsTable(siteID) + ` WHERE "Probe ID" = ? ORDER BY "ID" DESC LIMIT ?`

	value, err := c.fetch(ctx, c.retries, scanReadings(siteID, sensorID), query, sensorID, n)
	if err != nil {
		return nil, err
	}
	readings, _ := value.([]reading.Reading)
	return readings, nil
}

// GetState returns the control row for the given device: whether it is
// locked, what has been requested, and which site holds the lock.
//
// Returns ErrNoData when no control row exists for the device.
func (c *Connection) GetState(ctx context.Context, siteID, sensorID string) (DeviceState, error) {
	if err := c.validateSite(siteID); err != nil {
		return DeviceState{}, err
	}
	if err := c.validateSensor(siteID, sensorID, true); err != nil {
		return DeviceState{}, err
	}

	query := `SELECT "Device ID", "Device Status", "Request", "Locked By" FROM ` +
		controlTable(siteID) + ` WHERE "Device ID" = ? LIMIT 1`

	value, err := c.fetch(ctx, c.retries, scanState, query, sensorID)
	if err != nil {
		return DeviceState{}, err
	}
	state, ok := value.(DeviceState)
	if !ok {
		return DeviceState{}, ErrNoData
	}
	return state, nil
}

// GetStatus returns the system status row for the given site.
//
// Returns ErrNoData when the site has no status row.
func (c *Connection) GetStatus(ctx context.Context, siteID string) (SiteStatus, error) {
	if err := c.validateSite(siteID); err != nil {
		return SiteStatus{}, err
	}

	query := `SELECT "System ID", "Pi Status", "Software Status", "Current Action" ` +
		`FROM "SystemStatus" WHERE "System ID" = ?`

	value, err := c.fetch(ctx, c.retries, scanStatus, query, siteID)
	if err != nil {
		return SiteStatus{}, err
	}
	status, ok := value.(SiteStatus)
	if !ok {
		return SiteStatus{}, ErrNoData
	}
	return status, nil
}

// LogEvent appends an event to the site-wide event log.
//
// Consecutive identical events from this connection are suppressed so a
// control loop stuck in one state does not flood the log; any different
// event in between resets the memory.
func (c *Connection) LogEvent(ctx context.Context, event string, severity Severity) error {
	if event == "" {
		return fmt.Errorf("%w: empty", ErrInvalidEvent)
	}
	if !severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, severity)
	}

	c.mu.Lock()
	if event == c.lastEvent {
		c.mu.Unlock()
		return nil
	}
	c.lastEvent = event
	c.mu.Unlock()

	query := `INSERT INTO "EventLog" ("Site ID", "Severity", "Event", "Device Time") VALUES (?, ?, ?, ?)`

	_, err := c.exec(ctx, c.retries, query,
		c.siteID, string(severity), event, c.now().Format(timeLayout))
	return err
}

// UpdateStatus records this node's status in the shared status table.
//
// Identical consecutive updates are suppressed; when the status actually
// changes an "Updated status" entry is also appended to the event log.
//
// Parameters:
//   - piStatus: machine status, e.g. "Up"
//   - swStatus: software status, free text
//   - currentAction: what the node is doing right now, free text
func (c *Connection) UpdateStatus(ctx context.Context, piStatus, swStatus, currentAction string) error {
	if piStatus == "" || swStatus == "" || currentAction == "" {
		return fmt.Errorf("%w: status fields must be non-empty", ErrInvalidStatus)
	}

	c.mu.Lock()
	if piStatus == c.lastPiStatus && swStatus == c.lastSwStatus && currentAction == c.lastAction {
		c.mu.Unlock()
		return nil
	}
	c.lastPiStatus = piStatus
	c.lastSwStatus = swStatus
	c.lastAction = currentAction
	c.mu.Unlock()

	query := `UPDATE "SystemStatus" SET "Pi Status" = ?, "Software Status" = ?, ` +
		`"Current Action" = ? WHERE "System ID" = ?`

	if _, err := c.exec(ctx, c.retries, query, piStatus, swStatus, currentAction, c.siteID); err != nil {
		return err
	}

	return c.LogEvent(ctx, "Updated status", SeverityInfo)
}

// StoreReading appends a reading to this site's readings history table.
func (c *Connection) StoreReading(ctx context.Context, r reading.Reading) error {
	if r.ID() == "" {
		return fmt.Errorf("%w: zero reading", ErrInvalidSensor)
	}

	query := `INSERT INTO ` + readingsTable(c.siteID) +
		` ("Probe ID", "Tick", "Measure Time", "Value", "Status") VALUES (?, ?, ?, ?, ?)`

	_, err := c.exec(ctx, c.retries, query,
		r.SensorID(), r.Tick(), r.Time(), r.Value(), r.Status())
	return err
}

// StoreTick persists the system tick. Ticks are only persisted by the
// coordinator; on any other node this is a no-op.
func (c *Connection) StoreTick(ctx context.Context, tick int) error {
	if !c.cfg.IsCoordinator() {
		return nil
	}

	query := `INSERT INTO "SystemTick" ("Tick", "System Time") VALUES (?, ?)`

	_, err := c.exec(ctx, c.retries, query, tick, c.now().Format(timeLayout))
	return err
}

// LatestTick returns the most recently persisted system tick, used to
// restore the logical clock on coordinator bootup.
//
// Returns ErrNoData on non-coordinator nodes and when no tick has ever
// been stored.
func (c *Connection) LatestTick(ctx context.Context) (int, error) {
	if !c.cfg.IsCoordinator() {
		return 0, ErrNoData
	}

	query := `SELECT "ID", "Tick", "System Time" FROM "SystemTick" ORDER BY "ID" DESC LIMIT 1`

	value, err := c.fetch(ctx, c.retries, scanTick, query)
	if err != nil {
		return 0, err
	}
	tick, ok := value.(int)
	if !ok {
		return 0, ErrNoData
	}
	return tick, nil
}
