package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/riverwatch/rivercore/internal/reading"
)

// WriteReading records one sensor reading in the time-series store.
//
// The write is non-blocking; data is batched and sent asynchronously.
// Values that parse as numbers are written as floats so dashboards can
// graph them; anything else (fault markers, enum states) is written as a
// raw string field instead.
//
// Tags carry site, probe and status; the tick travels as a field because
// it is monotonically increasing and would explode tag cardinality.
func (c *Client) WriteReading(r reading.Reading) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"tick": r.Tick(),
	}
	if v, err := strconv.ParseFloat(r.Value(), 64); err == nil {
		fields["value"] = v
	} else {
		fields["raw"] = r.Value()
	}

	point := write.NewPoint(
		"readings",
		map[string]string{
			"site":   r.SiteID(),
			"probe":  r.SensorID(),
			"status": r.Status(),
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteNodeStatus records a node status transition.
//
// Parameters:
//   - siteID: Reporting node
//   - piStatus: Machine status, e.g. "Up"
//   - swStatus: Software status, free text
func (c *Client) WriteNodeStatus(siteID, piStatus, swStatus string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"node_status",
		map[string]string{
			"site": siteID,
		},
		map[string]interface{}{
			"pi_status":       piStatus,
			"software_status": swStatus,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}
