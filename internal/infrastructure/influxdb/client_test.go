package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/riverwatch/rivercore/internal/infrastructure/config"
	"github.com/riverwatch/rivercore/internal/reading"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect(disabled) error = %v, want ErrDisabled", err)
	}
}

func TestDisconnectedClientIsInert(t *testing.T) {
	// A zero client must absorb writes and health checks without a
	// connection, since telemetry is best-effort.
	c := &Client{}

	if c.IsConnected() {
		t.Fatal("IsConnected() = true on zero client")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	r, err := reading.New("2026-04-01 10:00:00", 1, "G4:M0", "400", "OK")
	if err != nil {
		t.Fatalf("reading.New() error = %v", err)
	}
	c.WriteReading(r)
	c.WriteNodeStatus("G4", "Up", "Monitoring")
	c.Flush()

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
