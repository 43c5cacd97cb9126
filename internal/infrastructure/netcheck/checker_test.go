package netcheck

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"
)

func TestAlive_LocalhostPing(t *testing.T) {
	c := New("127.0.0.1", WithTimeout(2*time.Second))

	if !c.Alive(context.Background()) {
		t.Skip("localhost ping failed; ping binary unavailable in this environment")
	}
}

func TestAlive_CancelledContext(t *testing.T) {
	c := New("127.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if c.Alive(ctx) {
		t.Error("Alive() with cancelled context = true, want false")
	}
}

func TestAlive_TCPFallback(t *testing.T) {
	// A listener on an ephemeral port stands in for the store host. The
	// unroutable ping target forces the fallback path.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close() //nolint:errcheck

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close() //nolint:errcheck
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port

	t.Run("dial succeeds against listener", func(t *testing.T) {
		c := New("127.0.0.1", WithTimeout(time.Second), WithTCPFallback(port))
		if !c.dial(context.Background()) {
			t.Error("dial() against live listener = false, want true")
		}
	})

	t.Run("dial fails against closed port", func(t *testing.T) {
		// Find a port that is very likely closed by closing one we owned.
		probe, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		closedPort := probe.Addr().(*net.TCPAddr).Port
		probe.Close() //nolint:errcheck

		c := New("127.0.0.1", WithTimeout(time.Second), WithTCPFallback(closedPort))
		if c.dial(context.Background()) {
			t.Errorf("dial() against closed port %s = true, want false", strconv.Itoa(closedPort))
		}
	})
}

func TestHost(t *testing.T) {
	c := New("192.168.0.25")
	if c.Host() != "192.168.0.25" {
		t.Errorf("Host() = %q", c.Host())
	}
}
