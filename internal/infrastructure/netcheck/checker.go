package netcheck

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"time"
)

// defaultTimeout bounds each probe when no timeout is configured.
const defaultTimeout = 2 * time.Second

// Checker is a boolean reachability oracle for a single peer host.
//
// Thread Safety:
//   - Alive may be called concurrently; a Checker holds no mutable state.
type Checker struct {
	host    string
	port    int
	timeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithTimeout sets the per-probe timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Checker) {
		c.timeout = timeout
	}
}

// WithTCPFallback enables a TCP dial to the given port when the ICMP probe
// fails. Some networks filter ICMP; a successful dial still proves the host
// is up.
func WithTCPFallback(port int) Option {
	return func(c *Checker) {
		c.port = port
	}
}

// New creates a Checker for the given host.
func New(host string, opts ...Option) *Checker {
	c := &Checker{
		host:    host,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the probed host.
func (c *Checker) Host() string {
	return c.host
}

// Alive reports whether the peer is reachable.
//
// It pings the peer once with a short timeout; on failure, and only if a
// TCP fallback port is configured, it additionally attempts a TCP dial.
//
// Parameters:
//   - ctx: Context for cancellation; a cancelled context reports not alive
//
// Returns:
//   - bool: true if the peer answered either probe
func (c *Checker) Alive(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	if c.ping(ctx) {
		return true
	}

	if c.port > 0 {
		return c.dial(ctx)
	}

	return false
}

// ping runs a single ICMP echo via the system ping binary.
func (c *Checker) ping(ctx context.Context) bool {
	// Round sub-second timeouts up: ping -W takes whole seconds.
	seconds := int(c.timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout+time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ping", "-c", "1", "-W", strconv.Itoa(seconds), c.host)
	return cmd.Run() == nil
}

// dial attempts a TCP connection to the fallback port.
func (c *Checker) dial(ctx context.Context) bool {
	dialer := &net.Dialer{Timeout: c.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.host, fmt.Sprint(c.port)))
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck // probe connection, nothing to report
	return true
}
