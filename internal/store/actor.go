package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/riverwatch/rivercore/internal/infrastructure/config"
	"github.com/riverwatch/rivercore/internal/infrastructure/database"
	"github.com/riverwatch/rivercore/internal/infrastructure/logging"
	"github.com/riverwatch/rivercore/internal/infrastructure/netcheck"
)

// Timing constants for the connection actor.
const (
	// loopInterval is the worker's idle cadence.
	loopInterval = time.Second

	// livenessEvery is how many idle ticks pass between periodic peer
	// liveness re-checks (roughly once a minute at the 1 s cadence).
	livenessEvery = 60

	// reconnectBackoff is the sleep after a failed connection attempt.
	reconnectBackoff = 10 * time.Second

	// queryTimeout bounds a single store round trip.
	queryTimeout = 30 * time.Second

	// defaultRetries is the retry budget convenience methods use.
	defaultRetries = 3

	// requestQueueSize bounds the pending request queue. Producers on a
	// field node number in the single digits; a full queue means the
	// store has been gone for a while and callers should fail.
	requestQueueSize = 32
)

// LivenessChecker is the boolean reachability oracle consulted before and
// during a store session.
type LivenessChecker interface {
	Alive(ctx context.Context) bool
}

// Opener establishes the actual store connection. Injectable for tests.
type Opener func(ctx context.Context) (*database.DB, error)

// opKind distinguishes mutations from row-returning fetches.
type opKind int

const (
	opExec opKind = iota
	opFetch
)

// scanFunc consumes a result set and produces a typed value. It runs on
// the worker goroutine while the rows are live.
type scanFunc func(*sql.Rows) (any, error)

// request is one queued store operation with its reply mailbox.
type request struct {
	kind  opKind
	query string
	args  []any
	scan  scanFunc

	// reply is buffered so the worker never blocks on an abandoned caller.
	reply chan response
}

// response is the outcome of one request.
type response struct {
	value any
	err   error
}

func (r *request) fail(err error) {
	r.reply <- response{err: err}
}

// Connection is the per-node database connection actor.
//
// One Connection exists per process. Its Run method owns the live store
// handle; every other method is a client of the worker and safe for
// concurrent use from any goroutine.
type Connection struct {
	cfg    *config.Config
	siteID string
	log    *logging.Logger

	checker LivenessChecker
	open    Opener
	now     func() time.Time

	requests chan *request
	done     chan struct{}
	doneOnce sync.Once

	connected atomic.Bool
	running   atomic.Bool
	initDone  atomic.Bool

	// Tunables, fixed at the constants above outside of tests.
	loopInterval time.Duration
	backoff      time.Duration
	liveEvery    int
	retries      int

	// Dedup memory for the event/status writers.
	mu           sync.Mutex
	lastEvent    string
	lastPiStatus string
	lastSwStatus string
	lastAction   string
}

// Option configures a Connection.
type Option func(*Connection)

// WithChecker replaces the peer liveness checker.
func WithChecker(checker LivenessChecker) Option {
	return func(c *Connection) {
		c.checker = checker
	}
}

// WithOpener replaces the store connection factory.
func WithOpener(open Opener) Option {
	return func(c *Connection) {
		c.open = open
	}
}

// WithClock replaces the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		c.now = now
	}
}

// New creates the connection actor for this node.
//
// The node's site id is taken from the configuration and validated against
// the site registry. The actor does nothing until Run is started.
//
// Parameters:
//   - cfg: Validated node configuration and site registry
//   - log: Logger; the actor logs under component=store
//   - opts: Optional overrides (checker, opener, clock)
//
// Returns:
//   - *Connection: Actor ready to Run
//   - error: ErrInvalidSite if the configured site id is not registered
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*Connection, error) {
	siteID := cfg.Node.SiteID
	if !cfg.HasSite(siteID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSite, siteID)
	}

	c := &Connection{
		cfg:          cfg,
		siteID:       siteID,
		log:          log.With("component", "store", "site", siteID),
		now:          time.Now,
		requests:     make(chan *request, requestQueueSize),
		done:         make(chan struct{}),
		loopInterval: loopInterval,
		backoff:      reconnectBackoff,
		liveEvery:    livenessEvery,
		retries:      defaultRetries,
	}

	c.checker = netcheck.New(cfg.Store.Host,
		netcheck.WithTimeout(time.Duration(cfg.Store.PingTimeout)*time.Second),
		netcheck.WithTCPFallback(cfg.Store.Port),
	)

	c.open = func(ctx context.Context) (*database.DB, error) {
		db, err := database.Open(ctx, database.Config{
			Path:        cfg.Store.Path,
			WALMode:     cfg.Store.WALMode,
			BusyTimeout: cfg.Store.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		// A fresh store file has no schema; every connect brings the
		// shared tables up to date before the session is offered.
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SiteID returns the site id this node runs as.
func (c *Connection) SiteID() string {
	return c.siteID
}

// IsReady reports whether a live store session exists right now.
func (c *Connection) IsReady() bool {
	return c.connected.Load()
}

// Initialised reports whether the per-node initialisation sequence has run.
func (c *Connection) Initialised() bool {
	return c.initDone.Load()
}

// Running reports whether the worker loop is running.
func (c *Connection) Running() bool {
	return c.running.Load()
}

// Run is the worker loop. It blocks until ctx is cancelled and must run on
// exactly one goroutine; it is the only code that touches the store handle.
//
// State machine: Disconnected (probe peer, connect, back off on failure)
// and Connected (serve requests, re-check liveness periodically and per
// request, tear down on any failure). Requests pending at a disconnect are
// failed back to their callers, never replayed.
func (c *Connection) Run(ctx context.Context) {
	c.running.Store(true)

	var db *database.DB
	defer func() {
		c.connected.Store(false)
		if db != nil {
			db.Close() //nolint:errcheck // nothing to do about it on the way out
		}
		c.doneOnce.Do(func() { close(c.done) })
		c.failPending(ErrShuttingDown)
		c.running.Store(false)
		c.log.Info("store worker stopped")
	}()

	ticker := time.NewTicker(c.loopInterval)
	defer ticker.Stop()
	ticks := 0

	for {
		if ctx.Err() != nil {
			return
		}

		if db == nil {
			db = c.connect(ctx)
			if db == nil {
				// Unblock anyone waiting and abandon their requests;
				// they must retry, we do not replay.
				c.failPending(ErrNotConnected)
				if !sleepCtx(ctx, c.backoff) {
					return
				}
				continue
			}
			// Discard anything queued during the connection attempt; it
			// predates this session.
			c.failPending(ErrConnectionLost)
			ticks = 0
		}

		select {
		case <-ctx.Done():
			return

		case req := <-c.requests:
			// Query-level liveness check: a wedged network file system
			// can make a query hang far longer than its timeout.
			if !c.checker.Alive(ctx) {
				req.fail(ErrConnectionLost)
				db = c.teardown(db)
				continue
			}
			if err := c.execute(ctx, db, req); err != nil {
				db = c.teardown(db)
			}

		case <-ticker.C:
			ticks++
			if ticks >= c.liveEvery {
				ticks = 0
				if !c.checker.Alive(ctx) {
					db = c.teardown(db)
				}
			}
		}
	}
}

// connect probes the peer and opens a store session.
// Returns nil if either step fails.
func (c *Connection) connect(ctx context.Context) *database.DB {
	c.log.Info("attempting to connect to store", "host", c.checkerHost())

	if !c.checker.Alive(ctx) {
		c.log.Error("store host is down, retrying")
		return nil
	}

	db, err := c.open(ctx)
	if err != nil {
		c.log.Error("could not connect to store, retrying", "error", err)
		return nil
	}

	c.connected.Store(true)
	c.log.Info("connected to store")
	return db
}

// teardown closes the session and fails all pending requests.
// Always returns nil so callers can write `db = c.teardown(db)`.
func (c *Connection) teardown(db *database.DB) *database.DB {
	c.connected.Store(false)
	c.log.Error("store connection lost, reconnecting")

	if db != nil {
		db.Close() //nolint:errcheck // session is already broken
	}
	c.failPending(ErrConnectionLost)
	return nil
}

// failPending drains the request queue, replying err to every caller.
func (c *Connection) failPending(err error) {
	for {
		select {
		case req := <-c.requests:
			req.fail(err)
		default:
			return
		}
	}
}

// execute runs one request against the live session and replies to the
// caller. A non-nil return means a store-level failure: the caller has
// already been answered, and the session must be torn down.
func (c *Connection) execute(ctx context.Context, db *database.DB, req *request) error {
	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	switch req.kind {
	case opExec:
		res, err := db.ExecContext(qctx, req.query, req.args...)
		if err != nil {
			c.log.Error("query failed", "error", err)
			req.fail(fmt.Errorf("%w: %s", ErrQueryFailed, err))
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			req.fail(fmt.Errorf("%w: %s", ErrQueryFailed, err))
			return err
		}
		req.reply <- response{value: affected}

	case opFetch:
		rows, err := db.DB.QueryContext(qctx, req.query, req.args...)
		if err != nil {
			c.log.Error("query failed", "error", err)
			req.fail(fmt.Errorf("%w: %s", ErrQueryFailed, err))
			return err
		}
		value, scanErr := req.scan(rows)
		rows.Close() //nolint:errcheck // scan already consumed or abandoned them
		if scanErr != nil {
			req.fail(fmt.Errorf("%w: %s", ErrQueryFailed, scanErr))
			return scanErr
		}
		req.reply <- response{value: value}
	}

	return nil
}

// roundTrip submits one request and waits for its reply.
func (c *Connection) roundTrip(ctx context.Context, req *request) (any, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	select {
	case c.requests <- req:
	case <-c.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp.value, resp.err
	case <-c.done:
		return nil, ErrShuttingDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// do submits with a retry budget: the request is attempted retries+1
// times, stopping early on success or a non-retryable error. Exhaustion
// surfaces as ErrQueryFailed.
//
// Precondition: a live session must exist when the call starts, otherwise
// the call fails immediately with ErrNotConnected and the caller decides
// whether to come back later.
func (c *Connection) do(ctx context.Context, retries int, build func() *request) (any, error) {
	if !c.connected.Load() {
		return nil, ErrNotConnected
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		value, err := c.roundTrip(ctx, build())
		if err == nil {
			return value, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w: retries exhausted: %s", ErrQueryFailed, lastErr)
}

// retryable reports whether an error is a transient connectivity condition
// the retry budget should absorb.
func retryable(err error) bool {
	return errors.Is(err, ErrQueryFailed) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNotConnected)
}

// exec submits a mutation and returns the number of rows affected.
func (c *Connection) exec(ctx context.Context, retries int, query string, args ...any) (int64, error) {
	value, err := c.do(ctx, retries, func() *request {
		return &request{
			kind:  opExec,
			query: query,
			args:  args,
			reply: make(chan response, 1),
		}
	})
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// fetch submits a row-returning query; scan runs on the worker goroutine.
func (c *Connection) fetch(ctx context.Context, retries int, scan scanFunc, query string, args ...any) (any, error) {
	return c.do(ctx, retries, func() *request {
		return &request{
			kind:  opFetch,
			query: query,
			args:  args,
			scan:  scan,
			reply: make(chan response, 1),
		}
	})
}

// checkerHost names the probed host for logs, when known.
func (c *Connection) checkerHost() string {
	if nc, ok := c.checker.(*netcheck.Checker); ok {
		return nc.Host()
	}
	return "peer"
}

// sleepCtx sleeps for d, returning false early if ctx is cancelled.
// Shutdown takes priority over reconnect backoff.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
