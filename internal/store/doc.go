// Package store is the node's single gateway to the shared relational
// store and the home of the device arbitration protocol.
//
// # Connection actor
//
// One worker goroutine owns the live database handle. Callers never touch
// the handle; they submit requests over a channel and block on a
// per-request reply channel. The worker connects (guarded by a peer
// liveness probe), drains requests one at a time, re-checks liveness
// periodically and before each request, and on any failure abandons the
// pending queue, tears the connection down and reconnects with backoff.
// Requests abandoned by a disconnect are failed back to their callers, not
// replayed; the caller's retry budget decides what happens next.
//
// # Arbitration
//
// Devices shared between nodes are guarded by application-level locks:
// rows in a per-site control table carrying (Device Status, Request,
// Locked By). AttemptToControl and ReleaseControl implement
// read-then-conditionally-write over those rows. A node never overrides
// another node's lock, unavailable state fails closed, and the takeover
// update is guarded so two racing claimants cannot both win.
//
// There is no lock service and no cross-node transaction; this is a
// best-effort scheme sized for a physical control system operating on a
// seconds-to-minutes cadence.
package store
