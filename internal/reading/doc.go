// Package reading defines the immutable sensor reading value type shared by
// the monitor loops, the store and the telemetry sinks.
//
// A Reading carries the observation time, the logical tick it was taken on,
// the composite probe identity ("<site>:<sensor>"), the device-specific
// value encoding and a status string. Readings are validated at construction
// and read-only afterwards; content equality deliberately ignores time and
// tick so deduplication works regardless of when a value was recorded.
package reading
