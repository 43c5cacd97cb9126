// Package netcheck provides the peer liveness oracle used by the store's
// connection actor.
//
// The store lives on another machine, so a failed query can mean either
// "store host is down" or "store is up but the query is bad". The checker
// answers the first question with a one-shot ICMP ping (shelling out to the
// system ping binary, which needs no raw-socket privileges), optionally
// falling back to a TCP dial where ICMP is filtered.
package netcheck
