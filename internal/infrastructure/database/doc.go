// Package database owns the low-level connection to the shared relational
// store.
//
// The store is one SQLite database shared by every node in the deployment
// (the coordinator exports it to the others). This package opens it with
// the right pragmas, verifies connectivity, and bootstraps the schema from
// embedded migration files.
//
// Only the store package's worker goroutine may hold and use a *DB; all
// other code reaches the store through the store package's client API.
package database
