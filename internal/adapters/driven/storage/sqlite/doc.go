// Package sqlite provides a SQLite-backed implementation of the secret
// store port. A background poller diffs table snapshots so writes made by
// other processes sharing the database surface as change events.
package sqlite
