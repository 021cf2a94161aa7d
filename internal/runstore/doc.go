// Package runstore persists run history and per-segment results in SQLite.
//
// The Store mirrors terminal records while a run is still going, so status
// queries and the runs/show commands read from the database instead of from
// the coordinator's memory. The database is run history, not an archive of
// audio; schema changes bump the version in schema.go and users clear the
// database to adopt the new one.
package runstore
