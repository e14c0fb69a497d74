// Package ledger keeps a SQLite history of gear runs.
//
// Each run is recorded when it starts and updated when it finishes with its
// status, resolved demographics, failure classification and the files it
// published. The database lives in the work directory by default and is
// treated as a local audit trail, not as platform state.
//
// Schema changes bump schemaVersion in schema.go; an older database must be
// deleted to adopt the new schema.
package ledger
