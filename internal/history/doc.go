// Package history records every executed device command to the database
// without ever blocking the command path.
//
// Commands are appended to a bounded in-memory queue and written by a single
// background worker. When the queue is full new entries are dropped and
// counted rather than making the caller wait; a device command must never
// stall on a slow or absent database.
//
// The package has two halves:
//   - Logger: the bounded queue and worker (Enqueue, Stop, Dropped)
//   - Repository: SQL for inserts and the aggregate statistics queries
package history
