// Package store owns the single SQLite connection and serializes every
// statement through one FIFO job queue.
//
// # Execution model
//
// All work against the database runs inside jobs submitted with Store.Do.
// Jobs are executed one at a time, in submission order, by a single worker
// goroutine. A job receives a *Conn through which it issues statements;
// nested calls to Do made with the job's context run inline on the same
// Conn, so cascading saves and reference loads never wait on themselves.
//
// # Connection
//
// The database is configured with:
//   - WAL journal mode (configurable)
//   - NORMAL synchronous mode
//   - a busy timeout for lock contention
//   - foreign key enforcement
//   - a pool of exactly one connection
//
// Two drivers are supported: "sqlite3" (github.com/mattn/go-sqlite3, the
// default) and "sqlite" (modernc.org/sqlite, pure Go).
//
// # Errors
//
// Statement failures are reported as *Error values carrying a Code. Busy
// and locked conditions are transient and retried with bounded exponential
// backoff by Conn.Retry; everything else is returned immediately.
package store
