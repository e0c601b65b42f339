// Package database provides PostgreSQL connectivity for HMS FireTV.
//
// It owns a bounded pool of live connections with timed acquisition,
// transparent replacement of dead connections on checkout, and a graceful
// shutdown that fails waiters fast instead of leaving them to hang. It also
// carries the embedded schema migrations and the small retry helper the
// repositories use for transient failures.
//
// The pool hands out connections through the narrow Querier surface so
// repository tests can substitute fakes without a running server.
//
// Thread Safety: all exported methods are safe for concurrent use.
package database
