package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hms-homelab/hms-firetv/internal/infrastructure/config"
)

// pingTimeout bounds the liveness check performed on checkout.
const pingTimeout = 2 * time.Second

// Querier is the query surface repositories use. Both *pgx.Conn and
// *PooledConn satisfy it, and tests substitute fakes.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is the pool's view of one live database session.
type Conn interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ConnectFunc opens a new database session. The production pool uses
// pgx.Connect; tests inject fakes.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Pool is a bounded pool of live PostgreSQL connections.
//
// Connections are opened up-front and lent out one at a time. Acquire blocks
// (bounded by the configured timeout) when every connection is checked out;
// Release returns a connection for reuse. A connection found dead on
// checkout is replaced transparently before being handed to the caller.
type Pool struct {
	size           int
	acquireTimeout time.Duration
	connect        ConnectFunc

	// idle holds connections waiting to be lent out. Its capacity equals
	// the pool size so Release never blocks.
	idle chan Conn

	// done is closed by Shutdown to wake blocked acquirers.
	done chan struct{}

	closeOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a connection pool from the database configuration.
//
// Connections are opened eagerly and best-effort: if some fail the pool
// starts short and logs a warning, because the gateway must keep serving
// commands with the database degraded or down.
//
// Parameters:
//   - ctx: Context bounding the initial connection attempts
//   - cfg: Database configuration from config.yaml
//
// Returns:
//   - *Pool: Pool ready for use (possibly with fewer than cfg.PoolSize live connections)
func New(ctx context.Context, cfg config.DatabaseConfig) *Pool {
	connString := cfg.ConnString()
	connect := func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
		}
		return conn, nil
	}

	return newPool(ctx, cfg.PoolSize, cfg.GetAcquireTimeout(), connect)
}

// newPool is the injectable constructor used by New and by tests.
func newPool(ctx context.Context, size int, acquireTimeout time.Duration, connect ConnectFunc) *Pool {
	if size < 1 {
		size = 1
	}

	p := &Pool{
		size:           size,
		acquireTimeout: acquireTimeout,
		connect:        connect,
		idle:           make(chan Conn, size),
		done:           make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		conn, err := connect(ctx)
		if err != nil {
			p.warn("initial connection failed", "index", i, "error", err)
			continue
		}
		p.idle <- conn
	}

	return p
}

// SetLogger sets a logger for pool warnings. If not set, failures during
// checkout replacement are silent (they still surface as errors to callers).
func (p *Pool) SetLogger(logger Logger) {
	p.loggerMu.Lock()
	p.logger = logger
	p.loggerMu.Unlock()
}

// Acquire lends out a connection, blocking until one is idle or the
// configured timeout (or ctx) expires.
//
// A connection that fails a liveness check on checkout is closed and
// replaced with a freshly opened one; the caller never knowingly receives a
// dead handle. If the replacement cannot be opened, the slot is surrendered
// so the pool does not shrink permanently, and the error is returned.
//
// Returns:
//   - *PooledConn: Connection handle; callers must Release it on every exit path
//   - error: ErrPoolTimeout, ErrPoolClosed, ErrConnectFailed, or ctx.Err()
func (p *Pool) Acquire(ctx context.Context) (*PooledConn, error) {
	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	for {
		select {
		case <-p.done:
			return nil, ErrPoolClosed
		default:
		}

		select {
		case conn := <-p.idle:
			live, err := p.ensureLive(ctx, conn)
			if err != nil {
				return nil, err
			}
			return &PooledConn{conn: live, pool: p}, nil
		case <-p.done:
			return nil, ErrPoolClosed
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrPoolTimeout, ctx.Err())
		case <-timer.C:
			return nil, fmt.Errorf("%w: no connection available within %v", ErrPoolTimeout, p.acquireTimeout)
		}
	}
}

// ensureLive pings the checked-out connection and replaces it if dead.
func (p *Pool) ensureLive(ctx context.Context, conn Conn) (Conn, error) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := conn.Ping(pingCtx)
	cancel()
	if err == nil {
		return conn, nil
	}

	p.warn("pooled connection dead on checkout, replacing", "error", err)
	closeQuietly(conn)

	fresh, err := p.connect(ctx)
	if err != nil {
		// The slot is gone until a later Release recreates pressure;
		// callers treat this as a degraded-database condition.
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return fresh, nil
}

// release returns a connection to the idle set, or closes it if the pool
// has been shut down in the meantime.
func (p *Pool) release(conn Conn) {
	select {
	case <-p.done:
		closeQuietly(conn)
		return
	default:
	}

	select {
	case p.idle <- conn:
	default:
		// More connections returned than the pool holds; close the surplus.
		closeQuietly(conn)
	}
}

// Shutdown marks the pool closed, wakes all waiters (they fail fast with
// ErrPoolClosed) and closes every idle connection. In-flight borrowed
// connections are closed as they are released.
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		close(p.done)
		for {
			select {
			case conn := <-p.idle:
				closeQuietly(conn)
			default:
				return
			}
		}
	})
}

// IdleCount returns the number of connections currently idle.
// Useful for monitoring and tests.
func (p *Pool) IdleCount() int {
	return len(p.idle)
}

// Size returns the configured pool size.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) warn(msg string, args ...any) {
	p.loggerMu.RLock()
	logger := p.logger
	p.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func closeQuietly(conn Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	_ = conn.Close(ctx) //nolint:errcheck // Best effort on teardown
}

// PooledConn is a connection on loan from the pool.
//
// It satisfies Querier by delegating to the underlying session. Release is
// idempotent; calling it from a defer on every exit path is the expected
// usage:
//
//	pc, err := pool.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pc.Release()
type PooledConn struct {
	conn        Conn
	pool        *Pool
	releaseOnce sync.Once
}

// Exec executes a statement on the borrowed connection.
func (pc *PooledConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pc.conn.Exec(ctx, sql, args...)
}

// Query runs a query returning multiple rows on the borrowed connection.
func (pc *PooledConn) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return pc.conn.Query(ctx, sql, args...)
}

// QueryRow runs a single-row query on the borrowed connection.
func (pc *PooledConn) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return pc.conn.QueryRow(ctx, sql, args...)
}

// Begin starts a transaction on the borrowed connection.
func (pc *PooledConn) Begin(ctx context.Context) (pgx.Tx, error) {
	return pc.conn.Begin(ctx)
}

// Release returns the connection to the pool. Safe to call more than once;
// only the first call has an effect.
func (pc *PooledConn) Release() {
	pc.releaseOnce.Do(func() {
		pc.pool.release(pc.conn)
	})
}
