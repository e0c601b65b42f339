package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeConn satisfies Conn without a database. pingErr controls liveness.
type fakeConn struct {
	id      int
	pingErr error
	closed  atomic.Bool
}

func (f *fakeConn) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (f *fakeConn) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (f *fakeConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (f *fakeConn) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, nil
}

func (f *fakeConn) Ping(_ context.Context) error {
	return f.pingErr
}

func (f *fakeConn) Close(_ context.Context) error {
	f.closed.Store(true)
	return nil
}

// fakeDialer hands out numbered fakeConns and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	dials int
	conns []*fakeConn
	errs  []error // consumed per dial; nil entry means success
}

func (d *fakeDialer) connect(_ context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dials < len(d.errs) && d.errs[d.dials] != nil {
		err := d.errs[d.dials]
		d.dials++
		return nil, err
	}
	d.dials++
	conn := &fakeConn{id: d.dials}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func newTestPool(t *testing.T, size int, timeout time.Duration) (*Pool, *fakeDialer) {
	t.Helper()
	dialer := &fakeDialer{}
	pool := newPool(context.Background(), size, timeout, dialer.connect)
	t.Cleanup(pool.Shutdown)
	return pool, dialer
}

func TestPoolAcquireRelease(t *testing.T) {
	pool, dialer := newTestPool(t, 2, time.Second)

	if dialer.dials != 2 {
		t.Fatalf("expected 2 eager dials, got %d", dialer.dials)
	}

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if pool.IdleCount() != 1 {
		t.Errorf("expected 1 idle connection, got %d", pool.IdleCount())
	}

	pc.Release()
	if pool.IdleCount() != 2 {
		t.Errorf("expected 2 idle connections after release, got %d", pool.IdleCount())
	}
}

func TestPoolReleaseIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, 1, time.Second)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	pc.Release()
	pc.Release()
	pc.Release()

	if pool.IdleCount() != 1 {
		t.Errorf("double release inflated the pool: idle=%d", pool.IdleCount())
	}
}

func TestPoolAcquireTimeout(t *testing.T) {
	timeout := 50 * time.Millisecond
	pool, _ := newTestPool(t, 1, timeout)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer pc.Release()

	start := time.Now()
	_, err = pool.Acquire(context.Background())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("timed out too early: %v < %v", elapsed, timeout)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("timed out too late: %v", elapsed)
	}
}

func TestPoolAcquireContextCancelled(t *testing.T) {
	pool, _ := newTestPool(t, 1, time.Minute)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer pc.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = pool.Acquire(ctx)
	if !errors.Is(err, ErrPoolTimeout) {
		t.Fatalf("expected ErrPoolTimeout from cancelled context, got %v", err)
	}
}

func TestPoolBlockedAcquirerWakesOnRelease(t *testing.T) {
	pool, _ := newTestPool(t, 1, time.Second)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	got := make(chan error, 1)
	go func() {
		pc2, err := pool.Acquire(context.Background())
		if err == nil {
			pc2.Release()
		}
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	pc.Release()

	select {
	case err := <-got:
		if err != nil {
			t.Fatalf("blocked acquirer failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked acquirer never woke after release")
	}
}

func TestPoolReplacesDeadConnection(t *testing.T) {
	pool, dialer := newTestPool(t, 1, time.Second)

	// Mark the pooled connection dead; the next checkout must replace it.
	dialer.conns[0].pingErr = errors.New("connection reset")

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pc.Release()

	if dialer.dials != 2 {
		t.Errorf("expected a replacement dial, got %d total dials", dialer.dials)
	}
	if !dialer.conns[0].closed.Load() {
		t.Error("dead connection was not closed")
	}
	if pc.conn.(*fakeConn).id != 2 {
		t.Errorf("caller received stale connection %d", pc.conn.(*fakeConn).id)
	}
}

func TestPoolReplacementFailureSurfaces(t *testing.T) {
	dialer := &fakeDialer{}
	pool := newPool(context.Background(), 1, time.Second, dialer.connect)
	t.Cleanup(pool.Shutdown)

	dialer.conns[0].pingErr = errors.New("connection reset")
	dialer.mu.Lock()
	dialer.errs = []error{nil, errors.New("server down")}
	dialer.mu.Unlock()

	_, err := pool.Acquire(context.Background())
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
}

func TestPoolStartsShortOnDialFailure(t *testing.T) {
	dialer := &fakeDialer{errs: []error{nil, errors.New("refused"), nil}}
	pool := newPool(context.Background(), 3, time.Second, dialer.connect)
	t.Cleanup(pool.Shutdown)

	if pool.IdleCount() != 2 {
		t.Errorf("expected pool to start with 2 live connections, got %d", pool.IdleCount())
	}
}

func TestPoolShutdown(t *testing.T) {
	pool, dialer := newTestPool(t, 2, time.Second)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	pool.Shutdown()

	// Idle connections close immediately.
	if !dialer.conns[1].closed.Load() {
		t.Error("idle connection not closed on shutdown")
	}

	// New acquires fail fast.
	if _, err := pool.Acquire(context.Background()); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	// The borrowed connection closes on release rather than re-pooling.
	pc.Release()
	if !dialer.conns[0].closed.Load() {
		t.Error("borrowed connection not closed when released after shutdown")
	}
}

func TestPoolShutdownWakesWaiters(t *testing.T) {
	pool, _ := newTestPool(t, 1, time.Minute)

	pc, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pc.Release()

	got := make(chan error, 1)
	go func() {
		_, err := pool.Acquire(context.Background())
		got <- err
	}()

	time.Sleep(20 * time.Millisecond)
	pool.Shutdown()

	select {
	case err := <-got:
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not woken by shutdown")
	}
}

func TestPoolShutdownIdempotent(t *testing.T) {
	pool, _ := newTestPool(t, 1, time.Second)
	pool.Shutdown()
	pool.Shutdown()
}

func TestPoolConcurrentAcquireRelease(t *testing.T) {
	pool, _ := newTestPool(t, 4, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				pc, err := pool.Acquire(context.Background())
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				pc.Release()
			}
		}()
	}
	wg.Wait()

	if pool.IdleCount() != 4 {
		t.Errorf("pool leaked connections: idle=%d", pool.IdleCount())
	}
}
