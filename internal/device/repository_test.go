package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// execCall records one statement execution.
type execCall struct {
	sql  string
	args []any
}

// fakeConn satisfies Conn with canned rows and recorded execs.
type fakeConn struct {
	execs        []execCall
	execErr      error
	rowErr       error
	rowsAffected int64
	queryRows    [][]any
	released     bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.execs = append(c.execs, execCall{sql: sql, args: args})
	if c.execErr != nil {
		return pgconn.CommandTag{}, c.execErr
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", c.rowsAffected)), nil
}

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.execs = append(c.execs, execCall{sql: sql, args: args})
	return &fakeRows{rows: c.queryRows}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.execs = append(c.execs, execCall{sql: sql, args: args})
	if c.rowErr != nil {
		return fakeRow{err: c.rowErr}
	}
	if len(c.queryRows) == 0 {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{values: c.queryRows[0]}
}

func (c *fakeConn) Release() { c.released = true }

type fakeSource struct {
	conn *fakeConn
}

func (s *fakeSource) Acquire(_ context.Context) (Conn, error) {
	return s.conn, nil
}

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.rows[r.idx-1], dest)
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values for %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *Status:
			*d = Status(v.(string))
		case *bool:
			*d = v.(bool)
		case *time.Time:
			*d = v.(time.Time)
		case **string:
			if v == nil {
				*d = nil
			} else {
				s := v.(string)
				*d = &s
			}
		case **time.Time:
			if v == nil {
				*d = nil
			} else {
				t := v.(time.Time)
				*d = &t
			}
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

// deviceRow builds a canned row in deviceColumns order.
func deviceRow(deviceID string, token any, pin any, status string) []any {
	now := time.Now().UTC()
	return []any{
		int64(1), deviceID, "Living Room", "192.168.1.42", "0987654321",
		token, status, false, pin, nil, nil, now, now,
	}
}

func TestGetByID(t *testing.T) {
	conn := &fakeConn{queryRows: [][]any{deviceRow("living_room", "tok", nil, "online")}}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	d, err := repo.GetByID(context.Background(), "living_room")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}

	if d.DeviceID != "living_room" || d.ClientToken != "tok" || d.Status != StatusOnline {
		t.Errorf("device mapped wrong: %+v", d)
	}
	if !d.IsPaired() {
		t.Error("device with token should be paired")
	}
	if conn.execs[0].args[0] != "living_room" {
		t.Errorf("device id not bound as parameter: %v", conn.execs[0].args)
	}
	if !conn.released {
		t.Error("connection not released")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	repo := newPostgresRepository(&fakeSource{conn: &fakeConn{}})

	_, err := repo.GetByID(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateValidatesFirst(t *testing.T) {
	conn := &fakeConn{}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	err := repo.Create(context.Background(), &Device{DeviceID: "BAD ID"})
	if !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if len(conn.execs) != 0 {
		t.Error("invalid device reached the database")
	}
}

func TestCreate(t *testing.T) {
	now := time.Now().UTC()
	conn := &fakeConn{queryRows: [][]any{{int64(7), now, now}}}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	d := validDevice()
	d.Status = ""
	if err := repo.Create(context.Background(), d); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if d.ID != 7 {
		t.Errorf("returned id not stored: %d", d.ID)
	}
	if d.Status != StatusOffline {
		t.Errorf("default status not applied: %q", d.Status)
	}
	call := conn.execs[0]
	if !strings.Contains(call.sql, "INSERT INTO fire_tv_devices") {
		t.Errorf("unexpected SQL: %s", call.sql)
	}
	if call.args[0] != "living_room" {
		t.Errorf("device id not bound: %v", call.args)
	}
}

func TestCreateDuplicate(t *testing.T) {
	conn := &fakeConn{rowErr: &pgconn.PgError{Code: uniqueViolation}}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	err := repo.Create(context.Background(), validDevice())
	if !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestListByStatus(t *testing.T) {
	conn := &fakeConn{queryRows: [][]any{
		deviceRow("living_room", nil, nil, "offline"),
		deviceRow("bedroom", nil, nil, "offline"),
	}}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	devices, err := repo.ListByStatus(context.Background(), StatusOffline)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}

	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if !strings.Contains(conn.execs[0].sql, "WHERE status = $1") {
		t.Errorf("status not bound as parameter: %s", conn.execs[0].sql)
	}
	if conn.execs[0].args[0] != StatusOffline {
		t.Errorf("wrong status arg: %v", conn.execs[0].args)
	}
}

func TestUpdateNotFound(t *testing.T) {
	conn := &fakeConn{rowsAffected: 0}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	err := repo.Update(context.Background(), validDevice())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	conn := &fakeConn{rowsAffected: 1}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	if err := repo.Delete(context.Background(), "living_room"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !strings.Contains(conn.execs[0].sql, "DELETE FROM fire_tv_devices") {
		t.Errorf("unexpected SQL: %s", conn.execs[0].sql)
	}
}

func TestSetPIN(t *testing.T) {
	conn := &fakeConn{rowsAffected: 1}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	if err := repo.SetPIN(context.Background(), "living_room", "1234", 5*time.Minute); err != nil {
		t.Fatalf("SetPIN failed: %v", err)
	}

	call := conn.execs[0]
	if !strings.Contains(call.sql, "pin_expires_at") {
		t.Errorf("SQL does not set expiry: %s", call.sql)
	}
	if call.args[1] != "1234" || call.args[2] != 300 {
		t.Errorf("wrong args: %v", call.args)
	}
	if call.args[3] != StatusPairing {
		t.Errorf("pairing status not set: %v", call.args[3])
	}
}

func TestCompletePairing(t *testing.T) {
	conn := &fakeConn{rowsAffected: 1}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	if err := repo.CompletePairing(context.Background(), "living_room", "token-xyz"); err != nil {
		t.Fatalf("CompletePairing failed: %v", err)
	}

	call := conn.execs[0]
	if !strings.Contains(call.sql, "pin_code = NULL") {
		t.Errorf("PIN not cleared: %s", call.sql)
	}
	if call.args[1] != "token-xyz" || call.args[2] != StatusOnline {
		t.Errorf("wrong args: %v", call.args)
	}
}

func TestResetPairing(t *testing.T) {
	conn := &fakeConn{rowsAffected: 1}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	if err := repo.ResetPairing(context.Background(), "living_room"); err != nil {
		t.Fatalf("ResetPairing failed: %v", err)
	}

	call := conn.execs[0]
	if !strings.Contains(call.sql, "client_token = NULL") {
		t.Errorf("token not cleared: %s", call.sql)
	}
	if call.args[1] != StatusOffline {
		t.Errorf("wrong status: %v", call.args[1])
	}
}

func TestTouchLastSeen(t *testing.T) {
	conn := &fakeConn{rowsAffected: 1}
	repo := newPostgresRepository(&fakeSource{conn: conn})

	if err := repo.TouchLastSeen(context.Background(), "living_room", StatusOnline); err != nil {
		t.Fatalf("TouchLastSeen failed: %v", err)
	}
	if !strings.Contains(conn.execs[0].sql, "last_seen_at = now()") {
		t.Errorf("unexpected SQL: %s", conn.execs[0].sql)
	}
}
