package device

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hms-homelab/hms-firetv/internal/infrastructure/database"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Repository defines the interface for device persistence operations.
// The abstraction enables unit testing without a database.
type Repository interface {
	// Create inserts a new device.
	// Returns ErrExists if the device ID is already registered.
	Create(ctx context.Context, d *Device) error

	// GetByID retrieves a device by its external identifier.
	// Returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, deviceID string) (*Device, error)

	// List retrieves all devices, newest first.
	List(ctx context.Context) ([]Device, error)

	// ListByStatus retrieves all devices in a given lifecycle state.
	ListByStatus(ctx context.Context, status Status) ([]Device, error)

	// Update modifies a device's name, address, status and ADB flag.
	// Returns ErrNotFound if the device does not exist.
	Update(ctx context.Context, d *Device) error

	// Delete removes a device. Its apps cascade; its history is kept.
	// Returns ErrNotFound if the device does not exist.
	Delete(ctx context.Context, deviceID string) error

	// SetPIN records an in-flight pairing attempt: the PIN shown on
	// screen, its expiry, and the pairing status.
	SetPIN(ctx context.Context, deviceID, pin string, ttl time.Duration) error

	// CompletePairing stores the client token, clears the PIN and marks
	// the device online.
	CompletePairing(ctx context.Context, deviceID, token string) error

	// ResetPairing clears the token and any pending PIN, returning the
	// device to offline.
	ResetPairing(ctx context.Context, deviceID string) error

	// UpdateStatus changes only the lifecycle state.
	UpdateStatus(ctx context.Context, deviceID string, status Status) error

	// TouchLastSeen records a successful contact: last_seen_at plus status.
	TouchLastSeen(ctx context.Context, deviceID string, status Status) error
}

// Conn is a borrowed database connection. *database.PooledConn satisfies it.
type Conn interface {
	database.Querier
	Release()
}

// ConnSource lends out database connections.
type ConnSource interface {
	Acquire(ctx context.Context) (Conn, error)
}

// poolSource adapts *database.Pool to ConnSource.
type poolSource struct {
	pool *database.Pool
}

func (s poolSource) Acquire(ctx context.Context) (Conn, error) {
	return s.pool.Acquire(ctx)
}

// PostgresRepository stores devices in PostgreSQL.
type PostgresRepository struct {
	pool ConnSource
}

// Compile-time check.
var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a device repository backed by the pool.
func NewPostgresRepository(pool *database.Pool) *PostgresRepository {
	return &PostgresRepository{pool: poolSource{pool: pool}}
}

// newPostgresRepository is the injectable constructor used by tests.
func newPostgresRepository(pool ConnSource) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// deviceColumns is the scan order shared by every SELECT.
const deviceColumns = `id, device_id, name, ip_address, api_key, client_token,
	status, adb_enabled, pin_code, pin_expires_at, last_seen_at, created_at, updated_at`

// Create inserts a new device after validating it.
func (r *PostgresRepository) Create(ctx context.Context, d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Status == "" {
		d.Status = StatusOffline
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	err = conn.QueryRow(ctx, `
		INSERT INTO fire_tv_devices (device_id, name, ip_address, api_key, status, adb_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		d.DeviceID, d.Name, d.IPAddress, d.APIKey, d.Status, d.ADBEnabled,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrExists, d.DeviceID)
		}
		return fmt.Errorf("creating device: %w", err)
	}
	return nil
}

// GetByID retrieves a device by its external identifier.
func (r *PostgresRepository) GetByID(ctx context.Context, deviceID string) (*Device, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	row := conn.QueryRow(ctx,
		"SELECT "+deviceColumns+" FROM fire_tv_devices WHERE device_id = $1",
		deviceID,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, deviceID)
		}
		return nil, fmt.Errorf("getting device: %w", err)
	}
	return d, nil
}

// List retrieves all devices, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Device, error) {
	return r.list(ctx,
		"SELECT "+deviceColumns+" FROM fire_tv_devices ORDER BY created_at DESC")
}

// ListByStatus retrieves all devices in a given lifecycle state.
func (r *PostgresRepository) ListByStatus(ctx context.Context, status Status) ([]Device, error) {
	return r.list(ctx,
		"SELECT "+deviceColumns+" FROM fire_tv_devices WHERE status = $1 ORDER BY created_at DESC",
		status)
}

func (r *PostgresRepository) list(ctx context.Context, sql string, args ...any) ([]Device, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// Update modifies a device's mutable fields.
func (r *PostgresRepository) Update(ctx context.Context, d *Device) error {
	if err := d.Validate(); err != nil {
		return err
	}

	return r.exec(ctx, d.DeviceID, `
		UPDATE fire_tv_devices
		SET name = $2, ip_address = $3, status = $4, adb_enabled = $5, updated_at = now()
		WHERE device_id = $1`,
		d.DeviceID, d.Name, d.IPAddress, d.Status, d.ADBEnabled)
}

// Delete removes a device.
func (r *PostgresRepository) Delete(ctx context.Context, deviceID string) error {
	return r.exec(ctx, deviceID,
		"DELETE FROM fire_tv_devices WHERE device_id = $1", deviceID)
}

// SetPIN records an in-flight pairing attempt.
func (r *PostgresRepository) SetPIN(ctx context.Context, deviceID, pin string, ttl time.Duration) error {
	return r.exec(ctx, deviceID, `
		UPDATE fire_tv_devices
		SET pin_code = $2,
		    pin_expires_at = now() + $3 * INTERVAL '1 second',
		    status = $4,
		    updated_at = now()
		WHERE device_id = $1`,
		deviceID, pin, int(ttl.Seconds()), StatusPairing)
}

// CompletePairing stores the client token and clears the PIN.
func (r *PostgresRepository) CompletePairing(ctx context.Context, deviceID, token string) error {
	return r.exec(ctx, deviceID, `
		UPDATE fire_tv_devices
		SET client_token = $2,
		    pin_code = NULL,
		    pin_expires_at = NULL,
		    status = $3,
		    updated_at = now()
		WHERE device_id = $1`,
		deviceID, token, StatusOnline)
}

// ResetPairing clears the token and any pending PIN.
func (r *PostgresRepository) ResetPairing(ctx context.Context, deviceID string) error {
	return r.exec(ctx, deviceID, `
		UPDATE fire_tv_devices
		SET client_token = NULL,
		    pin_code = NULL,
		    pin_expires_at = NULL,
		    status = $2,
		    updated_at = now()
		WHERE device_id = $1`,
		deviceID, StatusOffline)
}

// UpdateStatus changes only the lifecycle state.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, deviceID string, status Status) error {
	return r.exec(ctx, deviceID, `
		UPDATE fire_tv_devices
		SET status = $2, updated_at = now()
		WHERE device_id = $1`,
		deviceID, status)
}

// TouchLastSeen records a successful contact.
func (r *PostgresRepository) TouchLastSeen(ctx context.Context, deviceID string, status Status) error {
	return r.exec(ctx, deviceID, `
		UPDATE fire_tv_devices
		SET last_seen_at = now(), status = $2, updated_at = now()
		WHERE device_id = $1`,
		deviceID, status)
}

// exec runs a statement expected to touch exactly one device row.
func (r *PostgresRepository) exec(ctx context.Context, deviceID, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, deviceID)
	}
	return nil
}

// scanDevice maps one row onto a Device.
func scanDevice(row pgx.Row) (*Device, error) {
	var (
		d            Device
		clientToken  *string
		pinCode      *string
		pinExpiresAt *time.Time
		lastSeenAt   *time.Time
	)
	err := row.Scan(&d.ID, &d.DeviceID, &d.Name, &d.IPAddress, &d.APIKey,
		&clientToken, &d.Status, &d.ADBEnabled, &pinCode, &pinExpiresAt,
		&lastSeenAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if clientToken != nil {
		d.ClientToken = *clientToken
	}
	if pinCode != nil {
		d.PINCode = *pinCode
	}
	d.PINExpiresAt = pinExpiresAt
	d.LastSeenAt = lastSeenAt
	return &d, nil
}
