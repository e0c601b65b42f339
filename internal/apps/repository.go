package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hms-homelab/hms-firetv/internal/infrastructure/database"
)

// ErrAppNotFound is returned when a device/package pair does not exist.
var ErrAppNotFound = errors.New("apps: not found")

// App is one installed app on one device.
type App struct {
	ID          int64     `json:"id"`
	DeviceID    string    `json:"device_id"`
	PackageName string    `json:"package_name"`
	AppName     string    `json:"app_name"`
	IconURL     string    `json:"icon_url,omitempty"`
	IsFavorite  bool      `json:"is_favorite"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PopularApp is one row of the shared catalogue used to seed devices.
type PopularApp struct {
	PackageName string `json:"package_name"`
	AppName     string `json:"app_name"`
	IconURL     string `json:"icon_url,omitempty"`
	Category    string `json:"category"`
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

type poolSource struct {
	pool *database.Pool
}

func (s poolSource) Acquire(ctx context.Context) (Conn, error) {
	return s.pool.Acquire(ctx)
}

// Repository manages per-device app rows in PostgreSQL.
type Repository struct {
	pool ConnSource
}

// NewRepository creates an apps repository backed by the pool.
func NewRepository(pool *database.Pool) *Repository {
	return &Repository{pool: poolSource{pool: pool}}
}

// newRepository is the injectable constructor used by tests.
func newRepository(pool ConnSource) *Repository {
	return &Repository{pool: pool}
}

// ListForDevice returns a device's apps, favourites first then by name.
func (r *Repository) ListForDevice(ctx context.Context, deviceID string) ([]App, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, device_id, package_name, app_name, icon_url, is_favorite,
		       created_at, updated_at
		FROM device_apps
		WHERE device_id = $1
		ORDER BY is_favorite DESC, app_name`,
		deviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device apps: %w", err)
	}
	defer rows.Close()

	var apps []App
	for rows.Next() {
		var (
			app     App
			iconURL *string
		)
		if err := rows.Scan(&app.ID, &app.DeviceID, &app.PackageName, &app.AppName,
			&iconURL, &app.IsFavorite, &app.CreatedAt, &app.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning app row: %w", err)
		}
		if iconURL != nil {
			app.IconURL = *iconURL
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// Add registers an app on a device. Re-adding an existing package is a
// no-op rather than an error.
func (r *Repository) Add(ctx context.Context, app *App) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	var iconURL any
	if app.IconURL != "" {
		iconURL = app.IconURL
	}

	_, err = conn.Exec(ctx, `
		INSERT INTO device_apps (device_id, package_name, app_name, icon_url, is_favorite)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, package_name) DO NOTHING`,
		app.DeviceID, app.PackageName, app.AppName, iconURL, app.IsFavorite,
	)
	if err != nil {
		return fmt.Errorf("adding app: %w", err)
	}
	return nil
}

// Remove deletes one app from a device.
func (r *Repository) Remove(ctx context.Context, deviceID, packageName string) error {
	return r.exec(ctx, `
		DELETE FROM device_apps
		WHERE device_id = $1 AND package_name = $2`,
		deviceID, packageName)
}

// SetFavorite flags or unflags an app as a favourite.
func (r *Repository) SetFavorite(ctx context.Context, deviceID, packageName string, favorite bool) error {
	return r.exec(ctx, `
		UPDATE device_apps
		SET is_favorite = $3, updated_at = now()
		WHERE device_id = $1 AND package_name = $2`,
		deviceID, packageName, favorite)
}

// RemoveAll deletes every app registered on a device.
func (r *Repository) RemoveAll(ctx context.Context, deviceID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx,
		"DELETE FROM device_apps WHERE device_id = $1", deviceID,
	); err != nil {
		return fmt.Errorf("removing device apps: %w", err)
	}
	return nil
}

// ListPopular returns the shared catalogue, optionally filtered by category.
func (r *Repository) ListPopular(ctx context.Context, category string) ([]PopularApp, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	sql := "SELECT package_name, app_name, icon_url, category FROM popular_apps"
	var args []any
	if category != "" {
		sql += " WHERE category = $1"
		args = append(args, category)
	}
	sql += " ORDER BY app_name"

	rows, err := conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying popular apps: %w", err)
	}
	defer rows.Close()

	var apps []PopularApp
	for rows.Next() {
		var (
			app     PopularApp
			iconURL *string
		)
		if err := rows.Scan(&app.PackageName, &app.AppName, &iconURL, &app.Category); err != nil {
			return nil, fmt.Errorf("scanning popular app: %w", err)
		}
		if iconURL != nil {
			app.IconURL = *iconURL
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// SeedFromPopular copies a catalogue category onto a device, skipping
// packages the device already has.
func (r *Repository) SeedFromPopular(ctx context.Context, deviceID, category string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
		INSERT INTO device_apps (device_id, package_name, app_name, icon_url)
		SELECT $1, package_name, app_name, icon_url
		FROM popular_apps
		WHERE category = $2
		ON CONFLICT (device_id, package_name) DO NOTHING`,
		deviceID, category,
	); err != nil {
		return fmt.Errorf("seeding apps: %w", err)
	}
	return nil
}

// exec runs a statement expected to touch exactly one app row.
func (r *Repository) exec(ctx context.Context, sql string, args ...any) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating app: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppNotFound
	}
	return nil
}
