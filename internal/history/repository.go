package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hms-homelab/hms-firetv/internal/infrastructure/database"
)

// Listing limits, matching the REST API contract.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Record is a persisted command history row.
type Record struct {
	ID             int64          `json:"id"`
	DeviceID       string         `json:"device_id"`
	CommandType    string         `json:"command_type"`
	CommandData    map[string]any `json:"command_data,omitempty"`
	Success        bool           `json:"success"`
	ResponseTimeMS int64          `json:"response_time_ms"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SystemStats is the gateway-wide rollup over the last 24 hours.
type SystemStats struct {
	TotalDevices      int     `json:"total_devices"`
	OnlineDevices     int     `json:"online_devices"`
	OfflineDevices    int     `json:"offline_devices"`
	PairingDevices    int     `json:"pairing_devices"`
	PairedDevices     int     `json:"paired_devices"`
	TotalApps         int     `json:"total_apps"`
	Commands24h       int     `json:"commands_24h"`
	SuccessfulCmds24h int     `json:"successful_commands_24h"`
	SuccessRate24h    float64 `json:"success_rate_24h"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
}

// DeviceStats is the per-device rollup from the device_stats view.
type DeviceStats struct {
	DeviceID          string     `json:"device_id"`
	Name              string     `json:"name"`
	Status            string     `json:"status"`
	LastSeenAt        *time.Time `json:"last_seen_at,omitempty"`
	AppCount          int        `json:"app_count"`
	Commands24h       int        `json:"commands_24h"`
	SuccessfulCmds24h int        `json:"successful_commands_24h"`
	AvgResponseMS24h  float64    `json:"avg_response_time_ms_24h"`
	SuccessRate24h    float64    `json:"success_rate_24h"`
	LastCommandAt     *time.Time `json:"last_command_at,omitempty"`
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

// Repository persists and queries command history in PostgreSQL.
type Repository struct {
	pool ConnSource
}

// NewRepository creates a command history repository backed by the pool.
func NewRepository(pool *database.Pool) *Repository {
	return &Repository{pool: poolSource{pool: pool}}
}

// newRepository is the injectable constructor used by tests.
func newRepository(pool ConnSource) *Repository {
	return &Repository{pool: pool}
}

// Insert writes one history entry, retrying transient failures.
// Used as the Logger's WriteFunc.
func (r *Repository) Insert(ctx context.Context, entry Entry) error {
	return database.WithRetry(ctx, func(ctx context.Context) error {
		conn, err := r.pool.Acquire(ctx)
		if err != nil {
			return err
		}
		defer conn.Release()
		return insertEntry(ctx, conn, entry)
	})
}

// insertEntry is the SQL seam, split out so tests can run it against a
// fake querier.
func insertEntry(ctx context.Context, q database.Querier, entry Entry) error {
	var data any
	if entry.CommandData != nil {
		b, err := json.Marshal(entry.CommandData)
		if err != nil {
			return fmt.Errorf("marshalling command data: %w", err)
		}
		data = string(b)
	}

	var errMsg any
	if entry.ErrorMessage != "" {
		errMsg = entry.ErrorMessage
	}

	_, err := q.Exec(ctx, `
		INSERT INTO command_history
			(device_id, command_type, command_data, success, response_time_ms, error_message)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6)`,
		entry.DeviceID, entry.CommandType, data, entry.Success, entry.ResponseTimeMS, errMsg,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// ListForDevice returns a device's recent commands, newest first.
//
// Parameters:
//   - deviceID: Device to list history for
//   - limit: Page size; clamped to [1, 500], default 50 when <= 0
//   - offset: Pagination offset
func (r *Repository) ListForDevice(ctx context.Context, deviceID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT id, device_id, command_type, command_data::text,
		       success, response_time_ms, error_message, created_at
		FROM command_history
		WHERE device_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		deviceID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0, limit)
	for rows.Next() {
		var (
			rec     Record
			rawData *string
			errMsg  *string
		)
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.CommandType, &rawData,
			&rec.Success, &rec.ResponseTimeMS, &errMsg, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if rawData != nil && *rawData != "" {
			if err := json.Unmarshal([]byte(*rawData), &rec.CommandData); err != nil {
				return nil, fmt.Errorf("decoding command data: %w", err)
			}
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// SystemStats returns the gateway-wide statistics rollup.
func (r *Repository) SystemStats(ctx context.Context) (*SystemStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	stats := &SystemStats{}

	rows, err := conn.Query(ctx,
		"SELECT status, COUNT(*) FROM fire_tv_devices GROUP BY status",
	)
	if err != nil {
		return nil, fmt.Errorf("querying device counts: %w", err)
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning device count: %w", err)
		}
		stats.TotalDevices += count
		switch status {
		case "online":
			stats.OnlineDevices = count
		case "offline":
			stats.OfflineDevices = count
		case "pairing":
			stats.PairingDevices = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device counts: %w", err)
	}

	if err := conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM fire_tv_devices WHERE client_token IS NOT NULL",
	).Scan(&stats.PairedDevices); err != nil {
		return nil, fmt.Errorf("querying paired count: %w", err)
	}

	if err := conn.QueryRow(ctx,
		"SELECT COUNT(*) FROM device_apps",
	).Scan(&stats.TotalApps); err != nil {
		return nil, fmt.Errorf("querying app count: %w", err)
	}

	var avgResponse *float64
	if err := conn.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       AVG(response_time_ms)
		FROM command_history
		WHERE created_at > now() - INTERVAL '24 hours'`,
	).Scan(&stats.Commands24h, &stats.SuccessfulCmds24h, &avgResponse); err != nil {
		return nil, fmt.Errorf("querying command stats: %w", err)
	}
	if avgResponse != nil {
		stats.AvgResponseTimeMS = *avgResponse
	}
	stats.SuccessRate24h = successRate(stats.SuccessfulCmds24h, stats.Commands24h)

	return stats, nil
}

// DeviceStats returns the per-device rollups, ordered by device name.
func (r *Repository) DeviceStats(ctx context.Context) ([]DeviceStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT device_id, name, status, last_seen_at, app_count,
		       commands_24h, successful_commands_24h,
		       avg_response_time_ms_24h, last_command_at
		FROM device_stats
		ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device stats: %w", err)
	}
	defer rows.Close()

	var all []DeviceStats
	for rows.Next() {
		var (
			ds  DeviceStats
			avg *float64
		)
		if err := rows.Scan(&ds.DeviceID, &ds.Name, &ds.Status, &ds.LastSeenAt,
			&ds.AppCount, &ds.Commands24h, &ds.SuccessfulCmds24h,
			&avg, &ds.LastCommandAt); err != nil {
			return nil, fmt.Errorf("scanning device stats: %w", err)
		}
		if avg != nil {
			ds.AvgResponseMS24h = *avg
		}
		ds.SuccessRate24h = successRate(ds.SuccessfulCmds24h, ds.Commands24h)
		all = append(all, ds)
	}

	return all, rows.Err()
}

// successRate returns successes/total as a percentage, 0 when no commands.
func successRate(successes, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total) * 100.0
}
