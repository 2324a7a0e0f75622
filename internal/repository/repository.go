package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/septivank/water-softener-worker/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// Repository handles the last-snapshot store. It keeps exactly one
// current-state row per device plus a mirror of the history window the
// vendor returned on the latest poll.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// UpsertSnapshotTx replaces the current-state row for the snapshot's
// device key within a transaction.
func (r *Repository) UpsertSnapshotTx(ctx context.Context, tx pgx.Tx, snapshot *db.SoftenerSnapshot) error {
	query := `
		INSERT INTO softener_snapshots (
			device_key, reading_date, water_liters, water_cubic_meters,
			estimated_cost, regeneration_count, power_outage, salt_alarm,
			online, connected, last_seen, validation_status, anomaly_reason, polled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (device_key) DO UPDATE SET
			reading_date = EXCLUDED.reading_date,
			water_liters = EXCLUDED.water_liters,
			water_cubic_meters = EXCLUDED.water_cubic_meters,
			estimated_cost = EXCLUDED.estimated_cost,
			regeneration_count = EXCLUDED.regeneration_count,
			power_outage = EXCLUDED.power_outage,
			salt_alarm = EXCLUDED.salt_alarm,
			online = EXCLUDED.online,
			connected = EXCLUDED.connected,
			last_seen = EXCLUDED.last_seen,
			validation_status = EXCLUDED.validation_status,
			anomaly_reason = EXCLUDED.anomaly_reason,
			polled_at = EXCLUDED.polled_at
	`

	_, err := tx.Exec(ctx, query,
		snapshot.DeviceKey,
		snapshot.ReadingDate,
		snapshot.WaterLiters,
		snapshot.WaterCubicMeters,
		snapshot.EstimatedCost,
		snapshot.RegenerationCount,
		snapshot.PowerOutage,
		snapshot.SaltAlarm,
		snapshot.Online,
		snapshot.Connected,
		snapshot.LastSeen,
		snapshot.ValidationStatus,
		snapshot.AnomalyReason,
		snapshot.PolledAt,
	)

	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// ReplaceHistoryWindowTx swaps the stored history mirror for the
// device with the window returned by the latest poll.
func (r *Repository) ReplaceHistoryWindowTx(ctx context.Context, tx pgx.Tx, deviceKey string, rows []db.SoftenerHistoryRow) error {
	deleteQuery := `DELETE FROM softener_history WHERE device_key = $1`
	if _, err := tx.Exec(ctx, deleteQuery, deviceKey); err != nil {
		return fmt.Errorf("failed to clear history window: %w", err)
	}

	insertQuery := `
		INSERT INTO softener_history (
			device_key, position, reading_date, water_liters,
			regeneration_count, power_outage, salt_alarm, polled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, row := range rows {
		_, err := tx.Exec(ctx, insertQuery,
			row.DeviceKey,
			row.Position,
			row.ReadingDate,
			row.WaterLiters,
			row.RegenerationCount,
			row.PowerOutage,
			row.SaltAlarm,
			row.PolledAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
	}

	return nil
}

// GetSnapshot returns the last-known state for a device, or
// pgx.ErrNoRows before the first successful poll.
func (r *Repository) GetSnapshot(ctx context.Context, deviceKey string) (*db.SoftenerSnapshot, error) {
	query := `
		SELECT id, device_key, reading_date, water_liters, water_cubic_meters,
		       estimated_cost, regeneration_count, power_outage, salt_alarm,
		       online, connected, last_seen, validation_status, anomaly_reason, polled_at
		FROM softener_snapshots
		WHERE device_key = $1
	`

	var snapshot db.SoftenerSnapshot
	err := r.pool.QueryRow(ctx, query, deviceKey).Scan(
		&snapshot.ID,
		&snapshot.DeviceKey,
		&snapshot.ReadingDate,
		&snapshot.WaterLiters,
		&snapshot.WaterCubicMeters,
		&snapshot.EstimatedCost,
		&snapshot.RegenerationCount,
		&snapshot.PowerOutage,
		&snapshot.SaltAlarm,
		&snapshot.Online,
		&snapshot.Connected,
		&snapshot.LastSeen,
		&snapshot.ValidationStatus,
		&snapshot.AnomalyReason,
		&snapshot.PolledAt,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	return &snapshot, nil
}

// RecentWaterReadings returns water counter values from the stored
// history mirror, newest first, for anomaly detection. Call it before
// replacing the window so it reflects the previous poll.
func (r *Repository) RecentWaterReadings(ctx context.Context, deviceKey string, limit int) ([]float64, error) {
	query := `
		SELECT water_liters
		FROM softener_history
		WHERE device_key = $1
		ORDER BY position ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, deviceKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var value float64
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("failed to scan value: %w", err)
		}
		values = append(values, value)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return values, nil
}
