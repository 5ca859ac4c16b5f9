package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Repository is the PostgreSQL-backed AlertStore.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new alert repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id string) (*contracts.Alert, error) {
	query := `
		SELECT id, instrument_code, kind, condition, status, created_at, triggered_at
		FROM screening.alerts
		WHERE id = $1
	`

	row := r.pool.QueryRow(ctx, query, id)
	alert, err := scanAlert(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: alert %s", contracts.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to query alert: %w", err)
	}
	return alert, nil
}

func (r *Repository) Put(ctx context.Context, alert *contracts.Alert) error {
	condition, err := json.Marshal(alert.Condition)
	if err != nil {
		return fmt.Errorf("failed to marshal condition: %w", err)
	}

	query := `
		INSERT INTO screening.alerts (
			id, instrument_code, kind, condition, status, created_at, triggered_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			condition = EXCLUDED.condition,
			status = EXCLUDED.status,
			triggered_at = EXCLUDED.triggered_at
	`

	_, err = r.pool.Exec(ctx, query,
		alert.ID, alert.InstrumentCode, alert.Kind, condition,
		alert.Status, alert.CreatedAt, alert.TriggeredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert alert: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM screening.alerts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]*contracts.Alert, error) {
	query := `
		SELECT id, instrument_code, kind, condition, status, created_at, triggered_at
		FROM screening.alerts
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*contracts.Alert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row pgx.Row) (*contracts.Alert, error) {
	var alert contracts.Alert
	var condition []byte

	if err := row.Scan(
		&alert.ID, &alert.InstrumentCode, &alert.Kind, &condition,
		&alert.Status, &alert.CreatedAt, &alert.TriggeredAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(condition, &alert.Condition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal condition: %w", err)
	}
	return &alert, nil
}
