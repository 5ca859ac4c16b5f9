package selection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kaizumaki/kabuscan/internal/contracts"
)

// Repository persists ranked scan results.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new scan result repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveScanResults replaces the ranked candidate set for one scan time.
func (r *Repository) SaveScanResults(ctx context.Context, scanTime time.Time, ranked []contracts.CombinedResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "DELETE FROM screening.scan_results WHERE scan_time = $1", scanTime)
	if err != nil {
		return fmt.Errorf("failed to delete old results: %w", err)
	}

	query := `
		INSERT INTO screening.scan_results (
			scan_time, stock_code, stock_name, rank, total_score, strategies
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	for _, result := range ranked {
		strategies, err := json.Marshal(result.StrategyResults)
		if err != nil {
			return fmt.Errorf("failed to marshal strategy results: %w", err)
		}

		_, err = tx.Exec(ctx, query,
			scanTime, result.Code, result.Name, result.Rank, result.TotalScore, strategies,
		)
		if err != nil {
			return fmt.Errorf("failed to insert scan result: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetLatestResults returns the ranked candidates of the most recent scan.
func (r *Repository) GetLatestResults(ctx context.Context, limit int) ([]contracts.CombinedResult, error) {
	query := `
		SELECT stock_code, stock_name, rank, total_score, strategies
		FROM screening.scan_results
		WHERE scan_time = (SELECT MAX(scan_time) FROM screening.scan_results)
		ORDER BY rank
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan results: %w", err)
	}
	defer rows.Close()

	results := make([]contracts.CombinedResult, 0, limit)
	for rows.Next() {
		var result contracts.CombinedResult
		var strategies []byte

		if err := rows.Scan(&result.Code, &result.Name, &result.Rank, &result.TotalScore, &strategies); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal(strategies, &result.StrategyResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strategy results: %w", err)
		}

		results = append(results, result)
	}

	return results, rows.Err()
}
