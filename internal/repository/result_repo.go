package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"wordwatch/internal/database"
	"wordwatch/internal/models"
)

// ErrNotFound is returned when a result key has no row
var ErrNotFound = errors.New("not found")

// ResultRepository stores experiment results and shared counters
type ResultRepository struct {
	db database.DBTX
}

// NewResultRepository creates a result repository over a connection or a
// transaction
func NewResultRepository(db database.DBTX) *ResultRepository {
	return &ResultRepository{db: db}
}

// WriteResult inserts or replaces a result row
func (r *ResultRepository) WriteResult(ctx context.Context, rec models.ResultRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	query := r.db.GetDialect().Upsert("results", "result_key", "result_key", "session_id", "value", "updated_at")
	_, err := r.db.ExecContext(ctx, query, rec.Key, rec.SessionID, string(rec.Value), rec.UpdatedAt)
	return err
}

// GetResult retrieves a result by key
func (r *ResultRepository) GetResult(ctx context.Context, key string) (*models.ResultRecord, error) {
	query := `SELECT result_key, session_id, value, updated_at FROM results WHERE result_key = ?`
	rec, err := scanResult(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListResults returns every result, ordered by key
func (r *ResultRepository) ListResults(ctx context.Context) ([]models.ResultRecord, error) {
	return r.queryResults(ctx, `SELECT result_key, session_id, value, updated_at FROM results ORDER BY result_key`)
}

// ListSessionResults returns the results written by one session
func (r *ResultRepository) ListSessionResults(ctx context.Context, sessionID string) ([]models.ResultRecord, error) {
	return r.queryResults(ctx, `
		SELECT result_key, session_id, value, updated_at
		FROM results
		WHERE session_id = ?
		ORDER BY result_key
	`, sessionID)
}

func (r *ResultRepository) queryResults(ctx context.Context, query string, args ...interface{}) ([]models.ResultRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.ResultRecord
	for rows.Next() {
		rec, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *rec)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResult(row rowScanner) (*models.ResultRecord, error) {
	var (
		rec   models.ResultRecord
		value string
	)
	if err := row.Scan(&rec.Key, &rec.SessionID, &value, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Value = json.RawMessage(value)
	return &rec, nil
}

// GetCounter returns the value of a named counter, zero when unset
func (r *ResultRepository) GetCounter(ctx context.Context, name string) (int, error) {
	var value int
	err := r.db.QueryRowContext(ctx, `SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return value, err
}

// SetCounter updates or inserts a named counter
func (r *ResultRepository) SetCounter(ctx context.Context, name string, value int) error {
	query := r.db.GetDialect().Upsert("counters", "name", "name", "value", "updated_at")
	_, err := r.db.ExecContext(ctx, query, name, value, time.Now().UTC())
	return err
}

// ListCounters returns every counter, ordered by name
func (r *ResultRepository) ListCounters(ctx context.Context) ([]models.Counter, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, value, updated_at FROM counters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counters []models.Counter
	for rows.Next() {
		var c models.Counter
		if err := rows.Scan(&c.Name, &c.Value, &c.UpdatedAt); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}
	return counters, rows.Err()
}
