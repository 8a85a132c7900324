package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

// ActivityStore is append-only: entries are never updated.
type ActivityStore struct {
	db DBTX
}

func NewActivityStore(db DBTX) *ActivityStore {
	return &ActivityStore{db: db}
}

// WithTx returns an ActivityStore bound to tx.
func (s *ActivityStore) WithTx(tx *sql.Tx) *ActivityStore {
	return &ActivityStore{db: tx}
}

func scanActivity(scanner interface{ Scan(...any) error }) (*model.Activity, error) {
	var a model.Activity
	err := scanner.Scan(&a.ID, &a.UserID, &a.RequestID, &a.Title, &a.Description, &a.Time)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const activityCols = `id, uid, request_id, title, description, time`

func (s *ActivityStore) Append(ctx context.Context, userID, requestID, title, description string, at time.Time) (*model.Activity, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO activity (uid, request_id, title, description, time) VALUES (?, ?, ?, ?, ?)`,
		userID, requestID, title, description, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+activityCols+` FROM activity WHERE id = ?`, id)
	return scanActivity(row)
}

// ListByUser returns the newest entries first. A limit of zero or less
// returns everything.
func (s *ActivityStore) ListByUser(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	query := `SELECT ` + activityCols + ` FROM activity WHERE uid = ? ORDER BY time DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var entries []model.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, *a)
	}
	return entries, rows.Err()
}
