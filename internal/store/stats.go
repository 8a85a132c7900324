package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

type StatsStore struct {
	db DBTX
}

func NewStatsStore(db DBTX) *StatsStore {
	return &StatsStore{db: db}
}

// WithTx returns a StatsStore bound to tx.
func (s *StatsStore) WithTx(tx *sql.Tx) *StatsStore {
	return &StatsStore{db: tx}
}

func scanStats(scanner interface{ Scan(...any) error }) (*model.Stats, error) {
	var st model.Stats
	w := &st.WeekCompletedTasks
	err := scanner.Scan(
		&st.UserID, &st.Level, &st.Points, &st.TotalCompletedTasks,
		&w[0], &w[1], &w[2], &w[3], &w[4], &w[5], &w[6],
		&st.TasksInProgress, &st.Reputation, &st.RatingCount, &st.JoinedAt,
	)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const statsCols = `uid, level, points, total_completed_tasks,
	week_0, week_1, week_2, week_3, week_4, week_5, week_6,
	tasks_in_progress, reputation, rating_count, joined_in`

var weekCols = [model.DaysPerWeek]string{"week_0", "week_1", "week_2", "week_3", "week_4", "week_5", "week_6"}

func (s *StatsStore) Create(ctx context.Context, userID string, joinedAt time.Time) (*model.Stats, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats (uid, joined_in) VALUES (?, ?)`,
		userID, joinedAt.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert stats: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert stats: %w", err)
	}
	return s.Get(ctx, userID)
}

func (s *StatsStore) Get(ctx context.Context, userID string) (*model.Stats, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+statsCols+` FROM stats WHERE uid = ?`, userID)
	st, err := scanStats(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}
	return st, nil
}

func (s *StatsStore) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	ok, err := affected(result)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// AdjustInProgress adds delta to the in-progress counter, flooring at zero.
func (s *StatsStore) AdjustInProgress(ctx context.Context, userID string, delta int) error {
	return s.exec(ctx, "adjust in progress",
		`UPDATE stats SET tasks_in_progress = MAX(tasks_in_progress + ?, 0) WHERE uid = ?`,
		delta, userID,
	)
}

// RecordCompletion releases one in-progress task and counts a completion in
// the weekly slot day (Monday=0).
func (s *StatsStore) RecordCompletion(ctx context.Context, userID string, day, points, level int) error {
	if day < 0 || day >= model.DaysPerWeek {
		return fmt.Errorf("record completion: day %d out of range", day)
	}
	col := weekCols[day]
	return s.exec(ctx, "record completion",
		`UPDATE stats SET
			tasks_in_progress = MAX(tasks_in_progress - 1, 0),
			total_completed_tasks = total_completed_tasks + 1,
			`+col+` = `+col+` + 1,
			points = ?, level = ?
		 WHERE uid = ?`,
		points, level, userID,
	)
}

func (s *StatsStore) SetReputation(ctx context.Context, userID string, reputation float64, count int) error {
	return s.exec(ctx, "set reputation",
		`UPDATE stats SET reputation = ?, rating_count = ? WHERE uid = ?`,
		reputation, count, userID,
	)
}

// ResetWeek zeroes every weekly slot for every user.
func (s *StatsStore) ResetWeek(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE stats SET week_0 = 0, week_1 = 0, week_2 = 0, week_3 = 0, week_4 = 0, week_5 = 0, week_6 = 0`,
	)
	if err != nil {
		return 0, fmt.Errorf("reset week: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

const inProgressCount = `(SELECT COUNT(*) FROM requests r WHERE r.accepted_by = stats.uid AND r.status = 'Aceptada')`

// ReconcileInProgress recomputes tasks_in_progress from the requests table.
// An empty userID reconciles every user. It returns the number of rows that
// were out of sync.
func (s *StatsStore) ReconcileInProgress(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE stats SET tasks_in_progress = ` + inProgressCount +
		` WHERE tasks_in_progress <> ` + inProgressCount
	var args []any
	if userID != "" {
		query += ` AND uid = ?`
		args = append(args, userID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reconcile in progress: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
