package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

type RatingStore struct {
	db DBTX
}

func NewRatingStore(db DBTX) *RatingStore {
	return &RatingStore{db: db}
}

// WithTx returns a RatingStore bound to tx.
func (s *RatingStore) WithTx(tx *sql.Tx) *RatingStore {
	return &RatingStore{db: tx}
}

// --- Rating methods ---

func scanRating(scanner interface{ Scan(...any) error }) (*model.Rating, error) {
	var r model.Rating
	err := scanner.Scan(&r.ID, &r.RequestID, &r.RaterID, &r.RatedID, &r.Stars, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const ratingCols = `id, request_id, rater_id, rated_id, stars, created_at`

// Create records a rating. A second rating for the same request by the same
// rater fails with ErrDuplicate.
func (s *RatingStore) Create(ctx context.Context, requestID, raterID, ratedID string, stars int, at time.Time) (*model.Rating, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO ratings (request_id, rater_id, rated_id, stars, created_at) VALUES (?, ?, ?, ?, ?)`,
		requestID, raterID, ratedID, stars, at.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert rating: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert rating: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ratingCols+` FROM ratings WHERE id = ?`, id)
	return scanRating(row)
}

func (s *RatingStore) Get(ctx context.Context, requestID, raterID string) (*model.Rating, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ratingCols+` FROM ratings WHERE request_id = ? AND rater_id = ?`,
		requestID, raterID,
	)
	r, err := scanRating(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return r, nil
}

func (s *RatingStore) ListForUser(ctx context.Context, ratedID string) ([]model.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ratingCols+` FROM ratings WHERE rated_id = ? ORDER BY created_at DESC, id DESC`,
		ratedID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	var ratings []model.Rating
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, *r)
	}
	return ratings, rows.Err()
}

// --- Prompt methods ---

func scanPrompt(scanner interface{ Scan(...any) error }) (*model.RatingPrompt, error) {
	var p model.RatingPrompt
	var fulfilledAt sql.NullTime
	err := scanner.Scan(&p.RequestID, &p.RaterID, &p.RatedID, &p.CreatedAt, &fulfilledAt)
	if err != nil {
		return nil, err
	}
	p.FulfilledAt = timePtr(fulfilledAt)
	return &p, nil
}

const promptCols = `request_id, rater_id, rated_id, created_at, fulfilled_at`

func (s *RatingStore) CreatePrompt(ctx context.Context, requestID, raterID, ratedID string, at time.Time) (*model.RatingPrompt, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rating_prompts (request_id, rater_id, rated_id, created_at) VALUES (?, ?, ?, ?)`,
		requestID, raterID, ratedID, at.UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert rating prompt: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert rating prompt: %w", err)
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+promptCols+` FROM rating_prompts WHERE request_id = ? AND rater_id = ?`,
		requestID, raterID,
	)
	return scanPrompt(row)
}

// PendingPrompts returns the prompts raterID has not answered yet.
func (s *RatingStore) PendingPrompts(ctx context.Context, raterID string) ([]model.RatingPrompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+promptCols+` FROM rating_prompts WHERE rater_id = ? AND fulfilled_at IS NULL ORDER BY created_at DESC`,
		raterID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rating prompts: %w", err)
	}
	defer rows.Close()

	var prompts []model.RatingPrompt
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rating prompt: %w", err)
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

func (s *RatingStore) FulfillPrompt(ctx context.Context, requestID, raterID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rating_prompts SET fulfilled_at = ? WHERE request_id = ? AND rater_id = ? AND fulfilled_at IS NULL`,
		at.UTC(), requestID, raterID,
	)
	if err != nil {
		return fmt.Errorf("fulfill rating prompt: %w", err)
	}
	return nil
}
