package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

const verificationTTL = 15 * time.Minute

type VerificationStore struct {
	db DBTX
}

func NewVerificationStore(db DBTX) *VerificationStore {
	return &VerificationStore{db: db}
}

func scanVerification(scanner interface{ Scan(...any) error }) (*model.VerificationCode, error) {
	var v model.VerificationCode
	var usedAt sql.NullTime
	err := scanner.Scan(&v.ID, &v.UserID, &v.Code, &v.ExpiresAt, &usedAt, &v.Attempts, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	v.UsedAt = timePtr(usedAt)
	return &v, nil
}

const verificationCols = `id, user_id, code, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new code with a 15-minute expiry. Any pending codes for
// the same user are invalidated first.
func (s *VerificationStore) Create(ctx context.Context, userID string) (*model.VerificationCode, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`UPDATE verification_codes SET used_at = ? WHERE user_id = ? AND used_at IS NULL`,
		now, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_codes (user_id, code, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		userID, code, now.Add(verificationTTL), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert verification code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+verificationCols+` FROM verification_codes WHERE id = ?`, id)
	return scanVerification(row)
}

// GetLatest returns the most recent unused, unexpired code for userID.
func (s *VerificationStore) GetLatest(ctx context.Context, userID string) (*model.VerificationCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+verificationCols+` FROM verification_codes WHERE user_id = ? AND used_at IS NULL ORDER BY id DESC LIMIT 1`,
		userID,
	)
	v, err := scanVerification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest verification code: %w", err)
	}
	if !v.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return v, nil
}

// UseAttempt spends one guess on code id. It reports false, without
// writing, once max guesses have been spent or the code is used, so
// concurrent guesses can never go past the cap.
func (s *VerificationStore) UseAttempt(ctx context.Context, id int64, max int) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE verification_codes SET attempts = attempts + 1 WHERE id = ? AND attempts < ? AND used_at IS NULL`,
		id, max,
	)
	if err != nil {
		return false, fmt.Errorf("use verification attempt: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *VerificationStore) MarkUsed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE verification_codes SET used_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("mark verification code used: %w", err)
	}
	return nil
}

func (s *VerificationStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM verification_codes WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired verification codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
