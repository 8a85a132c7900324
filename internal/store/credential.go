package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

type CredentialStore struct {
	db DBTX
}

func NewCredentialStore(db DBTX) *CredentialStore {
	return &CredentialStore{db: db}
}

func scanCredential(scanner interface{ Scan(...any) error }) (*model.Credential, error) {
	var c model.Credential
	var verifiedAt sql.NullTime
	err := scanner.Scan(&c.UserID, &c.Email, &c.PasswordHash, &verifiedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.VerifiedAt = timePtr(verifiedAt)
	return &c, nil
}

const credentialCols = `user_id, email, password_hash, verified_at, created_at`

func (s *CredentialStore) Create(ctx context.Context, userID, email, passwordHash string) (*model.Credential, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (user_id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		userID, email, passwordHash, time.Now().UTC(),
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert credential: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert credential: %w", err)
	}
	return s.GetByUserID(ctx, userID)
}

func (s *CredentialStore) GetByUserID(ctx context.Context, userID string) (*model.Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+credentialCols+` FROM credentials WHERE user_id = ?`, userID)
	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}

func (s *CredentialStore) GetByEmail(ctx context.Context, email string) (*model.Credential, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+credentialCols+` FROM credentials WHERE email = ?`, email)
	c, err := scanCredential(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential by email: %w", err)
	}
	return c, nil
}

func (s *CredentialStore) MarkVerified(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET verified_at = ? WHERE user_id = ? AND verified_at IS NULL`,
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	return nil
}

// Delete removes the credential along with its sessions and codes.
func (s *CredentialStore) Delete(ctx context.Context, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("delete credential: %w", err)
	}
	return ok, nil
}
