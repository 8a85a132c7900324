package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

type UserStore struct {
	db DBTX
}

func NewUserStore(db DBTX) *UserStore {
	return &UserStore{db: db}
}

// WithTx returns a UserStore bound to tx.
func (s *UserStore) WithTx(tx *sql.Tx) *UserStore {
	return &UserStore{db: tx}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var birth sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &u.Username, &u.Role, &u.Phone, &u.Address, &birth,
		&u.Image, &u.Reputation, &u.Points, &u.Level, &u.JoinedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Birth = timePtr(birth)
	return &u, nil
}

const userCols = `id, email, username, role, phone, address, birth, image, reputation, points, level, joined_at, updated_at`

func (s *UserStore) Create(ctx context.Context, nu model.NewUser, joinedAt time.Time) (*model.User, error) {
	joinedAt = joinedAt.UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, username, role, phone, address, birth, image, joined_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nu.ID, nu.Email, nu.Username, nu.Role, nu.Phone, nu.Address, nullTime(nu.Birth), nu.Image, joinedAt, joinedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, nu.ID)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// UpdateProfile changes the contact fields. Role is not updatable.
func (s *UserStore) UpdateProfile(ctx context.Context, id, username, phone, address, image string) (*model.User, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET username = ?, phone = ?, address = ?, image = ?, updated_at = ? WHERE id = ?`,
		username, phone, address, image, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if ok, err := affected(result); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	} else if !ok {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// SetProgress mirrors the points and level held in stats.
func (s *UserStore) SetProgress(ctx context.Context, id string, points, level int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET points = ?, level = ? WHERE id = ?`,
		points, level, id,
	)
	if err != nil {
		return fmt.Errorf("set user progress: %w", err)
	}
	return nil
}

// SetReputation mirrors the reputation average held in stats.
func (s *UserStore) SetReputation(ctx context.Context, id string, reputation float64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET reputation = ? WHERE id = ?`, reputation, id)
	if err != nil {
		return fmt.Errorf("set user reputation: %w", err)
	}
	return nil
}

// Delete removes the user document. It reports false when no user matched.
func (s *UserStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return ok, nil
}
