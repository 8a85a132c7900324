package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

type RequestStore struct {
	db DBTX
}

func NewRequestStore(db DBTX) *RequestStore {
	return &RequestStore{db: db}
}

// WithTx returns a RequestStore bound to tx.
func (s *RequestStore) WithTx(tx *sql.Tx) *RequestStore {
	return &RequestStore{db: tx}
}

type slotColumns struct {
	uid, username, address, phone string
}

func slotFor(role model.Role) slotColumns {
	if role == model.RoleElder {
		return slotColumns{"uid_older", "older_username", "older_address", "older_phone"}
	}
	return slotColumns{"uid_helper", "helper_username", "helper_address", "helper_phone"}
}

func scanRequest(scanner interface{ Scan(...any) error }) (*model.Request, error) {
	var r model.Request
	var completedAt, cancelledAt sql.NullTime

	err := scanner.Scan(
		&r.ID, &r.Title, &r.Description, &r.Urgency, &r.CreatedBy,
		&r.Elder.UserID, &r.Elder.Username, &r.Elder.Address, &r.Elder.Phone,
		&r.Helper.UserID, &r.Helper.Username, &r.Helper.Address, &r.Helper.Phone,
		&r.AcceptedBy, &r.Status, &r.CreatedAt, &completedAt, &cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	r.CompletedAt = timePtr(completedAt)
	r.CancelledAt = timePtr(cancelledAt)
	return &r, nil
}

const requestCols = `id, title, description, urgency, created_by,
	uid_older, older_username, older_address, older_phone,
	uid_helper, helper_username, helper_address, helper_phone,
	accepted_by, status, date_created, completed_at, cancelled_at`

func (s *RequestStore) list(ctx context.Context, op, where string, args ...any) ([]model.Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+requestCols+` FROM requests WHERE `+where+` ORDER BY date_created DESC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// Create inserts a request in the Created state with the creator's slot
// filled from creator.
func (s *RequestStore) Create(ctx context.Context, id string, creator *model.User, in model.NewRequest, at time.Time) (*model.Request, error) {
	cols := slotFor(creator.Role)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (id, title, description, urgency, created_by, `+
			cols.uid+`, `+cols.username+`, `+cols.address+`, `+cols.phone+`, status, date_created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Title, in.Description, in.Urgency, creator.Role,
		creator.ID, creator.Username, creator.Address, creator.Phone,
		model.StatusCreated, at.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *RequestStore) GetByID(ctx context.Context, id string) (*model.Request, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM requests WHERE id = ?`, id)
	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	return r, nil
}

// ListOpen returns Created requests whose slot for seeking is still empty.
// An empty urgency matches every request.
func (s *RequestStore) ListOpen(ctx context.Context, seeking model.Role, urgency model.Urgency) ([]model.Request, error) {
	cols := slotFor(seeking)
	where := `status = ? AND ` + cols.uid + ` = ''`
	args := []any{model.StatusCreated}
	if urgency != model.UrgencyNone {
		where += ` AND urgency = ?`
		args = append(args, urgency)
	}
	return s.list(ctx, "list open requests", where, args...)
}

// ListAccepted returns the requests userID currently holds.
func (s *RequestStore) ListAccepted(ctx context.Context, userID string) ([]model.Request, error) {
	return s.list(ctx, "list accepted requests", `status = ? AND accepted_by = ?`, model.StatusAccepted, userID)
}

// ListByParty returns every request where userID occupies either slot.
func (s *RequestStore) ListByParty(ctx context.Context, userID string) ([]model.Request, error) {
	return s.list(ctx, "list requests by party", `uid_older = ? OR uid_helper = ?`, userID, userID)
}

func (s *RequestStore) CountInProgress(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE status = ? AND accepted_by = ?`,
		model.StatusAccepted, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count in progress: %w", err)
	}
	return n, nil
}

// Claim sets acceptor as the sole acceptor of a Created request and copies
// its contact fields into the slot for its role. It reports false when the
// request is no longer claimable.
func (s *RequestStore) Claim(ctx context.Context, id string, acceptor *model.User) (bool, error) {
	cols := slotFor(acceptor.Role)
	result, err := s.db.ExecContext(ctx,
		`UPDATE requests SET accepted_by = ?, status = ?, `+
			cols.uid+` = ?, `+cols.username+` = ?, `+cols.address+` = ?, `+cols.phone+` = ?
		 WHERE id = ? AND status = ? AND accepted_by = '' AND `+cols.uid+` = ''`,
		acceptor.ID, model.StatusAccepted,
		acceptor.ID, acceptor.Username, acceptor.Address, acceptor.Phone,
		id, model.StatusCreated,
	)
	if err != nil {
		return false, fmt.Errorf("claim request: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("claim request: %w", err)
	}
	return ok, nil
}

// Transition moves a request from one status to another, stamping the
// completion or cancellation time. It reports false when the request was
// not in from.
func (s *RequestStore) Transition(ctx context.Context, id string, from, to model.Status, at time.Time) (bool, error) {
	stamp := ""
	switch to {
	case model.StatusCompleted:
		stamp = `, completed_at = ?`
	case model.StatusCancelled:
		stamp = `, cancelled_at = ?`
	default:
		return false, fmt.Errorf("transition request: unsupported target %q", to)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?`+stamp+` WHERE id = ? AND status = ?`,
		to, at.UTC(), id, from,
	)
	if err != nil {
		return false, fmt.Errorf("transition request: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("transition request: %w", err)
	}
	return ok, nil
}

// Release returns an Accepted request to the open pool, clearing the
// acceptor and its slot in a single update.
func (s *RequestStore) Release(ctx context.Context, id string, acceptor *model.User) (bool, error) {
	cols := slotFor(acceptor.Role)
	result, err := s.db.ExecContext(ctx,
		`UPDATE requests SET status = ?, accepted_by = '', `+
			cols.uid+` = '', `+cols.username+` = '', `+cols.address+` = '', `+cols.phone+` = ''
		 WHERE id = ? AND status = ? AND accepted_by = ?`,
		model.StatusCreated, id, model.StatusAccepted, acceptor.ID,
	)
	if err != nil {
		return false, fmt.Errorf("release request: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("release request: %w", err)
	}
	return ok, nil
}

// DeleteUnclaimed removes a request only while it is still Created and
// creatorID is the one who opened it.
func (s *RequestStore) DeleteUnclaimed(ctx context.Context, id, creatorID string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM requests
		 WHERE id = ? AND status = ? AND accepted_by = ''
		   AND ((created_by = 'elder' AND uid_older = ?) OR (created_by = 'helper' AND uid_helper = ?))`,
		id, model.StatusCreated, creatorID, creatorID,
	)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	ok, err := affected(result)
	if err != nil {
		return false, fmt.Errorf("delete request: %w", err)
	}
	return ok, nil
}

// DeleteOpenByCreator removes every unclaimed request opened by userID.
func (s *RequestStore) DeleteOpenByCreator(ctx context.Context, userID string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM requests
		 WHERE status = ? AND accepted_by = ''
		   AND ((created_by = 'elder' AND uid_older = ?) OR (created_by = 'helper' AND uid_helper = ?))`,
		model.StatusCreated, userID, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("delete open requests: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
