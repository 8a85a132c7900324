package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/store"
)

// RegisterUser creates the user profile and its stats row together.
// An empty ID is assigned a new uuid.
func (e *Engine) RegisterUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	const op = "register user"
	nu.Email = strings.TrimSpace(strings.ToLower(nu.Email))
	nu.Username = strings.TrimSpace(nu.Username)
	switch {
	case nu.Email == "":
		return nil, apperr.Validation(op, "email_required", "email is required")
	case nu.Username == "":
		return nil, apperr.Validation(op, "username_required", "username is required")
	case !nu.Role.Valid():
		return nil, apperr.Validation(op, "invalid_role", "role must be helper or elder")
	}
	if nu.ID == "" {
		nu.ID = e.newID()
	}

	var out *model.User
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			joined := e.now()
			u, err := s.users.Create(ctx, nu, joined)
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict(op, "email_taken", "a profile with that email already exists")
			}
			if err != nil {
				return err
			}
			if _, err := s.stats.Create(ctx, u.ID, joined); err != nil {
				return err
			}
			out = u
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("user registered", "user_id", out.ID, "role", out.Role)
	return out, nil
}

func (e *Engine) GetUser(ctx context.Context, id string) (*model.User, error) {
	const op = "get user"
	var u *model.User
	err := e.run(ctx, op, func(ctx context.Context) error {
		var err error
		u, err = requireUser(ctx, e.users, op, id)
		return err
	})
	return u, err
}

// UpdateProfile changes the editable contact fields. Role never changes.
func (e *Engine) UpdateProfile(ctx context.Context, id, username, phone, address, image string) (*model.User, error) {
	const op = "update profile"
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Validation(op, "username_required", "username is required")
	}
	var u *model.User
	err := e.run(ctx, op, func(ctx context.Context) error {
		var err error
		u, err = e.users.UpdateProfile(ctx, id, username, phone, address, image)
		if err == nil && u == nil {
			err = apperr.NotFound(op, "user not found")
		}
		return err
	})
	return u, err
}

// DeleteUser removes the user document along with the open requests they
// created. Stats and activity go with it.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	const op = "delete user"
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			if _, err := s.requests.DeleteOpenByCreator(ctx, id); err != nil {
				return err
			}
			ok, err := s.users.Delete(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.NotFound(op, "user not found")
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	e.logger.Info("user deleted", "user_id", id)
	return nil
}

// CreateRequest opens a request on behalf of creatorID, filling the
// creator's party slot from their profile. Urgency is kept only on
// requests opened by elders.
func (e *Engine) CreateRequest(ctx context.Context, creatorID string, in model.NewRequest) (*model.Request, error) {
	const op = "create request"
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return nil, apperr.Validation(op, "title_required", "title is required")
	}
	urgency, ok := model.ParseUrgency(string(in.Urgency))
	if !ok {
		return nil, apperr.Validation(op, "invalid_urgency", "urgency must be Alta, Media or Baja")
	}
	in.Urgency = urgency

	var out *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		creator, err := requireUser(ctx, e.users, op, creatorID)
		if err != nil {
			return err
		}
		if creator.Role != model.RoleElder {
			in.Urgency = model.UrgencyNone
		}
		out, err = e.requests.Create(ctx, e.newID(), creator, in, e.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request created", "request_id", out.ID, "creator", creatorID)
	return out, nil
}

func (e *Engine) GetRequest(ctx context.Context, id string) (*model.Request, error) {
	const op = "get request"
	var r *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		var err error
		r, err = requireRequest(ctx, e.requests, op, id)
		return err
	})
	return r, err
}

// ListOpen returns the open requests seeking role. An empty urgency
// matches every request.
func (e *Engine) ListOpen(ctx context.Context, role model.Role, urgency model.Urgency) ([]model.Request, error) {
	const op = "list open requests"
	if !role.Valid() {
		return nil, apperr.Validation(op, "invalid_role", "role must be helper or elder")
	}
	var list []model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		var err error
		list, err = e.requests.ListOpen(ctx, role, urgency)
		return err
	})
	return list, err
}

// ListOpenFor returns the open requests userID's role can accept.
func (e *Engine) ListOpenFor(ctx context.Context, userID string, urgency model.Urgency) ([]model.Request, error) {
	u, err := e.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return e.ListOpen(ctx, u.Role, urgency)
}

func (e *Engine) ListAccepted(ctx context.Context, userID string) ([]model.Request, error) {
	var list []model.Request
	err := e.run(ctx, "list accepted requests", func(ctx context.Context) error {
		var err error
		list, err = e.requests.ListAccepted(ctx, userID)
		return err
	})
	return list, err
}

// ListMine returns every request userID takes part in, on either side.
func (e *Engine) ListMine(ctx context.Context, userID string) ([]model.Request, error) {
	var list []model.Request
	err := e.run(ctx, "list my requests", func(ctx context.Context) error {
		var err error
		list, err = e.requests.ListByParty(ctx, userID)
		return err
	})
	return list, err
}

// DeleteRequest removes an unclaimed request. Only its creator may delete
// it; a request claimed first fails with ErrAlreadyAccepted.
func (e *Engine) DeleteRequest(ctx context.Context, requestID, callerID string) error {
	const op = "delete request"
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			if r.Creator().UserID != callerID {
				return apperr.Validation(op, "not_creator", "only the creator may delete a request")
			}
			if r.Status != model.StatusCreated {
				return apperr.E(op, apperr.ErrAlreadyAccepted)
			}
			ok, err := s.requests.DeleteUnclaimed(ctx, r.ID, callerID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.E(op, apperr.ErrAlreadyAccepted)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	e.logger.Info("request deleted", "request_id", requestID, "caller", callerID)
	return nil
}
