package engine

import (
	"context"
	"time"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
)

// Creada -> Aceptada -> Completada | Cancelada. Aceptada -> Creada is a
// release by the acceptor.
var transitions = map[model.Status][]model.Status{
	model.StatusCreated:  {model.StatusAccepted},
	model.StatusAccepted: {model.StatusCompleted, model.StatusCancelled, model.StatusCreated},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	activityAccepted  = "Solicitud aceptada"
	activityCompleted = "Solicitud completada"
	activityCancelled = "Solicitud cancelada"
	activityReleased  = "Solicitud liberada"
)

// recordActivity appends one entry for each occupied party slot whose user
// still exists.
func recordActivity(ctx context.Context, s *txStores, r *model.Request, title string, at time.Time) error {
	for _, p := range []model.Party{r.Elder, r.Helper} {
		if p.Empty() {
			continue
		}
		u, err := s.users.GetByID(ctx, p.UserID)
		if err != nil {
			return err
		}
		if u == nil {
			continue
		}
		if _, err := s.activity.Append(ctx, p.UserID, r.ID, title, r.Title, at); err != nil {
			return err
		}
	}
	return nil
}

// Complete moves an Accepted request to Completada. Only one of its two
// parties may complete it. The acceptor is credited with the completion,
// both parties get an activity entry, and the caller is prompted to rate
// the other party.
func (e *Engine) Complete(ctx context.Context, requestID, callerID string) (*model.Request, error) {
	const op = "complete request"
	var out *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			if !r.IsParty(callerID) {
				return apperr.Validation(op, "not_party", "only the two parties of a request may complete it")
			}
			if !CanTransition(r.Status, model.StatusCompleted) {
				return apperr.Transition(op, "cannot complete a request in status "+string(r.Status))
			}

			at := e.now()
			ok, err := s.requests.Transition(ctx, r.ID, model.StatusAccepted, model.StatusCompleted, at)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Transition(op, "request is no longer accepted")
			}

			if err := s.aggregator.OnCompleted(ctx, r.AcceptedBy, at); err != nil {
				return err
			}
			if err := recordActivity(ctx, s, r, activityCompleted, at); err != nil {
				return err
			}
			if other, ok := r.Counterpart(callerID); ok {
				if _, err := s.ratings.CreatePrompt(ctx, r.ID, callerID, other, at); err != nil {
					return err
				}
			}

			out, err = s.requests.GetByID(ctx, r.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request completed", "request_id", requestID, "caller", callerID)
	return out, nil
}

// Cancel moves an Accepted request to Cancelada. Either party may cancel.
// The acceptor's in-progress count is released and both parties get an
// activity entry.
func (e *Engine) Cancel(ctx context.Context, requestID, callerID string) (*model.Request, error) {
	const op = "cancel request"
	var out *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			if !r.IsParty(callerID) {
				return apperr.Validation(op, "not_party", "only the two parties of a request may cancel it")
			}
			if !CanTransition(r.Status, model.StatusCancelled) {
				return apperr.Transition(op, "cannot cancel a request in status "+string(r.Status))
			}

			at := e.now()
			ok, err := s.requests.Transition(ctx, r.ID, model.StatusAccepted, model.StatusCancelled, at)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Transition(op, "request is no longer accepted")
			}

			if err := s.aggregator.OnCancelled(ctx, r.AcceptedBy); err != nil {
				return err
			}
			if err := recordActivity(ctx, s, r, activityCancelled, at); err != nil {
				return err
			}

			out, err = s.requests.GetByID(ctx, r.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request cancelled", "request_id", requestID, "caller", callerID)
	return out, nil
}

// Release hands an Accepted request back to the open pool. Only the
// acceptor may release; the acceptor and its slot are cleared together.
func (e *Engine) Release(ctx context.Context, requestID, callerID string) (*model.Request, error) {
	const op = "release request"
	var out *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			if !CanTransition(r.Status, model.StatusCreated) {
				return apperr.Transition(op, "cannot release a request in status "+string(r.Status))
			}
			if r.AcceptedBy != callerID {
				return apperr.Validation(op, "not_acceptor", "only the acceptor may release a request")
			}

			// Activity goes to both parties, so record it before the
			// acceptor's slot is cleared.
			at := e.now()
			if err := recordActivity(ctx, s, r, activityReleased, at); err != nil {
				return err
			}

			acceptor := &model.User{ID: r.AcceptedBy, Role: r.Seeking()}
			ok, err := s.requests.Release(ctx, r.ID, acceptor)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Transition(op, "request is no longer accepted")
			}
			if err := s.aggregator.OnCancelled(ctx, acceptor.ID); err != nil {
				return err
			}

			out, err = s.requests.GetByID(ctx, r.ID)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request released", "request_id", requestID, "caller", callerID)
	return out, nil
}
