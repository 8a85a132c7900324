package engine

import (
	"context"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
)

// Accept makes acceptorID the sole acceptor of an open request.
//
// The request is re-read, the limiter consulted and the claim written in
// one immediate transaction, so concurrent callers are serialized: exactly
// one succeeds and the rest see ErrAlreadyAccepted with nothing written.
// A caller already holding the maximum number of accepted requests gets
// ErrLimitReached.
func (e *Engine) Accept(ctx context.Context, requestID, acceptorID string) (*model.Request, error) {
	const op = "accept request"
	var out *model.Request
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			acceptor, err := requireUser(ctx, s.users, op, acceptorID)
			if err != nil {
				return err
			}

			if r.Status != model.StatusCreated || r.AcceptedBy != "" {
				return apperr.E(op, apperr.ErrAlreadyAccepted)
			}
			if r.Creator().UserID == acceptor.ID {
				return apperr.Validation(op, "own_request", "cannot accept your own request")
			}
			if acceptor.Role != r.Seeking() {
				return apperr.Validation(op, "wrong_role", "request is not seeking a "+string(acceptor.Role))
			}

			if err := e.limiter.Check(ctx, s.requests, acceptor.ID); err != nil {
				return err
			}

			ok, err := s.requests.Claim(ctx, r.ID, acceptor)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.E(op, apperr.ErrAlreadyAccepted)
			}

			if err := s.aggregator.OnAccepted(ctx, acceptor.ID); err != nil {
				return err
			}
			out, err = s.requests.GetByID(ctx, r.ID)
			if err != nil {
				return err
			}
			return recordActivity(ctx, s, out, activityAccepted, e.now())
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("request accepted", "request_id", requestID, "acceptor", acceptorID)
	return out, nil
}
