package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/store"
)

// ValidateStars rejects ratings outside 1..5.
func ValidateStars(stars int) error {
	if stars < model.MinStars || stars > model.MaxStars {
		return apperr.Validation("submit rating", "invalid_stars",
			fmt.Sprintf("stars must be between %d and %d", model.MinStars, model.MaxStars))
	}
	return nil
}

// SubmitRating records raterID's rating of ratedID for a completed request
// and folds it into ratedID's reputation. Both must be the request's two
// parties. Each rater may rate a request once.
func (e *Engine) SubmitRating(ctx context.Context, requestID, raterID, ratedID string, stars int) (*model.Rating, error) {
	const op = "submit rating"
	if err := ValidateStars(stars); err != nil {
		return nil, err
	}

	var out *model.Rating
	err := e.run(ctx, op, func(ctx context.Context) error {
		return e.inTx(ctx, func(s *txStores) error {
			r, err := requireRequest(ctx, s.requests, op, requestID)
			if err != nil {
				return err
			}
			if r.Status != model.StatusCompleted {
				return apperr.Validation(op, "not_completed", "only completed requests can be rated")
			}
			if other, ok := r.Counterpart(raterID); !ok || other != ratedID {
				return apperr.Validation(op, "not_party", "rater and rated must be the two parties of the request")
			}

			at := e.now()
			out, err = s.ratings.Create(ctx, r.ID, raterID, ratedID, stars, at)
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Wrap(op, apperr.ErrDuplicateRating, err)
			}
			if err != nil {
				return err
			}

			st, err := s.stats.Get(ctx, ratedID)
			if err != nil {
				return err
			}
			if st == nil {
				return apperr.NotFound(op, "rated user not found")
			}
			reputation := e.cfg.Reputation(st.Reputation, st.RatingCount, stars)
			if err := s.stats.SetReputation(ctx, ratedID, reputation, st.RatingCount+1); err != nil {
				return err
			}
			if err := s.users.SetReputation(ctx, ratedID, reputation); err != nil {
				return err
			}
			return s.ratings.FulfillPrompt(ctx, r.ID, raterID, at)
		})
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("rating submitted", "request_id", requestID, "rater", raterID, "rated", ratedID, "stars", stars)
	return out, nil
}

// PendingPrompts lists the ratings userID has been asked for and not yet given.
func (e *Engine) PendingPrompts(ctx context.Context, userID string) ([]model.RatingPrompt, error) {
	var prompts []model.RatingPrompt
	err := e.run(ctx, "list rating prompts", func(ctx context.Context) error {
		var err error
		prompts, err = e.ratings.PendingPrompts(ctx, userID)
		return err
	})
	return prompts, err
}

func (e *Engine) RatingsFor(ctx context.Context, userID string) ([]model.Rating, error) {
	var ratings []model.Rating
	err := e.run(ctx, "list ratings", func(ctx context.Context) error {
		var err error
		ratings, err = e.ratings.ListForUser(ctx, userID)
		return err
	})
	return ratings, err
}
