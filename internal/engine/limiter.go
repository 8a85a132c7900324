package engine

import (
	"context"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/store"
)

// Limiter caps how many Accepted requests one user may hold at once.
type Limiter struct {
	max int
}

func NewLimiter(max int) *Limiter {
	if max <= 0 {
		max = DefaultMaxInProgress
	}
	return &Limiter{max: max}
}

func (l *Limiter) Max() int {
	return l.max
}

// Check fails with ErrLimitReached when userID already holds the maximum.
// requests must be bound to the transaction that performs the claim so the
// count and the claim see the same state.
func (l *Limiter) Check(ctx context.Context, requests *store.RequestStore, userID string) error {
	n, err := requests.CountInProgress(ctx, userID)
	if err != nil {
		return err
	}
	if n >= l.max {
		return apperr.E("check limit", apperr.ErrLimitReached)
	}
	return nil
}
