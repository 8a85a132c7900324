package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/store"
)

// Aggregator maintains the per-user counters derived from lifecycle events.
// Nothing else writes the stats table.
type Aggregator struct {
	stats       *store.StatsStore
	users       *store.UserStore
	progression ProgressionFunc
	logger      *slog.Logger
}

func NewAggregator(stats *store.StatsStore, users *store.UserStore, progression ProgressionFunc, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{stats: stats, users: users, progression: progression, logger: logger}
}

// WithTx returns an Aggregator whose writes join tx.
func (a *Aggregator) WithTx(tx *sql.Tx) *Aggregator {
	return &Aggregator{
		stats:       a.stats.WithTx(tx),
		users:       a.users.WithTx(tx),
		progression: a.progression,
		logger:      a.logger,
	}
}

func (a *Aggregator) OnAccepted(ctx context.Context, userID string) error {
	err := a.stats.AdjustInProgress(ctx, userID, 1)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("stats on accepted", "stats not found for user")
	}
	return err
}

// OnCompleted releases one in-progress task and credits a completion to the
// weekday of at, in at's own location. Points and level advance through the
// progression policy and are mirrored onto the user profile.
func (a *Aggregator) OnCompleted(ctx context.Context, userID string, at time.Time) error {
	before, err := a.stats.Get(ctx, userID)
	if err != nil {
		return err
	}
	if before == nil {
		// The acceptor deleted their account; their counters went with it.
		a.logger.Warn("no stats for completed task", "user_id", userID)
		return nil
	}

	points, level := a.progression(*before)
	if err := a.stats.RecordCompletion(ctx, userID, model.WeekdayIndex(at), points, level); err != nil {
		return err
	}
	return a.users.SetProgress(ctx, userID, points, level)
}

func (a *Aggregator) OnCancelled(ctx context.Context, userID string) error {
	err := a.stats.AdjustInProgress(ctx, userID, -1)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("no stats for cancelled task", "user_id", userID)
		return nil
	}
	return err
}

// ResetWeek zeroes every user's weekly completion slots. The weekly
// rollover is driven externally.
func (a *Aggregator) ResetWeek(ctx context.Context) (int64, error) {
	return a.stats.ResetWeek(ctx)
}

// Reconcile recomputes userID's in-progress count from the requests it
// currently holds. It returns whether the stored value was out of sync.
func (a *Aggregator) Reconcile(ctx context.Context, userID string) (bool, error) {
	n, err := a.stats.ReconcileInProgress(ctx, userID)
	return n > 0, err
}

// ReconcileAll reconciles every user and returns how many were repaired.
func (a *Aggregator) ReconcileAll(ctx context.Context) (int64, error) {
	return a.stats.ReconcileInProgress(ctx, "")
}

// ResetWeek runs the weekly rollover as an engine operation.
func (e *Engine) ResetWeek(ctx context.Context) (int64, error) {
	var n int64
	err := e.run(ctx, "reset week", func(ctx context.Context) error {
		var err error
		n, err = e.aggregator.ResetWeek(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	e.logger.Info("weekly counters reset", "users", n)
	return n, nil
}

// Reconcile repairs in-progress counters. An empty userID reconciles
// every user.
func (e *Engine) Reconcile(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := e.run(ctx, "reconcile stats", func(ctx context.Context) error {
		if userID == "" {
			var err error
			n, err = e.aggregator.ReconcileAll(ctx)
			return err
		}
		fixed, err := e.aggregator.Reconcile(ctx, userID)
		if fixed {
			n = 1
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Warn("in-progress counters repaired", "users", n)
	}
	return n, nil
}

func (e *Engine) Stats(ctx context.Context, userID string) (*model.Stats, error) {
	const op = "get stats"
	var st *model.Stats
	err := e.run(ctx, op, func(ctx context.Context) error {
		var err error
		st, err = e.stats.Get(ctx, userID)
		if err == nil && st == nil {
			err = apperr.NotFound(op, "stats not found")
		}
		return err
	})
	return st, err
}

func (e *Engine) Activity(ctx context.Context, userID string, limit int) ([]model.Activity, error) {
	var entries []model.Activity
	err := e.run(ctx, "list activity", func(ctx context.Context) error {
		var err error
		entries, err = e.activity.ListByUser(ctx, userID, limit)
		return err
	})
	return entries, err
}
