// Package engine implements request matching and lifecycle: creating
// requests, the atomic accept, completion, cancellation and release, and
// the per-user statistics and ratings those transitions feed.
//
// Every exported operation runs as an independent unit of work. It is
// detached from the caller's cancellation and bounded by Config.OpTimeout,
// so abandoning a call never interrupts a write halfway.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/store"
)

const (
	DefaultOpTimeout      = 5 * time.Second
	DefaultMaxInProgress  = 3
	DefaultPointsPerTask  = 10
	DefaultPointsPerLevel = 100
)

type Config struct {
	OpTimeout     time.Duration
	MaxInProgress int
	Progression   ProgressionFunc
	Reputation    ReputationFunc
}

func (c Config) withDefaults() Config {
	if c.OpTimeout <= 0 {
		c.OpTimeout = DefaultOpTimeout
	}
	if c.MaxInProgress <= 0 {
		c.MaxInProgress = DefaultMaxInProgress
	}
	if c.Progression == nil {
		c.Progression = FlatProgression(DefaultPointsPerTask, DefaultPointsPerLevel)
	}
	if c.Reputation == nil {
		c.Reputation = MeanReputation
	}
	return c
}

type Engine struct {
	db       *sql.DB
	users    *store.UserStore
	requests *store.RequestStore
	stats    *store.StatsStore
	activity *store.ActivityStore
	ratings  *store.RatingStore

	limiter    *Limiter
	aggregator *Aggregator

	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock replaces time.Now for stamping creations and transitions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(db *sql.DB, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		db:       db,
		users:    store.NewUserStore(db),
		requests: store.NewRequestStore(db),
		stats:    store.NewStatsStore(db),
		activity: store.NewActivityStore(db),
		ratings:  store.NewRatingStore(db),
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "engine")
	e.limiter = NewLimiter(cfg.MaxInProgress)
	e.aggregator = NewAggregator(e.stats, e.users, cfg.Progression, e.logger)
	return e
}

// Aggregator returns the stats aggregator bound to the engine's database.
func (e *Engine) Aggregator() *Aggregator {
	return e.aggregator
}

// txStores holds every store bound to one transaction.
type txStores struct {
	users      *store.UserStore
	requests   *store.RequestStore
	stats      *store.StatsStore
	activity   *store.ActivityStore
	ratings    *store.RatingStore
	aggregator *Aggregator
}

func (e *Engine) inTx(ctx context.Context, fn func(s *txStores) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	s := &txStores{
		users:      e.users.WithTx(tx),
		requests:   e.requests.WithTx(tx),
		stats:      e.stats.WithTx(tx),
		activity:   e.activity.WithTx(tx),
		ratings:    e.ratings.WithTx(tx),
		aggregator: e.aggregator.WithTx(tx),
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// run executes fn detached from ctx's cancellation under the operation
// timeout and classifies whatever it returns.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.OpTimeout)
	defer cancel()

	err := classify(op, fn(ctx))
	if err != nil && apperr.KindOf(err) == apperr.KindInternal {
		e.logger.Error("operation failed", "op", op, "error", err)
	}
	return err
}

func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(op, apperr.ErrTimeout, err)
	case store.IsBusy(err):
		return apperr.Wrap(op, apperr.ErrUnavailable, err)
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(op, "record not found")
	}
	return apperr.Internal(op, err)
}

func requireUser(ctx context.Context, users *store.UserStore, op, id string) (*model.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound(op, "user not found")
	}
	return u, nil
}

func requireRequest(ctx context.Context, requests *store.RequestStore, op, id string) (*model.Request, error) {
	r, err := requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperr.NotFound(op, "request not found")
	}
	return r, nil
}
