// Package identity is the credential and session provider: email/password
// sign-up and sign-in, opaque session tokens, and emailed verification codes.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/auth"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/store"
)

const (
	DefaultSessionTTL = 30 * 24 * time.Hour
	MinPasswordLength = 8
	maxCodeAttempts   = 5
)

// Mailer delivers verification codes.
type Mailer interface {
	Configured() bool
	SendVerificationCode(ctx context.Context, toEmail, code string) error
}

type Provider struct {
	credentials *store.CredentialStore
	sessions    *store.SessionStore
	codes       *store.VerificationStore
	mailer      Mailer
	sessionTTL  time.Duration
	bcryptCost  int
	logger      *slog.Logger
}

type Option func(*Provider)

func WithSessionTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.sessionTTL = ttl }
}

// WithBcryptCost overrides the hashing cost, mainly so tests run quickly.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) { p.bcryptCost = cost }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

func New(db *sql.DB, mailer Mailer, opts ...Option) *Provider {
	p := &Provider{
		credentials: store.NewCredentialStore(db),
		sessions:    store.NewSessionStore(db),
		codes:       store.NewVerificationStore(db),
		mailer:      mailer,
		sessionTTL:  DefaultSessionTTL,
		bcryptCost:  bcrypt.DefaultCost,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "identity")
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new credential and returns the user id assigned to it.
func (p *Provider) SignUp(ctx context.Context, email, password, confirm string) (string, error) {
	const op = "sign up"
	email = normalizeEmail(email)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return "", apperr.Validation(op, "invalid_email", "a valid email is required")
	case len(password) < MinPasswordLength:
		return "", apperr.Validation(op, "weak_password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	case password != confirm:
		return "", apperr.Validation(op, "password_mismatch", "passwords do not match")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.bcryptCost)
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("hash password: %w", err))
	}

	userID := uuid.NewString()
	_, err = p.credentials.Create(ctx, userID, email, string(hash))
	if errors.Is(err, store.ErrDuplicate) {
		return "", apperr.Conflict(op, "email_taken", "an account with that email already exists")
	}
	if err != nil {
		return "", apperr.Internal(op, err)
	}

	p.logger.Info("credential created", "user_id", userID)
	return userID, nil
}

// SignIn checks the password and opens a new session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	const op = "sign in"
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(op, "missing_credentials", "email and password are required")
	}

	cred, err := p.credentials.GetByEmail(ctx, email)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if cred == nil {
		return nil, apperr.E(op, apperr.ErrInvalidCredential)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.Wrap(op, apperr.ErrInvalidCredential, err)
	}

	sess, err := p.sessions.Create(ctx, cred.UserID, p.sessionTTL)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	p.logger.Info("signed in", "user_id", cred.UserID)
	return sess, nil
}

// Authenticate resolves a session token. Unknown or expired tokens fail
// with ErrUnauthenticated.
func (p *Provider) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	const op = "authenticate"
	if token == "" {
		return nil, apperr.E(op, apperr.ErrUnauthenticated)
	}
	sess, err := p.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if sess == nil {
		return nil, apperr.E(op, apperr.ErrUnauthenticated)
	}
	return sess, nil
}

// CurrentUserID returns the user signed in on ctx.
func (p *Provider) CurrentUserID(ctx context.Context) (string, error) {
	id := auth.UserID(ctx)
	if id == "" {
		return "", apperr.E("current user", apperr.ErrUnauthenticated)
	}
	return id, nil
}

func (p *Provider) SignOut(ctx context.Context, token string) error {
	if err := p.sessions.DeleteByToken(ctx, token); err != nil {
		return apperr.Internal("sign out", err)
	}
	return nil
}

// SendVerificationEmail issues a fresh code for userID and mails it to the
// address on their credential. Earlier codes stop working.
func (p *Provider) SendVerificationEmail(ctx context.Context, userID string) error {
	const op = "send verification email"
	cred, err := p.credentials.GetByUserID(ctx, userID)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if cred == nil {
		return apperr.NotFound(op, "account not found")
	}
	if cred.VerifiedAt != nil {
		return apperr.Validation(op, "already_verified", "email already verified")
	}
	if p.mailer == nil || !p.mailer.Configured() {
		return apperr.Wrap(op, apperr.ErrUnavailable, errors.New("email delivery not configured"))
	}

	code, err := p.codes.Create(ctx, userID)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if err := p.mailer.SendVerificationCode(ctx, cred.Email, code.Code); err != nil {
		return apperr.Wrap(op, apperr.ErrUnavailable, err)
	}
	p.logger.Info("verification code sent", "user_id", userID)
	return nil
}

// Verify marks userID's email as verified when code matches the latest
// pending code. Every guess, right or wrong, spends one of the code's
// attempts; once they are gone the code stops working.
func (p *Provider) Verify(ctx context.Context, userID, code string) error {
	const op = "verify email"
	pending, err := p.codes.GetLatest(ctx, userID)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if pending == nil {
		return apperr.Validation(op, "code_expired", "no pending verification code")
	}
	ok, err := p.codes.UseAttempt(ctx, pending.ID, maxCodeAttempts)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if !ok {
		return apperr.Validation(op, "too_many_attempts", "too many attempts, request a new code")
	}
	if strings.TrimSpace(code) != pending.Code {
		return apperr.Validation(op, "invalid_code", "verification code does not match")
	}

	if err := p.codes.MarkUsed(ctx, pending.ID); err != nil {
		return apperr.Internal(op, err)
	}
	if err := p.credentials.MarkVerified(ctx, userID); err != nil {
		return apperr.Internal(op, err)
	}
	p.logger.Info("email verified", "user_id", userID)
	return nil
}

// Email returns the address registered for userID.
func (p *Provider) Email(ctx context.Context, userID string) (string, error) {
	const op = "get email"
	cred, err := p.credentials.GetByUserID(ctx, userID)
	if err != nil {
		return "", apperr.Internal(op, err)
	}
	if cred == nil {
		return "", apperr.NotFound(op, "account not found")
	}
	return cred.Email, nil
}

// DeleteIdentity removes the credential along with its sessions and codes.
func (p *Provider) DeleteIdentity(ctx context.Context, userID string) error {
	const op = "delete identity"
	ok, err := p.credentials.Delete(ctx, userID)
	if err != nil {
		return apperr.Internal(op, err)
	}
	if !ok {
		return apperr.NotFound(op, "account not found")
	}
	p.logger.Info("identity deleted", "user_id", userID)
	return nil
}

// Cleanup purges expired sessions and verification codes.
func (p *Provider) Cleanup(ctx context.Context) (sessions, codes int64, err error) {
	sessions, err = p.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	codes, err = p.codes.DeleteExpired(ctx)
	if err != nil {
		return sessions, 0, err
	}
	return sessions, codes, nil
}
