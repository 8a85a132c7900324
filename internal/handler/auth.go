package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/auth"
	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/identity"
	"github.com/dukerupert/ayudame/internal/middleware"
	"github.com/dukerupert/ayudame/internal/model"
)

type AuthHandler struct {
	provider *identity.Provider
	engine   *engine.Engine
	secure   bool
	logger   *slog.Logger
}

// NewAuthHandler builds the sign-up and session endpoints. secure marks the
// session cookie Secure, which should be set whenever the service is
// reached over https.
func NewAuthHandler(p *identity.Provider, e *engine.Engine, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{provider: p, engine: e, secure: secure, logger: logger}
}

type profileRequest struct {
	Username string     `json:"username"`
	Role     model.Role `json:"role"`
	Phone    string     `json:"phone"`
	Address  string     `json:"address"`
	Birth    string     `json:"birth"`
	Image    string     `json:"image"`
}

func (p profileRequest) newUser(id, email string) (model.NewUser, error) {
	nu := model.NewUser{
		ID:       id,
		Email:    email,
		Username: p.Username,
		Role:     p.Role,
		Phone:    p.Phone,
		Address:  p.Address,
		Image:    p.Image,
	}
	if p.Birth != "" {
		b, err := time.Parse(time.DateOnly, p.Birth)
		if err != nil {
			return nu, apperr.Validation("register user", "invalid_birth", "birth must be YYYY-MM-DD")
		}
		nu.Birth = &b
	}
	return nu, nil
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
	profileRequest
}

type sessionResponse struct {
	UserID    string      `json:"uid"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user,omitempty"`
}

// SignUp creates the credential, signs the new user in and, when a role is
// supplied, creates the profile with its stats. A profile failure is
// reported with the step that failed; the credential stays and the client
// can finish through POST /api/profile.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.provider.SignUp(r.Context(), req.Email, req.Password, req.Confirm)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	sess, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, &apperr.StepError{Step: "sign in", Err: err})
		return
	}
	h.setSessionCookie(w, sess)

	resp := sessionResponse{UserID: userID, Token: sess.Token, ExpiresAt: sess.ExpiresAt}
	if req.Role != "" {
		nu, err := req.newUser(userID, req.Email)
		if err == nil {
			resp.User, err = h.engine.RegisterUser(r.Context(), nu)
		}
		if err != nil {
			writeError(w, h.logger, &apperr.StepError{Step: "create profile", Err: err})
			return
		}
	}

	if err := h.provider.SendVerificationEmail(r.Context(), userID); err != nil {
		h.logger.Warn("verification email not sent", "user_id", userID, "error", err)
	}

	writeJSON(w, http.StatusCreated, resp)
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, sess)
	writeJSON(w, http.StatusOK, sessionResponse{UserID: sess.UserID, Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if err := h.provider.SignOut(r.Context(), ac.Token); err != nil {
		writeError(w, h.logger, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	if err := h.provider.SendVerificationEmail(r.Context(), currentUser(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type verifyRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.provider.Verify(r.Context(), currentUser(r), req.Code); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sess *model.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
