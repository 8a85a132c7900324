package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/auth"
	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/identity"
	"github.com/dukerupert/ayudame/internal/model"
)

const defaultActivityLimit = 50

type ProfileHandler struct {
	engine   *engine.Engine
	provider *identity.Provider
	logger   *slog.Logger
}

func NewProfileHandler(e *engine.Engine, p *identity.Provider, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{engine: e, provider: p, logger: logger}
}

// Me returns the signed-in user's profile, or 404 with code
// profile_required when only the credential exists.
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !auth.HasProfile(r.Context()) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "profile not created", Code: "profile_required"})
		return
	}
	u, err := h.engine.GetUser(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Create finishes registration for a signed-in user without a profile.
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := currentUser(r)
	email, err := h.provider.Email(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	nu, err := req.newUser(userID, email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.engine.RegisterUser(r.Context(), nu)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.engine.UpdateProfile(r.Context(), currentUser(r), req.Username, req.Phone, req.Address, req.Image)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// DeleteAccount removes the user document and then the identity. It stops
// at the first failing step and names it in the response.
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	if auth.HasProfile(r.Context()) {
		if err := h.engine.DeleteUser(r.Context(), userID); err != nil {
			writeError(w, h.logger, &apperr.StepError{Step: "delete user document", Err: err})
			return
		}
	}
	if err := h.provider.DeleteIdentity(r.Context(), userID); err != nil {
		writeError(w, h.logger, &apperr.StepError{Step: "delete identity", Err: err})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats returns the counters of the user in the path, or of the caller
// when no id is given.
func (h *ProfileHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	if userID == "" {
		userID = currentUser(r)
	}
	st, err := h.engine.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *ProfileHandler) Activity(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Activity(r.Context(), currentUser(r), queryInt(r, "limit", defaultActivityLimit))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []model.Activity{}
	}
	writeJSON(w, http.StatusOK, items)
}
