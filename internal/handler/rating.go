package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/model"
)

type RatingHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewRatingHandler(e *engine.Engine, logger *slog.Logger) *RatingHandler {
	return &RatingHandler{engine: e, logger: logger}
}

type ratingRequest struct {
	RatedID string `json:"ratedUid"`
	Stars   int    `json:"stars"`
}

// Submit rates the other party of the completed request in the path.
func (h *RatingHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req ratingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rating, err := h.engine.SubmitRating(r.Context(), r.PathValue("id"), currentUser(r), req.RatedID, req.Stars)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

func (h *RatingHandler) Pending(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.engine.PendingPrompts(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if prompts == nil {
		prompts = []model.RatingPrompt{}
	}
	writeJSON(w, http.StatusOK, prompts)
}

func (h *RatingHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ratings, err := h.engine.RatingsFor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if ratings == nil {
		ratings = []model.Rating{}
	}
	writeJSON(w, http.StatusOK, ratings)
}
