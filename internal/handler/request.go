package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/ayudame/internal/engine"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/websocket"
)

type RequestHandler struct {
	broadcaster
	engine *engine.Engine
	logger *slog.Logger
}

func NewRequestHandler(e *engine.Engine, hub *websocket.Hub, logger *slog.Logger) *RequestHandler {
	return &RequestHandler{broadcaster: broadcaster{hub: hub}, engine: e, logger: logger}
}

func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.NewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.engine.CreateRequest(r.Context(), currentUser(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.publish("created", created)
	writeJSON(w, http.StatusCreated, created)
}

// ListOpen returns the open requests the caller's role can accept,
// optionally filtered by ?urgency=.
func (h *RequestHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	urgency, ok := model.ParseUrgency(r.URL.Query().Get("urgency"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "urgency must be Alta, Media or Baja", Code: "invalid_urgency"})
		return
	}
	h.writeList(w, r, func(ctx context.Context) ([]model.Request, error) {
		return h.engine.ListOpenFor(ctx, currentUser(r), urgency)
	})
}

func (h *RequestHandler) ListAccepted(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, func(ctx context.Context) ([]model.Request, error) {
		return h.engine.ListAccepted(ctx, currentUser(r))
	})
}

func (h *RequestHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, func(ctx context.Context) ([]model.Request, error) {
		return h.engine.ListMine(ctx, currentUser(r))
	})
}

func (h *RequestHandler) writeList(w http.ResponseWriter, r *http.Request, list func(context.Context) ([]model.Request, error)) {
	requests, err := list(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if requests == nil {
		requests = []model.Request{}
	}
	writeJSON(w, http.StatusOK, requests)
}

// Get returns a request. Callers outside the request see it without the
// other parties' contact details.
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, req.ViewFor(currentUser(r)))
}

func (h *RequestHandler) Accept(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.Accept(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.publish("accepted", req)
	writeJSON(w, http.StatusOK, req)
}

// Complete finishes the request and prompts the caller to rate the other
// party.
func (h *RequestHandler) Complete(w http.ResponseWriter, r *http.Request) {
	caller := currentUser(r)
	req, err := h.engine.Complete(r.Context(), r.PathValue("id"), caller)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.publish("completed", req)
	if rated, ok := req.Counterpart(caller); ok {
		h.sendTo(websocket.RatingPrompt(req.ID, rated), caller)
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.Cancel(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.publish("cancelled", req)
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Release(w http.ResponseWriter, r *http.Request) {
	req, err := h.engine.Release(r.Context(), r.PathValue("id"), currentUser(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// The former acceptor is no longer a party but still gets the full copy.
	h.publish("released", req, currentUser(r))
	writeJSON(w, http.StatusOK, req)
}

func (h *RequestHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.DeleteRequest(r.Context(), id, currentUser(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.broadcast(websocket.RequestEvent("deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
