// Package handler implements the JSON API on top of the request engine and
// the identity provider.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/ayudame/internal/apperr"
	"github.com/dukerupert/ayudame/internal/auth"
	"github.com/dukerupert/ayudame/internal/model"
	"github.com/dukerupert/ayudame/internal/websocket"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Step  string `json:"step,omitempty"`
}

// writeError renders err using its kind. Internal errors are logged and
// their details are not exposed.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	kind := apperr.KindOf(err)
	body := errorBody{Code: apperr.CodeOf(err)}

	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Message != "" {
		body.Error = ae.Message
	} else {
		body.Error = string(kind)
	}

	var se *apperr.StepError
	if errors.As(err, &se) {
		body.Step = se.Step
	}

	if kind == apperr.KindInternal {
		logger.Error("request failed", "error", err)
		body.Error = "internal error"
		body.Code = "internal"
	}
	writeJSON(w, statusFor(kind), body)
}

// decodeJSON reads a JSON body into v. It writes the 400 response itself
// and reports false when the body is unusable.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON", Code: "invalid_json"})
		return false
	}
	return true
}

func currentUser(r *http.Request) string {
	return auth.UserID(r.Context())
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// broadcaster is embedded by handlers that publish realtime events. A nil
// hub disables publishing.
type broadcaster struct {
	hub *websocket.Hub
}

func (b broadcaster) broadcast(msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(msg)
	}
}

// publish announces a lifecycle change of r. The request's parties, plus
// any extra users, get the full request; everyone else gets r.Public().
func (b broadcaster) publish(action string, r *model.Request, extra ...string) {
	if b.hub == nil {
		return
	}
	parties := append([]string{r.Elder.UserID, r.Helper.UserID}, extra...)
	b.hub.Publish(
		websocket.RequestEvent(action, r.ID, r.Public()),
		websocket.RequestEvent(action, r.ID, r),
		parties...,
	)
}

func (b broadcaster) sendTo(msg websocket.Message, userIDs ...string) {
	if b.hub != nil {
		b.hub.SendTo(msg, userIDs...)
	}
}
