package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"splitroom/internal/core"
	"splitroom/internal/room"
	"splitroom/internal/share"
	"splitroom/internal/store"
)

type errorBody struct {
	Error string `json:"error"`
}

// challengeBody is the 202 answer for mutations staged behind the guard.
type challengeBody struct {
	Status string `json:"status"`
	Action string `json:"action"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownRecord):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidMode),
		errors.Is(err, core.ErrTooLong):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, room.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, room.ErrNoChallenge):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, room.ErrSettingsLocked):
		writeError(w, http.StatusLocked, err.Error())
	case errors.Is(err, share.ErrNothingToShare):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeChallengePending answers a staged mutation: nothing has been written
// yet, the client must complete the guard challenge.
func writeChallengePending(w http.ResponseWriter, action string) {
	writeJSON(w, http.StatusAccepted, challengeBody{Status: "challenge_pending", Action: action})
}
