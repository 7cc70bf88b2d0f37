package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"splitroom/internal/log"
)

type streamEvent struct {
	Snapshot snapshotDTO `json:"snapshot"`
	Summary  summaryDTO  `json:"summary"`
}

// handleStream pushes the room state over SSE. The first event carries the
// current state; afterwards every projection change produces one coalesced
// event. A periodic comment keeps intermediaries from closing the stream.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	changes, cancel := sess.Model.Watch()
	defer cancel()

	send := func() bool {
		ev := streamEvent{
			Snapshot: toSnapshotDTO(sess.Model.Snapshot()),
			Summary:  toSummaryDTO(sess.Model.Summary()),
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Stream encode error",
				log.FieldRoomID, sess.Model.RoomID(), log.FieldError, err)
			return false
		}
		if _, err := fmt.Fprintf(w, "event: room\ndata: %s\n\n", payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	heartbeat := time.NewTicker(25 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changes:
			if !send() {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
