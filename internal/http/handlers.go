package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"splitroom/internal/core"
	"splitroom/internal/log"
	"splitroom/internal/room"
	"splitroom/internal/share"
)

type expenseDTO struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	CreatedAt   time.Time `json:"created_at"`
}

type participantDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	AmountPaid float64   `json:"amount_paid"`
	Mode       string    `json:"mode"`
	HeadCount  int       `json:"head_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type settingsDTO struct {
	Mode      string  `json:"mode"`
	FixedRate float64 `json:"fixed_rate"`
}

type snapshotDTO struct {
	RoomID       string           `json:"room_id"`
	Expenses     []expenseDTO     `json:"expenses"`
	Participants []participantDTO `json:"participants"`
	Settings     settingsDTO      `json:"settings"`
}

type statusDTO struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Due     float64 `json:"due"`
	Settled bool    `json:"settled"`
}

type summaryDTO struct {
	TotalExpenses  float64     `json:"total_expenses"`
	TotalCollected float64     `json:"total_collected"`
	TotalCash      float64     `json:"total_cash"`
	TotalOnline    float64     `json:"total_online"`
	TotalHeadCount int         `json:"total_head_count"`
	CostPerHead    float64     `json:"cost_per_head"`
	NetBalance     float64     `json:"net_balance"`
	Statuses       []statusDTO `json:"statuses"`
}

type guardDTO struct {
	Pending          bool   `json:"pending"`
	Action           string `json:"action,omitempty"`
	Failures         int    `json:"failures"`
	SettingsUnlocked bool   `json:"settings_unlocked"`
}

func toSnapshotDTO(snap core.Snapshot) snapshotDTO {
	out := snapshotDTO{
		RoomID:       snap.RoomID,
		Expenses:     make([]expenseDTO, 0, len(snap.Expenses)),
		Participants: make([]participantDTO, 0, len(snap.Participants)),
		Settings: settingsDTO{
			Mode:      string(snap.Settings.Mode),
			FixedRate: snap.Settings.FixedRate,
		},
	}
	for _, e := range snap.Expenses {
		out.Expenses = append(out.Expenses, expenseDTO{
			ID:          e.ID,
			Description: e.Description,
			Amount:      e.Amount,
			CreatedAt:   e.CreatedAt,
		})
	}
	for _, p := range snap.Participants {
		out.Participants = append(out.Participants, participantDTO{
			ID:         p.ID,
			Name:       p.Name,
			AmountPaid: p.AmountPaid,
			Mode:       string(p.Mode),
			HeadCount:  p.Heads(),
			CreatedAt:  p.CreatedAt,
		})
	}
	return out
}

func toSummaryDTO(sum core.Summary) summaryDTO {
	out := summaryDTO{
		TotalExpenses:  sum.TotalExpenses,
		TotalCollected: sum.TotalCollected,
		TotalCash:      sum.TotalCash,
		TotalOnline:    sum.TotalOnline,
		TotalHeadCount: sum.TotalHeadCount,
		CostPerHead:    sum.CostPerHead,
		NetBalance:     sum.NetBalance,
		Statuses:       make([]statusDTO, 0, len(sum.Statuses)),
	}
	for _, st := range sum.Statuses {
		out.Statuses = append(out.Statuses, statusDTO{
			ID:      st.Participant.ID,
			Name:    st.Participant.Name,
			Due:     st.Due,
			Settled: st.Settled,
		})
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// session resolves the room session for the request, answering the error
// itself when the store is unreachable.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *room.Session {
	roomID := strings.TrimSpace(mux.Vars(r)["roomID"])
	if roomID == "" {
		writeError(w, http.StatusBadRequest, "missing room id")
		return nil
	}
	sess, err := s.rooms.Session(r.Context(), roomID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Room session error",
			log.FieldRoomID, roomID, log.FieldError, err)
		writeDomainError(w, err)
		return nil
	}
	return sess
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusCreated, map[string]string{"room_id": room.NewRoomID()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotDTO(sess.Model.Snapshot()))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(sess.Model.Summary()))
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	text, err := share.SummaryText(sess.Model.Snapshot(), sess.Model.Summary())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export is not configured")
		return
	}
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	ref, err := s.exporter.Append(r.Context(), sess.Model.Snapshot(), sess.Model.Summary())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Export failed",
			log.FieldRoomID, sess.Model.RoomID(), log.FieldError, err)
		writeError(w, http.StatusBadGateway, "export failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reference": ref})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := sess.Gateway.CreateExpense(r.Context(), body.Description, body.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Description string `json:"description"`
		Amount      string `json:"amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := sess.Gateway.UpdateExpense(r.Context(), id, body.Description, body.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeChallengePending(w, sess.Guard.Status().Label)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if err := sess.Gateway.DeleteExpense(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeChallengePending(w, sess.Guard.Status().Label)
}

func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Name       string `json:"name"`
		AmountPaid string `json:"amount_paid"`
		Mode       string `json:"mode"`
		HeadCount  string `json:"head_count"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := sess.Gateway.CreateParticipant(r.Context(), body.Name, body.AmountPaid, body.Mode, body.HeadCount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleUpdateParticipant(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Name       string `json:"name"`
		AmountPaid string `json:"amount_paid"`
		Mode       string `json:"mode"`
		HeadCount  string `json:"head_count"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := sess.Gateway.UpdateParticipant(r.Context(), id, body.Name, body.AmountPaid, body.Mode, body.HeadCount); err != nil {
		writeDomainError(w, err)
		return
	}
	writeChallengePending(w, sess.Guard.Status().Label)
}

func (s *Server) handleDeleteParticipant(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if err := sess.Gateway.DeleteParticipant(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeDomainError(w, err)
		return
	}
	writeChallengePending(w, sess.Guard.Status().Label)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Mode string `json:"mode"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := sess.Gateway.SetSettlementMode(r.Context(), body.Mode); err != nil {
		writeDomainError(w, err)
		return
	}
	if sess.Guard.Status().Pending {
		writeChallengePending(w, sess.Guard.Status().Label)
		return
	}
	// Already in the requested mode: nothing was staged.
	writeJSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
}

func (s *Server) handleSetFixedRate(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Rate string `json:"rate"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := sess.Gateway.SetFixedRate(r.Context(), body.Rate); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUnlockSettings(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if sess.Guard.SettingsUnlocked() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_unlocked"})
		return
	}
	sess.Gateway.RequestUnlockSettings()
	writeChallengePending(w, sess.Guard.Status().Label)
}

func (s *Server) handleGuardStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	st := sess.Guard.Status()
	writeJSON(w, http.StatusOK, guardDTO{
		Pending:          st.Pending,
		Action:           st.Label,
		Failures:         st.Failures,
		SettingsUnlocked: st.SettingsUnlocked,
	})
}

func (s *Server) handleGuardSubmit(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var body struct {
		Code string `json:"code"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if err := sess.Guard.Submit(r.Context(), body.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "executed"})
}

func (s *Server) handleGuardCancel(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Guard.Cancel()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
