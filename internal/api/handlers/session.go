package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dom/linklearn/internal/config"
	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
	"github.com/google/uuid"
)

type SessionHandler struct {
	sessions    *service.SessionService
	timers      *service.TimerService
	sync        *service.SyncService
	timerPolicy config.TimerPolicy
}

func NewSessionHandler(services *service.Services, timerPolicy config.TimerPolicy) *SessionHandler {
	return &SessionHandler{
		sessions:    services.Session,
		timers:      services.Timer,
		sync:        services.Sync,
		timerPolicy: timerPolicy,
	}
}

type CreateSessionRequest struct {
	User2     string  `json:"user2"`
	RequestID *string `json:"request_id,omitempty"`
}

type SessionResponse struct {
	Session *domain.Session `json:"session"`
	Created bool            `json:"created"`
}

type StartTimerResponse struct {
	Timer          *domain.SessionTimer `json:"timer"`
	Preempted      *domain.SessionTimer `json:"preempted,omitempty"`
	PreemptedTotal int64                `json:"preempted_total,omitempty"`
}

type StopTimerResponse struct {
	Timer        *domain.SessionTimer `json:"timer"`
	NewTotalTime int64                `json:"new_total_time"`
}

type EndSessionResponse struct {
	Summary *domain.SettlementSummary `json:"summary"`
}

type EventsResponse struct {
	Events []*domain.SessionEvent `json:"events"`
	LastID int64                  `json:"last_id"`
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}

	otherID, err := uuid.Parse(req.User2)
	if err != nil {
		badRequest(w, r, "Invalid user2")
		return
	}

	var requestID *uuid.UUID
	if req.RequestID != nil && *req.RequestID != "" {
		id, err := uuid.Parse(*req.RequestID)
		if err != nil {
			badRequest(w, r, "Invalid request_id")
			return
		}
		requestID = &id
	}

	session, created, err := h.sessions.CreateSession(r.Context(), userID, otherID, requestID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SessionResponse{Session: session, Created: created})
}

func (h *SessionHandler) DM(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	targetID, ok := uuidParam(w, r, "userId")
	if !ok {
		return
	}

	session, created, err := h.sessions.GetDMSession(r.Context(), userID, targetID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, SessionResponse{Session: session, Created: created})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.sessions.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

func (h *SessionHandler) StartTimer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.timers.StartTimer(r.Context(), sessionID, userID, h.timerPolicy)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StartTimerResponse{
		Timer:          result.Timer,
		Preempted:      result.Preempted,
		PreemptedTotal: result.PreemptedTotal,
	})
}

func (h *SessionHandler) StopTimer(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	result, err := h.timers.StopTimer(r.Context(), sessionID, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StopTimerResponse{Timer: result.Timer, NewTotalTime: result.TotalSeconds})
}

func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.sessions.EndSession(r.Context(), sessionID, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EndSessionResponse{Summary: summary})
}

func (h *SessionHandler) Updates(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	updates, err := h.sessions.Updates(r.Context(), sessionID, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, updates)
}

func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	since, ok := int64Query(w, r, "since")
	if !ok {
		return
	}

	events, err := h.sessions.Events(r.Context(), sessionID, userID, since)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := EventsResponse{Events: events, LastID: since}
	if resp.Events == nil {
		resp.Events = []*domain.SessionEvent{}
	}
	if n := len(events); n > 0 {
		resp.LastID = events[n-1].ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var in service.SyncInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}

	session, err := h.sync.Sync(r.Context(), sessionID, userID, in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// int64Query reads an optional non-negative integer query parameter.
func int64Query(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		badRequest(w, r, "Invalid "+name)
		return 0, false
	}
	return v, true
}
