package handlers

import (
	"net/http"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
	"github.com/google/uuid"
)

type PresenceHandler struct {
	presence *service.PresenceService
}

func NewPresenceHandler(presence *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presence: presence}
}

type OnlineUser struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	LastSeenAt  *time.Time `json:"last_seen_at"`
}

type HeartbeatResponse struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

func (h *PresenceHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.presence.Heartbeat(r.Context(), userID); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, HeartbeatResponse{Status: string(domain.PresenceOnline), At: time.Now().UTC()})
}

func (h *PresenceHandler) Online(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	users, err := h.presence.Online(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	online := make([]OnlineUser, 0, len(users))
	for _, u := range users {
		online = append(online, OnlineUser{ID: u.ID, DisplayName: u.DisplayName, LastSeenAt: u.LastSeenAt})
	}
	writeJSON(w, http.StatusOK, online)
}
