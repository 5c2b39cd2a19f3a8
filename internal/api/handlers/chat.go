package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dom/linklearn/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type SendChatRequest struct {
	Message string `json:"message"`
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	sinceID, ok := int64Query(w, r, "since_id")
	if !ok {
		return
	}

	messages, err := h.chat.History(r.Context(), sessionID, userID, sinceID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	views := make([]service.ChatMessageView, 0, len(messages))
	for _, m := range messages {
		views = append(views, service.NewChatMessageView(m))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req SendChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, "Invalid request body")
		return
	}

	msg, err := h.chat.Send(r.Context(), sessionID, userID, req.Message)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, service.NewChatMessageView(msg))
}
