package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dom/linklearn/internal/domain"
	"github.com/dom/linklearn/internal/service"
	"github.com/dom/linklearn/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origins are enforced by CORS on the REST surface
	},
}

type WebSocketHandler struct {
	hub         *websocket.Hub
	authService *service.AuthService
}

func NewWebSocketHandler(hub *websocket.Hub, authService *service.AuthService) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authService: authService,
	}
}

// Session serves the push channel of one session.
func (h *WebSocketHandler) Session(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, r, "Invalid id")
		return
	}

	conn, user, ok := h.accept(w, r)
	if !ok {
		return
	}

	client := websocket.NewClient(h.hub, conn, user, websocket.ChannelSession, sessionID)
	if err := h.hub.AttachSession(r.Context(), client); err != nil {
		code := ws.CloseInternalServerErr
		switch domain.KindOf(err) {
		case domain.KindNotParticipant, domain.KindNotFound:
			code = websocket.CloseNotParticipant
		default:
			log.Error().Err(err).Str("session_id", sessionID.String()).Msg("attach session socket")
		}
		closeWith(conn, code, domain.CodeOf(err))
	}
}

// Presence serves the site-wide presence channel.
func (h *WebSocketHandler) Presence(w http.ResponseWriter, r *http.Request) {
	conn, user, ok := h.accept(w, r)
	if !ok {
		return
	}

	client := websocket.NewClient(h.hub, conn, user, websocket.ChannelPresence, uuid.Nil)
	if err := h.hub.AttachPresence(r.Context(), client); err != nil {
		log.Error().Err(err).Str("user_id", user.ID.String()).Msg("attach presence socket")
		closeWith(conn, ws.CloseInternalServerErr, domain.CodeOf(err))
	}
}

// accept upgrades the request and authenticates the ?token= parameter. The
// upgrade happens first so an auth failure can be reported as a close code.
func (h *WebSocketHandler) accept(w http.ResponseWriter, r *http.Request) (*ws.Conn, *domain.User, bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return nil, nil, false
	}

	user, err := h.authenticate(r)
	if err != nil {
		closeWith(conn, websocket.CloseNotAuthenticated, domain.CodeOf(err))
		return nil, nil, false
	}
	return conn, user, true
}

func (h *WebSocketHandler) authenticate(r *http.Request) (*domain.User, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return nil, domain.ErrNotAuthenticated
	}

	userID, err := h.authService.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrNotAuthenticated
		}
		return nil, err
	}
	return user, nil
}

func closeWith(conn *ws.Conn, code int, reason string) {
	msg := ws.FormatCloseMessage(code, reason)
	conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(time.Second))
	conn.Close()
}
