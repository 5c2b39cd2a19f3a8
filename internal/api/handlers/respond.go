package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dom/linklearn/internal/api/middleware"
	"github.com/dom/linklearn/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, r *http.Request, message string) {
	middleware.WriteError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// writeDomainError maps a service error to its HTTP status and error code.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(domain.KindOf(err))
	code := domain.CodeOf(err)
	message := "Internal server error"

	var de *domain.Error
	if errors.As(err, &de) && status != http.StatusInternalServerError {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("path", r.URL.Path).
			Str("code", code).
			Msg("request failed")
		if errors.Is(err, domain.ErrSettlementFailed) {
			message = domain.ErrSettlementFailed.Message
		}
	}

	middleware.WriteError(w, r, status, code, message)
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindNotParticipant:
		return http.StatusForbidden
	case domain.KindSessionNotActive, domain.KindTimerConflict, domain.KindInsufficientBalance, domain.KindConflict:
		return http.StatusConflict
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.WriteError(w, r, http.StatusUnauthorized, "NOT_AUTHENTICATED", "Unauthorized")
	}
	return userID, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, r, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
