// Package api exposes the HTTP surface: Google sign-in, the mail and
// recurring-mail endpoints, AI drafting helpers, templates, the tracking
// pixel and operational endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nithindas-k/lazydraft/internal/ai"
	"github.com/nithindas-k/lazydraft/internal/auth"
	"github.com/nithindas-k/lazydraft/internal/config"
	"github.com/nithindas-k/lazydraft/internal/engine"
	"github.com/nithindas-k/lazydraft/internal/repository"
)

type Handlers struct {
	cfg    *config.Config
	logger *slog.Logger

	engine    *engine.Engine
	ai        *ai.Client
	google    *auth.GoogleProvider
	users     *repository.UserRepository
	sessions  *repository.SessionRepository
	messages  *repository.MessageRepository
	templates *repository.TemplateRepository
	recurring *repository.RecurringRepository
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// respondEngineError maps engine sentinels onto HTTP statuses. Anything
// unrecognized is a plain 500 with the detail kept out of the response.
func (h *Handlers) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrAuthRequired):
		respondError(w, http.StatusForbidden, "gmail authorization required, sign in again")
	case errors.Is(err, engine.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "send rate limit exceeded")
	case errors.Is(err, engine.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	default:
		h.logger.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// Health responds with a simple liveness payload
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
