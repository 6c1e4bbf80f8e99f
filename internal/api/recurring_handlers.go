package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type recurringMailRequest struct {
	Name       string   `json:"name"`
	To         []string `json:"to"`
	Cc         []string `json:"cc,omitempty"`
	Bcc        []string `json:"bcc,omitempty"`
	Subject    string   `json:"subject"`
	Content    string   `json:"content"`
	DaysOfWeek []int    `json:"days_of_week"`
	TimeOfDay  string   `json:"time_of_day"`
	Timezone   string   `json:"timezone"`
}

func (req *recurringMailRequest) toModel(from string) *models.RecurringMail {
	return &models.RecurringMail{
		Name:       req.Name,
		From:       from,
		To:         req.To,
		Cc:         req.Cc,
		Bcc:        req.Bcc,
		Subject:    req.Subject,
		Content:    req.Content,
		DaysOfWeek: req.DaysOfWeek,
		TimeOfDay:  req.TimeOfDay,
		Timezone:   req.Timezone,
	}
}

// CreateRecurring creates a recurring mail definition
func (h *Handlers) CreateRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req recurringMailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm := req.toModel(user.Email)
	if err := h.engine.CreateRecurringMail(r.Context(), user.ID, rm); err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, rm)
}

// ListRecurring returns the user's recurring mail definitions
func (h *Handlers) ListRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	mails, err := h.recurring.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list recurring mails", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, mails)
}

// GetRecurring returns one recurring mail definition
func (h *Handlers) GetRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	rm, err := h.recurring.GetByIDAndUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Error("failed to load recurring mail", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rm == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, rm)
}

// UpdateRecurring rewrites a recurring mail definition
func (h *Handlers) UpdateRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req recurringMailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm := req.toModel(user.Email)
	rm.ID = chi.URLParam(r, "id")
	if err := h.engine.UpdateRecurringMail(r.Context(), user.ID, rm); err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rm)
}

// DeleteRecurring removes a recurring mail definition
func (h *Handlers) DeleteRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	ok, err := h.recurring.DeleteByIDAndUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Error("failed to delete recurring mail", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type toggleRequest struct {
	Active bool `json:"active"`
}

// ToggleRecurring activates or pauses a definition
func (h *Handlers) ToggleRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req toggleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rm, err := h.engine.ToggleRecurringMail(r.Context(), user.ID, chi.URLParam(r, "id"), req.Active)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rm)
}

// RunRecurring dispatches a definition immediately
func (h *Handlers) RunRecurring(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	sent, err := h.engine.RunRecurringNow(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
