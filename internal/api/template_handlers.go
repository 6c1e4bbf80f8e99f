package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nithindas-k/lazydraft/internal/models"
)

type templateRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (req *templateRequest) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(req.Content) == "" {
		return "content is required"
	}
	return ""
}

// CreateTemplate stores a reusable draft
func (h *Handlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	tmpl := &models.Template{
		UserID:  user.ID,
		Name:    req.Name,
		Subject: req.Subject,
		Content: req.Content,
	}
	if err := h.templates.Create(r.Context(), tmpl); err != nil {
		h.logger.Error("failed to create template", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusCreated, tmpl)
}

// ListTemplates returns the user's templates
func (h *Handlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	templates, err := h.templates.ListByUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, templates)
}

// GetTemplate returns one template
func (h *Handlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	tmpl, err := h.templates.GetByIDAndUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Error("failed to load template", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if tmpl == nil {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// UpdateTemplate rewrites a template
func (h *Handlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req templateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	tmpl := &models.Template{
		ID:      chi.URLParam(r, "id"),
		UserID:  user.ID,
		Name:    req.Name,
		Subject: req.Subject,
		Content: req.Content,
	}
	ok, err := h.templates.Update(r.Context(), tmpl)
	if err != nil {
		h.logger.Error("failed to update template", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// DeleteTemplate removes a template
func (h *Handlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	ok, err := h.templates.DeleteByIDAndUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Error("failed to delete template", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
