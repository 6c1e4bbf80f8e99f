package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nithindas-k/lazydraft/internal/engine"
	"github.com/nithindas-k/lazydraft/internal/models"
)

type composeMailRequest struct {
	To          string     `json:"to"`
	Cc          string     `json:"cc,omitempty"`
	Bcc         string     `json:"bcc,omitempty"`
	Subject     string     `json:"subject"`
	Content     string     `json:"content"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	// TrackingBaseURL overrides the configured public URL when building
	// the open-tracking pixel for this message.
	TrackingBaseURL string `json:"tracking_base_url,omitempty"`
}

// ComposeMail sends or schedules a message. The sender address is always
// the signed-in user's Gmail address.
func (h *Handlers) ComposeMail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req composeMailRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	trackingBase := req.TrackingBaseURL
	if trackingBase == "" && h.cfg.Server.PublicURL == "" {
		trackingBase = requestOrigin(r)
	}

	msg, err := h.engine.ComposeAndSend(r.Context(), user.ID, &engine.ComposeRequest{
		From:            user.Email,
		To:              req.To,
		Cc:              req.Cc,
		Bcc:             req.Bcc,
		Subject:         req.Subject,
		Content:         req.Content,
		ScheduledAt:     req.ScheduledAt,
		TrackingBaseURL: trackingBase,
	})
	if err != nil {
		if msg != nil && msg.Status == models.StatusFailed {
			// Persisted but undeliverable: surface the message so the
			// client can offer a retry.
			respondJSON(w, http.StatusBadGateway, msg)
			return
		}
		h.respondEngineError(w, err)
		return
	}

	status := http.StatusOK
	if msg.ScheduledAt != nil {
		status = http.StatusAccepted
	}
	respondJSON(w, status, msg)
}

// requestOrigin reconstructs the scheme and host the client reached us
// on. Tracking base of last resort when no public URL is configured.
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}

// ListMails returns the user's messages, optionally filtered by status
func (h *Handlers) ListMails(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	filter := models.MessageListFilter{Limit: 50}
	if s := r.URL.Query().Get("status"); s != "" {
		filter.Status = models.MessageStatus(s)
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if n, err := strconv.Atoi(o); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	mails, err := h.messages.ListByUser(r.Context(), user.ID, filter)
	if err != nil {
		h.logger.Error("failed to list messages", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, mails)
}

// GetMail returns one of the user's messages
func (h *Handlers) GetMail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	msg, err := h.messages.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("failed to load message", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msg == nil || msg.UserID != user.ID {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// ResendMail delivers a fresh copy of an existing message
func (h *Handlers) ResendMail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	msg, err := h.engine.ResendMessage(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if msg != nil && msg.Status == models.StatusFailed {
			respondJSON(w, http.StatusBadGateway, msg)
			return
		}
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, msg)
}

// DeleteMail removes one of the user's messages
func (h *Handlers) DeleteMail(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	ok, err := h.messages.DeleteByIDAndUser(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.logger.Error("failed to delete message", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MarkMailReplied records that the recipient replied to a message
func (h *Handlers) MarkMailReplied(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if err := h.engine.RecordReply(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "replied"})
}
