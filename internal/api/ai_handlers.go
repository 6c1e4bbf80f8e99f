package api

import (
	"net/http"
	"strings"
)

type aiParseRequest struct {
	Text     string `json:"text"`
	Tone     string `json:"tone,omitempty"`
	Language string `json:"language,omitempty"`
}

// ParseDraft turns free-form text into a structured draft
func (h *Handlers) ParseDraft(w http.ResponseWriter, r *http.Request) {
	if !h.ai.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "ai features are not configured")
		return
	}

	var req aiParseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	draft, err := h.ai.ParseEmail(r.Context(), req.Text, req.Tone, req.Language)
	if err != nil {
		h.logger.Error("draft parsing failed", "error", err)
		respondError(w, http.StatusBadGateway, "ai request failed")
		return
	}
	respondJSON(w, http.StatusOK, draft)
}

type aiSubjectRequest struct {
	Content string `json:"content"`
}

// SuggestSubject proposes a subject line for a draft body
func (h *Handlers) SuggestSubject(w http.ResponseWriter, r *http.Request) {
	if !h.ai.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "ai features are not configured")
		return
	}

	var req aiSubjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	subject, err := h.ai.SuggestSubject(r.Context(), req.Content)
	if err != nil {
		h.logger.Error("subject suggestion failed", "error", err)
		respondError(w, http.StatusBadGateway, "ai request failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"subject": subject})
}

type aiReplyRequest struct {
	Original    string `json:"original"`
	Instruction string `json:"instruction,omitempty"`
}

// GenerateReply drafts a reply to a received email
func (h *Handlers) GenerateReply(w http.ResponseWriter, r *http.Request) {
	if !h.ai.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "ai features are not configured")
		return
	}

	var req aiReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Original) == "" {
		respondError(w, http.StatusBadRequest, "original is required")
		return
	}

	reply, err := h.ai.GenerateReply(r.Context(), req.Original, req.Instruction)
	if err != nil {
		h.logger.Error("reply generation failed", "error", err)
		respondError(w, http.StatusBadGateway, "ai request failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"content": reply})
}
