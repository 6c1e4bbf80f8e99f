package api

import (
	"net/http"

	"github.com/nithindas-k/lazydraft/internal/models"
)

const stateCookie = "oauth_state"

// Login starts the Google sign-in flow
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondError(w, http.StatusServiceUnavailable, "google sign-in is not configured")
		return
	}

	url, state, err := h.google.AuthCodeURL()
	if err != nil {
		h.logger.Error("failed to generate auth URL", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to start sign-in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   h.cfg.Server.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback completes sign-in: it verifies the state, exchanges the code,
// upserts the user with the refresh token and opens a session.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		respondError(w, http.StatusServiceUnavailable, "google sign-in is not configured")
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing sign-in state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})

	state := r.URL.Query().Get("state")
	if state != cookie.Value {
		respondError(w, http.StatusBadRequest, "sign-in state mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		respondError(w, http.StatusBadRequest, "authorization was denied")
		return
	}

	info, err := h.google.Exchange(r.Context(), state, code)
	if err != nil {
		h.logger.Error("google exchange failed", "error", err)
		respondError(w, http.StatusBadGateway, "sign-in failed")
		return
	}

	user := &models.User{
		Email:        info.Email,
		Name:         info.Name,
		Picture:      info.Picture,
		RefreshToken: info.RefreshToken,
	}
	if err := h.users.Upsert(r.Context(), user); err != nil {
		h.logger.Error("failed to upsert user", "error", err, "email", info.Email)
		respondError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	session, err := h.sessions.Create(r.Context(), user.ID, h.cfg.Auth.SessionTTL)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cfg.Server.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("user signed in", "email", user.Email)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout deletes the session and clears the cookie
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.Warn("failed to delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me returns the authenticated user
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, currentUser(r))
}
