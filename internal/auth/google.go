// Package auth implements Google sign-in over OIDC. Besides identity it
// requests the gmail.send scope with offline access, so the callback
// yields the refresh token the delivery pipeline needs.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/nithindas-k/lazydraft/internal/config"
)

const googleIssuer = "https://accounts.google.com"

// GmailSendScope lets the app send mail as the user, nothing more
const GmailSendScope = "https://www.googleapis.com/auth/gmail.send"

// GoogleProvider handles the Google sign-in flow
type GoogleProvider struct {
	oauth2   oauth2.Config
	verifier *oidc.IDTokenVerifier

	mu     sync.Mutex
	states map[string]struct{}
}

// NewGoogleProvider discovers Google's OIDC endpoints and configures the
// OAuth2 client.
func NewGoogleProvider(ctx context.Context, cfg *config.GoogleConfig) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover google oidc: %w", err)
	}

	return &GoogleProvider{
		oauth2: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile", GmailSendScope},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		states:   make(map[string]struct{}),
	}, nil
}

// AuthCodeURL generates the authorization URL with a random state.
// Offline access with forced consent makes Google return a refresh token
// on every grant, not only the first.
func (p *GoogleProvider) AuthCodeURL() (string, string, error) {
	state, err := generateState()
	if err != nil {
		return "", "", err
	}

	p.mu.Lock()
	p.states[state] = struct{}{}
	p.mu.Unlock()

	url := p.oauth2.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	return url, state, nil
}

// UserInfo is the identity and credential extracted from a completed
// sign-in.
type UserInfo struct {
	Email        string
	Name         string
	Picture      string
	RefreshToken string
}

// Exchange validates the state, trades the code for tokens and verifies
// the ID token.
func (p *GoogleProvider) Exchange(ctx context.Context, state, code string) (*UserInfo, error) {
	p.mu.Lock()
	_, valid := p.states[state]
	if valid {
		delete(p.states, state)
	}
	p.mu.Unlock()

	if !valid {
		return nil, fmt.Errorf("invalid state")
	}

	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id_token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("google account email is not verified")
	}

	return &UserInfo{
		Email:        claims.Email,
		Name:         claims.Name,
		Picture:      claims.Picture,
		RefreshToken: token.RefreshToken,
	}, nil
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
